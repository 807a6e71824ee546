package app

import (
	"errors"
	"fmt"

	"github.com/specialistvlad/benchgrid/internal/executor"
	"github.com/specialistvlad/benchgrid/internal/filter"
	"github.com/specialistvlad/benchgrid/internal/writer"
)

// Commands.
const (
	CommandRun     = "run"
	CommandPrepare = "prepare"
	CommandExpand  = "expand"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	Command     string
	ProfilePath string // backend profile (yaml)
	SweepPaths  []string
	OutputPath  string

	Cache    bool
	Filter   string
	Writer   string
	RunOrder string
	// Runs overrides the profile's run count when not negative.
	Runs int
	// SourceDir overrides the profile's source directory when set.
	SourceDir string
	// StateDir holds the compilation cache.
	StateDir string

	LogFormat string
	LogLevel  string
}

// NewConfig validates cfg and fills in defaults.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.ProfilePath == "" {
		return nil, errors.New("ProfilePath is a required configuration field and cannot be empty")
	}
	if cfg.Command == "" {
		cfg.Command = CommandRun
	}
	if cfg.StateDir == "" {
		cfg.StateDir = "."
	}
	if cfg.Writer == "" {
		cfg.Writer = writer.KindCSV
	}
	if cfg.RunOrder == "" {
		cfg.RunOrder = string(executor.Interleave)
	}
	if _, err := parseLevel(cfg.LogLevel); err != nil {
		return nil, err
	}
	if cfg.LogFormat != "" && cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, fmt.Errorf("invalid log format %q: must be 'text' or 'json'", cfg.LogFormat)
	}

	switch cfg.Command {
	case CommandPrepare:
		return &cfg, nil
	case CommandRun, CommandExpand:
	default:
		return nil, fmt.Errorf("unknown command %q", cfg.Command)
	}

	if len(cfg.SweepPaths) == 0 {
		return nil, errors.New("at least one sweep path is required")
	}
	if _, err := filter.Parse(cfg.Filter); err != nil {
		return nil, err
	}
	if cfg.Command == CommandExpand {
		return &cfg, nil
	}

	if cfg.OutputPath == "" {
		return nil, errors.New("OutputPath is a required configuration field and cannot be empty")
	}
	if !writer.Valid(cfg.Writer) {
		return nil, fmt.Errorf("%w %q (use one of %v)", writer.ErrUnknownKind, cfg.Writer, writer.Kinds())
	}
	if _, err := executor.ParseRunOrder(cfg.RunOrder); err != nil {
		return nil, err
	}
	return &cfg, nil
}
