package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/specialistvlad/benchgrid/internal/backend"
	"github.com/specialistvlad/benchgrid/internal/ctxlog"
	"github.com/specialistvlad/benchgrid/internal/fsutil"
	"github.com/specialistvlad/benchgrid/internal/hcl_adapter"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW    io.Writer
	logger  *slog.Logger
	config  *Config
	profile *backend.Profile
	backend backend.Backend
	loader  *hcl_adapter.Loader
}

// NewApp loads the backend profile named by cfg and returns a ready App.
// Logs and command output go to outW.
func NewApp(outW io.Writer, cfg *Config) (*App, error) {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	profile, err := backend.LoadProfile(cfg.ProfilePath)
	if err != nil {
		return nil, err
	}
	if cfg.SourceDir != "" {
		dir, err := fsutil.ExpandHome(cfg.SourceDir)
		if err != nil {
			return nil, err
		}
		if profile.SourceDir, err = filepath.Abs(dir); err != nil {
			return nil, err
		}
	}
	ctxlog.FromContext(ctx).Debug("Backend profile loaded.", "path", cfg.ProfilePath, "backend", profile.Backend, "library", profile.Library.Name)

	b, err := backend.New(profile)
	if err != nil {
		return nil, fmt.Errorf("failed to configure backend: %w", err)
	}

	return &App{
		outW:    outW,
		logger:  logger,
		config:  cfg,
		profile: profile,
		backend: b,
		loader:  hcl_adapter.NewLoader(),
	}, nil
}

// Backend returns the configured backend. This is primarily for testing.
func (a *App) Backend() backend.Backend {
	return a.backend
}
