package backend

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/specialistvlad/benchgrid/internal/fsutil"
	"gopkg.in/yaml.v3"
)

// DefaultPrefix tags the profiling output of the preloaded library and
// prefixes the environment variables that configure it.
const DefaultPrefix = "INTERFERENCE"

// preloadLibrary is the path of the shared object below an install tree.
const preloadLibrary = "usr/local/lib/libinterference.so"

// ErrInvalidProfile is returned for profiles that fail validation.
var ErrInvalidProfile = errors.New("invalid profile")

// Profile describes one cluster: how to find nodes, which MPI library to
// launch with and where the preload library lives.
type Profile struct {
	Backend         string            `yaml:"backend"`
	Nodes           []string          `yaml:"nodes"`
	NodelistCommand string            `yaml:"nodelist_command"`
	HostfileDir     string            `yaml:"hostfile_dir"`
	ModulesLoad     string            `yaml:"modules_load"`
	SourceDir       string            `yaml:"source_dir"`
	Prefix          string            `yaml:"prefix"`
	Runs            int               `yaml:"runs"`
	Env             map[string]string `yaml:"env"`
	Library         LibraryConfig     `yaml:"library"`
}

// LibraryConfig selects and configures the communication library.
type LibraryConfig struct {
	Name       string `yaml:"name"`
	Launcher   string `yaml:"launcher"`
	BuildFlags string `yaml:"build_flags"`
	Pre        string `yaml:"pre"`
}

// LoadProfile reads and validates a YAML profile.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}
	p, err := ParseProfile(data)
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", path, err)
	}
	return p, nil
}

// ParseProfile decodes a YAML profile, applies defaults and validates it.
// Unknown keys are rejected.
func ParseProfile(data []byte) (*Profile, error) {
	var p Profile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("failed to decode profile: %w", err)
	}
	if err := p.applyDefaults(); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *Profile) applyDefaults() error {
	if p.Prefix == "" {
		p.Prefix = DefaultPrefix
	}
	if p.Runs == 0 {
		p.Runs = 1
	}
	if p.SourceDir == "" {
		p.SourceDir = "."
	}
	if p.HostfileDir == "" {
		p.HostfileDir = os.TempDir()
	}
	var err error
	if p.SourceDir, err = fsutil.ExpandHome(p.SourceDir); err != nil {
		return err
	}
	if p.SourceDir, err = filepath.Abs(p.SourceDir); err != nil {
		return err
	}
	if p.HostfileDir, err = fsutil.ExpandHome(p.HostfileDir); err != nil {
		return err
	}
	if p.Library.Launcher == "" {
		p.Library.Launcher = defaultLaunchers[p.Library.Name]
	}
	return nil
}

// Validate checks the profile for missing or contradictory settings.
func (p *Profile) Validate() error {
	switch p.Backend {
	case BackendLocal, BackendSlurm:
	case BackendStatic:
		if len(p.Nodes) == 0 {
			return fmt.Errorf("%w: backend %q needs a node list", ErrInvalidProfile, p.Backend)
		}
	case BackendCommand:
		if p.NodelistCommand == "" {
			return fmt.Errorf("%w: backend %q needs nodelist_command", ErrInvalidProfile, p.Backend)
		}
	case "":
		return fmt.Errorf("%w: backend is required", ErrInvalidProfile)
	default:
		return fmt.Errorf("%w: unknown backend %q", ErrInvalidProfile, p.Backend)
	}
	if p.Runs < 0 {
		return fmt.Errorf("%w: runs must not be negative", ErrInvalidProfile)
	}
	if _, err := NewLibrary(p.Library); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidProfile, err)
	}
	return nil
}

// Suffix names the build and install trees of the preload library for this
// backend and library.
func (p *Profile) Suffix() string {
	return p.Backend + "-" + p.Library.Name
}

// InstallDir is where prepare installs the preload library.
func (p *Profile) InstallDir() string {
	return filepath.Join(p.SourceDir, "install-"+p.Suffix())
}

// BuildDir is where prepare configures and builds the preload library.
func (p *Profile) BuildDir() string {
	return filepath.Join(p.SourceDir, "build-"+p.Suffix())
}

// PreloadPath is the shared object injected into every benchmark process.
func (p *Profile) PreloadPath() string {
	return filepath.Join(p.InstallDir(), preloadLibrary)
}
