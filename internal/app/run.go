package app

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/specialistvlad/benchgrid/internal/backend"
	"github.com/specialistvlad/benchgrid/internal/builder"
	"github.com/specialistvlad/benchgrid/internal/cache"
	"github.com/specialistvlad/benchgrid/internal/ctxlog"
	"github.com/specialistvlad/benchgrid/internal/descriptor"
	"github.com/specialistvlad/benchgrid/internal/executor"
	"github.com/specialistvlad/benchgrid/internal/filter"
	"github.com/specialistvlad/benchgrid/internal/shell"
	"github.com/specialistvlad/benchgrid/internal/sweep"
	"github.com/specialistvlad/benchgrid/internal/writer"
)

// Run executes the configured command.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.", "command", a.config.Command)

	var err error
	switch a.config.Command {
	case CommandPrepare:
		err = a.prepare(ctx)
	case CommandExpand:
		err = a.expand(ctx)
	default:
		err = a.runSweep(ctx)
	}

	a.logger.Debug("App.Run method finished.")
	return err
}

func (a *App) prepare(ctx context.Context) error {
	a.logger.Info("🔧 Building preload library.", "source_dir", a.profile.SourceDir, "install_dir", a.profile.InstallDir())
	if err := backend.Prepare(ctx, a.profile, shell.EnvFromOS()); err != nil {
		return fmt.Errorf("prepare failed: %w", err)
	}
	a.logger.Info("🏁 Preload library installed.", "path", a.profile.PreloadPath())
	return nil
}

// loadDescriptors loads and expands every sweep file.
func (a *App) loadDescriptors(ctx context.Context) ([]*descriptor.Descriptor, error) {
	specs, err := a.loader.Load(ctx, a.config.SweepPaths...)
	if err != nil {
		return nil, fmt.Errorf("failed to load sweeps: %w", err)
	}
	set, err := sweep.ExpandAll(ctx, specs)
	if err != nil {
		return nil, fmt.Errorf("failed to expand sweeps: %w", err)
	}
	a.logger.Debug("Sweeps expanded.", "sweeps", len(specs), "descriptors", len(set.Descriptors))
	return set.Descriptors, nil
}

// expand prints every descriptor name followed by its sweep-specific
// attributes, marking the ones the filter skips.
func (a *App) expand(ctx context.Context) error {
	f, err := filter.Parse(a.config.Filter)
	if err != nil {
		return err
	}
	ds, err := a.loadDescriptors(ctx)
	if err != nil {
		return err
	}
	for _, d := range ds {
		line := d.Name()
		for _, name := range d.Extras() {
			v, _ := d.Attr(name)
			line += " " + name + "=" + descriptor.FormatValue(v)
		}
		if f.Skip(d) {
			line += " (filtered)"
		}
		if _, err := fmt.Fprintln(a.outW, line); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) runSweep(ctx context.Context) (err error) {
	f, err := filter.Parse(a.config.Filter)
	if err != nil {
		return err
	}
	order, err := executor.ParseRunOrder(a.config.RunOrder)
	if err != nil {
		return err
	}
	ds, err := a.loadDescriptors(ctx)
	if err != nil {
		return err
	}

	cachePath := filepath.Join(a.config.StateDir, cache.FileName(a.backend.Name(), a.backend.Library().Name))
	c, err := cache.Load(cachePath, a.config.Cache)
	if err != nil {
		return err
	}

	env := shell.EnvFromOS()
	if len(f.Clauses()) > 0 {
		a.logger.Info("Filter active.", "filter", f.String())
	}
	a.logger.Info("🔨 Compiling descriptors.", "count", len(ds), "cache", c.Path(), "cache_enabled", c.Enabled())
	if _, err := builder.New(c, f, env).Compile(ctx, ds); err != nil {
		return fmt.Errorf("compilation failed: %w", err)
	}

	w, err := writer.Create(a.config.Writer, a.config.OutputPath)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := w.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to write %s: %w", a.config.OutputPath, cerr)
		}
	}()

	runs := a.profile.Runs
	if a.config.Runs >= 0 {
		runs = a.config.Runs
	}
	engine := executor.New(a.backend, ds, executor.Config{
		Runs:       runs,
		Order:      order,
		Prefix:     a.profile.Prefix,
		Filter:     f,
		BaseEnv:    env,
		ScratchDir: a.profile.HostfileDir,
		Session:    uuid.NewString(),
	})

	a.logger.Info("🚀 Starting benchmarks...", "session", engine.Session())
	if err := engine.Run(ctx, w); err != nil {
		return fmt.Errorf("execution failed: %w", err)
	}
	a.logger.Info("🏁 Execution finished.", "output", a.config.OutputPath)
	return nil
}
