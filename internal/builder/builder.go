package builder

import (
	"context"
	"fmt"

	"github.com/specialistvlad/benchgrid/internal/cache"
	"github.com/specialistvlad/benchgrid/internal/ctxlog"
	"github.com/specialistvlad/benchgrid/internal/descriptor"
	"github.com/specialistvlad/benchgrid/internal/filter"
	"github.com/specialistvlad/benchgrid/internal/shell"
)

// Compiler builds descriptors, consulting and updating a cache.
type Compiler struct {
	Cache  *cache.Cache
	Filter *filter.Filter
	// Env is the environment of every build command.
	Env shell.Env
}

// Summary counts the outcomes of one compilation pass.
type Summary struct {
	Built   int
	Cached  int
	Failed  int
	Skipped int
}

// New creates a compiler. A nil cache is replaced by a disabled one.
func New(c *cache.Cache, f *filter.Filter, env shell.Env) *Compiler {
	if c == nil {
		c, _ = cache.Load("", false)
	}
	return &Compiler{Cache: c, Filter: f, Env: env}
}

// Compile runs the compilation pass over ds. Build failures are recorded on
// the descriptors; only a cache write failure is returned as an error.
func (c *Compiler) Compile(ctx context.Context, ds []*descriptor.Descriptor) (Summary, error) {
	logger := ctxlog.FromContext(ctx)
	var sum Summary

	for _, d := range ds {
		if c.Filter.Skip(d) {
			sum.Skipped++
			continue
		}
		if fail, ok := c.Cache.Lookup(d); ok {
			if fail {
				d.MarkFailed()
				sum.Failed++
			}
			sum.Cached++
			logger.Debug("Using cached build result.", "descriptor", d.Name(), "failed", fail)
			continue
		}

		c.build(ctx, d)
		sum.Built++
		if d.Failed() {
			sum.Failed++
		}
		if err := c.Cache.Record(d); err != nil {
			return sum, fmt.Errorf("failed to record build of %s: %w", d.Name(), err)
		}
	}

	logger.Info("Compilation finished.", "built", sum.Built, "cached", sum.Cached, "failed", sum.Failed, "skipped", sum.Skipped)
	return sum, nil
}

func (c *Compiler) build(ctx context.Context, d *descriptor.Descriptor) {
	logger := ctxlog.FromContext(ctx).With("descriptor", d.Name(), "wd", d.WorkDir)
	logger.Info("Compiling.", "command", d.BuildCommand)

	res, err := shell.Run(ctx, shell.Command{Script: d.BuildCommand, Dir: d.WorkDir, Env: c.Env})
	if err != nil {
		logger.Error("Compilation could not start.", "error", err)
		d.MarkFailed()
		return
	}
	if res.Failed() {
		logger.Error("Compilation failed.", "exit_code", res.ExitCode, "output", string(res.Output))
		d.MarkFailed()
	}
}
