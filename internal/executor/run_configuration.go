package executor

import (
	"context"
	"fmt"

	"github.com/specialistvlad/benchgrid/internal/backend"
	"github.com/specialistvlad/benchgrid/internal/ctxlog"
	"github.com/specialistvlad/benchgrid/internal/ledger"
	"github.com/specialistvlad/benchgrid/internal/protocol"
	"github.com/specialistvlad/benchgrid/internal/shell"
)

func (e *Engine) runConfiguration(ctx context.Context, c Configuration, sink Sink) error {
	d := c.Descriptor
	ctx = ctxlog.With(ctx, "run", c.Run, "descriptor", d.Name())
	logger := ctxlog.FromContext(ctx)
	key := c.Key()

	switch {
	case d.Failed():
		logger.Debug("Skipping descriptor that failed to compile.")
		return e.ledger.Transition(key, ledger.CompileFailed)
	case e.cfg.Filter.Skip(d):
		logger.Debug("Skipping filtered descriptor.")
		return e.ledger.Transition(key, ledger.Skipped)
	}

	if err := e.ledger.Transition(key, ledger.Running); err != nil {
		return err
	}
	state, err := e.invoke(ctx, c, sink)
	if err != nil {
		return err
	}
	return e.ledger.Transition(key, state)
}

// Environment returns the environment of one invocation of c: a copy of
// the base environment with the profiling settings and the backend's
// additions.
func (e *Engine) Environment(c Configuration, outputKind string) shell.Env {
	d := c.Descriptor
	p := e.cfg.Prefix
	env := e.cfg.BaseEnv.With(map[string]string{
		p + "_PREFIX":   p,
		p + "_SCHED":    d.Sched,
		p + "_AFFINITY": d.Affinity,
		p + "_OUTPUT":   outputKind,
		p + "_SESSION":  e.cfg.Session,
	})
	e.backend.AugmentEnvironment(env, d)
	return env
}

// invoke launches one configuration and returns its terminal state. The
// error is reserved for failures that must abort the sweep.
func (e *Engine) invoke(ctx context.Context, c Configuration, sink Sink) (ledger.State, error) {
	logger := ctxlog.FromContext(ctx)
	d := c.Descriptor

	nodes, err := e.backend.Nodelist(ctx)
	if err != nil {
		logger.Error("Node list unavailable.", "error", err)
		return ledger.Crashed, nil
	}
	if len(nodes) < d.Nodes {
		logger.Error("Not enough nodes.", "need", d.Nodes, "have", len(nodes))
		return ledger.Crashed, nil
	}

	inv := &backend.Invocation{
		Run:        c.Run,
		Descriptor: d,
		Env:        e.Environment(c, sink.Kind()),
		Nodes:      nodes[:d.Nodes],
	}
	scope := backend.NewScope(e.cfg.ScratchDir)
	defer func() {
		if err := scope.Close(); err != nil {
			logger.Warn("Failed to remove temporary files.", "error", err)
		}
	}()

	if err := e.backend.Acquire(scope, inv); err != nil {
		logger.Error("Failed to prepare invocation.", "error", err)
		return ledger.Crashed, nil
	}
	cmd, err := e.backend.FormatCommand(inv)
	if err != nil {
		logger.Error("Failed to format command.", "error", err)
		return ledger.Crashed, nil
	}

	logger.Info("Running benchmark.", "command", cmd)
	res, err := shell.Run(ctx, shell.Command{Script: cmd, Dir: d.WorkDir, Env: inv.Env})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ledger.Crashed, ctxErr
		}
		logger.Error("Benchmark could not start.", "error", err)
		return ledger.Crashed, nil
	}
	if res.Failed() {
		logger.Error("Benchmark failed.", "exit_code", res.ExitCode, "output", string(res.Output))
		return ledger.Crashed, nil
	}

	payload, ok := protocol.Extract(res.Output, e.cfg.Prefix)
	if !ok {
		logger.Warn("Failed to get profiling data.", "output", string(res.Output))
		return ledger.NoData, nil
	}
	if err := sink.Submit(c.Run, d, payload); err != nil {
		return ledger.Running, fmt.Errorf("run %d of %s: %w", c.Run, d.Name(), err)
	}
	logger.Debug("Submitted profiling data.", "variant", payload.Variant, "lines", len(payload.Lines), "duration", res.Duration)
	return ledger.Submitted, nil
}
