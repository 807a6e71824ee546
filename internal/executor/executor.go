package executor

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/specialistvlad/benchgrid/internal/backend"
	"github.com/specialistvlad/benchgrid/internal/ctxlog"
	"github.com/specialistvlad/benchgrid/internal/descriptor"
	"github.com/specialistvlad/benchgrid/internal/filter"
	"github.com/specialistvlad/benchgrid/internal/ledger"
	"github.com/specialistvlad/benchgrid/internal/protocol"
	"github.com/specialistvlad/benchgrid/internal/shell"
)

// RunOrder decides how runs and descriptors are nested.
type RunOrder string

const (
	// Interleave makes the run the outer loop.
	Interleave RunOrder = "interleave"
	// Consecutive makes the descriptor the outer loop.
	Consecutive RunOrder = "consecutive"
)

// ParseRunOrder validates a run order name.
func ParseRunOrder(s string) (RunOrder, error) {
	switch o := RunOrder(s); o {
	case Interleave, Consecutive:
		return o, nil
	}
	return "", fmt.Errorf("unknown run order %q (use %s or %s)", s, Interleave, Consecutive)
}

// Sink receives the profiling payload of every successful invocation.
type Sink interface {
	Kind() string
	Submit(run int, d *descriptor.Descriptor, p *protocol.Payload) error
}

// Config controls a sweep.
type Config struct {
	Runs   int
	Order  RunOrder
	Prefix string
	Filter *filter.Filter
	// BaseEnv is copied for every invocation and never modified.
	BaseEnv shell.Env
	// ScratchDir holds hostfiles and helper scripts while a benchmark runs.
	ScratchDir string
	// Session tags log records and is exported to benchmarks. A random
	// one is generated when empty.
	Session string
}

// Configuration is one (run, descriptor) pair.
type Configuration struct {
	Run        int
	Index      int
	Descriptor *descriptor.Descriptor
}

// Key identifies the configuration in the ledger.
func (c Configuration) Key() ledger.Key {
	return ledger.Key{Run: c.Run, Descriptor: c.Index}
}

// Engine executes a sweep on a backend.
type Engine struct {
	backend     backend.Backend
	descriptors []*descriptor.Descriptor
	cfg         Config
	ledger      *ledger.Ledger
}

// New creates an engine.
func New(b backend.Backend, ds []*descriptor.Descriptor, cfg Config) *Engine {
	if cfg.Runs < 0 {
		cfg.Runs = 0
	}
	if cfg.Order == "" {
		cfg.Order = Interleave
	}
	if cfg.Prefix == "" {
		cfg.Prefix = backend.DefaultPrefix
	}
	if cfg.Session == "" {
		cfg.Session = uuid.NewString()
	}
	if cfg.BaseEnv == nil {
		cfg.BaseEnv = shell.EnvFromOS()
	}
	return &Engine{backend: b, descriptors: ds, cfg: cfg, ledger: ledger.New()}
}

// Session returns the session id of the sweep.
func (e *Engine) Session() string { return e.cfg.Session }

// Ledger returns the state of every configuration.
func (e *Engine) Ledger() *ledger.Ledger { return e.ledger }

// Configurations lists the configuration space in execution order.
func (e *Engine) Configurations() []Configuration {
	out := make([]Configuration, 0, e.cfg.Runs*len(e.descriptors))
	switch e.cfg.Order {
	case Consecutive:
		for i, d := range e.descriptors {
			for run := 0; run < e.cfg.Runs; run++ {
				out = append(out, Configuration{Run: run, Index: i, Descriptor: d})
			}
		}
	default:
		for run := 0; run < e.cfg.Runs; run++ {
			for i, d := range e.descriptors {
				out = append(out, Configuration{Run: run, Index: i, Descriptor: d})
			}
		}
	}
	return out
}

// Run executes every configuration in order. It returns early only for
// context cancellation and for parse or submit errors.
func (e *Engine) Run(ctx context.Context, sink Sink) error {
	ctx = ctxlog.With(ctx, "session", e.cfg.Session)
	logger := ctxlog.FromContext(ctx)

	configs := e.Configurations()
	logger.Info("▶️ Starting sweep.", "backend", e.backend.Name(), "runs", e.cfg.Runs, "descriptors", len(e.descriptors), "configurations", len(configs), "order", e.cfg.Order)

	for _, c := range configs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.runConfiguration(ctx, c, sink); err != nil {
			attrs := []any{"error", err, "unfinished", e.unfinished(len(configs))}
			logger.Error("Sweep aborted.", append(attrs, e.ledger.Summary()...)...)
			return err
		}
	}

	logger.Info("✅ Sweep finished.", e.ledger.Summary()...)
	return nil
}

// unfinished counts the configurations of total that never reached a
// terminal state.
func (e *Engine) unfinished(total int) int {
	for _, k := range e.ledger.Keys() {
		if e.ledger.Get(k).Terminal() {
			total--
		}
	}
	return total
}
