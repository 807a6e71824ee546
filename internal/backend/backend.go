// Package backend knows how to launch a benchmark on a particular cluster:
// where its nodes come from, which MPI launcher to use and which
// environment the preloaded profiling library expects.
package backend

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/specialistvlad/benchgrid/internal/descriptor"
	"github.com/specialistvlad/benchgrid/internal/shell"
)

// Backend names.
const (
	BackendLocal   = "local"
	BackendSlurm   = "slurm"
	BackendStatic  = "static"
	BackendCommand = "command"
)

// Invocation is one launch of one descriptor in one run.
type Invocation struct {
	Run        int
	Descriptor *descriptor.Descriptor
	Env        shell.Env
	// Nodes are the nodes assigned to this launch.
	Nodes []string
	// Hostfile and Script are filled by Acquire when the library needs them.
	Hostfile string
	Script   string
}

// NodeString is the comma-separated node list.
func (inv *Invocation) NodeString() string { return strings.Join(inv.Nodes, ",") }

// Backend is a cluster the execution engine launches benchmarks on.
type Backend interface {
	// Name is the backend name as used in cache file names.
	Name() string
	Library() *Library
	// Nodelist returns every node available to the sweep. It is resolved
	// once and cached.
	Nodelist(ctx context.Context) ([]string, error)
	// Acquire creates the temporary files inv needs inside scope.
	Acquire(scope *Scope, inv *Invocation) error
	FormatCommand(inv *Invocation) (string, error)
	// AugmentEnvironment adds backend and library settings to env, which
	// belongs to a single invocation.
	AugmentEnvironment(env shell.Env, d *descriptor.Descriptor)
}

// cluster is the Backend used for every profile; backends differ only in
// where their node list comes from.
type cluster struct {
	profile *Profile
	library *Library
	source  nodeSource

	once     sync.Once
	nodes    []string
	nodesErr error
}

// New creates the backend a profile describes.
func New(p *Profile) (Backend, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	lib, err := NewLibrary(p.Library)
	if err != nil {
		return nil, err
	}
	var src nodeSource
	switch p.Backend {
	case BackendLocal:
		src = localNodes
	case BackendSlurm:
		src = commandLines(slurmHostnames)
	case BackendStatic:
		src = staticNodes(p.Nodes)
	case BackendCommand:
		src = commandFields(p.NodelistCommand)
	}
	return &cluster{profile: p, library: lib, source: src}, nil
}

func (c *cluster) Name() string      { return c.profile.Backend }
func (c *cluster) Library() *Library { return c.library }

func (c *cluster) Nodelist(ctx context.Context) ([]string, error) {
	c.once.Do(func() {
		c.nodes, c.nodesErr = c.source(ctx)
		if c.nodesErr == nil && len(c.nodes) == 0 {
			c.nodesErr = fmt.Errorf("backend %s reported no nodes", c.Name())
		}
	})
	return c.nodes, c.nodesErr
}

func (c *cluster) Acquire(scope *Scope, inv *Invocation) error {
	if c.library.NeedsHostfile() {
		path, err := scope.CreateFile("hostfile-*", strings.Join(inv.Nodes, "\n")+"\n")
		if err != nil {
			return err
		}
		inv.Hostfile = path
	}
	if c.library.NeedsScript() {
		path, err := scope.CreateScript("srun-*.sh", c.library.HelperScript(len(inv.Nodes)))
		if err != nil {
			return err
		}
		inv.Script = path
	}
	return nil
}

func (c *cluster) FormatCommand(inv *Invocation) (string, error) {
	cmd, err := c.library.Command(inv, c.profile.PreloadPath())
	if err != nil {
		return "", err
	}
	if c.profile.ModulesLoad != "" {
		cmd = c.profile.ModulesLoad + " ; " + cmd
	}
	return cmd, nil
}

func (c *cluster) AugmentEnvironment(env shell.Env, d *descriptor.Descriptor) {
	for k, v := range c.profile.Env {
		env[k] = v
	}
	c.library.Augment(env, c.profile.Prefix, c.profile.PreloadPath())
}
