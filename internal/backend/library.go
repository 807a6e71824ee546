package backend

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/specialistvlad/benchgrid/internal/descriptor"
	"github.com/specialistvlad/benchgrid/internal/shell"
)

// Communication libraries.
const (
	LibOpenMPI = "openmpi"
	LibMVAPICH = "mvapich"
	LibCharm   = "charm"
)

// Launchers.
const (
	LauncherMpirun    = "mpirun"
	LauncherMpirunRsh = "mpirun_rsh"
	LauncherCharmrun  = "charmrun"
)

// ErrUnknownLibrary is returned for library or launcher names that are not
// supported.
var ErrUnknownLibrary = errors.New("unknown library")

var defaultLaunchers = map[string]string{
	LibOpenMPI: LauncherMpirun,
	LibMVAPICH: LauncherMpirun,
	LibCharm:   LauncherCharmrun,
}

var launchers = map[string][]string{
	LibOpenMPI: {LauncherMpirun},
	LibMVAPICH: {LauncherMpirun, LauncherMpirunRsh},
	LibCharm:   {LauncherCharmrun},
}

// Library formats launch commands for one communication library.
type Library struct {
	Name       string
	Launcher   string
	BuildFlags string
	Pre        string
}

// NewLibrary validates cfg and returns the library it names.
func NewLibrary(cfg LibraryConfig) (*Library, error) {
	allowed, ok := launchers[cfg.Name]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownLibrary, cfg.Name)
	}
	launcher := cfg.Launcher
	if launcher == "" {
		launcher = defaultLaunchers[cfg.Name]
	}
	found := false
	for _, l := range allowed {
		found = found || l == launcher
	}
	if !found {
		return nil, fmt.Errorf("%w: launcher %q is not available for %s (use one of %v)", ErrUnknownLibrary, launcher, cfg.Name, allowed)
	}
	return &Library{Name: cfg.Name, Launcher: launcher, BuildFlags: cfg.BuildFlags, Pre: cfg.Pre}, nil
}

// NeedsHostfile reports whether launch commands read the node list from a
// file rather than the command line.
func (l *Library) NeedsHostfile() bool {
	return l.Name == LibOpenMPI || l.Name == LibCharm || l.Launcher == LauncherMpirunRsh
}

// NeedsScript reports whether launches need a remote-shell helper script.
func (l *Library) NeedsScript() bool { return l.Name == LibCharm }

// Command returns the launch command for inv. preload is the shared object
// injected into every rank.
func (l *Library) Command(inv *Invocation, preload string) (string, error) {
	d := inv.Descriptor
	if l.NeedsHostfile() && inv.Hostfile == "" {
		return "", fmt.Errorf("%s launches need a hostfile", l.Launcher)
	}
	switch {
	case l.Name == LibOpenMPI:
		return fmt.Sprintf("mpirun -hostfile %s -np %d -x LD_PRELOAD=%s -oversubscribe --bind-to none %s",
			inv.Hostfile, d.NP, preload, d.Executable()), nil
	case l.Name == LibMVAPICH && l.Launcher == LauncherMpirunRsh:
		return fmt.Sprintf("taskset 0xFFFFFFFF mpirun_rsh -hostfile %s -np %d -ssh -export-all LD_PRELOAD=%s %s",
			inv.Hostfile, d.NP, preload, d.Executable()), nil
	case l.Name == LibMVAPICH:
		return fmt.Sprintf("mpirun -hosts %s -np %d -env LD_PRELOAD %s %s",
			inv.NodeString(), d.NP, preload, d.Executable()), nil
	case l.Name == LibCharm:
		if inv.Script == "" {
			return "", errors.New("charm launches need a helper script")
		}
		values := map[string]string{
			"hostfile": inv.Hostfile,
			"script":   inv.Script,
			"nodes":    strconv.Itoa(len(inv.Nodes)),
		}
		return descriptor.Substitute(d.Executable(), func(k string) (string, bool) {
			v, ok := values[k]
			return v, ok
		}), nil
	}
	return "", fmt.Errorf("%w %q", ErrUnknownLibrary, l.Name)
}

// HelperScript returns the remote-shell helper a charm launch executes on
// behalf of charmrun.
func (l *Library) HelperScript(nodes int) string {
	return fmt.Sprintf("#!/bin/bash -f\nshift\nexec srun -N %d -n $*\n", nodes)
}

// Augment adds the variables the preload library needs to find its local
// rank, plus library-specific settings.
func (l *Library) Augment(env shell.Env, prefix, preload string) {
	switch l.Name {
	case LibOpenMPI:
		env[prefix+"_LOCALID"] = "OMPI_COMM_WORLD_LOCAL_RANK"
		env[prefix+"_LOCAL_SIZE"] = "OMPI_COMM_WORLD_LOCAL_SIZE"
	case LibMVAPICH:
		env[prefix+"_LOCALID"] = "MV2_COMM_WORLD_LOCAL_RANK"
		env[prefix+"_LOCAL_SIZE"] = "MV2_COMM_WORLD_LOCAL_SIZE"
		env[prefix+"_HACK"] = "true"
		env["OMP_NUM_THREADS"] = "1"
	case LibCharm:
		dir := filepath.Dir(preload)
		if cur := env["LD_LIBRARY_PATH"]; cur != "" {
			dir += ":" + cur
		}
		env["LD_LIBRARY_PATH"] = dir
	}
}
