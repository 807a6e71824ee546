package shell

import (
	"os"
	"sort"
	"strings"
)

// Env is a set of environment variables. Callers treat a shared Env as
// read-only and Clone it before adding invocation-specific entries.
type Env map[string]string

// EnvFromOS snapshots the process environment.
func EnvFromOS() Env {
	return EnvFromList(os.Environ())
}

// EnvFromList parses KEY=VALUE entries. Later entries win.
func EnvFromList(list []string) Env {
	env := make(Env, len(list))
	for _, kv := range list {
		if k, v, ok := strings.Cut(kv, "="); ok && k != "" {
			env[k] = v
		}
	}
	return env
}

// Clone returns an independent copy.
func (e Env) Clone() Env {
	out := make(Env, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// With returns a copy of e extended by the given entries.
func (e Env) With(extra map[string]string) Env {
	out := e.Clone()
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// List returns the entries as KEY=VALUE strings sorted by key.
func (e Env) List() []string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+e[k])
	}
	return out
}
