// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package descriptor

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownKind is returned by LookupKind for names that are not registered.
var ErrUnknownKind = errors.New("unknown descriptor kind")

// Kind describes a family of benchmarks that share naming and build
// conventions.
type Kind struct {
	Name string
	// DefaultTemplate is used when a sweep does not set "template".
	DefaultTemplate string
	// DefaultBuildCommand is used when a sweep does not set "build_command".
	DefaultBuildCommand string
	// BinaryPrefix is prepended to the rendered name to form the executable.
	BinaryPrefix string
}

var (
	// NPB is the NAS Parallel Benchmarks kind. Binaries are named
	// <prog>.<size>.<np> and built into ./bin.
	NPB = &Kind{
		Name:            "npb",
		DefaultTemplate: "{prog}.{size}.{np}",
		BinaryPrefix:    "./bin/",
	}

	// MiniApp covers standalone mini-applications whose command line comes
	// entirely from the sweep's template.
	MiniApp = &Kind{
		Name:                "miniapp",
		DefaultBuildCommand: "make",
	}
)

var kinds = map[string]*Kind{
	NPB.Name:     NPB,
	MiniApp.Name: MiniApp,
}

// LookupKind returns the registered kind with the given name.
func LookupKind(name string) (*Kind, error) {
	k, ok := kinds[name]
	if !ok {
		return nil, fmt.Errorf("%w %q (known: %v)", ErrUnknownKind, name, KindNames())
	}
	return k, nil
}

// KindNames returns the registered kind names in lexical order.
func KindNames() []string {
	names := make([]string, 0, len(kinds))
	for n := range kinds {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func sortStrings(s []string) { sort.Strings(s) }
