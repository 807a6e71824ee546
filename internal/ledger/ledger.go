// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

// Package ledger tracks the state of every (run, descriptor) configuration
// of a sweep.
//
// A configuration starts Pending and moves through exactly one of these
// paths:
//
//	Pending -> Skipped
//	Pending -> CompileFailed
//	Pending -> Running -> Crashed | NoData | Submitted
//
// Every state except Pending and Running is terminal.
package ledger

import (
	"errors"
	"fmt"
	"sync"
)

// State is the execution state of a configuration.
type State int32

const (
	// Pending indicates the configuration has not been looked at yet.
	Pending State = iota
	// Skipped indicates the filter excluded the descriptor.
	Skipped
	// CompileFailed indicates the descriptor's build failed.
	CompileFailed
	// Running indicates the benchmark process has been started.
	Running
	// Crashed indicates the process could not run or exited non-zero.
	Crashed
	// NoData indicates the process succeeded without profiling output.
	NoData
	// Submitted indicates the records were handed to the writer.
	Submitted
)

var stateNames = [...]string{"pending", "skipped", "compile_failed", "running", "crashed", "no_data", "submitted"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool { return s != Pending && s != Running }

// ErrInvalidTransition is returned for transitions the state machine does
// not allow.
var ErrInvalidTransition = errors.New("invalid state transition")

var transitions = map[State][]State{
	Pending: {Skipped, CompileFailed, Running},
	Running: {Crashed, NoData, Submitted},
}

// Key identifies a configuration: the run number and the descriptor's
// position in the sweep.
type Key struct {
	Run        int
	Descriptor int
}

// Ledger records configuration states.
type Ledger struct {
	mu     sync.Mutex
	states map[Key]State
	order  []Key
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{states: make(map[Key]State)}
}

// Get returns the state of k. Unknown configurations are Pending.
func (l *Ledger) Get(k Key) State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.states[k]
}

// Transition moves k to next.
func (l *Ledger) Transition(k Key, next State) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	cur, seen := l.states[k]
	allowed := false
	for _, s := range transitions[cur] {
		allowed = allowed || s == next
	}
	if !allowed {
		return fmt.Errorf("%w: %v -> %v for run %d descriptor %d", ErrInvalidTransition, cur, next, k.Run, k.Descriptor)
	}
	if !seen {
		l.order = append(l.order, k)
	}
	l.states[k] = next
	return nil
}

// Counts returns the number of configurations per state.
func (l *Ledger) Counts() map[State]int {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[State]int)
	for _, s := range l.states {
		out[s]++
	}
	return out
}

// Summary returns state/count pairs for every state that occurred, in state
// order, suitable as slog attributes.
func (l *Ledger) Summary() []any {
	counts := l.Counts()
	var out []any
	for s := Pending; s <= Submitted; s++ {
		if n := counts[s]; n > 0 {
			out = append(out, s.String(), n)
		}
	}
	return out
}

// Keys returns every configuration that left Pending, in first-seen order.
func (l *Ledger) Keys() []Key {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Key(nil), l.order...)
}
