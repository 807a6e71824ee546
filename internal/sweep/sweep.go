// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

// Package sweep expands a parameter specification into the cartesian product
// of its axes, resolving derived parameters once per combination.
package sweep

import (
	"context"
	"errors"
	"fmt"

	"github.com/specialistvlad/benchgrid/internal/ctxlog"
	"github.com/specialistvlad/benchgrid/internal/descriptor"
	"github.com/zclconf/go-cty/cty"
)

// ErrUnresolvedDependency is returned when a resolver names a parameter that
// is itself a resolver, or that does not exist.
var ErrUnresolvedDependency = errors.New("unresolved dependency")

// ResolverFunc computes a parameter from the values of its formal parameters.
type ResolverFunc func(args map[string]cty.Value) (cty.Value, error)

// Resolver is a derived parameter.
type Resolver struct {
	Params []string
	Fn     ResolverFunc
}

// Param is one named entry of a specification. Exactly one of Value, Axis
// and Resolver is meaningful; Axis takes precedence when non-nil.
type Param struct {
	Name     string
	Value    cty.Value
	Axis     []cty.Value
	Resolver *Resolver
}

// Scalar returns a fixed parameter.
func Scalar(name string, v cty.Value) Param { return Param{Name: name, Value: v} }

// Axis returns a parameter that contributes one dimension to the product.
func Axis(name string, values ...cty.Value) Param {
	if values == nil {
		values = []cty.Value{}
	}
	return Param{Name: name, Axis: values}
}

// Resolve returns a parameter computed from other parameters.
func Resolve(name string, params []string, fn ResolverFunc) Param {
	return Param{Name: name, Resolver: &Resolver{Params: params, Fn: fn}}
}

func (p Param) isAxis() bool     { return p.Axis != nil }
func (p Param) isResolver() bool { return p.Axis == nil && p.Resolver != nil }

// Spec is an ordered parameter list together with the kind of descriptor it
// produces.
type Spec struct {
	Name   string
	Kind   *descriptor.Kind
	Params []Param
}

// Expand produces one descriptor per combination of axis values. The first
// axis varies slowest.
func Expand(ctx context.Context, spec Spec) ([]*descriptor.Descriptor, error) {
	logger := ctxlog.FromContext(ctx)

	var axes []Param
	raw := make(map[string]Param, len(spec.Params))
	order := make([]string, 0, len(spec.Params))
	for _, p := range spec.Params {
		if _, dup := raw[p.Name]; dup {
			return nil, fmt.Errorf("sweep %q: parameter %q declared twice", spec.Name, p.Name)
		}
		raw[p.Name] = p
		order = append(order, p.Name)
		if p.isAxis() {
			axes = append(axes, p)
		}
	}

	// Dependencies do not change between combinations, so they are checked
	// once before anything is evaluated.
	for _, p := range spec.Params {
		if !p.isResolver() {
			continue
		}
		for _, dep := range p.Resolver.Params {
			other, ok := raw[dep]
			switch {
			case !ok:
				return nil, fmt.Errorf("sweep %q: parameter %q needs unknown parameter %q: %w", spec.Name, p.Name, dep, ErrUnresolvedDependency)
			case other.isResolver():
				return nil, fmt.Errorf("sweep %q: parameter %q needs derived parameter %q: %w", spec.Name, p.Name, dep, ErrUnresolvedDependency)
			}
		}
	}

	var out []*descriptor.Descriptor
	err := product(axes, func(combo map[string]cty.Value) error {
		attrs := make(map[string]cty.Value, len(spec.Params))
		for _, p := range spec.Params {
			switch {
			case p.isAxis():
				attrs[p.Name] = combo[p.Name]
			case !p.isResolver():
				attrs[p.Name] = p.Value
			}
		}
		for _, p := range spec.Params {
			if !p.isResolver() {
				continue
			}
			args := make(map[string]cty.Value, len(p.Resolver.Params))
			for _, dep := range p.Resolver.Params {
				args[dep] = attrs[dep]
			}
			v, err := p.Resolver.Fn(args)
			if err != nil {
				return fmt.Errorf("sweep %q: resolving %q: %w", spec.Name, p.Name, err)
			}
			attrs[p.Name] = v
		}
		d, err := descriptor.New(spec.Kind, attrs, order)
		if err != nil {
			return fmt.Errorf("sweep %q: %w", spec.Name, err)
		}
		out = append(out, d)
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Debug("Expanded sweep.", "sweep", spec.Name, "axes", len(axes), "descriptors", len(out))
	return out, nil
}

// product calls fn for every combination of axis values, odometer style with
// the last axis varying fastest.
func product(axes []Param, fn func(map[string]cty.Value) error) error {
	for _, a := range axes {
		if len(a.Axis) == 0 {
			return nil
		}
	}
	idx := make([]int, len(axes))
	for {
		combo := make(map[string]cty.Value, len(axes))
		for i, a := range axes {
			combo[a.Name] = a.Axis[idx[i]]
		}
		if err := fn(combo); err != nil {
			return err
		}
		i := len(axes) - 1
		for ; i >= 0; i-- {
			idx[i]++
			if idx[i] < len(axes[i].Axis) {
				break
			}
			idx[i] = 0
		}
		if i < 0 {
			return nil
		}
	}
}

// Set is an ordered collection of expansion results.
type Set struct {
	Descriptors []*descriptor.Descriptor
}

// Append adds the results of another expansion after the current ones.
func (s *Set) Append(ds ...*descriptor.Descriptor) *Set {
	s.Descriptors = append(s.Descriptors, ds...)
	return s
}

// ExpandAll expands every spec and concatenates the results in order.
func ExpandAll(ctx context.Context, specs []Spec) (*Set, error) {
	set := &Set{}
	for _, spec := range specs {
		ds, err := Expand(ctx, spec)
		if err != nil {
			return nil, err
		}
		set.Append(ds...)
	}
	return set, nil
}
