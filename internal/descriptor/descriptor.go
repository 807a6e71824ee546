// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file defines the Descriptor, the fully resolved description of one
// benchmark variant: which program, which problem size, how many processes,
// where it lives and how to build and launch it.
//
// A sweep file declares many variants at once through axes and resolvers.
// The expander turns every combination into exactly one Descriptor. From that
// point on, all values are concrete; nothing downstream evaluates
// expressions.
//
// The attributes every consumer relies on are typed fields. Sweep-specific
// extras (`size_param`, `vp` and whatever else a sweep declares) live in a
// side table of cty values, so that the filter and the JSON writer can still
// see them with their runtime type.
package descriptor

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

// Names of the core attributes.
const (
	AttrProg         = "prog"
	AttrNP           = "np"
	AttrSize         = "size"
	AttrWorkDir      = "wd"
	AttrBuildCommand = "build_command"
	AttrTemplate     = "template"
	AttrSched        = "sched"
	AttrAffinity     = "affinity"
	AttrNodes        = "nodes"
	AttrOversub      = "oversub"

	// AttrName is the rendered name; it is not a sweep attribute.
	AttrName = "name"
)

// coreAttrs lists the core attributes in the order they are reported.
var coreAttrs = []string{
	AttrProg, AttrNP, AttrSize, AttrWorkDir, AttrBuildCommand,
	AttrTemplate, AttrSched, AttrAffinity, AttrNodes, AttrOversub,
}

// ErrInvalidAttribute is returned when a core attribute is missing or has a
// value that cannot be converted to its declared type.
var ErrInvalidAttribute = errors.New("invalid descriptor attribute")

// Identity is the cache key of a descriptor. Descriptors with the same
// identity produce the same binary.
type Identity struct {
	Prog    string
	NP      int
	Size    string
	WorkDir string
}

func (id Identity) String() string {
	return fmt.Sprintf("%s.%s.%d@%s", id.Prog, id.Size, id.NP, id.WorkDir)
}

// Attribute is a named attribute value as reported by Attributes.
type Attribute struct {
	Name  string
	Value cty.Value
}

// Descriptor is one concrete benchmark variant.
type Descriptor struct {
	Prog         string
	NP           int
	Size         string
	WorkDir      string
	BuildCommand string
	Template     string
	Sched        string
	Affinity     string
	Nodes        int
	Oversub      int

	extras     map[string]cty.Value
	extraOrder []string

	kind   *Kind
	name   string
	failed bool
}

// New builds a descriptor of the given kind from resolved attribute values.
// order is the declaration order of the attributes and decides the order in
// which extras are reported. Attributes missing from order are appended in
// lexical order.
func New(kind *Kind, attrs map[string]cty.Value, order []string) (*Descriptor, error) {
	if kind == nil {
		return nil, errors.New("descriptor kind is required")
	}
	d := &Descriptor{
		Nodes:        1,
		Oversub:      1,
		Template:     kind.DefaultTemplate,
		BuildCommand: kind.DefaultBuildCommand,
		extras:       make(map[string]cty.Value),
		kind:         kind,
	}

	required := map[string]bool{AttrProg: true, AttrNP: true, AttrSize: true, AttrWorkDir: true}
	for name := range required {
		if v, ok := attrs[name]; !ok || v.IsNull() {
			return nil, fmt.Errorf("%w: %q is required for %s descriptors", ErrInvalidAttribute, name, kind.Name)
		}
	}

	for _, name := range orderedNames(attrs, order) {
		v := attrs[name]
		var err error
		switch name {
		case AttrProg:
			err = decodeString(v, &d.Prog)
		case AttrNP:
			err = decodeInt(v, &d.NP)
		case AttrSize:
			err = decodeString(v, &d.Size)
		case AttrWorkDir:
			err = decodeString(v, &d.WorkDir)
		case AttrBuildCommand:
			err = decodeString(v, &d.BuildCommand)
		case AttrTemplate:
			err = decodeString(v, &d.Template)
		case AttrSched:
			err = decodeString(v, &d.Sched)
		case AttrAffinity:
			err = decodeString(v, &d.Affinity)
		case AttrNodes:
			err = decodeInt(v, &d.Nodes)
		case AttrOversub:
			err = decodeInt(v, &d.Oversub)
		default:
			d.extras[name] = v
			d.extraOrder = append(d.extraOrder, name)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %s", ErrInvalidAttribute, name, err)
		}
	}

	for _, c := range []struct {
		name  string
		value int
	}{{AttrNP, d.NP}, {AttrNodes, d.Nodes}, {AttrOversub, d.Oversub}} {
		if c.value < 1 {
			return nil, fmt.Errorf("%w: %q must be at least 1, got %d", ErrInvalidAttribute, c.name, c.value)
		}
	}
	if d.Template == "" {
		return nil, fmt.Errorf("%w: %q is required for %s descriptors", ErrInvalidAttribute, AttrTemplate, kind.Name)
	}
	if d.BuildCommand == "" {
		return nil, fmt.Errorf("%w: %q is required for %s descriptors", ErrInvalidAttribute, AttrBuildCommand, kind.Name)
	}
	d.name = Substitute(d.Template, d.lookupString)
	return d, nil
}

func orderedNames(attrs map[string]cty.Value, order []string) []string {
	seen := make(map[string]bool, len(attrs))
	names := make([]string, 0, len(attrs))
	for _, n := range order {
		if _, ok := attrs[n]; ok && !seen[n] {
			seen[n] = true
			names = append(names, n)
		}
	}
	var rest []string
	for n := range attrs {
		if !seen[n] {
			rest = append(rest, n)
		}
	}
	sortStrings(rest)
	return append(names, rest...)
}

func decodeString(v cty.Value, dst *string) error {
	if v.IsNull() {
		return nil
	}
	sv, err := convert.Convert(v, cty.String)
	if err != nil {
		return err
	}
	return gocty.FromCtyValue(sv, dst)
}

func decodeInt(v cty.Value, dst *int) error {
	if v.IsNull() {
		return nil
	}
	nv, err := convert.Convert(v, cty.Number)
	if err != nil {
		return err
	}
	return gocty.FromCtyValue(nv, dst)
}

// Kind returns the kind that produced the descriptor.
func (d *Descriptor) Kind() *Kind { return d.kind }

// Name is the template rendered with the descriptor's attributes.
func (d *Descriptor) Name() string { return d.name }

// Executable is the command line that starts the benchmark binary, relative
// to the working directory.
func (d *Descriptor) Executable() string { return d.kind.BinaryPrefix + d.name }

// Identity returns the cache key of the descriptor.
func (d *Descriptor) Identity() Identity {
	return Identity{Prog: d.Prog, NP: d.NP, Size: d.Size, WorkDir: d.WorkDir}
}

// Failed reports whether a compile attempt for this descriptor failed.
func (d *Descriptor) Failed() bool { return d.failed }

// MarkFailed records a failed compile attempt. It is never reset.
func (d *Descriptor) MarkFailed() { d.failed = true }

// Extras returns the names of the sweep-specific attributes in declaration
// order.
func (d *Descriptor) Extras() []string {
	return append([]string(nil), d.extraOrder...)
}

// Attr looks up a core or extra attribute, or the rendered "name".
func (d *Descriptor) Attr(name string) (cty.Value, bool) {
	switch name {
	case AttrProg:
		return cty.StringVal(d.Prog), true
	case AttrNP:
		return cty.NumberIntVal(int64(d.NP)), true
	case AttrSize:
		return cty.StringVal(d.Size), true
	case AttrWorkDir:
		return cty.StringVal(d.WorkDir), true
	case AttrBuildCommand:
		return cty.StringVal(d.BuildCommand), true
	case AttrTemplate:
		return cty.StringVal(d.Template), true
	case AttrSched:
		return cty.StringVal(d.Sched), true
	case AttrAffinity:
		return cty.StringVal(d.Affinity), true
	case AttrNodes:
		return cty.NumberIntVal(int64(d.Nodes)), true
	case AttrOversub:
		return cty.NumberIntVal(int64(d.Oversub)), true
	case AttrName:
		if d.name == "" {
			return cty.NilVal, false
		}
		return cty.StringVal(d.name), true
	}
	v, ok := d.extras[name]
	return v, ok
}

// Attributes returns every core attribute followed by the extras.
func (d *Descriptor) Attributes() []Attribute {
	out := make([]Attribute, 0, len(coreAttrs)+len(d.extraOrder))
	for _, name := range append(append([]string(nil), coreAttrs...), d.extraOrder...) {
		v, _ := d.Attr(name)
		out = append(out, Attribute{Name: name, Value: v})
	}
	return out
}

func (d *Descriptor) lookupString(name string) (string, bool) {
	if name == "name" {
		return "", false
	}
	v, ok := d.Attr(name)
	if !ok {
		return "", false
	}
	return FormatValue(v), true
}

func (d *Descriptor) String() string {
	var b strings.Builder
	b.WriteString(d.name)
	if d.failed {
		b.WriteString(" (failed)")
	}
	return b.String()
}
