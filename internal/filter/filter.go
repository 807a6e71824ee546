// Package filter implements attribute selectors of the form
// "key=v1,v2:key2=v3".
package filter

import (
	"errors"
	"fmt"
	"strings"

	"github.com/specialistvlad/benchgrid/internal/descriptor"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// ErrMalformed is returned by Parse for clauses that are not key=values.
var ErrMalformed = errors.New("malformed filter")

// Clause accepts a descriptor whose attribute Key equals one of Values.
type Clause struct {
	Key    string
	Values []string
}

// Filter is a conjunction of clauses. The nil Filter accepts everything.
type Filter struct {
	clauses []Clause
}

// Parse reads a filter expression. An empty string yields a filter that
// never skips.
func Parse(s string) (*Filter, error) {
	f := &Filter{}
	s = strings.TrimSpace(s)
	if s == "" {
		return f, nil
	}
	for _, part := range strings.Split(s, ":") {
		key, values, ok := strings.Cut(part, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: clause %q is not key=value", ErrMalformed, part)
		}
		c := Clause{Key: key}
		for _, v := range strings.Split(values, ",") {
			if v = strings.TrimSpace(v); v != "" {
				c.Values = append(c.Values, v)
			}
		}
		if len(c.Values) == 0 {
			return nil, fmt.Errorf("%w: clause %q has no values", ErrMalformed, part)
		}
		f.clauses = append(f.clauses, c)
	}
	return f, nil
}

// Clauses returns a copy of the parsed clauses.
func (f *Filter) Clauses() []Clause {
	if f == nil {
		return nil
	}
	return append([]Clause(nil), f.clauses...)
}

// Skip reports whether d is excluded: some clause names an attribute of d
// and none of its values equals that attribute. Clauses naming attributes d
// does not have are ignored.
func (f *Filter) Skip(d *descriptor.Descriptor) bool {
	if f == nil {
		return false
	}
	for _, c := range f.clauses {
		attr, ok := d.Attr(c.Key)
		if !ok || attr.IsNull() || !attr.IsKnown() {
			continue
		}
		if !matchesAny(attr, c.Values) {
			return true
		}
	}
	return false
}

// matchesAny converts each candidate to the attribute's type before
// comparing, so "08" matches the number 8. Candidates that cannot be
// converted never match.
func matchesAny(attr cty.Value, candidates []string) bool {
	for _, raw := range candidates {
		v, err := convert.Convert(cty.StringVal(raw), attr.Type())
		if err != nil {
			continue
		}
		if eq := v.Equals(attr); eq.IsKnown() && eq.True() {
			return true
		}
	}
	return false
}

func (f *Filter) String() string {
	if f == nil {
		return ""
	}
	parts := make([]string, 0, len(f.clauses))
	for _, c := range f.clauses {
		parts = append(parts, c.Key+"="+strings.Join(c.Values, ","))
	}
	return strings.Join(parts, ":")
}
