// Package protocol extracts the profiling records the preloaded library
// prints among a benchmark's output.
//
// Two variants exist. Legacy lines start with the prefix followed by
// comma-separated "KEY: value" pairs, one line per rank and iteration:
//
//	INTERFERENCE ,RANK: 0 ,CPU: 3 ,ITER: 1 ,LOCALID: 0 ,NODE: n1 ,STIME: 0.01 ,UTIME: 1.2 ,WTIME: 1.3
//
// The structured variant is a single JSON object whose prefix key holds an
// array with one object per record:
//
//	{"INTERFERENCE":[{"RANK":0,"CPU":3,...},...]}
package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// Variant identifies the output format.
type Variant int

const (
	Legacy Variant = iota
	Structured
)

func (v Variant) String() string {
	switch v {
	case Legacy:
		return "legacy"
	case Structured:
		return "structured"
	}
	return fmt.Sprintf("Variant(%d)", int(v))
}

var (
	// ErrMissingField is returned for legacy lines lacking a required key.
	ErrMissingField = errors.New("missing field")
	// ErrMalformedPayload is returned for structured payloads that are not
	// a JSON object holding an array of objects under the prefix.
	ErrMalformedPayload = errors.New("malformed payload")
	// ErrVariant is returned when a consumer needs the other variant.
	ErrVariant = errors.New("unexpected payload variant")
)

// RequiredKeys must be present in every legacy record.
var RequiredKeys = []string{"CPU", "RANK", "NODE", "ITER", "UTIME", "WTIME", "STIME"}

// Record is one legacy record.
type Record map[string]string

// Float parses the value of key as a number.
func (r Record) Float(key string) (float64, error) {
	s, ok := r[key]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrMissingField, key)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("field %s: %w", key, err)
	}
	return f, nil
}

// Int parses the value of key as an integer.
func (r Record) Int(key string) (int, error) {
	s, ok := r[key]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrMissingField, key)
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("field %s: %w", key, err)
	}
	return i, nil
}

// Document is one record with typed values.
type Document map[string]cty.Value

// Payload is the tagged part of a process's output.
type Payload struct {
	Prefix  string
	Variant Variant
	// Lines holds every tagged legacy line, or the single structured line.
	Lines []string
}

// Extract finds the tagged lines in output. It reports false when there are
// none. The first tagged line that opens a JSON object selects the
// structured variant.
func Extract(output []byte, prefix string) (*Payload, bool) {
	var legacy []string
	for _, line := range strings.Split(string(output), "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "{") && strings.Contains(trimmed, strconv.Quote(prefix)):
			return &Payload{Prefix: prefix, Variant: Structured, Lines: []string{trimmed}}, true
		case strings.HasPrefix(trimmed, prefix):
			legacy = append(legacy, trimmed)
		}
	}
	if len(legacy) == 0 {
		return nil, false
	}
	return &Payload{Prefix: prefix, Variant: Legacy, Lines: legacy}, true
}

// Records parses a legacy payload.
func (p *Payload) Records() ([]Record, error) {
	if p.Variant != Legacy {
		return nil, fmt.Errorf("%w: need legacy, got %s", ErrVariant, p.Variant)
	}
	out := make([]Record, 0, len(p.Lines))
	for _, line := range p.Lines {
		r, err := ParseLegacy(line)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// Documents parses either variant into typed records. Legacy values become
// strings.
func (p *Payload) Documents() ([]Document, error) {
	if p.Variant == Structured {
		return ParseStructured(p.Lines[0], p.Prefix)
	}
	records, err := p.Records()
	if err != nil {
		return nil, err
	}
	out := make([]Document, 0, len(records))
	for _, r := range records {
		doc := make(Document, len(r))
		for k, v := range r {
			doc[k] = cty.StringVal(v)
		}
		out = append(out, doc)
	}
	return out, nil
}

// ParseLegacy splits a tagged line into its key/value pairs. Segments
// without a colon, such as the prefix itself, are ignored.
func ParseLegacy(line string) (Record, error) {
	r := make(Record)
	for _, seg := range strings.Split(line, ",") {
		k, v, ok := strings.Cut(seg, ":")
		if !ok {
			continue
		}
		r[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	for _, k := range RequiredKeys {
		if _, ok := r[k]; !ok {
			return nil, fmt.Errorf("%w %s in %q", ErrMissingField, k, line)
		}
	}
	return r, nil
}

// ParseStructured decodes a structured line into one document per element
// of the array under prefix.
func ParseStructured(line, prefix string) ([]Document, error) {
	data := []byte(line)
	ty, err := ctyjson.ImpliedType(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedPayload, err)
	}
	v, err := ctyjson.Unmarshal(data, ty)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedPayload, err)
	}
	if !ty.IsObjectType() || !ty.HasAttribute(prefix) {
		return nil, fmt.Errorf("%w: no %q key", ErrMalformedPayload, prefix)
	}
	list := v.GetAttr(prefix)
	lty := list.Type()
	if list.IsNull() || !(lty.IsTupleType() || lty.IsListType()) {
		return nil, fmt.Errorf("%w: %q is not an array", ErrMalformedPayload, prefix)
	}

	out := make([]Document, 0, list.LengthInt())
	for it := list.ElementIterator(); it.Next(); {
		idx, ev := it.Element()
		if ev.IsNull() || !ev.Type().IsObjectType() {
			return nil, fmt.Errorf("%w: element %s is not an object", ErrMalformedPayload, idx.AsBigFloat().String())
		}
		out = append(out, Document(ev.AsValueMap()))
	}
	return out, nil
}
