package writer

import (
	"io"

	"github.com/specialistvlad/benchgrid/internal/descriptor"
	"github.com/specialistvlad/benchgrid/internal/protocol"
	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// DefaultSkipList names descriptor attributes left out of JSON rows.
var DefaultSkipList = []string{descriptor.AttrWorkDir, descriptor.AttrBuildCommand, descriptor.AttrTemplate}

// JSON collects rows in memory and writes them as one array on Close.
// Rows of a sweep that dies before Close are lost.
type JSON struct {
	w      io.Writer
	skip   map[string]struct{}
	rows   []cty.Value
	closed bool
}

// NewJSON creates a JSON writer that omits the attributes in skip.
func NewJSON(w io.Writer, skip ...string) *JSON {
	j := &JSON{w: w, skip: make(map[string]struct{}, len(skip))}
	for _, s := range skip {
		j.skip[s] = struct{}{}
	}
	return j
}

func (j *JSON) Kind() string { return KindJSON }

// Submit adds one row per record. Record fields override descriptor
// attributes of the same name, which override "run" and "name".
func (j *JSON) Submit(run int, d *descriptor.Descriptor, p *protocol.Payload) error {
	docs, err := p.Documents()
	if err != nil {
		return err
	}
	for _, doc := range docs {
		row := map[string]cty.Value{"run": cty.NumberIntVal(int64(run))}
		if _, skip := j.skip[descriptor.AttrName]; !skip {
			row[descriptor.AttrName] = cty.StringVal(d.Name())
		}
		for _, a := range d.Attributes() {
			if _, skip := j.skip[a.Name]; skip || a.Value.IsNull() {
				continue
			}
			row[a.Name] = a.Value
		}
		for k, v := range doc {
			if v.IsNull() {
				continue
			}
			row[k] = v
		}
		j.rows = append(j.rows, cty.ObjectVal(row))
	}
	return nil
}

// Rows returns the number of rows collected so far.
func (j *JSON) Rows() int { return len(j.rows) }

// Close serializes every collected row. Later calls do nothing.
func (j *JSON) Close() error {
	if j.closed {
		return nil
	}
	j.closed = true

	all := cty.EmptyTupleVal
	if len(j.rows) > 0 {
		all = cty.TupleVal(j.rows)
	}
	data, err := ctyjson.Marshal(all, all.Type())
	if err != nil {
		return err
	}
	_, err = j.w.Write(append(data, '\n'))
	return err
}
