// Package writer turns profiling records into result files.
package writer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/specialistvlad/benchgrid/internal/descriptor"
	"github.com/specialistvlad/benchgrid/internal/protocol"
)

// Writer kinds.
const (
	KindCSV      = "csv"
	KindJSON     = "json"
	KindBenchfmt = "benchfmt"
)

// ErrUnknownKind is returned for writer kinds that do not exist.
var ErrUnknownKind = errors.New("unknown writer kind")

// Writer consumes the payload of every successful invocation.
type Writer interface {
	// Kind is the writer kind, also exported to the benchmark so the
	// preloaded library emits the matching protocol variant.
	Kind() string
	Submit(run int, d *descriptor.Descriptor, p *protocol.Payload) error
	Close() error
}

var constructors = map[string]func(io.Writer) Writer{
	KindCSV:      func(w io.Writer) Writer { return NewCSV(w) },
	KindJSON:     func(w io.Writer) Writer { return NewJSON(w, DefaultSkipList...) },
	KindBenchfmt: func(w io.Writer) Writer { return NewBenchfmt(w) },
}

// Kinds returns the supported writer kinds in lexical order.
func Kinds() []string {
	out := make([]string, 0, len(constructors))
	for k := range constructors {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Valid reports whether kind names a writer.
func Valid(kind string) bool {
	_, ok := constructors[kind]
	return ok
}

// New returns a writer of the given kind writing to w.
func New(kind string, w io.Writer) (Writer, error) {
	ctor, ok := constructors[kind]
	if !ok {
		return nil, fmt.Errorf("%w %q (use one of %v)", ErrUnknownKind, kind, Kinds())
	}
	return ctor(w), nil
}

// Create opens path for writing and returns a writer of the given kind
// that closes the file on Close.
func Create(kind, path string) (Writer, error) {
	if !Valid(kind) {
		return nil, fmt.Errorf("%w %q (use one of %v)", ErrUnknownKind, kind, Kinds())
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	w, _ := New(kind, f)
	return &fileWriter{Writer: w, f: f}, nil
}

type fileWriter struct {
	Writer
	f *os.File
}

func (fw *fileWriter) Close() error {
	return errors.Join(fw.Writer.Close(), fw.f.Close())
}
