package writer

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"

	"github.com/specialistvlad/benchgrid/internal/descriptor"
	"github.com/specialistvlad/benchgrid/internal/protocol"
	"golang.org/x/perf/benchfmt"
)

// Benchfmt writes records in the Go benchmark format so that sweeps can be
// compared with benchstat. Descriptor attributes and the run number become
// file configuration; rank, iteration and node become name parts.
type Benchfmt struct {
	w *benchfmt.Writer
}

// NewBenchfmt creates a benchmark-format writer.
func NewBenchfmt(w io.Writer) *Benchfmt {
	return &Benchfmt{w: benchfmt.NewWriter(w)}
}

func (b *Benchfmt) Kind() string { return KindBenchfmt }

func (b *Benchfmt) Submit(run int, d *descriptor.Descriptor, p *protocol.Payload) error {
	records, err := p.Records()
	if err != nil {
		return err
	}
	config := fileConfig(run, d)
	for _, r := range records {
		res := &benchfmt.Result{
			Config: config,
			Name:   benchfmt.Name(fmt.Sprintf("%s/rank=%s/iter=%s/node=%s", sanitize(d.Name()), r["RANK"], r["ITER"], sanitize(r["NODE"]))),
			Iters:  1,
		}
		for _, f := range []struct{ key, unit string }{
			{"UTIME", "utime-sec/op"},
			{"WTIME", "wtime-sec/op"},
			{"STIME", "stime-sec/op"},
		} {
			v, err := r.Float(f.key)
			if err != nil {
				return err
			}
			res.Values = append(res.Values, benchfmt.Value{Value: v, Unit: f.unit})
		}
		if err := b.w.Write(res); err != nil {
			return err
		}
	}
	return nil
}

// Close has nothing to flush; every Submit writes through.
func (b *Benchfmt) Close() error { return nil }

func fileConfig(run int, d *descriptor.Descriptor) []benchfmt.Config {
	config := []benchfmt.Config{{Key: "run", Value: []byte(strconv.Itoa(run)), File: true}}
	for _, a := range d.Attributes() {
		switch a.Name {
		case descriptor.AttrWorkDir, descriptor.AttrBuildCommand, descriptor.AttrTemplate:
			continue
		}
		v := descriptor.FormatValue(a.Value)
		if v == "" {
			continue
		}
		config = append(config, benchfmt.Config{
			Key:   strings.ToLower(a.Name),
			Value: []byte(strings.ReplaceAll(v, "\n", " ")),
			File:  true,
		})
	}
	return config
}

// sanitize makes s usable inside a benchmark name, which ends at the first
// space.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return '_'
		}
		return r
	}, s)
}
