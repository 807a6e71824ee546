package writer

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/specialistvlad/benchgrid/internal/descriptor"
	"github.com/specialistvlad/benchgrid/internal/protocol"
)

// CSVHeader is the column layout of CSV output.
var CSVHeader = []string{
	"prog", "nodes", "np", "size", "oversub", "run", "sched", "affinity",
	"cpu", "rank", "node", "iter", "utime", "wtime", "stime",
}

// CSV writes one row per legacy record and flushes after every
// submission.
type CSV struct {
	w      *csv.Writer
	header bool
}

// NewCSV creates a CSV writer.
func NewCSV(w io.Writer) *CSV {
	return &CSV{w: csv.NewWriter(w)}
}

func (c *CSV) Kind() string { return KindCSV }

func (c *CSV) Submit(run int, d *descriptor.Descriptor, p *protocol.Payload) error {
	records, err := p.Records()
	if err != nil {
		return err
	}
	if !c.header {
		if err := c.w.Write(CSVHeader); err != nil {
			return err
		}
		c.header = true
	}
	for _, r := range records {
		row := []string{
			d.Prog, strconv.Itoa(d.Nodes), strconv.Itoa(d.NP), d.Size,
			strconv.Itoa(d.Oversub), strconv.Itoa(run), d.Sched, d.Affinity,
			r["CPU"], r["RANK"], r["NODE"], r["ITER"], r["UTIME"], r["WTIME"], r["STIME"],
		}
		if err := c.w.Write(row); err != nil {
			return err
		}
	}
	c.w.Flush()
	return c.w.Error()
}

// Close writes the header if nothing was submitted.
func (c *CSV) Close() error {
	if !c.header {
		c.header = true
		if err := c.w.Write(CSVHeader); err != nil {
			return err
		}
	}
	c.w.Flush()
	return c.w.Error()
}
