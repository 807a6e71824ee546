package writer

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/specialistvlad/benchgrid/internal/descriptor"
	"github.com/specialistvlad/benchgrid/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
	"golang.org/x/perf/benchfmt"
)

const legacyLine = "INTERFERENCE ,RANK: 0 ,CPU: 3 ,ITER: 1 ,LOCALID: 0 ,NODE: n1 ,STIME: 0.01 ,UTIME: 1.25 ,WTIME: 1.5"

func newDescriptor(t *testing.T) *descriptor.Descriptor {
	t.Helper()
	d, err := descriptor.New(descriptor.NPB, map[string]cty.Value{
		"prog":          cty.StringVal("ep"),
		"np":            cty.NumberIntVal(16),
		"size":          cty.StringVal("B"),
		"wd":            cty.StringVal("/npb"),
		"build_command": cty.StringVal("make ep"),
		"nodes":         cty.NumberIntVal(2),
		"oversub":       cty.NumberIntVal(2),
		"sched":         cty.StringVal("pinned"),
		"affinity":      cty.StringVal("4-11"),
		"vp":            cty.NumberIntVal(32),
	}, nil)
	require.NoError(t, err)
	return d
}

func legacyPayload(t *testing.T, lines ...string) *protocol.Payload {
	t.Helper()
	p, ok := protocol.Extract([]byte(strings.Join(lines, "\n")), "INTERFERENCE")
	require.True(t, ok)
	return p
}

func TestCSV_OneRowPerRecord(t *testing.T) {
	var buf bytes.Buffer
	w := NewCSV(&buf)

	require.NoError(t, w.Submit(2, newDescriptor(t), legacyPayload(t, legacyLine)))
	assert.Equal(t,
		"prog,nodes,np,size,oversub,run,sched,affinity,cpu,rank,node,iter,utime,wtime,stime\n"+
			"ep,2,16,B,2,2,pinned,4-11,3,0,n1,1,1.25,1.5,0.01\n",
		buf.String(), "rows are flushed on every submit")
	require.NoError(t, w.Close())
}

func TestCSV_HeaderOnEmptyOutput(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewCSV(&buf).Close())
	assert.Equal(t, strings.Join(CSVHeader, ",")+"\n", buf.String())
}

func TestCSV_RejectsStructuredPayload(t *testing.T) {
	p := &protocol.Payload{Prefix: "INTERFERENCE", Variant: protocol.Structured, Lines: []string{`{"INTERFERENCE":[]}`}}
	err := NewCSV(&bytes.Buffer{}).Submit(0, newDescriptor(t), p)
	require.ErrorIs(t, err, protocol.ErrVariant)
}

func TestCSV_MissingFieldIsHardError(t *testing.T) {
	err := NewCSV(&bytes.Buffer{}).Submit(0, newDescriptor(t), legacyPayload(t, "INTERFERENCE ,RANK: 0"))
	require.ErrorIs(t, err, protocol.ErrMissingField)
}

func TestJSON_StructuredRecords(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSON(&buf, DefaultSkipList...)
	p, ok := protocol.Extract([]byte(`{"INTERFERENCE":[{"RANK":0,"CPU":3},{"RANK":1,"CPU":4},{"RANK":2,"CPU":5,"np":99}]}`), "INTERFERENCE")
	require.True(t, ok)

	require.NoError(t, w.Submit(1, newDescriptor(t), p))
	assert.Empty(t, buf.String(), "nothing is written before Close")
	assert.Equal(t, 3, w.Rows())
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	var rows []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rows))
	require.Len(t, rows, 3)
	for i, row := range rows {
		assert.EqualValues(t, i, row["RANK"])
		assert.EqualValues(t, 1, row["run"])
		assert.Equal(t, "ep", row["prog"])
		assert.Equal(t, "ep.B.16", row["name"])
		assert.EqualValues(t, 32, row["vp"])
		for _, skipped := range DefaultSkipList {
			assert.NotContains(t, row, skipped)
		}
	}
	assert.EqualValues(t, 16, rows[0]["np"])
	assert.EqualValues(t, 99, rows[2]["np"], "record fields win over descriptor attributes")
}

func TestJSON_NameCanBeSkipped(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSON(&buf, descriptor.AttrName)
	p, ok := protocol.Extract([]byte(legacyLine), "INTERFERENCE")
	require.True(t, ok)
	require.NoError(t, w.Submit(0, newDescriptor(t), p))
	require.NoError(t, w.Close())

	var rows []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.NotContains(t, rows[0], "name")
	assert.Equal(t, "/npb", rows[0]["wd"])
}

func TestJSON_EmptyArray(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewJSON(&buf).Close())
	assert.Equal(t, "[]\n", buf.String())
}

func TestBenchfmt(t *testing.T) {
	var buf bytes.Buffer
	w := NewBenchfmt(&buf)
	require.NoError(t, w.Submit(0, newDescriptor(t), legacyPayload(t, legacyLine)))
	require.NoError(t, w.Close())

	reader := benchfmt.NewReader(&buf, "out.bench")
	require.True(t, reader.Scan())
	res, ok := reader.Result().(*benchfmt.Result)
	require.True(t, ok, "got %T", reader.Result())

	assert.Equal(t, "ep.B.16/rank=0/iter=1/node=n1", string(res.Name.Full()))
	assert.Equal(t, "0", res.GetConfig("run"))
	assert.Equal(t, "16", res.GetConfig("np"))
	assert.Equal(t, "32", res.GetConfig("vp"))
	assert.Equal(t, "", res.GetConfig("wd"))

	u, ok := res.Value("utime-sec/op")
	require.True(t, ok)
	assert.Equal(t, 1.25, u)
	s, ok := res.Value("stime-sec/op")
	require.True(t, ok)
	assert.Equal(t, 0.01, s)
}

func TestNewAndCreate(t *testing.T) {
	_, err := New("xml", &bytes.Buffer{})
	require.ErrorIs(t, err, ErrUnknownKind)
	assert.Equal(t, []string{"benchfmt", "csv", "json"}, Kinds())

	path := filepath.Join(t.TempDir(), "out.json")
	w, err := Create(KindJSON, path)
	require.NoError(t, err)
	assert.Equal(t, KindJSON, w.Kind())
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(data))

	_, err = Create("xml", path)
	require.ErrorIs(t, err, ErrUnknownKind)
}
