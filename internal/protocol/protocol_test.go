package protocol

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

const legacyOutput = ` NAS Parallel Benchmarks 3.3 -- EP Benchmark
INTERFERENCE ,RANK: 0 ,CPU: 3 ,ITER: 1 ,LOCALID: 0 ,NODE: n1 ,STIME: 0.01 ,UTIME: 1.25 ,WTIME: 1.5
 Mop/s total = 123.4
  INTERFERENCE ,RANK: 1 ,CPU: 4 ,ITER: 1 ,LOCALID: 1 ,NODE: n1 ,STIME: 0.02 ,UTIME: 1.5 ,WTIME: 1.5
`

func TestExtract_Legacy(t *testing.T) {
	p, ok := Extract([]byte(legacyOutput), "INTERFERENCE")
	require.True(t, ok)
	assert.Equal(t, Legacy, p.Variant)
	require.Len(t, p.Lines, 2)

	records, err := p.Records()
	require.NoError(t, err)
	want := []Record{
		{"RANK": "0", "CPU": "3", "ITER": "1", "LOCALID": "0", "NODE": "n1", "STIME": "0.01", "UTIME": "1.25", "WTIME": "1.5"},
		{"RANK": "1", "CPU": "4", "ITER": "1", "LOCALID": "1", "NODE": "n1", "STIME": "0.02", "UTIME": "1.5", "WTIME": "1.5"},
	}
	if diff := cmp.Diff(want, records); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}

	u, err := records[0].Float("UTIME")
	require.NoError(t, err)
	assert.Equal(t, 1.25, u)
	rank, err := records[1].Int("RANK")
	require.NoError(t, err)
	assert.Equal(t, 1, rank)
}

func TestExtract_NoTaggedContent(t *testing.T) {
	_, ok := Extract([]byte("Failed to get profiling data\nsome output\n"), "INTERFERENCE")
	assert.False(t, ok)
	_, ok = Extract(nil, "INTERFERENCE")
	assert.False(t, ok)
}

func TestParseLegacy_MissingField(t *testing.T) {
	_, err := ParseLegacy("INTERFERENCE ,RANK: 0 ,CPU: 3 ,ITER: 1 ,NODE: n1 ,UTIME: 1 ,WTIME: 1")
	require.ErrorIs(t, err, ErrMissingField)
	assert.ErrorContains(t, err, "STIME")
}

func TestParseLegacy_ValueWithColon(t *testing.T) {
	r, err := ParseLegacy("P ,RANK: 0 ,CPU: 1 ,ITER: 2 ,NODE: host:7 ,STIME: 0 ,UTIME: 0 ,WTIME: 0")
	require.NoError(t, err)
	assert.Equal(t, "host:7", r["NODE"])
}

func TestExtract_Structured(t *testing.T) {
	out := "starting\n" +
		`INTERFERENCE ,RANK: 9` + "\n" +
		`{"INTERFERENCE":[{"RANK":0,"CPU":3,"NODE":"n1","UTIME":1.5},{"RANK":1,"CPU":4,"NODE":"n1","UTIME":2}]}` + "\n"

	p, ok := Extract([]byte(out), "INTERFERENCE")
	require.True(t, ok)
	assert.Equal(t, Structured, p.Variant)

	docs, err := p.Documents()
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.True(t, docs[0]["RANK"].Equals(cty.NumberIntVal(0)).True())
	assert.True(t, docs[1]["NODE"].RawEquals(cty.StringVal("n1")))
	assert.True(t, docs[0]["UTIME"].Equals(cty.NumberFloatVal(1.5)).True())

	_, err = p.Records()
	require.ErrorIs(t, err, ErrVariant)
}

func TestParseStructured_Malformed(t *testing.T) {
	testCases := map[string]string{
		"invalid json":       `{"INTERFERENCE":[`,
		"prefix missing":     `{"OTHER":[]}`,
		"not an array":       `{"INTERFERENCE":{"RANK":0}}`,
		"element not object": `{"INTERFERENCE":[1,2]}`,
		"null":               `{"INTERFERENCE":null}`,
	}
	for name, line := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseStructured(line, "INTERFERENCE")
			require.ErrorIs(t, err, ErrMalformedPayload)
		})
	}
}

func TestDocuments_Legacy(t *testing.T) {
	p, ok := Extract([]byte(legacyOutput), "INTERFERENCE")
	require.True(t, ok)
	docs, err := p.Documents()
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.True(t, docs[0]["CPU"].RawEquals(cty.StringVal("3")))
}
