package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/specialistvlad/benchgrid/internal/descriptor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func newDescriptor(t *testing.T, prog string, np int64) *descriptor.Descriptor {
	t.Helper()
	d, err := descriptor.New(descriptor.NPB, map[string]cty.Value{
		"prog":          cty.StringVal(prog),
		"np":            cty.NumberIntVal(np),
		"size":          cty.StringVal("B"),
		"wd":            cty.StringVal("/npb"),
		"build_command": cty.StringVal("make"),
	}, nil)
	require.NoError(t, err)
	return d
}

func TestFileName(t *testing.T) {
	assert.Equal(t, ".slurm-mvapich.cache", FileName("slurm", "mvapich"))
}

func TestRecord_PersistsWhenEnabled(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName("local", "openmpi"))

	c, err := Load(path, true)
	require.NoError(t, err)
	assert.Equal(t, 0, c.Len())

	ok := newDescriptor(t, "ep", 4)
	bad := newDescriptor(t, "lu", 4)
	bad.MarkFailed()
	require.NoError(t, c.Record(ok))
	require.NoError(t, c.Record(bad))

	reloaded, err := Load(path, true)
	require.NoError(t, err)
	assert.Equal(t, 2, reloaded.Len())

	fail, found := reloaded.Lookup(newDescriptor(t, "ep", 4))
	assert.True(t, found)
	assert.False(t, fail)

	fail, found = reloaded.Lookup(newDescriptor(t, "lu", 4))
	assert.True(t, found)
	assert.True(t, fail)

	assert.False(t, reloaded.Contains(newDescriptor(t, "ep", 8)))
}

func TestRecord_DisabledKeepsMemoryOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache")
	c, err := Load(path, false)
	require.NoError(t, err)

	d := newDescriptor(t, "ep", 4)
	require.NoError(t, c.Record(d))
	assert.True(t, c.Contains(d))

	_, err = os.Stat(path)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_DisabledIgnoresExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache")
	c, err := Load(path, true)
	require.NoError(t, err)
	require.NoError(t, c.Record(newDescriptor(t, "ep", 4)))

	c, err = Load(path, false)
	require.NoError(t, err)
	assert.Equal(t, 0, c.Len())
}

func TestLoad_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache")
	require.NoError(t, os.WriteFile(path, []byte("not msgpack"), 0o644))
	_, err := Load(path, true)
	require.Error(t, err)
}
