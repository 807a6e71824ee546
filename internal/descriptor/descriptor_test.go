package descriptor

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func npbAttrs() map[string]cty.Value {
	return map[string]cty.Value{
		"prog":          cty.StringVal("ep"),
		"np":            cty.NumberIntVal(4),
		"size":          cty.StringVal("B"),
		"wd":            cty.StringVal("/src/npb"),
		"build_command": cty.StringVal("make ep NPROCS=4 CLASS=B"),
		"oversub":       cty.NumberIntVal(2),
		"vp":            cty.NumberIntVal(8),
	}
}

func TestNew_NPB(t *testing.T) {
	d, err := New(NPB, npbAttrs(), []string{"prog", "np", "size", "wd", "build_command", "oversub", "vp"})
	require.NoError(t, err)

	assert.Equal(t, "ep.B.4", d.Name())
	assert.Equal(t, "./bin/ep.B.4", d.Executable())
	assert.Equal(t, 1, d.Nodes, "nodes defaults to 1")
	assert.Equal(t, 2, d.Oversub)
	assert.Equal(t, Identity{Prog: "ep", NP: 4, Size: "B", WorkDir: "/src/npb"}, d.Identity())
	assert.Equal(t, []string{"vp"}, d.Extras())
	assert.False(t, d.Failed())

	vp, ok := d.Attr("vp")
	require.True(t, ok)
	assert.True(t, vp.RawEquals(cty.NumberIntVal(8)))

	np, ok := d.Attr("np")
	require.True(t, ok)
	assert.Equal(t, cty.Number, np.Type())

	_, ok = d.Attr("size_param")
	assert.False(t, ok)
}

func TestNew_ConvertsNumbersToStrings(t *testing.T) {
	attrs := npbAttrs()
	attrs["size"] = cty.NumberIntVal(100)
	d, err := New(NPB, attrs, nil)
	require.NoError(t, err)
	assert.Equal(t, "100", d.Size)
	assert.Equal(t, "ep.100.4", d.Name())
}

func TestNew_Errors(t *testing.T) {
	testCases := []struct {
		name   string
		kind   *Kind
		mutate func(map[string]cty.Value)
	}{
		{"missing prog", NPB, func(m map[string]cty.Value) { delete(m, "prog") }},
		{"missing wd", NPB, func(m map[string]cty.Value) { delete(m, "wd") }},
		{"fractional np", NPB, func(m map[string]cty.Value) { m["np"] = cty.NumberFloatVal(2.5) }},
		{"np not a number", NPB, func(m map[string]cty.Value) { m["np"] = cty.StringVal("four") }},
		{"negative nodes", NPB, func(m map[string]cty.Value) { m["nodes"] = cty.NumberIntVal(-1) }},
		{"zero np", NPB, func(m map[string]cty.Value) { m["np"] = cty.NumberIntVal(0) }},
		{"zero oversub", NPB, func(m map[string]cty.Value) { m["oversub"] = cty.NumberIntVal(0) }},
		{"npb without build command", NPB, func(m map[string]cty.Value) { delete(m, "build_command") }},
		{"miniapp without template", MiniApp, func(m map[string]cty.Value) {}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			attrs := npbAttrs()
			tc.mutate(attrs)
			_, err := New(tc.kind, attrs, nil)
			require.ErrorIs(t, err, ErrInvalidAttribute)
		})
	}
}

func TestNew_MiniAppDefaults(t *testing.T) {
	attrs := npbAttrs()
	delete(attrs, "build_command")
	attrs["template"] = cty.StringVal("./CoMD-mpi {size_param} -i {vp}")
	attrs["size_param"] = cty.StringVal("-x 40 -y 40 -z 40")

	d, err := New(MiniApp, attrs, []string{"vp", "size_param"})
	require.NoError(t, err)
	assert.Equal(t, "make", d.BuildCommand)
	assert.Equal(t, "./CoMD-mpi -x 40 -y 40 -z 40 -i 8", d.Name())
	assert.Equal(t, d.Name(), d.Executable())
	assert.Equal(t, []string{"vp", "size_param"}, d.Extras())
}

func TestMarkFailed_IsSticky(t *testing.T) {
	d, err := New(NPB, npbAttrs(), nil)
	require.NoError(t, err)
	d.MarkFailed()
	d.MarkFailed()
	assert.True(t, d.Failed())
	assert.Equal(t, "ep.B.4 (failed)", d.String())
}

func TestAttributes_Order(t *testing.T) {
	d, err := New(NPB, npbAttrs(), nil)
	require.NoError(t, err)

	var names []string
	for _, a := range d.Attributes() {
		names = append(names, a.Name)
	}
	want := []string{"prog", "np", "size", "wd", "build_command", "template", "sched", "affinity", "nodes", "oversub", "vp"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("Attributes() mismatch (-want +got):\n%s", diff)
	}
}

func TestLookupKind(t *testing.T) {
	k, err := LookupKind("npb")
	require.NoError(t, err)
	assert.Same(t, NPB, k)

	_, err = LookupKind("lammps")
	require.ErrorIs(t, err, ErrUnknownKind)
	assert.Equal(t, []string{"miniapp", "npb"}, KindNames())
}
