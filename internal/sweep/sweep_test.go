package sweep

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/specialistvlad/benchgrid/internal/descriptor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func str(s string) cty.Value { return cty.StringVal(s) }
func num(n int64) cty.Value  { return cty.NumberIntVal(n) }

func base() []Param {
	return []Param{
		Scalar("wd", str("/npb")),
		Scalar("build_command", str("make")),
	}
}

func names(ds []*descriptor.Descriptor) []string {
	out := make([]string, 0, len(ds))
	for _, d := range ds {
		out = append(out, d.Name())
	}
	return out
}

func TestExpand_CartesianProductOrder(t *testing.T) {
	spec := Spec{Name: "k", Kind: descriptor.NPB, Params: append(base(),
		Axis("prog", str("ep"), str("lu"), str("mg")),
		Axis("size", str("B"), str("C")),
		Axis("np", num(4), num(16)),
	)}

	ds, err := Expand(context.Background(), spec)
	require.NoError(t, err)
	require.Len(t, ds, 3*2*2)

	want := []string{
		"ep.B.4", "ep.B.16", "ep.C.4", "ep.C.16",
		"lu.B.4", "lu.B.16", "lu.C.4", "lu.C.16",
		"mg.B.4", "mg.B.16", "mg.C.4", "mg.C.16",
	}
	if diff := cmp.Diff(want, names(ds)); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}
}

func TestExpand_NoAxesYieldsOneDescriptor(t *testing.T) {
	spec := Spec{Kind: descriptor.NPB, Params: append(base(),
		Scalar("prog", str("ep")), Scalar("np", num(4)), Scalar("size", str("A")))}
	ds, err := Expand(context.Background(), spec)
	require.NoError(t, err)
	assert.Equal(t, []string{"ep.A.4"}, names(ds))
}

func TestExpand_EmptyAxisYieldsNothing(t *testing.T) {
	spec := Spec{Kind: descriptor.NPB, Params: append(base(),
		Axis("prog"), Scalar("np", num(4)), Scalar("size", str("A")))}
	ds, err := Expand(context.Background(), spec)
	require.NoError(t, err)
	assert.Empty(t, ds)
}

func TestExpand_ResolverCalledOncePerCombination(t *testing.T) {
	calls := 0
	spec := Spec{Kind: descriptor.NPB, Params: append(base(),
		Scalar("prog", str("ep")),
		Scalar("size", str("B")),
		Axis("oversub", num(1), num(2)),
		Resolve("np", []string{"oversub"}, func(args map[string]cty.Value) (cty.Value, error) {
			calls++
			return args["oversub"].Multiply(num(16)), nil
		}),
	)}

	ds, err := Expand(context.Background(), spec)
	require.NoError(t, err)
	require.Len(t, ds, 2)
	assert.Equal(t, 2, calls)

	assert.Equal(t, 1, ds[0].Oversub)
	assert.Equal(t, 16, ds[0].NP)
	assert.Equal(t, 2, ds[1].Oversub)
	assert.Equal(t, 32, ds[1].NP)
	assert.Equal(t, []string{"ep.B.16", "ep.B.32"}, names(ds))
}

func TestExpand_ResolverOnResolverFails(t *testing.T) {
	called := false
	fn := func(args map[string]cty.Value) (cty.Value, error) {
		called = true
		return num(1), nil
	}
	spec := Spec{Kind: descriptor.NPB, Params: append(base(),
		Scalar("prog", str("ep")),
		Scalar("size", str("B")),
		Axis("nodes", num(1), num(2)),
		Resolve("vp", []string{"nodes"}, fn),
		Resolve("np", []string{"vp"}, fn),
	)}

	_, err := Expand(context.Background(), spec)
	require.ErrorIs(t, err, ErrUnresolvedDependency)
	assert.False(t, called, "no resolver runs when the dependency check fails")
}

func TestExpand_ResolverOnUnknownParameterFails(t *testing.T) {
	spec := Spec{Kind: descriptor.NPB, Params: append(base(),
		Scalar("prog", str("ep")),
		Scalar("size", str("B")),
		Resolve("np", []string{"cpus"}, func(map[string]cty.Value) (cty.Value, error) { return num(1), nil }),
	)}
	_, err := Expand(context.Background(), spec)
	require.ErrorIs(t, err, ErrUnresolvedDependency)
}

func TestExpand_ResolverError(t *testing.T) {
	boom := errors.New("boom")
	spec := Spec{Kind: descriptor.NPB, Params: append(base(),
		Scalar("prog", str("ep")),
		Scalar("size", str("B")),
		Resolve("np", nil, func(map[string]cty.Value) (cty.Value, error) { return cty.NilVal, boom }),
	)}
	_, err := Expand(context.Background(), spec)
	require.ErrorIs(t, err, boom)
}

func TestExpand_DuplicateParameter(t *testing.T) {
	spec := Spec{Kind: descriptor.NPB, Params: append(base(), Scalar("wd", str("/other")))}
	_, err := Expand(context.Background(), spec)
	require.Error(t, err)
}

func TestExpandAll_Concatenates(t *testing.T) {
	a := Spec{Kind: descriptor.NPB, Params: append(base(), Axis("prog", str("ep"), str("lu")), Scalar("np", num(4)), Scalar("size", str("B")))}
	b := Spec{Kind: descriptor.NPB, Params: append(base(), Scalar("prog", str("cg")), Scalar("np", num(8)), Scalar("size", str("C")))}

	set, err := ExpandAll(context.Background(), []Spec{a, b})
	require.NoError(t, err)
	assert.Equal(t, []string{"ep.B.4", "lu.B.4", "cg.C.8"}, names(set.Descriptors))
}
