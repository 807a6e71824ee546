// Package hcl_adapter reads sweep files written in HCL and turns them into
// expansion specs.
package hcl_adapter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/specialistvlad/benchgrid/internal/ctxlog"
	"github.com/specialistvlad/benchgrid/internal/descriptor"
	"github.com/specialistvlad/benchgrid/internal/fsutil"
	"github.com/specialistvlad/benchgrid/internal/hclutil"
	"github.com/specialistvlad/benchgrid/internal/sweep"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
)

// Names that are always in scope and therefore never formal parameters.
const (
	rootLocal = "local"
	rootEnv   = "env"
)

// ErrNoSweepFiles is returned when the given paths contain no sweep files.
var ErrNoSweepFiles = errors.New("no sweep files found")

// Loader reads `locals` and `sweep` blocks from .hcl files.
type Loader struct {
	env   map[string]string
	funcs map[string]function.Function
}

// NewLoader creates a loader that exposes the process environment as `env`.
func NewLoader() *Loader {
	return NewLoaderWithEnv(environMap(os.Environ()))
}

// NewLoaderWithEnv creates a loader with an explicit `env` object.
func NewLoaderWithEnv(env map[string]string) *Loader {
	return &Loader{env: env, funcs: Functions()}
}

type fileRoot struct {
	Locals []*localsBlock `hcl:"locals,block"`
	Sweeps []*sweepBlock  `hcl:"sweep,block"`
}

type localsBlock struct {
	Body hcl.Body `hcl:",remain"`
}

type sweepBlock struct {
	Kind string   `hcl:"kind,label"`
	Name string   `hcl:"name,label"`
	Body hcl.Body `hcl:",remain"`
}

type parsedFile struct {
	path string
	root fileRoot
}

// Load parses every sweep file found under paths. Locals from all files are
// shared; sweep blocks are returned in file order, files in walk order.
func (l *Loader) Load(ctx context.Context, paths ...string) ([]sweep.Spec, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path_count", len(paths))

	files, err := fsutil.ResolveFiles(".hcl", paths...)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoSweepFiles, strings.Join(paths, ", "))
	}
	logger.Debug("Discovered HCL files.", "count", len(files))

	parser := hclparse.NewParser()
	var parsed []parsedFile
	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
		}
		var root fileRoot
		if diags := gohcl.DecodeBody(hclFile.Body, nil, &root); diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode HCL file %s: %w", file, diags)
		}
		parsed = append(parsed, parsedFile{path: file, root: root})
	}

	locals, err := l.evalLocals(parsed)
	if err != nil {
		return nil, err
	}
	evalCtx := &hcl.EvalContext{
		Variables: map[string]cty.Value{
			rootEnv:   l.envValue(),
			rootLocal: objectOrEmpty(locals),
		},
		Functions: l.funcs,
	}

	var specs []sweep.Spec
	for _, pf := range parsed {
		for _, block := range pf.root.Sweeps {
			spec, diags := l.translateSweep(block, evalCtx)
			if diags.HasErrors() {
				return nil, fmt.Errorf("failed to load sweep %q in %s: %w", block.Name, pf.path, diags)
			}
			specs = append(specs, spec)
		}
	}

	logger.Debug("HCL loading complete.", "sweeps", len(specs), "locals", len(locals))
	return specs, nil
}

func (l *Loader) evalLocals(files []parsedFile) (map[string]cty.Value, error) {
	locals := make(map[string]cty.Value)
	declared := make(map[string]hcl.Range)
	evalCtx := &hcl.EvalContext{
		Variables: map[string]cty.Value{rootEnv: l.envValue()},
		Functions: l.funcs,
	}

	for _, pf := range files {
		for _, block := range pf.root.Locals {
			attrs, diags := block.Body.JustAttributes()
			if diags.HasErrors() {
				return nil, fmt.Errorf("failed to decode locals in %s: %w", pf.path, diags)
			}
			for _, attr := range hclutil.SortedAttributes(attrs) {
				if prev, dup := declared[attr.Name]; dup {
					return nil, fmt.Errorf("%w", hcl.Diagnostics{{
						Severity: hcl.DiagError,
						Summary:  "Duplicate local value",
						Detail:   fmt.Sprintf("Local %q was already declared at %s.", attr.Name, prev),
						Subject:  attr.NameRange.Ptr(),
					}})
				}
				declared[attr.Name] = attr.Range
				if refs := hclutil.RootNames(attr.Expr, rootEnv); len(refs) > 0 {
					return nil, fmt.Errorf("%w", hcl.Diagnostics{{
						Severity: hcl.DiagError,
						Summary:  "Invalid local value",
						Detail:   fmt.Sprintf("Local values may only refer to env; %q refers to %s.", attr.Name, strings.Join(refs, ", ")),
						Subject:  attr.Expr.Range().Ptr(),
					}})
				}
				v, diags := attr.Expr.Value(evalCtx)
				if diags.HasErrors() {
					return nil, fmt.Errorf("failed to evaluate local %q: %w", attr.Name, diags)
				}
				locals[attr.Name] = v
			}
		}
	}
	return locals, nil
}

func (l *Loader) translateSweep(block *sweepBlock, evalCtx *hcl.EvalContext) (sweep.Spec, hcl.Diagnostics) {
	spec := sweep.Spec{Name: block.Name}

	kind, err := descriptor.LookupKind(block.Kind)
	if err != nil {
		return spec, hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Unknown sweep kind",
			Detail:   err.Error(),
			Subject:  block.Body.MissingItemRange().Ptr(),
		}}
	}
	spec.Kind = kind

	attrs, diags := block.Body.JustAttributes()
	if diags.HasErrors() {
		return spec, diags
	}

	for _, attr := range hclutil.SortedAttributes(attrs) {
		for _, fn := range hclutil.CalledFunctions(attr.Expr) {
			if _, ok := l.funcs[fn]; !ok {
				diags = append(diags, &hcl.Diagnostic{
					Severity: hcl.DiagError,
					Summary:  "Call to unknown function",
					Detail:   fmt.Sprintf("There is no function named %q.", fn),
					Subject:  attr.Expr.Range().Ptr(),
				})
			}
		}
		if diags.HasErrors() {
			return spec, diags
		}

		formals := hclutil.RootNames(attr.Expr, rootLocal, rootEnv)
		if len(formals) > 0 {
			spec.Params = append(spec.Params, sweep.Resolve(attr.Name, formals, resolverFor(attr, evalCtx)))
			continue
		}

		v, valDiags := attr.Expr.Value(evalCtx)
		diags = append(diags, valDiags...)
		if valDiags.HasErrors() {
			return spec, diags
		}
		spec.Params = append(spec.Params, paramFor(attr.Name, v))
	}
	return spec, diags
}

// paramFor turns a literal value into an axis when it is a collection and a
// scalar otherwise.
func paramFor(name string, v cty.Value) sweep.Param {
	ty := v.Type()
	if v.IsNull() || !(ty.IsTupleType() || ty.IsListType() || ty.IsSetType()) {
		return sweep.Scalar(name, v)
	}
	values := make([]cty.Value, 0, v.LengthInt())
	for it := v.ElementIterator(); it.Next(); {
		_, ev := it.Element()
		values = append(values, ev)
	}
	return sweep.Axis(name, values...)
}

func resolverFor(attr *hcl.Attribute, parent *hcl.EvalContext) sweep.ResolverFunc {
	return func(args map[string]cty.Value) (cty.Value, error) {
		child := parent.NewChild()
		child.Variables = args
		v, diags := attr.Expr.Value(child)
		if diags.HasErrors() {
			return cty.NilVal, diags
		}
		return v, nil
	}
}

func (l *Loader) envValue() cty.Value {
	vals := make(map[string]cty.Value, len(l.env))
	for k, v := range l.env {
		vals[k] = cty.StringVal(v)
	}
	return objectOrEmpty(vals)
}

func objectOrEmpty(vals map[string]cty.Value) cty.Value {
	if len(vals) == 0 {
		return cty.EmptyObjectVal
	}
	return cty.ObjectVal(vals)
}

func environMap(environ []string) map[string]string {
	out := make(map[string]string, len(environ))
	for _, kv := range environ {
		if k, v, ok := strings.Cut(kv, "="); ok {
			out[k] = v
		}
	}
	return out
}
