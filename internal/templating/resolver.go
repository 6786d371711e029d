package templating

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/vk/chgresrun/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
)

// Resolver substitutes template expressions in configuration trees.
type Resolver struct {
	functions map[string]function.Function
}

// New creates a Resolver with the default function table.
func New() *Resolver {
	return &Resolver{functions: Functions()}
}

// pendingLeaf is a template leaf that has not been evaluated yet.
type pendingLeaf struct {
	at    []string
	text  string
	expr  hclsyntax.Expression
	refs  [][]string
	names []string // references as written, for diagnostics
}

// Resolve returns a copy of tree with every template expression substituted
// using rc and the tree's own top-level keys. The input tree is not modified.
func (r *Resolver) Resolve(ctx context.Context, tree cty.Value, rc RunContext) (cty.Value, error) {
	pending, err := collectTemplates(tree)
	if err != nil {
		return cty.NilVal, err
	}
	return r.resolve(ctx, tree, rc, pending)
}

// ResolveFor is Resolve restricted to the templates at or below path and the
// templates they depend on. Every other template is left as written, so it
// may refer to context variables rc does not carry yet.
func (r *Resolver) ResolveFor(ctx context.Context, tree cty.Value, rc RunContext, path []string) (cty.Value, error) {
	pending, err := collectTemplates(tree)
	if err != nil {
		return cty.NilVal, err
	}
	return r.resolve(ctx, tree, rc, dependencyClosure(pending, path, rc.variables()))
}

func (r *Resolver) resolve(ctx context.Context, tree cty.Value, rc RunContext, pending []*pendingLeaf) (cty.Value, error) {
	logger := ctxlog.FromContext(ctx)
	if len(pending) == 0 {
		logger.Debug("No templates to resolve.")
		return tree, nil
	}
	logger.Debug("Resolving templates.", "count", len(pending))

	var err error
	ctxVars := rc.variables()
	cur := tree
	for len(pending) > 0 {
		evalCtx := &hcl.EvalContext{
			Variables: r.variables(cur, ctxVars),
			Functions: r.functions,
		}

		resolved := make(map[string]cty.Value)
		var waiting []*pendingLeaf
		for _, leaf := range pending {
			if dependsOnPending(leaf, pending, ctxVars) {
				waiting = append(waiting, leaf)
				continue
			}
			val, diags := leaf.expr.Value(evalCtx)
			if diags.HasErrors() {
				return cty.NilVal, &ResolutionError{
					Path:     joinSegments(leaf.at),
					Template: leaf.text,
					Diags:    diags,
				}
			}
			if !val.IsWhollyKnown() {
				return cty.NilVal, &ResolutionError{
					Path:     joinSegments(leaf.at),
					Template: leaf.text,
					Reason:   "result is not known",
				}
			}
			resolved[segmentKey(leaf.at)] = val
		}

		if len(resolved) == 0 {
			return cty.NilVal, cycleError(waiting)
		}

		cur, err = rebuild(cur, nil, func(at []string, v cty.Value) (cty.Value, error) {
			if nv, ok := resolved[segmentKey(at)]; ok {
				return nv, nil
			}
			return v, nil
		})
		if err != nil {
			return cty.NilVal, err
		}
		logger.Debug("Template pass complete.", "resolved", len(resolved), "remaining", len(waiting))
		pending = waiting
	}

	return cur, nil
}

// variables merges the tree's top-level keys with the context variables.
// Context variables win on name clashes.
func (r *Resolver) variables(tree cty.Value, ctxVars map[string]cty.Value) map[string]cty.Value {
	vars := make(map[string]cty.Value, len(ctxVars))
	if tree.Type().IsObjectType() || tree.Type().IsMapType() {
		for k, v := range tree.AsValueMap() {
			vars[k] = v
		}
	}
	for k, v := range ctxVars {
		vars[k] = v
	}
	return vars
}

// dependsOnPending reports whether any reference of leaf reaches into a
// template that is still waiting to be evaluated.
func dependsOnPending(leaf *pendingLeaf, pending []*pendingLeaf, ctxVars map[string]cty.Value) bool {
	for _, ref := range leaf.refs {
		if len(ref) == 0 {
			continue
		}
		if _, isCtx := ctxVars[ref[0]]; isCtx {
			continue
		}
		for _, other := range pending {
			if other == leaf {
				continue
			}
			if overlaps(ref, other.at) {
				return true
			}
		}
		if overlaps(ref, leaf.at) && len(ref) <= len(leaf.at) {
			return true
		}
	}
	return false
}

// dependencyClosure selects the leaves at or below path plus every leaf they
// reach through their references, in their original order.
func dependencyClosure(pending []*pendingLeaf, path []string, ctxVars map[string]cty.Value) []*pendingLeaf {
	selected := make(map[*pendingLeaf]bool)
	var queue []*pendingLeaf
	for _, leaf := range pending {
		if overlaps(leaf.at, path) && len(leaf.at) >= len(path) {
			selected[leaf] = true
			queue = append(queue, leaf)
		}
	}
	for len(queue) > 0 {
		leaf := queue[0]
		queue = queue[1:]
		for _, ref := range leaf.refs {
			if len(ref) == 0 {
				continue
			}
			if _, isCtx := ctxVars[ref[0]]; isCtx {
				continue
			}
			for _, other := range pending {
				if !selected[other] && overlaps(ref, other.at) {
					selected[other] = true
					queue = append(queue, other)
				}
			}
		}
	}

	out := make([]*pendingLeaf, 0, len(selected))
	for _, leaf := range pending {
		if selected[leaf] {
			out = append(out, leaf)
		}
	}
	return out
}

func cycleError(waiting []*pendingLeaf) error {
	paths := make([]string, 0, len(waiting))
	for _, leaf := range waiting {
		paths = append(paths, joinSegments(leaf.at))
	}
	sort.Strings(paths)
	first := waiting[0]
	for _, leaf := range waiting {
		if joinSegments(leaf.at) == paths[0] {
			first = leaf
		}
	}
	reason := fmt.Sprintf("templates refer to each other in a cycle: %s (%s refers to %s)",
		strings.Join(paths, ", "), paths[0], strings.Join(first.names, ", "))
	return &ResolutionError{Path: paths[0], Template: first.text, Reason: reason}
}

// collectTemplates finds every string leaf that carries a template marker
// and parses it.
func collectTemplates(tree cty.Value) ([]*pendingLeaf, error) {
	var out []*pendingLeaf
	_, err := rebuild(tree, nil, func(at []string, v cty.Value) (cty.Value, error) {
		if !isString(v) || !hasTemplate(v.AsString()) {
			return v, nil
		}
		text := v.AsString()
		expr, diags := hclsyntax.ParseTemplate([]byte(text), joinSegments(at), hcl.InitialPos)
		if diags.HasErrors() {
			return cty.NilVal, &ResolutionError{Path: joinSegments(at), Template: text, Diags: diags}
		}

		leaf := &pendingLeaf{at: append([]string(nil), at...), text: text, expr: expr}
		for _, t := range expr.Variables() {
			leaf.refs = append(leaf.refs, referenceSegments(t))
			leaf.names = append(leaf.names, TraversalKey(t))
		}
		out = append(out, leaf)
		return v, nil
	})
	return out, err
}

// rebuild walks v depth-first and reconstructs it with fn applied to every
// leaf. Maps come back as objects and lists or sets as tuples so leaves may
// change type.
func rebuild(v cty.Value, at []string, fn func(at []string, leaf cty.Value) (cty.Value, error)) (cty.Value, error) {
	if v.IsNull() || !v.IsKnown() {
		return fn(at, v)
	}

	ty := v.Type()
	switch {
	case ty.IsObjectType() || ty.IsMapType():
		attrs := make(map[string]cty.Value, v.LengthInt())
		for k, child := range v.AsValueMap() {
			nv, err := rebuild(child, append(at, k), fn)
			if err != nil {
				return cty.NilVal, err
			}
			attrs[k] = nv
		}
		return cty.ObjectVal(attrs), nil
	case ty.IsTupleType() || ty.IsListType() || ty.IsSetType():
		elems := make([]cty.Value, 0, v.LengthInt())
		for i, child := range v.AsValueSlice() {
			nv, err := rebuild(child, append(at, strconv.Itoa(i)), fn)
			if err != nil {
				return cty.NilVal, err
			}
			elems = append(elems, nv)
		}
		return cty.TupleVal(elems), nil
	default:
		return fn(at, v)
	}
}

func isString(v cty.Value) bool {
	return !v.IsNull() && v.IsKnown() && v.Type() == cty.String
}

// hasTemplate reports whether s contains interpolation or directive markers.
func hasTemplate(s string) bool {
	return strings.Contains(s, "${") || strings.Contains(s, "%{")
}

func segmentKey(at []string) string {
	return strings.Join(at, "\x00")
}

func joinSegments(at []string) string {
	return strings.Join(at, ".")
}
