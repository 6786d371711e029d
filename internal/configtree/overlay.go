package configtree

import (
	"fmt"

	"github.com/vk/chgresrun/internal/keypath"
	"github.com/zclconf/go-cty/cty"
)

// Merge deep-merges over into base. Where both sides hold a tree the merge
// recurses; everywhere else the value from over wins. The result is always an
// object when both inputs are trees.
func Merge(base, over cty.Value) cty.Value {
	if !keypath.IsTree(base) || !keypath.IsTree(over) {
		return over
	}

	attrs := base.AsValueMap()
	if attrs == nil {
		attrs = make(map[string]cty.Value)
	}
	for k, ov := range over.AsValueMap() {
		if bv, ok := attrs[k]; ok {
			attrs[k] = Merge(bv, ov)
			continue
		}
		attrs[k] = ov
	}
	return cty.ObjectVal(attrs)
}

// Overlay deep-merges values into the sub-tree of tree located at p,
// creating intermediate trees as needed, and returns the new tree. A
// non-tree value found along p is a keypath NotATree error.
func Overlay(tree cty.Value, p keypath.Path, values cty.Value) (cty.Value, error) {
	if !keypath.IsTree(values) {
		return cty.NilVal, fmt.Errorf("overlay at %q: values must be a tree, got %s", p.String(), values.Type().FriendlyName())
	}
	return update(tree, p, 0, func(cur cty.Value) cty.Value {
		return Merge(cur, values)
	})
}

// update rebuilds the spine of tree along p[depth:], applying fn to the tree
// found at the end of p.
func update(tree cty.Value, p keypath.Path, depth int, fn func(cty.Value) cty.Value) (cty.Value, error) {
	if !keypath.IsTree(tree) {
		return cty.NilVal, &keypath.Error{Kind: keypath.NotATree, Path: p[:depth].Join()}
	}
	if depth == len(p) {
		return fn(tree), nil
	}

	segment := p[depth]
	child, ok := keypath.Child(tree, segment)
	if !ok || child.IsNull() {
		child = cty.EmptyObjectVal
	}
	updated, err := update(child, p, depth+1, fn)
	if err != nil {
		return cty.NilVal, err
	}

	attrs := tree.AsValueMap()
	if attrs == nil {
		attrs = make(map[string]cty.Value)
	}
	attrs[segment] = updated
	return cty.ObjectVal(attrs), nil
}
