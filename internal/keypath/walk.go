package keypath

import (
	"github.com/zclconf/go-cty/cty"
)

// IsTree reports whether v can hold named children: a known, non-null object
// or map value.
func IsTree(v cty.Value) bool {
	if v.IsNull() || !v.IsKnown() {
		return false
	}
	ty := v.Type()
	return ty.IsObjectType() || ty.IsMapType()
}

// Child returns the value stored under name in tree. The second result is
// false when tree is not a tree or has no such key.
func Child(tree cty.Value, name string) (cty.Value, bool) {
	if !IsTree(tree) {
		return cty.NilVal, false
	}
	if tree.Type().IsObjectType() {
		if !tree.Type().HasAttribute(name) {
			return cty.NilVal, false
		}
		return tree.GetAttr(name), true
	}
	key := cty.StringVal(name)
	if !tree.HasIndex(key).True() {
		return cty.NilVal, false
	}
	return tree.Index(key), true
}

// Walk follows p from tree and returns the value at its final segment. An
// empty path returns tree unchanged.
func Walk(tree cty.Value, p Path) (cty.Value, error) {
	if len(p) == 0 {
		return tree, nil
	}
	if !IsTree(tree) {
		return cty.NilVal, &Error{Kind: NotATree, Path: Path{}}
	}

	cur := tree
	for i, segment := range p {
		next, ok := Child(cur, segment)
		if !ok {
			return cty.NilVal, &Error{Kind: MissingKeyPath, Path: p[:i+1].Join()}
		}
		if i < len(p)-1 && !IsTree(next) {
			return cty.NilVal, &Error{Kind: NotATree, Path: p[:i+1].Join()}
		}
		cur = next
	}
	return cur, nil
}

// WalkTree is like Walk but additionally requires the value at p to be a tree.
func WalkTree(tree cty.Value, p Path) (cty.Value, error) {
	v, err := Walk(tree, p)
	if err != nil {
		return cty.NilVal, err
	}
	if !IsTree(v) {
		return cty.NilVal, &Error{Kind: NotATree, Path: p.Join()}
	}
	return v, nil
}
