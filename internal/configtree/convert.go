package configtree

import (
	"fmt"
	"sort"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
)

// FromGo converts a native Go value into its cty equivalent. Maps with string
// keys become objects and slices become tuples, so heterogeneous values are
// allowed. Other types go through gocty's implied-type conversion.
func FromGo(v any) (cty.Value, error) {
	switch x := v.(type) {
	case nil:
		return cty.NullVal(cty.DynamicPseudoType), nil
	case cty.Value:
		return x, nil
	case string:
		return cty.StringVal(x), nil
	case bool:
		return cty.BoolVal(x), nil
	case int:
		return cty.NumberIntVal(int64(x)), nil
	case int64:
		return cty.NumberIntVal(x), nil
	case float64:
		return cty.NumberFloatVal(x), nil
	case map[string]any:
		attrs := make(map[string]cty.Value, len(x))
		for k, item := range x {
			cv, err := FromGo(item)
			if err != nil {
				return cty.NilVal, fmt.Errorf("key %q: %w", k, err)
			}
			attrs[k] = cv
		}
		return cty.ObjectVal(attrs), nil
	case []any:
		elems := make([]cty.Value, 0, len(x))
		for i, item := range x {
			cv, err := FromGo(item)
			if err != nil {
				return cty.NilVal, fmt.Errorf("index %d: %w", i, err)
			}
			elems = append(elems, cv)
		}
		return cty.TupleVal(elems), nil
	case []string:
		elems := make([]cty.Value, 0, len(x))
		for _, s := range x {
			elems = append(elems, cty.StringVal(s))
		}
		return cty.TupleVal(elems), nil
	}

	ty, err := gocty.ImpliedType(v)
	if err != nil {
		return cty.NilVal, fmt.Errorf("unable to infer cty.Type for %T: %w", v, err)
	}
	return gocty.ToCtyValue(v, ty)
}

// MustFromGo is like FromGo but panics on failure. Intended for literals in
// code and tests.
func MustFromGo(v any) cty.Value {
	cv, err := FromGo(v)
	if err != nil {
		panic(err)
	}
	return cv
}

// Keys returns the sorted top-level keys of a tree, or nil for non-trees.
func Keys(tree cty.Value) []string {
	if tree.IsNull() || !tree.IsKnown() {
		return nil
	}
	ty := tree.Type()
	if !ty.IsObjectType() && !ty.IsMapType() {
		return nil
	}
	keys := make([]string, 0, tree.LengthInt())
	for k := range tree.AsValueMap() {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
