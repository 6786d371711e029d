// Package namelist renders configuration trees as Fortran namelist files.
//
// The top level of the tree names the namelist groups; each group maps
// variable names to scalars or sequences of scalars. Groups and variables
// are written in sorted order so the output is deterministic.
package namelist

import (
	"bytes"
	"fmt"
	"io"
	"math/big"
	"sort"
	"strings"

	"github.com/zclconf/go-cty/cty"
)

// Marshal renders groups as namelist text.
func Marshal(groups cty.Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, groups); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write renders groups as namelist text to w.
func Write(w io.Writer, groups cty.Value) error {
	if !isTree(groups) {
		return fmt.Errorf("namelist groups must be a tree, got %s", friendly(groups))
	}

	groupMap := groups.AsValueMap()
	for _, name := range sortedKeys(groupMap) {
		group := groupMap[name]
		if !isTree(group) {
			return fmt.Errorf("namelist group %q must be a tree, got %s", name, friendly(group))
		}
		if _, err := fmt.Fprintf(w, "&%s\n", name); err != nil {
			return err
		}
		vars := group.AsValueMap()
		for _, key := range sortedKeys(vars) {
			rendered, err := renderValue(vars[key])
			if err != nil {
				return fmt.Errorf("namelist %s.%s: %w", name, key, err)
			}
			if _, err := fmt.Fprintf(w, "    %s = %s\n", key, rendered); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, "/\n"); err != nil {
			return err
		}
	}
	return nil
}

func renderValue(v cty.Value) (string, error) {
	if v.IsNull() || !v.IsKnown() {
		return "", fmt.Errorf("value is null")
	}
	ty := v.Type()
	if ty.IsTupleType() || ty.IsListType() || ty.IsSetType() {
		if v.LengthInt() == 0 {
			return "", fmt.Errorf("empty sequences cannot be written")
		}
		parts := make([]string, 0, v.LengthInt())
		for _, elem := range v.AsValueSlice() {
			s, err := renderScalar(elem)
			if err != nil {
				return "", err
			}
			parts = append(parts, s)
		}
		return strings.Join(parts, ", "), nil
	}
	return renderScalar(v)
}

func renderScalar(v cty.Value) (string, error) {
	if v.IsNull() || !v.IsKnown() {
		return "", fmt.Errorf("value is null")
	}
	switch v.Type() {
	case cty.String:
		return "'" + strings.ReplaceAll(v.AsString(), "'", "''") + "'", nil
	case cty.Bool:
		if v.True() {
			return ".true.", nil
		}
		return ".false.", nil
	case cty.Number:
		bf := v.AsBigFloat()
		if bf.IsInt() {
			i, _ := bf.Int(nil)
			return i.String(), nil
		}
		f, _ := bf.Float64()
		return big.NewFloat(f).Text('g', -1), nil
	default:
		return "", fmt.Errorf("unsupported value of type %s", v.Type().FriendlyName())
	}
}

func isTree(v cty.Value) bool {
	if v.IsNull() || !v.IsKnown() {
		return false
	}
	return v.Type().IsObjectType() || v.Type().IsMapType()
}

func friendly(v cty.Value) string {
	if v.IsNull() {
		return "null"
	}
	return v.Type().FriendlyName()
}

func sortedKeys(m map[string]cty.Value) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
