package configtree

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/vk/chgresrun/internal/keypath"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// String returns the value at p rendered as a string. Numbers and bools are
// converted the way cty converts them.
func String(tree cty.Value, p keypath.Path) (string, error) {
	v, err := keypath.Walk(tree, p)
	if err != nil {
		return "", err
	}
	return AsString(v, p)
}

// AsString converts a scalar value to a string. p only feeds the error message.
func AsString(v cty.Value, p keypath.Path) (string, error) {
	if v.IsNull() || !v.IsKnown() {
		return "", fmt.Errorf("value at %q is null", p.String())
	}
	sv, err := convert.Convert(v, cty.String)
	if err != nil {
		return "", fmt.Errorf("value at %q: cannot convert %s to string: %w", p.String(), v.Type().FriendlyName(), err)
	}
	return sv.AsString(), nil
}

// Int returns the value at p as an int. Strings holding decimal integers are
// accepted since shell-derived configs often quote numbers.
func Int(tree cty.Value, p keypath.Path) (int, error) {
	v, err := keypath.Walk(tree, p)
	if err != nil {
		return 0, err
	}
	return AsInt(v, p)
}

// AsInt converts a scalar value to an int.
func AsInt(v cty.Value, p keypath.Path) (int, error) {
	if v.IsNull() || !v.IsKnown() {
		return 0, fmt.Errorf("value at %q is null", p.String())
	}
	switch v.Type() {
	case cty.Number:
		bf := v.AsBigFloat()
		if !bf.IsInt() {
			return 0, fmt.Errorf("value at %q is not an integer: %s", p.String(), bf.Text('f', -1))
		}
		i, acc := bf.Int64()
		if acc != big.Exact {
			return 0, fmt.Errorf("value at %q overflows an integer", p.String())
		}
		return int(i), nil
	case cty.String:
		i, err := strconv.Atoi(strings.TrimSpace(v.AsString()))
		if err != nil {
			return 0, fmt.Errorf("value at %q is not an integer: %w", p.String(), err)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("value at %q: expected a number, got %s", p.String(), v.Type().FriendlyName())
	}
}

// Bool returns the value at p as a bool. Strings such as "TRUE", "yes" or
// "0" are accepted, matching the shell conventions of workflow configs.
func Bool(tree cty.Value, p keypath.Path) (bool, error) {
	v, err := keypath.Walk(tree, p)
	if err != nil {
		return false, err
	}
	return AsBool(v, p)
}

// AsBool converts a scalar value to a bool.
func AsBool(v cty.Value, p keypath.Path) (bool, error) {
	if v.IsNull() || !v.IsKnown() {
		return false, fmt.Errorf("value at %q is null", p.String())
	}
	switch v.Type() {
	case cty.Bool:
		return v.True(), nil
	case cty.Number:
		return v.AsBigFloat().Sign() != 0, nil
	case cty.String:
		switch strings.ToLower(strings.TrimSpace(v.AsString())) {
		case "true", "yes", "y", "on", "1":
			return true, nil
		case "false", "no", "n", "off", "0", "":
			return false, nil
		}
		return false, fmt.Errorf("value at %q is not a boolean: %q", p.String(), v.AsString())
	default:
		return false, fmt.Errorf("value at %q: expected a bool, got %s", p.String(), v.Type().FriendlyName())
	}
}

// Strings returns the sequence at p as a slice of strings.
func Strings(tree cty.Value, p keypath.Path) ([]string, error) {
	v, err := keypath.Walk(tree, p)
	if err != nil {
		return nil, err
	}
	if v.IsNull() || !v.IsKnown() {
		return nil, fmt.Errorf("value at %q is null", p.String())
	}
	ty := v.Type()
	if !ty.IsTupleType() && !ty.IsListType() && !ty.IsSetType() {
		return nil, fmt.Errorf("value at %q: expected a sequence, got %s", p.String(), ty.FriendlyName())
	}

	out := make([]string, 0, v.LengthInt())
	for i, elem := range v.AsValueSlice() {
		s, err := AsString(elem, p.Join(strconv.Itoa(i)))
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// OptionalString is like String but returns def when p is missing.
func OptionalString(tree cty.Value, p keypath.Path, def string) (string, error) {
	s, err := String(tree, p)
	if errors.Is(err, keypath.ErrMissingKeyPath) {
		return def, nil
	}
	return s, err
}

// OptionalBool is like Bool but returns def when p is missing.
func OptionalBool(tree cty.Value, p keypath.Path, def bool) (bool, error) {
	b, err := Bool(tree, p)
	if errors.Is(err, keypath.ErrMissingKeyPath) {
		return def, nil
	}
	return b, err
}
