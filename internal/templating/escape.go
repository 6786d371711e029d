package templating

import (
	"strings"

	"github.com/zclconf/go-cty/cty"
)

var escaper = strings.NewReplacer("${", "$${", "%{", "%%{")

// EscapeString returns s with its template markers escaped, so resolving it
// yields s verbatim.
func EscapeString(s string) string {
	return escaper.Replace(s)
}

// Escape returns v with every string leaf escaped. Use it for values that
// come from outside the configuration, such as file names read from a
// var-defs file, before they are overlaid onto an unresolved tree.
func Escape(v cty.Value) cty.Value {
	out, _ := rebuild(v, nil, func(_ []string, leaf cty.Value) (cty.Value, error) {
		if isString(leaf) {
			return cty.StringVal(EscapeString(leaf.AsString())), nil
		}
		return leaf, nil
	})
	return out
}
