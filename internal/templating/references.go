package templating

import (
	"strconv"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"
)

// TraversalKey renders a traversal in its canonical source form, e.g.
// `workflow.CRES` or `env["HOME"]`.
func TraversalKey(t hcl.Traversal) string {
	return string(hclwrite.TokensForTraversal(t).Bytes())
}

// referenceSegments converts a traversal into the key segments it names,
// stopping at the first step that is not a static attribute or index.
func referenceSegments(t hcl.Traversal) []string {
	segments := make([]string, 0, len(t))
	for _, step := range t {
		switch s := step.(type) {
		case hcl.TraverseRoot:
			segments = append(segments, s.Name)
		case hcl.TraverseAttr:
			segments = append(segments, s.Name)
		case hcl.TraverseIndex:
			key, ok := indexSegment(s.Key)
			if !ok {
				return segments
			}
			segments = append(segments, key)
		default:
			return segments
		}
	}
	return segments
}

func indexSegment(key cty.Value) (string, bool) {
	if key.IsNull() || !key.IsKnown() {
		return "", false
	}
	switch key.Type() {
	case cty.String:
		return key.AsString(), true
	case cty.Number:
		i, acc := key.AsBigFloat().Int64()
		if acc != 0 {
			return "", false
		}
		return strconv.FormatInt(i, 10), true
	}
	return "", false
}

// overlaps reports whether one segment list is a prefix of the other.
func overlaps(a, b []string) bool {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
