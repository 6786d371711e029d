// Package configtree holds the helpers for working with configuration trees.
//
// A tree is a cty object value. cty values are immutable, so every helper
// here that "changes" a tree returns a new value and leaves its input as it
// was. This is what keeps one loop iteration's overlay from leaking into the
// base configuration used by the next.
package configtree
