/*
Package keypath provides the structured representation of a location inside a
configuration tree and the navigation logic that follows it.

A key path is written as a dot-separated sequence of segments, e.g.
`task_make_lbcs.chgres_cube.namelist`. Every segment but the last must name a
tree (an object or map value); the last may name anything.

Walking never modifies the tree it is given.
*/
package keypath
