// Package staging delivers finished output files to the directory the
// forecast model reads them from.
//
// A LinkSet maps destination names, relative to a target directory, to the
// absolute paths of the files they should point at. The Linker creates each
// destination as a symbolic link (or copy) of its source, creating the target
// directory if needed. Staging is not transactional: a failure part way
// through leaves the links created so far in place, and re-running is the
// recovery path.
package staging
