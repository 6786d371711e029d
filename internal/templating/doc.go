/*
Package templating resolves the template expressions embedded in the string
leaves of a configuration tree.

Templates use HCL template syntax: `${expr}` interpolates, `%{ if }` and
`%{ for }` directives are available, and `$${` / `%%{` produce the literal
markers. An expression may refer to:

  - env       the environment captured in the RunContext
  - cycle     the cycle timestamp as an RFC 3339 string
  - member    the ensemble member identifier
  - leadtime  the forecast hour, when the context carries one
  - any top-level key of the tree being resolved, e.g. workflow.CRES

Context names shadow top-level keys of the same name. Leaves are resolved in
dependency order, so a template may refer to another templated leaf. A
template consisting of exactly one interpolation keeps the type of its value.

Resolution is all or nothing: any template that cannot be evaluated, or a set
of templates that refer to each other in a cycle, fails the whole call.
*/
package templating
