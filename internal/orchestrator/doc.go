/*
Package orchestrator drives chgres_cube for one task block of a cycle.

A Controller resolves the experiment configuration, decides between the
initial-condition branch (one run) and the lateral-boundary loop (one run per
forecast hour), builds the per-run namelist overlay from the external-model
var-defs file, runs a fresh Driver for every run and stages the outputs under
their workflow names.

The raw configuration tree is never modified. Overlays accumulate on a
threaded copy that is re-resolved with each run's own RunContext, so a failed
run leaves the base tree intact. A run whose completion marker is missing
ends the whole control loop with a *DriverFailure; later forecast hours are
not attempted.
*/
package orchestrator
