/*
Package driver defines the contract between the orchestrator and the
executables it runs, and provides the chgres_cube implementation.

A Driver is built from a resolved configuration tree and the key path of the
task block that configures it. It exposes its resolved block and run
directory, and Run performs the work. Success is signalled solely by the
completion marker file the run leaves in the run directory; drivers report an
error from Run only when they could not attempt the run at all.

Drivers are looked up by name in a Registry so the CLI can select one and
tests can substitute their own.
*/
package driver
