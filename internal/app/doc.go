// Package app contains the core application logic. It defines the main App
// struct, its configuration, and the run lifecycle that loads the experiment
// configuration and hands it to the orchestrator, decoupled from any
// specific entrypoint like a CLI.
package app
