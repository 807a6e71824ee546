// Package app contains the core application logic. It wires the backend
// profile, the sweep loader, the compilation cache, the execution engine
// and the result writers together for the `run`, `prepare` and `expand`
// commands, decoupled from any specific entrypoint like a CLI.
package app
