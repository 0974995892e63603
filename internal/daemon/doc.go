// Package daemon coordinates the long-running capsync process.
//
// It wires configuration, the session history store, the session coordinator,
// and notifications into a single lifecycle with flock-based locking to
// prevent multiple instances. The daemon exposes session start/stop plus
// status and history queries to the IPC layer, and runs the preflight checks
// before committing to a recording.
//
// Keep orchestration logic here: session mechanics live in internal/session
// while the daemon focuses on startup, shutdown, and bookkeeping.
package daemon
