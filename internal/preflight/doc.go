// Package preflight provides readiness checks for the filesystem paths,
// disk space, binaries, and ingest endpoint that capsync depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll before starting a recording session. If any
//     check fails, the session is refused instead of failing minutes in.
//   - The CLI "capsync status" command uses the individual check functions
//     to display readiness.
package preflight
