// Package daemon runs the long-lived "allthatstax serve" process.
//
// It wires configuration, the fetch workflow manager and run history into a
// single lifecycle guarded by a flock-based instance lock, and exposes them
// over an HTTP API: start, cancel and observe fetch jobs, page or stream the
// job log over a websocket, and read the committed dataset and run history.
//
// Keep orchestration logic here; fetch semantics live in the workflow package
// and wire types in the api package.
package daemon
