// Package history keeps a SQLite log of finished fetch runs.
//
// Each terminal run (succeeded or failed, including cancellations) is stored
// with its counters, error summary and the options it ran with, so the CLI
// and API can show what happened without parsing log files. The schema lives
// in schema.sql; when it changes bump schemaVersion and existing databases
// must be recreated.
package history
