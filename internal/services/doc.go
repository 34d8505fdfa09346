// Package services defines shared utilities consumed by the fetch pipeline and
// its external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs and card identities for logging.
//   - Structured error markers plus the Wrap helper so every failure can be
//     classified (transient, not found, storage, busy, ...) with errors.Is.
//   - EntryError, which carries the card a failure belongs to.
//
// Use these helpers when wiring new integrations so retry and fatality
// decisions stay uniform across the pipeline.
package services
