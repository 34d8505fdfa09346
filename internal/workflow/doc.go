// Package workflow runs fetch jobs: it reads a card list (or a Moxfield deck),
// resolves every entry against Scryfall, localizes it through mtgch, caches its
// images and merges the results into the dataset before committing it in one
// atomic write.
//
// A Manager owns at most one job at a time. Its state is exposed through
// Snapshot and a sequenced job log (Journal) that API and CLI followers read
// with a cursor. Entries are processed by a bounded worker pool; merges are
// applied in input order so a run is deterministic regardless of completion
// order.
package workflow
