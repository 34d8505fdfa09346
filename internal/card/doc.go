// Package card defines the card domain model shared by the fetch pipeline:
// card list entries, canonical printings, localizations and the persisted
// Record, together with the deterministic helpers (ids, tag sets, legality
// ordering, sort buckets) that make repeated runs produce identical records.
package card
