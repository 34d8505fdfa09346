// Package dataset owns the persisted card dataset.
//
// A Dataset is an in-memory mapping of card id to card.Record. Store reads
// and commits it as one JSON file ({version, updated_at, cards}) with cards
// sorted by id; commits replace the file atomically so readers never observe
// a partial write. Merge folds a freshly resolved record into a dataset,
// preserving curated tags. Rebuilding from scratch uses the same Merge on an
// empty Dataset. Store.Lock takes an advisory flock on <dataset>.lock so only
// one fetch run writes a dataset file at a time.
package dataset
