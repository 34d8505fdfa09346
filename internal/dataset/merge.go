package dataset

import (
	"time"

	"allthatstax/internal/card"
)

// MergeOptions tunes Merge.
type MergeOptions struct {
	// ResetTags replaces existing tags with the fresh ones instead of
	// taking their union.
	ResetTags bool
}

// Merge folds a freshly resolved record into d and returns the stored
// result. Resolved fields replace those of an existing record with the same
// id. Tags are the union of old and new unless opts.ResetTags is set, and a
// stax type only survives from the old record when the fresh record has none
// and tags were not reset. LastUpdated is set to now. created reports whether
// the id was new to d.
func (d *Dataset) Merge(fresh card.Record, opts MergeOptions, now time.Time) (merged card.Record, created bool) {
	merged = fresh
	merged.Tags = card.NormalizeTags(fresh.Tags)
	merged.LastUpdated = now.UTC()

	old, exists := d.records[fresh.ID]
	if exists && !opts.ResetTags {
		merged.Tags = card.UnionTags(old.Tags, fresh.Tags)
		if merged.StaxType == "" {
			merged.StaxType = old.StaxType
		}
	}
	d.records[merged.ID] = merged
	return merged, !exists
}
