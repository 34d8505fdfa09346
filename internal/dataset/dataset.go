package dataset

import (
	"sort"
	"time"

	"allthatstax/internal/card"
)

// FormatVersion is written to every committed dataset file.
const FormatVersion = 1

// Dataset is an ordered id → record mapping.
type Dataset struct {
	records   map[string]card.Record
	updatedAt time.Time
}

// New returns an empty dataset.
func New() *Dataset {
	return &Dataset{records: make(map[string]card.Record)}
}

// Len returns the number of records.
func (d *Dataset) Len() int {
	return len(d.records)
}

// UpdatedAt returns the commit time recorded in the file, if any.
func (d *Dataset) UpdatedAt() time.Time {
	return d.updatedAt
}

// Get returns the record with the given id.
func (d *Dataset) Get(id string) (card.Record, bool) {
	rec, ok := d.records[id]
	return rec, ok
}

// Put stores rec under its id, replacing any previous record.
func (d *Dataset) Put(rec card.Record) {
	d.records[rec.ID] = rec
}

// Records returns all records sorted by id.
func (d *Dataset) Records() []card.Record {
	out := make([]card.Record, 0, len(d.records))
	for _, rec := range d.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// WithTag returns the records carrying tag, sorted by id.
func (d *Dataset) WithTag(tag string) []card.Record {
	var out []card.Record
	for _, rec := range d.Records() {
		if rec.HasTag(tag) {
			out = append(out, rec)
		}
	}
	return out
}

// Clone returns a copy that can be mutated independently of d.
func (d *Dataset) Clone() *Dataset {
	clone := &Dataset{records: make(map[string]card.Record, len(d.records)), updatedAt: d.updatedAt}
	for id, rec := range d.records {
		clone.records[id] = rec
	}
	return clone
}
