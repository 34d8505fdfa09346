// Package moxfield downloads deck lists from Moxfield and converts their
// mainboard into card list entries. Custom category groups and per-card
// categories become entry tags.
package moxfield
