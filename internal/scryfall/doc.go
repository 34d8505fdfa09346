// Package scryfall resolves card list entries to canonical English printings.
//
// Client wraps the three Scryfall endpoints the pipeline needs: the exact
// printing lookup (/cards/{set}/{number}), the fuzzy named lookup and the
// paginated prints search. Resolver layers the lookup strategy on top: exact
// printing first when the entry carries a set and collector number, fuzzy name
// otherwise, and for name-only entries the earliest printing by release date
// with set code as tie-break so repeated runs resolve the same printing.
package scryfall
