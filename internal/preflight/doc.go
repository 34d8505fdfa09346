// Package preflight provides readiness checks for the filesystem paths and
// external sources that a fetch run depends on.
//
// The CLI "allthatstax doctor" command renders RunAll as a table. The HTTP
// API exposes the same results so a UI can show why a run would fail before
// starting one.
//
// Localization checks are gated by the mtgch toggle; a disabled source is
// skipped rather than reported.
package preflight
