// Package mtgch looks up Chinese card text on mtgch.com.
//
// The site offers a JSON API whose schema has shifted over time and an HTML
// front end, so Client probes several API endpoints, walks whatever JSON comes
// back for objects that look like a Chinese printing, and falls back to
// scraping the search and detail pages with goquery. Results are best effort:
// Localize returns an empty card.Localization alongside a not-found or
// transient error and callers record a warning rather than failing the entry.
// Ambiguous searches take the first candidate.
package mtgch
