package preflight

import (
	"context"
	"path/filepath"

	"allthatstax/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// Failed returns the subset of results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}

// Storage checks the directories a run writes into.
func Storage(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	return []Result{
		CheckDirectoryAccess("Dataset directory", filepath.Dir(cfg.Paths.DatasetFile)),
		CheckDirectoryAccess("Image directory", cfg.Paths.ImageDir),
	}
}

// RunAll executes all applicable preflight checks for the given config.
// Network checks are skipped when withNetwork is false.
func RunAll(ctx context.Context, cfg *config.Config, withNetwork bool) []Result {
	if cfg == nil {
		return nil
	}

	results := Storage(cfg)
	results = append(results, CheckCardList(cfg.Paths.CardList))

	if !withNetwork {
		return results
	}

	ua := cfg.Fetch.UserAgent
	results = append(results, CheckReachable(ctx, "Scryfall", cfg.Scryfall.BaseURL, ua))
	results = append(results, CheckReachable(ctx, "Moxfield", cfg.Moxfield.BaseURL, ua))

	// Localization is optional; a disabled source is not checked.
	if cfg.Mtgch.Enabled {
		results = append(results, CheckReachable(ctx, "mtgch", cfg.Mtgch.BaseURL, ua))
	}

	return results
}
