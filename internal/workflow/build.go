package workflow

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"allthatstax/internal/cardlist"
	"allthatstax/internal/config"
	"allthatstax/internal/dataset"
	"allthatstax/internal/fetch"
	"allthatstax/internal/imagecache"
	"allthatstax/internal/moxfield"
	"allthatstax/internal/mtgch"
	"allthatstax/internal/scryfall"
)

// NewDeckSource builds the Moxfield client described by cfg.
func NewDeckSource(cfg *config.Config, logger *slog.Logger) (*moxfield.Client, error) {
	doer := fetch.FromConfig("moxfield", cfg.Moxfield, cfg.Fetch.UserAgent, logger)
	return moxfield.NewClient(doer, cfg.Moxfield.BaseURL)
}

// BuildDependencies wires the production collaborators described by cfg.
// One fetcher, and so one rate limiter, exists per external source. Image
// downloads share the Scryfall fetcher.
func BuildDependencies(cfg *config.Config, logger *slog.Logger, recorder RunRecorder) (Dependencies, error) {
	if cfg == nil {
		return Dependencies{}, fmt.Errorf("workflow: config required")
	}
	ua := cfg.Fetch.UserAgent

	scryfallDoer := fetch.FromConfig("scryfall", cfg.Scryfall, ua, logger)
	lookup, err := scryfall.NewClient(scryfallDoer, cfg.Scryfall.BaseURL)
	if err != nil {
		return Dependencies{}, err
	}

	var localizer mtgch.Localizer = mtgch.Nop{}
	if cfg.Mtgch.Enabled {
		mtgchDoer := fetch.FromConfig("mtgch", cfg.MtgchSource(), ua, logger)
		client, err := mtgch.NewClient(mtgchDoer, cfg.Mtgch.BaseURL, cfg.Mtgch.SiteURL, logger)
		if err != nil {
			return Dependencies{}, err
		}
		localizer = client
	}

	images, err := imagecache.New(cfg.Paths.ImageDir, filepath.Dir(cfg.Paths.DatasetFile), scryfallDoer, logger)
	if err != nil {
		return Dependencies{}, err
	}

	decks, err := NewDeckSource(cfg, logger)
	if err != nil {
		return Dependencies{}, err
	}

	deps := Dependencies{
		Resolver:       scryfall.NewResolver(lookup, logger),
		Localizer:      localizer,
		Images:         images,
		Decks:          decks,
		Dataset:        dataset.NewStore(cfg.Paths.DatasetFile),
		LoadList:       cardlist.Load,
		DefaultList:    cfg.Paths.CardList,
		DefaultWorkers: cfg.Fetch.Workers,
		StaxTypes:      cfg.Fetch.StaxTypes,
		MaxLogEntries:  cfg.Fetch.MaxLogEntries,
		History:        recorder,
	}
	return deps, nil
}
