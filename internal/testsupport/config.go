package testsupport

import (
	"path/filepath"
	"testing"

	"allthatstax/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Sources point at unroutable hosts, retry once and never pace, so a test
// only talks to the servers it wires in with the options below.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DatasetFile = filepath.Join(base, "data", "cards.json")
	cfgVal.Paths.ImageDir = filepath.Join(base, "data", "images")
	cfgVal.Paths.CardList = filepath.Join(base, "card_list")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.HistoryDB = filepath.Join(base, "data", "history.db")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	for _, src := range []*config.Source{&cfgVal.Scryfall, &cfgVal.Moxfield, &cfgVal.Mtgch.Source} {
		src.BaseURL = "http://127.0.0.1:1"
		src.MinIntervalMS = 0
		src.TimeoutSeconds = 5
		src.MaxAttempts = 1
		src.BackoffMS = 0
		src.MaxBackoffMS = 0
	}
	cfgVal.Mtgch.Enabled = false
	cfgVal.Mtgch.SiteURL = "http://127.0.0.1:1"
	cfgVal.Logging.Level = "error"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithScryfall points the card data source at baseURL.
func WithScryfall(baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Scryfall.BaseURL = baseURL
	}
}

// WithMoxfield points the deck source at baseURL.
func WithMoxfield(baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Moxfield.BaseURL = baseURL
	}
}

// WithMtgch enables localization against apiURL.
func WithMtgch(apiURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Mtgch.Enabled = true
		b.cfg.Mtgch.BaseURL = apiURL
		b.cfg.Mtgch.SiteURL = apiURL
	}
}

// WithStaxTypes sets the tag to stax type mapping.
func WithStaxTypes(types map[string]string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Fetch.StaxTypes = types
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.CardList)
}
