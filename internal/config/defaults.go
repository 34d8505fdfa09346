package config

import "path/filepath"

const (
	defaultConfigPath       = "~/.config/allthatstax/config.toml"
	defaultAPIBind          = "127.0.0.1:7488"
	defaultUserAgent        = "AllThatStax/1.0"
	defaultScryfallBaseURL  = "https://api.scryfall.com"
	defaultMoxfieldBaseURL  = "https://api2.moxfield.com/v2/decks/all"
	defaultMtgchAPIURL      = "https://mtgch.com/api/v1"
	defaultMtgchSiteURL     = "https://www.mtgch.com"
	defaultTimeoutSeconds   = 20
	defaultMaxAttempts      = 4
	defaultBackoffMS        = 500
	defaultMaxBackoffMS     = 8000
	defaultScryfallInterval = 100
	defaultMoxfieldInterval = 1000
	defaultMtgchInterval    = 500
	defaultWorkers          = 1
	maxWorkers              = 8
	defaultMaxLogEntries    = 1000
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	dataDir := defaultDataDir()
	return Config{
		Paths: Paths{
			DatasetFile: filepath.Join(dataDir, "cards.json"),
			ImageDir:    filepath.Join(dataDir, "images"),
			CardList:    filepath.Join(dataDir, "card_list.json"),
			LogDir:      filepath.Join(dataDir, "logs"),
			HistoryDB:   filepath.Join(dataDir, "history.db"),
			APIBind:     defaultAPIBind,
		},
		Scryfall: defaultSource(defaultScryfallBaseURL, defaultScryfallInterval),
		Moxfield: defaultSource(defaultMoxfieldBaseURL, defaultMoxfieldInterval),
		Mtgch: Mtgch{
			Enabled: true,
			SiteURL: defaultMtgchSiteURL,
			Source:  defaultSource(defaultMtgchAPIURL, defaultMtgchInterval),
		},
		Fetch: Fetch{
			Workers:       defaultWorkers,
			MaxLogEntries: defaultMaxLogEntries,
			UserAgent:     defaultUserAgent,
			StaxTypes:     map[string]string{},
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

func defaultSource(baseURL string, intervalMS int) Source {
	return Source{
		BaseURL:        baseURL,
		MinIntervalMS:  intervalMS,
		TimeoutSeconds: defaultTimeoutSeconds,
		MaxAttempts:    defaultMaxAttempts,
		BackoffMS:      defaultBackoffMS,
		MaxBackoffMS:   defaultMaxBackoffMS,
	}
}
