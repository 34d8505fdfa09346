package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.Scryfall.normalize(defaultScryfallBaseURL, defaultScryfallInterval)
	c.Moxfield.normalize(defaultMoxfieldBaseURL, defaultMoxfieldInterval)
	c.Mtgch.Source.normalize(defaultMtgchAPIURL, defaultMtgchInterval)
	c.Mtgch.SiteURL = strings.TrimRight(strings.TrimSpace(c.Mtgch.SiteURL), "/")
	if c.Mtgch.SiteURL == "" {
		c.Mtgch.SiteURL = defaultMtgchSiteURL
	}
	c.normalizeFetch()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if value, ok := os.LookupEnv("ALLTHATSTAX_DATASET"); ok && strings.TrimSpace(value) != "" {
		c.Paths.DatasetFile = strings.TrimSpace(value)
	}
	defaults := Default().Paths
	fields := []struct {
		key      string
		value    *string
		fallback string
	}{
		{"paths.dataset_file", &c.Paths.DatasetFile, defaults.DatasetFile},
		{"paths.image_dir", &c.Paths.ImageDir, defaults.ImageDir},
		{"paths.card_list", &c.Paths.CardList, defaults.CardList},
		{"paths.log_dir", &c.Paths.LogDir, defaults.LogDir},
		{"paths.history_db", &c.Paths.HistoryDB, defaults.HistoryDB},
	}
	for _, field := range fields {
		if strings.TrimSpace(*field.value) == "" {
			*field.value = field.fallback
		}
		expanded, err := expandPath(strings.TrimSpace(*field.value))
		if err != nil {
			return fmt.Errorf("%s: %w", field.key, err)
		}
		*field.value = expanded
	}

	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("ALLTHATSTAX_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (s *Source) normalize(baseURL string, intervalMS int) {
	s.BaseURL = strings.TrimRight(strings.TrimSpace(s.BaseURL), "/")
	if s.BaseURL == "" {
		s.BaseURL = baseURL
	}
	if s.MinIntervalMS < 0 {
		s.MinIntervalMS = intervalMS
	}
	if s.TimeoutSeconds <= 0 {
		s.TimeoutSeconds = defaultTimeoutSeconds
	}
	if s.MaxAttempts <= 0 {
		s.MaxAttempts = defaultMaxAttempts
	}
	if s.BackoffMS <= 0 {
		s.BackoffMS = defaultBackoffMS
	}
	if s.MaxBackoffMS <= 0 {
		s.MaxBackoffMS = defaultMaxBackoffMS
	}
}

func (c *Config) normalizeFetch() {
	if c.Fetch.Workers <= 0 {
		c.Fetch.Workers = defaultWorkers
	}
	if c.Fetch.MaxLogEntries <= 0 {
		c.Fetch.MaxLogEntries = defaultMaxLogEntries
	}
	c.Fetch.UserAgent = strings.TrimSpace(c.Fetch.UserAgent)
	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = defaultUserAgent
	}
	staxTypes := make(map[string]string, len(c.Fetch.StaxTypes))
	for tag, label := range c.Fetch.StaxTypes {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		staxTypes[tag] = strings.TrimSpace(label)
	}
	c.Fetch.StaxTypes = staxTypes
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
