package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	for _, src := range []struct {
		name   string
		source Source
	}{
		{"scryfall", c.Scryfall},
		{"moxfield", c.Moxfield},
		{"mtgch", c.Mtgch.Source},
	} {
		if err := validateSource(src.name, src.source); err != nil {
			return err
		}
	}
	if c.Mtgch.Enabled {
		if err := validateURL("mtgch.site_url", c.Mtgch.SiteURL); err != nil {
			return err
		}
	}
	if err := c.validateFetch(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if c.Paths.DatasetFile == "" {
		return errors.New("paths.dataset_file must be set")
	}
	if c.Paths.ImageDir == "" {
		return errors.New("paths.image_dir must be set")
	}
	if filepath.Clean(c.Paths.ImageDir) == filepath.Clean(c.Paths.DatasetFile) {
		return errors.New("paths.image_dir must differ from paths.dataset_file")
	}
	return nil
}

func validateSource(name string, s Source) error {
	if err := validateURL(name+".base_url", s.BaseURL); err != nil {
		return err
	}
	if s.MinIntervalMS < 0 {
		return fmt.Errorf("%s.min_interval_ms must be >= 0", name)
	}
	if s.MaxAttempts > 10 {
		return fmt.Errorf("%s.max_attempts must be <= 10", name)
	}
	if s.MaxBackoffMS < s.BackoffMS {
		return fmt.Errorf("%s.max_backoff_ms must be >= backoff_ms", name)
	}
	return nil
}

func validateURL(key, value string) error {
	parsed, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s must be an http(s) URL, got %q", key, value)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%s must include a host", key)
	}
	return nil
}

func (c *Config) validateFetch() error {
	if c.Fetch.Workers > maxWorkers {
		return fmt.Errorf("fetch.workers must be between 1 and %d", maxWorkers)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
