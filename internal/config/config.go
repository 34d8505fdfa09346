package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains file, directory, and bind address configuration.
type Paths struct {
	DatasetFile string `toml:"dataset_file"`
	ImageDir    string `toml:"image_dir"`
	CardList    string `toml:"card_list"`
	LogDir      string `toml:"log_dir"`
	HistoryDB   string `toml:"history_db"`
	APIBind     string `toml:"api_bind"`
	APIToken    string `toml:"api_token"`
}

// Source contains connection and pacing settings for one external data source.
type Source struct {
	BaseURL        string `toml:"base_url"`
	MinIntervalMS  int    `toml:"min_interval_ms"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	MaxAttempts    int    `toml:"max_attempts"`
	BackoffMS      int    `toml:"backoff_ms"`
	MaxBackoffMS   int    `toml:"max_backoff_ms"`
}

// MinInterval returns the minimum spacing between two requests.
func (s Source) MinInterval() time.Duration {
	return time.Duration(s.MinIntervalMS) * time.Millisecond
}

// Timeout returns the per-call HTTP timeout.
func (s Source) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// Backoff returns the initial retry delay.
func (s Source) Backoff() time.Duration {
	return time.Duration(s.BackoffMS) * time.Millisecond
}

// MaxBackoff returns the retry delay ceiling.
func (s Source) MaxBackoff() time.Duration {
	return time.Duration(s.MaxBackoffMS) * time.Millisecond
}

// Mtgch contains configuration for the Chinese localization source.
type Mtgch struct {
	Enabled bool   `toml:"enabled"`
	SiteURL string `toml:"site_url"`
	Source
}

// Fetch contains pipeline behaviour settings.
type Fetch struct {
	Workers       int               `toml:"workers"`
	MaxLogEntries int               `toml:"max_log_entries"`
	UserAgent     string            `toml:"user_agent"`
	StaxTypes     map[string]string `toml:"stax_types"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for allthatstax.
//
// Configuration sections by subsystem:
//   - Paths: dataset, image, card list, log, history locations and API bind
//   - Scryfall: canonical English card data
//   - Moxfield: deck list provider
//   - Mtgch: Chinese localization source
//   - Fetch: worker count, job log size, stax type labels
//   - Logging: log format and level
type Config struct {
	Paths    Paths   `toml:"paths"`
	Scryfall Source  `toml:"scryfall"`
	Moxfield Source  `toml:"moxfield"`
	Mtgch    Mtgch   `toml:"mtgch"`
	Fetch    Fetch   `toml:"fetch"`
	Logging  Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if err := loadDotEnv(filepath.Dir(resolvedPath)); err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// loadDotEnv reads a .env file next to the config without overriding
// variables already present in the environment.
func loadDotEnv(dir string) error {
	envPath := filepath.Join(dir, ".env")
	info, err := os.Stat(envPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat env file: %w", err)
	}
	if info.IsDir() {
		return nil
	}
	if err := godotenv.Load(envPath); err != nil {
		return fmt.Errorf("load env file %s: %w", envPath, err)
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("allthatstax.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories a fetch run writes into.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		filepath.Dir(c.Paths.DatasetFile),
		c.Paths.ImageDir,
		c.Paths.LogDir,
		filepath.Dir(c.Paths.HistoryDB),
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// MtgchSource exposes the pacing settings of the localization source.
func (c *Config) MtgchSource() Source {
	return c.Mtgch.Source
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func defaultDataDir() string {
	if base, ok := os.LookupEnv("XDG_DATA_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "allthatstax")
	}
	return "~/.local/share/allthatstax"
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
