package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"allthatstax/internal/config"
)

func isolateEnv(t *testing.T) string {
	t.Helper()
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("XDG_DATA_HOME", "")
	t.Setenv("ALLTHATSTAX_DATASET", "")
	t.Setenv("ALLTHATSTAX_API_TOKEN", "")
	if err := os.Unsetenv("ALLTHATSTAX_API_TOKEN"); err != nil {
		t.Fatalf("unset token: %v", err)
	}
	return tempHome
}

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := isolateEnv(t)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantDataset := filepath.Join(tempHome, ".local", "share", "allthatstax", "cards.json")
	if cfg.Paths.DatasetFile != wantDataset {
		t.Fatalf("unexpected dataset file: got %q want %q", cfg.Paths.DatasetFile, wantDataset)
	}
	if cfg.Paths.ImageDir != filepath.Join(tempHome, ".local", "share", "allthatstax", "images") {
		t.Fatalf("unexpected image dir: %q", cfg.Paths.ImageDir)
	}
	if cfg.Paths.APIBind != "127.0.0.1:7488" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.Scryfall.BaseURL != "https://api.scryfall.com" {
		t.Fatalf("unexpected scryfall base url: %q", cfg.Scryfall.BaseURL)
	}
	if !cfg.Mtgch.Enabled {
		t.Fatal("expected mtgch enabled by default")
	}
	if cfg.Fetch.Workers != 1 {
		t.Fatalf("expected sequential default, got %d workers", cfg.Fetch.Workers)
	}
	if cfg.Fetch.UserAgent != "AllThatStax/1.0" {
		t.Fatalf("unexpected user agent: %q", cfg.Fetch.UserAgent)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{filepath.Dir(cfg.Paths.DatasetFile), cfg.Paths.ImageDir, cfg.Paths.LogDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %q to exist", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	isolateEnv(t)
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "allthatstax.toml")

	type payload struct {
		Paths struct {
			DatasetFile string `toml:"dataset_file"`
		} `toml:"paths"`
		Scryfall struct {
			BaseURL       string `toml:"base_url"`
			MinIntervalMS int    `toml:"min_interval_ms"`
		} `toml:"scryfall"`
		Mtgch struct {
			Enabled bool   `toml:"enabled"`
			BaseURL string `toml:"base_url"`
		} `toml:"mtgch"`
		Fetch struct {
			Workers   int               `toml:"workers"`
			StaxTypes map[string]string `toml:"stax_types"`
		} `toml:"fetch"`
	}
	custom := payload{}
	custom.Paths.DatasetFile = filepath.Join(tempDir, "data", "cards.json")
	custom.Scryfall.BaseURL = "https://example.com/scryfall/"
	custom.Scryfall.MinIntervalMS = 250
	custom.Mtgch.Enabled = false
	custom.Mtgch.BaseURL = "https://example.com/mtgch"
	custom.Fetch.Workers = 3
	custom.Fetch.StaxTypes = map[string]string{" Spell Tax ": " 法术税 "}
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Paths.DatasetFile != custom.Paths.DatasetFile {
		t.Fatalf("expected dataset file from config, got %q", cfg.Paths.DatasetFile)
	}
	if cfg.Scryfall.BaseURL != "https://example.com/scryfall" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Scryfall.BaseURL)
	}
	if cfg.Scryfall.MinInterval().Milliseconds() != 250 {
		t.Fatalf("unexpected min interval: %v", cfg.Scryfall.MinInterval())
	}
	if cfg.Mtgch.Enabled {
		t.Fatal("expected mtgch disabled")
	}
	if cfg.MtgchSource().BaseURL != "https://example.com/mtgch" {
		t.Fatalf("unexpected mtgch base url: %q", cfg.MtgchSource().BaseURL)
	}
	if cfg.Mtgch.MaxAttempts <= 0 {
		t.Fatal("expected mtgch attempts to be defaulted")
	}
	if cfg.Fetch.Workers != 3 {
		t.Fatalf("expected 3 workers, got %d", cfg.Fetch.Workers)
	}
	if len(cfg.Fetch.StaxTypes) != 1 || cfg.Fetch.StaxTypes["Spell Tax"] != "法术税" {
		t.Fatalf("unexpected stax types: %#v", cfg.Fetch.StaxTypes)
	}
}

func TestEnvOverridesAndDotEnv(t *testing.T) {
	isolateEnv(t)
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "allthatstax.toml")
	if err := os.WriteFile(configPath, []byte("[logging]\nlevel = \"debug\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(tempDir, ".env"), []byte("ALLTHATSTAX_API_TOKEN=from-dotenv\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	datasetPath := filepath.Join(tempDir, "env", "cards.json")
	t.Setenv("ALLTHATSTAX_DATASET", datasetPath)

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Paths.APIToken != "from-dotenv" {
		t.Errorf("expected API token from .env, got %q", cfg.Paths.APIToken)
	}
	if cfg.Paths.DatasetFile != datasetPath {
		t.Errorf("expected dataset path from env, got %q", cfg.Paths.DatasetFile)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected debug level, got %q", cfg.Logging.Level)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "api.scryfall.com") {
		t.Fatalf("sample config missing scryfall url: %s", contents)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if !strings.Contains(cfg.Paths.DatasetFile, "allthatstax") {
		t.Fatalf("expected dataset file to contain allthatstax, got %q", cfg.Paths.DatasetFile)
	}
	if cfg.Mtgch.SiteURL == "" || cfg.Mtgch.BaseURL == "" {
		t.Fatalf("expected mtgch urls in sample, got %+v", cfg.Mtgch)
	}
	if len(cfg.Fetch.StaxTypes) == 0 {
		t.Fatal("expected sample stax types")
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	cfg := config.Default()
	cfg.Scryfall.BaseURL = "ftp://example.com"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for non-http base url")
	}

	cfg = config.Default()
	cfg.Fetch.Workers = 64
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for too many workers")
	}

	cfg = config.Default()
	cfg.Moxfield.BackoffMS = 5000
	cfg.Moxfield.MaxBackoffMS = 100
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when max backoff < backoff")
	}

	cfg = config.Default()
	cfg.Logging.Format = "xml"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unsupported log format")
	}

	cfg = config.Default()
	cfg.Paths.DatasetFile = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing dataset file")
	}

	cfg = config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
}
