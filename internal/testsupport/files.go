package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"allthatstax/internal/config"
)

// WriteFile writes content to path, creating parent directories.
func WriteFile(t testing.TB, path, content string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteCardList writes lines as the configured plain-text card list.
func WriteCardList(t testing.TB, cfg *config.Config, lines ...string) {
	t.Helper()
	WriteFile(t, cfg.Paths.CardList, strings.Join(lines, "\n")+"\n")
}

// WriteConfig renders cfg as TOML at path so the CLI loads the same values.
func WriteConfig(t testing.TB, path string, cfg *config.Config) {
	t.Helper()

	var b strings.Builder
	fmt.Fprintf(&b, "[paths]\ndataset_file = %q\nimage_dir = %q\ncard_list = %q\nlog_dir = %q\nhistory_db = %q\napi_bind = %q\n\n",
		cfg.Paths.DatasetFile, cfg.Paths.ImageDir, cfg.Paths.CardList, cfg.Paths.LogDir, cfg.Paths.HistoryDB, cfg.Paths.APIBind)
	writeSource(&b, "scryfall", cfg.Scryfall)
	writeSource(&b, "moxfield", cfg.Moxfield)
	writeSource(&b, "mtgch", cfg.Mtgch.Source)
	fmt.Fprintf(&b, "enabled = %t\nsite_url = %q\n\n", cfg.Mtgch.Enabled, cfg.Mtgch.SiteURL)
	fmt.Fprintf(&b, "[fetch]\nworkers = %d\nmax_log_entries = %d\nuser_agent = %q\n\n",
		cfg.Fetch.Workers, cfg.Fetch.MaxLogEntries, cfg.Fetch.UserAgent)
	if len(cfg.Fetch.StaxTypes) > 0 {
		b.WriteString("[fetch.stax_types]\n")
		for tag, label := range cfg.Fetch.StaxTypes {
			fmt.Fprintf(&b, "%q = %q\n", tag, label)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "[logging]\nformat = %q\nlevel = %q\n", cfg.Logging.Format, cfg.Logging.Level)

	WriteFile(t, path, b.String())
}

func writeSource(b *strings.Builder, name string, src config.Source) {
	fmt.Fprintf(b, "[%s]\nbase_url = %q\nmin_interval_ms = %d\ntimeout_seconds = %d\nmax_attempts = %d\nbackoff_ms = %d\nmax_backoff_ms = %d\n",
		name, src.BaseURL, src.MinIntervalMS, src.TimeoutSeconds, src.MaxAttempts, src.BackoffMS, src.MaxBackoffMS)
}
