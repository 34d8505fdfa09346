package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"allthatstax/internal/config"
	"allthatstax/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	scryfall   *fakeScryfall
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(homeDir, ".config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(homeDir, ".local", "share"))
	t.Setenv("ALLTHATSTAX_API_TOKEN", "")

	scry := newFakeScryfall(t)
	opts = append([]testsupport.ConfigOption{testsupport.WithScryfall(scry.srv.URL)}, opts...)
	cfg := testsupport.NewConfig(t, opts...)

	configPath := filepath.Join(homeDir, ".config", "allthatstax", "config.toml")
	testsupport.WriteConfig(t, configPath, cfg)

	return &cliTestEnv{cfg: cfg, configPath: configPath, scryfall: scry}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// fakeScryfall answers printing lookups for a fixed set of cards and serves
// their images.
type fakeScryfall struct {
	srv      *httptest.Server
	cards    map[string]map[string]any
	imageHit atomic.Int32
}

func newFakeScryfall(t *testing.T) *fakeScryfall {
	t.Helper()
	f := &fakeScryfall{cards: map[string]map[string]any{}}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)

	f.add("nem", "27", "Aether Barrier", "Enchantment", "{2}{U}")
	f.add("dka", "24", "Thalia, Guardian of Thraben", "Legendary Creature — Human Soldier", "{1}{W}")
	return f
}

func (f *fakeScryfall) add(set, number, name, typeLine, cost string) {
	f.cards[set+"/"+number] = map[string]any{
		"object":           "card",
		"id":               set + "-" + number,
		"name":             name,
		"lang":             "en",
		"released_at":      "2000-03-07",
		"mana_cost":        cost,
		"cmc":              3.0,
		"type_line":        typeLine,
		"oracle_text":      "Whenever a player casts a creature spell, that player sacrifices a permanent unless they pay {1}.",
		"legalities":       map[string]string{"legacy": "legal", "vintage": "legal", "standard": "not_legal"},
		"set":              set,
		"set_name":         strings.ToUpper(set),
		"collector_number": number,
		"image_uris":       map[string]string{"png": f.srv.URL + "/img/" + set + "_" + number + ".png"},
	}
}

func (f *fakeScryfall) serve(w http.ResponseWriter, r *http.Request) {
	switch {
	case strings.HasPrefix(r.URL.Path, "/img/"):
		f.imageHit.Add(1)
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("\x89PNG fake"))
	case strings.HasPrefix(r.URL.Path, "/cards/"):
		payload, ok := f.cards[strings.TrimPrefix(r.URL.Path, "/cards/")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"object":"error","status":404,"details":"No card found"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(payload)
	default:
		http.NotFound(w, r)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
