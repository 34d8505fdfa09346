package workflow_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"allthatstax/internal/card"
	"allthatstax/internal/dataset"
	"allthatstax/internal/fetch"
	"allthatstax/internal/history"
	"allthatstax/internal/imagecache"
	"allthatstax/internal/moxfield"
	"allthatstax/internal/scryfall"
	"allthatstax/internal/services"
	"allthatstax/internal/workflow"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeResolver struct {
	mu    sync.Mutex
	cards map[string]card.Canonical
	errs  map[string]error
	calls int
	// block, when set, is waited on (or ctx) before answering.
	block chan struct{}
	delay func(name string) time.Duration
}

func (f *fakeResolver) Resolve(ctx context.Context, entry card.Entry) (scryfall.Resolution, error) {
	f.mu.Lock()
	f.calls++
	block := f.block
	f.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return scryfall.Resolution{}, ctx.Err()
		}
	}
	if f.delay != nil {
		if err := fetch.SleepWithContext(ctx, f.delay(entry.Name)); err != nil {
			return scryfall.Resolution{}, err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.errs[entry.Name]; ok {
		return scryfall.Resolution{}, err
	}
	c, ok := f.cards[entry.Name]
	if !ok {
		return scryfall.Resolution{}, services.Wrap(services.ErrNotFound, "scryfall", "resolve", entry.Label(), nil)
	}
	return scryfall.Resolution{Card: c}, nil
}

type fakeLocalizer struct {
	locs map[string]card.Localization
	err  error
}

func (f *fakeLocalizer) Localize(_ context.Context, c card.Canonical) (card.Localization, error) {
	if f.err != nil {
		return card.Localization{}, f.err
	}
	loc, ok := f.locs[c.EnglishName]
	if !ok {
		return card.Localization{}, services.Wrap(services.ErrNotFound, "mtgch", "localize", c.EnglishName, nil)
	}
	return loc, nil
}

type fakeRecorder struct {
	mu   sync.Mutex
	runs []history.Run
}

func (f *fakeRecorder) Record(_ context.Context, run history.Run) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, run)
	return nil
}

func (f *fakeRecorder) Runs() []history.Run {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]history.Run(nil), f.runs...)
}

type fakeDecks struct {
	deck moxfield.Deck
	err  error
}

func (f fakeDecks) Deck(context.Context, string) (moxfield.Deck, error) {
	return f.deck, f.err
}

// failingCommit wraps a real store but refuses to commit.
type failingCommit struct {
	*dataset.Store
}

func (failingCommit) Commit(*dataset.Dataset, time.Time) error {
	return services.Wrap(services.ErrStorage, "dataset", "commit", "disk full", errors.New("no space left on device"))
}

type harness struct {
	dir       string
	store     *dataset.Store
	resolver  *fakeResolver
	localizer *fakeLocalizer
	recorder  *fakeRecorder
	imageHits atomic.Int32
	imageURL  string
	entries   []card.Entry
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{dir: t.TempDir()}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.imageHits.Add(1)
		_, _ = w.Write([]byte("png:" + r.URL.Path))
	}))
	t.Cleanup(srv.Close)
	h.imageURL = srv.URL

	h.store = dataset.NewStore(filepath.Join(h.dir, "cards.json"))
	h.resolver = &fakeResolver{
		cards: map[string]card.Canonical{
			"Aether Barrier":              h.canonical("Aether Barrier", "NEM", "27", "Enchantment"),
			"Thalia, Guardian of Thraben": h.canonical("Thalia, Guardian of Thraben", "DKA", "24", "Legendary Creature — Human Soldier"),
			"Sphere of Resistance":        h.canonical("Sphere of Resistance", "TMP", "304", "Artifact"),
		},
	}
	h.localizer = &fakeLocalizer{locs: map[string]card.Localization{
		"Aether Barrier": {ChineseName: "以太屏障", ChineseTypeLine: "结界"},
	}}
	h.recorder = &fakeRecorder{}
	h.entries = []card.Entry{{Quantity: 1, Name: "Aether Barrier", SetCode: "NEM", CollectorNumber: "27", Tags: []string{"Spell Tax"}}}
	return h
}

func (h *harness) canonical(name, set, number, typeLine string) card.Canonical {
	return card.Canonical{
		EnglishName:     name,
		TypeLine:        typeLine,
		SetCode:         set,
		CollectorNumber: number,
		ImageURL:        h.imageURL + "/" + strings.ToLower(set) + "/" + number + ".png",
		Legalities:      []card.Legality{{Format: "legacy", Status: "legal"}},
	}
}

func (h *harness) deps(t *testing.T) workflow.Dependencies {
	t.Helper()
	images, err := imagecache.New(filepath.Join(h.dir, "images"), h.dir, fetch.New("images"), nil)
	if err != nil {
		t.Fatalf("imagecache.New: %v", err)
	}
	return workflow.Dependencies{
		Resolver:  h.resolver,
		Localizer: h.localizer,
		Images:    images,
		Dataset:   h.store,
		History:   h.recorder,
		LoadList: func(string) ([]card.Entry, error) {
			return append([]card.Entry(nil), h.entries...), nil
		},
		DefaultList: filepath.Join(h.dir, "list.json"),
		StaxTypes:   map[string]string{"Spell Tax": "法术税", "Lock Piece": "锁"},
	}
}

func (h *harness) manager(t *testing.T, mutate ...func(*workflow.Dependencies)) *workflow.Manager {
	t.Helper()
	deps := h.deps(t)
	for _, fn := range mutate {
		fn(&deps)
	}
	ids := 0
	m, err := workflow.NewManager(deps, nil,
		workflow.WithClock(func() time.Time { return fixedNow }),
		workflow.WithIDGenerator(func() string {
			ids++
			return "job-" + string(rune('0'+ids))
		}),
	)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	t.Cleanup(m.Close)
	return m
}

func runJob(t *testing.T, m *workflow.Manager, opts workflow.Options) workflow.State {
	t.Helper()
	if _, err := m.Start(context.Background(), opts); err != nil {
		t.Fatalf("Start: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	state, err := m.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	return state
}

func entriesAt(state workflow.State, level workflow.Level) []workflow.LogEntry {
	var out []workflow.LogEntry
	for _, e := range state.Log {
		if e.Level == level {
			out = append(out, e)
		}
	}
	return out
}
