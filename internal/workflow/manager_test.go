package workflow_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"allthatstax/internal/card"
	"allthatstax/internal/moxfield"
	"allthatstax/internal/services"
	"allthatstax/internal/workflow"
)

func TestRunStoresEnrichedRecord(t *testing.T) {
	h := newHarness(t)
	m := h.manager(t)

	state := runJob(t, m, workflow.Options{})
	if state.Status != workflow.StatusSucceeded {
		t.Fatalf("status = %s (%s)", state.Status, state.Error)
	}
	if state.Result == nil {
		t.Fatal("expected summary")
	}
	want := workflow.Summary{CardsProcessed: 1, CardsUpdated: 1, ImagesDownloaded: 1, Errors: []string{}}
	if diff := cmp.Diff(want, *state.Result); diff != "" {
		t.Fatalf("summary mismatch (-want +got):\n%s", diff)
	}

	ds, err := h.store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	rec, ok := ds.Get("nem-27-aether-barrier")
	if !ok {
		t.Fatalf("record missing, have %d records", ds.Len())
	}
	if rec.ChineseName != "以太屏障" || rec.StaxType != "法术税" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if diff := cmp.Diff([]string{"Spell Tax"}, rec.Tags); diff != "" {
		t.Fatalf("tags mismatch (-want +got):\n%s", diff)
	}
	if rec.ImagePath != "images/nem_27.png" {
		t.Fatalf("image path = %q", rec.ImagePath)
	}
	if !rec.LastUpdated.Equal(fixedNow) {
		t.Fatalf("lastUpdated = %v", rec.LastUpdated)
	}
}

func TestSecondRunIsIdempotentAndSkipsImages(t *testing.T) {
	h := newHarness(t)
	m := h.manager(t)

	runJob(t, m, workflow.Options{})
	first, err := os.ReadFile(h.store.Path())
	if err != nil {
		t.Fatalf("read dataset: %v", err)
	}

	state := runJob(t, m, workflow.Options{})
	if state.Status != workflow.StatusSucceeded {
		t.Fatalf("status = %s (%s)", state.Status, state.Error)
	}
	if state.ImagesDownloaded != 0 {
		t.Fatalf("second run downloaded %d images", state.ImagesDownloaded)
	}
	if got := h.imageHits.Load(); got != 1 {
		t.Fatalf("image server hits = %d, want 1", got)
	}
	second, err := os.ReadFile(h.store.Path())
	if err != nil {
		t.Fatalf("read dataset: %v", err)
	}
	if diff := cmp.Diff(string(first), string(second)); diff != "" {
		t.Fatalf("dataset changed between identical runs (-first +second):\n%s", diff)
	}
}

func TestForceImagesRedownloads(t *testing.T) {
	h := newHarness(t)
	m := h.manager(t)

	runJob(t, m, workflow.Options{})
	state := runJob(t, m, workflow.Options{ForceImages: true})
	if state.ImagesDownloaded != 1 || h.imageHits.Load() != 2 {
		t.Fatalf("images downloaded = %d, hits = %d", state.ImagesDownloaded, h.imageHits.Load())
	}
}

func TestTagsArePreservedAcrossRuns(t *testing.T) {
	h := newHarness(t)
	m := h.manager(t)

	runJob(t, m, workflow.Options{})
	h.entries[0].Tags = []string{"Lock Piece"}
	runJob(t, m, workflow.Options{})

	ds, err := h.store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	rec, _ := ds.Get("nem-27-aether-barrier")
	if diff := cmp.Diff([]string{"Lock Piece", "Spell Tax"}, rec.Tags); diff != "" {
		t.Fatalf("tags mismatch (-want +got):\n%s", diff)
	}

	runJob(t, m, workflow.Options{ResetTags: true})
	ds, _ = h.store.Load()
	rec, _ = ds.Get("nem-27-aether-barrier")
	if diff := cmp.Diff([]string{"Lock Piece"}, rec.Tags); diff != "" {
		t.Fatalf("reset tags mismatch (-want +got):\n%s", diff)
	}
	if rec.StaxType != "锁" {
		t.Fatalf("stax type = %q", rec.StaxType)
	}
}

func TestFromScratchDropsRecordsNotInList(t *testing.T) {
	h := newHarness(t)
	m := h.manager(t)

	h.entries = append(h.entries, card.Entry{Quantity: 1, Name: "Sphere of Resistance"})
	runJob(t, m, workflow.Options{})

	h.entries = h.entries[:1]
	runJob(t, m, workflow.Options{})
	ds, _ := h.store.Load()
	if ds.Len() != 2 {
		t.Fatalf("incremental run should keep old records, have %d", ds.Len())
	}

	runJob(t, m, workflow.Options{FromScratch: true})
	ds, _ = h.store.Load()
	if ds.Len() != 1 {
		t.Fatalf("from-scratch run should rebuild, have %d", ds.Len())
	}
}

func TestLocalizationFailureDegradesToEmptyFields(t *testing.T) {
	h := newHarness(t)
	h.localizer.err = services.Wrap(services.ErrParse, "mtgch", "localize", "unrecognised page", nil)
	m := h.manager(t)

	state := runJob(t, m, workflow.Options{})
	if state.Status != workflow.StatusSucceeded {
		t.Fatalf("status = %s (%s)", state.Status, state.Error)
	}
	warnings := entriesAt(state, workflow.LevelWarning)
	if len(warnings) != 1 {
		t.Fatalf("expected exactly one warning, got %+v", warnings)
	}
	if warnings[0].Card != "Aether Barrier (NEM 27)" {
		t.Fatalf("warning card = %q", warnings[0].Card)
	}

	ds, _ := h.store.Load()
	rec, _ := ds.Get("nem-27-aether-barrier")
	if rec.ChineseName != "" || rec.ChineseTypeLine != "" || rec.ChineseOracleText != "" {
		t.Fatalf("expected empty localized fields, got %+v", rec)
	}
	if rec.EnglishName != "Aether Barrier" {
		t.Fatalf("english name = %q", rec.EnglishName)
	}
}

func TestSkipLocalizationDoesNotCallLocalizer(t *testing.T) {
	h := newHarness(t)
	h.localizer.err = errors.New("must not be called")
	m := h.manager(t)

	state := runJob(t, m, workflow.Options{SkipLocalization: true})
	if state.Status != workflow.StatusSucceeded {
		t.Fatalf("status = %s (%s)", state.Status, state.Error)
	}
	if got := entriesAt(state, workflow.LevelWarning); len(got) != 0 {
		t.Fatalf("unexpected warnings: %+v", got)
	}
}

func TestNotFoundEntryIsNonFatal(t *testing.T) {
	h := newHarness(t)
	h.entries = append(h.entries, card.Entry{Quantity: 1, Name: "Definitely Not A Card", SetCode: "XXX", CollectorNumber: "1"})
	m := h.manager(t)

	state := runJob(t, m, workflow.Options{})
	if state.Status != workflow.StatusSucceeded {
		t.Fatalf("status = %s (%s)", state.Status, state.Error)
	}
	if state.Processed != state.Total || state.Total != 2 {
		t.Fatalf("processed %d of %d", state.Processed, state.Total)
	}
	if len(state.Result.Errors) != 1 {
		t.Fatalf("errors = %v", state.Result.Errors)
	}
	if !strings.Contains(state.Result.Errors[0], "Definitely Not A Card") || !strings.Contains(state.Result.Errors[0], "not_found") {
		t.Fatalf("error lacks entry identity: %q", state.Result.Errors[0])
	}
	if state.Updated != 1 {
		t.Fatalf("updated = %d", state.Updated)
	}
}

func TestCommitFailureLeavesOldFile(t *testing.T) {
	h := newHarness(t)
	m := h.manager(t)
	runJob(t, m, workflow.Options{})
	before, err := os.ReadFile(h.store.Path())
	if err != nil {
		t.Fatalf("read dataset: %v", err)
	}

	h.entries = append(h.entries, card.Entry{Quantity: 1, Name: "Sphere of Resistance"})
	failing := h.manager(t, func(d *workflow.Dependencies) {
		d.Dataset = failingCommit{Store: h.store}
	})
	state := runJob(t, failing, workflow.Options{})
	if state.Status != workflow.StatusFailed {
		t.Fatalf("status = %s", state.Status)
	}
	if !strings.Contains(state.Error, "disk full") {
		t.Fatalf("error = %q", state.Error)
	}
	after, err := os.ReadFile(h.store.Path())
	if err != nil {
		t.Fatalf("read dataset: %v", err)
	}
	if string(before) != string(after) {
		t.Fatal("dataset file changed after failed commit")
	}
}

func TestListLoadFailureIsFatal(t *testing.T) {
	h := newHarness(t)
	m := h.manager(t, func(d *workflow.Dependencies) {
		d.LoadList = func(string) ([]card.Entry, error) {
			return nil, services.Wrap(services.ErrValidation, "card list", "load", "missing file", nil)
		}
	})
	state := runJob(t, m, workflow.Options{})
	if state.Status != workflow.StatusFailed || state.Error == "" {
		t.Fatalf("state = %+v", state)
	}
	if _, err := os.Stat(h.store.Path()); !os.IsNotExist(err) {
		t.Fatalf("dataset should not be written, stat err = %v", err)
	}
}

func TestStartWhileRunningIsBusy(t *testing.T) {
	h := newHarness(t)
	h.resolver.block = make(chan struct{})
	m := h.manager(t)

	first, err := m.Start(context.Background(), workflow.Options{})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if first.Status != workflow.StatusRunning || first.JobID != "job-1" {
		t.Fatalf("initial state = %+v", first)
	}

	_, err = m.Start(context.Background(), workflow.Options{FromScratch: true})
	if services.KindOf(err) != services.KindBusy {
		t.Fatalf("expected busy error, got %v", err)
	}
	if snap := m.Snapshot(0); snap.JobID != "job-1" || snap.Options.FromScratch {
		t.Fatalf("running job was modified: %+v", snap)
	}

	close(h.resolver.block)
	state, err := m.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if state.Status != workflow.StatusSucceeded {
		t.Fatalf("status = %s (%s)", state.Status, state.Error)
	}
}

func TestCancelEndsInFailedCancelled(t *testing.T) {
	h := newHarness(t)
	h.resolver.block = make(chan struct{})
	m := h.manager(t)

	if _, err := m.Start(context.Background(), workflow.Options{}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !m.Cancel() {
		t.Fatal("Cancel reported no running job")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	state, err := m.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if state.Status != workflow.StatusFailed || state.Error != "cancelled" {
		t.Fatalf("state = %s %q", state.Status, state.Error)
	}
	if _, err := os.Stat(h.store.Path()); !os.IsNotExist(err) {
		t.Fatalf("dataset should not be written, stat err = %v", err)
	}
	if m.Cancel() {
		t.Fatal("Cancel after finish should report false")
	}
}

func TestMergeFollowsInputOrder(t *testing.T) {
	h := newHarness(t)
	h.entries = []card.Entry{
		{Quantity: 1, Name: "Aether Barrier", SetCode: "NEM", CollectorNumber: "27"},
		{Quantity: 1, Name: "Thalia, Guardian of Thraben"},
		{Quantity: 1, Name: "Sphere of Resistance"},
	}
	// Earlier entries finish last.
	h.resolver.delay = func(name string) time.Duration {
		switch name {
		case "Aether Barrier":
			return 60 * time.Millisecond
		case "Thalia, Guardian of Thraben":
			return 30 * time.Millisecond
		default:
			return 0
		}
	}
	m := h.manager(t)

	state := runJob(t, m, workflow.Options{Workers: 3, SkipLocalization: true})
	if state.Status != workflow.StatusSucceeded {
		t.Fatalf("status = %s (%s)", state.Status, state.Error)
	}
	var cards []string
	var processed []int
	for _, e := range state.Log {
		if e.Level == workflow.LevelInfo && strings.HasPrefix(e.Message, "added ") {
			cards = append(cards, e.Card)
			processed = append(processed, e.Processed)
		}
	}
	want := []string{"Aether Barrier (NEM 27)", "Thalia, Guardian of Thraben", "Sphere of Resistance"}
	if diff := cmp.Diff(want, cards); diff != "" {
		t.Fatalf("merge order mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{1, 2, 3}, processed); diff != "" {
		t.Fatalf("progress mismatch (-want +got):\n%s", diff)
	}
}

func TestLogRecordsEachEntryStep(t *testing.T) {
	h := newHarness(t)
	m := h.manager(t)

	stepsFor := func(state workflow.State, label string) []string {
		var out []string
		for _, e := range state.Log {
			if e.Card == label {
				out = append(out, e.Message)
			}
		}
		return out
	}

	first := runJob(t, m, workflow.Options{})
	want := []string{
		"started",
		"resolved NEM 27",
		"localized as 以太屏障",
		"downloaded 1 image(s)",
		"added nem-27-aether-barrier",
	}
	if diff := cmp.Diff(want, stepsFor(first, "Aether Barrier (NEM 27)")); diff != "" {
		t.Fatalf("first run steps mismatch (-want +got):\n%s", diff)
	}

	second := runJob(t, m, workflow.Options{SkipLocalization: true})
	want = []string{
		"started",
		"resolved NEM 27",
		"image cached",
		"updated nem-27-aether-barrier",
	}
	if diff := cmp.Diff(want, stepsFor(second, "Aether Barrier (NEM 27)")); diff != "" {
		t.Fatalf("second run steps mismatch (-want +got):\n%s", diff)
	}
}

func TestFailedEntryIsJournaledWithCardLabel(t *testing.T) {
	h := newHarness(t)
	h.entries = append(h.entries, card.Entry{Quantity: 1, Name: "Definitely Not A Card", SetCode: "XXX", CollectorNumber: "1"})
	m := h.manager(t)

	state := runJob(t, m, workflow.Options{})
	errs := entriesAt(state, workflow.LevelError)
	if len(errs) != 1 {
		t.Fatalf("expected one error entry, got %+v", errs)
	}
	if errs[0].Card != "Definitely Not A Card (XXX 1)" {
		t.Fatalf("error card = %q", errs[0].Card)
	}
	if !strings.Contains(errs[0].Message, "not_found") {
		t.Fatalf("error message lacks kind: %q", errs[0].Message)
	}
	var steps []string
	for _, e := range state.Log {
		if e.Card == "Definitely Not A Card (XXX 1)" {
			steps = append(steps, e.Message)
		}
	}
	if len(steps) != 2 || steps[0] != "started" {
		t.Fatalf("failed entry steps = %q", steps)
	}
}

func TestLogSequenceIsMonotonic(t *testing.T) {
	h := newHarness(t)
	m := h.manager(t)

	first := runJob(t, m, workflow.Options{})
	second := runJob(t, m, workflow.Options{})
	if len(second.Log) == 0 || second.Log[0].Seq <= first.Log[len(first.Log)-1].Seq {
		t.Fatal("sequence numbers must keep increasing across runs")
	}
	if second.Log[0].Message != "fetch started" {
		t.Fatalf("log should be reset per run, first entry %q", second.Log[0].Message)
	}
	for i := 1; i < len(second.Log); i++ {
		if second.Log[i].Seq != second.Log[i-1].Seq+1 {
			t.Fatalf("gap in sequence at %d", i)
		}
	}
}

func TestRunsAreRecordedInHistory(t *testing.T) {
	h := newHarness(t)
	m := h.manager(t)

	runJob(t, m, workflow.Options{Workers: 2})
	runs := h.recorder.Runs()
	if len(runs) != 1 {
		t.Fatalf("recorded %d runs", len(runs))
	}
	run := runs[0]
	if run.JobID != "job-1" || run.Status != "succeeded" || run.Processed != 1 || run.ImagesDownloaded != 1 {
		t.Fatalf("unexpected run: %+v", run)
	}
	if !strings.Contains(string(run.Options), `"workers":2`) {
		t.Fatalf("options = %s", run.Options)
	}
}

func TestDeckOption(t *testing.T) {
	h := newHarness(t)
	m := h.manager(t, func(d *workflow.Dependencies) {
		d.Decks = fakeDecks{deck: moxfield.Deck{
			ID: "abc123",
			Cards: []card.Entry{
				{Quantity: 1, Name: "Sphere of Resistance", SetCode: "TMP", CollectorNumber: "304", Tags: []string{"Spell Tax"}},
				{Quantity: 2, Name: "Sphere of Resistance", SetCode: "TMP", CollectorNumber: "304"},
			},
		}}
		d.LoadList = func(string) ([]card.Entry, error) {
			t.Error("list must not be read when a deck is given")
			return nil, nil
		}
	})

	state := runJob(t, m, workflow.Options{Deck: "abc123"})
	if state.Status != workflow.StatusSucceeded {
		t.Fatalf("status = %s (%s)", state.Status, state.Error)
	}
	if state.Total != 1 {
		t.Fatalf("duplicate deck entries should coalesce, total = %d", state.Total)
	}
}

func TestDeckOptionWithoutSourceIsRejected(t *testing.T) {
	h := newHarness(t)
	m := h.manager(t)
	if _, err := m.Start(context.Background(), workflow.Options{Deck: "abc"}); services.KindOf(err) != services.KindConfiguration {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if snap := m.Snapshot(0); snap.Status != workflow.StatusIdle {
		t.Fatalf("status = %s", snap.Status)
	}
}
