package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"allthatstax/internal/card"
	"allthatstax/internal/cardlist"
	"allthatstax/internal/dataset"
	"allthatstax/internal/imagecache"
	"allthatstax/internal/logging"
	"allthatstax/internal/services"
)

type job struct {
	manager *Manager
	id      string
	opts    Options
	logger  *slog.Logger
	errors  []string
}

func (j *job) run(ctx context.Context) {
	m := j.manager
	started := m.now()

	entries, err := j.loadEntries(ctx)
	if err != nil {
		j.fail(ctx, err)
		return
	}
	m.update(LevelInfo, fmt.Sprintf("loaded %d entries", len(entries)), "", func(s *State) {
		s.Total = len(entries)
	})

	ds, err := j.startingDataset()
	if err != nil {
		j.fail(ctx, err)
		return
	}

	if err := j.process(ctx, ds, entries); err != nil {
		j.fail(ctx, err)
		return
	}
	if err := ctx.Err(); err != nil {
		j.fail(ctx, err)
		return
	}

	if err := m.deps.Dataset.Commit(ds, m.now()); err != nil {
		j.fail(ctx, err)
		return
	}

	finished := m.now()
	m.update(LevelInfo, "fetch completed", "", func(s *State) {
		s.Status = StatusSucceeded
		s.FinishedAt = finished.UTC()
		s.Result = &Summary{
			CardsProcessed:   s.Processed,
			CardsUpdated:     s.Updated,
			ImagesDownloaded: s.ImagesDownloaded,
			Errors:           append([]string{}, j.errors...),
			Duration:         finished.Sub(started),
		}
	})
	snap := m.Snapshot(1)
	j.logger.Info("fetch completed",
		logging.String(logging.FieldEventType, "fetch_completed"),
		logging.Int("processed", snap.Processed),
		logging.Int("updated", snap.Updated),
		logging.Int("images_downloaded", snap.ImagesDownloaded),
		logging.Int("errors", len(j.errors)),
		logging.Duration("duration", finished.Sub(started)),
	)
	j.record(ctx, snap)
}

func (j *job) loadEntries(ctx context.Context) ([]card.Entry, error) {
	m := j.manager
	if deck := strings.TrimSpace(j.opts.Deck); deck != "" {
		d, err := m.deps.Decks.Deck(ctx, deck)
		if err != nil {
			return nil, err
		}
		m.update(LevelInfo, fmt.Sprintf("loaded deck %s (%d cards)", d.ID, d.Total()), "", nil)
		return cardlist.Coalesce(d.Cards), nil
	}
	load := m.deps.LoadList
	if load == nil {
		load = cardlist.Load
	}
	return load(j.opts.List)
}

func (j *job) startingDataset() (*dataset.Dataset, error) {
	if j.opts.FromScratch {
		return dataset.New(), nil
	}
	return j.manager.deps.Dataset.Load()
}

// process resolves entries with a bounded pool and merges the results into ds
// in input order. It returns the first fatal error.
func (j *job) process(ctx context.Context, ds *dataset.Dataset, entries []card.Entry) error {
	workers := j.opts.Workers
	if workers <= 0 {
		workers = 1
	}

	results := make([]entryResult, len(entries))
	done := make([]chan struct{}, len(entries))
	for i := range done {
		done[i] = make(chan struct{})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	scheduled := make(chan struct{})
	go func() {
		defer close(scheduled)
		for i, entry := range entries {
			g.Go(func() error {
				defer close(done[i])
				results[i] = j.processEntry(gctx, entry)
				if services.IsFatal(results[i].err) {
					return results[i].err
				}
				return nil
			})
		}
	}()

	var fatal error
	for i := range entries {
		<-done[i]
		if fatal != nil {
			continue
		}
		if err := j.merge(ds, results[i]); err != nil {
			fatal = err
		}
	}
	<-scheduled
	if err := g.Wait(); err != nil && fatal == nil {
		fatal = err
	}
	return fatal
}

// processEntry runs the resolve, localize and image stages for one entry on
// a worker and journals each step. Step entries carry the counters at the time
// they are emitted, so with several workers they can lag the merge, which
// advances processed in input order.
func (j *job) processEntry(ctx context.Context, entry card.Entry) entryResult {
	res := entryResult{entry: entry}
	if err := ctx.Err(); err != nil {
		res.err = err
		return res
	}
	ctx = services.WithCard(ctx, entry.Name)
	m := j.manager
	label := entry.Label()
	m.update(LevelInfo, "started", label, nil)

	resolution, err := m.deps.Resolver.Resolve(services.WithStage(ctx, "resolve"), entry)
	if err != nil {
		res.err = err
		return res
	}
	if resolution.Warning != "" {
		res.warnings = append(res.warnings, resolution.Warning)
	}
	canonical := resolution.Card
	m.update(LevelInfo, fmt.Sprintf("resolved %s %s", strings.ToUpper(canonical.SetCode), canonical.CollectorNumber), label, nil)

	var loc card.Localization
	if !j.opts.SkipLocalization {
		loc, err = m.deps.Localizer.Localize(services.WithStage(ctx, "localize"), canonical)
		if err != nil {
			if services.KindOf(err) == services.KindCancelled {
				res.err = err
				return res
			}
			loc = card.Localization{}
			res.warnings = append(res.warnings, fmt.Sprintf("localization unavailable: %v", err))
		} else if !loc.IsEmpty() {
			m.update(LevelInfo, localizedMessage(loc), label, nil)
		}
	}

	images, err := m.deps.Images.Store(services.WithStage(ctx, "images"), canonical, j.opts.ForceImages)
	if err != nil {
		res.err = err
		return res
	}
	res.downloaded = images.Downloaded
	m.update(LevelInfo, imagesMessage(images), label, nil)

	rec := card.NewRecord(entry, canonical, loc, images.Paths, m.deps.StaxTypes)
	res.record = &rec
	return res
}

func localizedMessage(loc card.Localization) string {
	if loc.ChineseName == "" {
		return "localized"
	}
	return "localized as " + loc.ChineseName
}

func imagesMessage(images imagecache.Result) string {
	switch {
	case images.Downloaded > 0:
		return fmt.Sprintf("downloaded %d image(s)", images.Downloaded)
	case len(images.Paths) > 0:
		return "image cached"
	default:
		return "no image available"
	}
}

// merge folds one result into ds and publishes its progress. Fatal entry
// errors are returned; everything else is accumulated.
func (j *job) merge(ds *dataset.Dataset, res entryResult) error {
	m := j.manager
	label := res.entry.Label()

	for _, warning := range res.warnings {
		logging.WarnWithContext(j.logger, "entry warning", "entry_warning",
			logging.String("entry", label),
			logging.String("detail", warning),
			logging.String(logging.FieldImpact, "card stored with partial data"),
		)
		m.update(LevelWarning, warning, label, nil)
	}

	if res.err != nil {
		if services.IsFatal(res.err) {
			return res.err
		}
		entryErr := &services.EntryError{
			Name:            res.entry.Name,
			SetCode:         res.entry.SetCode,
			CollectorNumber: res.entry.CollectorNumber,
			Err:             res.err,
		}
		j.errors = append(j.errors, entryErr.Error())
		logging.WarnWithContext(j.logger, "entry failed", "entry_failed",
			logging.String("entry", label),
			logging.Error(res.err),
			logging.String(logging.FieldErrorKind, string(services.KindOf(res.err))),
			logging.String(logging.FieldImpact, "card skipped for this run"),
		)
		m.update(LevelError, entryErr.Error(), label, func(s *State) {
			s.Processed++
		})
		return nil
	}

	merged, created := ds.Merge(*res.record, dataset.MergeOptions{ResetTags: j.opts.ResetTags}, m.now())
	verb := "updated"
	if created {
		verb = "added"
	}
	m.update(LevelInfo, fmt.Sprintf("%s %s", verb, merged.ID), label, func(s *State) {
		s.Processed++
		s.Updated++
		s.ImagesDownloaded += res.downloaded
	})
	j.logger.Debug("entry merged",
		logging.String("entry", label),
		logging.String("record_id", merged.ID),
		logging.Int("images_downloaded", res.downloaded),
	)
	return nil
}

func (j *job) fail(ctx context.Context, err error) {
	m := j.manager
	reason := err.Error()
	if services.KindOf(err) == services.KindCancelled {
		reason = services.ErrCancelled.Error()
	}
	finished := m.now()
	m.update(LevelError, "fetch failed: "+reason, "", func(s *State) {
		s.Status = StatusFailed
		s.Error = reason
		s.FinishedAt = finished.UTC()
	})
	if errors.Is(err, context.Canceled) || errors.Is(err, services.ErrCancelled) {
		j.logger.Info("fetch cancelled",
			logging.String(logging.FieldEventType, "fetch_cancelled"),
		)
	} else {
		logging.ErrorWithContext(j.logger, "fetch failed", "fetch_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorKind, string(services.KindOf(err))),
			logging.String(logging.FieldImpact, "dataset left unchanged"),
		)
	}
	j.record(ctx, m.Snapshot(1))
}
