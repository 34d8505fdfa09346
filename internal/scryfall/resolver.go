package scryfall

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"allthatstax/internal/card"
	"allthatstax/internal/logging"
	"allthatstax/internal/services"
)

// Resolution is the outcome of resolving one entry. Warning is set when the
// printing was chosen by tie-break among several candidates.
type Resolution struct {
	Card    card.Canonical
	Warning string
}

// Resolver turns card list entries into canonical printings.
type Resolver struct {
	lookup Lookup
	logger *slog.Logger
}

// NewResolver creates a resolver backed by lookup.
func NewResolver(lookup Lookup, logger *slog.Logger) *Resolver {
	return &Resolver{
		lookup: lookup,
		logger: logging.NewComponentLogger(logger, stageName),
	}
}

// Resolve finds the canonical printing for entry. An exact printing lookup is
// tried first when the entry names one; a not-found result falls back to the
// fuzzy name lookup. Entries without a printing hint resolve to the earliest
// printing. Errors carry the services markers: not found when neither lookup
// matched, transient when retries were exhausted.
func (r *Resolver) Resolve(ctx context.Context, entry card.Entry) (Resolution, error) {
	logger := logging.WithContext(ctx, r.logger)

	if entry.HasPrintingHint() {
		printing, err := r.lookup.CardByPrinting(ctx, entry.SetCode, entry.CollectorNumber)
		switch {
		case err == nil:
			return Resolution{Card: printing.Canonical()}, nil
		case services.KindOf(err) != services.KindNotFound:
			return Resolution{}, err
		}
		logger.Info("exact printing not found, falling back to name lookup",
			logging.String("set_code", entry.SetCode),
			logging.String("collector_number", entry.CollectorNumber),
		)
		named, err := r.named(ctx, entry)
		if err != nil {
			return Resolution{}, err
		}
		return Resolution{Card: named.Canonical()}, nil
	}

	named, err := r.named(ctx, entry)
	if err != nil {
		return Resolution{}, err
	}
	if strings.TrimSpace(entry.SetCode) != "" {
		return Resolution{Card: named.Canonical()}, nil
	}

	prints, err := r.lookup.Prints(ctx, named)
	if err != nil {
		if services.KindOf(err) == services.KindNotFound {
			return Resolution{Card: named.Canonical()}, nil
		}
		return Resolution{}, err
	}
	chosen, ok := EarliestPrinting(prints)
	if !ok {
		return Resolution{Card: named.Canonical()}, nil
	}
	res := Resolution{Card: chosen.Canonical()}
	if len(prints) > 1 {
		res.Warning = fmt.Sprintf("%d printings matched %q, using earliest %s %s (%s)",
			len(prints), entry.Name, strings.ToUpper(chosen.Set), chosen.CollectorNumber, chosen.ReleasedAt)
		logging.WarnWithContext(logger, "multiple printings matched, using earliest", "ambiguous_printing",
			logging.String("entry", entry.Label()),
			logging.Int("printings", len(prints)),
			logging.String("set_code", strings.ToUpper(chosen.Set)),
			logging.String("released_at", chosen.ReleasedAt),
			logging.String(logging.FieldErrorKind, string(services.KindAmbiguous)),
			logging.String(logging.FieldErrorHint, "add a set code and collector number to pin a printing"),
			logging.String(logging.FieldImpact, "earliest printing selected"),
		)
	}
	return res, nil
}

// named runs the fuzzy lookup, retrying without the set filter when the set
// restricted lookup found nothing.
func (r *Resolver) named(ctx context.Context, entry card.Entry) (*Card, error) {
	set := strings.TrimSpace(entry.SetCode)
	named, err := r.lookup.CardNamed(ctx, entry.Name, set)
	if err == nil {
		return named, nil
	}
	if set == "" || services.KindOf(err) != services.KindNotFound {
		return nil, notFoundOr(err, entry)
	}
	named, err = r.lookup.CardNamed(ctx, entry.Name, "")
	if err != nil {
		return nil, notFoundOr(err, entry)
	}
	return named, nil
}

func notFoundOr(err error, entry card.Entry) error {
	if services.KindOf(err) == services.KindNotFound {
		return services.Wrap(services.ErrNotFound, stageName, "resolve", "no printing matched "+entry.Label(), err)
	}
	return err
}

// EarliestPrinting selects the printing with the earliest release date, ties
// broken by lexical set code and then collector number. Printings without a
// release date sort last.
func EarliestPrinting(prints []Card) (Card, bool) {
	if len(prints) == 0 {
		return Card{}, false
	}
	sorted := make([]Card, len(prints))
	copy(sorted, prints)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.ReleasedAt != b.ReleasedAt {
			if a.ReleasedAt == "" {
				return false
			}
			if b.ReleasedAt == "" {
				return true
			}
			return a.ReleasedAt < b.ReleasedAt
		}
		as, bs := strings.ToLower(a.Set), strings.ToLower(b.Set)
		if as != bs {
			return as < bs
		}
		return a.CollectorNumber < b.CollectorNumber
	})
	return sorted[0], true
}
