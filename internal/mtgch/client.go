package mtgch

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"

	"allthatstax/internal/card"
	"allthatstax/internal/fetch"
	"allthatstax/internal/logging"
	"allthatstax/internal/services"
)

const stageName = "mtgch"

// Localizer resolves Chinese text for a canonical card.
type Localizer interface {
	Localize(ctx context.Context, c card.Canonical) (card.Localization, error)
}

// Nop is a Localizer that never finds anything. It is used when localization
// is disabled.
type Nop struct{}

// Localize returns an empty localization without error.
func (Nop) Localize(context.Context, card.Canonical) (card.Localization, error) {
	return card.Localization{}, nil
}

// Client queries the mtgch API and website.
type Client struct {
	doer    fetch.Doer
	apiURL  string
	siteURL string
	logger  *slog.Logger
}

var _ Localizer = (*Client)(nil)

// NewClient creates a client. apiURL is the JSON API root and siteURL the
// website root used for the HTML fallback; an empty siteURL disables it.
func NewClient(doer fetch.Doer, apiURL, siteURL string, logger *slog.Logger) (*Client, error) {
	if doer == nil {
		return nil, errors.New("mtgch fetcher required")
	}
	apiURL = strings.TrimRight(strings.TrimSpace(apiURL), "/")
	if apiURL == "" {
		return nil, errors.New("mtgch api url required")
	}
	return &Client{
		doer:    doer,
		apiURL:  apiURL,
		siteURL: strings.TrimRight(strings.TrimSpace(siteURL), "/"),
		logger:  logging.NewComponentLogger(logger, stageName),
	}, nil
}

// Localize tries the API first and the website second. When neither yields
// Chinese text the returned error is a not-found, or the last transient
// failure if the source could not be reached at all.
func (c *Client) Localize(ctx context.Context, canonical card.Canonical) (card.Localization, error) {
	name := strings.TrimSpace(canonical.EnglishName)
	if name == "" {
		return card.Localization{}, services.Wrap(services.ErrValidation, stageName, "localize", "english name required", nil)
	}
	logger := logging.WithContext(ctx, c.logger)

	loc, apiErr := c.viaAPI(ctx, canonical)
	if apiErr == nil {
		return loc, nil
	}
	if services.KindOf(apiErr) == services.KindCancelled {
		return card.Localization{}, apiErr
	}
	logger.Debug("mtgch api had no localization", logging.Error(apiErr))

	if c.siteURL == "" {
		return card.Localization{}, apiErr
	}
	loc, htmlErr := c.viaHTML(ctx, canonical)
	if htmlErr == nil {
		return loc, nil
	}
	if services.KindOf(htmlErr) == services.KindCancelled {
		return card.Localization{}, htmlErr
	}
	logger.Debug("mtgch site had no localization", logging.Error(htmlErr))

	// Prefer reporting unreachability when both paths failed to connect.
	if services.IsTransient(apiErr) && services.IsTransient(htmlErr) {
		return card.Localization{}, htmlErr
	}
	return card.Localization{}, services.Wrap(services.ErrNotFound, stageName, "localize", "no chinese text for "+name, nil)
}

type probe struct {
	path   string
	params url.Values
}

func apiProbes(canonical card.Canonical) []probe {
	set := card.NormalizeSetCode(canonical.SetCode)
	number := strings.ToLower(strings.TrimSpace(canonical.CollectorNumber))
	name := strings.TrimSpace(canonical.EnglishName)

	probes := make([]probe, 0, 5)
	if set != "" && number != "" {
		probes = append(probes,
			probe{path: "cards/" + url.PathEscape(set) + "/" + url.PathEscape(number)},
			probe{path: "cards/sets/" + url.PathEscape(set) + "/" + url.PathEscape(number)},
		)
	}
	return append(probes,
		probe{path: "cards/search", params: url.Values{"q": {name}}},
		probe{path: "cards", params: url.Values{"search": {name}}},
		probe{path: "cards/named", params: url.Values{"exact": {name}}},
	)
}

// viaAPI runs the probes in order and returns the first usable candidate.
func (c *Client) viaAPI(ctx context.Context, canonical card.Canonical) (card.Localization, error) {
	var lastErr error
	for _, p := range apiProbes(canonical) {
		endpoint := c.apiURL + "/" + p.path
		if len(p.params) > 0 {
			endpoint += "?" + p.params.Encode()
		}
		var payload any
		if err := c.doer.GetJSON(ctx, endpoint, nil, &payload); err != nil {
			if services.KindOf(err) == services.KindCancelled {
				return card.Localization{}, err
			}
			lastErr = err
			continue
		}
		if loc, ok := fromPayload(payload, canonical); ok {
			return loc, nil
		}
	}
	if lastErr != nil && services.KindOf(lastErr) != services.KindNotFound {
		return card.Localization{}, lastErr
	}
	return card.Localization{}, services.Wrap(services.ErrNotFound, stageName, "api", canonical.EnglishName, nil)
}

func joinNonEmpty(values []string, sep string) string {
	kept := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			kept = append(kept, v)
		}
	}
	return strings.Join(kept, sep)
}
