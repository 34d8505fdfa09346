package scryfall

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"allthatstax/internal/fetch"
	"allthatstax/internal/services"
)

const (
	stageName = "scryfall"
	// maxPrintPages bounds pagination of a prints search.
	maxPrintPages = 10
)

// Lookup defines the Scryfall operations used by Resolver.
type Lookup interface {
	CardByPrinting(ctx context.Context, setCode, collectorNumber string) (*Card, error)
	CardNamed(ctx context.Context, name, setCode string) (*Card, error)
	Prints(ctx context.Context, c *Card) ([]Card, error)
}

// Client provides access to the Scryfall REST API.
type Client struct {
	doer    fetch.Doer
	baseURL string
}

var _ Lookup = (*Client)(nil)

// NewClient creates a client that issues requests through doer.
func NewClient(doer fetch.Doer, baseURL string) (*Client, error) {
	if doer == nil {
		return nil, errors.New("scryfall fetcher required")
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("scryfall base url required")
	}
	return &Client{doer: doer, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// CardByPrinting looks up one printing by set code and collector number.
func (c *Client) CardByPrinting(ctx context.Context, setCode, collectorNumber string) (*Card, error) {
	set := strings.ToLower(strings.TrimSpace(setCode))
	number := strings.ToLower(strings.TrimSpace(collectorNumber))
	if set == "" || number == "" {
		return nil, services.Wrap(services.ErrValidation, stageName, "printing lookup", "set code and collector number required", nil)
	}
	endpoint := fmt.Sprintf("%s/cards/%s/%s", c.baseURL, url.PathEscape(set), url.PathEscape(number))
	var payload Card
	if err := c.doer.GetJSON(ctx, endpoint, nil, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// CardNamed performs a fuzzy name lookup, optionally restricted to a set.
func (c *Client) CardNamed(ctx context.Context, name, setCode string) (*Card, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, services.Wrap(services.ErrValidation, stageName, "named lookup", "name must not be empty", nil)
	}
	params := url.Values{}
	params.Set("fuzzy", name)
	if set := strings.ToLower(strings.TrimSpace(setCode)); set != "" {
		params.Set("set", set)
	}
	var payload Card
	if err := c.doer.GetJSON(ctx, c.baseURL+"/cards/named?"+params.Encode(), nil, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// Prints returns every paper printing of the card's oracle identity.
func (c *Client) Prints(ctx context.Context, card *Card) ([]Card, error) {
	if card == nil {
		return nil, nil
	}
	next := strings.TrimSpace(card.PrintsSearchURI)
	if next == "" {
		params := url.Values{}
		params.Set("q", fmt.Sprintf("!%q", card.Name))
		params.Set("unique", "prints")
		params.Set("order", "released")
		params.Set("dir", "asc")
		next = c.baseURL + "/cards/search?" + params.Encode()
	}

	var prints []Card
	for page := 0; next != "" && page < maxPrintPages; page++ {
		var list List
		if err := c.doer.GetJSON(ctx, next, nil, &list); err != nil {
			return nil, err
		}
		for _, p := range list.Data {
			if p.Digital {
				continue
			}
			prints = append(prints, p)
		}
		if !list.HasMore {
			break
		}
		next = list.NextPage
	}
	return prints, nil
}
