package moxfield

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"allthatstax/internal/card"
	"allthatstax/internal/fetch"
	"allthatstax/internal/services"
)

const (
	stageName = "moxfield"
	siteURL   = "https://www.moxfield.com"
)

var deckIDPattern = regexp.MustCompile(`^[A-Za-z0-9]+$`)

// Deck is a fetched Moxfield deck.
type Deck struct {
	ID    string
	Name  string
	Cards []card.Entry
}

// Total returns the summed card quantity.
func (d Deck) Total() int {
	total := 0
	for _, c := range d.Cards {
		total += c.Quantity
	}
	return total
}

// Client fetches decks from the Moxfield API.
type Client struct {
	doer    fetch.Doer
	baseURL string
}

// NewClient creates a client rooted at baseURL, the decks/all endpoint.
func NewClient(doer fetch.Doer, baseURL string) (*Client, error) {
	if doer == nil {
		return nil, errors.New("moxfield fetcher required")
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("moxfield base url required")
	}
	return &Client{doer: doer, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// ParseDeckID accepts a deck URL or a bare deck id.
func ParseDeckID(identifier string) (string, error) {
	value := strings.TrimSpace(identifier)
	if value == "" {
		return "", services.Wrap(services.ErrValidation, stageName, "deck id", "deck link must not be empty", nil)
	}
	id := value
	if parsed, err := url.Parse(value); err == nil && parsed.Scheme != "" {
		path := strings.TrimRight(parsed.Path, "/")
		if path == "" {
			return "", services.Wrap(services.ErrValidation, stageName, "deck id", "no deck id in "+value, nil)
		}
		id = path[strings.LastIndex(path, "/")+1:]
	}
	id = strings.TrimSpace(id)
	if !deckIDPattern.MatchString(id) {
		return "", services.Wrap(services.ErrValidation, stageName, "deck id", "malformed deck id "+id, nil)
	}
	return id, nil
}

// Deck fetches the deck named by identifier and returns its mainboard.
func (c *Client) Deck(ctx context.Context, identifier string) (Deck, error) {
	id, err := ParseDeckID(identifier)
	if err != nil {
		return Deck{}, err
	}
	header := http.Header{}
	header.Set("Accept", "application/json, text/plain, */*")
	header.Set("Origin", siteURL)
	header.Set("Referer", siteURL+"/")
	header.Set("X-Moxfield-Platform", "web")

	var payload map[string]any
	if err := c.doer.GetJSON(ctx, c.baseURL+"/"+url.PathEscape(id), header, &payload); err != nil {
		return Deck{}, err
	}
	cards, err := parseDeck(payload)
	if err != nil {
		return Deck{}, err
	}
	name, _ := payload["name"].(string)
	return Deck{ID: id, Name: strings.TrimSpace(name), Cards: cards}, nil
}
