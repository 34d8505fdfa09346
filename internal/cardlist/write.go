package cardlist

import (
	"encoding/json"

	"allthatstax/internal/card"
	"allthatstax/internal/fileutil"
	"allthatstax/internal/services"
)

// DeckFile is the JSON card list written for an imported deck.
type DeckFile struct {
	Source string     `json:"source"`
	DeckID string     `json:"deckId"`
	Name   string     `json:"name,omitempty"`
	Cards  []DeckCard `json:"cards"`
}

// DeckCard is one line of a DeckFile.
type DeckCard struct {
	Quantity        int      `json:"quantity"`
	Name            string   `json:"name"`
	SetCode         string   `json:"setCode"`
	CollectorNumber string   `json:"collectorNumber"`
	LockTypes       []string `json:"lockTypes"`
}

// NewDeckFile builds a DeckFile from parsed entries.
func NewDeckFile(source, deckID, name string, entries []card.Entry) DeckFile {
	file := DeckFile{Source: source, DeckID: deckID, Name: name, Cards: make([]DeckCard, 0, len(entries))}
	for _, e := range entries {
		tags := e.Tags
		if tags == nil {
			tags = []string{}
		}
		file.Cards = append(file.Cards, DeckCard{
			Quantity:        e.Quantity,
			Name:            e.Name,
			SetCode:         e.SetCode,
			CollectorNumber: e.CollectorNumber,
			LockTypes:       tags,
		})
	}
	return file
}

// Total returns the summed quantity of the deck.
func (f DeckFile) Total() int {
	total := 0
	for _, c := range f.Cards {
		total += c.Quantity
	}
	return total
}

// WriteDeck writes file to path as indented JSON that Load reads back.
func WriteDeck(path string, file DeckFile) error {
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return services.Wrap(services.ErrStorage, stageName, "encode deck", path, err)
	}
	data = append(data, '\n')
	if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return services.Wrap(services.ErrStorage, stageName, "write deck", path, err)
	}
	return nil
}
