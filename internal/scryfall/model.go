package scryfall

import (
	"strings"

	"allthatstax/internal/card"
)

// imageVariants lists image_uris keys in order of preference.
var imageVariants = []string{"png", "large", "normal"}

// Card is the subset of a Scryfall card object used by the pipeline.
type Card struct {
	Object          string            `json:"object"`
	ID              string            `json:"id"`
	Name            string            `json:"name"`
	Lang            string            `json:"lang"`
	ReleasedAt      string            `json:"released_at"`
	ManaCost        string            `json:"mana_cost"`
	CMC             float64           `json:"cmc"`
	TypeLine        string            `json:"type_line"`
	OracleText      string            `json:"oracle_text"`
	Legalities      map[string]string `json:"legalities"`
	Set             string            `json:"set"`
	SetName         string            `json:"set_name"`
	CollectorNumber string            `json:"collector_number"`
	Reserved        bool              `json:"reserved"`
	Digital         bool              `json:"digital"`
	ImageURIs       map[string]string `json:"image_uris"`
	CardFaces       []Face            `json:"card_faces"`
	PrintsSearchURI string            `json:"prints_search_uri"`
}

// Face is one entry of card_faces.
type Face struct {
	Name       string            `json:"name"`
	ManaCost   string            `json:"mana_cost"`
	TypeLine   string            `json:"type_line"`
	OracleText string            `json:"oracle_text"`
	ImageURIs  map[string]string `json:"image_uris"`
}

// List is a page of a Scryfall list response.
type List struct {
	Object   string `json:"object"`
	Data     []Card `json:"data"`
	HasMore  bool   `json:"has_more"`
	NextPage string `json:"next_page"`
}

// Canonical converts the API object into the pipeline's canonical form.
func (c Card) Canonical() card.Canonical {
	out := card.Canonical{
		ScryfallID:      c.ID,
		EnglishName:     strings.TrimSpace(c.Name),
		TypeLine:        strings.TrimSpace(c.TypeLine),
		ManaCostText:    strings.TrimSpace(c.ManaCost),
		ManaValue:       c.CMC,
		OracleText:      strings.TrimSpace(c.OracleText),
		Legalities:      card.ExtractLegalities(c.Legalities),
		SetCode:         strings.ToUpper(strings.TrimSpace(c.Set)),
		SetName:         strings.TrimSpace(c.SetName),
		CollectorNumber: strings.TrimSpace(c.CollectorNumber),
		ReleasedAt:      strings.TrimSpace(c.ReleasedAt),
		ImageURL:        pickImage(c.ImageURIs),
		Reserved:        c.Reserved,
	}

	if len(c.CardFaces) > 0 {
		costs := make([]string, 0, len(c.CardFaces))
		texts := make([]string, 0, len(c.CardFaces))
		out.Faces = make([]card.Face, 0, len(c.CardFaces))
		for _, f := range c.CardFaces {
			face := card.Face{
				Name:       strings.TrimSpace(f.Name),
				ManaCost:   strings.TrimSpace(f.ManaCost),
				TypeLine:   strings.TrimSpace(f.TypeLine),
				OracleText: strings.TrimSpace(f.OracleText),
				ImageURL:   pickImage(f.ImageURIs),
			}
			if face.ManaCost != "" {
				costs = append(costs, face.ManaCost)
			}
			if face.OracleText != "" {
				texts = append(texts, face.OracleText)
			}
			out.Faces = append(out.Faces, face)
		}
		if out.ManaCostText == "" {
			out.ManaCostText = strings.Join(costs, " // ")
		}
		if out.OracleText == "" {
			out.OracleText = strings.Join(texts, "\n//\n")
		}
		if out.TypeLine == "" && len(out.Faces) > 0 {
			out.TypeLine = out.Faces[0].TypeLine
		}
		if out.ImageURL == "" && len(out.Faces) > 0 {
			out.ImageURL = out.Faces[0].ImageURL
		}
	}
	out.ManaCost = card.ParseManaCost(out.ManaCostText)
	return out
}

func pickImage(uris map[string]string) string {
	for _, variant := range imageVariants {
		if uri := strings.TrimSpace(uris[variant]); uri != "" {
			return uri
		}
	}
	return ""
}
