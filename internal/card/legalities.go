package card

import "strings"

// Legality is the status of a card in one format.
type Legality struct {
	Format string `json:"format"`
	Status string `json:"status"`
}

// LegalityOrder lists the formats kept in records, in display order.
var LegalityOrder = []string{
	"standard",
	"pioneer",
	"modern",
	"legacy",
	"pauper",
	"vintage",
	"commander",
	"duel_commander",
}

// ExtractLegalities keeps the formats in LegalityOrder. Scryfall names duel
// commander "duel", so a "_commander" suffix also matches the bare prefix.
func ExtractLegalities(raw map[string]string) []Legality {
	if len(raw) == 0 {
		return []Legality{}
	}
	normalized := make(map[string]string, len(raw))
	for key, value := range raw {
		k := strings.ToLower(strings.TrimSpace(key))
		if _, ok := normalized[k]; !ok {
			normalized[k] = strings.TrimSpace(value)
		}
	}

	out := make([]Legality, 0, len(LegalityOrder))
	for _, format := range LegalityOrder {
		candidates := []string{format}
		if base, ok := strings.CutSuffix(format, "_commander"); ok {
			candidates = append(candidates, base)
		}
		for _, candidate := range candidates {
			if status, ok := normalized[candidate]; ok {
				out = append(out, Legality{Format: format, Status: status})
				break
			}
		}
	}
	return out
}
