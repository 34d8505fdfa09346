package moxfield

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"allthatstax/internal/card"
	"allthatstax/internal/services"
)

var (
	groupKeys     = []string{"groups", "categoryGroups", "categories"}
	groupCardKeys = []string{"cardUuids", "cards", "entries", "slots"}
	cardRefKeys   = []string{"cardUuid", "boardCardId", "id", "uuid"}
)

type boardCard struct {
	key   string
	entry map[string]any
}

// parseDeck converts the mainboard of a deck payload into entries.
func parseDeck(payload map[string]any) ([]card.Entry, error) {
	categories := categoryMap(payload)

	var entries []card.Entry
	for _, bc := range mainboard(payload) {
		quantity := intValue(bc.entry["quantity"])
		if quantity <= 0 {
			continue
		}
		details, ok := bc.entry["card"].(map[string]any)
		if !ok {
			continue
		}
		name := firstString(details, "name")
		set := firstString(details, "setCode", "set", "set_id")
		number := firstString(details, "collectorNumber", "collector_number", "number", "cn")
		if name == "" || set == "" || number == "" {
			label := name
			if label == "" {
				label = bc.key
			}
			return nil, services.Wrap(services.ErrParse, stageName, "mainboard", fmt.Sprintf("card %s is missing set or collector number", label), nil)
		}

		var tags []string
		tags = append(tags, stringList(bc.entry["categories"])...)
		tags = append(tags, stringList(bc.entry["tags"])...)
		key := firstString(bc.entry, "boardCardId", "uuid")
		if key == "" {
			key = bc.key
		}
		tags = append(tags, categories[key]...)

		entries = append(entries, card.Entry{
			Quantity:        quantity,
			Name:            name,
			SetCode:         strings.ToUpper(set),
			CollectorNumber: number,
			Tags:            dedupe(tags),
		})
	}
	if len(entries) == 0 {
		return nil, services.Wrap(services.ErrNotFound, stageName, "mainboard", "deck has no mainboard cards", nil)
	}
	return entries, nil
}

// mainboard returns board cards from either the v2 "mainboard" object or the
// v3 "boards.mainboard" object, keyed map or list, in key order.
func mainboard(payload map[string]any) []boardCard {
	board, ok := payload["mainboard"].(map[string]any)
	if !ok {
		if boards, ok := payload["boards"].(map[string]any); ok {
			board, _ = boards["mainboard"].(map[string]any)
		}
	}
	if board == nil {
		return nil
	}
	// v2 puts cards directly under mainboard.
	cards, ok := board["cards"]
	if !ok {
		cards = board
	}

	var out []boardCard
	switch typed := cards.(type) {
	case map[string]any:
		keys := make([]string, 0, len(typed))
		for key := range typed {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			if entry, ok := typed[key].(map[string]any); ok {
				out = append(out, boardCard{key: key, entry: entry})
			}
		}
	case []any:
		for _, item := range typed {
			entry, ok := item.(map[string]any)
			if !ok {
				continue
			}
			out = append(out, boardCard{key: firstString(entry, "boardCardId", "uuid"), entry: entry})
		}
	}
	return out
}

// categoryMap maps board card ids to custom category names.
func categoryMap(payload map[string]any) map[string][]string {
	out := make(map[string][]string)
	custom, ok := payload["customCategories"].(map[string]any)
	if !ok {
		return out
	}
	var groups []map[string]any
	for _, key := range groupKeys {
		switch typed := custom[key].(type) {
		case map[string]any:
			keys := make([]string, 0, len(typed))
			for k := range typed {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				if g, ok := typed[k].(map[string]any); ok {
					groups = append(groups, g)
				}
			}
		case []any:
			for _, item := range typed {
				if g, ok := item.(map[string]any); ok {
					groups = append(groups, g)
				}
			}
		default:
			continue
		}
		break
	}

	for _, group := range groups {
		title := firstString(group, "name")
		if title == "" {
			continue
		}
		for _, id := range groupCardIDs(group) {
			out[id] = append(out[id], title)
		}
	}
	return out
}

func groupCardIDs(group map[string]any) []string {
	var ids []string
	add := func(v any) {
		switch typed := v.(type) {
		case string:
			if typed != "" {
				ids = append(ids, typed)
			}
		case map[string]any:
			if id := firstString(typed, cardRefKeys...); id != "" {
				ids = append(ids, id)
			}
		}
	}
	for _, key := range groupCardKeys {
		switch typed := group[key].(type) {
		case []any:
			for _, item := range typed {
				add(item)
			}
		case map[string]any:
			keys := make([]string, 0, len(typed))
			for k := range typed {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				add(typed[k])
			}
		}
	}
	return ids
}

func firstString(m map[string]any, keys ...string) string {
	for _, key := range keys {
		switch v := m[key].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

func stringList(v any) []string {
	switch typed := v.(type) {
	case string:
		if s := strings.TrimSpace(typed); s != "" {
			return []string{s}
		}
	case []any:
		out := make([]string, 0, len(typed))
		for _, item := range typed {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
		return out
	}
	return nil
}

func intValue(v any) int {
	switch typed := v.(type) {
	case float64:
		return int(typed)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(typed))
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

// dedupe drops repeated tags, keeping first-seen order.
func dedupe(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
