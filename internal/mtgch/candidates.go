package mtgch

import (
	"sort"
	"strings"
	"unicode"

	"allthatstax/internal/card"
)

var (
	nameKeys = []string{"printed_name", "name_zh", "zh_name", "name_cn", "chinese_name", "name"}
	typeKeys = []string{"printed_type_line", "printed_type", "type_line_zh", "type_zh", "type_line"}
	textKeys = []string{"printed_text", "oracle_text_zh", "text_zh", "oracle_text", "text"}
	manaKeys = []string{"mana_cost", "manaCost"}
	setKeys  = []string{"set_name_zh", "set_name_cn", "set_zh", "set_cn", "set_name"}
	faceKeys = []string{"faces", "card_faces", "cardFaces"}
)

type candidateFace struct {
	name string
	typ  string
	text string
	mana string
}

// fromPayload walks a decoded API response and builds a localization from
// the best candidate object: one matching the printing if present, else the
// first usable one.
func fromPayload(payload any, canonical card.Canonical) (card.Localization, bool) {
	set := card.NormalizeSetCode(canonical.SetCode)
	number := strings.ToLower(strings.TrimSpace(canonical.CollectorNumber))

	var first *card.Localization
	for _, candidate := range candidates(payload) {
		if lang := strings.ToLower(stringField(candidate, "lang", "language")); lang != "" && !strings.HasPrefix(lang, "zh") {
			continue
		}
		loc, ok := fromCandidate(candidate)
		if !ok {
			continue
		}
		if set != "" && number != "" &&
			strings.ToLower(stringField(candidate, "set", "set_code", "setCode")) == set &&
			strings.ToLower(stringField(candidate, "collector_number", "collectorNumber", "number")) == number {
			return loc, true
		}
		if first == nil {
			first = &loc
		}
	}
	if first == nil {
		return card.Localization{}, false
	}
	return *first, true
}

// candidates returns every JSON object in payload in pre-order. Object keys
// are visited in sorted order so the walk is deterministic.
func candidates(payload any) []map[string]any {
	var out []map[string]any
	var walk func(v any)
	walk = func(v any) {
		switch typed := v.(type) {
		case map[string]any:
			out = append(out, typed)
			for _, key := range sortedKeys(typed) {
				walk(typed[key])
			}
		case []any:
			for _, item := range typed {
				walk(item)
			}
		}
	}
	walk(payload)
	return out
}

func fromCandidate(candidate map[string]any) (card.Localization, bool) {
	rawFaces := extractFaces(candidate)
	faces := make([]candidateFace, 0, len(rawFaces))
	found := false
	for _, raw := range rawFaces {
		f := candidateFace{
			name: pick(raw, nameKeys, true),
			typ:  pick(raw, typeKeys, true),
			text: pick(raw, textKeys, true),
			mana: pick(raw, manaKeys, false),
		}
		if f.name != "" || f.typ != "" || f.text != "" {
			found = true
		}
		faces = append(faces, f)
	}
	if !found {
		return card.Localization{}, false
	}

	loc := card.Localization{ChineseSetName: pick(candidate, setKeys, true)}
	if len(faces) == 1 {
		f := faces[0]
		loc.ChineseName = f.name
		loc.ChineseTypeLine = f.typ
		loc.ChineseOracleText = f.text
		loc.ChineseManaCostText = f.mana
		if loc.ChineseManaCostText == "" {
			loc.ChineseManaCostText = pick(candidate, manaKeys, false)
		}
		return loc, true
	}

	names := make([]string, 0, len(faces))
	types := make([]string, 0, len(faces))
	texts := make([]string, 0, len(faces))
	manas := make([]string, 0, len(faces))
	for _, f := range faces {
		names = append(names, f.name)
		types = append(types, f.typ)
		texts = append(texts, f.text)
		manas = append(manas, f.mana)
		loc.Faces = append(loc.Faces, card.LocalizedFace{Name: f.name, TypeLine: f.typ, OracleText: f.text})
	}
	loc.ChineseName = joinNonEmpty(names, " // ")
	loc.ChineseTypeLine = joinNonEmpty(types, " // ")
	loc.ChineseOracleText = joinNonEmpty(texts, "\n//\n")
	loc.ChineseManaCostText = joinNonEmpty(manas, " // ")
	return loc, true
}

func extractFaces(candidate map[string]any) []map[string]any {
	for _, key := range faceKeys {
		list, ok := candidate[key].([]any)
		if !ok {
			continue
		}
		faces := make([]map[string]any, 0, len(list))
		for _, item := range list {
			if face, ok := item.(map[string]any); ok {
				faces = append(faces, face)
			}
		}
		if len(faces) > 0 {
			return faces
		}
	}
	return []map[string]any{candidate}
}

// pick returns the first non-empty string under keys, in key order. With
// requireCJK only values containing Han characters qualify.
func pick(m map[string]any, keys []string, requireCJK bool) string {
	for _, key := range keys {
		value, ok := m[key]
		if !ok {
			continue
		}
		for _, s := range flattenStrings(value) {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			if !requireCJK || containsCJK(s) {
				return s
			}
		}
	}
	return ""
}

func stringField(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := m[key].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func flattenStrings(v any) []string {
	switch typed := v.(type) {
	case string:
		return []string{typed}
	case map[string]any:
		var out []string
		for _, key := range sortedKeys(typed) {
			out = append(out, flattenStrings(typed[key])...)
		}
		return out
	case []any:
		var out []string
		for _, item := range typed {
			out = append(out, flattenStrings(item)...)
		}
		return out
	default:
		return nil
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func containsCJK(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Han, r) {
			return true
		}
	}
	return false
}
