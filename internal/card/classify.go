package card

import (
	"regexp"
	"strings"
)

var sortTypes = []struct {
	keyword string
	label   string
}{
	{"creature", "生物"},
	{"artifact", "神器"},
	{"enchantment", "结界"},
}

// SortTypeOther is the bucket for cards matching no sort keyword.
const SortTypeOther = "其他"

// SortType buckets an English type line for ordering in printed lists.
func SortType(typeLine string) string {
	lowered := strings.ToLower(typeLine)
	for _, st := range sortTypes {
		if strings.Contains(lowered, st.keyword) {
			return st.label
		}
	}
	return SortTypeOther
}

// StaxType returns the first tag, in input order, that is a configured stax type.
func StaxType(tags []string, staxTypes map[string]string) string {
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if _, ok := staxTypes[tag]; ok {
			return tag
		}
	}
	return ""
}

var manaSymbol = regexp.MustCompile(`\{([^{}]+)\}`)

// ParseManaCost splits "{2}{W}{U/P}" into its symbols.
func ParseManaCost(cost string) []string {
	matches := manaSymbol.FindAllStringSubmatch(cost, -1)
	symbols := make([]string, 0, len(matches))
	for _, m := range matches {
		symbols = append(symbols, strings.ToUpper(strings.TrimSpace(m[1])))
	}
	return symbols
}
