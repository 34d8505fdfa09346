package cardlist

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"allthatstax/internal/card"
	"allthatstax/internal/services"
)

const stageName = "card list"

// Format identifies a card list encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatText Format = "text"
)

var (
	nameKeys     = []string{"name", "englishName"}
	setKeys      = []string{"setCode", "set_code", "set"}
	numberKeys   = []string{"collectorNumber", "collector_number", "number"}
	tagKeys      = []string{"lockTypes", "tags", "categories"}
	quantityKeys = []string{"quantity", "count", "qty"}

	textLine = regexp.MustCompile(`^(?:(\d+)x?\s+)?(.+?)(?:\s+\(([^)]+)\)(?:\s+([^\s#]+))?)?\s*(#.*)?$`)
)

// Load reads and parses the card list at path. The format follows the file
// extension, falling back to content sniffing.
func Load(path string) ([]card.Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, services.Wrap(services.ErrValidation, stageName, "read", "card list not found: "+path, err)
		}
		return nil, services.Wrap(services.ErrStorage, stageName, "read", path, err)
	}
	entries, err := Parse(data, DetectFormat(path, data))
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, services.Wrap(services.ErrValidation, stageName, "parse", "no cards in "+path, nil)
	}
	return entries, nil
}

// DetectFormat picks a format from the file extension or, failing that, the
// first non-blank byte of data.
func DetectFormat(path string, data []byte) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	case ".txt", ".dec", ".dek":
		return FormatText
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return FormatJSON
	}
	return FormatText
}

// Parse decodes data in the given format and coalesces duplicate entries.
func Parse(data []byte, format Format) ([]card.Entry, error) {
	var (
		entries []card.Entry
		err     error
	)
	switch format {
	case FormatJSON:
		var payload any
		if err = json.Unmarshal(data, &payload); err != nil {
			return nil, services.Wrap(services.ErrParse, stageName, "json", "", err)
		}
		entries, err = fromStructured(payload)
	case FormatYAML:
		var payload any
		if err = yaml.Unmarshal(data, &payload); err != nil {
			return nil, services.Wrap(services.ErrParse, stageName, "yaml", "", err)
		}
		entries, err = fromStructured(payload)
	case FormatText:
		entries = fromText(string(data))
	default:
		return nil, services.Wrap(services.ErrValidation, stageName, "parse", fmt.Sprintf("unknown format %q", format), nil)
	}
	if err != nil {
		return nil, err
	}
	return Coalesce(entries), nil
}

func fromStructured(payload any) ([]card.Entry, error) {
	var items []any
	switch typed := payload.(type) {
	case []any:
		items = typed
	case map[string]any:
		list, ok := typed["cards"].([]any)
		if !ok {
			return nil, services.Wrap(services.ErrParse, stageName, "structure", `expected a list or an object with a "cards" list`, nil)
		}
		items = list
	case nil:
		return nil, nil
	default:
		return nil, services.Wrap(services.ErrParse, stageName, "structure", fmt.Sprintf("unexpected top-level %T", payload), nil)
	}

	entries := make([]card.Entry, 0, len(items))
	for _, item := range items {
		fields, ok := item.(map[string]any)
		if !ok {
			continue
		}
		name := scalar(fields, nameKeys)
		if name == "" {
			continue
		}
		quantity := 1
		if raw := scalar(fields, quantityKeys); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				return nil, services.Wrap(services.ErrParse, stageName, "quantity", fmt.Sprintf("%s: %q", name, raw), err)
			}
			quantity = n
		}
		if quantity <= 0 {
			continue
		}
		entries = append(entries, card.Entry{
			Quantity:        quantity,
			Name:            name,
			SetCode:         strings.ToUpper(scalar(fields, setKeys)),
			CollectorNumber: scalar(fields, numberKeys),
			Tags:            tagList(fields),
		})
	}
	return entries, nil
}

func fromText(text string) []card.Entry {
	var entries []card.Entry
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
			continue
		}
		m := textLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		quantity := 1
		if m[1] != "" {
			n, err := strconv.Atoi(m[1])
			if err != nil || n <= 0 {
				continue
			}
			quantity = n
		}
		name := strings.TrimSpace(m[2])
		if name == "" {
			continue
		}
		var tags []string
		for _, tag := range strings.Split(m[5], "#") {
			if tag = strings.TrimSpace(tag); tag != "" {
				tags = append(tags, tag)
			}
		}
		entries = append(entries, card.Entry{
			Quantity:        quantity,
			Name:            name,
			SetCode:         strings.ToUpper(strings.TrimSpace(m[3])),
			CollectorNumber: strings.TrimSpace(m[4]),
			Tags:            tags,
		})
	}
	return entries
}

// Coalesce merges entries naming the same printing, summing quantities and
// merging tags in first-seen order. Entry order follows first appearance.
func Coalesce(entries []card.Entry) []card.Entry {
	index := make(map[string]int, len(entries))
	out := make([]card.Entry, 0, len(entries))
	for _, e := range entries {
		key := strings.ToLower(strings.TrimSpace(e.Name)) + "|" + strings.ToLower(e.SetCode) + "|" + strings.ToLower(e.CollectorNumber)
		if i, ok := index[key]; ok {
			out[i].Quantity += e.Quantity
			out[i].Tags = appendUnique(out[i].Tags, e.Tags...)
			continue
		}
		e.Tags = appendUnique(nil, e.Tags...)
		index[key] = len(out)
		out = append(out, e)
	}
	return out
}

func appendUnique(dst []string, tags ...string) []string {
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		dup := false
		for _, existing := range dst {
			if existing == tag {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, tag)
		}
	}
	return dst
}

func scalar(fields map[string]any, keys []string) string {
	for _, key := range keys {
		switch v := fields[key].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case int:
			return strconv.Itoa(v)
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

func tagList(fields map[string]any) []string {
	for _, key := range tagKeys {
		switch v := fields[key].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return []string{s}
			}
		case []any:
			var tags []string
			for _, item := range v {
				if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
					tags = append(tags, strings.TrimSpace(s))
				}
			}
			if len(tags) > 0 {
				return tags
			}
		}
	}
	return nil
}
