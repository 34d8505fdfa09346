package mtgch

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"allthatstax/internal/card"
	"allthatstax/internal/services"
)

var (
	cardLink   = regexp.MustCompile(`/cards?/`)
	htmlHeader = http.Header{"Accept": {"text/html,application/xhtml+xml"}}

	dataFields = map[string]string{
		"zh-name":   "name",
		"name-zh":   "name",
		"cn-name":   "name",
		"type":      "type",
		"type-line": "type",
		"mana":      "mana",
		"mana-cost": "mana",
		"oracle":    "text",
		"text":      "text",
		"rules":     "text",
		"set":       "set",
		"set-name":  "set",
	}

	classFields = []struct {
		token string
		field string
	}{
		{"name-zh", "name"},
		{"chinese-name", "name"},
		{"card-type", "type"},
		{"type-line", "type"},
		{"mana-cost", "mana"},
		{"card-text", "text"},
		{"oracle-text", "text"},
		{"set-name", "set"},
		{"set-info", "set"},
	}

	labelFields = map[string]string{
		"中文名":   "name",
		"中文名称":  "name",
		"名称":    "name",
		"卡名":    "name",
		"类别":    "type",
		"类型":    "type",
		"卡牌类型":  "type",
		"法术力":   "mana",
		"法术力费用": "mana",
		"卡牌叙述":  "text",
		"规则叙述":  "text",
		"叙述":    "text",
		"规则":    "text",
		"系列":    "set",
		"扩充系列":  "set",
		"系列名称":  "set",
	}
)

// viaHTML searches the website by English name and scrapes the first card
// detail page linked from the results.
func (c *Client) viaHTML(ctx context.Context, canonical card.Canonical) (card.Localization, error) {
	name := strings.TrimSpace(canonical.EnglishName)
	var (
		href    string
		lastErr error
	)
	for _, path := range []string{"cards/search", "search"} {
		doc, err := c.document(ctx, c.siteURL+"/"+path+"?"+url.Values{"q": {name}}.Encode())
		if err != nil {
			if services.KindOf(err) == services.KindCancelled {
				return card.Localization{}, err
			}
			lastErr = err
			continue
		}
		if href = firstCardLink(doc); href != "" {
			break
		}
	}
	if href == "" {
		if lastErr != nil && services.KindOf(lastErr) != services.KindNotFound {
			return card.Localization{}, lastErr
		}
		return card.Localization{}, services.Wrap(services.ErrNotFound, stageName, "search page", name, nil)
	}

	detailURL, err := c.resolve(href)
	if err != nil {
		return card.Localization{}, services.Wrap(services.ErrParse, stageName, "detail link", href, err)
	}
	doc, err := c.document(ctx, detailURL)
	if err != nil {
		return card.Localization{}, err
	}
	values := parseDetail(doc)
	if len(values) == 0 {
		return card.Localization{}, services.Wrap(services.ErrParse, stageName, "detail page", detailURL, nil)
	}
	return localizationFromValues(values, len(canonical.Faces)), nil
}

func (c *Client) document(ctx context.Context, rawURL string) (*goquery.Document, error) {
	resp, err := c.doer.Get(ctx, rawURL, htmlHeader)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, services.Wrap(services.ErrParse, stageName, "html", rawURL, err)
	}
	return doc, nil
}

func (c *Client) resolve(href string) (string, error) {
	base, err := url.Parse(c.siteURL + "/")
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}

func firstCardLink(doc *goquery.Document) string {
	var href string
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		value, _ := s.Attr("href")
		if cardLink.MatchString(value) {
			href = value
			return false
		}
		return true
	})
	return href
}

// parseDetail extracts labelled fields from a card page. data-field
// attributes win over class names, which win over visible labels.
func parseDetail(doc *goquery.Document) map[string]string {
	values := make(map[string]string)
	set := func(field, text string) {
		if field == "" || text == "" {
			return
		}
		if _, ok := values[field]; !ok {
			values[field] = text
		}
	}

	doc.Find("[data-field]").Each(func(_ int, s *goquery.Selection) {
		attr, _ := s.Attr("data-field")
		set(dataFields[strings.ToLower(strings.TrimSpace(attr))], cleanText(s.Text()))
	})

	doc.Find("[class]").Each(func(_ int, s *goquery.Selection) {
		class := strings.ToLower(s.AttrOr("class", ""))
		for _, cf := range classFields {
			if strings.Contains(class, cf.token) {
				set(cf.field, cleanText(s.Text()))
				return
			}
		}
	})

	doc.Find("dt, th, td, span, div, label, strong, b").Each(func(_ int, s *goquery.Selection) {
		if s.Children().Length() > 0 {
			return
		}
		label := strings.TrimRight(strings.TrimSpace(s.Text()), ":：")
		field, ok := labelFields[label]
		if !ok {
			return
		}
		set(field, cleanText(s.Next().Text()))
	})
	return values
}

func localizationFromValues(values map[string]string, faceCount int) card.Localization {
	loc := card.Localization{
		ChineseName:         values["name"],
		ChineseTypeLine:     values["type"],
		ChineseManaCostText: values["mana"],
		ChineseOracleText:   values["text"],
		ChineseSetName:      values["set"],
	}
	if faceCount > 1 && strings.Contains(loc.ChineseName, "//") {
		for _, part := range strings.Split(loc.ChineseName, "//") {
			loc.Faces = append(loc.Faces, card.LocalizedFace{
				Name:       strings.TrimSpace(part),
				TypeLine:   loc.ChineseTypeLine,
				OracleText: loc.ChineseOracleText,
			})
		}
	}
	return loc
}

// cleanText trims each line and drops blank ones.
func cleanText(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
