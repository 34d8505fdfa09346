package card

import (
	"strings"
	"time"
)

// Entry is one line item of an input card list.
type Entry struct {
	Quantity        int      `json:"quantity"`
	Name            string   `json:"name"`
	SetCode         string   `json:"setCode,omitempty"`
	CollectorNumber string   `json:"collectorNumber,omitempty"`
	Tags            []string `json:"tags,omitempty"`
}

// HasPrintingHint reports whether the entry names an exact printing.
func (e Entry) HasPrintingHint() bool {
	return strings.TrimSpace(e.SetCode) != "" && strings.TrimSpace(e.CollectorNumber) != ""
}

// Label renders the entry for log lines and error messages.
func (e Entry) Label() string {
	if !e.HasPrintingHint() {
		return e.Name
	}
	return e.Name + " (" + strings.ToUpper(e.SetCode) + " " + e.CollectorNumber + ")"
}

// Face is one side of a canonical card.
type Face struct {
	Name       string `json:"name"`
	ManaCost   string `json:"manaCost,omitempty"`
	TypeLine   string `json:"typeLine,omitempty"`
	OracleText string `json:"oracleText,omitempty"`
	ImageURL   string `json:"imageUrl,omitempty"`
}

// Canonical is the authoritative English data for one printing.
type Canonical struct {
	ScryfallID      string     `json:"scryfallId,omitempty"`
	EnglishName     string     `json:"englishName"`
	TypeLine        string     `json:"typeLine"`
	ManaCost        []string   `json:"manaCost"`
	ManaCostText    string     `json:"manaCostText"`
	ManaValue       float64    `json:"manaValue"`
	OracleText      string     `json:"oracleText"`
	Legalities      []Legality `json:"legalities"`
	SetCode         string     `json:"setCode"`
	SetName         string     `json:"setName"`
	CollectorNumber string     `json:"collectorNumber"`
	ReleasedAt      string     `json:"releasedAt"`
	ImageURL        string     `json:"imageUrl"`
	Reserved        bool       `json:"reserved"`
	Faces           []Face     `json:"faces"`
}

// ImageURLs returns one image URL per face, falling back to the card image.
func (c Canonical) ImageURLs() []string {
	if len(c.Faces) <= 1 {
		if c.ImageURL == "" {
			return nil
		}
		return []string{c.ImageURL}
	}
	urls := make([]string, 0, len(c.Faces))
	for _, face := range c.Faces {
		if face.ImageURL != "" {
			urls = append(urls, face.ImageURL)
		}
	}
	if len(urls) == 0 && c.ImageURL != "" {
		urls = append(urls, c.ImageURL)
	}
	return urls
}

// LocalizedFace carries translated text for one face.
type LocalizedFace struct {
	Name       string `json:"name,omitempty"`
	TypeLine   string `json:"typeLine,omitempty"`
	OracleText string `json:"oracleText,omitempty"`
}

// Localization is the best-effort Chinese text for a card. Missing fields are
// empty strings.
type Localization struct {
	ChineseName         string          `json:"chineseName"`
	ChineseTypeLine     string          `json:"chineseTypeLine"`
	ChineseManaCostText string          `json:"chineseManaCostText"`
	ChineseOracleText   string          `json:"chineseOracleText"`
	ChineseSetName      string          `json:"chineseSetName"`
	Faces               []LocalizedFace `json:"faces,omitempty"`
}

// IsEmpty reports whether no localized field was found.
func (l Localization) IsEmpty() bool {
	return l.ChineseName == "" && l.ChineseTypeLine == "" && l.ChineseManaCostText == "" &&
		l.ChineseOracleText == "" && l.ChineseSetName == "" && len(l.Faces) == 0
}

func (l Localization) face(index int) LocalizedFace {
	if len(l.Faces) == 0 {
		if index == 0 {
			return LocalizedFace{Name: l.ChineseName, TypeLine: l.ChineseTypeLine, OracleText: l.ChineseOracleText}
		}
		return LocalizedFace{}
	}
	if index < len(l.Faces) {
		return l.Faces[index]
	}
	return l.Faces[len(l.Faces)-1]
}

// RecordFace is the persisted form of one card face.
type RecordFace struct {
	EnglishName       string `json:"englishName"`
	ChineseName       string `json:"chineseName"`
	ManaCost          string `json:"manaCost"`
	TypeLine          string `json:"typeLine"`
	ChineseTypeLine   string `json:"chineseTypeLine"`
	OracleText        string `json:"oracleText"`
	ChineseOracleText string `json:"chineseOracleText"`
	ImagePath         string `json:"imagePath"`
}

// Record is the persisted unit of the dataset.
type Record struct {
	ID                  string       `json:"id"`
	EnglishName         string       `json:"englishName"`
	ChineseName         string       `json:"chineseName"`
	TypeLine            string       `json:"typeLine"`
	ChineseTypeLine     string       `json:"chineseTypeLine"`
	ManaCost            []string     `json:"manaCost"`
	ManaCostText        string       `json:"manaCostText"`
	ChineseManaCostText string       `json:"chineseManaCostText"`
	ManaValue           float64      `json:"manaValue"`
	OracleText          string       `json:"oracleText"`
	ChineseOracleText   string       `json:"chineseOracleText"`
	Legalities          []Legality   `json:"legalities"`
	SetCode             string       `json:"setCode"`
	SetName             string       `json:"setName"`
	ChineseSetName      string       `json:"chineseSetName"`
	CollectorNumber     string       `json:"collectorNumber"`
	ReleasedAt          string       `json:"releasedAt,omitempty"`
	ImageURL            string       `json:"imageUrl"`
	ImagePath           string       `json:"imagePath"`
	Faces               []RecordFace `json:"faces"`
	SortType            string       `json:"sortType"`
	StaxType            string       `json:"staxType"`
	IsRestricted        bool         `json:"isRestricted"`
	Tags                []string     `json:"tags"`
	LastUpdated         time.Time    `json:"lastUpdated"`
}

// IsMultiFace reports whether the record carries more than one face.
func (r Record) IsMultiFace() bool {
	return len(r.Faces) > 1
}

// HasTag reports whether the record carries tag.
func (r Record) HasTag(tag string) bool {
	for _, t := range r.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// NewRecord combines resolved data into a dataset record. imagePaths holds one
// local path per face in face order; staxTypes maps tags to stax labels.
func NewRecord(entry Entry, c Canonical, loc Localization, imagePaths []string, staxTypes map[string]string) Record {
	rec := Record{
		ID:                  ID(c.SetCode, c.CollectorNumber, c.EnglishName),
		EnglishName:         c.EnglishName,
		ChineseName:         loc.ChineseName,
		TypeLine:            c.TypeLine,
		ChineseTypeLine:     loc.ChineseTypeLine,
		ManaCost:            append([]string{}, c.ManaCost...),
		ManaCostText:        c.ManaCostText,
		ChineseManaCostText: loc.ChineseManaCostText,
		ManaValue:           c.ManaValue,
		OracleText:          c.OracleText,
		ChineseOracleText:   loc.ChineseOracleText,
		Legalities:          append([]Legality{}, c.Legalities...),
		SetCode:             strings.ToUpper(c.SetCode),
		SetName:             c.SetName,
		ChineseSetName:      loc.ChineseSetName,
		CollectorNumber:     c.CollectorNumber,
		ReleasedAt:          c.ReleasedAt,
		ImageURL:            c.ImageURL,
		SortType:            SortType(c.TypeLine),
		StaxType:            StaxType(entry.Tags, staxTypes),
		IsRestricted:        c.Reserved,
		Tags:                NormalizeTags(entry.Tags),
	}

	faces := c.Faces
	if len(faces) == 0 {
		faces = []Face{{Name: c.EnglishName, ManaCost: c.ManaCostText, TypeLine: c.TypeLine, OracleText: c.OracleText}}
	}
	rec.Faces = make([]RecordFace, 0, len(faces))
	for i, face := range faces {
		translated := loc.face(i)
		rf := RecordFace{
			EnglishName:       face.Name,
			ChineseName:       translated.Name,
			ManaCost:          face.ManaCost,
			TypeLine:          face.TypeLine,
			ChineseTypeLine:   translated.TypeLine,
			OracleText:        face.OracleText,
			ChineseOracleText: translated.OracleText,
		}
		if i < len(imagePaths) {
			rf.ImagePath = imagePaths[i]
		}
		rec.Faces = append(rec.Faces, rf)
	}
	if len(imagePaths) > 0 {
		rec.ImagePath = imagePaths[0]
	}
	return rec
}
