// Package caption reads the legend printed around an artwork reproduction:
// it searches four bands around the artwork, recognizes them with several
// page segmentation modes and parses the text into caption items.
package caption

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/MeKo-Tech/artex/internal/vocab"
)

// Region names a search band relative to the artwork.
type Region string

const (
	RegionTop    Region = "top"
	RegionBottom Region = "bottom"
	RegionLeft   Region = "left"
	RegionRight  Region = "right"
)

// Item is one parsed legend.
type Item struct {
	Index          *int     `json:"index"`
	Title          *string  `json:"title"`
	Medium         *string  `json:"medium"`
	WidthCM        *float64 `json:"width_cm"`
	HeightCM       *float64 `json:"height_cm"`
	DateText       *string  `json:"date_text"`
	DateISO        *string  `json:"date_iso"`
	Approximate    bool     `json:"approximate"`
	Region         Region   `json:"region"`
	OCRTextRaw     string   `json:"ocr_text_raw"`
	ConfidenceMean float64  `json:"confidence_mean"`
	Score          float64  `json:"score"`
}

// Result is the outcome of a caption search.
type Result struct {
	Found      bool   `json:"found"`
	BestRegion Region `json:"best_region,omitempty"`
	Items      []Item `json:"items"`
}

// Best returns the highest scoring item.
func (r *Result) Best() (Item, bool) {
	if r == nil || len(r.Items) == 0 {
		return Item{}, false
	}
	best := 0
	for i, it := range r.Items {
		if it.Score > r.Items[best].Score {
			best = i
		}
	}
	return r.Items[best], true
}

var (
	legendStartRe  = regexp.MustCompile(`(?:^|[^\d])(\d{1,3})\s+\p{Lu}[\p{Lu}'’ ]{2,}`)
	indexTitleRe   = regexp.MustCompile(`^\s*(\d{1,3})\s+([\p{Lu}\d][\p{Lu}\d'’ ,\-]*)`)
	unitAfterRe    = regexp.MustCompile(`^\s*(?i:cm)(?:[^\p{L}]|$)`)
	timesBeforeRe  = regexp.MustCompile(`\d\s*[×xX]\s*$`)
	trailingYearRe = regexp.MustCompile(`[\s,]+(1[5-9]\d{2}|20\d{2})$`)
)

const maxTitleRunes = 80

// Parse splits text into legends and parses each of them. conf is the mean
// word confidence of the recognition that produced text.
func Parse(text string, region Region, conf float64) []Item {
	var items []Item
	for _, seg := range segments(text) {
		it, ok := parseSegment(seg)
		if !ok {
			continue
		}
		it.Region = region
		it.OCRTextRaw = text
		it.ConfidenceMean = conf
		it.Score = score(it)
		items = append(items, it)
	}
	return items
}

// segments cuts text at every "index UPPERCASE" start. Text without such a
// start is one segment.
func segments(text string) []string {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return nil
	}
	var locs [][]int
	for _, loc := range legendStartRe.FindAllStringSubmatchIndex(text, -1) {
		if !isDimension(text, loc[2], loc[3]) {
			locs = append(locs, loc)
		}
	}
	if len(locs) == 0 {
		return []string{text}
	}
	out := make([]string, 0, len(locs))
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][2]
		}
		out = append(out, strings.TrimSpace(text[loc[2]:end]))
	}
	return out
}

// isDimension reports whether the number at text[start:end] is a side of
// a "W x H cm" size rather than a legend index.
func isDimension(text string, start, end int) bool {
	return unitAfterRe.MatchString(text[end:]) || timesBeforeRe.MatchString(text[:start])
}

func parseSegment(seg string) (Item, bool) {
	var it Item
	if m := indexTitleRe.FindStringSubmatch(seg); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			it.Index = &n
		}
		title := strings.Trim(m[2], " ,-")
		// a year closing the title is the date
		if y := trailingYearRe.FindStringSubmatch(title); y != nil {
			if d, ok := vocab.ParseDate(seg); ok && strings.HasPrefix(d.ISO, y[1]) {
				title = strings.Trim(strings.TrimSuffix(title, y[0]), " ,-")
			}
		}
		if utf8.RuneCountInString(title) >= 2 {
			if utf8.RuneCountInString(title) > maxTitleRunes {
				title = strings.TrimSpace(string([]rune(title)[:maxTitleRunes]))
			}
			it.Title = &title
		}
	}
	if m, ok := vocab.FindMedium(seg); ok {
		it.Medium = &m
	}
	if w, h, ok := vocab.ParseDimensions(seg); ok {
		it.WidthCM, it.HeightCM = &w, &h
	}
	if d, ok := vocab.ParseDate(seg); ok {
		it.DateText, it.DateISO = &d.Text, &d.ISO
		it.Approximate = d.Approximate
	}
	useful := it.Index != nil || it.Medium != nil || it.WidthCM != nil || it.DateISO != nil
	return it, useful
}

func score(it Item) float64 {
	s := it.ConfidenceMean / 2
	if it.Index != nil {
		s += 40
	}
	if it.Medium != nil {
		s += 30
	}
	if it.WidthCM != nil {
		s += 20
	}
	return s
}

// Merge keeps the best scoring item per index and sorts by index. Items
// without an index sort last; the first of equal scores wins.
func Merge(items []Item) []Item {
	const noIndex = -1
	best := make(map[int]int)
	var keys []int
	for i, it := range items {
		k := noIndex
		if it.Index != nil {
			k = *it.Index
		}
		j, seen := best[k]
		if !seen {
			best[k] = i
			keys = append(keys, k)
			continue
		}
		if it.Score > items[j].Score {
			best[k] = i
		}
	}
	sort.Slice(keys, func(a, b int) bool {
		if keys[a] == noIndex || keys[b] == noIndex {
			return keys[b] == noIndex && keys[a] != noIndex
		}
		return keys[a] < keys[b]
	})
	out := make([]Item, 0, len(keys))
	for _, k := range keys {
		out = append(out, items[best[k]])
	}
	return out
}

// Format renders an item as a printed legend.
func Format(it Item) string {
	var parts []string
	head := ""
	if it.Index != nil {
		head = strconv.Itoa(*it.Index)
	}
	if it.Title != nil {
		head = strings.TrimSpace(head + " " + *it.Title)
	}
	if head != "" {
		parts = append(parts, head)
	}
	if it.Medium != nil {
		parts = append(parts, *it.Medium)
	}
	if it.WidthCM != nil && it.HeightCM != nil {
		parts = append(parts, fmt.Sprintf("%s x %s cm", formatCM(*it.WidthCM), formatCM(*it.HeightCM)))
	}
	if it.DateText != nil {
		d := *it.DateText
		if it.Approximate {
			d = "vers " + d
		}
		parts = append(parts, d)
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, ". ") + "."
}

func formatCM(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
