// Package vocab recognizes the catalog vocabulary shared by plates tables
// and captions: art media, dimensions in centimetres, years and French
// dates. Matching is case and accent insensitive.
package vocab

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Media is the technique vocabulary, longest terms first.
var Media = sortedByLength([]string{
	"huile sur toile", "huile sur papier", "huile sur carton", "huile sur bois",
	"huile sur isorel", "huile", "gouache sur papier", "gouache", "aquarelle",
	"pastel", "fusain", "dessin", "crayon", "mine de plomb", "encre de chine",
	"encre", "lavis", "lithographie", "gravure", "eau-forte", "pointe sèche",
	"aquatinte", "linogravure", "sérigraphie", "collage", "assemblage",
	"technique mixte", "acrylique", "tempera", "sculpture", "bronze",
	"céramique", "terre cuite", "plâtre", "peinture",
})

var foldedMedia = func() []string {
	out := make([]string, len(Media))
	for i, m := range Media {
		out[i] = Fold(m)
	}
	return out
}()

func sortedByLength(terms []string) []string {
	sort.SliceStable(terms, func(i, j int) bool {
		return utf8.RuneCountInString(terms[i]) > utf8.RuneCountInString(terms[j])
	})
	return terms
}

// Fold lowercases s and strips diacritics rune by rune, so that rune
// offsets in the result match those in s.
func Fold(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		b.WriteRune(foldRune(r))
	}
	return b.String()
}

func foldRune(r rune) rune {
	r = unicode.ToLower(r)
	if r < utf8.RuneSelf {
		return r
	}
	d := norm.NFD.String(string(r))
	base, _ := utf8.DecodeRuneInString(d)
	return base
}

func isWordRune(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }

// FindMedium returns the longest vocabulary medium that appears in text as
// whole words.
func FindMedium(text string) (string, bool) {
	folded := Fold(text)
	for i, term := range foldedMedia {
		if containsWord(folded, term) {
			return Media[i], true
		}
	}
	return "", false
}

func containsWord(s, term string) bool {
	for off := 0; ; {
		idx := strings.Index(s[off:], term)
		if idx < 0 {
			return false
		}
		start, end := off+idx, off+idx+len(term)
		before, _ := utf8.DecodeLastRuneInString(s[:start])
		after, _ := utf8.DecodeRuneInString(s[end:])
		if (start == 0 || !isWordRune(before)) && (end == len(s) || !isWordRune(after)) {
			return true
		}
		off = start + 1
	}
}

var (
	dimensionsRe = regexp.MustCompile(`(\d+(?:[,.]\d+)?)\s*[×xX]\s*(\d+(?:[,.]\d+)?)\s*(?i:cm)\b`)
	yearRe       = regexp.MustCompile(`\b(1[5-9]\d{2}|20\d{2})\b`)
)

// ParseDimensions finds the first "W x H cm" and returns both sides.
func ParseDimensions(text string) (w, h float64, ok bool) {
	m := dimensionsRe.FindStringSubmatch(text)
	if m == nil {
		return 0, 0, false
	}
	w, err1 := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
	h, err2 := strconv.ParseFloat(strings.ReplaceAll(m[2], ",", "."), 64)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return w, h, true
}

// FindYear returns the first plausible four-digit year.
func FindYear(text string) (string, bool) {
	m := yearRe.FindString(text)
	return m, m != ""
}

// StripDimensions removes "W x H cm" spans, so their numbers are not taken for years.
func StripDimensions(text string) string {
	return dimensionsRe.ReplaceAllString(text, " ")
}
