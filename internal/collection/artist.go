package collection

import (
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var catalogWords = map[string]bool{
	"catalogue": true, "catalog": true, "raisonne": true, "raisonné": true,
	"tome": true, "fascicule": true, "vol": true, "volume": true, "oeuvre": true, "oeuvres": true,
}

// ArtistFromFilename derives the artist name from a catalog filename: the
// leading alphabetic words before any digit or catalog keyword, title-cased.
// "PICASSO_catalogue_1969.pdf" gives "Picasso".
func ArtistFromFilename(path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	fields := strings.FieldsFunc(stem, func(r rune) bool {
		return r == '_' || r == '-' || r == ' ' || r == '.'
	})
	var words []string
	for _, f := range fields {
		if catalogWords[strings.ToLower(f)] || strings.IndexFunc(f, unicode.IsDigit) >= 0 {
			break
		}
		words = append(words, f)
	}
	if len(words) == 0 {
		return "Unknown"
	}
	return cases.Title(language.French).String(strings.Join(words, " "))
}
