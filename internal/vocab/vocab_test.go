package vocab

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFold(t *testing.T) {
	assert.Equal(t, "tete de femme", Fold("TÊTE DE FEMME"))
	assert.Equal(t, "ceramique", Fold("Céramique"))
	assert.Len(t, []rune(Fold("Écrit à l'œil")), len([]rune("Écrit à l'œil")))
}

func TestFindMedium(t *testing.T) {
	tests := []struct {
		text string
		want string
		ok   bool
	}{
		{"3 TÊTE DE FEMME. huile sur toile. 41 x 31 cm.", "huile sur toile", true},
		{"5 PAYSAGE. Gouache sur papier. 60 x 45 cm", "gouache sur papier", true},
		{"12 LA FLUTE DE PAN. Dessin. 1969.", "dessin", true},
		{"Céramique émaillée", "céramique", true},
		{"HUILE", "huile", true},
		{"Dessinateur inconnu", "", false},
		{"nothing here", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := FindMedium(tt.text)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDimensions(t *testing.T) {
	tests := []struct {
		text string
		w, h float64
		ok   bool
	}{
		{"50 × 40 cm", 50, 40, true},
		{"41 x 31 cm.", 41, 31, true},
		{"65,5 X 54 cm", 65.5, 54, true},
		{"12.5x8cm", 12.5, 8, true},
		{"50 x 40 mm", 0, 0, false},
		{"41 X 31 CM", 41, 31, true},
		{"92 x 73 Cm.", 92, 73, true},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			w, h, ok := ParseDimensions(tt.text)
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.w, w, 1e-9)
			assert.InDelta(t, tt.h, h, 1e-9)
		})
	}
}

func TestFindYear(t *testing.T) {
	y, ok := FindYear("Dessin. 1969. 50 × 40 cm")
	assert.True(t, ok)
	assert.Equal(t, "1969", y)
	_, ok = FindYear("plate 123")
	assert.False(t, ok)
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		text string
		want Date
		ok   bool
	}{
		{"gouache sur papier. 60 x 45 cm. mars 1970.", Date{Text: "mars 1970", ISO: "1970-03"}, true},
		{"le 5 février 1962", Date{Text: "5 février 1962", ISO: "1962-02-05"}, true},
		{"1er août 1955", Date{Text: "1er août 1955", ISO: "1955-08-01"}, true},
		{"déc. 1949", Date{Text: "déc. 1949", ISO: "1949-12"}, true},
		{"huile sur toile. 41 x 31 cm. 1969.", Date{Text: "1969", ISO: "1969"}, true},
		{"vers 1950", Date{Text: "1950", ISO: "1950", Approximate: true}, true},
		{"env. juin 1961", Date{Text: "juin 1961", ISO: "1961-06", Approximate: true}, true},
		{"Versailles 1961", Date{Text: "1961", ISO: "1961"}, true},
		{"2000 x 1500 cm", Date{}, false},
		{"sans date", Date{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := ParseDate(tt.text)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
