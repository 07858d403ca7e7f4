package vocab

import (
	"fmt"
	"regexp"
	"strconv"
)

var months = []struct {
	re  string
	num int
}{
	{`janv(?:ier|\.)?`, 1},
	{`f[ée]v(?:rier|r?\.)?`, 2},
	{`mars`, 3},
	{`avr(?:il|\.)?`, 4},
	{`mai`, 5},
	{`juin`, 6},
	{`juil(?:let|\.)?`, 7},
	{`ao[uû]t`, 8},
	{`sept(?:embre|\.)?`, 9},
	{`oct(?:obre|\.)?`, 10},
	{`nov(?:embre|\.)?`, 11},
	{`d[ée]c(?:embre|\.)?`, 12},
}

var (
	monthRes = func() []*regexp.Regexp {
		out := make([]*regexp.Regexp, len(months))
		for i, m := range months {
			out[i] = regexp.MustCompile(`(?i)(?:\b(\d{1,2})(?:er)?\s+)?\b(` + m.re + `)\s+(1[5-9]\d{2}|20\d{2})\b`)
		}
		return out
	}()
	approxRe = regexp.MustCompile(`(?i)(?:^|[^\p{L}])(?:(?:vers|circa)(?:[^\p{L}]|$)|(?:env|ca)\.)`)
)

// Date is a date found in a legend.
type Date struct {
	Text        string `json:"date_text"`
	ISO         string `json:"date_iso"`
	Approximate bool   `json:"approximate"`
}

// ParseDate finds a French date ("5 mars 1970", "mars 1970") or a bare
// year and normalizes it to ISO (YYYY-MM-DD, YYYY-MM or YYYY).
// Approximate is set when the text carries "vers", "circa" or "env.".
func ParseDate(text string) (Date, bool) {
	approx := approxRe.MatchString(text)
	best := -1
	var d Date
	for i, re := range monthRes {
		loc := re.FindStringSubmatchIndex(text)
		if loc == nil || (best >= 0 && loc[0] >= best) {
			continue
		}
		best = loc[0]
		year := text[loc[6]:loc[7]]
		iso := fmt.Sprintf("%s-%02d", year, months[i].num)
		if loc[2] >= 0 {
			if day, err := strconv.Atoi(text[loc[2]:loc[3]]); err == nil && day >= 1 && day <= 31 {
				iso = fmt.Sprintf("%s-%02d", iso, day)
			}
		}
		d = Date{Text: text[loc[0]:loc[1]], ISO: iso, Approximate: approx}
	}
	if best >= 0 {
		return d, true
	}
	if y, ok := FindYear(StripDimensions(text)); ok {
		return Date{Text: y, ISO: y, Approximate: approx}, true
	}
	return Date{}, false
}
