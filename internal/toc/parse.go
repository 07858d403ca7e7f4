package toc

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/MeKo-Tech/artex/internal/vocab"
)

const (
	maxTitleRunes = 50
	// dotted entries that make a headingless page a continuation page
	minContinuationLines = 3
)

// DefaultHeadings are the plates table headings, matched case-insensitively.
var DefaultHeadings = []string{
	`TABLE\s+DES\s+PLANCHES`,
	`LISTE\s+DES\s+PLANCHES`,
	`TABLE\s+DES\s+ILLUSTRATIONS`,
	`^\s*PLANCHES\s*$`,
	`^\s*PLATES\s*$`,
	`^\s*CATALOGUE\s*$`,
}

var (
	continuationRe = regexp.MustCompile(`^\s*\d+\s+\p{Lu}[^.]*\.{2,}\s*\d+\s*$`)
	// number, title, trailing page after a dot leader
	fullRe = regexp.MustCompile(`^\s*(\d{1,3})\s+(\p{Lu}[\p{L}\d ',.\-]{2,}?)\. .*?\.{2,}\s*(\d+)\s*$`)
	// number, bare title and dot leader
	leaderRe = regexp.MustCompile(`^\s*(\d{1,3})\s+(\p{Lu}[^.]*?)\s*\.{2,}\s*(\d+)\s*$`)
	// number and title, no page
	noPageRe = regexp.MustCompile(`^\s*(\d{1,3})\s+(\p{Lu}[\p{L}\d ',.\-]{2,}?)\.(?:\s.*)?$`)
	looseRe  = regexp.MustCompile(`^\s*(\d+)\s+(\p{Lu}[^.]*?)\.`)
	// lines that look like an entry, for partial-parse reporting
	entryLikeRe = regexp.MustCompile(`^\s*\d{1,3}\s+\p{Lu}`)
)

// compileHeadings builds the heading matchers; invalid patterns are an error.
func compileHeadings(patterns []string) ([]*regexp.Regexp, error) {
	if len(patterns) == 0 {
		patterns = DefaultHeadings
	}
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(`(?im)` + p)
		if err != nil {
			return nil, err
		}
		out = append(out, re)
	}
	return out, nil
}

// ParseLine parses one table line with the most specific pattern that
// matches.
func ParseLine(line string) (Entry, bool) {
	var num, title, rest string
	var page *int
	if m := fullRe.FindStringSubmatchIndex(line); m != nil {
		num, title = line[m[2]:m[3]], line[m[4]:m[5]]
		if p, err := strconv.Atoi(line[m[6]:m[7]]); err == nil {
			page = &p
		}
		rest = line[m[5]:m[6]]
	} else if m := leaderRe.FindStringSubmatchIndex(line); m != nil {
		num, title = line[m[2]:m[3]], line[m[4]:m[5]]
		if p, err := strconv.Atoi(line[m[6]:m[7]]); err == nil {
			page = &p
		}
	} else if m := noPageRe.FindStringSubmatchIndex(line); m != nil {
		num, title, rest = line[m[2]:m[3]], line[m[4]:m[5]], line[m[5]:]
	} else if m := looseRe.FindStringSubmatchIndex(line); m != nil {
		num, title, rest = line[m[2]:m[3]], line[m[4]:m[5]], line[m[5]:]
	} else {
		return Entry{}, false
	}
	n, err := strconv.Atoi(num)
	if err != nil {
		return Entry{}, false
	}
	title = cleanTitle(title)
	if title == "" {
		return Entry{}, false
	}
	return Entry{
		Number:  n,
		Title:   title,
		Page:    page,
		RawLine: strings.TrimSpace(line),
		Extras:  parseExtras(rest),
	}, true
}

// cleanTitle keeps the text up to the first dot, trims separators and
// truncates to 50 runes.
func cleanTitle(s string) string {
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}
	s = strings.Trim(s, " \t-–—,;:")
	if utf8.RuneCountInString(s) > maxTitleRunes {
		s = strings.TrimSpace(string([]rune(s)[:maxTitleRunes]))
	}
	return s
}

func parseExtras(rest string) Extras {
	var x Extras
	if m, ok := vocab.FindMedium(rest); ok {
		x.Medium = m
	}
	if w, h, ok := vocab.ParseDimensions(rest); ok {
		x.SizeFromTOC = &[2]float64{w, h}
	}
	if y, ok := vocab.FindYear(vocab.StripDimensions(rest)); ok {
		x.ExecutionYear = y
	}
	return x
}

// pageParse is the outcome of parsing one page.
type pageParse struct {
	isTOC    bool
	entries  []Entry
	unparsed []string
}

// parsePage detects a heading or continuation lines and parses the table
// lines. Lines before a heading on the same page are ignored.
func parsePage(text string, headings []*regexp.Regexp) pageParse {
	lines := strings.Split(text, "\n")
	start := -1
	for _, re := range headings {
		if loc := re.FindStringIndex(text); loc != nil {
			ln := strings.Count(text[:loc[0]], "\n")
			if start < 0 || ln < start {
				start = ln
			}
		}
	}
	if start < 0 {
		full := 0
		for _, l := range lines {
			if continuationRe.MatchString(l) {
				start = 0
				break
			}
			if fullRe.MatchString(l) {
				full++
			}
		}
		if full >= minContinuationLines {
			start = 0
		}
	}
	if start < 0 {
		return pageParse{}
	}

	res := pageParse{isTOC: true}
	for _, l := range lines[start:] {
		if strings.TrimSpace(l) == "" {
			continue
		}
		if e, ok := ParseLine(l); ok {
			res.entries = append(res.entries, e)
		} else if entryLikeRe.MatchString(l) {
			res.unparsed = append(res.unparsed, strings.TrimSpace(l))
		}
	}
	return res
}
