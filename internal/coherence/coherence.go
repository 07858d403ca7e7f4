// Package coherence checks whether the artwork numbers found on a page form
// a plausible sequence. It reports gaps and inconsistencies and never
// rewrites numbers.
package coherence

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// DefaultLargeGap is the adjacent difference above which a gap is reported
// as an inconsistency.
const DefaultLargeGap = 3

// Inconsistency kinds.
const (
	KindDuplicate = "duplicate"
	KindLargeGap  = "large_gap"
)

// Inconsistency is a duplicate number or an unusually large gap.
type Inconsistency struct {
	Type     string `json:"type"`
	Number   int    `json:"number"`
	Count    int    `json:"count"`
	GapStart int    `json:"gap_start"`
	GapEnd   int    `json:"gap_end"`
	GapSize  int    `json:"gap_size"`
}

// MarshalJSON writes only the fields of the inconsistency's kind, so plate 0
// and a gap starting at 0 keep their values.
func (i Inconsistency) MarshalJSON() ([]byte, error) {
	switch i.Type {
	case KindDuplicate:
		return json.Marshal(struct {
			Type   string `json:"type"`
			Number int    `json:"number"`
			Count  int    `json:"count"`
		}{i.Type, i.Number, i.Count})
	case KindLargeGap:
		return json.Marshal(struct {
			Type     string `json:"type"`
			GapStart int    `json:"gap_start"`
			GapEnd   int    `json:"gap_end"`
			GapSize  int    `json:"gap_size"`
		}{i.Type, i.GapStart, i.GapEnd, i.GapSize})
	}
	type plain Inconsistency
	return json.Marshal(plain(i))
}

// Report is the coherence analysis of one page.
type Report struct {
	Analyzed        bool            `json:"analyzed"`
	Reason          string          `json:"reason,omitempty"`
	Numbers         []int           `json:"numbers"`
	IsSequential    bool            `json:"is_sequential"`
	Gaps            []int           `json:"gaps"`
	Inconsistencies []Inconsistency `json:"inconsistencies"`
}

// Analyzer holds the large gap threshold.
type Analyzer struct {
	LargeGap int
}

// New returns an analyzer; a non-positive threshold takes DefaultLargeGap.
func New(largeGap int) Analyzer {
	if largeGap <= 0 {
		largeGap = DefaultLargeGap
	}
	return Analyzer{LargeGap: largeGap}
}

// Analyze converts the numbers to integers, dropping empty and non-numeric
// values, and checks the sorted sequence.
func (a Analyzer) Analyze(numbers []string) Report {
	ints := make([]int, 0, len(numbers))
	for _, s := range numbers {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			continue
		}
		ints = append(ints, n)
	}
	sort.Ints(ints)

	r := Report{Numbers: ints, Gaps: []int{}, Inconsistencies: []Inconsistency{}}
	if len(ints) < 2 {
		r.Reason = "fewer than two numbers"
		return r
	}
	r.Analyzed = true
	r.IsSequential = true

	var gaps []Inconsistency
	for i := 1; i < len(ints); i++ {
		prev, cur := ints[i-1], ints[i]
		diff := cur - prev
		if diff != 1 {
			r.IsSequential = false
		}
		for missing := prev + 1; missing < cur; missing++ {
			r.Gaps = append(r.Gaps, missing)
		}
		if diff > a.LargeGap {
			gaps = append(gaps, Inconsistency{Type: KindLargeGap, GapStart: prev, GapEnd: cur, GapSize: diff})
		}
	}

	for i := 0; i < len(ints); {
		j := i
		for j < len(ints) && ints[j] == ints[i] {
			j++
		}
		if j-i > 1 {
			r.Inconsistencies = append(r.Inconsistencies, Inconsistency{Type: KindDuplicate, Number: ints[i], Count: j - i})
		}
		i = j
	}
	r.Inconsistencies = append(r.Inconsistencies, gaps...)
	return r
}
