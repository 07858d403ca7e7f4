// Package toc finds the plates table ("Table des planches") at the end of a
// catalog and turns it into a plate number to entry map.
package toc

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// Extras holds the optional metadata parsed after the title.
type Extras struct {
	Medium        string      `json:"medium,omitempty"`
	ExecutionYear string      `json:"execution_year,omitempty"`
	SizeFromTOC   *[2]float64 `json:"size_from_toc,omitempty"`
}

// Entry is one plate of the table.
type Entry struct {
	Number  int    `json:"number"`
	Title   string `json:"title"`
	Page    *int   `json:"page"`
	RawLine string `json:"raw_line"`
	Extras  Extras `json:"extras"`
}

// TOC is the list of entries, unique by number and sorted ascending.
type TOC []Entry

// Lookup returns the entry for a plate number.
func (t TOC) Lookup(n int) (Entry, bool) {
	i := sort.Search(len(t), func(i int) bool { return t[i].Number >= n })
	if i < len(t) && t[i].Number == n {
		return t[i], true
	}
	return Entry{}, false
}

// PlateMap returns the entries keyed by number.
func (t TOC) PlateMap() map[int]Entry {
	m := make(map[int]Entry, len(t))
	for _, e := range t {
		m[e.Number] = e
	}
	return m
}

// Numbers returns the plate numbers in ascending order.
func (t TOC) Numbers() []int {
	out := make([]int, len(t))
	for i, e := range t {
		out[i] = e.Number
	}
	return out
}

// build sorts entries and keeps the first one per number. It returns the
// numbers that were seen more than once.
func build(entries []Entry) (TOC, []int) {
	seen := make(map[int]bool, len(entries))
	var dups []int
	out := make(TOC, 0, len(entries))
	for _, e := range entries {
		if seen[e.Number] {
			dups = append(dups, e.Number)
			continue
		}
		seen[e.Number] = true
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, dups
}

// Summary is the serialized form written as sommaire_planches.json.
type Summary struct {
	SourcePDF    string `json:"source_pdf"`
	Method       string `json:"extraction_method"`
	TOCPages     []int  `json:"toc_pages"`
	TotalEntries int    `json:"total_entries"`
	Entries      TOC    `json:"entries"`
}

// Marshal serializes a result.
func Marshal(r *Result) ([]byte, error) {
	s := Summary{
		SourcePDF:    r.SourcePDF,
		Method:       r.Method,
		TOCPages:     r.Pages,
		TotalEntries: len(r.Entries),
		Entries:      r.Entries,
	}
	if s.Entries == nil {
		s.Entries = TOC{}
	}
	return json.MarshalIndent(s, "", "  ")
}

// Unmarshal parses a serialized result. Duplicate numbers are an error.
func Unmarshal(data []byte) (*Result, error) {
	var s Summary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse plates table: %w", err)
	}
	entries, dups := build(s.Entries)
	if len(dups) > 0 {
		return nil, fmt.Errorf("plates table has duplicate numbers %v", dups)
	}
	return &Result{SourcePDF: s.SourcePDF, Method: s.Method, Pages: s.TOCPages, Entries: entries}, nil
}

// WriteFile writes the result as indented JSON.
func WriteFile(path string, r *Result) error {
	data, err := Marshal(r)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write plates table: %w", err)
	}
	return nil
}

// ReadFile loads a result written by WriteFile.
func ReadFile(path string) (*Result, error) {
	data, err := os.ReadFile(path) //nolint:gosec // session file
	if err != nil {
		return nil, err
	}
	return Unmarshal(data)
}

func writeLines(path string, lines []string) error {
	data := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
