package batch

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/artex/internal/journal"
)

// formatBatchResults formats the batch results in the specified format.
func formatBatchResults(outcomes []Outcome, format string) (string, error) {
	switch format {
	case FormatJSON:
		return formatJSON(outcomes)
	case FormatCSV:
		return formatCSV(outcomes)
	default:
		return formatText(outcomes)
	}
}

type jsonOutcome struct {
	PDF        string            `json:"pdf"`
	SessionDir string            `json:"session_dir,omitempty"`
	Error      string            `json:"error,omitempty"`
	DurationMS int64             `json:"duration_ms"`
	Manifest   *journal.Manifest `json:"manifest,omitempty"`
}

// formatJSON formats outcomes as JSON.
func formatJSON(outcomes []Outcome) (string, error) {
	out := struct {
		Catalogs []jsonOutcome `json:"catalogs"`
	}{Catalogs: make([]jsonOutcome, 0, len(outcomes))}

	for _, o := range outcomes {
		j := jsonOutcome{PDF: o.PDF, Manifest: o.Manifest, DurationMS: o.Duration.Milliseconds()}
		if o.Manifest != nil {
			j.SessionDir = o.Manifest.SessionDir
		}
		if o.Err != nil {
			j.Error = o.Err.Error()
		}
		out.Catalogs = append(out.Catalogs, j)
	}

	bts, err := json.MarshalIndent(out, "", "  ")
	return string(bts), err
}

// formatCSV formats one row per catalog.
func formatCSV(outcomes []Outcome) (string, error) {
	rows := [][]string{{
		"pdf", "session_dir", "collection", "pages", "success_pages", "failed_pages", "artworks", "duration_ms", "error",
	}}
	for _, o := range outcomes {
		row := []string{o.PDF, "", "", "0", "0", "0", "0", strconv.FormatInt(o.Duration.Milliseconds(), 10), ""}
		if m := o.Manifest; m != nil {
			row[1] = m.SessionDir
			row[2] = m.Collection
			row[3] = strconv.Itoa(len(m.Pages))
			row[4] = strconv.Itoa(m.SuccessPages)
			row[5] = strconv.Itoa(m.FailedPages)
			row[6] = strconv.Itoa(m.TotalImagesExtracted)
		}
		if o.Err != nil {
			row[8] = o.Err.Error()
		}
		rows = append(rows, row)
	}

	var output strings.Builder
	writer := csv.NewWriter(&output)
	if err := writer.WriteAll(rows); err != nil {
		return "", err
	}
	return output.String(), nil
}

// formatText formats outcomes as plain text.
func formatText(outcomes []Outcome) (string, error) {
	var output strings.Builder
	for i, o := range outcomes {
		if i > 0 {
			output.WriteString("\n")
		}
		fmt.Fprintf(&output, "# %s\n", o.PDF)
		if m := o.Manifest; m != nil {
			fmt.Fprintf(&output, "session: %s\n", m.SessionDir)
			fmt.Fprintf(&output, "collection: %s\n", m.Collection)
			fmt.Fprintf(&output, "pages: %d ok, %d failed\n", m.SuccessPages, m.FailedPages)
			fmt.Fprintf(&output, "artworks: %d\n", m.TotalImagesExtracted)
		}
		if o.Err != nil {
			fmt.Fprintf(&output, "error: %v\n", o.Err)
		}
		fmt.Fprintf(&output, "duration: %v\n", o.Duration.Round(time.Millisecond))
	}
	return output.String(), nil
}
