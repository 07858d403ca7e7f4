package pdf

import (
	"fmt"
	"strconv"
	"strings"
)

// SelectPages returns the 1-based pages to process: from start, at most
// maxPages of them (all remaining when maxPages <= 0).
func SelectPages(total, start, maxPages int) ([]int, error) {
	if start < 1 {
		start = 1
	}
	if start > total {
		return nil, fmt.Errorf("start page %d beyond last page %d", start, total)
	}
	end := total
	if maxPages > 0 {
		end = min(total, start+maxPages-1)
	}
	pages := make([]int, 0, end-start+1)
	for p := start; p <= end; p++ {
		pages = append(pages, p)
	}
	return pages, nil
}

// LastPages returns the last n pages of a total-page document in ascending order.
func LastPages(total, n int) []int {
	first := max(1, total-n+1)
	pages := make([]int, 0, total-first+1)
	for p := first; p <= total; p++ {
		pages = append(pages, p)
	}
	return pages
}

// ParsePageRange parses a page range string like "1-5" or "1,3,5".
// An empty string selects nothing, which callers treat as all pages.
func ParsePageRange(pageRange string) ([]int, error) {
	if strings.TrimSpace(pageRange) == "" {
		return nil, nil
	}
	var pages []int
	for _, part := range strings.Split(pageRange, ",") {
		tokenPages, err := parseRangeToken(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		pages = append(pages, tokenPages...)
	}
	return pages, nil
}

// parseRangeToken parses either a single page token (e.g., "3") or a range token (e.g., "1-5").
func parseRangeToken(part string) ([]int, error) {
	if lo, hi, ok := strings.Cut(part, "-"); ok {
		start, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return nil, fmt.Errorf("invalid start page: %s", lo)
		}
		end, err := strconv.Atoi(strings.TrimSpace(hi))
		if err != nil {
			return nil, fmt.Errorf("invalid end page: %s", hi)
		}
		if start < 1 || start > end {
			return nil, fmt.Errorf("invalid range %d-%d", start, end)
		}
		out := make([]int, 0, end-start+1)
		for i := start; i <= end; i++ {
			out = append(out, i)
		}
		return out, nil
	}
	page, err := strconv.Atoi(part)
	if err != nil || page < 1 {
		return nil, fmt.Errorf("invalid page number: %s", part)
	}
	return []int{page}, nil
}
