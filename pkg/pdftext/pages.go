package pdftext

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// ParsePageRange expands a 1-indexed, inclusive page selection such as
// "1-5", "3" or "1,4-6" into sorted page numbers. An empty selection means
// every page. "7-" runs to the last page.
func ParsePageRange(selection string, pageCount int) ([]int, error) {
	selection = strings.TrimSpace(selection)
	if selection == "" {
		pages := make([]int, pageCount)
		for i := range pages {
			pages[i] = i + 1
		}
		return pages, nil
	}

	seen := make(map[int]bool)
	for _, part := range strings.Split(selection, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, fmt.Errorf("%w: empty element in %q", ErrInvalidPageRange, selection)
		}

		startStr, endStr, isRange := strings.Cut(part, "-")
		start, err := strconv.Atoi(strings.TrimSpace(startStr))
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a page number", ErrInvalidPageRange, startStr)
		}
		end := start
		if isRange {
			endStr = strings.TrimSpace(endStr)
			if endStr == "" {
				end = pageCount
			} else if end, err = strconv.Atoi(endStr); err != nil {
				return nil, fmt.Errorf("%w: %q is not a page number", ErrInvalidPageRange, endStr)
			}
		}

		if err := ValidateRange(start, end, pageCount); err != nil {
			return nil, err
		}
		for p := start; p <= end; p++ {
			seen[p] = true
		}
	}

	pages := make([]int, 0, len(seen))
	for p := range seen {
		pages = append(pages, p)
	}
	sort.Ints(pages)
	return pages, nil
}

// ValidateRange checks a 1-indexed inclusive range against a page count.
func ValidateRange(start, end, pageCount int) error {
	switch {
	case start < 1:
		return fmt.Errorf("%w: start page %d must be at least 1", ErrInvalidPageRange, start)
	case end < start:
		return fmt.Errorf("%w: end page %d is before start page %d", ErrInvalidPageRange, end, start)
	case end > pageCount:
		return fmt.Errorf("%w: end page %d exceeds page count %d", ErrInvalidPageRange, end, pageCount)
	}
	return nil
}

// PageCount returns the number of pages of the PDF at path.
func PageCount(path string) (int, error) {
	if err := CheckFile(path); err != nil {
		return 0, err
	}
	ctx, err := api.ReadContextFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading PDF context: %w", err)
	}
	return ctx.PageCount, nil
}

// Trim writes pages start..end (1-indexed, inclusive) of in to out.
func Trim(in, out string, start, end int) error {
	count, err := PageCount(in)
	if err != nil {
		return err
	}
	if err := ValidateRange(start, end, count); err != nil {
		return err
	}

	selected := []string{fmt.Sprintf("%d-%d", start, end)}
	if err := api.TrimFile(in, out, selected, model.NewDefaultConfiguration()); err != nil {
		return fmt.Errorf("trimming %s: %w", in, err)
	}
	return nil
}
