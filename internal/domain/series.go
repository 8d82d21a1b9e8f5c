package domain

import (
	"strconv"
	"strings"
)

// SeriesInfo places a book in a series. Index keeps the ordinal as written
// ("1", "2.5") so it round-trips without float formatting.
type SeriesInfo struct {
	Title string `json:"title"`
	Index string `json:"index,omitempty"`
}

// NewSeriesInfo returns nil when title is blank.
func NewSeriesInfo(title, index string) *SeriesInfo {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil
	}
	index = strings.TrimSpace(index)
	if f, err := strconv.ParseFloat(index, 64); err == nil {
		index = strconv.FormatFloat(f, 'f', -1, 64)
	}
	return &SeriesInfo{Title: title, Index: index}
}

// Ordinal returns the numeric index, or ok=false when there is none.
func (s *SeriesInfo) Ordinal() (float64, bool) {
	if s == nil || s.Index == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s.Index, 64)
	return f, err == nil
}

// Equal compares title and index.
func (s *SeriesInfo) Equal(o *SeriesInfo) bool {
	if s == nil || o == nil {
		return s == o
	}
	return *s == *o
}
