// Package models defines data structures shared by the extractor and pipeline.
package models

import (
	"strconv"
	"strings"
	"time"
)

// Listing represents one apartment unit extracted from a page.
//
// Bedrooms, Bathrooms and Rent are nil when the page carried no parseable
// value; they are never guessed. Address and Neighborhood may be empty.
// Listings are immutable after construction: a later fetch with a changed
// price yields a new record, not an update.
type Listing struct {
	Address      string   `csv:"address" json:"address"`
	Bedrooms     *int     `csv:"bedrooms" json:"bedrooms"`
	Bathrooms    *float64 `csv:"bathrooms" json:"bathrooms"`
	Rent         *int     `csv:"rent" json:"rent"`
	Neighborhood string   `csv:"neighborhood" json:"neighborhood"`
	SourceURL    string   `csv:"source_url" json:"source_url"`
}

// IdentityKey derives the deduplication key from (address, bedrooms,
// bathrooms, rent). It is recomputed on every call so it can never go stale.
// Neighborhood and SourceURL are deliberately excluded: the same unit seen
// through two sites is still the same unit.
func (l *Listing) IdentityKey() string {
	var b strings.Builder
	b.WriteString(l.Address)
	b.WriteByte('|')
	b.WriteString(intKey(l.Bedrooms))
	b.WriteByte('|')
	b.WriteString(floatKey(l.Bathrooms))
	b.WriteByte('|')
	b.WriteString(intKey(l.Rent))
	return b.String()
}

// HasSignal reports whether at least one of rent, bedrooms or bathrooms was
// parsed. Containers that yield no signal are dropped, never emitted as
// empty records.
func (l *Listing) HasSignal() bool {
	return l.Rent != nil || l.Bedrooms != nil || l.Bathrooms != nil
}

func intKey(v *int) string {
	if v == nil {
		return "-"
	}
	return strconv.Itoa(*v)
}

func floatKey(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}

// CSVHeader returns the CSV column order, matching the JSON field order.
func CSVHeader() []string {
	return []string{"address", "bedrooms", "bathrooms", "rent", "neighborhood", "source_url"}
}

// CSVRecord renders the listing as one CSV row. Nil fields become empty cells.
func (l *Listing) CSVRecord() []string {
	bedrooms := ""
	if l.Bedrooms != nil {
		bedrooms = strconv.Itoa(*l.Bedrooms)
	}
	bathrooms := ""
	if l.Bathrooms != nil {
		bathrooms = strconv.FormatFloat(*l.Bathrooms, 'g', -1, 64)
	}
	rent := ""
	if l.Rent != nil {
		rent = strconv.Itoa(*l.Rent)
	}
	return []string{l.Address, bedrooms, bathrooms, rent, l.Neighborhood, l.SourceURL}
}

// CrawlResult holds the overall outcome of a crawl run.
type CrawlResult struct {
	StartTime    time.Time
	EndTime      time.Time
	TotalCount   int
	ErrorCount   int
	FailedURLs   []string
	ErrorsByType map[string]int
	RetryCount   int
	RequestCount int
	PageCount    int
}
