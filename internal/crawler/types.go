// Package crawler defines the quote scraping pipeline and the types shared across subsystems.
package crawler

import (
	"fmt"
	"sort"
)

// RawQuote is one quote block as parsed from a listing page, before the
// author detail page has been fetched.
type RawQuote struct {
	Text          string
	AuthorNameRaw string
	AuthorName    string
	AuthorSurname string
	// AuthorURL is the absolute URL of the author detail page.
	AuthorURL string
	TagLabels []string
}

// AuthorDetail holds the biographical fields scraped from an author page.
// Missing markup leaves the corresponding field empty.
type AuthorDetail struct {
	BornDate     string `json:"born_date"`
	BornLocation string `json:"born_location"`
	Description  string `json:"description"`
}

// QuoteRecord is a normalized quote row produced by a crawl run.
type QuoteRecord struct {
	Text               string `json:"text"`
	AuthorName         string `json:"author_name"`
	AuthorSurname      string `json:"author_surname"`
	AuthorURL          string `json:"author_url"`
	AuthorBornDate     string `json:"author_born_date"`
	AuthorBornLocation string `json:"author_born_location"`
	AuthorDescription  string `json:"author_description"`
	// TagIDs are run-local ids from the TagRegistry, in the order the labels
	// appeared in the quote block.
	TagIDs []int `json:"tag_ids"`
	// Tags carries the labels behind TagIDs, index for index.
	Tags []string `json:"tags"`
}

// TagEntry pairs a tag label with its run-local id.
type TagEntry struct {
	ID   int    `json:"id"`
	Text string `json:"text"`
}

// CrawlResult is the output of one crawl run.
type CrawlResult struct {
	Quotes []QuoteRecord  `json:"quotes"`
	Tags   map[string]int `json:"tags"`
	// Pages counts listing pages that yielded at least one quote block.
	Pages int `json:"pages"`
}

// TagEntries returns the tag mapping ordered by id.
func (r CrawlResult) TagEntries() []TagEntry {
	entries := make([]TagEntry, 0, len(r.Tags))
	for text, id := range r.Tags {
		entries = append(entries, TagEntry{ID: id, Text: text})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries
}

// FetchError reports a failed page fetch, either at the transport level or
// because the server answered with a non-success status.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
