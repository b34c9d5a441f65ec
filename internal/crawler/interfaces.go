package crawler

import "context"

// PageFetcher retrieves the raw document text behind a URL.
// Implementations return a *FetchError on transport failure or non-2xx status.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// QuoteParser extracts quote blocks from a listing page. Relative author
// links are resolved against baseURL. An empty result marks the end of
// pagination.
type QuoteParser interface {
	ParseQuotes(document, baseURL string) ([]RawQuote, error)
}

// AuthorParser extracts biographical detail from an author page.
type AuthorParser interface {
	ParseAuthor(document string) AuthorDetail
}
