package parser

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/quotes-crawler/internal/crawler"
)

// Selectors used on listing pages.
const (
	QuoteBlockSelector  = "div.quote"
	QuoteTextSelector   = "span.text"
	QuoteAuthorSelector = "small.author"
	AuthorLinkSelector  = "a[href]"
	TagSelector         = "a.tag"
)

// ListingParser implements crawler.QuoteParser.
type ListingParser struct{}

// NewListingParser returns a ListingParser.
func NewListingParser() *ListingParser {
	return &ListingParser{}
}

// ParseQuotes extracts every quote block from document. The author link is
// the first anchor in the block, resolved against baseURL.
func (p *ListingParser) ParseQuotes(document, baseURL string) ([]crawler.RawQuote, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url %q: %w", baseURL, err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(document))
	if err != nil {
		return nil, fmt.Errorf("parse listing document: %w", err)
	}

	out := make([]crawler.RawQuote, 0)
	doc.Find(QuoteBlockSelector).Each(func(_ int, block *goquery.Selection) {
		rawName := block.Find(QuoteAuthorSelector).First().Text()
		name, surname := SplitAuthorName(rawName)
		href, _ := block.Find(AuthorLinkSelector).First().Attr("href")

		labels := make([]string, 0)
		block.Find(TagSelector).Each(func(_ int, tag *goquery.Selection) {
			labels = append(labels, strings.TrimSpace(tag.Text()))
		})

		out = append(out, crawler.RawQuote{
			Text:          strings.TrimSpace(block.Find(QuoteTextSelector).First().Text()),
			AuthorNameRaw: strings.TrimSpace(rawName),
			AuthorName:    name,
			AuthorSurname: surname,
			AuthorURL:     resolve(base, href),
			TagLabels:     labels,
		})
	})
	return out, nil
}

// SplitAuthorName splits a byline on whitespace. The first token is the
// given name and the remaining tokens, joined by single spaces, the surname.
func SplitAuthorName(raw string) (string, string) {
	fields := strings.Fields(raw)
	switch len(fields) {
	case 0:
		return "", ""
	case 1:
		return fields[0], ""
	default:
		return fields[0], strings.Join(fields[1:], " ")
	}
}

func resolve(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}
