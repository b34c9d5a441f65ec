package parser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/quotes-crawler/internal/crawler"
)

// Selectors used on author detail pages.
const (
	BornDateSelector     = "span.author-born-date"
	BornLocationSelector = "span.author-born-location"
	DescriptionSelector  = "div.author-description"
)

// AuthorPageParser implements crawler.AuthorParser.
type AuthorPageParser struct{}

// NewAuthorPageParser returns an AuthorPageParser.
func NewAuthorPageParser() *AuthorPageParser {
	return &AuthorPageParser{}
}

// ParseAuthor reads the three biographical fields. Each is trimmed and left
// empty when its element is missing.
func (p *AuthorPageParser) ParseAuthor(document string) crawler.AuthorDetail {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(document))
	if err != nil {
		return crawler.AuthorDetail{}
	}
	return crawler.AuthorDetail{
		BornDate:     firstText(doc.Selection, BornDateSelector),
		BornLocation: firstText(doc.Selection, BornLocationSelector),
		Description:  firstText(doc.Selection, DescriptionSelector),
	}
}

func firstText(sel *goquery.Selection, selector string) string {
	found := sel.Find(selector).First()
	if found.Length() == 0 {
		return ""
	}
	return strings.TrimSpace(found.Text())
}
