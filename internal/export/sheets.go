// Package export renders crawl output as sheets and writes them to a blob
// store.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/JakeFAU/quotes-crawler/internal/crawler"
	"github.com/JakeFAU/quotes-crawler/internal/store"
)

// Format selects how a sheet is rendered.
type Format string

// Supported render formats.
const (
	FormatTable    Format = "table"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
)

// ParseFormat validates a user supplied format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatTable, FormatCSV, FormatMarkdown:
		return f, nil
	case "":
		return FormatTable, nil
	default:
		return "", fmt.Errorf("unknown format %q (want table, csv or markdown)", s)
	}
}

const listSeparator = ";"

// Sheet is a header plus string rows. CSV output follows RFC 4180; the
// table and markdown renderings are for terminals only.
type Sheet struct {
	Header []string
	Rows   [][]string
}

// WriteCSV writes the header and rows to w.
func (s Sheet) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(s.Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := cw.WriteAll(s.Rows); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	return nil
}

// CSV returns the sheet encoded as CSV.
func (s Sheet) CSV() ([]byte, error) {
	var buf bytes.Buffer
	if err := s.WriteCSV(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// NewTable returns a writer with the house style.
func NewTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	return t
}

// Table returns a go-pretty writer holding the sheet.
func (s Sheet) Table() table.Writer {
	t := NewTable()
	t.AppendHeader(toRow(s.Header))
	for _, r := range s.Rows {
		t.AppendRow(toRow(r))
	}
	return t
}

func toRow(cells []string) table.Row {
	row := make(table.Row, len(cells))
	for i, c := range cells {
		row[i] = c
	}
	return row
}

// QuotesSheet has one row per crawled quote.
func QuotesSheet(result crawler.CrawlResult) Sheet {
	s := Sheet{Header: []string{
		"quote", "author_name", "author_surname", "author_url",
		"author_born_date", "author_born_location", "author_description",
		"tags", "tag_ids",
	}}
	for _, q := range result.Quotes {
		s.Rows = append(s.Rows, []string{
			q.Text,
			q.AuthorName,
			q.AuthorSurname,
			q.AuthorURL,
			q.AuthorBornDate,
			q.AuthorBornLocation,
			q.AuthorDescription,
			strings.Join(q.Tags, listSeparator),
			joinInts(q.TagIDs),
		})
	}
	return s
}

// TagsSheet has one row per distinct tag, ordered by run-local id.
func TagsSheet(result crawler.CrawlResult) Sheet {
	s := Sheet{Header: []string{"tag", "tag_id"}}
	for _, entry := range result.TagEntries() {
		s.Rows = append(s.Rows, []string{entry.Text, strconv.Itoa(entry.ID)})
	}
	return s
}

// StoredQuotesSheet lists quotes read back from storage.
func StoredQuotesSheet(quotes []store.QuoteView) Sheet {
	s := Sheet{Header: []string{"id", "quote", "author", "born", "tags"}}
	for _, q := range quotes {
		author := strings.TrimSpace(q.AuthorName + " " + q.AuthorSurname)
		s.Rows = append(s.Rows, []string{
			strconv.FormatInt(q.ID, 10), q.Text, author, q.AuthorBornDate, strings.Join(q.Tags, ", "),
		})
	}
	return s
}

// StoredTagsSheet lists tags read back from storage.
func StoredTagsSheet(tags []store.StoredTag) Sheet {
	s := Sheet{Header: []string{"id", "tag", "quotes"}}
	for _, tag := range tags {
		s.Rows = append(s.Rows, []string{
			strconv.FormatInt(tag.ID, 10), tag.Text, strconv.Itoa(tag.Quotes),
		})
	}
	return s
}

// Render returns s in the requested format.
func Render(s Sheet, format Format) (string, error) {
	switch format {
	case FormatTable, "":
		return s.Table().Render(), nil
	case FormatCSV:
		b, err := s.CSV()
		if err != nil {
			return "", err
		}
		return strings.TrimRight(string(b), "\n"), nil
	case FormatMarkdown:
		return s.Table().RenderMarkdown(), nil
	default:
		return "", fmt.Errorf("unknown format %q", format)
	}
}

func joinInts(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, listSeparator)
}
