package export

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/quotes-crawler/internal/crawler"
	"github.com/JakeFAU/quotes-crawler/internal/storage/memory"
	"github.com/JakeFAU/quotes-crawler/internal/store"
)

func sample() crawler.CrawlResult {
	return crawler.CrawlResult{
		Quotes: []crawler.QuoteRecord{
			{Text: "Q1", AuthorName: "Ann", AuthorSurname: "Lee", AuthorURL: "u/ann", AuthorBornDate: "1900", AuthorBornLocation: "Paris", AuthorDescription: "Bio", TagIDs: []int{1, 2}, Tags: []string{"life", "love"}},
			{Text: "Q2", AuthorName: "Bob", AuthorURL: "u/bob", TagIDs: []int{2, 3}, Tags: []string{"love", "hope"}},
		},
		Tags: map[string]int{"life": 1, "love": 2, "hope": 3},
	}
}

func lines(s string) []string {
	return strings.Split(strings.TrimSpace(s), "\n")
}

func csvText(t *testing.T, s Sheet) string {
	t.Helper()
	b, err := s.CSV()
	require.NoError(t, err)
	return string(b)
}

func TestQuotesSheetCSV(t *testing.T) {
	t.Parallel()

	out := lines(csvText(t, QuotesSheet(sample())))
	require.Len(t, out, 3)
	require.Equal(t, "quote,author_name,author_surname,author_url,author_born_date,author_born_location,author_description,tags,tag_ids", out[0])
	require.Equal(t, "Q1,Ann,Lee,u/ann,1900,Paris,Bio,life;love,1;2", out[1])
	require.Equal(t, "Q2,Bob,,u/bob,,,,love;hope,2;3", out[2])
}

func TestTagsSheetOrderedByID(t *testing.T) {
	t.Parallel()

	out := lines(csvText(t, TagsSheet(sample())))
	require.Equal(t, []string{"life,1", "love,2", "hope,3"}, out[1:])
}

func TestQuotesSheetCSVRoundTripsPunctuation(t *testing.T) {
	t.Parallel()

	result := crawler.CrawlResult{
		Quotes: []crawler.QuoteRecord{{
			Text:              "\u201cA day without sunshine is like, you know, night.\u201d",
			AuthorName:        "Steve",
			AuthorSurname:     "Martin",
			AuthorDescription: "He said \"hello\", then left.\nNew line.",
			TagIDs:            []int{1},
			Tags:              []string{"humor"},
		}},
		Tags: map[string]int{"humor": 1},
	}

	records, err := csv.NewReader(strings.NewReader(csvText(t, QuotesSheet(result)))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Len(t, records[1], 9)
	require.Equal(t, result.Quotes[0].Text, records[1][0])
	require.Equal(t, result.Quotes[0].AuthorDescription, records[1][6])
	require.Equal(t, "humor", records[1][7])
	require.Equal(t, "1", records[1][8])
}

func TestRenderFormats(t *testing.T) {
	t.Parallel()

	tags := StoredTagsSheet([]store.StoredTag{{ID: 4, Text: "life", Quotes: 2}})
	md, err := Render(tags, FormatMarkdown)
	require.NoError(t, err)
	require.Contains(t, md, "| 4 | life | 2 |")

	txt, err := Render(tags, FormatTable)
	require.NoError(t, err)
	require.Contains(t, txt, "life")

	_, err = Render(tags, Format("xml"))
	require.Error(t, err)
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	f, err := ParseFormat(" CSV ")
	require.NoError(t, err)
	require.Equal(t, FormatCSV, f)
	f, err = ParseFormat("")
	require.NoError(t, err)
	require.Equal(t, FormatTable, f)
	_, err = ParseFormat("yaml")
	require.Error(t, err)
}

func TestStoredQuotesSheet(t *testing.T) {
	t.Parallel()

	sheet := StoredQuotesSheet([]store.QuoteView{{ID: 1, Text: "Q1", AuthorName: "Ann", AuthorSurname: "Lee", Tags: []string{"a", "b"}}})
	out, err := Render(sheet, FormatCSV)
	require.NoError(t, err)
	require.Equal(t, []string{"id,quote,author,born,tags", `1,Q1,Ann Lee,,"a, b"`}, lines(out))
}

func TestExportWritesBothSheets(t *testing.T) {
	t.Parallel()

	blobs := memory.NewBlobStore()
	e := NewExporter(blobs, "/exports/", nil)
	uris, err := e.Export(context.Background(), "run-1", sample())
	require.NoError(t, err)
	require.Equal(t, []string{"memory://exports/run-1/quotes.csv", "memory://exports/run-1/tags.csv"}, uris)
	require.Equal(t, []string{"exports/run-1/quotes.csv", "exports/run-1/tags.csv"}, blobs.Paths())

	obj, ok := blobs.Get("exports/run-1/tags.csv")
	require.True(t, ok)
	require.Equal(t, "text/csv; charset=utf-8", obj.ContentType)
	require.Equal(t, []string{"life,1", "love,2", "hope,3"}, lines(string(obj.Data))[1:])
}

func TestExportDisabled(t *testing.T) {
	t.Parallel()

	e := NewExporter(nil, "exports", nil)
	require.False(t, e.Enabled())
	uris, err := e.Export(context.Background(), "run-1", sample())
	require.NoError(t, err)
	require.Nil(t, uris)
}

type failingBlobs struct{}

func (failingBlobs) PutObject(context.Context, string, string, io.Reader) (string, error) {
	return "", errors.New("bucket gone")
}

func TestExportPropagatesBlobErrors(t *testing.T) {
	t.Parallel()

	_, err := NewExporter(failingBlobs{}, "", nil).Export(context.Background(), "run-1", sample())
	require.ErrorContains(t, err, "export quotes.csv")

	_, err = NewExporter(memory.NewBlobStore(), "", nil).Export(context.Background(), "", sample())
	require.Error(t, err)
}
