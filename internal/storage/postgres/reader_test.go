package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/quotes-crawler/internal/store"
)

func TestListQuotes(t *testing.T) {
	t.Parallel()
	mock, s := newMockStore(t)

	mock.ExpectQuery("FROM quotes q").
		WithArgs(50, 0).
		WillReturnRows(pgxmock.NewRows([]string{
			"quote_id", "quote_text", "author_name", "author_surname", "author_url",
			"author_born_date", "author_born_location", "tags",
		}).
			AddRow(int64(1), "Q1", "Ann", "Lee", "u", "1900", "Paris", []string{"life", "love"}).
			AddRow(int64(2), "Q2", "Bob", "", "v", "", "", []string{}))

	quotes, err := s.ListQuotes(context.Background(), 50, 0)
	require.NoError(t, err)
	require.Equal(t, []store.QuoteView{
		{ID: 1, Text: "Q1", AuthorName: "Ann", AuthorSurname: "Lee", AuthorURL: "u", AuthorBornDate: "1900", AuthorBornLocation: "Paris", Tags: []string{"life", "love"}},
		{ID: 2, Text: "Q2", AuthorName: "Bob", AuthorURL: "v", Tags: []string{}},
	}, quotes)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListQuotesQueryError(t *testing.T) {
	t.Parallel()
	mock, s := newMockStore(t)

	mock.ExpectQuery("FROM quotes q").WithArgs(10, 5).WillReturnError(errors.New("boom"))
	_, err := s.ListQuotes(context.Background(), 10, 5)
	require.ErrorContains(t, err, "failed to list quotes")
}

func TestListTags(t *testing.T) {
	t.Parallel()
	mock, s := newMockStore(t)

	mock.ExpectQuery("FROM tags t").
		WillReturnRows(pgxmock.NewRows([]string{"tag_id", "tag_text", "count"}).
			AddRow(int64(2), "hope", int64(1)).
			AddRow(int64(1), "life", int64(3)))

	tags, err := s.ListTags(context.Background())
	require.NoError(t, err)
	require.Equal(t, []store.StoredTag{{ID: 2, Text: "hope", Quotes: 1}, {ID: 1, Text: "life", Quotes: 3}}, tags)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListDatabases(t *testing.T) {
	t.Parallel()
	mock, s := newMockStore(t)

	mock.ExpectQuery("FROM pg_database").
		WillReturnRows(pgxmock.NewRows([]string{"datname"}).AddRow("postgres").AddRow("quotes"))

	names, err := s.ListDatabases(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"postgres", "quotes"}, names)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPing(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool(pgxmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	s, err := NewQuoteStore(mock, nil)
	require.NoError(t, err)

	mock.ExpectPing()
	require.NoError(t, s.Ping(context.Background()))
	mock.ExpectPing().WillReturnError(errors.New("down"))
	require.Error(t, s.Ping(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}
