package repository

import (
	"context"
	"math"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var alertCols = []string{"id", "cve_id", "title", "summary", "vendor", "product", "severity", "bio_relevance", "kev_flag", "bio_impact", "published_at"}

func newMock(t *testing.T) (sqlmock.Sqlmock, *AlertRepo) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return mock, NewAlertRepo(db)
}

func TestAlertSearchQuery_Normalize(t *testing.T) {
	cases := []struct {
		in, wantPage, wantPer int
		per                   int
	}{
		{in: 0, per: 0, wantPage: 1, wantPer: DefaultPerPage},
		{in: -3, per: -1, wantPage: 1, wantPer: DefaultPerPage},
		{in: 4, per: 20, wantPage: 4, wantPer: 20},
		{in: 1, per: 10000, wantPage: 1, wantPer: MaxPerPage},
	}
	for _, tc := range cases {
		q := AlertSearchQuery{Page: tc.in, PerPage: tc.per}.Normalize()
		assert.Equal(t, tc.wantPage, q.Page)
		assert.Equal(t, tc.wantPer, q.PerPage)
	}
	assert.Equal(t, 40, AlertSearchQuery{Page: 3, PerPage: 20}.Offset())
}

func TestAlertSearchQuery_NormalizeCapsPage(t *testing.T) {
	cases := []struct{ page, per int }{
		{page: 1<<58 + 1, per: 64},
		{page: 1<<62 + 1, per: 3},
		{page: math.MaxInt, per: MaxPerPage},
	}
	for _, tc := range cases {
		q := AlertSearchQuery{Page: tc.page, PerPage: tc.per}.Normalize()
		assert.Equal(t, MaxPage(tc.per), q.Page)
		assert.Positive(t, q.Offset(), "page %d per_page %d", tc.page, tc.per)
	}

	q := AlertSearchQuery{Page: MaxPage(20), PerPage: 20}.Normalize()
	assert.Equal(t, MaxPage(20), q.Page)
}

func TestAlertSearchQuery_Where(t *testing.T) {
	cond, args := AlertSearchQuery{}.where()
	assert.Equal(t, "1=1", cond)
	assert.Empty(t, args)

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	before := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	cond, args = AlertSearchQuery{
		Vendor:          "Microsoft",
		Product:         "Exchange",
		BioRelevance:    "HIGH",
		KEVOnly:         true,
		Search:          "50%_off",
		PublishedFrom:   &from,
		PublishedBefore: &before,
	}.where()
	assert.Equal(t,
		"vendor = ? AND product = ? AND bio_relevance = ? AND kev_flag = 1 AND "+
			"(cve_id LIKE ? OR title LIKE ? OR summary LIKE ?) AND published_at >= ? AND published_at < ?",
		cond)
	like := `%50\%\_off%`
	assert.Equal(t, []any{"Microsoft", "Exchange", "HIGH", like, like, like, from, before}, args)
}

func TestLikePattern(t *testing.T) {
	assert.Equal(t, "%log4j%", likePattern("log4j"))
	assert.Equal(t, `%a\\b%`, likePattern(`a\b`))
}

func TestAlertRepo_Search_Pagination(t *testing.T) {
	mock, repo := newMock(t)
	p1 := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
	p2 := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM alerts WHERE vendor = ? AND kev_flag = 1")).
		WithArgs("Microsoft").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))
	mock.ExpectQuery(`ORDER BY published_at DESC, id DESC\s+LIMIT \? OFFSET \?`).
		WithArgs("Microsoft", 2, 0).
		WillReturnRows(sqlmock.NewRows(alertCols).
			AddRow(5, "CVE-2024-0005", "t5", "s5", "Microsoft", "Windows", "HIGH", "HIGH", true, "", p1).
			AddRow(4, "CVE-2024-0004", "t4", "s4", "Microsoft", "Exchange", "CRITICAL", nil, true, "", p2))

	page, err := repo.Search(context.Background(), AlertSearchQuery{Vendor: "Microsoft", KEVOnly: true, Page: 1, PerPage: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 5, page.Total)
	assert.EqualValues(t, 3, page.TotalPages)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 2, page.PerPage)
	require.Len(t, page.Alerts, 2)
	assert.Equal(t, "CVE-2024-0005", page.Alerts[0].CVEID)
	require.NotNil(t, page.Alerts[0].BioRelevance)
	assert.Equal(t, "HIGH", *page.Alerts[0].BioRelevance)
	assert.Nil(t, page.Alerts[1].BioRelevance)
	assert.True(t, page.Alerts[1].KEVFlag)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAlertRepo_Search_OffsetAndEmpty(t *testing.T) {
	mock, repo := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM alerts WHERE 1=1")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`LIMIT \? OFFSET \?`).
		WithArgs(10, 20).
		WillReturnRows(sqlmock.NewRows(alertCols))

	page, err := repo.Search(context.Background(), AlertSearchQuery{Page: 3, PerPage: 10})
	require.NoError(t, err)
	assert.NotNil(t, page.Alerts)
	assert.Empty(t, page.Alerts)
	assert.EqualValues(t, 0, page.TotalPages)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAlertRepo_GetByCVE(t *testing.T) {
	mock, repo := newMock(t)
	mock.ExpectQuery(`FROM alerts WHERE cve_id = \? LIMIT 1`).
		WithArgs("CVE-2024-1").
		WillReturnRows(sqlmock.NewRows(alertCols).
			AddRow(1, "CVE-2024-1", "t", "s", "v", "p", "LOW", nil, false, "impact", nil))
	mock.ExpectQuery(`FROM alerts WHERE cve_id = \? LIMIT 1`).
		WithArgs("CVE-0000-0").
		WillReturnRows(sqlmock.NewRows(alertCols))

	a, err := repo.GetByCVE(context.Background(), "CVE-2024-1")
	require.NoError(t, err)
	assert.Equal(t, "impact", a.BioImpact)
	assert.Nil(t, a.PublishedAt)

	_, err = repo.GetByCVE(context.Background(), "CVE-0000-0")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAlertRepo_FilterOptions(t *testing.T) {
	mock, repo := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT vendor FROM alerts")).
		WillReturnRows(sqlmock.NewRows([]string{"vendor"}).AddRow("Apple").AddRow("Microsoft"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT product FROM alerts")).
		WillReturnRows(sqlmock.NewRows([]string{"product"}))

	opts, err := repo.FilterOptions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Apple", "Microsoft"}, opts.Vendors)
	assert.NotNil(t, opts.Products)
	assert.Empty(t, opts.Products)
	assert.Equal(t, []string{"HIGH", "MEDIUM", "LOW", "NONE"}, opts.BioRelevance)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAlertRepo_MatchText(t *testing.T) {
	mock, repo := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE cve_id LIKE ? OR title LIKE ? OR summary LIKE ? OR vendor LIKE ?")).
		WithArgs("%exchange%", "%exchange%", "%exchange%", "%exchange%", 5).
		WillReturnRows(sqlmock.NewRows([]string{"cve_id", "title", "summary", "vendor", "product", "severity", "bio_relevance"}).
			AddRow("CVE-2024-9", "Exchange RCE", "", "Microsoft", "Exchange", "CRITICAL", "LOW"))

	out, err := repo.MatchText(context.Background(), "exchange", 5)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "Exchange RCE", out[0].Title)
	require.NotNil(t, out[0].BioRelevance)
	assert.Equal(t, "LOW", *out[0].BioRelevance)
	assert.NoError(t, mock.ExpectationsWereMet())
}
