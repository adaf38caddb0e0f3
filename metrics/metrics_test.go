package metrics_test

import (
	"context"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/libris/library"
	"github.com/warp/libris/library/store"
	"github.com/warp/libris/metrics"
)

func scrape(t *testing.T, m *metrics.Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestResult(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, metrics.ResultOK},
		{library.ErrBookNotFound, metrics.ResultNotFound},
		{&library.ValidationError{Field: "title", Message: "required"}, metrics.ResultInvalid},
		{&library.CapacityError{Store: "loan", Limit: 1}, metrics.ResultCapacity},
		{library.ErrNoCopiesAvailable, metrics.ResultRejected},
		{&library.PersistenceError{Op: "add_book", Err: fmt.Errorf("disk full")}, metrics.ResultPersistence},
		{fmt.Errorf("boom"), metrics.ResultError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, metrics.Result(tt.err), "%v", tt.err)
	}
}

func TestMetrics_RecordsLibraryActivity(t *testing.T) {
	// GIVEN: a library wired to a fresh recorder
	m := metrics.New()
	now := time.Date(2026, time.April, 1, 10, 0, 0, 0, time.UTC)
	ctx := context.Background()
	lib, err := library.Open(ctx, store.NewMemory(),
		library.WithMetrics(m),
		library.WithClock(func() time.Time { return now }),
	)
	require.NoError(t, err)

	// WHEN: a book is lent, returned 10 days late, and a bad issue is tried
	book, err := lib.AddBook(ctx, library.BookFields{Title: "Dune", TotalCopies: 1, Price: decimal.NewFromInt(9)})
	require.NoError(t, err)
	member, err := lib.AddMember(ctx, library.MemberFields{Name: "Ada"})
	require.NoError(t, err)
	loan, err := lib.IssueLoan(ctx, book.ID, member.ID)
	require.NoError(t, err)
	_, err = lib.IssueLoan(ctx, book.ID, member.ID)
	require.ErrorIs(t, err, library.ErrNoCopiesAvailable)
	now = loan.DueDate.Add(10 * 24 * time.Hour)
	_, err = lib.ReturnLoan(ctx, loan.ID)
	require.NoError(t, err)

	// THEN: counters and gauges reflect it
	body := scrape(t, m)
	assert.Contains(t, body, `libris_operations_total{op="issue_loan",result="ok"} 1`)
	assert.Contains(t, body, `libris_operations_total{op="issue_loan",result="rejected"} 1`)
	assert.Contains(t, body, `libris_returns_total{late="true"} 1`)
	assert.Contains(t, body, `libris_fines_recorded_total 26`)
	assert.Contains(t, body, `libris_active_books 1`)
	assert.Contains(t, body, `libris_open_loans 0`)
	assert.Contains(t, body, `libris_transactions 1`)
	assert.Contains(t, body, `libris_active_member_fines 26`)
}

func TestMetrics_SeparateRegistries(t *testing.T) {
	a, b := metrics.New(), metrics.New()
	a.ObserveOperation("add_book", nil, time.Millisecond)

	assert.Contains(t, scrape(t, a), `libris_operations_total{op="add_book",result="ok"} 1`)
	assert.NotContains(t, scrape(t, b), `op="add_book"`)
}
