package library_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/warp/libris/library"
	"github.com/warp/libris/library/store"
	"github.com/warp/libris/store/storetest"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func (c *clock) advance(days int) { c.now = c.now.Add(time.Duration(days) * 24 * time.Hour) }

type recorder struct {
	ops     map[string][]error
	returns []int
	stats   []library.Stats
}

func (r *recorder) ObserveOperation(op string, err error, _ time.Duration) {
	if r.ops == nil {
		r.ops = map[string][]error{}
	}
	r.ops[op] = append(r.ops[op], err)
}

func (r *recorder) ObserveReturn(_ decimal.Decimal, daysLate int) { r.returns = append(r.returns, daysLate) }

func (r *recorder) ObserveStats(s library.Stats) { r.stats = append(r.stats, s) }

func openLibrary(t *testing.T, mem *store.Memory, opts ...library.Option) (*library.Library, *clock) {
	t.Helper()
	c := &clock{now: time.Date(2026, time.March, 2, 9, 30, 0, 0, time.UTC)}
	opts = append([]library.Option{library.WithClock(c.Now), library.WithLogger(zaptest.NewLogger(t))}, opts...)
	lib, err := library.Open(context.Background(), mem, opts...)
	require.NoError(t, err)
	return lib, c
}

func addBook(t *testing.T, lib *library.Library, title string, copies int) library.Book {
	t.Helper()
	b, err := lib.AddBook(context.Background(), library.BookFields{Title: title, TotalCopies: copies, Price: decimal.NewFromInt(10)})
	require.NoError(t, err)
	return b
}

func addMember(t *testing.T, lib *library.Library, name string) library.Member {
	t.Helper()
	m, err := lib.AddMember(context.Background(), library.MemberFields{Name: name, Email: name + "@example.com"})
	require.NoError(t, err)
	return m
}

// =============================================================================
// PERSISTENCE CYCLE
// =============================================================================

func TestLibrary_EveryMutationIsSaved(t *testing.T) {
	mem := store.NewMemory()
	lib, _ := openLibrary(t, mem)
	ctx := context.Background()

	b := addBook(t, lib, "Dune", 2)
	m := addMember(t, lib, "ada")
	loan, err := lib.IssueLoan(ctx, b.ID, m.ID)
	require.NoError(t, err)

	assert.Equal(t, 3, mem.Saves())
	saved := mem.Saved()
	require.Len(t, saved.Loans, 1)
	assert.Equal(t, loan.ID, saved.Loans[0].ID)
	assert.Equal(t, 1, saved.Books[0].AvailableCopies)
	assert.Equal(t, 1, saved.Members[0].BooksIssued)
}

func TestLibrary_FailedSaveRollsBack(t *testing.T) {
	// GIVEN: a book, a member and a store that stops saving
	mem := store.NewMemory()
	rec := &recorder{}
	lib, _ := openLibrary(t, mem, library.WithMetrics(rec))
	ctx := context.Background()
	b := addBook(t, lib, "Dune", 1)
	m := addMember(t, lib, "ada")
	mem.FailSaves(true)

	// WHEN: a loan is issued
	_, err := lib.IssueLoan(ctx, b.ID, m.ID)

	// THEN: the caller sees a persistence error and nothing moved
	require.ErrorIs(t, err, library.ErrPersistence)
	assert.ErrorIs(t, err, store.ErrInjected)
	var perr *library.PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "issue_loan", perr.Op)

	got, _ := lib.Book(b.ID)
	assert.Equal(t, 1, got.AvailableCopies)
	gotM, _ := lib.Member(m.ID)
	assert.Zero(t, gotM.BooksIssued)
	assert.Empty(t, lib.OpenLoans())
	assert.Empty(t, lib.Check())

	// the next id is still the one that would have been used
	mem.FailSaves(false)
	loan, err := lib.IssueLoan(ctx, b.ID, m.ID)
	require.NoError(t, err)
	assert.Equal(t, library.LoanID(5001), loan.ID)

	require.Len(t, rec.ops["issue_loan"], 2)
	assert.Error(t, rec.ops["issue_loan"][0])
	assert.NoError(t, rec.ops["issue_loan"][1])
}

func TestLibrary_FailedAddLeavesNoRecord(t *testing.T) {
	mem := store.NewMemory()
	lib, _ := openLibrary(t, mem)

	mem.FailSaves(true)
	_, err := lib.AddBook(context.Background(), library.BookFields{Title: "Dune", TotalCopies: 1})
	require.ErrorIs(t, err, library.ErrPersistence)
	mem.FailSaves(false)

	assert.Empty(t, lib.Books())
	assert.Equal(t, library.BookID(1001), addBook(t, lib, "Emma", 1).ID)
}

func TestLibrary_RuleViolationDoesNotSave(t *testing.T) {
	mem := store.NewMemory()
	lib, _ := openLibrary(t, mem)
	b := addBook(t, lib, "Dune", 0)
	m := addMember(t, lib, "ada")
	saves := mem.Saves()

	_, err := lib.IssueLoan(context.Background(), b.ID, m.ID)
	assert.ErrorIs(t, err, library.ErrNoCopiesAvailable)
	assert.True(t, library.IsRuleViolation(err))
	assert.Equal(t, saves, mem.Saves())
}

func TestLibrary_LoadFailureStartsEmpty(t *testing.T) {
	mem := store.NewMemoryWith(storetest.SampleState())
	mem.FailLoad(true)

	lib, _ := openLibrary(t, mem)

	assert.Empty(t, lib.Books())
	assert.Empty(t, lib.Members())
	assert.Zero(t, lib.Stats().Transactions)
}

func TestLibrary_InconsistentDataStartsEmpty(t *testing.T) {
	tests := []struct {
		name    string
		corrupt func(*library.State)
	}{
		{"duplicate book id", func(s *library.State) { s.Books = append(s.Books, s.Books[0]) }},
		{"available above total", func(s *library.State) { s.Books[0].AvailableCopies = 3 }},
		{"negative books issued", func(s *library.State) { s.Members[0].BooksIssued = -1 }},
		{"negative fines", func(s *library.State) { s.Members[0].TotalFines = decimal.NewFromInt(-5) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := storetest.SampleState()
			tt.corrupt(&state)

			lib, _ := openLibrary(t, store.NewMemoryWith(state))
			assert.Empty(t, lib.Books())
			assert.Empty(t, lib.Members())
		})
	}
}

func TestLibrary_LoadKeepsMemberAboveLoweredLimit(t *testing.T) {
	// GIVEN: stored data where Ada holds more books than the current limit
	state := storetest.SampleState()
	state.Members[0].BooksIssued = library.DefaultIssueLimit + 1

	// WHEN
	lib, _ := openLibrary(t, store.NewMemoryWith(state))

	// THEN: the data is kept and Ada cannot borrow more
	require.Len(t, lib.Members(), 1)
	_, err := lib.IssueLoan(context.Background(), 1002, 2001)
	assert.ErrorIs(t, err, library.ErrIssueLimitReached)
}

func TestLibrary_ReopenContinuesIDs(t *testing.T) {
	mem := store.NewMemoryWith(storetest.SampleState())
	lib, _ := openLibrary(t, mem)

	assert.Len(t, lib.Books(), 2)
	assert.Equal(t, library.BookID(1004), addBook(t, lib, "New", 1).ID)
	assert.Equal(t, library.MemberID(2003), addMember(t, lib, "new").ID)
	assert.Empty(t, lib.Check())
}

func TestLibrary_InvalidOptions(t *testing.T) {
	_, err := library.Open(context.Background(), store.NewMemory(), library.WithLimits(library.Limits{Books: -1}))
	assert.ErrorIs(t, err, library.ErrInvalidInput)

	_, err = library.Open(context.Background(), store.NewMemory(), library.WithClock(nil))
	assert.ErrorIs(t, err, library.ErrInvalidInput)

	rules := library.DefaultLendingRules()
	rules.IssueLimit = 0
	_, err = library.Open(context.Background(), store.NewMemory(), library.WithLendingRules(rules))
	assert.ErrorIs(t, err, library.ErrInvalidInput)
}

// =============================================================================
// LENDING SCENARIOS
// =============================================================================

func TestLibrary_LateReturnScenario(t *testing.T) {
	// GIVEN: a member with one book out
	mem := store.NewMemory()
	rec := &recorder{}
	lib, c := openLibrary(t, mem, library.WithMetrics(rec))
	ctx := context.Background()
	b := addBook(t, lib, "Dune", 2)
	m := addMember(t, lib, "ada")
	loan, err := lib.IssueLoan(ctx, b.ID, m.ID)
	require.NoError(t, err)

	// WHEN: 3 days past due, then returned 10 days past due
	c.advance(17)
	open := lib.OpenLoans()
	require.Len(t, open, 1)
	assert.Equal(t, 3, open[0].DaysOverdue)
	assert.Equal(t, "Dune", open[0].BookTitle)
	assert.Equal(t, "ada", open[0].MemberName)

	c.advance(7)
	returned, err := lib.ReturnLoan(ctx, loan.ID)
	require.NoError(t, err)

	// THEN: 26 is recorded on the loan and the member
	assert.True(t, decimal.NewFromInt(26).Equal(returned.Fine))
	got, _ := lib.Member(m.ID)
	assert.True(t, decimal.NewFromInt(26).Equal(got.TotalFines))
	assert.Equal(t, []int{10}, rec.returns)

	stats := lib.Stats()
	assert.Equal(t, 0, stats.OpenLoans)
	assert.Equal(t, 1, stats.Transactions)
	assert.True(t, decimal.NewFromInt(26).Equal(stats.TotalFines))
	last := rec.stats[len(rec.stats)-1]
	assert.Equal(t, stats.Transactions, last.Transactions)
	assert.True(t, stats.TotalFines.Equal(last.TotalFines))

	_, err = lib.ReturnLoan(ctx, loan.ID)
	assert.ErrorIs(t, err, library.ErrLoanNotFound)

	history := lib.MemberHistory(m.ID)
	require.Len(t, history, 1)
	assert.True(t, history[0].Returned)
	assert.Empty(t, lib.MemberOpenLoans(m.ID))
	assert.Empty(t, lib.Check())
}

func TestLibrary_DeactivationRules(t *testing.T) {
	lib, _ := openLibrary(t, store.NewMemory())
	ctx := context.Background()
	b := addBook(t, lib, "Dune", 1)
	m := addMember(t, lib, "ada")
	loan, err := lib.IssueLoan(ctx, b.ID, m.ID)
	require.NoError(t, err)

	assert.ErrorIs(t, lib.DeactivateBook(ctx, b.ID), library.ErrHasOutstandingLoans)
	assert.ErrorIs(t, lib.DeactivateMember(ctx, m.ID), library.ErrHasOutstandingLoans)

	_, err = lib.ReturnLoan(ctx, loan.ID)
	require.NoError(t, err)
	require.NoError(t, lib.DeactivateBook(ctx, b.ID))
	require.NoError(t, lib.DeactivateMember(ctx, m.ID))

	assert.ErrorIs(t, lib.DeactivateBook(ctx, b.ID), library.ErrBookNotFound)
	assert.ErrorIs(t, lib.DeactivateMember(ctx, m.ID), library.ErrMemberNotFound)
	_, err = lib.IssueLoan(ctx, b.ID, m.ID)
	assert.ErrorIs(t, err, library.ErrBookNotFound)

	// the old loan still resolves to its names
	history := lib.MemberHistory(m.ID)
	require.Len(t, history, 1)
	assert.Equal(t, "Dune", history[0].BookTitle)
	assert.Equal(t, "ada", history[0].MemberName)
}

func TestLibrary_UpdatesAndSearch(t *testing.T) {
	lib, _ := openLibrary(t, store.NewMemory())
	ctx := context.Background()
	b := addBook(t, lib, "Dune", 1)
	m := addMember(t, lib, "ada")

	author := "Frank Herbert"
	isbn := "978-0441013593"
	_, err := lib.UpdateBook(ctx, b.ID, library.BookUpdate{Author: &author, ISBN: &isbn})
	require.NoError(t, err)
	name := "Ada Lovelace"
	_, err = lib.UpdateMember(ctx, m.ID, library.MemberUpdate{Name: &name})
	require.NoError(t, err)

	assert.Len(t, lib.FindBooksByAuthor("herbert"), 1)
	assert.Len(t, lib.FindBooksByTitle("dun"), 1)
	found, err := lib.FindBookByISBN(isbn)
	require.NoError(t, err)
	assert.Equal(t, b.ID, found.ID)
	assert.Len(t, lib.FindMembersByName("lovelace"), 1)
	_, err = lib.FindMemberByEmail("ADA@example.com")
	assert.NoError(t, err)
}

func TestLibrary_CheckReportsDrift(t *testing.T) {
	state := storetest.SampleState()
	// member 2001 claims a book the ledger does not show
	state.Members[0].BooksIssued = 2

	lib, _ := openLibrary(t, store.NewMemoryWith(state))
	problems := lib.Check()
	require.NotEmpty(t, problems)
	assert.Contains(t, problems[0].Error(), "member 2001")
}
