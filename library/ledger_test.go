package library

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var issueDay = time.Date(2026, time.March, 2, 9, 30, 0, 0, time.UTC)

type ledgerFixture struct {
	catalog *Catalog
	members *Membership
	ledger  *LoanLedger
}

func newLedgerFixture(t *testing.T, txLimit int) *ledgerFixture {
	t.Helper()
	f := &ledgerFixture{catalog: NewCatalog(0), members: NewMembership(0)}
	f.ledger = NewLoanLedger(f.catalog, f.members, txLimit, DefaultLendingRules())
	return f
}

func (f *ledgerFixture) book(t *testing.T, copies int) BookID {
	b, err := f.catalog.Add(bookFields("Dune", copies))
	require.NoError(t, err)
	return b.ID
}

func (f *ledgerFixture) member(t *testing.T, name string) MemberID {
	m, err := f.members.Add(MemberFields{Name: name})
	require.NoError(t, err)
	return m.ID
}

func (f *ledgerFixture) available(t *testing.T, id BookID) int {
	b, err := f.catalog.Get(id)
	require.NoError(t, err)
	return b.AvailableCopies
}

func (f *ledgerFixture) issued(t *testing.T, id MemberID) int {
	m, err := f.members.Get(id)
	require.NoError(t, err)
	return m.BooksIssued
}

// =============================================================================
// ISSUE
// =============================================================================

func TestLedger_IssueTwoCopies(t *testing.T) {
	// GIVEN: one book with 2 copies, two members
	f := newLedgerFixture(t, 0)
	book := f.book(t, 2)
	ada := f.member(t, "Ada")
	grace := f.member(t, "Grace")
	alan := f.member(t, "Alan")

	// WHEN: both copies go out
	l1, err := f.ledger.Issue(book, ada, issueDay)
	require.NoError(t, err)
	_, err = f.ledger.Issue(book, grace, issueDay)
	require.NoError(t, err)

	// THEN: the shelf is empty and a third borrower is refused
	assert.Equal(t, 0, f.available(t, book))
	_, err = f.ledger.Issue(book, alan, issueDay)
	assert.ErrorIs(t, err, ErrNoCopiesAvailable)
	assert.Equal(t, 0, f.issued(t, alan))

	assert.Equal(t, LoanID(5001), l1.ID)
	assert.Equal(t, issueDay.Add(14*24*time.Hour), l1.DueDate)
	assert.True(t, l1.Fine.IsZero())
	assert.False(t, l1.Returned)

	// one copy back: the third borrower now gets it
	_, err = f.ledger.Return(l1.ID, issueDay.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, f.available(t, book))
	_, err = f.ledger.Issue(book, alan, issueDay)
	require.NoError(t, err)
	assert.Equal(t, 0, f.available(t, book))
}

func TestLedger_IssueLimit(t *testing.T) {
	f := newLedgerFixture(t, 0)
	book := f.book(t, 10)
	ada := f.member(t, "Ada")

	for i := 0; i < DefaultIssueLimit; i++ {
		_, err := f.ledger.Issue(book, ada, issueDay)
		require.NoError(t, err)
	}

	_, err := f.ledger.Issue(book, ada, issueDay)
	assert.ErrorIs(t, err, ErrIssueLimitReached)
	assert.Equal(t, 10-DefaultIssueLimit, f.available(t, book))
	assert.Equal(t, DefaultIssueLimit, f.issued(t, ada))
}

func TestLedger_IssueChecks(t *testing.T) {
	f := newLedgerFixture(t, 1)
	book := f.book(t, 5)
	empty := f.book(t, 0)
	ada := f.member(t, "Ada")
	gone := f.member(t, "Gone")
	require.NoError(t, f.members.Deactivate(gone))

	_, err := f.ledger.Issue(9999, ada, issueDay)
	assert.ErrorIs(t, err, ErrBookNotFound)

	_, err = f.ledger.Issue(empty, ada, issueDay)
	assert.ErrorIs(t, err, ErrNoCopiesAvailable)

	_, err = f.ledger.Issue(book, gone, issueDay)
	assert.ErrorIs(t, err, ErrMemberNotFound)

	_, err = f.ledger.Issue(book, ada, issueDay)
	require.NoError(t, err)

	// ledger limit 1 reached: nothing moves
	_, err = f.ledger.Issue(book, ada, issueDay)
	assert.ErrorIs(t, err, ErrLedgerFull)
	assert.ErrorIs(t, err, ErrCapacityExceeded)
	assert.Equal(t, 4, f.available(t, book))
	assert.Equal(t, 1, f.issued(t, ada))
	assert.Equal(t, 1, f.ledger.Len())
}

func TestLedger_IssueCheckOrder(t *testing.T) {
	// GIVEN: a ledger that holds exactly the issue limit
	f := newLedgerFixture(t, DefaultIssueLimit)
	book := f.book(t, 10)
	empty := f.book(t, 0)
	ada := f.member(t, "Ada")
	for i := 0; i < DefaultIssueLimit; i++ {
		_, err := f.ledger.Issue(book, ada, issueDay)
		require.NoError(t, err)
	}

	// THEN: copies are checked before the member
	_, err := f.ledger.Issue(empty, 9999, issueDay)
	assert.ErrorIs(t, err, ErrNoCopiesAvailable)

	// the member limit is checked before ledger capacity
	_, err = f.ledger.Issue(book, ada, issueDay)
	assert.ErrorIs(t, err, ErrIssueLimitReached)

	// and capacity applies to everyone else
	grace := f.member(t, "Grace")
	_, err = f.ledger.Issue(book, grace, issueDay)
	assert.ErrorIs(t, err, ErrLedgerFull)
}

// =============================================================================
// RETURN
// =============================================================================

func TestLedger_ReturnTenDaysLate(t *testing.T) {
	// GIVEN: a loan due 14 days after issue
	f := newLedgerFixture(t, 0)
	book := f.book(t, 1)
	ada := f.member(t, "Ada")
	loan, err := f.ledger.Issue(book, ada, issueDay)
	require.NoError(t, err)

	// WHEN: returned 24 days after issue
	at := issueDay.Add(24 * 24 * time.Hour)
	out, err := f.ledger.Return(loan.ID, at)
	require.NoError(t, err)

	// THEN: 10 days late, fine 14 + 3*4 = 26
	assert.Equal(t, 10, out.DaysLate)
	assert.True(t, decimal.NewFromInt(26).Equal(out.Loan.Fine))
	assert.True(t, out.Loan.Returned)
	assert.Equal(t, at, out.Loan.ReturnDate)
	assert.True(t, out.BookFound)
	assert.True(t, out.MemberFound)

	m, _ := f.members.Get(ada)
	assert.True(t, decimal.NewFromInt(26).Equal(m.TotalFines))
	assert.Equal(t, 0, m.BooksIssued)
	assert.Equal(t, 1, f.available(t, book))
}

func TestLedger_ReturnOnTimeHasNoFine(t *testing.T) {
	f := newLedgerFixture(t, 0)
	book := f.book(t, 1)
	ada := f.member(t, "Ada")
	loan, _ := f.ledger.Issue(book, ada, issueDay)

	out, err := f.ledger.Return(loan.ID, loan.DueDate)
	require.NoError(t, err)
	assert.Zero(t, out.DaysLate)
	assert.True(t, out.Loan.Fine.IsZero())
}

func TestLedger_ReturnTwiceIsNotFound(t *testing.T) {
	f := newLedgerFixture(t, 0)
	book := f.book(t, 1)
	ada := f.member(t, "Ada")
	loan, _ := f.ledger.Issue(book, ada, issueDay)

	_, err := f.ledger.Return(loan.ID, issueDay.Add(time.Hour))
	require.NoError(t, err)

	_, err = f.ledger.Return(loan.ID, issueDay.Add(30*24*time.Hour))
	assert.ErrorIs(t, err, ErrLoanNotFound)
	assert.True(t, IsNotFound(err))

	// first return stands
	got, err := f.ledger.Get(loan.ID)
	require.NoError(t, err)
	assert.True(t, got.Fine.IsZero())

	_, err = f.ledger.Return(9999, issueDay)
	assert.ErrorIs(t, err, ErrLoanNotFound)
}

func TestLedger_ReturnWithMissingMember(t *testing.T) {
	// GIVEN: a loan whose member record was removed from the roster
	f := newLedgerFixture(t, 0)
	book := f.book(t, 1)
	ada := f.member(t, "Ada")
	loan, _ := f.ledger.Issue(book, ada, issueDay)
	f.members.members = nil

	// WHEN: the copy comes back
	out, err := f.ledger.Return(loan.ID, issueDay.Add(time.Hour))

	// THEN: the return completes and only the book side moves
	require.NoError(t, err)
	assert.True(t, out.BookFound)
	assert.False(t, out.MemberFound)
	assert.Equal(t, 1, f.available(t, book))
}

// =============================================================================
// QUERIES
// =============================================================================

func TestLedger_Views(t *testing.T) {
	f := newLedgerFixture(t, 0)
	book := f.book(t, 3)
	ada := f.member(t, "Ada")
	grace := f.member(t, "Grace")

	l1, _ := f.ledger.Issue(book, ada, issueDay)
	f.ledger.Issue(book, ada, issueDay)
	f.ledger.Issue(book, grace, issueDay)
	f.ledger.Return(l1.ID, issueDay.Add(time.Hour))

	assert.Len(t, f.ledger.Open(), 2)
	assert.Len(t, f.ledger.History(ada), 2)
	assert.Len(t, f.ledger.OpenFor(ada), 1)
	assert.Equal(t, 2, f.ledger.OpenForBook(book))
	assert.Equal(t, 3, f.ledger.Len())
}

func TestLendingRules_Validate(t *testing.T) {
	r := DefaultLendingRules()
	require.NoError(t, r.Validate())

	bad := r
	bad.LoanPeriod = 0
	assert.ErrorIs(t, bad.Validate(), ErrInvalidInput)

	bad = r
	bad.IssueLimit = 0
	assert.ErrorIs(t, bad.Validate(), ErrInvalidInput)

	bad = r
	bad.Fines = FinePolicy{}
	assert.ErrorIs(t, bad.Validate(), ErrInvalidInput)
}
