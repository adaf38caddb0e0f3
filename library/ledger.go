/*
ledger.go - Loan ledger: issue and return

PURPOSE:
  The ledger is the only component that moves counters in both the catalog
  and the membership roster. Every copy that leaves the shelf has exactly one
  open Loan; every return closes exactly one.

CRITICAL INVARIANTS:
  1. available copies + open loans of a book == total copies
  2. member.BooksIssued == open loans of that member, never above the limit
  3. a Loan is mutated once (by Return) and never deleted
  4. a returned Loan cannot be returned again (reported as not found)

ISSUE ORDER OF CHECKS:
  book exists -> copies available -> member exists -> under issue limit ->
  ledger has room. All checks run before any counter moves.

RETURN POLICY:
  Book and member are resolved best-effort. If either no longer exists the
  return still completes; only the missing side's counters are skipped.

SEE ALSO:
  - fine.go: fine computed on return
  - library.go: persists the three tables after each call
*/
package library

import (
	"time"

	"github.com/shopspring/decimal"
)

// Lending rule defaults.
const (
	DefaultLoanPeriod = 14 * day
	DefaultIssueLimit = 3
)

// LoanLedger is the transaction table plus the lending rules.
type LoanLedger struct {
	loans   []Loan
	limit   int
	catalog *Catalog
	members *Membership

	fines      FinePolicy
	loanPeriod time.Duration
	issueLimit int
}

// NewLoanLedger wires a ledger to the tables it moves counters in.
func NewLoanLedger(catalog *Catalog, members *Membership, limit int, rules LendingRules) *LoanLedger {
	return &LoanLedger{
		catalog:    catalog,
		members:    members,
		limit:      limit,
		fines:      rules.Fines,
		loanPeriod: rules.LoanPeriod,
		issueLimit: rules.IssueLimit,
	}
}

// LendingRules groups the policy knobs of the ledger.
type LendingRules struct {
	LoanPeriod time.Duration
	IssueLimit int
	Fines      FinePolicy
}

// DefaultLendingRules returns a 14 day period, 3 books per member and the
// default fine tiers.
func DefaultLendingRules() LendingRules {
	return LendingRules{
		LoanPeriod: DefaultLoanPeriod,
		IssueLimit: DefaultIssueLimit,
		Fines:      DefaultFinePolicy(),
	}
}

// Validate rejects non-positive periods and limits.
func (r LendingRules) Validate() error {
	if r.LoanPeriod <= 0 {
		return invalid("loan period", "must be positive")
	}
	if r.IssueLimit <= 0 {
		return invalid("issue limit", "must be positive")
	}
	return r.Fines.Validate()
}

// =============================================================================
// ISSUE
// =============================================================================

// Issue lends one copy of a book to a member.
func (l *LoanLedger) Issue(bookID BookID, memberID MemberID, now time.Time) (Loan, error) {
	book, err := l.catalog.Get(bookID)
	if err != nil {
		return Loan{}, err
	}
	if book.AvailableCopies <= 0 {
		return Loan{}, ErrNoCopiesAvailable
	}

	member, err := l.members.Get(memberID)
	if err != nil {
		return Loan{}, err
	}
	if member.BooksIssued >= l.issueLimit {
		return Loan{}, ErrIssueLimitReached
	}

	if !withinLimit(len(l.loans), l.limit) {
		return Loan{}, &CapacityError{Store: "loan", Limit: l.limit}
	}

	loan := Loan{
		ID:        nextID(l.loans, LoanIDFloor, loanID),
		BookID:    bookID,
		MemberID:  memberID,
		IssueDate: now,
		DueDate:   now.Add(l.loanPeriod),
		Fine:      decimal.Zero,
	}

	// Checks above guarantee neither call fails.
	if err := l.catalog.checkout(bookID); err != nil {
		return Loan{}, err
	}
	if err := l.members.borrow(memberID, l.issueLimit); err != nil {
		l.catalog.checkin(bookID)
		return Loan{}, err
	}
	l.loans = append(l.loans, loan)
	return loan, nil
}

// =============================================================================
// RETURN
// =============================================================================

// ReturnOutcome reports what a return touched.
type ReturnOutcome struct {
	Loan        Loan
	DaysLate    int
	BookFound   bool
	MemberFound bool
}

// Return closes an open loan, computes its fine and releases the counters.
func (l *LoanLedger) Return(id LoanID, now time.Time) (ReturnOutcome, error) {
	i := indexOf(l.loans, id, loanID)
	if i < 0 || l.loans[i].Returned {
		return ReturnOutcome{}, ErrLoanNotFound
	}

	loan := &l.loans[i]
	loan.ReturnDate = now
	loan.Returned = true
	loan.Fine = l.fines.Fine(loan.DueDate, now)

	return ReturnOutcome{
		Loan:        *loan,
		DaysLate:    DaysLate(loan.DueDate, now),
		BookFound:   l.catalog.checkin(loan.BookID),
		MemberFound: l.members.giveBack(loan.MemberID, loan.Fine),
	}, nil
}

// =============================================================================
// QUERIES
// =============================================================================

// Get returns any loan, open or returned.
func (l *LoanLedger) Get(id LoanID) (Loan, error) {
	if i := indexOf(l.loans, id, loanID); i >= 0 {
		return l.loans[i], nil
	}
	return Loan{}, ErrLoanNotFound
}

// Open returns every open loan in id order.
func (l *LoanLedger) Open() []Loan {
	return l.filter(Loan.IsOpen)
}

// History returns every loan of a member, open and returned.
func (l *LoanLedger) History(member MemberID) []Loan {
	return l.filter(func(loan Loan) bool { return loan.MemberID == member })
}

// OpenFor returns the open loans of a member.
func (l *LoanLedger) OpenFor(member MemberID) []Loan {
	return l.filter(func(loan Loan) bool { return loan.IsOpen() && loan.MemberID == member })
}

// OpenForBook counts open loans of a book.
func (l *LoanLedger) OpenForBook(book BookID) int {
	return len(l.filter(func(loan Loan) bool { return loan.IsOpen() && loan.BookID == book }))
}

// Len returns the number of transactions ever recorded.
func (l *LoanLedger) Len() int { return len(l.loans) }

// Rules returns the lending rules in force.
func (l *LoanLedger) Rules() LendingRules {
	return LendingRules{LoanPeriod: l.loanPeriod, IssueLimit: l.issueLimit, Fines: l.fines}
}

func (l *LoanLedger) filter(keep func(Loan) bool) []Loan {
	var out []Loan
	for _, loan := range l.loans {
		if keep(loan) {
			out = append(out, loan)
		}
	}
	return out
}
