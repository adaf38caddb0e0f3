/*
Package library provides the core of the library desk: the catalog, the
membership roster, the loan ledger and the fine policy that ties them
together.

PURPOSE:
  Everything with a business rule lives here. The console, the HTTP API and
  the persistence backends are collaborators that call into this package or
  implement its Store interface.

KEY CONCEPTS IN THIS FILE (types.go):
  - Book, Member, Loan: the three record kinds
  - BookID, MemberID, LoanID: type-safe numeric identifiers
  - BookFields/BookUpdate, MemberFields/MemberUpdate: create and patch inputs
  - State: all three tables as one persistable unit

DESIGN PRINCIPLES:
  1. Soft deletes: records are never removed, only deactivated
  2. Precision: money uses decimal.Decimal, never float
  3. Explicit patches: nil field = keep current, pointer to "" = set empty

SEE ALSO:
  - catalog.go, membership.go: record stores
  - ledger.go: issue/return
  - fine.go: late-fee tiers
  - library.go: facade that persists every mutation
*/
package library

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type BookID int
type MemberID int
type LoanID int

// Id floors. New ids start above these so hand-seeded records never collide.
const (
	BookIDFloor   BookID   = 1000
	MemberIDFloor MemberID = 2000
	LoanIDFloor   LoanID   = 5000
)

// =============================================================================
// BOOK
// =============================================================================

// Book is a catalog entry. One Book covers TotalCopies physical copies.
//
// INVARIANT: 0 <= AvailableCopies <= TotalCopies
type Book struct {
	ID              BookID
	Title           string
	Author          string
	ISBN            string
	Category        string
	TotalCopies     int
	AvailableCopies int
	Price           decimal.Decimal
	Active          bool
}

// Lent returns the number of copies currently out on loan.
func (b Book) Lent() int { return b.TotalCopies - b.AvailableCopies }

// BookFields are the caller-supplied fields of a new book.
type BookFields struct {
	Title       string
	Author      string
	ISBN        string
	Category    string
	TotalCopies int
	Price       decimal.Decimal
}

// BookUpdate is a partial update. Nil fields keep the current value.
type BookUpdate struct {
	Title       *string
	Author      *string
	ISBN        *string
	Category    *string
	TotalCopies *int
	Price       *decimal.Decimal
}

// IsEmpty reports whether the update changes nothing.
func (u BookUpdate) IsEmpty() bool {
	return u.Title == nil && u.Author == nil && u.ISBN == nil &&
		u.Category == nil && u.TotalCopies == nil && u.Price == nil
}

// =============================================================================
// MEMBER
// =============================================================================

// Member is a registered borrower.
//
// INVARIANT: 0 <= BooksIssued <= issue limit
// TotalFines only ever grows; it records fines, it does not track payment.
type Member struct {
	ID          MemberID
	Name        string
	Email       string
	Phone       string
	Address     string
	BooksIssued int
	TotalFines  decimal.Decimal
	Active      bool
}

// MemberFields are the caller-supplied fields of a new member.
type MemberFields struct {
	Name    string
	Email   string
	Phone   string
	Address string
}

// MemberUpdate is a partial update. Nil fields keep the current value.
type MemberUpdate struct {
	Name    *string
	Email   *string
	Phone   *string
	Address *string
}

func (u MemberUpdate) IsEmpty() bool {
	return u.Name == nil && u.Email == nil && u.Phone == nil && u.Address == nil
}

// =============================================================================
// LOAN - one borrowed copy
// =============================================================================

// Loan records one copy of a book lent to one member.
//
// INVARIANTS:
//   - DueDate == IssueDate + loan period, fixed at creation
//   - Fine is zero until Returned
//   - once Returned, ReturnDate and Fine never change
type Loan struct {
	ID         LoanID
	BookID     BookID
	MemberID   MemberID
	IssueDate  time.Time
	DueDate    time.Time
	ReturnDate time.Time
	Fine       decimal.Decimal
	Returned   bool
}

// IsOpen reports whether the copy is still out.
func (l Loan) IsOpen() bool { return !l.Returned }

// DaysOverdue is the number of whole days past due at the given instant for
// an open loan, or at the return date for a returned one.
func (l Loan) DaysOverdue(at time.Time) int {
	if l.Returned {
		return DaysLate(l.DueDate, l.ReturnDate)
	}
	return DaysLate(l.DueDate, at)
}

// LoanView is a loan joined with the names a person wants to read.
type LoanView struct {
	Loan
	BookTitle   string
	MemberName  string
	DaysOverdue int
}

// UnknownName is shown when a loan points at a record that no longer resolves.
const UnknownName = "Unknown"

// =============================================================================
// STATE - the persisted unit
// =============================================================================

// State holds every table. Stores load and save it as a whole.
type State struct {
	Books   []Book
	Members []Member
	Loans   []Loan
}

// Clone returns a deep copy. Records hold only values, so copying the
// slices is enough.
func (s State) Clone() State {
	return State{
		Books:   append([]Book(nil), s.Books...),
		Members: append([]Member(nil), s.Members...),
		Loans:   append([]Loan(nil), s.Loans...),
	}
}

// IsEmpty reports whether no table holds any record.
func (s State) IsEmpty() bool {
	return len(s.Books) == 0 && len(s.Members) == 0 && len(s.Loans) == 0
}

// Stats is the aggregate shown on the admin dashboard.
type Stats struct {
	ActiveBooks   int
	ActiveMembers int
	OpenLoans     int
	Transactions  int
	// TotalFines sums recorded fines over active members only.
	TotalFines decimal.Decimal
}
