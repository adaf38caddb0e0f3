/*
Package record defines the on-disk JSON shape of library records.

PURPOSE:
  The file and pebble backends both serialize records as JSON. This package
  owns that schema so both agree and so the format is written down in one
  place instead of being whatever the Go struct layout happens to be.

SCHEMA (version 1):
  book:        {"id":1001,"title":"","author":"","isbn":"","category":"",
                "total_copies":2,"available_copies":2,"price":"12.5","active":true}
  member:      {"id":2001,"name":"","email":"","phone":"","address":"",
                "books_issued":0,"total_fines":"0","active":true}
  transaction: {"id":5001,"book_id":1001,"member_id":2001,
                "issue_date":"2026-01-02T15:04:05.999999999Z",
                "due_date":"...","return_date":"..." (omitted while open),
                "fine":"0","returned":false}

  - ids and counts are JSON integers
  - money is a decimal string, never a float
  - timestamps are RFC3339Nano in UTC

SEE ALSO:
  - store/file: wraps the tables in a versioned document
  - store/pebble: one key per record
*/
package record

import (
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"

	"github.com/warp/libris/library"
)

// Version is the schema version written by this package.
const Version = 1

// JSON is the codec used for every record.
var JSON = jsoniter.ConfigCompatibleWithStandardLibrary

// =============================================================================
// RECORD TYPES
// =============================================================================

type Book struct {
	ID              int             `json:"id"`
	Title           string          `json:"title"`
	Author          string          `json:"author"`
	ISBN            string          `json:"isbn"`
	Category        string          `json:"category"`
	TotalCopies     int             `json:"total_copies"`
	AvailableCopies int             `json:"available_copies"`
	Price           decimal.Decimal `json:"price"`
	Active          bool            `json:"active"`
}

type Member struct {
	ID          int             `json:"id"`
	Name        string          `json:"name"`
	Email       string          `json:"email"`
	Phone       string          `json:"phone"`
	Address     string          `json:"address"`
	BooksIssued int             `json:"books_issued"`
	TotalFines  decimal.Decimal `json:"total_fines"`
	Active      bool            `json:"active"`
}

type Transaction struct {
	ID         int             `json:"id"`
	BookID     int             `json:"book_id"`
	MemberID   int             `json:"member_id"`
	IssueDate  time.Time       `json:"issue_date"`
	DueDate    time.Time       `json:"due_date"`
	ReturnDate *time.Time      `json:"return_date,omitempty"`
	Fine       decimal.Decimal `json:"fine"`
	Returned   bool            `json:"returned"`
}

type Credential struct {
	Username     string `json:"username"`
	PasswordHash string `json:"password_hash"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func FromBook(b library.Book) Book {
	return Book{
		ID:              int(b.ID),
		Title:           b.Title,
		Author:          b.Author,
		ISBN:            b.ISBN,
		Category:        b.Category,
		TotalCopies:     b.TotalCopies,
		AvailableCopies: b.AvailableCopies,
		Price:           b.Price,
		Active:          b.Active,
	}
}

func (r Book) ToBook() library.Book {
	return library.Book{
		ID:              library.BookID(r.ID),
		Title:           r.Title,
		Author:          r.Author,
		ISBN:            r.ISBN,
		Category:        r.Category,
		TotalCopies:     r.TotalCopies,
		AvailableCopies: r.AvailableCopies,
		Price:           r.Price,
		Active:          r.Active,
	}
}

func FromMember(m library.Member) Member {
	return Member{
		ID:          int(m.ID),
		Name:        m.Name,
		Email:       m.Email,
		Phone:       m.Phone,
		Address:     m.Address,
		BooksIssued: m.BooksIssued,
		TotalFines:  m.TotalFines,
		Active:      m.Active,
	}
}

func (r Member) ToMember() library.Member {
	return library.Member{
		ID:          library.MemberID(r.ID),
		Name:        r.Name,
		Email:       r.Email,
		Phone:       r.Phone,
		Address:     r.Address,
		BooksIssued: r.BooksIssued,
		TotalFines:  r.TotalFines,
		Active:      r.Active,
	}
}

func FromLoan(l library.Loan) Transaction {
	t := Transaction{
		ID:        int(l.ID),
		BookID:    int(l.BookID),
		MemberID:  int(l.MemberID),
		IssueDate: l.IssueDate.UTC(),
		DueDate:   l.DueDate.UTC(),
		Fine:      l.Fine,
		Returned:  l.Returned,
	}
	if l.Returned {
		rd := l.ReturnDate.UTC()
		t.ReturnDate = &rd
	}
	return t
}

func (r Transaction) ToLoan() library.Loan {
	l := library.Loan{
		ID:        library.LoanID(r.ID),
		BookID:    library.BookID(r.BookID),
		MemberID:  library.MemberID(r.MemberID),
		IssueDate: r.IssueDate,
		DueDate:   r.DueDate,
		Fine:      r.Fine,
		Returned:  r.Returned,
	}
	if r.ReturnDate != nil {
		l.ReturnDate = *r.ReturnDate
	}
	return l
}

func FromCredential(c library.Credential) Credential {
	return Credential{Username: c.Username, PasswordHash: string(c.PasswordHash)}
}

func (r Credential) ToCredential() library.Credential {
	return library.Credential{Username: r.Username, PasswordHash: []byte(r.PasswordHash)}
}

// =============================================================================
// TABLES
// =============================================================================

// Tables converts a State into record slices, never nil.
func Tables(s library.State) ([]Book, []Member, []Transaction) {
	books := make([]Book, len(s.Books))
	for i, b := range s.Books {
		books[i] = FromBook(b)
	}
	members := make([]Member, len(s.Members))
	for i, m := range s.Members {
		members[i] = FromMember(m)
	}
	txs := make([]Transaction, len(s.Loans))
	for i, l := range s.Loans {
		txs[i] = FromLoan(l)
	}
	return books, members, txs
}

// State assembles record slices back into a State.
func State(books []Book, members []Member, txs []Transaction) library.State {
	var s library.State
	for _, b := range books {
		s.Books = append(s.Books, b.ToBook())
	}
	for _, m := range members {
		s.Members = append(s.Members, m.ToMember())
	}
	for _, t := range txs {
		s.Loans = append(s.Loans, t.ToLoan())
	}
	return s
}
