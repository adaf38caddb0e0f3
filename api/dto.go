/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the library model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

ENCODING:
  - ids are integers
  - money is a decimal string ("12.5"); requests accept a string or number
  - times are RFC3339

VALIDATION:
  Validation is done by the library, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/libris/library"
)

// =============================================================================
// BOOKS
// =============================================================================

// BookDTO represents a book in API responses.
type BookDTO struct {
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

// CreateBookRequest is the request to add a book.
type CreateBookRequest struct {
	Title       string          `json:"title"`
	Author      string          `json:"author"`
	ISBN        string          `json:"isbn"`
	Category    string          `json:"category"`
	TotalCopies int             `json:"total_copies"`
	Price       decimal.Decimal `json:"price"`
}

// UpdateBookRequest is a partial update; omitted fields are kept.
type UpdateBookRequest struct {
	Title       *string          `json:"title,omitempty"`
	Author      *string          `json:"author,omitempty"`
	ISBN        *string          `json:"isbn,omitempty"`
	Category    *string          `json:"category,omitempty"`
	TotalCopies *int             `json:"total_copies,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
}

func toBookDTO(b library.Book) BookDTO {
	return BookDTO{
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

func toBookDTOs(books []library.Book) []BookDTO {
	out := make([]BookDTO, len(books))
	for i, b := range books {
		out[i] = toBookDTO(b)
	}
	return out
}

func (r CreateBookRequest) fields() library.BookFields {
	return library.BookFields{
		Title:       r.Title,
		Author:      r.Author,
		ISBN:        r.ISBN,
		Category:    r.Category,
		TotalCopies: r.TotalCopies,
		Price:       r.Price,
	}
}

func (r UpdateBookRequest) update() library.BookUpdate {
	return library.BookUpdate{
		Title:       r.Title,
		Author:      r.Author,
		ISBN:        r.ISBN,
		Category:    r.Category,
		TotalCopies: r.TotalCopies,
		Price:       r.Price,
	}
}

// =============================================================================
// MEMBERS
// =============================================================================

// MemberDTO represents a member in API responses.
type MemberDTO struct {
	ID          int             `json:"id"`
	Name        string          `json:"name"`
	Email       string          `json:"email"`
	Phone       string          `json:"phone"`
	Address     string          `json:"address"`
	BooksIssued int             `json:"books_issued"`
	TotalFines  decimal.Decimal `json:"total_fines"`
	Active      bool            `json:"active"`
}

// CreateMemberRequest is the request to register a member.
type CreateMemberRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// UpdateMemberRequest is a partial update; omitted fields are kept.
type UpdateMemberRequest struct {
	Name    *string `json:"name,omitempty"`
	Email   *string `json:"email,omitempty"`
	Phone   *string `json:"phone,omitempty"`
	Address *string `json:"address,omitempty"`
}

func toMemberDTO(m library.Member) MemberDTO {
	return MemberDTO{
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

func toMemberDTOs(members []library.Member) []MemberDTO {
	out := make([]MemberDTO, len(members))
	for i, m := range members {
		out[i] = toMemberDTO(m)
	}
	return out
}

func (r CreateMemberRequest) fields() library.MemberFields {
	return library.MemberFields{Name: r.Name, Email: r.Email, Phone: r.Phone, Address: r.Address}
}

func (r UpdateMemberRequest) update() library.MemberUpdate {
	return library.MemberUpdate{Name: r.Name, Email: r.Email, Phone: r.Phone, Address: r.Address}
}

// =============================================================================
// LOANS
// =============================================================================

// LoanDTO represents a transaction in API responses. Titles and names are
// filled in for listings.
type LoanDTO struct {
	ID          int             `json:"id"`
	BookID      int             `json:"book_id"`
	MemberID    int             `json:"member_id"`
	BookTitle   string          `json:"book_title,omitempty"`
	MemberName  string          `json:"member_name,omitempty"`
	IssueDate   string          `json:"issue_date"`
	DueDate     string          `json:"due_date"`
	ReturnDate  *string         `json:"return_date,omitempty"`
	Fine        decimal.Decimal `json:"fine"`
	Returned    bool            `json:"returned"`
	DaysOverdue int             `json:"days_overdue"`
}

// IssueLoanRequest lends one copy of a book.
type IssueLoanRequest struct {
	BookID   int `json:"book_id"`
	MemberID int `json:"member_id"`
}

func toLoanDTO(l library.Loan, now time.Time) LoanDTO {
	dto := LoanDTO{
		ID:          int(l.ID),
		BookID:      int(l.BookID),
		MemberID:    int(l.MemberID),
		IssueDate:   l.IssueDate.Format(time.RFC3339),
		DueDate:     l.DueDate.Format(time.RFC3339),
		Fine:        l.Fine,
		Returned:    l.Returned,
		DaysOverdue: l.DaysOverdue(now),
	}
	if l.Returned {
		dto.ReturnDate = strPtr(l.ReturnDate.Format(time.RFC3339))
	}
	return dto
}

func toLoanViewDTOs(views []library.LoanView) []LoanDTO {
	out := make([]LoanDTO, len(views))
	for i, v := range views {
		dto := toLoanDTO(v.Loan, time.Time{})
		dto.BookTitle = v.BookTitle
		dto.MemberName = v.MemberName
		dto.DaysOverdue = v.DaysOverdue
		out[i] = dto
	}
	return out
}

// =============================================================================
// MISC
// =============================================================================

// StatsDTO is the admin dashboard.
type StatsDTO struct {
	ActiveBooks   int             `json:"active_books"`
	ActiveMembers int             `json:"active_members"`
	OpenLoans     int             `json:"open_loans"`
	Transactions  int             `json:"transactions"`
	TotalFines    decimal.Decimal `json:"total_fines"`
}

// ChangePasswordRequest replaces the admin password.
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func strPtr(s string) *string {
	return &s
}
