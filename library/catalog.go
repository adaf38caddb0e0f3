/*
catalog.go - Book records and copy counters

PURPOSE:
  Owns every Book, active or not. Searches only ever see active books;
  soft-deleted ones stay in the table so their ids are never reused and old
  loans still resolve to a title.

COPY ACCOUNTING:
  AvailableCopies is changed only by the loan ledger (checkout/checkin) and
  by Update when TotalCopies changes. Update keeps the number of lent copies
  constant, so the new available count is new total - lent.

SEE ALSO:
  - ledger.go: the only caller of checkout/checkin
  - library.go: persists after every mutation
*/
package library

import (
	"strings"
)

// Catalog is the book table.
type Catalog struct {
	books []Book
	limit int
}

// NewCatalog creates an empty catalog. limit <= 0 means unlimited.
func NewCatalog(limit int) *Catalog {
	return &Catalog{limit: limit}
}

// =============================================================================
// MUTATIONS
// =============================================================================

// Add assigns a new id, marks every copy available and appends the book.
func (c *Catalog) Add(f BookFields) (Book, error) {
	if !withinLimit(len(c.books), c.limit) {
		return Book{}, &CapacityError{Store: "book", Limit: c.limit}
	}
	if err := validateBookFields(f); err != nil {
		return Book{}, err
	}

	b := Book{
		ID:              nextID(c.books, BookIDFloor, bookID),
		Title:           strings.TrimSpace(f.Title),
		Author:          strings.TrimSpace(f.Author),
		ISBN:            strings.TrimSpace(f.ISBN),
		Category:        strings.TrimSpace(f.Category),
		TotalCopies:     f.TotalCopies,
		AvailableCopies: f.TotalCopies,
		Price:           f.Price,
		Active:          true,
	}
	c.books = append(c.books, b)
	return b, nil
}

// Update applies the non-nil fields of u to an active book.
func (c *Catalog) Update(id BookID, u BookUpdate) (Book, error) {
	b := c.active(id)
	if b == nil {
		return Book{}, ErrBookNotFound
	}

	next := *b
	if u.Title != nil {
		next.Title = strings.TrimSpace(*u.Title)
		if next.Title == "" {
			return Book{}, invalid("title", "must not be empty")
		}
	}
	if u.Author != nil {
		next.Author = strings.TrimSpace(*u.Author)
	}
	if u.ISBN != nil {
		next.ISBN = strings.TrimSpace(*u.ISBN)
	}
	if u.Category != nil {
		next.Category = strings.TrimSpace(*u.Category)
	}
	if u.Price != nil {
		if u.Price.IsNegative() {
			return Book{}, invalid("price", "must not be negative")
		}
		next.Price = *u.Price
	}
	if u.TotalCopies != nil {
		lent := b.Lent()
		if *u.TotalCopies < lent {
			return Book{}, invalid("total copies", "cannot drop below the copies currently lent")
		}
		next.TotalCopies = *u.TotalCopies
		next.AvailableCopies = *u.TotalCopies - lent
	}

	*b = next
	return next, nil
}

// Deactivate soft-deletes a book that has every copy on the shelf.
func (c *Catalog) Deactivate(id BookID) error {
	b := c.active(id)
	if b == nil {
		return ErrBookNotFound
	}
	if b.AvailableCopies < b.TotalCopies {
		return &OutstandingLoansError{Kind: "book", ID: int(id), Outstanding: b.Lent()}
	}
	b.Active = false
	return nil
}

// checkout takes one copy off the shelf.
func (c *Catalog) checkout(id BookID) error {
	b := c.active(id)
	if b == nil {
		return ErrBookNotFound
	}
	if b.AvailableCopies <= 0 {
		return ErrNoCopiesAvailable
	}
	b.AvailableCopies--
	return nil
}

// checkin puts one copy back. Inactive books still count their copies; a
// missing book is skipped.
func (c *Catalog) checkin(id BookID) bool {
	b := c.ref(id)
	if b == nil {
		return false
	}
	if b.AvailableCopies < b.TotalCopies {
		b.AvailableCopies++
	}
	return true
}

// =============================================================================
// QUERIES - active records only
// =============================================================================

// Get returns an active book by id.
func (c *Catalog) Get(id BookID) (Book, error) {
	b := c.active(id)
	if b == nil {
		return Book{}, ErrBookNotFound
	}
	return *b, nil
}

// FindByTitle returns active books whose title contains text, ignoring case.
func (c *Catalog) FindByTitle(text string) []Book {
	return c.filter(func(b Book) bool { return containsFold(b.Title, text) })
}

// FindByAuthor returns active books whose author contains text, ignoring case.
func (c *Catalog) FindByAuthor(text string) []Book {
	return c.filter(func(b Book) bool { return containsFold(b.Author, text) })
}

// FindByISBN returns the first active book with that ISBN.
func (c *Catalog) FindByISBN(isbn string) (Book, error) {
	if strings.TrimSpace(isbn) == "" {
		return Book{}, ErrBookNotFound
	}
	for _, b := range c.books {
		if b.Active && equalFold(b.ISBN, isbn) {
			return b, nil
		}
	}
	return Book{}, ErrBookNotFound
}

// List returns every active book in id order.
func (c *Catalog) List() []Book {
	return c.filter(func(Book) bool { return true })
}

// ActiveCount returns the number of active books.
func (c *Catalog) ActiveCount() int {
	n := 0
	for _, b := range c.books {
		if b.Active {
			n++
		}
	}
	return n
}

// Len returns the number of records including inactive ones.
func (c *Catalog) Len() int { return len(c.books) }

// title resolves a book title for display, including inactive books.
func (c *Catalog) title(id BookID) string {
	if b := c.ref(id); b != nil {
		return b.Title
	}
	return UnknownName
}

func (c *Catalog) filter(keep func(Book) bool) []Book {
	var out []Book
	for _, b := range c.books {
		if b.Active && keep(b) {
			out = append(out, b)
		}
	}
	return out
}

func (c *Catalog) ref(id BookID) *Book {
	if i := indexOf(c.books, id, bookID); i >= 0 {
		return &c.books[i]
	}
	return nil
}

func (c *Catalog) active(id BookID) *Book {
	if b := c.ref(id); b != nil && b.Active {
		return b
	}
	return nil
}

func validateBookFields(f BookFields) error {
	if strings.TrimSpace(f.Title) == "" {
		return invalid("title", "must not be empty")
	}
	if f.TotalCopies < 0 {
		return invalid("total copies", "must not be negative")
	}
	if f.Price.IsNegative() {
		return invalid("price", "must not be negative")
	}
	return nil
}
