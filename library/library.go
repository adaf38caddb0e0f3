/*
library.go - Facade over catalog, roster and ledger

PURPOSE:
  Library owns the three tables and the Store. Every mutating method runs
  the same cycle:

    1. snapshot the in-memory State
    2. apply the change to catalog / membership / ledger
    3. Save the whole State
    4. on any error restore the snapshot

  So a caller either sees the change applied and saved, or sees no change
  at all. A failed save is reported as a PersistenceError.

STARTUP:
  Open loads the State. A missing data file is an empty library. A load
  error (unreadable or inconsistent data) is logged and the library starts
  empty, exactly like a first run.

CONCURRENCY:
  None. One logical actor drives a Library. The HTTP surface serializes
  requests before calling in.

SEE ALSO:
  - store.go: Store contract
  - ledger.go: issue/return rules
  - api/handlers.go, console/console.go: callers
*/
package library

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Library is the single owner of the library data.
type Library struct {
	catalog *Catalog
	members *Membership
	ledger  *LoanLedger

	store   Store
	clock   func() time.Time
	logger  *zap.Logger
	metrics Recorder
}

// Open builds a Library on top of store and loads its State.
func Open(ctx context.Context, store Store, opts ...Option) (*Library, error) {
	cfg := DefaultConfig()
	for _, o := range opts {
		o(cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("library config: %w", err)
	}

	catalog := NewCatalog(cfg.Limits.Books)
	members := NewMembership(cfg.Limits.Members)
	lib := &Library{
		catalog: catalog,
		members: members,
		ledger:  NewLoanLedger(catalog, members, cfg.Limits.Transactions, cfg.Rules),
		store:   store,
		clock:   cfg.Clock,
		logger:  cfg.Logger.With(zap.String("component", "library")),
		metrics: cfg.Metrics,
	}

	state, err := store.Load(ctx)
	if err == nil {
		err = lib.restore(state)
	}
	if err != nil {
		lib.logger.Warn("could not load library data, starting empty", zap.Error(err))
		_ = lib.restore(State{})
	}

	stats := lib.Stats()
	lib.logger.Info("library loaded",
		zap.Int("books", lib.catalog.Len()),
		zap.Int("members", lib.members.Len()),
		zap.Int("transactions", lib.ledger.Len()),
		zap.Int("open_loans", stats.OpenLoans),
	)
	lib.metrics.ObserveStats(stats)
	return lib, nil
}

// Close releases the store.
func (l *Library) Close() error {
	return l.store.Close()
}

// Now returns the library clock's current time.
func (l *Library) Now() time.Time { return l.clock() }

// Rules returns the lending rules in force.
func (l *Library) Rules() LendingRules { return l.ledger.Rules() }

// =============================================================================
// STATE SNAPSHOT / RESTORE
// =============================================================================

// State returns a deep copy of every table.
func (l *Library) State() State {
	return State{
		Books:   l.catalog.books,
		Members: l.members.members,
		Loans:   l.ledger.loans,
	}.Clone()
}

// restore replaces every table with s after sorting and checking it.
func (l *Library) restore(s State) error {
	s = s.Clone()
	sortByID(s.Books, bookID)
	sortByID(s.Members, memberID)
	sortByID(s.Loans, loanID)

	if id, dup := duplicateID(s.Books, bookID); dup {
		return fmt.Errorf("duplicate book id %d", id)
	}
	if id, dup := duplicateID(s.Members, memberID); dup {
		return fmt.Errorf("duplicate member id %d", id)
	}
	if id, dup := duplicateID(s.Loans, loanID); dup {
		return fmt.Errorf("duplicate transaction id %d", id)
	}
	for _, b := range s.Books {
		if b.AvailableCopies < 0 || b.AvailableCopies > b.TotalCopies {
			return fmt.Errorf("book %d: available copies %d outside 0..%d", b.ID, b.AvailableCopies, b.TotalCopies)
		}
	}
	// A count above the issue limit is kept: the limit may have been lowered
	// in config since the loans were made.
	for _, m := range s.Members {
		if m.BooksIssued < 0 {
			return fmt.Errorf("member %d: negative books issued %d", m.ID, m.BooksIssued)
		}
		if m.TotalFines.IsNegative() {
			return fmt.Errorf("member %d: negative total fines %s", m.ID, m.TotalFines)
		}
	}

	l.catalog.books = s.Books
	l.members.members = s.Members
	l.ledger.loans = s.Loans
	return nil
}

// apply runs change and saves the result, restoring the previous State if
// either step fails.
func (l *Library) apply(ctx context.Context, op string, change func() error) (err error) {
	start := time.Now()
	defer func() { l.metrics.ObserveOperation(op, err, time.Since(start)) }()

	before := l.State()
	if err := change(); err != nil {
		_ = l.restore(before)
		return err
	}
	if err := l.store.Save(ctx, l.State()); err != nil {
		_ = l.restore(before)
		l.logger.Error("save failed, change rolled back", zap.String("op", op), zap.Error(err))
		return &PersistenceError{Op: op, Err: err}
	}
	l.metrics.ObserveStats(l.Stats())
	return nil
}

// =============================================================================
// BOOKS
// =============================================================================

// AddBook creates a book with every copy available.
func (l *Library) AddBook(ctx context.Context, f BookFields) (Book, error) {
	var b Book
	err := l.apply(ctx, "add_book", func() (err error) {
		b, err = l.catalog.Add(f)
		return err
	})
	if err != nil {
		return Book{}, err
	}
	l.logger.Info("book added", zap.Int("book_id", int(b.ID)), zap.String("title", b.Title), zap.Int("copies", b.TotalCopies))
	return b, nil
}

// Book returns an active book.
func (l *Library) Book(id BookID) (Book, error) { return l.catalog.Get(id) }

// Books lists active books.
func (l *Library) Books() []Book { return l.catalog.List() }

// FindBooksByTitle is a case-insensitive substring search.
func (l *Library) FindBooksByTitle(text string) []Book { return l.catalog.FindByTitle(text) }

// FindBooksByAuthor is a case-insensitive substring search.
func (l *Library) FindBooksByAuthor(text string) []Book { return l.catalog.FindByAuthor(text) }

// FindBookByISBN is a case-insensitive exact match.
func (l *Library) FindBookByISBN(isbn string) (Book, error) { return l.catalog.FindByISBN(isbn) }

// UpdateBook applies a partial update.
func (l *Library) UpdateBook(ctx context.Context, id BookID, u BookUpdate) (Book, error) {
	var b Book
	err := l.apply(ctx, "update_book", func() (err error) {
		b, err = l.catalog.Update(id, u)
		return err
	})
	if err != nil {
		return Book{}, err
	}
	l.logger.Info("book updated", zap.Int("book_id", int(id)))
	return b, nil
}

// DeactivateBook soft-deletes a book with no copies out.
func (l *Library) DeactivateBook(ctx context.Context, id BookID) error {
	err := l.apply(ctx, "deactivate_book", func() error {
		return l.catalog.Deactivate(id)
	})
	if err != nil {
		return err
	}
	l.logger.Info("book deactivated", zap.Int("book_id", int(id)))
	return nil
}

// =============================================================================
// MEMBERS
// =============================================================================

// AddMember registers a member.
func (l *Library) AddMember(ctx context.Context, f MemberFields) (Member, error) {
	var m Member
	err := l.apply(ctx, "add_member", func() (err error) {
		m, err = l.members.Add(f)
		return err
	})
	if err != nil {
		return Member{}, err
	}
	l.logger.Info("member added", zap.Int("member_id", int(m.ID)), zap.String("name", m.Name))
	return m, nil
}

// Member returns an active member.
func (l *Library) Member(id MemberID) (Member, error) { return l.members.Get(id) }

// Members lists active members.
func (l *Library) Members() []Member { return l.members.List() }

// FindMembersByName is a case-insensitive substring search.
func (l *Library) FindMembersByName(text string) []Member { return l.members.FindByName(text) }

// FindMemberByEmail is a case-insensitive exact match.
func (l *Library) FindMemberByEmail(email string) (Member, error) {
	return l.members.FindByEmail(email)
}

// UpdateMember applies a partial update.
func (l *Library) UpdateMember(ctx context.Context, id MemberID, u MemberUpdate) (Member, error) {
	var m Member
	err := l.apply(ctx, "update_member", func() (err error) {
		m, err = l.members.Update(id, u)
		return err
	})
	if err != nil {
		return Member{}, err
	}
	l.logger.Info("member updated", zap.Int("member_id", int(id)))
	return m, nil
}

// DeactivateMember soft-deletes a member holding no books.
func (l *Library) DeactivateMember(ctx context.Context, id MemberID) error {
	err := l.apply(ctx, "deactivate_member", func() error {
		return l.members.Deactivate(id)
	})
	if err != nil {
		return err
	}
	l.logger.Info("member deactivated", zap.Int("member_id", int(id)))
	return nil
}

// =============================================================================
// LOANS
// =============================================================================

// IssueLoan lends one copy of a book to a member, due after the loan period.
func (l *Library) IssueLoan(ctx context.Context, book BookID, member MemberID) (Loan, error) {
	var loan Loan
	err := l.apply(ctx, "issue_loan", func() (err error) {
		loan, err = l.ledger.Issue(book, member, l.clock())
		return err
	})
	if err != nil {
		return Loan{}, err
	}
	l.logger.Info("loan issued",
		zap.Int("transaction_id", int(loan.ID)),
		zap.Int("book_id", int(book)),
		zap.Int("member_id", int(member)),
		zap.Time("due", loan.DueDate),
	)
	return loan, nil
}

// ReturnLoan closes an open loan and records its fine.
func (l *Library) ReturnLoan(ctx context.Context, id LoanID) (Loan, error) {
	var out ReturnOutcome
	err := l.apply(ctx, "return_loan", func() (err error) {
		out, err = l.ledger.Return(id, l.clock())
		return err
	})
	if err != nil {
		return Loan{}, err
	}
	if !out.BookFound {
		l.logger.Warn("returned loan references a missing book", zap.Int("book_id", int(out.Loan.BookID)))
	}
	if !out.MemberFound {
		l.logger.Warn("returned loan references a missing member", zap.Int("member_id", int(out.Loan.MemberID)))
	}
	l.logger.Info("loan returned",
		zap.Int("transaction_id", int(id)),
		zap.Int("days_late", out.DaysLate),
		zap.String("fine", out.Loan.Fine.StringFixed(2)),
	)
	l.metrics.ObserveReturn(out.Loan.Fine, out.DaysLate)
	return out.Loan, nil
}

// Loan returns any transaction by id.
func (l *Library) Loan(id LoanID) (Loan, error) { return l.ledger.Get(id) }

// OpenLoans lists every copy currently out.
func (l *Library) OpenLoans() []LoanView { return l.views(l.ledger.Open()) }

// MemberHistory lists every loan of a member.
func (l *Library) MemberHistory(id MemberID) []LoanView { return l.views(l.ledger.History(id)) }

// MemberOpenLoans lists the copies a member currently holds.
func (l *Library) MemberOpenLoans(id MemberID) []LoanView { return l.views(l.ledger.OpenFor(id)) }

func (l *Library) views(loans []Loan) []LoanView {
	now := l.clock()
	out := make([]LoanView, len(loans))
	for i, loan := range loans {
		out[i] = LoanView{
			Loan:        loan,
			BookTitle:   l.catalog.title(loan.BookID),
			MemberName:  l.members.name(loan.MemberID),
			DaysOverdue: loan.DaysOverdue(now),
		}
	}
	return out
}

// =============================================================================
// STATISTICS & CONSISTENCY
// =============================================================================

// Stats aggregates the dashboard numbers.
func (l *Library) Stats() Stats {
	return Stats{
		ActiveBooks:   l.catalog.ActiveCount(),
		ActiveMembers: l.members.ActiveCount(),
		OpenLoans:     len(l.ledger.Open()),
		Transactions:  l.ledger.Len(),
		TotalFines:    l.members.activeFines(),
	}
}

// Check verifies the counters against the ledger. Counters are maintained
// directly rather than derived, so this is how drift gets noticed. It
// reports problems and repairs nothing.
func (l *Library) Check() []error {
	var problems []error
	for _, b := range l.catalog.books {
		open := l.ledger.OpenForBook(b.ID)
		if b.AvailableCopies+open != b.TotalCopies {
			problems = append(problems, fmt.Errorf("book %d: %d available + %d open loans != %d copies",
				b.ID, b.AvailableCopies, open, b.TotalCopies))
		}
	}
	limit := l.ledger.issueLimit
	for _, m := range l.members.members {
		open := len(l.ledger.OpenFor(m.ID))
		if m.BooksIssued != open {
			problems = append(problems, fmt.Errorf("member %d: books issued %d != %d open loans",
				m.ID, m.BooksIssued, open))
		}
		if m.BooksIssued > limit {
			problems = append(problems, fmt.Errorf("member %d: books issued %d above limit %d",
				m.ID, m.BooksIssued, limit))
		}
	}
	return problems
}
