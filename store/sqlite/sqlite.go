/*
Package sqlite provides a SQLite-backed library.Backend.

PURPOSE:
  Stores books, members and transactions as rows instead of one document.
  The library still saves its whole State at once; Save rewrites the three
  tables inside a single SQL transaction, so a failed save leaves the
  previous rows in place.

INTERFACES IMPLEMENTED:
  library.Store:           whole-state Load/Save
  library.CredentialStore: admin credential

KEY TABLES:
  books:            catalog rows, active and inactive
  members:          roster rows, active and inactive
  loans:            every transaction; return_date NULL while open
  admin_credential: at most one row (id = 1)
  meta:             save generation (uuid) and time of the last save

COLUMN ENCODING:
  - money is TEXT holding a decimal string, never REAL
  - timestamps are TEXT in RFC3339Nano, UTC
  - active / returned are INTEGER 0/1

CONCURRENCY:
  Uses sync.RWMutex plus a single pooled connection. One process owns the
  database file.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - readers don't block the writer
  - better crash recovery

USAGE:
  store, err := sqlite.New("./data/libris.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  lib, err := library.Open(ctx, store)

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - library/store.go: Backend contract
  - store/file: default flat-file backend
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/libris/library"
)

// Store implements library.Backend using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ library.Backend = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Every connection to ":memory:" is its own database.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS books (
		id INTEGER PRIMARY KEY,
		title TEXT NOT NULL,
		author TEXT NOT NULL DEFAULT '',
		isbn TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		total_copies INTEGER NOT NULL,
		available_copies INTEGER NOT NULL,
		price TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		CHECK (available_copies >= 0 AND available_copies <= total_copies)
	);

	CREATE INDEX IF NOT EXISTS idx_books_isbn
		ON books(isbn COLLATE NOCASE);

	CREATE TABLE IF NOT EXISTS members (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT '',
		books_issued INTEGER NOT NULL DEFAULT 0,
		total_fines TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1
	);

	CREATE INDEX IF NOT EXISTS idx_members_email
		ON members(email COLLATE NOCASE);

	-- Loans may outlive the rows they point at, so no foreign keys here.
	CREATE TABLE IF NOT EXISTS loans (
		id INTEGER PRIMARY KEY,
		book_id INTEGER NOT NULL,
		member_id INTEGER NOT NULL,
		issue_date TEXT NOT NULL,
		due_date TEXT NOT NULL,
		return_date TEXT,
		fine TEXT NOT NULL,
		returned INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_loans_member
		ON loans(member_id, returned);
	CREATE INDEX IF NOT EXISTS idx_loans_book
		ON loans(book_id, returned);

	CREATE TABLE IF NOT EXISTS admin_credential (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		username TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// WHOLE-STATE STORE (library.Store interface)
// =============================================================================

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Save rewrites every table in one transaction.
func (s *Store) Save(ctx context.Context, state library.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	for _, table := range []string{"books", "members", "loans"} {
		if _, err := sqlTx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	for _, b := range state.Books {
		if err := insertBook(ctx, sqlTx, b); err != nil {
			return err
		}
	}
	for _, m := range state.Members {
		if err := insertMember(ctx, sqlTx, m); err != nil {
			return err
		}
	}
	for _, l := range state.Loans {
		if err := insertLoan(ctx, sqlTx, l); err != nil {
			return err
		}
	}
	if err := putMeta(ctx, sqlTx, "generation", uuid.NewString()); err != nil {
		return err
	}
	if err := putMeta(ctx, sqlTx, "saved_at", formatTime(time.Now())); err != nil {
		return err
	}

	return sqlTx.Commit()
}

func insertBook(ctx context.Context, db execer, b library.Book) error {
	query := `
		INSERT INTO books
		(id, title, author, isbn, category, total_copies, available_copies, price, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.ExecContext(ctx, query,
		int(b.ID), b.Title, b.Author, b.ISBN, b.Category,
		b.TotalCopies, b.AvailableCopies, b.Price.String(), b.Active,
	)
	if err != nil {
		return fmt.Errorf("failed to insert book %d: %w", b.ID, err)
	}
	return nil
}

func insertMember(ctx context.Context, db execer, m library.Member) error {
	query := `
		INSERT INTO members
		(id, name, email, phone, address, books_issued, total_fines, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.ExecContext(ctx, query,
		int(m.ID), m.Name, m.Email, m.Phone, m.Address,
		m.BooksIssued, m.TotalFines.String(), m.Active,
	)
	if err != nil {
		return fmt.Errorf("failed to insert member %d: %w", m.ID, err)
	}
	return nil
}

func insertLoan(ctx context.Context, db execer, l library.Loan) error {
	query := `
		INSERT INTO loans
		(id, book_id, member_id, issue_date, due_date, return_date, fine, returned)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	var returnDate sql.NullString
	if l.Returned {
		returnDate = sql.NullString{String: formatTime(l.ReturnDate), Valid: true}
	}
	_, err := db.ExecContext(ctx, query,
		int(l.ID), int(l.BookID), int(l.MemberID),
		formatTime(l.IssueDate), formatTime(l.DueDate), returnDate,
		l.Fine.String(), l.Returned,
	)
	if err != nil {
		return fmt.Errorf("failed to insert loan %d: %w", l.ID, err)
	}
	return nil
}

func putMeta(ctx context.Context, db execer, key, value string) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to write meta %s: %w", key, err)
	}
	return nil
}

// Load returns every row of every table, ordered by id.
func (s *Store) Load(ctx context.Context) (library.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var state library.State
	var err error
	if state.Books, err = s.loadBooks(ctx); err != nil {
		return library.State{}, err
	}
	if state.Members, err = s.loadMembers(ctx); err != nil {
		return library.State{}, err
	}
	if state.Loans, err = s.loadLoans(ctx); err != nil {
		return library.State{}, err
	}
	return state, nil
}

func (s *Store) loadBooks(ctx context.Context) ([]library.Book, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, author, isbn, category, total_copies, available_copies, price, active
		FROM books
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query books: %w", err)
	}
	defer rows.Close()

	var books []library.Book
	for rows.Next() {
		var b library.Book
		var price string
		if err := rows.Scan(&b.ID, &b.Title, &b.Author, &b.ISBN, &b.Category,
			&b.TotalCopies, &b.AvailableCopies, &price, &b.Active); err != nil {
			return nil, fmt.Errorf("failed to scan book: %w", err)
		}
		if b.Price, err = parseMoney(price); err != nil {
			return nil, fmt.Errorf("book %d price: %w", b.ID, err)
		}
		books = append(books, b)
	}
	return books, rows.Err()
}

func (s *Store) loadMembers(ctx context.Context) ([]library.Member, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, email, phone, address, books_issued, total_fines, active
		FROM members
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query members: %w", err)
	}
	defer rows.Close()

	var members []library.Member
	for rows.Next() {
		var m library.Member
		var fines string
		if err := rows.Scan(&m.ID, &m.Name, &m.Email, &m.Phone, &m.Address,
			&m.BooksIssued, &fines, &m.Active); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		if m.TotalFines, err = parseMoney(fines); err != nil {
			return nil, fmt.Errorf("member %d fines: %w", m.ID, err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (s *Store) loadLoans(ctx context.Context) ([]library.Loan, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, book_id, member_id, issue_date, due_date, return_date, fine, returned
		FROM loans
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query loans: %w", err)
	}
	defer rows.Close()

	var loans []library.Loan
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		loans = append(loans, l)
	}
	return loans, rows.Err()
}

func scanLoan(rows *sql.Rows) (library.Loan, error) {
	var l library.Loan
	var issueDate, dueDate, fine string
	var returnDate sql.NullString

	if err := rows.Scan(&l.ID, &l.BookID, &l.MemberID, &issueDate, &dueDate,
		&returnDate, &fine, &l.Returned); err != nil {
		return library.Loan{}, fmt.Errorf("failed to scan loan: %w", err)
	}

	var err error
	if l.IssueDate, err = parseTime(issueDate); err != nil {
		return library.Loan{}, fmt.Errorf("loan %d issue date: %w", l.ID, err)
	}
	if l.DueDate, err = parseTime(dueDate); err != nil {
		return library.Loan{}, fmt.Errorf("loan %d due date: %w", l.ID, err)
	}
	if returnDate.Valid {
		if l.ReturnDate, err = parseTime(returnDate.String); err != nil {
			return library.Loan{}, fmt.Errorf("loan %d return date: %w", l.ID, err)
		}
	}
	if l.Fine, err = parseMoney(fine); err != nil {
		return library.Loan{}, fmt.Errorf("loan %d fine: %w", l.ID, err)
	}
	return l, nil
}

// Generation returns the id of the last save, or "" if nothing was saved.
func (s *Store) Generation(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var gen string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = 'generation'").Scan(&gen)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return gen, err
}

// =============================================================================
// CREDENTIAL STORE (library.CredentialStore interface)
// =============================================================================

func (s *Store) LoadCredential(ctx context.Context) (library.Credential, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var cred library.Credential
	var hash string
	err := s.db.QueryRowContext(ctx,
		"SELECT username, password_hash FROM admin_credential WHERE id = 1",
	).Scan(&cred.Username, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return library.Credential{}, false, nil
	}
	if err != nil {
		return library.Credential{}, false, fmt.Errorf("failed to load credential: %w", err)
	}
	cred.PasswordHash = []byte(hash)
	return cred, true, nil
}

func (s *Store) SaveCredential(ctx context.Context, cred library.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO admin_credential (id, username, password_hash, updated_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			username = excluded.username,
			password_hash = excluded.password_hash,
			updated_at = excluded.updated_at
	`
	_, err := s.db.ExecContext(ctx, query, cred.Username, string(cred.PasswordHash), formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}
	return nil
}

// Helper functions

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func parseMoney(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}
