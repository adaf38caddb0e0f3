package console

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/warp/libris/library"
	"github.com/warp/libris/library/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type fixture struct {
	lib  *library.Library
	auth *library.Authenticator
	now  time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	mem := store.NewMemory()
	f := &fixture{now: time.Date(2026, time.March, 2, 9, 30, 0, 0, time.UTC)}

	lib, err := library.Open(ctx, mem, library.WithClock(func() time.Time { return f.now }))
	require.NoError(t, err)
	f.lib = lib

	f.auth = library.NewAuthenticator(mem, library.WithBcryptCost(bcrypt.MinCost))
	_, err = f.auth.EnsureDefault(ctx, library.DefaultAdminUsername, library.DefaultAdminPassword)
	require.NoError(t, err)
	return f
}

// seed adds book 1001 (2 copies) and member 2001.
func (f *fixture) seed(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	_, err := f.lib.AddBook(ctx, library.BookFields{Title: "Dune", Author: "Frank Herbert", ISBN: "978-0441013593",
		Category: "Fiction", TotalCopies: 2, Price: decimal.RequireFromString("12.50")})
	require.NoError(t, err)
	_, err = f.lib.AddMember(ctx, library.MemberFields{Name: "Ada", Email: "ada@example.com", Phone: "555", Address: "London"})
	require.NoError(t, err)
}

// run feeds the lines to a fresh console and returns everything it printed.
func (f *fixture) run(t *testing.T, lines ...string) string {
	t.Helper()
	var out bytes.Buffer
	in := strings.NewReader(strings.Join(lines, "\n") + "\n")
	c := New(f.lib, f.auth, in, &out)
	require.NoError(t, c.Run(context.Background()))
	return out.String()
}

func login(lines ...string) []string {
	return append([]string{"1", "admin", "admin123"}, lines...)
}

// =============================================================================
// ADMIN FLOWS
// =============================================================================

func TestConsole_AdminDeskSession(t *testing.T) {
	// GIVEN: an empty library
	f := newFixture(t)

	// WHEN: the admin adds a book and a member, issues, checks stats
	out := f.run(t, login(
		"1", "1", "Dune", "Frank Herbert", "978", "Fiction", "2", "12.50", "6",
		"2", "1", "Ada", "ada@example.com", "555", "London", "6",
		"3", "1", "1001", "2001", "3", "5",
		"4",
		"6",
		"3",
	)...)

	// THEN: every step is acknowledged and the library moved
	assert.Contains(t, out, "Login successful!")
	assert.Contains(t, out, "Book added successfully with ID: 1001")
	assert.Contains(t, out, "Member registered successfully with ID: 2001")
	assert.Contains(t, out, "Book issued successfully!")
	assert.Contains(t, out, "Transaction ID : 5001")
	assert.Contains(t, out, "Due Date       : 2026-03-16")
	assert.Contains(t, out, "Total Issued Books: 1")
	assert.Contains(t, out, "Currently Issued  : 1")
	assert.Contains(t, out, "Logged out successfully!")
	assert.Contains(t, out, "Goodbye!")

	b, err := f.lib.Book(1001)
	require.NoError(t, err)
	assert.Equal(t, 1, b.AvailableCopies)
	assert.Equal(t, "12.50", money(b.Price))
}

func TestConsole_InvalidCredentials(t *testing.T) {
	f := newFixture(t)

	out := f.run(t, "1", "admin", "nope", "3")

	assert.Contains(t, out, "Invalid credentials!")
	assert.NotContains(t, out, "ADMIN MENU")
}

func TestConsole_UpdateBlankKeepsValues(t *testing.T) {
	// GIVEN: book 1001
	f := newFixture(t)
	f.seed(t)

	// WHEN: only the author line is filled in
	out := f.run(t, login("1", "4", "1001", "", "Herbert", "", "", "", "", "6", "6", "3")...)

	// THEN: the rest is unchanged
	assert.Contains(t, out, "Book updated successfully!")
	assert.Contains(t, out, "Title [Dune]: ")
	b, err := f.lib.Book(1001)
	require.NoError(t, err)
	assert.Equal(t, "Dune", b.Title)
	assert.Equal(t, "Herbert", b.Author)
	assert.Equal(t, "978-0441013593", b.ISBN)
	assert.Equal(t, 2, b.TotalCopies)
}

func TestConsole_UpdateMemberAllBlank(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	out := f.run(t, login("2", "4", "2001", "", "", "", "", "6", "6", "3")...)

	assert.Contains(t, out, "Nothing changed.")
	m, _ := f.lib.Member(2001)
	assert.Equal(t, "ada@example.com", m.Email)
}

func TestConsole_DeleteAsksForConfirmation(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	out := f.run(t, login(
		"1", "5", "1001", "n",
		"5", "1001", "y", "6",
		"2", "5", "2001", "Y", "6",
		"6", "3",
	)...)

	assert.Contains(t, out, "Deletion cancelled.")
	assert.Contains(t, out, "Book deleted successfully!")
	assert.Contains(t, out, "Member deleted successfully!")
	_, err := f.lib.Book(1001)
	assert.ErrorIs(t, err, library.ErrBookNotFound)
	_, err = f.lib.Member(2001)
	assert.ErrorIs(t, err, library.ErrMemberNotFound)
}

func TestConsole_DeleteLentBookRefused(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	_, err := f.lib.IssueLoan(context.Background(), 1001, 2001)
	require.NoError(t, err)

	out := f.run(t, login("1", "5", "1001", "6", "2", "5", "2001", "6", "6", "3")...)

	assert.Contains(t, out, "Cannot delete! Book has been issued to members.")
	assert.Contains(t, out, "Cannot delete! Member has issued books.")
	_, err = f.lib.Book(1001)
	assert.NoError(t, err)
}

func TestConsole_ReturnLateShowsFine(t *testing.T) {
	// GIVEN: a loan issued 24 days ago
	f := newFixture(t)
	f.seed(t)
	_, err := f.lib.IssueLoan(context.Background(), 1001, 2001)
	require.NoError(t, err)
	f.now = f.now.Add(24 * 24 * time.Hour)

	// WHEN: it is returned at the desk
	out := f.run(t, login("3", "2", "5001", "2", "5001", "4", "2001", "5", "6", "3")...)

	// THEN: 10 days late, fine 26.00, and a second return is refused
	assert.Contains(t, out, "FINE: 26.00")
	assert.Contains(t, out, "(Late by 10 days)")
	assert.Contains(t, out, "Transaction not found or book already returned!")
	assert.Contains(t, out, "26.00")

	m, _ := f.lib.Member(2001)
	assert.True(t, decimal.NewFromInt(26).Equal(m.TotalFines))
}

func TestConsole_IssueErrors(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	out := f.run(t, login("3", "1", "9999", "2001", "1", "1001", "9999", "1", "x", "5", "6", "3")...)

	assert.Contains(t, out, "Book not found!")
	assert.Contains(t, out, "Member not found!")
	assert.Contains(t, out, "Please enter a whole number!")
	assert.Empty(t, f.lib.OpenLoans())
}

func TestConsole_Search(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	out := f.run(t, login(
		"1", "3", "2", "dun", "3", "4", "978-0441013593", "3", "3", "nobody", "6",
		"2", "3", "3", "ADA@example.com", "6",
		"6", "3",
	)...)

	assert.Contains(t, out, "1/2")
	assert.Contains(t, out, "Price       : 12.50")
	assert.Contains(t, out, "No books found!")
	assert.Contains(t, out, "Books Issued: 0")
}

func TestConsole_ChangePassword(t *testing.T) {
	f := newFixture(t)

	out := f.run(t, login("5", "admin123", "pw2", "other", "5", "admin123", "pw2", "pw2", "6", "3")...)

	assert.Contains(t, out, "Passwords do not match!")
	assert.Contains(t, out, "Password changed successfully!")
	assert.NoError(t, f.auth.Verify(context.Background(), "admin", "pw2"))
}

// =============================================================================
// MEMBER PORTAL
// =============================================================================

func TestConsole_MemberPortal(t *testing.T) {
	// GIVEN: Ada holds Dune, 3 days overdue
	f := newFixture(t)
	f.seed(t)
	_, err := f.lib.IssueLoan(context.Background(), 1001, 2001)
	require.NoError(t, err)
	f.now = f.now.Add(17 * 24 * time.Hour)

	// WHEN: she opens the portal
	out := f.run(t, "2", "2001", "1", "2", "3", "3", "herbert", "4", "3")

	// THEN
	assert.Contains(t, out, "Welcome, Ada!")
	assert.Contains(t, out, "OVERDUE (3 days)")
	assert.Contains(t, out, "Dune")
	assert.Contains(t, out, "Logged out!")
	assert.NotContains(t, out, "ADMIN MENU")
}

func TestConsole_MemberPortalUnknownID(t *testing.T) {
	f := newFixture(t)

	out := f.run(t, "2", "9999", "3")

	assert.Contains(t, out, "Member ID not found!")
}

// =============================================================================
// INPUT EDGES
// =============================================================================

func TestConsole_EndOfInputExitsCleanly(t *testing.T) {
	f := newFixture(t)

	// stops in the middle of the login prompt
	out := f.run(t, "1", "admin")

	assert.Contains(t, out, "Password: ")
}

func TestConsole_CanceledContextEndsSession(t *testing.T) {
	// GIVEN: a session whose context is already canceled
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// WHEN: a full admin script is queued on stdin
	var out bytes.Buffer
	in := strings.NewReader(strings.Join(login("1", "1", "Dune", "Frank Herbert", "978", "Fiction", "2", "12.50", "6", "6", "3"), "\n") + "\n")
	err := New(f.lib, f.auth, in, &out).Run(ctx)

	// THEN: Run returns cleanly before reading any of it
	require.NoError(t, err)
	assert.NotContains(t, out.String(), "MAIN MENU")
	assert.NotContains(t, out.String(), "Invalid choice!")
	assert.NotContains(t, out.String(), "Login successful!")
	assert.Empty(t, f.lib.Books())
}

// lineReader hands out one line per Read and calls onLine with the
// 1-based number of the line it is about to return.
type lineReader struct {
	lines  []string
	n      int
	onLine func(n int)
}

func (r *lineReader) Read(p []byte) (int, error) {
	if r.n >= len(r.lines) {
		return 0, io.EOF
	}
	r.n++
	if r.onLine != nil {
		r.onLine(r.n)
	}
	return copy(p, r.lines[r.n-1]+"\n"), nil
}

func TestConsole_CancelMidSessionStopsAtNextMenu(t *testing.T) {
	// GIVEN: an admin session that is canceled while choosing Book Management
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	in := &lineReader{
		lines: login("1", "1", "Dune", "Frank Herbert", "978", "Fiction", "2", "12.50", "6", "6", "3"),
		onLine: func(n int) {
			if n == 4 {
				cancel()
			}
		},
	}

	// WHEN
	var out bytes.Buffer
	err := New(f.lib, f.auth, in, &out).Run(ctx)

	// THEN: the session unwinds without running the queued add
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Login successful!")
	assert.NotContains(t, out.String(), "BOOK MANAGEMENT")
	assert.Empty(t, f.lib.Books())
}

func TestConsole_InvalidChoices(t *testing.T) {
	f := newFixture(t)

	out := f.run(t, "9", "abc", "3")

	assert.Equal(t, 2, strings.Count(out, "Invalid choice!"))
}

func TestConsole_Messages(t *testing.T) {
	f := newFixture(t)
	c := New(f.lib, f.auth, strings.NewReader(""), &bytes.Buffer{})

	tests := []struct {
		err  error
		want string
	}{
		{library.ErrIssueLimitReached, "maximum books (3)"},
		{library.ErrNoCopiesAvailable, "All copies issued"},
		{&library.CapacityError{Store: "loan", Limit: 10}, "Transaction limit reached!"},
		{&library.CapacityError{Store: "book", Limit: 10}, "Maximum limit reached!"},
		{&library.PersistenceError{Op: "add_book", Err: assert.AnError}, "nothing was modified"},
	}
	for _, tt := range tests {
		assert.Contains(t, c.message(tt.err), tt.want)
	}
}
