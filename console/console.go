/*
console.go - Menu-driven terminal front end

PURPOSE:
  The interactive desk. Reads numbered choices and field values line by
  line, calls the library facade, prints tables and receipts. Holds no
  business rules of its own: every check happens in package library and
  comes back here as an error to print.

MENU TREE:
  Main          -> Admin Login / Member Portal / Exit
  Admin         -> Books / Members / Transactions / Statistics /
                   Change Password / Logout
  Member Portal -> My Issued Books / History / Search Books / Logout

INPUT RULES:
  - One value per line, surrounding spaces trimmed
  - On update prompts a blank line keeps the current value
  - Deletes ask for y/n; anything but y/Y cancels
  - End of input anywhere ends the session cleanly
  - A canceled context ends the session at the next menu

SEE ALSO:
  - books.go, members.go, loans.go: the sub-menus
  - cmd/libris/main.go: wires stdin/stdout
*/
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/libris/library"
)

const dateLayout = "2006-01-02"

// Console runs the interactive menus against one library.
type Console struct {
	lib    *library.Library
	auth   *library.Authenticator
	in     *bufio.Scanner
	out    io.Writer
	logger *zap.Logger
}

// Option configures a Console.
type Option func(*Console)

// WithLogger sets the logger. Session events are logged at Info.
func WithLogger(l *zap.Logger) Option {
	return func(c *Console) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a console reading from in and writing to out.
func New(lib *library.Library, auth *library.Authenticator, in io.Reader, out io.Writer, opts ...Option) *Console {
	c := &Console{
		lib:    lib,
		auth:   auth,
		in:     bufio.NewScanner(in),
		out:    out,
		logger: zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	c.logger = c.logger.With(zap.String("component", "console"))
	return c
}

// Run shows the main menu until the user exits, input ends or ctx is
// canceled.
func (c *Console) Run(ctx context.Context) error {
	c.banner()
	for {
		if c.stopped(ctx) {
			return nil
		}
		choice, err := c.menu("MAIN MENU", "Admin Login", "Member Portal", "Exit")
		if err != nil {
			return endOfInput(err)
		}
		switch choice {
		case 1:
			err = c.adminLogin(ctx)
		case 2:
			err = c.memberPortal(ctx)
		case 3:
			c.say("\nThank you for using Libris. Goodbye!")
			return nil
		default:
			c.invalidChoice()
		}
		if err != nil {
			return endOfInput(err)
		}
	}
}

// stopped reports whether the session was canceled. Every menu loop checks
// it before prompting so no operation runs on a dead context.
func (c *Console) stopped(ctx context.Context) bool {
	if ctx.Err() == nil {
		return false
	}
	c.logger.Info("session interrupted", zap.Error(ctx.Err()))
	return true
}

// endOfInput turns io.EOF into a clean exit.
func endOfInput(err error) error {
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// =============================================================================
// ADMIN
// =============================================================================

func (c *Console) adminLogin(ctx context.Context) error {
	c.header("ADMIN LOGIN")
	user, err := c.ask("Username: ")
	if err != nil {
		return err
	}
	pass, err := c.ask("Password: ")
	if err != nil {
		return err
	}

	if err := c.auth.Verify(ctx, user, pass); err != nil {
		if errors.Is(err, library.ErrInvalidCredentials) {
			c.logger.Warn("admin login failed", zap.String("username", user))
			c.say("\n✗ Invalid credentials!")
			return nil
		}
		c.fail(err)
		return nil
	}
	c.logger.Info("admin logged in", zap.String("username", user))
	c.say("\n✓ Login successful!")
	return c.adminMenu(ctx, user)
}

func (c *Console) adminMenu(ctx context.Context, user string) error {
	for {
		if c.stopped(ctx) {
			return nil
		}
		choice, err := c.menu("ADMIN MENU",
			"Book Management", "Member Management", "Transaction Management",
			"View Statistics", "Change Password", "Logout")
		if err != nil {
			return err
		}
		switch choice {
		case 1:
			err = c.bookMenu(ctx)
		case 2:
			err = c.memberMenu(ctx)
		case 3:
			err = c.loanMenu(ctx)
		case 4:
			c.showStats()
		case 5:
			err = c.changePassword(ctx, user)
		case 6:
			c.logger.Info("admin logged out", zap.String("username", user))
			c.say("\n✓ Logged out successfully!")
			return nil
		default:
			c.invalidChoice()
		}
		if err != nil {
			return err
		}
	}
}

func (c *Console) showStats() {
	s := c.lib.Stats()
	c.header("LIBRARY STATISTICS")
	c.printf("Total Books       : %d\n", s.ActiveBooks)
	c.printf("Total Members     : %d\n", s.ActiveMembers)
	c.printf("Currently Issued  : %d\n", s.OpenLoans)
	c.printf("Total Transactions: %d\n", s.Transactions)
	c.printf("Total Fines       : %s\n", money(s.TotalFines))
}

func (c *Console) changePassword(ctx context.Context, user string) error {
	c.header("CHANGE PASSWORD")
	old, err := c.ask("Current password: ")
	if err != nil {
		return err
	}
	next, err := c.ask("New password: ")
	if err != nil {
		return err
	}
	again, err := c.ask("Confirm new password: ")
	if err != nil {
		return err
	}
	if next != again {
		c.say("\n✗ Passwords do not match!")
		return nil
	}
	if err := c.auth.ChangePassword(ctx, user, old, next); err != nil {
		c.fail(err)
		return nil
	}
	c.say("\n✓ Password changed successfully!")
	return nil
}

// =============================================================================
// MEMBER PORTAL
// =============================================================================

func (c *Console) memberPortal(ctx context.Context) error {
	c.header("MEMBER PORTAL")
	id, ok, err := c.askInt("Enter Member ID: ")
	if err != nil || !ok {
		return err
	}
	m, err := c.lib.Member(library.MemberID(id))
	if err != nil {
		c.say("\n✗ Member ID not found!")
		return nil
	}
	c.logger.Info("member portal opened", zap.Int("member_id", id))
	c.printf("\n✓ Welcome, %s!\n", m.Name)

	for {
		if c.stopped(ctx) {
			return nil
		}
		choice, err := c.menu(fmt.Sprintf("MEMBER: %s (ID: %d)", m.Name, m.ID),
			"View My Issued Books", "View Transaction History", "Search Books", "Logout")
		if err != nil {
			return err
		}
		switch choice {
		case 1:
			c.showHeldBooks(m.ID)
		case 2:
			c.showHistory(m.ID)
		case 3:
			err = c.searchBooks()
		case 4:
			c.say("\n✓ Logged out!")
			return nil
		default:
			c.invalidChoice()
		}
		if err != nil {
			return err
		}
	}
}

// =============================================================================
// INPUT
// =============================================================================

// ask prints a label and reads one trimmed line.
func (c *Console) ask(label string) (string, error) {
	c.printf("%s", label)
	if !c.in.Scan() {
		if err := c.in.Err(); err != nil {
			return "", fmt.Errorf("read input: %w", err)
		}
		return "", io.EOF
	}
	return strings.TrimSpace(c.in.Text()), nil
}

// askInt reads a whole number. ok is false when the line did not parse;
// the message has already been printed.
func (c *Console) askInt(label string) (n int, ok bool, err error) {
	s, err := c.ask(label)
	if err != nil {
		return 0, false, err
	}
	n, perr := strconv.Atoi(s)
	if perr != nil {
		c.say("\n✗ Please enter a whole number!")
		return 0, false, nil
	}
	return n, true, nil
}

// askMoney reads a non-empty decimal amount.
func (c *Console) askMoney(label string) (decimal.Decimal, bool, error) {
	s, err := c.ask(label)
	if err != nil {
		return decimal.Zero, false, err
	}
	d, perr := decimal.NewFromString(s)
	if perr != nil {
		c.say("\n✗ Please enter an amount like 12.50!")
		return decimal.Zero, false, nil
	}
	return d, true, nil
}

// keep reads an update field: nil when the line is blank.
func (c *Console) keep(label, current string) (*string, error) {
	s, err := c.ask(fmt.Sprintf("%s [%s]: ", label, current))
	if err != nil || s == "" {
		return nil, err
	}
	return &s, nil
}

// confirm asks a y/n question.
func (c *Console) confirm(question string) (bool, error) {
	s, err := c.ask(question + " (y/n): ")
	if err != nil {
		return false, err
	}
	return strings.EqualFold(s, "y"), nil
}

// menu prints numbered items and reads a choice. An unparsable choice is 0.
func (c *Console) menu(title string, items ...string) (int, error) {
	c.header(title)
	for i, item := range items {
		c.printf("%d. %s\n", i+1, item)
	}
	s, err := c.ask("\nChoice: ")
	if err != nil {
		return 0, err
	}
	n, _ := strconv.Atoi(s)
	return n, nil
}

// =============================================================================
// OUTPUT
// =============================================================================

func (c *Console) banner() {
	c.say("")
	c.say("==============================================================")
	c.say("                LIBRIS - LIBRARY DESK")
	c.say("==============================================================")
}

func (c *Console) header(title string) {
	c.printf("\n--- %s ---\n\n", title)
}

func (c *Console) say(line string) {
	fmt.Fprintln(c.out, line)
}

func (c *Console) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}

func (c *Console) invalidChoice() {
	c.say("\n✗ Invalid choice!")
}

// table returns a tabwriter over the output. Callers must Flush.
func (c *Console) table(columns ...string) *tabwriter.Writer {
	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(columns, "\t"))
	dashes := make([]string, len(columns))
	for i, col := range columns {
		dashes[i] = strings.Repeat("-", len(col))
	}
	fmt.Fprintln(w, strings.Join(dashes, "\t"))
	return w
}

// fail prints the user-facing message for a library error.
func (c *Console) fail(err error) {
	c.printf("\n✗ %s\n", c.message(err))
	if !library.IsClientError(err) {
		c.logger.Error("operation failed", zap.Error(err))
	}
}

func (c *Console) message(err error) string {
	var outstanding *library.OutstandingLoansError
	switch {
	case errors.Is(err, library.ErrBookNotFound):
		return "Book not found!"
	case errors.Is(err, library.ErrMemberNotFound):
		return "Member not found!"
	case errors.Is(err, library.ErrLoanNotFound):
		return "Transaction not found or book already returned!"
	case errors.Is(err, library.ErrNoCopiesAvailable):
		return "Book not available! All copies issued."
	case errors.Is(err, library.ErrIssueLimitReached):
		return fmt.Sprintf("Member has already issued maximum books (%d)!", c.lib.Rules().IssueLimit)
	case errors.As(err, &outstanding):
		if outstanding.Kind == "book" {
			return "Cannot delete! Book has been issued to members."
		}
		return "Cannot delete! Member has issued books."
	case errors.Is(err, library.ErrLedgerFull):
		return "Transaction limit reached!"
	case errors.Is(err, library.ErrCapacityExceeded):
		return "Maximum limit reached! " + err.Error()
	case errors.Is(err, library.ErrInvalidCredentials):
		return "Invalid credentials!"
	case errors.Is(err, library.ErrInvalidInput):
		return err.Error()
	case errors.Is(err, library.ErrPersistence):
		return "Could not save changes, nothing was modified. " + err.Error()
	default:
		return err.Error()
	}
}

func money(d decimal.Decimal) string { return d.StringFixed(2) }

func date(t time.Time) string { return t.Format(dateLayout) }
