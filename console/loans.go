package console

import (
	"context"
	"fmt"

	"github.com/warp/libris/library"
)

// =============================================================================
// TRANSACTION MANAGEMENT
// =============================================================================

func (c *Console) loanMenu(ctx context.Context) error {
	for {
		if c.stopped(ctx) {
			return nil
		}
		choice, err := c.menu("TRANSACTION MANAGEMENT",
			"Issue Book", "Return Book", "View Currently Issued Books", "View Member History", "Back to Admin Menu")
		if err != nil {
			return err
		}
		switch choice {
		case 1:
			err = c.issueBook(ctx)
		case 2:
			err = c.returnBook(ctx)
		case 3:
			c.showOpenLoans()
		case 4:
			id, ok, aerr := c.askInt("\nEnter Member ID: ")
			if aerr != nil {
				return aerr
			}
			if ok {
				c.showHistory(library.MemberID(id))
			}
		case 5:
			return nil
		default:
			c.invalidChoice()
		}
		if err != nil {
			return err
		}
	}
}

func (c *Console) issueBook(ctx context.Context) error {
	c.header("ISSUE BOOK")
	bookID, ok, err := c.askInt("Enter Book ID: ")
	if err != nil || !ok {
		return err
	}
	memberID, ok, err := c.askInt("Enter Member ID: ")
	if err != nil || !ok {
		return err
	}

	loan, err := c.lib.IssueLoan(ctx, library.BookID(bookID), library.MemberID(memberID))
	if err != nil {
		c.fail(err)
		return nil
	}

	view := c.view(loan)
	c.say("\n✓ Book issued successfully!")
	c.printf("Transaction ID : %d\n", loan.ID)
	c.printf("Book           : %s\n", view.BookTitle)
	c.printf("Member         : %s\n", view.MemberName)
	c.printf("Issue Date     : %s\n", date(loan.IssueDate))
	c.printf("Due Date       : %s\n", date(loan.DueDate))
	c.printf("Note: Please return within %d days to avoid a fine.\n", int(c.lib.Rules().LoanPeriod.Hours()/24))
	return nil
}

func (c *Console) returnBook(ctx context.Context) error {
	c.header("RETURN BOOK")
	id, ok, err := c.askInt("Enter Transaction ID: ")
	if err != nil || !ok {
		return err
	}

	loan, err := c.lib.ReturnLoan(ctx, library.LoanID(id))
	if err != nil {
		c.fail(err)
		return nil
	}

	view := c.view(loan)
	c.say("\n✓ Book returned successfully!")
	c.printf("Transaction ID : %d\n", loan.ID)
	c.printf("Book           : %s\n", view.BookTitle)
	c.printf("Member         : %s\n", view.MemberName)
	c.printf("Return Date    : %s\n", date(loan.ReturnDate))
	if loan.Fine.IsPositive() {
		c.printf("\n⚠ FINE: %s\n", money(loan.Fine))
		c.printf("  (Late by %d days)\n", view.DaysOverdue)
	} else {
		c.say("\n✓ Returned on time. No fine!")
	}
	return nil
}

func (c *Console) showOpenLoans() {
	c.header("CURRENTLY ISSUED BOOKS")
	open := c.lib.OpenLoans()
	if len(open) == 0 {
		c.say("No books currently issued.")
		return
	}
	w := c.table("Trans ID", "Book", "Member", "Issue Date", "Due Date", "Status")
	for _, v := range open {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			v.ID, v.BookTitle, v.MemberName, date(v.IssueDate), date(v.DueDate), status(v))
	}
	w.Flush()
	c.printf("\nTotal Issued Books: %d\n", len(open))
}

// showHeldBooks is the member portal view of open loans.
func (c *Console) showHeldBooks(member library.MemberID) {
	c.header("MY ISSUED BOOKS")
	held := c.lib.MemberOpenLoans(member)
	if len(held) == 0 {
		c.say("No books currently issued.")
		return
	}
	w := c.table("Book", "Issue Date", "Due Date", "Status")
	for _, v := range held {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", v.BookTitle, date(v.IssueDate), date(v.DueDate), status(v))
	}
	w.Flush()
}

func (c *Console) showHistory(member library.MemberID) {
	c.header("TRANSACTION HISTORY")
	c.printf("Member ID: %d\n\n", member)
	history := c.lib.MemberHistory(member)
	if len(history) == 0 {
		c.say("No transaction history found.")
		return
	}
	w := c.table("Trans ID", "Book", "Issue Date", "Due Date", "Returned", "Fine")
	for _, v := range history {
		returned := "-"
		if v.Returned {
			returned = date(v.ReturnDate)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			v.ID, v.BookTitle, date(v.IssueDate), date(v.DueDate), returned, money(v.Fine))
	}
	w.Flush()
}

// view joins one loan with its names through the member history.
func (c *Console) view(loan library.Loan) library.LoanView {
	for _, v := range c.lib.MemberHistory(loan.MemberID) {
		if v.ID == loan.ID {
			return v
		}
	}
	return library.LoanView{Loan: loan, BookTitle: library.UnknownName, MemberName: library.UnknownName}
}

func status(v library.LoanView) string {
	if v.DaysOverdue > 0 {
		return fmt.Sprintf("⚠ OVERDUE (%d days)", v.DaysOverdue)
	}
	return "✓ Active"
}
