package console

import (
	"context"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/warp/libris/library"
)

// =============================================================================
// BOOK MANAGEMENT
// =============================================================================

func (c *Console) bookMenu(ctx context.Context) error {
	for {
		if c.stopped(ctx) {
			return nil
		}
		choice, err := c.menu("BOOK MANAGEMENT",
			"Add New Book", "View All Books", "Search Book", "Update Book", "Delete Book", "Back to Admin Menu")
		if err != nil {
			return err
		}
		switch choice {
		case 1:
			err = c.addBook(ctx)
		case 2:
			c.listBooks(c.lib.Books())
			c.printf("\nTotal Active Books: %d\n", len(c.lib.Books()))
		case 3:
			err = c.searchBooks()
		case 4:
			err = c.updateBook(ctx)
		case 5:
			err = c.deleteBook(ctx)
		case 6:
			return nil
		default:
			c.invalidChoice()
		}
		if err != nil {
			return err
		}
	}
}

func (c *Console) addBook(ctx context.Context) error {
	c.header("ADD NEW BOOK")
	var f library.BookFields
	var err error
	if f.Title, err = c.ask("Title: "); err != nil {
		return err
	}
	if f.Author, err = c.ask("Author: "); err != nil {
		return err
	}
	if f.ISBN, err = c.ask("ISBN: "); err != nil {
		return err
	}
	if f.Category, err = c.ask("Category: "); err != nil {
		return err
	}
	copies, ok, err := c.askInt("Total Copies: ")
	if err != nil || !ok {
		return err
	}
	f.TotalCopies = copies
	price, ok, err := c.askMoney("Price: ")
	if err != nil || !ok {
		return err
	}
	f.Price = price

	b, err := c.lib.AddBook(ctx, f)
	if err != nil {
		c.fail(err)
		return nil
	}
	c.printf("\n✓ Book added successfully with ID: %d\n", b.ID)
	return nil
}

func (c *Console) listBooks(books []library.Book) {
	if len(books) == 0 {
		c.say("No books available in the library.")
		return
	}
	w := c.table("ID", "Title", "Author", "Category", "Available")
	for _, b := range books {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d/%d\n", b.ID, b.Title, b.Author, b.Category, b.AvailableCopies, b.TotalCopies)
	}
	w.Flush()
}

func (c *Console) showBook(b library.Book) {
	c.say("\n✓ Book Found:")
	c.printf("ID          : %d\n", b.ID)
	c.printf("Title       : %s\n", b.Title)
	c.printf("Author      : %s\n", b.Author)
	c.printf("ISBN        : %s\n", b.ISBN)
	c.printf("Category    : %s\n", b.Category)
	c.printf("Available   : %d/%d\n", b.AvailableCopies, b.TotalCopies)
	c.printf("Price       : %s\n", money(b.Price))
}

// searchBooks is shared by the admin and member menus.
func (c *Console) searchBooks() error {
	choice, err := c.menu("SEARCH BOOKS", "Book ID", "Title", "Author", "ISBN")
	if err != nil {
		return err
	}

	var found []library.Book
	switch choice {
	case 1:
		id, ok, err := c.askInt("Enter Book ID: ")
		if err != nil || !ok {
			return err
		}
		if b, err := c.lib.Book(library.BookID(id)); err == nil {
			c.showBook(b)
			return nil
		}
	case 2:
		text, err := c.ask("Enter Title: ")
		if err != nil {
			return err
		}
		found = c.lib.FindBooksByTitle(text)
	case 3:
		text, err := c.ask("Enter Author: ")
		if err != nil {
			return err
		}
		found = c.lib.FindBooksByAuthor(text)
	case 4:
		isbn, err := c.ask("Enter ISBN: ")
		if err != nil {
			return err
		}
		if b, err := c.lib.FindBookByISBN(isbn); err == nil {
			c.showBook(b)
			return nil
		}
	default:
		c.invalidChoice()
		return nil
	}

	if len(found) == 0 {
		c.say("\n✗ No books found!")
		return nil
	}
	c.say("")
	c.listBooks(found)
	return nil
}

func (c *Console) updateBook(ctx context.Context) error {
	c.header("UPDATE BOOK")
	id, ok, err := c.askInt("Enter Book ID to update: ")
	if err != nil || !ok {
		return err
	}
	b, err := c.lib.Book(library.BookID(id))
	if err != nil {
		c.fail(err)
		return nil
	}

	c.say("\nEnter new details (press Enter to keep current):")
	var u library.BookUpdate
	if u.Title, err = c.keep("Title", b.Title); err != nil {
		return err
	}
	if u.Author, err = c.keep("Author", b.Author); err != nil {
		return err
	}
	if u.ISBN, err = c.keep("ISBN", b.ISBN); err != nil {
		return err
	}
	if u.Category, err = c.keep("Category", b.Category); err != nil {
		return err
	}
	copies, err := c.keep("Total Copies", strconv.Itoa(b.TotalCopies))
	if err != nil {
		return err
	}
	if copies != nil {
		n, perr := strconv.Atoi(*copies)
		if perr != nil {
			c.say("\n✗ Please enter a whole number!")
			return nil
		}
		u.TotalCopies = &n
	}
	price, err := c.keep("Price", money(b.Price))
	if err != nil {
		return err
	}
	if price != nil {
		p, perr := decimal.NewFromString(*price)
		if perr != nil {
			c.say("\n✗ Please enter an amount like 12.50!")
			return nil
		}
		u.Price = &p
	}

	if u.IsEmpty() {
		c.say("\n✓ Nothing changed.")
		return nil
	}
	if _, err := c.lib.UpdateBook(ctx, b.ID, u); err != nil {
		c.fail(err)
		return nil
	}
	c.say("\n✓ Book updated successfully!")
	return nil
}

func (c *Console) deleteBook(ctx context.Context) error {
	c.header("DELETE BOOK")
	id, ok, err := c.askInt("Enter Book ID to delete: ")
	if err != nil || !ok {
		return err
	}
	b, err := c.lib.Book(library.BookID(id))
	if err != nil {
		c.fail(err)
		return nil
	}
	if b.Lent() > 0 {
		c.say("\n✗ Cannot delete! Book has been issued to members.")
		return nil
	}

	c.printf("\nBook: %s by %s\n", b.Title, b.Author)
	yes, err := c.confirm("Are you sure you want to delete?")
	if err != nil {
		return err
	}
	if !yes {
		c.say("\n✓ Deletion cancelled.")
		return nil
	}
	if err := c.lib.DeactivateBook(ctx, b.ID); err != nil {
		c.fail(err)
		return nil
	}
	c.say("\n✓ Book deleted successfully!")
	return nil
}
