package console

import (
	"context"
	"fmt"

	"github.com/warp/libris/library"
)

// =============================================================================
// MEMBER MANAGEMENT
// =============================================================================

func (c *Console) memberMenu(ctx context.Context) error {
	for {
		if c.stopped(ctx) {
			return nil
		}
		choice, err := c.menu("MEMBER MANAGEMENT",
			"Add New Member", "View All Members", "Search Member", "Update Member", "Delete Member", "Back to Admin Menu")
		if err != nil {
			return err
		}
		switch choice {
		case 1:
			err = c.addMember(ctx)
		case 2:
			members := c.lib.Members()
			c.listMembers(members)
			c.printf("\nTotal Active Members: %d\n", len(members))
		case 3:
			err = c.searchMembers()
		case 4:
			err = c.updateMember(ctx)
		case 5:
			err = c.deleteMember(ctx)
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

func (c *Console) addMember(ctx context.Context) error {
	c.header("REGISTER MEMBER")
	var f library.MemberFields
	var err error
	if f.Name, err = c.ask("Name: "); err != nil {
		return err
	}
	if f.Email, err = c.ask("Email: "); err != nil {
		return err
	}
	if f.Phone, err = c.ask("Phone: "); err != nil {
		return err
	}
	if f.Address, err = c.ask("Address: "); err != nil {
		return err
	}

	m, err := c.lib.AddMember(ctx, f)
	if err != nil {
		c.fail(err)
		return nil
	}
	c.printf("\n✓ Member registered successfully with ID: %d\n", m.ID)
	return nil
}

func (c *Console) listMembers(members []library.Member) {
	if len(members) == 0 {
		c.say("No members registered.")
		return
	}
	w := c.table("ID", "Name", "Email", "Phone", "Issued")
	for _, m := range members {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\n", m.ID, m.Name, m.Email, m.Phone, m.BooksIssued)
	}
	w.Flush()
}

func (c *Console) showMember(m library.Member) {
	c.say("\n✓ Member Found:")
	c.printf("ID          : %d\n", m.ID)
	c.printf("Name        : %s\n", m.Name)
	c.printf("Email       : %s\n", m.Email)
	c.printf("Phone       : %s\n", m.Phone)
	c.printf("Address     : %s\n", m.Address)
	c.printf("Books Issued: %d\n", m.BooksIssued)
	c.printf("Total Fines : %s\n", money(m.TotalFines))
}

func (c *Console) searchMembers() error {
	choice, err := c.menu("SEARCH MEMBERS", "Member ID", "Name", "Email")
	if err != nil {
		return err
	}

	var found []library.Member
	switch choice {
	case 1:
		id, ok, err := c.askInt("Enter Member ID: ")
		if err != nil || !ok {
			return err
		}
		if m, err := c.lib.Member(library.MemberID(id)); err == nil {
			c.showMember(m)
			return nil
		}
	case 2:
		text, err := c.ask("Enter Name: ")
		if err != nil {
			return err
		}
		found = c.lib.FindMembersByName(text)
	case 3:
		email, err := c.ask("Enter Email: ")
		if err != nil {
			return err
		}
		if m, err := c.lib.FindMemberByEmail(email); err == nil {
			c.showMember(m)
			return nil
		}
	default:
		c.invalidChoice()
		return nil
	}

	if len(found) == 0 {
		c.say("\n✗ No members found!")
		return nil
	}
	c.say("")
	c.listMembers(found)
	return nil
}

func (c *Console) updateMember(ctx context.Context) error {
	c.header("UPDATE MEMBER")
	id, ok, err := c.askInt("Enter Member ID to update: ")
	if err != nil || !ok {
		return err
	}
	m, err := c.lib.Member(library.MemberID(id))
	if err != nil {
		c.fail(err)
		return nil
	}

	c.say("\nEnter new details (press Enter to keep current):")
	var u library.MemberUpdate
	if u.Name, err = c.keep("Name", m.Name); err != nil {
		return err
	}
	if u.Email, err = c.keep("Email", m.Email); err != nil {
		return err
	}
	if u.Phone, err = c.keep("Phone", m.Phone); err != nil {
		return err
	}
	if u.Address, err = c.keep("Address", m.Address); err != nil {
		return err
	}

	if u.IsEmpty() {
		c.say("\n✓ Nothing changed.")
		return nil
	}
	if _, err := c.lib.UpdateMember(ctx, m.ID, u); err != nil {
		c.fail(err)
		return nil
	}
	c.say("\n✓ Member updated successfully!")
	return nil
}

func (c *Console) deleteMember(ctx context.Context) error {
	c.header("DELETE MEMBER")
	id, ok, err := c.askInt("Enter Member ID to delete: ")
	if err != nil || !ok {
		return err
	}
	m, err := c.lib.Member(library.MemberID(id))
	if err != nil {
		c.fail(err)
		return nil
	}
	if m.BooksIssued > 0 {
		c.say("\n✗ Cannot delete! Member has issued books.")
		return nil
	}

	c.printf("\nMember: %s (ID: %d)\n", m.Name, m.ID)
	yes, err := c.confirm("Are you sure you want to delete?")
	if err != nil {
		return err
	}
	if !yes {
		c.say("\n✓ Deletion cancelled.")
		return nil
	}
	if err := c.lib.DeactivateMember(ctx, m.ID); err != nil {
		c.fail(err)
		return nil
	}
	c.say("\n✓ Member deleted successfully!")
	return nil
}
