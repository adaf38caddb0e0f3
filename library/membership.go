/*
membership.go - Member records, issued-book counts and recorded fines

PURPOSE:
  Owns every Member, active or not. Mirrors the catalog: add, find, patch,
  soft-delete. BooksIssued and TotalFines are changed only by the loan
  ledger through borrow/giveBack.

FINES:
  TotalFines is a running total of fines recorded on return. Nothing here
  decreases it; collecting payment is outside this system.

SEE ALSO:
  - catalog.go: same shapes for books
  - ledger.go: borrow/giveBack callers
*/
package library

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Membership is the member table.
type Membership struct {
	members []Member
	limit   int
}

// NewMembership creates an empty roster. limit <= 0 means unlimited.
func NewMembership(limit int) *Membership {
	return &Membership{limit: limit}
}

// =============================================================================
// MUTATIONS
// =============================================================================

// Add registers a new member with no books and no fines.
func (m *Membership) Add(f MemberFields) (Member, error) {
	if !withinLimit(len(m.members), m.limit) {
		return Member{}, &CapacityError{Store: "member", Limit: m.limit}
	}
	if strings.TrimSpace(f.Name) == "" {
		return Member{}, invalid("name", "must not be empty")
	}

	mem := Member{
		ID:         nextID(m.members, MemberIDFloor, memberID),
		Name:       strings.TrimSpace(f.Name),
		Email:      strings.TrimSpace(f.Email),
		Phone:      strings.TrimSpace(f.Phone),
		Address:    strings.TrimSpace(f.Address),
		TotalFines: decimal.Zero,
		Active:     true,
	}
	m.members = append(m.members, mem)
	return mem, nil
}

// Update applies the non-nil fields of u to an active member.
func (m *Membership) Update(id MemberID, u MemberUpdate) (Member, error) {
	mem := m.active(id)
	if mem == nil {
		return Member{}, ErrMemberNotFound
	}

	next := *mem
	if u.Name != nil {
		next.Name = strings.TrimSpace(*u.Name)
		if next.Name == "" {
			return Member{}, invalid("name", "must not be empty")
		}
	}
	if u.Email != nil {
		next.Email = strings.TrimSpace(*u.Email)
	}
	if u.Phone != nil {
		next.Phone = strings.TrimSpace(*u.Phone)
	}
	if u.Address != nil {
		next.Address = strings.TrimSpace(*u.Address)
	}

	*mem = next
	return next, nil
}

// Deactivate soft-deletes a member holding no books.
func (m *Membership) Deactivate(id MemberID) error {
	mem := m.active(id)
	if mem == nil {
		return ErrMemberNotFound
	}
	if mem.BooksIssued > 0 {
		return &OutstandingLoansError{Kind: "member", ID: int(id), Outstanding: mem.BooksIssued}
	}
	mem.Active = false
	return nil
}

// borrow counts one more issued book against an active member.
func (m *Membership) borrow(id MemberID, limit int) error {
	mem := m.active(id)
	if mem == nil {
		return ErrMemberNotFound
	}
	if limit > 0 && mem.BooksIssued >= limit {
		return ErrIssueLimitReached
	}
	mem.BooksIssued++
	return nil
}

// giveBack releases one issued book and records the fine. A missing member
// is skipped.
func (m *Membership) giveBack(id MemberID, fine decimal.Decimal) bool {
	mem := m.ref(id)
	if mem == nil {
		return false
	}
	if mem.BooksIssued > 0 {
		mem.BooksIssued--
	}
	mem.TotalFines = mem.TotalFines.Add(fine)
	return true
}

// =============================================================================
// QUERIES - active records only
// =============================================================================

// Get returns an active member by id.
func (m *Membership) Get(id MemberID) (Member, error) {
	mem := m.active(id)
	if mem == nil {
		return Member{}, ErrMemberNotFound
	}
	return *mem, nil
}

// FindByName returns active members whose name contains text, ignoring case.
func (m *Membership) FindByName(text string) []Member {
	return m.filter(func(mem Member) bool { return containsFold(mem.Name, text) })
}

// FindByEmail returns the first active member with that email.
func (m *Membership) FindByEmail(email string) (Member, error) {
	if strings.TrimSpace(email) == "" {
		return Member{}, ErrMemberNotFound
	}
	for _, mem := range m.members {
		if mem.Active && equalFold(mem.Email, email) {
			return mem, nil
		}
	}
	return Member{}, ErrMemberNotFound
}

// List returns every active member in id order.
func (m *Membership) List() []Member {
	return m.filter(func(Member) bool { return true })
}

// ActiveCount returns the number of active members.
func (m *Membership) ActiveCount() int {
	n := 0
	for _, mem := range m.members {
		if mem.Active {
			n++
		}
	}
	return n
}

// Len returns the number of records including inactive ones.
func (m *Membership) Len() int { return len(m.members) }

// activeFines sums recorded fines over active members.
func (m *Membership) activeFines() decimal.Decimal {
	total := decimal.Zero
	for _, mem := range m.members {
		if mem.Active {
			total = total.Add(mem.TotalFines)
		}
	}
	return total
}

func (m *Membership) name(id MemberID) string {
	if mem := m.ref(id); mem != nil {
		return mem.Name
	}
	return UnknownName
}

func (m *Membership) filter(keep func(Member) bool) []Member {
	var out []Member
	for _, mem := range m.members {
		if mem.Active && keep(mem) {
			out = append(out, mem)
		}
	}
	return out
}

func (m *Membership) ref(id MemberID) *Member {
	if i := indexOf(m.members, id, memberID); i >= 0 {
		return &m.members[i]
	}
	return nil
}

func (m *Membership) active(id MemberID) *Member {
	if mem := m.ref(id); mem != nil && mem.Active {
		return mem
	}
	return nil
}
