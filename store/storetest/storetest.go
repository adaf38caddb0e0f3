// Package storetest holds the behaviour every library.Backend must share.
// Backend packages call Run from their own tests.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/libris/library"
)

// Factory returns a fresh, empty backend. Cleanup is the factory's job.
type Factory func(t *testing.T) library.Backend

var (
	issued   = time.Date(2026, time.March, 2, 9, 30, 0, 0, time.UTC)
	returned = time.Date(2026, time.March, 26, 17, 5, 12, 345, time.UTC)
)

// SampleState covers active and inactive rows, an open loan and a returned
// loan with a fine.
func SampleState() library.State {
	return library.State{
		Books: []library.Book{
			{ID: 1001, Title: "Dune", Author: "Frank Herbert", ISBN: "978-0441013593", Category: "Fiction",
				TotalCopies: 2, AvailableCopies: 1, Price: decimal.RequireFromString("12.50"), Active: true},
			{ID: 1002, Title: "SICP", Author: "Abelson, Sussman", ISBN: "0-262-51087-1", Category: "CS",
				TotalCopies: 1, AvailableCopies: 1, Price: decimal.RequireFromString("49.99"), Active: true},
			{ID: 1003, Title: "Old Atlas", Author: "", ISBN: "", Category: "",
				TotalCopies: 0, AvailableCopies: 0, Price: decimal.Zero, Active: false},
		},
		Members: []library.Member{
			{ID: 2001, Name: "Ada Lovelace", Email: "ada@example.com", Phone: "555-0100", Address: "12 St James's Sq",
				BooksIssued: 1, TotalFines: decimal.RequireFromString("26"), Active: true},
			{ID: 2002, Name: "Gone Member", Email: "gone@example.com", Active: false, TotalFines: decimal.Zero},
		},
		Loans: []library.Loan{
			{ID: 5001, BookID: 1001, MemberID: 2001, IssueDate: issued, DueDate: issued.Add(14 * 24 * time.Hour),
				ReturnDate: returned, Fine: decimal.RequireFromString("26"), Returned: true},
			{ID: 5002, BookID: 1001, MemberID: 2001, IssueDate: returned, DueDate: returned.Add(14 * 24 * time.Hour),
				Fine: decimal.Zero},
		},
	}
}

// Normalize rewrites decimals and times to a canonical form so states that
// went through a codec compare equal with require.Equal.
func Normalize(s library.State) library.State {
	s = s.Clone()
	for i := range s.Books {
		s.Books[i].Price = canonical(s.Books[i].Price)
	}
	for i := range s.Members {
		s.Members[i].TotalFines = canonical(s.Members[i].TotalFines)
	}
	for i := range s.Loans {
		l := &s.Loans[i]
		l.Fine = canonical(l.Fine)
		l.IssueDate = l.IssueDate.UTC()
		l.DueDate = l.DueDate.UTC()
		if l.ReturnDate.IsZero() {
			l.ReturnDate = time.Time{}
		} else {
			l.ReturnDate = l.ReturnDate.UTC()
		}
	}
	return s
}

func canonical(d decimal.Decimal) decimal.Decimal {
	return decimal.RequireFromString(d.String())
}

// Run exercises the Backend contract against backends built by newBackend.
func Run(t *testing.T, newBackend Factory) {
	t.Run("fresh backend loads empty state", func(t *testing.T) {
		b := newBackend(t)

		state, err := b.Load(context.Background())

		require.NoError(t, err)
		assert.True(t, state.IsEmpty())
	})

	t.Run("save then load round-trips every record", func(t *testing.T) {
		// GIVEN: a state with inactive rows and both kinds of loan
		b := newBackend(t)
		ctx := context.Background()
		want := SampleState()

		// WHEN: it is saved and loaded back
		require.NoError(t, b.Save(ctx, want))
		got, err := b.Load(ctx)

		// THEN: nothing is lost, inactive rows included
		require.NoError(t, err)
		assert.Equal(t, Normalize(want), Normalize(got))
	})

	t.Run("save replaces the previous state", func(t *testing.T) {
		b := newBackend(t)
		ctx := context.Background()
		require.NoError(t, b.Save(ctx, SampleState()))

		smaller := SampleState()
		smaller.Books = smaller.Books[:1]
		smaller.Members = nil
		smaller.Loans = smaller.Loans[:1]
		require.NoError(t, b.Save(ctx, smaller))

		got, err := b.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, Normalize(smaller), Normalize(got))
	})

	t.Run("saving empty state clears tables", func(t *testing.T) {
		b := newBackend(t)
		ctx := context.Background()
		require.NoError(t, b.Save(ctx, SampleState()))
		require.NoError(t, b.Save(ctx, library.State{}))

		got, err := b.Load(ctx)
		require.NoError(t, err)
		assert.True(t, got.IsEmpty())
	})

	t.Run("credential absent until saved", func(t *testing.T) {
		b := newBackend(t)
		ctx := context.Background()

		_, ok, err := b.LoadCredential(ctx)
		require.NoError(t, err)
		assert.False(t, ok)

		cred := library.Credential{Username: "admin", PasswordHash: []byte("$2a$04$abcdefghijklmnopqrstuv")}
		require.NoError(t, b.SaveCredential(ctx, cred))

		got, ok, err := b.LoadCredential(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, cred, got)
	})

	t.Run("credential save replaces previous", func(t *testing.T) {
		b := newBackend(t)
		ctx := context.Background()
		require.NoError(t, b.SaveCredential(ctx, library.Credential{Username: "admin", PasswordHash: []byte("one")}))
		require.NoError(t, b.SaveCredential(ctx, library.Credential{Username: "root", PasswordHash: []byte("two")}))

		got, ok, err := b.LoadCredential(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "root", got.Username)
		assert.Equal(t, []byte("two"), got.PasswordHash)
	})

	t.Run("library survives a round trip through the backend", func(t *testing.T) {
		// GIVEN: a library that issued and returned through this backend
		b := newBackend(t)
		ctx := context.Background()
		now := issued
		clock := func() time.Time { return now }

		lib, err := library.Open(ctx, b, library.WithClock(clock))
		require.NoError(t, err)
		book, err := lib.AddBook(ctx, library.BookFields{Title: "Dune", TotalCopies: 2, Price: decimal.NewFromInt(10)})
		require.NoError(t, err)
		member, err := lib.AddMember(ctx, library.MemberFields{Name: "Ada"})
		require.NoError(t, err)
		loan, err := lib.IssueLoan(ctx, book.ID, member.ID)
		require.NoError(t, err)
		now = loan.DueDate.Add(10 * 24 * time.Hour)
		_, err = lib.ReturnLoan(ctx, loan.ID)
		require.NoError(t, err)

		// WHEN: a second library opens the same backend
		again, err := library.Open(ctx, b, library.WithClock(clock))
		require.NoError(t, err)

		// THEN: it sees the same tables
		assert.Equal(t, Normalize(lib.State()), Normalize(again.State()))
		m, err := again.Member(member.ID)
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(26).Equal(m.TotalFines))
		assert.Empty(t, again.Check())
	})
}
