package library

import (
	"sort"
	"strings"
)

// =============================================================================
// ID GENERATION - high-water mark
// =============================================================================

// nextID returns max(all ids, floor) + 1. Inactive records count, so an id
// is never handed out twice.
func nextID[T any, ID ~int](records []T, floor ID, idOf func(T) ID) ID {
	hwm := floor
	for _, r := range records {
		if id := idOf(r); id > hwm {
			hwm = id
		}
	}
	return hwm + 1
}

// =============================================================================
// ID LOOKUP - binary search over an id-ordered slice
// =============================================================================
//
// Every table is kept sorted by id:
//   - sortByID runs once when a table is loaded
//   - nextID is always greater than every existing id, so append keeps order
// Inactive rows stay in place; callers check the Active flag themselves.

func sortByID[T any, ID ~int](records []T, idOf func(T) ID) {
	sort.SliceStable(records, func(i, j int) bool { return idOf(records[i]) < idOf(records[j]) })
}

// indexOf returns the position of id, or -1.
func indexOf[T any, ID ~int](records []T, id ID, idOf func(T) ID) int {
	i := sort.Search(len(records), func(i int) bool { return idOf(records[i]) >= id })
	if i < len(records) && idOf(records[i]) == id {
		return i
	}
	return -1
}

// duplicateID returns the first repeated id in a sorted table.
func duplicateID[T any, ID ~int](records []T, idOf func(T) ID) (ID, bool) {
	for i := 1; i < len(records); i++ {
		if idOf(records[i]) == idOf(records[i-1]) {
			return idOf(records[i]), true
		}
	}
	return 0, false
}

func bookID(b Book) BookID { return b.ID }
func memberID(m Member) MemberID { return m.ID }
func loanID(l Loan) LoanID { return l.ID }

// =============================================================================
// TEXT MATCHING
// =============================================================================

// containsFold is a case-insensitive substring test.
func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// equalFold compares trimmed values case-insensitively.
func equalFold(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// withinLimit reports whether one more record fits. limit <= 0 is unlimited.
func withinLimit(n, limit int) bool {
	return limit <= 0 || n < limit
}
