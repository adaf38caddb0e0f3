/*
fine.go - Tiered late-fee policy

PURPOSE:
  Computes the fine for a returned loan from its due date and return date.
  Pure: no clock, no store, no side effects.

DEFAULT TIERS:
  days late   rate/day   fine at upper bound
  1 - 7       2.00       14
  8 - 14      4.00       42
  15+         6.00       42 + 6(d-14)

  Examples: 10 days late = 14 + 4*3 = 26; 20 days late = 42 + 6*6 = 78.

DAY COUNTING:
  Only whole days count. Returning 23h59m after the due instant is 0 days
  late; 24h00m is 1 day late.
*/
package library

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const day = 24 * time.Hour

// FineTier charges Rate per day for late days up to and including UpToDay.
// UpToDay == 0 marks the open-ended last tier.
type FineTier struct {
	UpToDay int
	Rate    decimal.Decimal
}

// FinePolicy is an ordered list of tiers.
type FinePolicy struct {
	Tiers []FineTier
}

// DefaultFinePolicy returns the 2/4/6 per-day tiers.
func DefaultFinePolicy() FinePolicy {
	return FinePolicy{Tiers: []FineTier{
		{UpToDay: 7, Rate: decimal.NewFromInt(2)},
		{UpToDay: 14, Rate: decimal.NewFromInt(4)},
		{UpToDay: 0, Rate: decimal.NewFromInt(6)},
	}}
}

// Validate checks that bounds ascend, rates are non-negative and only the
// last tier is open-ended.
func (p FinePolicy) Validate() error {
	if len(p.Tiers) == 0 {
		return invalid("fine tiers", "at least one tier is required")
	}
	prev := 0
	for i, t := range p.Tiers {
		last := i == len(p.Tiers)-1
		if t.Rate.IsNegative() {
			return invalid("fine tiers", fmt.Sprintf("tier %d has a negative rate", i+1))
		}
		if last {
			if t.UpToDay != 0 {
				return invalid("fine tiers", "last tier must be open-ended (up_to_day = 0)")
			}
			continue
		}
		if t.UpToDay <= prev {
			return invalid("fine tiers", fmt.Sprintf("tier %d bound %d does not ascend", i+1, t.UpToDay))
		}
		prev = t.UpToDay
	}
	return nil
}

// DaysLate returns the whole days elapsed from due to at, or 0 when at is
// not after due.
func DaysLate(due, at time.Time) int {
	if !at.After(due) {
		return 0
	}
	return int(at.Sub(due) / day)
}

// Fine returns the fine owed for returning at the given instant.
func (p FinePolicy) Fine(due, returned time.Time) decimal.Decimal {
	return p.ForDays(DaysLate(due, returned))
}

// ForDays returns the fine for a number of whole late days.
func (p FinePolicy) ForDays(days int) decimal.Decimal {
	total := decimal.Zero
	prev := 0
	for _, t := range p.Tiers {
		if days <= prev {
			break
		}
		upper := days
		if t.UpToDay > 0 && t.UpToDay < upper {
			upper = t.UpToDay
		}
		total = total.Add(t.Rate.Mul(decimal.NewFromInt(int64(upper - prev))))
		if t.UpToDay == 0 {
			break
		}
		prev = t.UpToDay
	}
	return total
}
