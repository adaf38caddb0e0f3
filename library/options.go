package library

import (
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Limits are soft capacity limits per table. Zero means unlimited.
type Limits struct {
	Books        int
	Members      int
	Transactions int
}

// DefaultLimits mirrors the sizes the desk has always run with.
func DefaultLimits() Limits {
	return Limits{Books: 500, Members: 200, Transactions: 1000}
}

func (l Limits) validate() error {
	if l.Books < 0 || l.Members < 0 || l.Transactions < 0 {
		return invalid("limits", "must not be negative")
	}
	return nil
}

// Config holds everything Open needs besides the Store. Use Option values
// rather than building it by hand.
type Config struct {
	Limits  Limits
	Rules   LendingRules
	Clock   func() time.Time
	Logger  *zap.Logger
	Metrics Recorder
}

// DefaultConfig returns the stock limits and lending rules, the wall clock,
// a no-op logger and a no-op recorder.
func DefaultConfig() *Config {
	return &Config{
		Limits:  DefaultLimits(),
		Rules:   DefaultLendingRules(),
		Clock:   time.Now,
		Logger:  zap.NewNop(),
		Metrics: NopRecorder{},
	}
}

// Option is a functional option applied to Config during Open.
type Option func(*Config)

// WithLimits sets the capacity limits.
func WithLimits(l Limits) Option {
	return func(c *Config) { c.Limits = l }
}

// WithLendingRules sets loan period, issue limit and fine tiers together.
func WithLendingRules(r LendingRules) Option {
	return func(c *Config) { c.Rules = r }
}

// WithFinePolicy replaces only the fine tiers.
func WithFinePolicy(p FinePolicy) Option {
	return func(c *Config) { c.Rules.Fines = p }
}

// WithClock sets the time source used for issue and return timestamps.
func WithClock(clock func() time.Time) Option {
	return func(c *Config) { c.Clock = clock }
}

// WithLogger sets the logger. A nil logger is ignored.
func WithLogger(l *zap.Logger) Option {
	return func(c *Config) {
		if l != nil {
			c.Logger = l
		}
	}
}

// WithMetrics sets the activity recorder. A nil recorder is ignored.
func WithMetrics(r Recorder) Option {
	return func(c *Config) {
		if r != nil {
			c.Metrics = r
		}
	}
}

func (c *Config) validate() error {
	if err := c.Limits.validate(); err != nil {
		return err
	}
	if c.Clock == nil {
		return invalid("clock", "must not be nil")
	}
	return c.Rules.Validate()
}

// =============================================================================
// RECORDER - activity metrics hook
// =============================================================================

// Recorder receives activity events. The metrics package implements it with
// prometheus; the default drops everything.
type Recorder interface {
	// ObserveOperation is called once per facade mutation.
	ObserveOperation(op string, err error, took time.Duration)

	// ObserveReturn is called for every completed return.
	ObserveReturn(fine decimal.Decimal, daysLate int)

	// ObserveStats is called after load and after every saved mutation.
	ObserveStats(s Stats)
}

// NopRecorder discards every event.
type NopRecorder struct{}

func (NopRecorder) ObserveOperation(string, error, time.Duration) {}
func (NopRecorder) ObserveReturn(decimal.Decimal, int)            {}
func (NopRecorder) ObserveStats(Stats)                            {}
