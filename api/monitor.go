/*
monitor.go - Periodic overdue and consistency check

PURPOSE:
  While the API is serving, periodically counts overdue loans and runs
  Library.Check so counter drift shows up in the logs instead of at the
  next stock-take.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Reads the library under the handler mutex, like any request
  - Reports nothing back to the library; it only logs and observes

USAGE:
  mon := NewOverdueMonitor(handler, logger)
  mon.Start()
  // ... later
  mon.Stop()

SEE ALSO:
  - library/library.go: Check
  - metrics/metrics.go: ObserveOverdue
*/
package api

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/warp/libris/library"
)

// OverdueObserver receives the overdue count after every check.
type OverdueObserver interface {
	ObserveOverdue(n int)
}

// CheckResult is the outcome of one monitor pass.
type CheckResult struct {
	OpenLoans int
	Overdue   int
	Problems  []error
}

// OverdueMonitor checks the library on a timer.
type OverdueMonitor struct {
	Handler       *Handler
	CheckInterval time.Duration
	Observer      OverdueObserver

	logger *zap.Logger
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewOverdueMonitor creates a monitor that checks hourly.
func NewOverdueMonitor(h *Handler, logger *zap.Logger) *OverdueMonitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OverdueMonitor{
		Handler:       h,
		CheckInterval: time.Hour,
		logger:        logger.With(zap.String("component", "overdue-monitor")),
	}
}

// Start begins the periodic check. Calling Start twice is a no-op.
func (m *OverdueMonitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ticker != nil {
		return
	}
	m.ticker = time.NewTicker(m.CheckInterval)
	m.stop = make(chan struct{})
	m.wg.Add(1)

	go m.run()

	m.logger.Info("started", zap.Duration("interval", m.CheckInterval))
}

// Stop stops the monitor and waits for a running check to finish.
func (m *OverdueMonitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ticker == nil {
		return
	}
	m.ticker.Stop()
	close(m.stop)
	m.wg.Wait()
	m.ticker = nil
	m.logger.Info("stopped")
}

func (m *OverdueMonitor) run() {
	defer m.wg.Done()

	// Run immediately on start
	m.RunNow()

	for {
		select {
		case <-m.ticker.C:
			m.RunNow()
		case <-m.stop:
			return
		}
	}
}

// RunNow performs one check and returns what it found.
func (m *OverdueMonitor) RunNow() CheckResult {
	var res CheckResult
	m.Handler.Locked(func(lib *library.Library) {
		open := lib.OpenLoans()
		res.OpenLoans = len(open)
		for _, v := range open {
			if v.DaysOverdue > 0 {
				res.Overdue++
			}
		}
		res.Problems = lib.Check()
	})

	for _, p := range res.Problems {
		m.logger.Warn("counter drift", zap.Error(p))
	}
	m.logger.Info("check complete",
		zap.Int("open_loans", res.OpenLoans),
		zap.Int("overdue", res.Overdue),
		zap.Int("problems", len(res.Problems)),
	)
	if m.Observer != nil {
		m.Observer.ObserveOverdue(res.Overdue)
	}
	return res
}
