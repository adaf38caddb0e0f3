/*
Package metrics records library activity in Prometheus form.

PURPOSE:
  Implements library.Recorder. The facade reports every mutation, every
  return and the dashboard numbers after each save; this package turns them
  into counters, histograms and gauges served on /metrics.

METRICS:
  libris_operations_total{op,result}         facade mutations by outcome
  libris_operation_duration_seconds{op}      mutation + save latency
  libris_returns_total{late}                 completed returns
  libris_return_days_late                    whole days late per return
  libris_fines_recorded_total                sum of fines charged
  libris_active_books, libris_active_members,
  libris_open_loans, libris_transactions,
  libris_active_member_fines                 dashboard gauges
  libris_overdue_loans                       set by the API overdue monitor

REGISTRY:
  Each Metrics owns its registry, so tests and multiple instances never
  collide on the global one.
*/
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/warp/libris/library"
)

const namespace = "libris"

// Operation results, the "result" label.
const (
	ResultOK          = "ok"
	ResultNotFound    = "not_found"
	ResultInvalid     = "invalid"
	ResultRejected    = "rejected"
	ResultCapacity    = "capacity"
	ResultPersistence = "persistence"
	ResultError       = "error"
)

// Metrics implements library.Recorder.
type Metrics struct {
	registry *prometheus.Registry

	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	returns    *prometheus.CounterVec
	daysLate   prometheus.Histogram
	fines      prometheus.Counter

	activeBooks   prometheus.Gauge
	activeMembers prometheus.Gauge
	openLoans     prometheus.Gauge
	transactions  prometheus.Gauge
	memberFines   prometheus.Gauge
	overdue       prometheus.Gauge
}

var _ library.Recorder = (*Metrics)(nil)

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Library mutations by operation and result",
		}, []string{"op", "result"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Time to apply and persist a mutation",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}, []string{"op"}),
		returns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "returns_total",
			Help:      "Completed returns, split by lateness",
		}, []string{"late"}),
		daysLate: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "return_days_late",
			Help:      "Whole days late per return",
			Buckets:   []float64{0, 1, 3, 7, 14, 30, 60},
		}),
		fines: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fines_recorded_total",
			Help:      "Sum of fines charged on return",
		}),

		activeBooks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_books",
			Help:      "Active catalog entries",
		}),
		activeMembers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_members",
			Help:      "Active members",
		}),
		openLoans: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_loans",
			Help:      "Copies currently out",
		}),
		transactions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "transactions",
			Help:      "Transactions ever recorded",
		}),
		memberFines: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_member_fines",
			Help:      "Recorded fines summed over active members",
		}),
		overdue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "overdue_loans",
			Help:      "Open loans past their due date at the last check",
		}),
	}

	m.registry.MustRegister(
		m.operations, m.latency, m.returns, m.daysLate, m.fines,
		m.activeBooks, m.activeMembers, m.openLoans, m.transactions, m.memberFines, m.overdue,
	)
	return m
}

// Registry exposes the registry for extra collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveOperation(op string, err error, took time.Duration) {
	m.operations.WithLabelValues(op, Result(err)).Inc()
	m.latency.WithLabelValues(op).Observe(took.Seconds())
}

func (m *Metrics) ObserveReturn(fine decimal.Decimal, daysLate int) {
	m.returns.WithLabelValues(strconv.FormatBool(daysLate > 0)).Inc()
	m.daysLate.Observe(float64(daysLate))
	if fine.IsPositive() {
		m.fines.Add(fine.InexactFloat64())
	}
}

func (m *Metrics) ObserveStats(s library.Stats) {
	m.activeBooks.Set(float64(s.ActiveBooks))
	m.activeMembers.Set(float64(s.ActiveMembers))
	m.openLoans.Set(float64(s.OpenLoans))
	m.transactions.Set(float64(s.Transactions))
	m.memberFines.Set(s.TotalFines.InexactFloat64())
}

// ObserveOverdue sets the overdue gauge.
func (m *Metrics) ObserveOverdue(n int) {
	m.overdue.Set(float64(n))
}

// Result maps an operation error to its "result" label.
func Result(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, library.ErrPersistence):
		return ResultPersistence
	case errors.Is(err, library.ErrNotFound):
		return ResultNotFound
	case errors.Is(err, library.ErrInvalidInput):
		return ResultInvalid
	case errors.Is(err, library.ErrCapacityExceeded):
		return ResultCapacity
	case library.IsRuleViolation(err):
		return ResultRejected
	default:
		return ResultError
	}
}
