package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

const (
	CommitOutcomeCommitted           = "committed"
	CommitOutcomeInsufficientPayment = "insufficient_payment"
	CommitOutcomeStaleTenant         = "stale_tenant"
	CommitOutcomeLocked              = "locked"
	CommitOutcomeError               = "error"
)

const (
	CommitReasonDeadlineExceeded     = "deadline_exceeded"
	CommitReasonDBLockTimeout        = "db_lock_timeout"
	CommitReasonSerializationFailure = "serialization_failure"
	CommitReasonUniqueViolation      = "unique_violation"
	CommitReasonUnknown              = "unknown"
)

// RenewalMetrics exposes commit health on the Prometheus /metrics endpoint.
type RenewalMetrics struct {
	commits       *prometheus.CounterVec
	commitErrors  *prometheus.CounterVec
	commitLatency prometheus.Histogram
	lockWait      prometheus.Histogram
	openSessions  prometheus.Gauge
}

var (
	renewalMetricsOnce sync.Once
	renewalMetrics     *RenewalMetrics
)

// Renewal returns the process-wide renewal metrics registered on the default registerer.
func Renewal(cfg Config) *RenewalMetrics {
	renewalMetricsOnce.Do(func() {
		renewalMetrics = NewRenewalMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return renewalMetrics
}

// NewRenewalMetrics registers the collectors on registerer. Tests pass their own registry.
func NewRenewalMetrics(registerer prometheus.Registerer, cfg Config) *RenewalMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "tenantdesk"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	commits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "tenantdesk_renewal_commits_total",
		Help:        "Renewal commit attempts by outcome.",
		ConstLabels: constLabels,
	}, []string{"outcome"})
	commitErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "tenantdesk_renewal_commit_errors_total",
		Help:        "Renewal commits that failed in the database, by reason.",
		ConstLabels: constLabels,
	}, []string{"reason"})
	commitLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "tenantdesk_renewal_commit_duration_seconds",
		Help:        "Time spent in the renewal commit transaction.",
		ConstLabels: constLabels,
		Buckets:     []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	})
	lockWait := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "tenantdesk_renewal_lock_wait_seconds",
		Help:        "Time spent waiting for the per-tenant commit lock.",
		ConstLabels: constLabels,
		Buckets:     []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
	})
	openSessions := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "tenantdesk_renewal_open_sessions",
		Help:        "Renewals currently open in this process.",
		ConstLabels: constLabels,
	})

	registerer.MustRegister(commits, commitErrors, commitLatency, lockWait, openSessions)

	return &RenewalMetrics{
		commits:       commits,
		commitErrors:  commitErrors,
		commitLatency: commitLatency,
		lockWait:      lockWait,
		openSessions:  openSessions,
	}
}

func (m *RenewalMetrics) IncCommit(outcome string) {
	if m == nil {
		return
	}
	m.commits.WithLabelValues(outcome).Inc()
}

// IncCommitError records a database failure under a low-cardinality reason.
func (m *RenewalMetrics) IncCommitError(err error) {
	if m == nil {
		return
	}
	m.commits.WithLabelValues(CommitOutcomeError).Inc()
	m.commitErrors.WithLabelValues(ClassifyCommitReason(err)).Inc()
}

func (m *RenewalMetrics) ObserveCommitDuration(duration time.Duration) {
	if m == nil {
		return
	}
	m.commitLatency.Observe(duration.Seconds())
}

func (m *RenewalMetrics) ObserveLockWait(duration time.Duration) {
	if m == nil {
		return
	}
	m.lockWait.Observe(duration.Seconds())
}

func (m *RenewalMetrics) SetOpenSessions(n int) {
	if m == nil {
		return
	}
	m.openSessions.Set(float64(n))
}

// ClassifyCommitReason maps commit errors to low-cardinality reasons.
func ClassifyCommitReason(err error) string {
	if err == nil {
		return CommitReasonUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return CommitReasonDeadlineExceeded
	}
	if hasPGCode(err, "55P03") {
		return CommitReasonDBLockTimeout
	}
	if hasPGCode(err, "40001") {
		return CommitReasonSerializationFailure
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || hasPGCode(err, "23505") {
		return CommitReasonUniqueViolation
	}
	return CommitReasonUnknown
}

// IsRetryableCommitError reports whether an operator may simply retry the commit.
func IsRetryableCommitError(err error) bool {
	switch ClassifyCommitReason(err) {
	case CommitReasonDBLockTimeout, CommitReasonSerializationFailure, CommitReasonDeadlineExceeded:
		return true
	default:
		return false
	}
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}
