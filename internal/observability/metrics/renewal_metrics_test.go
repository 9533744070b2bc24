package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"gorm.io/gorm"
)

func TestClassifyCommitReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "deadline", err: context.DeadlineExceeded, want: CommitReasonDeadlineExceeded},
		{name: "db_lock_timeout", err: &pgconn.PgError{Code: "55P03"}, want: CommitReasonDBLockTimeout},
		{name: "serialization_failure", err: fmt.Errorf("commit: %w", &pgconn.PgError{Code: "40001"}), want: CommitReasonSerializationFailure},
		{name: "unique_violation", err: gorm.ErrDuplicatedKey, want: CommitReasonUniqueViolation},
		{name: "unknown", err: errors.New("boom"), want: CommitReasonUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifyCommitReason(tc.err); got != tc.want {
				t.Fatalf("expected reason %q, got %q", tc.want, got)
			}
		})
	}
}

func TestIsRetryableCommitError(t *testing.T) {
	if !IsRetryableCommitError(&pgconn.PgError{Code: "40001"}) {
		t.Fatalf("serialization failures should be retryable")
	}
	if IsRetryableCommitError(gorm.ErrDuplicatedKey) {
		t.Fatalf("unique violations should not be retryable")
	}
}

func TestRenewalMetricsCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewRenewalMetrics(registry, Config{ServiceName: "tenantdesk", Environment: "test"})

	m.IncCommit(CommitOutcomeCommitted)
	m.IncCommit(CommitOutcomeCommitted)
	m.IncCommitError(&pgconn.PgError{Code: "55P03"})
	m.ObserveLockWait(15 * time.Millisecond)
	m.SetOpenSessions(3)

	if got := testutil.ToFloat64(m.commits.WithLabelValues(CommitOutcomeCommitted)); got != 2 {
		t.Fatalf("expected 2 committed, got %v", got)
	}
	if got := testutil.ToFloat64(m.commitErrors.WithLabelValues(CommitReasonDBLockTimeout)); got != 1 {
		t.Fatalf("expected 1 lock timeout, got %v", got)
	}
	if got := testutil.ToFloat64(m.openSessions); got != 3 {
		t.Fatalf("expected 3 open sessions, got %v", got)
	}
}

func TestNilRenewalMetricsAreSafe(t *testing.T) {
	var m *RenewalMetrics
	m.IncCommit(CommitOutcomeLocked)
	m.IncCommitError(errors.New("x"))
	m.ObserveCommitDuration(time.Second)
}

func TestCommitDurationHistogram(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewRenewalMetrics(registry, Config{Environment: "test"})

	m.ObserveCommitDuration(20 * time.Millisecond)
	m.ObserveCommitDuration(300 * time.Millisecond)

	var out dto.Metric
	if err := m.commitLatency.Write(&out); err != nil {
		t.Fatalf("write histogram: %v", err)
	}
	hist := out.GetHistogram()
	if hist.GetSampleCount() != 2 {
		t.Fatalf("expected 2 samples, got %d", hist.GetSampleCount())
	}
	labels := map[string]string{}
	for _, pair := range out.GetLabel() {
		labels[pair.GetName()] = pair.GetValue()
	}
	if labels["service"] != "tenantdesk" || labels["env"] != "test" {
		t.Fatalf("unexpected const labels %v", labels)
	}
}
