package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/smallbiznis/boostd/internal/authorization"
	paymentdomain "github.com/smallbiznis/boostd/internal/payment/domain"
	"gorm.io/gorm"
)

func TestClassifySchedulerJobReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "deadline",
			err:  context.DeadlineExceeded,
			want: SchedulerJobReasonDeadlineExceeded,
		},
		{
			name: "forbidden",
			err:  authorization.ErrForbidden,
			want: SchedulerJobReasonForbidden,
		},
		{
			name: "insufficient_funds",
			err:  fmt.Errorf("charge renewal: %w", paymentdomain.ErrInsufficientFunds),
			want: SchedulerJobReasonInsufficientFunds,
		},
		{
			name: "declined",
			err:  paymentdomain.ErrPaymentDeclined,
			want: SchedulerJobReasonPaymentDeclined,
		},
		{
			name: "db_lock_timeout",
			err:  &pgconn.PgError{Code: "55P03"},
			want: SchedulerJobReasonDBLockTimeout,
		},
		{
			name: "serialization_failure",
			err:  &pgconn.PgError{Code: "40001"},
			want: SchedulerJobReasonSerializationFailure,
		},
		{
			name: "unique_violation",
			err:  gorm.ErrDuplicatedKey,
			want: SchedulerJobReasonUniqueViolation,
		},
		{
			name: "unknown",
			err:  errors.New("boom"),
			want: SchedulerJobReasonUnknown,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifySchedulerJobReason(tc.err); got != tc.want {
				t.Fatalf("expected reason %q, got %q", tc.want, got)
			}
		})
	}
}

func TestClassifySchedulerErrorType(t *testing.T) {
	if got := ClassifySchedulerErrorType(paymentdomain.ErrPaymentDeclined); got != SchedulerErrorTypePayment {
		t.Fatalf("expected payment, got %q", got)
	}
	if got := ClassifySchedulerErrorType(&pgconn.PgError{Code: "40001"}); got != SchedulerErrorTypeDB {
		t.Fatalf("expected db, got %q", got)
	}
	if got := ClassifySchedulerErrorType(errors.New("listing gone")); got != SchedulerErrorTypeBusinessRule {
		t.Fatalf("expected business_rule, got %q", got)
	}
}

func TestAddBatchProcessed(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := newSchedulerMetrics(registry, Config{
		ServiceName: "boostd",
		Environment: "test",
	})

	metrics.AddBatchProcessed("expire_boosts", "boosts", 3)

	got := testutil.ToFloat64(metrics.batchProcessed.WithLabelValues("expire_boosts", "boosts"))
	if got != 3 {
		t.Fatalf("expected processed count 3, got %v", got)
	}
}

func TestIncBoostTransition(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := newSchedulerMetrics(registry, Config{ServiceName: "boostd", Environment: "test"})

	metrics.IncBoostTransition("active", "expired", 2)
	metrics.IncBoostTransition("active", "expired", 0)

	got := testutil.ToFloat64(metrics.boostTransitions.WithLabelValues("active", "expired"))
	if got != 2 {
		t.Fatalf("expected 2 transitions, got %v", got)
	}
}
