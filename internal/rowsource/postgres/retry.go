package postgres

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ashita-ai/tracelens/internal/telemetry"
)

// retriableCodes are the SQLSTATE codes of transient conflicts.
var retriableCodes = map[string]string{
	"40001": "serialization_failure",
	"40P01": "deadlock_detected",
}

var retries = sync.OnceValue(func() metric.Int64Counter {
	c, _ := telemetry.Meter("tracelens/rowsource/postgres").Int64Counter(
		"tracelens.rowsource.retries",
		metric.WithDescription("Postgres queries retried after a transient conflict"),
	)
	return c
})

// retryCode returns the condition name of a retriable error, or "" when err
// should not be retried.
func retryCode(err error) string {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return ""
	}
	return retriableCodes[pgErr.Code]
}

// backoff returns the delay before retry number attempt (0-based): base
// doubled per attempt plus up to one base of jitter.
func backoff(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	d := base << attempt
	return d + time.Duration(rand.Int64N(int64(base))) //nolint:gosec // jitter doesn't need crypto-strength randomness
}

// WithRetry runs fn and reruns it up to maxRetries times while it fails with
// a serialization failure or deadlock. Other errors return immediately.
func WithRetry(ctx context.Context, maxRetries int, baseDelay time.Duration, fn func() error) error {
	for attempt := 0; ; attempt++ {
		err := fn()
		code := retryCode(err)
		if err == nil || code == "" || attempt == maxRetries {
			return err
		}
		retries().Add(ctx, 1, metric.WithAttributes(attribute.String("condition", code)))

		timer := time.NewTimer(backoff(baseDelay, attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
