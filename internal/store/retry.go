package store

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/leadscout/leadscout/internal/metrics"
)

// maxAttempts is the fixed retry ceiling for every store operation.
const maxAttempts = 3

// transientCodes is the narrow class of Postgres errors worth retrying.
// Anything outside it (malformed query, constraint violation) propagates
// immediately.
var transientCodes = map[string]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"53300": true, // too_many_connections
	"57P01": true, // admin_shutdown
	"08000": true, // connection_exception
	"08003": true, // connection_does_not_exist
	"08006": true, // connection_failure
}

// IsTransient reports whether err belongs to the retryable server-error
// class.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return transientCodes[pgErr.Code]
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

// withRetry runs fn up to maxAttempts times, waiting delay between attempts,
// retrying only transient errors. The final error is surfaced untouched.
func withRetry(ctx context.Context, logger *zap.Logger, op string, delay time.Duration, fn func() error) error {
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !IsTransient(err) {
			logger.Error("store operation failed",
				zap.String("op", op),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			return err
		}
		if attempt == maxAttempts {
			break
		}
		metrics.ObserveStoreRetry(op)
		logger.Warn("transient store error, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	logger.Error("store operation exhausted retries",
		zap.String("op", op),
		zap.Int("attempts", maxAttempts),
		zap.Error(err),
	)
	return err
}
