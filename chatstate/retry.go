package chatstate

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"
	"time"

	apperrors "filechat/errors"

	"go.uber.org/zap"
)

// RetryConfig bounds the retry loop applied to read queries. One config is
// shared across all reads; writes never retry.
type RetryConfig struct {
	Attempts    int
	Delay       time.Duration
	MaxDelay    time.Duration
	JitterRatio float64
}

// withRetry runs fn up to the configured number of attempts, sleeping with
// exponential backoff between failures. Only errors classified as transient
// are retried; everything else returns immediately.
func (c *Cache) withRetry(ctx context.Context, op string, fn func() error) error {
	attempts := c.retry.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		classified := classifyStoreError(err)
		lastErr = classified
		if !apperrors.IsRetryable(classified) || ctx.Err() != nil {
			return classified
		}
		if attempt < attempts-1 {
			c.logger.Warn("Retrying store read",
				zap.String("op", op),
				zap.Int("attempt", attempt+1),
				zap.Error(err))
			c.backoffSleep(attempt)
		}
	}
	return lastErr
}

func (c *Cache) backoffSleep(attempt int) {
	// Exponential backoff with configurable jitter and cap
	base := c.retry.Delay
	if base <= 0 {
		base = time.Second // config normalization should prevent this
	}
	d := base * time.Duration(1<<attempt)
	maxWait := c.retry.MaxDelay
	if maxWait > 0 && d > maxWait {
		d = maxWait
	}
	jitterRatio := c.retry.JitterRatio
	if jitterRatio < 0 || jitterRatio > 1 {
		jitterRatio = 0.1
	}
	jitter := time.Duration(float64(d) * jitterRatio)
	time.Sleep(d - jitter + time.Duration(time.Now().UnixNano()%int64(2*jitter+1)))
}

// classifyStoreError maps raw store failures onto the application error
// taxonomy. Errors that already carry a known kind pass through unchanged.
func classifyStoreError(err error) error {
	if err == nil {
		return nil
	}
	if apperrors.Kind(err) != apperrors.KindUnknown {
		return err
	}

	var netErr net.Error
	switch {
	case errors.As(err, &netErr),
		errors.Is(err, context.DeadlineExceeded):
		return apperrors.WrapError(apperrors.ErrNetwork, err.Error())
	case errors.Is(err, sql.ErrConnDone),
		errors.Is(err, driver.ErrBadConn),
		errors.Is(err, sql.ErrTxDone):
		return apperrors.WrapError(apperrors.ErrStoreUnavailable, err.Error())
	case errors.Is(err, sql.ErrNoRows):
		return apperrors.WrapError(apperrors.ErrNoData, err.Error())
	}
	return apperrors.WrapError(apperrors.ErrUnknown, err.Error())
}
