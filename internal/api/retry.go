package api

import (
	"context"
	"crypto/rand"
	"errors"
	"math"
	"math/big"
	"time"
)

// permanentError marks a failure that another attempt cannot fix.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// retryWithBackoff retries fn with exponential backoff and jitter.
// Stops retrying immediately if fn returns a permanentError.
//
// maxRetries: maximum number of retry attempts (0 = no retry, just try once)
// initialDelay: delay before the first retry
//
// Backoff formula: delay = initialDelay * 2^attempt ± 25% jitter
// onRetry, if not nil, runs before every wait.
func retryWithBackoff(ctx context.Context, maxRetries int, initialDelay time.Duration, onRetry func(), fn func() error) error {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		var permErr *permanentError
		if errors.As(err, &permErr) {
			return permErr.Unwrap()
		}

		// Don't delay after the last attempt
		if attempt == maxRetries {
			break
		}

		if onRetry != nil {
			onRetry()
		}

		select {
		case <-time.After(backoffDelay(initialDelay, attempt)):
			continue
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return lastErr
}

func backoffDelay(initialDelay time.Duration, attempt int) time.Duration {
	delay := time.Duration(float64(initialDelay) * math.Pow(2, float64(attempt)))

	// Add jitter (±25%)
	halfDelay := int64(delay) / 2
	if halfDelay == 0 {
		halfDelay = 1
	}
	jitterBig, err := rand.Int(rand.Reader, big.NewInt(halfDelay))
	if err != nil {
		jitterBig = big.NewInt(0)
	}
	return delay - delay/4 + time.Duration(jitterBig.Int64())
}
