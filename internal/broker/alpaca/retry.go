package alpaca

import "time"

// RetryPolicy bounds the attempts of one logical request and decides which
// responses are worth retrying. It is independent of any endpoint.
type RetryPolicy struct {
	// MaxAttempts counts the first try too; 3 means 2 retries.
	MaxAttempts int
	// Backoff returns the sleep before the retry following attempt
	// (0-based attempt index).
	Backoff func(attempt int) time.Duration
	// RetryStatus reports whether an HTTP status should be retried.
	RetryStatus func(status int) bool
}

// DefaultRetryPolicy mirrors the brokerage call contract: 3 attempts total,
// linear (attempt+1)*unit backoff, retry on 429 and 5xx.
func DefaultRetryPolicy(unit time.Duration) RetryPolicy {
	if unit <= 0 {
		unit = 2 * time.Second
	}
	return RetryPolicy{
		MaxAttempts: 3,
		Backoff: func(attempt int) time.Duration {
			return time.Duration(attempt+1) * unit
		},
		RetryStatus: func(status int) bool {
			return status == 429 || status >= 500
		},
	}
}
