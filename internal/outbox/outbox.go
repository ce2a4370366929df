// Package outbox holds the OutboxEntry value type and the pure
// retry/backoff rules the publisher worker (internal/publisher) composes.
// Nothing here talks to Postgres or RabbitMQ directly.
package outbox

import "time"

// MaxRetries is the retry budget before a row is retired to the DLQ.
const MaxRetries = 5

// InitialBackoff and MaxBackoff bound the exponential backoff schedule:
// delay(n) = min(InitialBackoff * 2^(n-1), MaxBackoff).
const (
	InitialBackoff = 5 * time.Second
	MaxBackoff     = 300 * time.Second
)

// FailureReason is stamped onto the DLQ row when a row is retired.
const FailureReason = "Max retries (5) exceeded"

// Entry is one row of the outbox table — an event produced inside the same
// transaction as the state change that caused it, awaiting publish.
type Entry struct {
	ID          int64
	EventType   string
	Payload     []byte // JSON
	PublishedAt *time.Time
	RetryCount  int
	LastRetryAt *time.Time
}

// ShouldRetry reports whether an entry with the given retry count is still
// eligible for another publish attempt (true) or must be retired to the DLQ
// (false).
func ShouldRetry(retryCount int) bool {
	return retryCount < MaxRetries
}

// Delay returns the backoff window for the given retry count. A
// retryCount of 0 means the row has never failed, so the window is zero —
// the row is attempted immediately.
func Delay(retryCount int) time.Duration {
	if retryCount <= 0 {
		return 0
	}
	d := InitialBackoff
	for i := 1; i < retryCount; i++ {
		d *= 2
		if d >= MaxBackoff {
			return MaxBackoff
		}
	}
	if d > MaxBackoff {
		return MaxBackoff
	}
	return d
}

// ReadyToAttempt reports whether enough time has passed since lastRetryAt
// (nil means "never attempted") for the row to be tried again at now.
func ReadyToAttempt(retryCount int, lastRetryAt *time.Time, now time.Time) bool {
	if lastRetryAt == nil {
		return true
	}
	return now.Sub(*lastRetryAt) >= Delay(retryCount)
}
