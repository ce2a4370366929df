// Package dlq defines the dead-letter sink an outbox row is retired to once
// it exhausts its retry budget. It is append-only: nothing in this system
// ever reads a DLQEntry back into the outbox.
package dlq

import "time"

// Entry is one row of dead_letter_queue.
type Entry struct {
	ID                int64
	OriginalEventType string
	Payload           []byte // JSON
	RetryCount        int
	LastRetryAt       *time.Time
	FailureReason     string
	MovedToDLQAt      time.Time
}
