package outbox

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDelay_MatchesSpecTable(t *testing.T) {
	cases := map[int]time.Duration{
		1:  5 * time.Second,
		2:  10 * time.Second,
		3:  20 * time.Second,
		4:  40 * time.Second,
		10: 300 * time.Second,
	}
	for retryCount, want := range cases {
		assert.Equal(t, want, Delay(retryCount), "retryCount=%d", retryCount)
	}
}

func TestDelay_ZeroRetriesIsImmediate(t *testing.T) {
	assert.Equal(t, time.Duration(0), Delay(0))
}

func TestShouldRetry(t *testing.T) {
	for rc := 0; rc < MaxRetries; rc++ {
		assert.True(t, ShouldRetry(rc), "retryCount=%d", rc)
	}
	assert.False(t, ShouldRetry(MaxRetries))
	assert.False(t, ShouldRetry(MaxRetries+1))
}

func TestReadyToAttempt(t *testing.T) {
	now := time.Now()

	assert.True(t, ReadyToAttempt(0, nil, now))

	last := now.Add(-4 * time.Second)
	assert.False(t, ReadyToAttempt(1, &last, now)) // needs 5s, only 4s elapsed

	last = now.Add(-6 * time.Second)
	assert.True(t, ReadyToAttempt(1, &last, now))
}
