package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyOrderCreated_StaleVersionIgnored(t *testing.T) {
	s := NewProcessingState("ord-1")
	s.Version = 3

	result := s.ApplyOrderCreated([]string{"widget"}, 10, 3, func() float64 { return 0.1 })

	assert.Equal(t, ResultIgnored, result.Status)
	assert.Equal(t, "stale_version", result.Reason)
	assert.Equal(t, 0, s.AttemptCount) // unmutated
}

func TestApplyOrderCreated_EmbargoedItemFails(t *testing.T) {
	for _, item := range []string{"pineapple_pizza", "teapot"} {
		s := NewProcessingState("ord-1")
		result := s.ApplyOrderCreated([]string{item}, 10, 1, func() float64 { return 0.0 })

		assert.Equal(t, ResultFailed, result.Status)
		assert.Equal(t, "Pineapple/teapot embargo", result.Reason)
		assert.Equal(t, ProcessingFailed, s.Status)
		assert.Equal(t, 1, s.AttemptCount)
	}
}

func TestApplyOrderCreated_PotatoFails(t *testing.T) {
	s := NewProcessingState("ord-1")
	result := s.ApplyOrderCreated([]string{"potato"}, 10, 1, func() float64 { return 0.0 })

	assert.Equal(t, ResultFailed, result.Status)
	assert.Equal(t, "Too fatty food", result.Reason)
}

func TestApplyOrderCreated_RandomSuccess(t *testing.T) {
	s := NewProcessingState("ord-1")
	result := s.ApplyOrderCreated([]string{"widget"}, 10, 1, func() float64 { return 0.5 })

	assert.Equal(t, ResultSuccess, result.Status)
	assert.Empty(t, result.Reason)
	assert.Equal(t, ProcessingDone, s.Status)
	assert.Empty(t, s.LastError)
}

func TestApplyOrderCreated_RandomFailure(t *testing.T) {
	s := NewProcessingState("ord-1")
	result := s.ApplyOrderCreated([]string{"widget"}, 10, 1, func() float64 { return 0.9 })

	assert.Equal(t, ResultFailed, result.Status)
	assert.Equal(t, "Random failure", result.Reason)
	assert.Equal(t, ProcessingFailed, s.Status)
}

func TestApplyOrderCreated_BoundaryAtPointSix(t *testing.T) {
	s := NewProcessingState("ord-1")
	result := s.ApplyOrderCreated([]string{"widget"}, 10, 1, func() float64 { return 0.6 })
	assert.Equal(t, ResultSuccess, result.Status)
}

func TestApplyOrderCreated_VersionAdvancesMonotonically(t *testing.T) {
	s := NewProcessingState("ord-1")
	s.ApplyOrderCreated([]string{"widget"}, 10, 1, func() float64 { return 0.5 })
	assert.Equal(t, 1, s.Version)

	s.ApplyOrderCreated([]string{"widget"}, 10, 5, func() float64 { return 0.5 })
	assert.Equal(t, 5, s.Version)
	assert.Equal(t, 2, s.AttemptCount)
}
