package domain

// ProcessingState values.
const (
	ProcessingReceived = "received"
	ProcessingDone     = "done"
	ProcessingFailed   = "failed"
)

// Result statuses returned by ApplyOrderCreated. "ignored" means the
// incoming event's version did not move the state forward and nothing
// changed; "success"/"failed" mirror the order.processed wire status.
const (
	ResultIgnored = "ignored"
	ResultSuccess = "success"
	ResultFailed  = "failed"
)

// embargoedItems never succeed processing, regardless of the random draw.
var embargoedItems = map[string]bool{
	"pineapple_pizza": true,
	"teapot":          true,
}

// ProcessingResult is the outcome of applying one order.created event to a
// ProcessingState: what to report back (and, when non-ignored, what to
// publish as order.processed).
type ProcessingResult struct {
	Status string
	Reason string // empty when Status == ResultSuccess; "stale_version" when ResultIgnored
}

// ProcessingState is the Processor Service's aggregate, one per order_id.
type ProcessingState struct {
	OrderID       string
	Version       int
	Status        string
	AttemptCount  int
	LastError     string
}

// NewProcessingState returns a freshly-received state for an order the
// Processor Service has not seen before.
func NewProcessingState(orderID string) *ProcessingState {
	return &ProcessingState{OrderID: orderID, Version: 0, Status: ProcessingReceived}
}

// ApplyOrderCreated applies spec.md §4.2's business rules in order and
// mutates the state accordingly. rnd is injected so tests can force both
// branches of the random outcome deterministically; callers pass
// math/rand.Float64 in production.
func (s *ProcessingState) ApplyOrderCreated(items []string, amount float64, incomingVersion int, rnd func() float64) ProcessingResult {
	if incomingVersion <= s.Version {
		return ProcessingResult{Status: ResultIgnored, Reason: "stale_version"}
	}

	s.Version = incomingVersion
	s.AttemptCount++

	for _, item := range items {
		if embargoedItems[item] {
			s.Status = ProcessingFailed
			s.LastError = "Pineapple/teapot embargo"
			return ProcessingResult{Status: ResultFailed, Reason: s.LastError}
		}
	}

	for _, item := range items {
		if item == "potato" {
			s.Status = ProcessingFailed
			s.LastError = "Too fatty food"
			return ProcessingResult{Status: ResultFailed, Reason: s.LastError}
		}
	}

	if rnd() <= 0.6 {
		s.Status = ProcessingDone
		s.LastError = ""
		return ProcessingResult{Status: ResultSuccess}
	}

	s.Status = ProcessingFailed
	s.LastError = "Random failure"
	return ProcessingResult{Status: ResultFailed, Reason: s.LastError}
}
