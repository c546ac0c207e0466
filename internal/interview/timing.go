package interview

import "time"

// Timings names every settle delay the engine schedules. Each scheduled task
// is cancellable and replaced, never stacked, on state change.
type Timings struct {
	// PreSpeakDelay is the pause between popping a job and dispatching it to
	// the synthesizer.
	PreSpeakDelay time.Duration
	// FirstPromptDelay separates the end of the greeting from the first
	// question.
	FirstPromptDelay time.Duration
	// EnableListenDelay is the pause after a question finishes before the
	// user's turn opens.
	EnableListenDelay time.Duration
	// ListenStartDelay is the pause before the recognizer start sequence runs,
	// letting synthesis fully settle.
	ListenStartDelay time.Duration
	// RestartDelay separates the recognizer abort from the subsequent start.
	RestartDelay time.Duration
	// AdvanceDelay separates a recorded answer from the next prompt.
	AdvanceDelay time.Duration
	// NetworkRetryDelay is the one-shot recognizer restart backoff after a
	// network error.
	NetworkRetryDelay time.Duration
}

// DefaultTimings returns the production delays.
func DefaultTimings() Timings {
	return Timings{
		PreSpeakDelay:     300 * time.Millisecond,
		FirstPromptDelay:  1000 * time.Millisecond,
		EnableListenDelay: 800 * time.Millisecond,
		ListenStartDelay:  800 * time.Millisecond,
		RestartDelay:      100 * time.Millisecond,
		AdvanceDelay:      300 * time.Millisecond,
		NetworkRetryDelay: 2000 * time.Millisecond,
	}
}
