package task

import (
	"context"
	"time"

	"github.com/phrazzld/taskhub-api/internal/domain"
)

// DelayPhase waits for d, or returns early with the context error.
func DelayPhase(d time.Duration) Phase {
	return func(ctx context.Context, _ *domain.Task) error {
		if d <= 0 {
			return ctx.Err()
		}
		timer := time.NewTimer(d)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		}
	}
}

// DelayPhases builds one DelayPhase per duration.
func DelayPhases(durations ...time.Duration) []Phase {
	phases := make([]Phase, len(durations))
	for i, d := range durations {
		phases[i] = DelayPhase(d)
	}
	return phases
}

// DefaultPhases simulates work with two steps of 2s and 3s.
func DefaultPhases() []Phase {
	return DelayPhases(2*time.Second, 3*time.Second)
}
