package playback

import (
	"context"
	"time"
)

// timerTick is the resolution of wall-clock timers.
const timerTick = 100 * time.Millisecond

// startWallClockTimer starts a timer that triggers callback after duration, using wall clock.
// Returns a cancel function.
func startWallClockTimer(duration time.Duration, callback func()) func() {
	ctx, cancel := context.WithCancel(context.Background())

	// Use manual wall clock calculation to avoid monotonic clock drift issues
	go func() {
		endTime := toWallTime(time.Now()).Add(duration)
		ticker := time.NewTicker(timerTick)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if toWallTime(time.Now()).After(endTime) {
					callback()
					return
				}
			}
		}
	}()

	return cancel
}

// toWallTime returns the time with monotonic clock stripped.
// This ensures that time differences are calculated using wall clock time,
// avoiding issues where the system monotonic clock runs faster/slower than real time.
func toWallTime(t time.Time) time.Time {
	return time.Unix(t.Unix(), int64(t.Nanosecond()))
}
