package usecase

import (
	"sync"
	"time"
)

// MaxProgress is where the progress ring saturates.
const MaxProgress = 100

// ProgressAnimator schedules progress ticks on a fixed period. The owner applies
// them to the session.
type ProgressAnimator struct {
	Period time.Duration
}

func NewProgressAnimator(period time.Duration) *ProgressAnimator {
	return &ProgressAnimator{Period: period}
}

// Start calls step on every tick until step returns false or stop is called.
// stop is idempotent and does not wait for an in-flight step.
func (a *ProgressAnimator) Start(step func() bool) (stop func()) {
	done := make(chan struct{})
	var once sync.Once
	stop = func() { once.Do(func() { close(done) }) }

	ticker := time.NewTicker(a.Period)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				select {
				case <-done:
					return
				default:
				}
				if !step() {
					stop()
					return
				}
			}
		}
	}()
	return stop
}

// Advance returns the next progress value, saturating at MaxProgress.
func Advance(progress int) int {
	if progress >= MaxProgress {
		return MaxProgress
	}
	return progress + 1
}
