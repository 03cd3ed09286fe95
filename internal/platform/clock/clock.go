package clock

import (
	"sync"
	"time"
)

// Clock abstracts time to keep usecases deterministic in tests.
type Clock interface {
	Now() time.Time
}

// Cancel stops a scheduled callback. After it returns the callback is not
// started again; a run already in progress may still finish.
type Cancel func()

// Scheduler abstracts timers so the engine's interval, debounce and frame
// coalescing can be driven manually in tests.
type Scheduler interface {
	Every(interval time.Duration, fn func()) Cancel
	AfterFunc(delay time.Duration, fn func()) Cancel
	// Frame runs fn on the next render frame.
	Frame(fn func()) Cancel
}

// FrameInterval approximates one animation frame at 60Hz.
const FrameInterval = 16 * time.Millisecond

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

type SystemScheduler struct{}

func (SystemScheduler) Every(interval time.Duration, fn func()) Cancel {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
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
				fn()
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			ticker.Stop()
			close(done)
		})
	}
}

func (SystemScheduler) AfterFunc(delay time.Duration, fn func()) Cancel {
	timer := time.AfterFunc(delay, fn)
	return func() { timer.Stop() }
}

func (s SystemScheduler) Frame(fn func()) Cancel {
	return s.AfterFunc(FrameInterval, fn)
}
