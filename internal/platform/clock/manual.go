package clock

import (
	"sort"
	"sync"
	"time"
)

// Manual is a Clock and Scheduler whose time only moves when Advance is
// called. Frames run only when FlushFrames is called.
type Manual struct {
	mu     sync.Mutex
	now    time.Time
	seq    int
	timers map[int]*manualTimer
	frames map[int]func()
}

type manualTimer struct {
	id       int
	due      time.Time
	interval time.Duration
	fn       func()
}

func NewManual(start time.Time) *Manual {
	return &Manual{now: start, timers: map[int]*manualTimer{}, frames: map[int]func(){}}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) Every(interval time.Duration, fn func()) Cancel {
	return m.add(interval, interval, fn)
}

func (m *Manual) AfterFunc(delay time.Duration, fn func()) Cancel {
	return m.add(delay, 0, fn)
}

func (m *Manual) Frame(fn func()) Cancel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	id := m.seq
	m.frames[id] = fn
	return func() {
		m.mu.Lock()
		delete(m.frames, id)
		m.mu.Unlock()
	}
}

func (m *Manual) add(delay, interval time.Duration, fn func()) Cancel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	id := m.seq
	m.timers[id] = &manualTimer{id: id, due: m.now.Add(delay), interval: interval, fn: fn}
	return func() {
		m.mu.Lock()
		delete(m.timers, id)
		m.mu.Unlock()
	}
}

// Advance moves time forward by d, firing due timers in order. Callbacks run
// without the internal lock held and may schedule further timers.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()
	for {
		m.mu.Lock()
		next := m.nextDueLocked(target)
		if next == nil {
			m.now = target
			m.mu.Unlock()
			return
		}
		if next.due.After(m.now) {
			m.now = next.due
		}
		if next.interval > 0 {
			next.due = next.due.Add(next.interval)
		} else {
			delete(m.timers, next.id)
		}
		fn := next.fn
		m.mu.Unlock()
		fn()
	}
}

func (m *Manual) nextDueLocked(target time.Time) *manualTimer {
	due := make([]*manualTimer, 0, len(m.timers))
	for _, t := range m.timers {
		if !t.due.After(target) {
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].due.Equal(due[j].due) {
			return due[i].id < due[j].id
		}
		return due[i].due.Before(due[j].due)
	})
	return due[0]
}

// FlushFrames runs every frame callback requested so far.
func (m *Manual) FlushFrames() {
	m.mu.Lock()
	ids := make([]int, 0, len(m.frames))
	for id := range m.frames {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, m.frames[id])
		delete(m.frames, id)
	}
	m.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// PendingFrames reports how many frame callbacks are waiting.
func (m *Manual) PendingFrames() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.frames)
}

// PendingTimers reports how many timers and intervals are scheduled.
func (m *Manual) PendingTimers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}
