package service_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"focusdeck/internal/modules/deck/domain"
	"focusdeck/internal/modules/deck/port/out"
	"focusdeck/internal/modules/deck/service"
	"focusdeck/internal/platform/clock"
)

var testStart = time.Date(2026, 2, 21, 9, 0, 0, 0, time.Local)

type fakeViewport struct {
	mu        sync.Mutex
	height    float64
	scroll    float64
	visible   bool
	seq       int
	listeners map[int]func(out.ViewportEvent)
}

func newFakeViewport(height float64) *fakeViewport {
	return &fakeViewport{height: height, visible: true, listeners: map[int]func(out.ViewportEvent){}}
}

func (v *fakeViewport) Height() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.height
}

func (v *fakeViewport) Visible() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.visible
}

func (v *fakeViewport) ScrollTop() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.scroll
}

func (v *fakeViewport) OnViewportChange(fn func(out.ViewportEvent)) func() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.seq++
	id := v.seq
	v.listeners[id] = fn
	return func() {
		v.mu.Lock()
		delete(v.listeners, id)
		v.mu.Unlock()
	}
}

func (v *fakeViewport) setVisible(visible bool) {
	v.mu.Lock()
	v.visible = visible
	v.mu.Unlock()
}

func (v *fakeViewport) scrollTo(offset float64, kind out.ViewportEventType) {
	v.mu.Lock()
	v.scroll = offset
	fns := make([]func(out.ViewportEvent), 0, len(v.listeners))
	for _, fn := range v.listeners {
		fns = append(fns, fn)
	}
	v.mu.Unlock()
	for _, fn := range fns {
		fn(out.ViewportEvent{Type: kind})
	}
}

func (v *fakeViewport) listenerCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.listeners)
}

type fakePost struct {
	feed   *fakeFeed
	id     string
	top    float64
	height float64
}

func (p *fakePost) Rect() domain.Rect {
	scroll := p.feed.viewport.ScrollTop()
	p.feed.mu.Lock()
	defer p.feed.mu.Unlock()
	return domain.Rect{Top: p.top - scroll, Height: p.height}
}

type fakeFeed struct {
	viewport *fakeViewport

	mu            sync.Mutex
	posts         []*fakePost
	observers     map[int]func()
	seq           int
	focusCalls    []string
	lazyLoads     int
	bookmarked    []string
	actionResult  domain.ActionResult
	actionErr     error
	mutateOnFocus bool
}

func newFakeFeed(viewport *fakeViewport, height float64, tops map[string]float64, order ...string) *fakeFeed {
	f := &fakeFeed{viewport: viewport, observers: map[int]func(){}, actionResult: domain.ActionResult{OK: true}}
	for _, id := range order {
		f.posts = append(f.posts, &fakePost{feed: f, id: id, top: tops[id], height: height})
	}
	return f
}

func (f *fakeFeed) ID() string              { return "fake" }
func (f *fakeFeed) Name() string            { return "Fake" }
func (f *fakeFeed) SupportsURL(string) bool { return true }
func (f *fakeFeed) Viewport() out.Viewport  { return f.viewport }

func (f *fakeFeed) TriggerLazyLoad(*domain.PostHandle) {
	f.mu.Lock()
	f.lazyLoads++
	f.mu.Unlock()
}

func (f *fakeFeed) FeedItems() []domain.PostHandle {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := make([]domain.PostHandle, 0, len(f.posts))
	for _, p := range f.posts {
		items = append(items, domain.PostHandle{ID: p.id, Element: p})
	}
	return items
}

func (f *fakeFeed) FocusItem(h domain.PostHandle) {
	f.mu.Lock()
	f.focusCalls = append(f.focusCalls, h.ID)
	mutate := f.mutateOnFocus
	f.mu.Unlock()
	if mutate {
		f.notify()
	}
}

func (f *fakeFeed) PostMeta(h domain.PostHandle) (domain.PostMeta, bool) {
	return domain.PostMeta{ID: h.ID, Text: "post " + h.ID}, true
}

func (f *fakeFeed) NotInterested(context.Context, domain.PostHandle) (domain.ActionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.actionResult, f.actionErr
}

func (f *fakeFeed) Bookmark(_ context.Context, h domain.PostHandle) (domain.ActionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.actionResult.OK && f.actionErr == nil {
		f.bookmarked = append(f.bookmarked, h.ID)
	}
	return f.actionResult, f.actionErr
}

func (f *fakeFeed) ObserveFeedChanges(fn func()) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	id := f.seq
	f.observers[id] = fn
	return func() {
		f.mu.Lock()
		delete(f.observers, id)
		f.mu.Unlock()
	}
}

// moveTop changes a post's layout position and notifies observers the way a
// hydrating feed would.
func (f *fakeFeed) moveTop(id string, top float64) {
	f.place(id, top)
	f.notify()
}

// place moves a post without telling observers.
func (f *fakeFeed) place(id string, top float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.posts {
		if p.id == id {
			p.top = top
		}
	}
}

func (f *fakeFeed) notify() {
	f.mu.Lock()
	fns := make([]func(), 0, len(f.observers))
	for _, fn := range f.observers {
		fns = append(fns, fn)
	}
	f.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (f *fakeFeed) observerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.observers)
}

// keyedFeed maps handle ids to progress keys. Ids missing from keys have
// no key.
type keyedFeed struct {
	*fakeFeed
	keys map[string]string
}

func (f *keyedFeed) ProgressKey(h domain.PostHandle) (string, bool) {
	key, ok := f.keys[h.ID]
	return key, ok
}

// brokenFeed reports a failed load.
type brokenFeed struct {
	*fakeFeed
	err error
}

func (f *brokenFeed) LastError() error { return f.err }

// reentrantFeed fires one feed mutation from inside the engine lock, the
// way a host page can re-render while the engine reads it.
type reentrantFeed struct {
	*fakeFeed
	armed atomic.Bool
}

func (f *reentrantFeed) LastError() error {
	if f.armed.Swap(false) {
		f.notify()
	}
	return nil
}

type fakeStore struct {
	mu        sync.Mutex
	snapshot  *domain.SessionSnapshot
	usage     *domain.DailyUsage
	saves     int
	clears    int
	failSaves bool
}

func (s *fakeStore) LoadSnapshot(context.Context) (*domain.SessionSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshot == nil {
		return nil, nil
	}
	snap := s.snapshot.Clone()
	return &snap, nil
}

func (s *fakeStore) SaveSnapshot(_ context.Context, snap domain.SessionSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSaves {
		return errors.New("disk full")
	}
	s.saves++
	s.snapshot = &snap
	return nil
}

func (s *fakeStore) ClearSnapshot(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clears++
	s.snapshot = nil
	return nil
}

func (s *fakeStore) LoadUsage(context.Context) (*domain.DailyUsage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usage, nil
}

func (s *fakeStore) SaveUsage(_ context.Context, usage domain.DailyUsage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usage = &usage
	return nil
}

func (s *fakeStore) savedUsage() *domain.DailyUsage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usage
}

func (s *fakeStore) saved() (*domain.SessionSnapshot, int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot, s.saves, s.clears
}

type harness struct {
	clock    *clock.Manual
	viewport *fakeViewport
	feed     *fakeFeed
	store    *fakeStore
	engine   *service.Engine

	mu          sync.Mutex
	summaries   []domain.SessionSummary
	limitHits   int
	usageEvents []domain.DailyUsage
}

type harnessOption func(*service.EngineDeps)

func withLimits(limits domain.DailyLimitsConfig, usage domain.DailyUsage) harnessOption {
	return func(d *service.EngineDeps) {
		d.Limits = limits
		d.Usage = usage
	}
}

func withCallbacks(countProgress, countTime func() bool) harnessOption {
	return func(d *service.EngineDeps) {
		d.Callbacks.CanCountProgress = countProgress
		d.Callbacks.CanCountTime = countTime
	}
}

func withAdapter(adapter out.Adapter) harnessOption {
	return func(d *service.EngineDeps) {
		d.Adapter = adapter
	}
}

func newHarness(t testing.TB, feed *fakeFeed, opts ...harnessOption) *harness {
	return newHarnessAt(t, testStart, feed, opts...)
}

func newHarnessAt(t testing.TB, start time.Time, feed *fakeFeed, opts ...harnessOption) *harness {
	h := &harness{
		clock:    clock.NewManual(start),
		viewport: feed.viewport,
		feed:     feed,
		store:    &fakeStore{},
	}
	deps := service.EngineDeps{
		Adapter:    feed,
		Dispatcher: service.NewActionDispatcher(h.clock, h.clock, 0, nil),
		Store:      h.store,
		Clock:      h.clock,
		Scheduler:  h.clock,
		Usage:      domain.NormalizeUsageForDate(nil, domain.DateKey(start)),
		Callbacks: service.Callbacks{
			OnComplete: func(s domain.SessionSummary) {
				h.mu.Lock()
				h.summaries = append(h.summaries, s)
				h.mu.Unlock()
			},
			OnDailyLimitReached: func() {
				h.mu.Lock()
				h.limitHits++
				h.mu.Unlock()
			},
			OnDailyUsageUpdated: func(u domain.DailyUsage) {
				h.mu.Lock()
				h.usageEvents = append(h.usageEvents, u)
				h.mu.Unlock()
			},
		},
	}
	for _, opt := range opts {
		opt(&deps)
	}
	engine, err := service.NewEngine(deps)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	h.engine = engine
	return h
}

func (h *harness) view() domain.SessionSnapshot {
	v, ok := h.engine.ViewState()
	if !ok {
		return domain.SessionSnapshot{}
	}
	return v.Snapshot
}

func (h *harness) completed() []domain.SessionSummary {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]domain.SessionSummary(nil), h.summaries...)
}

func (h *harness) dailyLimitHits() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.limitHits
}

func threePosts(tops ...float64) (*fakeFeed, *fakeViewport) {
	vp := newFakeViewport(600)
	feed := newFakeFeed(vp, 120, map[string]float64{
		"post-1": tops[0],
		"post-2": tops[1],
		"post-3": tops[2],
	}, "post-1", "post-2", "post-3")
	return feed, vp
}
