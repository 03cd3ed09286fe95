package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	hclog "github.com/hashicorp/go-hclog"

	"focusdeck/internal/modules/deck/domain"
	"focusdeck/internal/modules/deck/dto"
	"focusdeck/internal/modules/deck/port/out"
	"focusdeck/internal/platform/clock"
)

const (
	DefaultTickInterval    = time.Second
	DefaultPersistDebounce = 250 * time.Millisecond
)

var errNoViewport = errors.New("engine needs a viewport")

// Callbacks are invoked outside the engine lock, except CanCountProgress and
// CanCountTime which are consulted while it is held and must not call back
// into the engine.
type Callbacks struct {
	OnComplete          func(summary domain.SessionSummary)
	OnDailyLimitReached func()
	OnDailyUsageUpdated func(usage domain.DailyUsage)
	CanCountProgress    func() bool
	CanCountTime        func() bool
}

type Listener func(view dto.ViewState)

type EngineDeps struct {
	Adapter    out.Adapter
	Viewport   out.Viewport
	Dispatcher *ActionDispatcher
	Store      out.SessionStore
	Clock      clock.Clock
	Scheduler  clock.Scheduler
	Logger     hclog.Logger
	Limits     domain.DailyLimitsConfig
	Usage      domain.DailyUsage
	Callbacks  Callbacks

	TickInterval    time.Duration
	PersistDebounce time.Duration
}

type runtimeState struct {
	snapshot domain.SessionSnapshot
	viewed   map[string]struct{}
}

// Engine runs one reading session over one adapter's feed.
type Engine struct {
	adapter    out.Adapter
	viewport   out.Viewport
	dispatcher *ActionDispatcher
	store      out.SessionStore
	clock      clock.Clock
	scheduler  clock.Scheduler
	logger     hclog.Logger
	callbacks  Callbacks

	tickInterval    time.Duration
	persistDebounce time.Duration

	mu               sync.Mutex
	state            *runtimeState
	focused          *domain.PostHandle
	limits           domain.DailyLimitsConfig
	usage            domain.DailyUsage
	lastTickAt       time.Time
	routePauseReason domain.PauseReason
	listeners        map[int]Listener
	nextListener     int

	cancelTick        clock.Cancel
	cancelPersist     clock.Cancel
	unobserveFeed     func()
	unobserveViewport func()

	generation      atomic.Uint64
	mutationPending atomic.Bool
	framePending    atomic.Bool
	pinned          atomic.Bool
	frameMu         sync.Mutex
	cancelFrame     clock.Cancel

	persistMu sync.Mutex
}

func NewEngine(deps EngineDeps) (*Engine, error) {
	if deps.Adapter == nil {
		return nil, errors.New("engine needs an adapter")
	}
	viewport := deps.Viewport
	if viewport == nil {
		if provider, ok := deps.Adapter.(out.ViewportProvider); ok {
			viewport = provider.Viewport()
		}
	}
	if viewport == nil {
		return nil, errNoViewport
	}
	logger := deps.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	clk := deps.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	scheduler := deps.Scheduler
	if scheduler == nil {
		scheduler = clock.SystemScheduler{}
	}
	dispatcher := deps.Dispatcher
	if dispatcher == nil {
		dispatcher = NewActionDispatcher(clk, scheduler, DefaultActionInterval, logger)
	}
	tick := deps.TickInterval
	if tick <= 0 {
		tick = DefaultTickInterval
	}
	debounce := deps.PersistDebounce
	if debounce <= 0 {
		debounce = DefaultPersistDebounce
	}
	return &Engine{
		adapter:         deps.Adapter,
		viewport:        viewport,
		dispatcher:      dispatcher,
		store:           deps.Store,
		clock:           clk,
		scheduler:       scheduler,
		logger:          logger.Named("engine").With("adapter", deps.Adapter.ID()),
		callbacks:       deps.Callbacks,
		tickInterval:    tick,
		persistDebounce: debounce,
		limits:          domain.NormalizeLimits(deps.Limits),
		usage:           domain.NormalizeUsageForDate(&deps.Usage, deps.Usage.DateKey),
		listeners:       map[int]Listener{},
	}, nil
}

func (e *Engine) Adapter() out.Adapter { return e.adapter }

// Start begins a session, or continues resume when it belongs to this
// adapter. It returns false when the feed has no items yet.
func (e *Engine) Start(cfg domain.SessionConfig, resume *domain.SessionSnapshot) bool {
	started := false
	e.do(func(fx *effects) {
		if len(e.adapter.FeedItems()) == 0 {
			return
		}
		e.teardownLocked()

		now := e.clock.Now()
		snapshot := domain.SessionSnapshot{
			Phase:     domain.TransitionSessionPhase(domain.PhaseIdle, domain.Start()),
			AdapterID: e.adapter.ID(),
			Config:    cfg.Normalize(),
			StartedAt: now,
			UpdatedAt: now,
		}
		focusID := ""
		if resume != nil && resume.AdapterID == e.adapter.ID() {
			prior := domain.NormalizeSnapshot(resume.Clone())
			snapshot.Stats = prior.Stats
			if !prior.StartedAt.IsZero() {
				snapshot.StartedAt = prior.StartedAt
			}
			focusID = prior.FocusedPostID
		}
		viewed := make(map[string]struct{}, len(snapshot.Stats.ViewedPostIDs))
		for _, id := range snapshot.Stats.ViewedPostIDs {
			viewed[id] = struct{}{}
		}
		snapshot.Stats.ViewedCount = len(viewed)

		e.state = &runtimeState{snapshot: snapshot, viewed: viewed}
		e.focused = nil
		e.lastTickAt = now
		e.routePauseReason = domain.PauseNone
		e.pinned.Store(false)
		e.generation.Add(1)

		e.attachObserverLocked()
		e.attachViewportLocked()
		e.startTickerLocked()

		if focusID == "" || !e.restoreFocusLocked(fx, focusID, false) {
			e.focusNearestLocked(fx, true, true)
		}
		e.logger.Info("session started", "resumed", resume != nil && focusID != "", "post_limit", snapshot.Config.PostLimit)
		e.persistSoonLocked()
		fx.emit = true
		started = true
	})
	return started
}

// Stop ends the session. An active or paused session reports its summary
// to OnComplete first. Final usage is saved and the persisted snapshot is
// cleared before Stop returns.
func (e *Engine) Stop(reason domain.CompletionReason) {
	stopped := false
	var usage domain.DailyUsage
	e.do(func(fx *effects) {
		if e.state == nil {
			return
		}
		switch e.state.snapshot.Phase {
		case domain.PhaseActive, domain.PhasePaused:
			fx.summaries = append(fx.summaries, e.summaryLocked(reason))
		}
		e.rollUsageLocked(fx)
		usage = cloneUsage(e.usage)
		e.teardownLocked()
		if clearer, ok := e.adapter.(out.FocusMarkerClearer); ok {
			clearer.ClearFocusMarkers()
		}
		e.state = nil
		e.focused = nil
		e.routePauseReason = domain.PauseNone
		e.generation.Add(1)
		stopped = true
		e.logger.Info("session stopped", "reason", reason)
	})
	if !stopped || e.store == nil {
		return
	}
	e.persistMu.Lock()
	defer e.persistMu.Unlock()
	ctx := context.Background()
	if err := e.store.SaveUsage(ctx, usage); err != nil {
		e.logger.Warn("save usage failed", "error", err)
	}
	if err := e.store.ClearSnapshot(ctx); err != nil {
		e.logger.Warn("clear snapshot failed", "error", err)
	}
}

func (e *Engine) Pause(reason domain.PauseReason) {
	if reason == domain.PauseNone {
		reason = domain.PauseManual
	}
	e.do(func(fx *effects) {
		if e.state == nil || e.state.snapshot.Phase != domain.PhaseActive {
			return
		}
		e.routePauseReason = reason
		e.pauseLocked(reason)
		if pauser, ok := e.adapter.(out.MediaPauser); ok {
			pauser.PauseMedia(e.focused)
		}
		e.persistSoonLocked()
		fx.emit = true
	})
}

func (e *Engine) Resume() {
	e.do(func(fx *effects) {
		if e.state == nil || e.state.snapshot.Phase != domain.PhasePaused {
			return
		}
		e.routePauseReason = domain.PauseNone
		s := &e.state.snapshot
		s.Phase = domain.TransitionSessionPhase(s.Phase, domain.Resume())
		s.PauseReason = domain.PauseNone
		s.UpdatedAt = e.clock.Now()
		e.lastTickAt = s.UpdatedAt
		e.persistSoonLocked()
		fx.emit = true
	})
}

// HasRoutePause reports whether the current pause came from leaving the
// feed, which makes it eligible for automatic resume.
func (e *Engine) HasRoutePause() bool {
	route := false
	e.do(func(*effects) {
		route = e.routePauseReason.IsRoute()
	})
	return route
}

func (e *Engine) Next() bool {
	return e.step(1)
}

func (e *Engine) Previous() bool {
	return e.step(-1)
}

func (e *Engine) step(dir int) bool {
	moved := false
	e.do(func(fx *effects) {
		if e.state == nil || e.state.snapshot.Phase != domain.PhaseActive {
			return
		}
		items := e.adapter.FeedItems()
		if len(items) == 0 {
			return
		}
		idx := indexOf(items, e.state.snapshot.FocusedPostID)
		target := idx + dir
		if dir < 0 && idx <= 0 {
			return
		}
		if target >= len(items) {
			if loader, ok := e.adapter.(out.LazyLoader); ok {
				near := items[max(0, idx)]
				loader.TriggerLazyLoad(&near)
			}
			return
		}
		handle := items[target]
		e.adapter.FocusItem(handle)
		e.applyFocusedLocked(fx, handle, true)
		e.pinned.Store(true)
		moved = true
	})
	return moved
}

func (e *Engine) FocusNearestToViewportCenter(force, countView bool) {
	e.do(func(fx *effects) {
		e.focusNearestLocked(fx, force, countView)
	})
}

// RestoreFocus focuses the post with the given id or progress key. It
// returns false when no such post is rendered.
func (e *Engine) RestoreFocus(postID string, countView bool) bool {
	ok := false
	e.do(func(fx *effects) {
		ok = e.restoreFocusLocked(fx, postID, countView)
	})
	return ok
}

// RunAction performs kind on the focused post through the dispatcher. The
// engine lock is released while the action runs.
func (e *Engine) RunAction(ctx context.Context, kind domain.ActionKind, userGesture bool) domain.ActionResult {
	e.mu.Lock()
	if e.state == nil || e.state.snapshot.Phase != domain.PhaseActive {
		e.finish(&effects{})
		return domain.Failed("Start or resume a session first.")
	}
	if kind.Destructive() && !userGesture {
		e.finish(&effects{})
		return domain.Failed("Action requires an explicit user gesture.")
	}
	handle, found := e.findHandleLocked(e.state.snapshot.FocusedPostID)
	if !found {
		e.finish(&effects{})
		return domain.Failed("No focused post found.")
	}
	gen := e.generation.Load()
	e.finish(&effects{})

	result, err := e.dispatcher.Dispatch(ctx, func(ctx context.Context) (domain.ActionResult, error) {
		return e.execute(ctx, kind, handle)
	})
	if err != nil {
		e.logger.Warn("action failed", "kind", kind, "post", handle.ID, "error", err)
		return domain.Failed(err.Error())
	}
	e.do(func(fx *effects) {
		if e.state == nil || e.generation.Load() != gen {
			return
		}
		fx.emit = true
		if !result.OK {
			return
		}
		counters := &e.state.snapshot.Stats.Actions
		switch kind {
		case domain.ActionNotInterested:
			counters.NotInterested++
		case domain.ActionBookmark:
			counters.Bookmarked++
		case domain.ActionOpenOriginal:
			counters.OpenedDetails++
		}
		e.state.snapshot.UpdatedAt = e.clock.Now()
		e.persistSoonLocked()
	})
	return result
}

func (e *Engine) execute(ctx context.Context, kind domain.ActionKind, handle domain.PostHandle) (domain.ActionResult, error) {
	switch kind {
	case domain.ActionNotInterested:
		return e.adapter.NotInterested(ctx, handle)
	case domain.ActionBookmark:
		return e.adapter.Bookmark(ctx, handle)
	case domain.ActionOpenOriginal:
		opener, ok := e.adapter.(out.OriginalOpener)
		if !ok {
			return domain.Failed("Opening the original post is not supported here."), nil
		}
		return opener.OpenOriginal(ctx, handle)
	default:
		return domain.Failed("Unsupported action."), nil
	}
}

// ExtendSession raises the post limit by additional. A session completed by
// its limit becomes active again.
func (e *Engine) ExtendSession(additional int) {
	e.do(func(fx *effects) {
		if e.state == nil {
			return
		}
		s := &e.state.snapshot
		cfg := s.Config
		cfg.PostLimit = max(1, cfg.PostLimit+max(0, additional))
		s.Config = cfg
		if s.Phase == domain.PhaseCompleted {
			s.Phase = domain.TransitionSessionPhase(s.Phase, domain.Start())
			s.PauseReason = domain.PauseNone
		}
		s.UpdatedAt = e.clock.Now()
		e.lastTickAt = s.UpdatedAt
		e.persistSoonLocked()
		fx.emit = true
	})
}

// Subscribe registers fn and calls it immediately with the current view when
// a session is running.
func (e *Engine) Subscribe(fn Listener) (unsubscribe func()) {
	e.mu.Lock()
	id := e.nextListener
	e.nextListener++
	e.listeners[id] = fn
	view, ok := e.viewLocked()
	e.finish(&effects{})
	if ok {
		fn(view)
	}
	return func() {
		e.mu.Lock()
		delete(e.listeners, id)
		e.mu.Unlock()
	}
}

func (e *Engine) ViewState() (view dto.ViewState, ok bool) {
	e.do(func(*effects) {
		view, ok = e.viewLocked()
	})
	return view, ok
}

func (e *Engine) Phase() domain.SessionPhase {
	phase := domain.PhaseIdle
	e.do(func(*effects) {
		if e.state != nil {
			phase = e.state.snapshot.Phase
		}
	})
	return phase
}

func (e *Engine) FocusedPostID() string {
	id := ""
	e.do(func(*effects) {
		if e.state != nil {
			id = e.state.snapshot.FocusedPostID
		}
	})
	return id
}

// DailyUsage returns today's usage, rolling it over first when the date
// changed since it was last touched.
func (e *Engine) DailyUsage() domain.DailyUsage {
	var usage domain.DailyUsage
	e.do(func(fx *effects) {
		e.rollUsageLocked(fx)
		usage = cloneUsage(e.usage)
	})
	return usage
}

// SetDailyContext replaces limits and usage, typically after a settings
// change or a day rollover. Limits are re-checked on the next focus or tick.
func (e *Engine) SetDailyContext(limits domain.DailyLimitsConfig, usage domain.DailyUsage) {
	e.mu.Lock()
	e.limits = domain.NormalizeLimits(limits)
	e.usage = domain.NormalizeUsageForDate(&usage, usage.DateKey)
	e.finish(&effects{})
}

// effects collects what must happen once the lock is released.
type effects struct {
	emit      bool
	summaries []domain.SessionSummary
	limitHit  bool
	usage     *domain.DailyUsage
}

func (e *Engine) do(fn func(fx *effects)) {
	e.mu.Lock()
	fx := &effects{}
	fn(fx)
	e.finish(fx)
}

// finish releases the lock, delivers fx and then reconciles any feed
// mutation that arrived while the lock was held.
func (e *Engine) finish(fx *effects) {
	e.release(fx)
	e.drainMutations()
}

func (e *Engine) release(fx *effects) {
	var (
		view      dto.ViewState
		hasView   bool
		listeners []Listener
	)
	if fx.emit {
		view, hasView = e.viewLocked()
		if hasView {
			listeners = e.sortedListenersLocked()
		}
	}
	cb := e.callbacks
	e.mu.Unlock()

	if fx.usage != nil && cb.OnDailyUsageUpdated != nil {
		cb.OnDailyUsageUpdated(*fx.usage)
	}
	for _, summary := range fx.summaries {
		if cb.OnComplete != nil {
			cb.OnComplete(summary)
		}
	}
	if fx.limitHit && cb.OnDailyLimitReached != nil {
		cb.OnDailyLimitReached()
	}
	for _, fn := range listeners {
		fn(view)
	}
}

func (e *Engine) sortedListenersLocked() []Listener {
	out := make([]Listener, 0, len(e.listeners))
	for id := 0; id < e.nextListener; id++ {
		if fn, ok := e.listeners[id]; ok {
			out = append(out, fn)
		}
	}
	return out
}

func (e *Engine) viewLocked() (dto.ViewState, bool) {
	if e.state == nil {
		return dto.ViewState{}, false
	}
	items := e.adapter.FeedItems()
	view := dto.ViewState{
		Snapshot:  e.state.snapshot.Clone(),
		FeedCount: len(items),
		Feed:      make([]domain.HandleKey, 0, len(items)),
	}
	for _, item := range items {
		key, _ := e.progressKey(item)
		view.Feed = append(view.Feed, domain.HandleKey{HandleID: item.ID, ProgressKey: key})
	}
	if reporter, ok := e.adapter.(out.LoadErrorReporter); ok {
		if err := reporter.LastError(); err != nil {
			view.LoadError = err.Error()
		}
	}
	if handle, ok := e.findHandleLocked(e.state.snapshot.FocusedPostID); ok {
		view.FocusedHandle = &handle
		if meta, ok := e.adapter.PostMeta(handle); ok {
			view.FocusedMeta = &meta
		}
	}
	return view, true
}

func (e *Engine) summaryLocked(reason domain.CompletionReason) domain.SessionSummary {
	s := e.state.snapshot
	return domain.SessionSummary{
		Reason:      reason,
		ViewedCount: s.Stats.ViewedCount,
		DurationMs:  max(0, e.clock.Now().Sub(s.StartedAt).Milliseconds()),
	}
}

func (e *Engine) pauseLocked(reason domain.PauseReason) {
	s := &e.state.snapshot
	s.Phase = domain.TransitionSessionPhase(s.Phase, domain.Pause(reason))
	s.PauseReason = reason
	s.UpdatedAt = e.clock.Now()
}

func (e *Engine) completeLocked(fx *effects, reason domain.CompletionReason) {
	s := &e.state.snapshot
	s.Phase = domain.TransitionSessionPhase(s.Phase, domain.Complete())
	s.PauseReason = domain.PauseLimit
	s.UpdatedAt = e.clock.Now()
	fx.summaries = append(fx.summaries, e.summaryLocked(reason))
	e.logger.Info("session complete", "reason", reason, "viewed", s.Stats.ViewedCount)
	e.persistSoonLocked()
	fx.emit = true
}

func (e *Engine) checkSessionLimitLocked(fx *effects) {
	s := e.state.snapshot
	if s.Phase != domain.PhaseActive || s.Config.PostLimit <= 0 {
		return
	}
	if s.Stats.ViewedCount >= s.Config.PostLimit {
		e.completeLocked(fx, domain.CompletionPostsLimit)
	}
}

// rollUsageLocked starts a fresh usage record once the local date moves
// past the record's day. A pause caused by yesterday's limit is lifted when
// today's limits allow it.
func (e *Engine) rollUsageLocked(fx *effects) {
	now := e.clock.Now()
	today := domain.DateKey(now)
	if e.usage.DateKey == today {
		return
	}
	e.usage = domain.NormalizeUsageForDate(nil, today)
	usage := cloneUsage(e.usage)
	fx.usage = &usage
	e.logger.Info("daily usage rolled over", "date", today)
	if e.state == nil {
		return
	}
	s := &e.state.snapshot
	if s.Phase == domain.PhasePaused && s.PauseReason == domain.PauseLimit &&
		!domain.IsDailyLimitReached(e.limits, e.usage, e.adapter.ID()) {
		e.routePauseReason = domain.PauseNone
		s.Phase = domain.TransitionSessionPhase(s.Phase, domain.Resume())
		s.PauseReason = domain.PauseNone
		s.UpdatedAt = now
		e.lastTickAt = now
	}
	e.persistSoonLocked()
	fx.emit = true
}

func (e *Engine) checkDailyLimitsLocked(fx *effects) {
	if e.state.snapshot.Phase != domain.PhaseActive {
		return
	}
	if !domain.IsDailyLimitReached(e.limits, e.usage, e.adapter.ID()) {
		return
	}
	e.routePauseReason = domain.PauseLimit
	e.pauseLocked(domain.PauseLimit)
	e.logger.Info("daily limit reached", "posts", e.usage.Global.PostsViewed)
	fx.limitHit = true
	e.persistSoonLocked()
	fx.emit = true
}

func (e *Engine) persistSoonLocked() {
	if e.state == nil || e.store == nil || e.cancelPersist != nil {
		return
	}
	gen := e.generation.Load()
	e.cancelPersist = e.scheduler.AfterFunc(e.persistDebounce, func() {
		e.persistNow(gen)
	})
}

func cloneUsage(u domain.DailyUsage) domain.DailyUsage {
	return domain.NormalizeUsageForDate(&u, u.DateKey)
}

func indexOf(items []domain.PostHandle, id string) int {
	if id == "" {
		return -1
	}
	for i, item := range items {
		if item.ID == id {
			return i
		}
	}
	return -1
}
