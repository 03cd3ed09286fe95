package usecase

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	hclog "github.com/hashicorp/go-hclog"

	"focusdeck/internal/modules/deck/domain"
	"focusdeck/internal/modules/deck/dto"
	deckin "focusdeck/internal/modules/deck/port/in"
	deckout "focusdeck/internal/modules/deck/port/out"
	"focusdeck/internal/modules/deck/service"
	"focusdeck/internal/platform/clock"
	apperrors "focusdeck/internal/platform/errors"
	"focusdeck/internal/platform/id"
)

// lazyLoadAttempts are the start attempts after which the feed is nudged to
// load more.
var lazyLoadAttempts = map[int]bool{6: true, 14: true, 24: true}

type Options struct {
	StartTimeout    time.Duration
	StartPoll       time.Duration
	TickInterval    time.Duration
	PersistDebounce time.Duration
}

func DefaultOptions() Options {
	return Options{
		StartTimeout:    12 * time.Second,
		StartPoll:       140 * time.Millisecond,
		TickInterval:    service.DefaultTickInterval,
		PersistDebounce: service.DefaultPersistDebounce,
	}
}

type Deps struct {
	Registry   *service.Registry
	Dispatcher *service.ActionDispatcher
	Sessions   deckout.SessionStore
	Settings   deckout.SettingsStore
	History    deckout.HistoryStore
	Journal    deckout.JournalStore
	Clock      clock.Clock
	Scheduler  clock.Scheduler
	IDs        id.Generator
	Logger     hclog.Logger
	Options    Options
}

type Interactor struct {
	registry   *service.Registry
	dispatcher *service.ActionDispatcher
	sessions   deckout.SessionStore
	settings   deckout.SettingsStore
	history    deckout.HistoryStore
	journal    deckout.JournalStore
	clock      clock.Clock
	scheduler  clock.Scheduler
	ids        id.Generator
	logger     hclog.Logger
	opts       Options

	mu    sync.Mutex
	run   *run
	route atomic.Pointer[string]

	listenersMu  sync.Mutex
	listeners    map[int]func(dto.Event)
	nextListener int
}

// run is one engine instance and what the usecase learned about it.
type run struct {
	id      string
	adapter deckout.Adapter
	engine  *service.Engine
	feedURL string
	cancel  func()

	mu          sync.Mutex
	last        dto.ViewState
	hasLast     bool
	summary     *domain.SessionSummary
	journalPath string
}

func (r *run) remember(view dto.ViewState) {
	r.mu.Lock()
	r.last, r.hasLast = view, true
	r.mu.Unlock()
}

func (r *run) lastView() (dto.ViewState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last, r.hasLast
}

func NewInteractor(deps Deps) deckin.Usecase {
	return newInteractor(deps)
}

func newInteractor(deps Deps) *Interactor {
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
	ids := deps.IDs
	if ids == nil {
		ids = id.NewULID()
	}
	registry := deps.Registry
	if registry == nil {
		registry = service.NewRegistry()
	}
	opts := deps.Options
	def := DefaultOptions()
	if opts.StartTimeout <= 0 {
		opts.StartTimeout = def.StartTimeout
	}
	if opts.StartPoll <= 0 {
		opts.StartPoll = def.StartPoll
	}
	dispatcher := deps.Dispatcher
	if dispatcher == nil {
		dispatcher = service.NewActionDispatcher(clk, scheduler, service.DefaultActionInterval, logger)
	}
	return &Interactor{
		registry:   registry,
		dispatcher: dispatcher,
		sessions:   deps.Sessions,
		settings:   deps.Settings,
		history:    deps.History,
		journal:    deps.Journal,
		clock:      clk,
		scheduler:  scheduler,
		ids:        ids,
		logger:     logger.Named("deck"),
		opts:       opts,
		listeners:  map[int]func(dto.Event){},
	}
}

func (i *Interactor) Start(ctx context.Context, input dto.StartInput) (dto.StartOutput, error) {
	adapter, err := i.resolveAdapter(input.SiteID, input.URL)
	if err != nil {
		return dto.StartOutput{}, err
	}
	site, err := i.settings.SiteSettings(ctx, adapter.ID())
	if err != nil {
		return dto.StartOutput{}, err
	}
	if !site.Enabled {
		return dto.StartOutput{}, fmt.Errorf("%s: %w", adapter.Name(), apperrors.ErrSiteDisabled)
	}
	limits, err := i.settings.DailyLimits(ctx)
	if err != nil {
		return dto.StartOutput{}, err
	}
	usage, err := i.loadUsage(ctx)
	if err != nil {
		return dto.StartOutput{}, err
	}
	if domain.IsDailyLimitReached(limits, usage, adapter.ID()) {
		return dto.StartOutput{}, apperrors.ErrDailyLimitReached
	}
	base, err := i.settings.SessionConfig(ctx)
	if err != nil {
		return dto.StartOutput{}, err
	}
	overrides, err := toOverrides(input.Overrides)
	if err != nil {
		return dto.StartOutput{}, err
	}
	var resume *domain.SessionSnapshot
	if !input.Fresh {
		resume = i.resumable(ctx, adapter.ID())
	}
	resolved := domain.ResolveStartConfig(base, overrides, resume, limits, usage)

	i.stopCurrent()

	r := &run{id: i.ids.New(), adapter: adapter, feedURL: input.URL}
	if locator, ok := adapter.(deckout.FeedLocator); ok && r.feedURL == "" {
		r.feedURL = locator.FeedURL()
	}
	route := r.feedURL
	i.route.Store(&route)

	engine, err := service.NewEngine(service.EngineDeps{
		Adapter:         adapter,
		Dispatcher:      i.dispatcher,
		Store:           i.sessions,
		Clock:           i.clock,
		Scheduler:       i.scheduler,
		Logger:          i.logger,
		Limits:          limits,
		Usage:           usage,
		Callbacks:       i.callbacksFor(r),
		TickInterval:    i.opts.TickInterval,
		PersistDebounce: i.opts.PersistDebounce,
	})
	if err != nil {
		return dto.StartOutput{}, err
	}
	r.engine = engine
	r.cancel = engine.Subscribe(func(view dto.ViewState) {
		r.remember(view)
		i.publish(dto.Event{Kind: dto.EventView, View: view})
	})

	attempts, err := i.startWithRetry(ctx, r, resolved.Config, resume)
	if err != nil {
		r.cancel()
		return dto.StartOutput{Attempts: attempts}, err
	}
	i.mu.Lock()
	i.run = r
	i.mu.Unlock()

	i.logger.Info("session running", "session", r.id, "adapter", adapter.ID(), "attempts", attempts, "resumed", resolved.Resumed)
	return dto.StartOutput{
		AdapterID:          adapter.ID(),
		AdapterName:        adapter.Name(),
		Config:             resolved.Config,
		Resumed:            resolved.Resumed,
		CappedByDailyLimit: resolved.CappedByDailyLimit,
		RemainingPosts:     resolved.RemainingPosts,
		Attempts:           attempts,
	}, nil
}

// startWithRetry keeps trying until the feed has items, nudging lazy loading
// along the way.
func (i *Interactor) startWithRetry(ctx context.Context, r *run, cfg domain.SessionConfig, resume *domain.SessionSnapshot) (int, error) {
	deadline := i.clock.Now().Add(i.opts.StartTimeout)
	for attempt := 1; ; attempt++ {
		if r.engine.Start(cfg, resume) {
			return attempt, nil
		}
		if !i.onFeed(r.adapter) {
			return attempt, fmt.Errorf("left the feed while it was loading: %w", apperrors.ErrFeedNotLoaded)
		}
		if lazyLoadAttempts[attempt] {
			if loader, ok := r.adapter.(deckout.LazyLoader); ok {
				loader.TriggerLazyLoad(nil)
			}
		}
		if !i.clock.Now().Before(deadline) {
			return attempt, apperrors.ErrFeedNotLoaded
		}
		if err := i.sleep(ctx, i.opts.StartPoll); err != nil {
			return attempt, err
		}
	}
}

func (i *Interactor) sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	done := make(chan struct{})
	cancel := i.scheduler.AfterFunc(d, func() { close(done) })
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		cancel()
		return ctx.Err()
	}
}

func (i *Interactor) callbacksFor(r *run) service.Callbacks {
	counting := func() bool { return i.onFeed(r.adapter) }
	return service.Callbacks{
		OnComplete: func(summary domain.SessionSummary) {
			i.record(r, summary)
			i.publish(dto.Event{Kind: dto.EventCompleted, Summary: summary})
		},
		OnDailyLimitReached: func() {
			i.publish(dto.Event{Kind: dto.EventDailyLimit, Usage: r.engine.DailyUsage()})
		},
		OnDailyUsageUpdated: func(usage domain.DailyUsage) {
			i.publish(dto.Event{Kind: dto.EventUsage, Usage: usage})
		},
		CanCountProgress: counting,
		CanCountTime:     counting,
	}
}

// record keeps a summary in the history and the journal. A session that
// completes and is later stopped is recorded twice under the same id; the
// later record wins.
func (i *Interactor) record(r *run, summary domain.SessionSummary) {
	view, _ := r.lastView()
	rec := domain.SessionRecord{
		ID:        r.id,
		AdapterID: r.adapter.ID(),
		StartedAt: view.Snapshot.StartedAt,
		EndedAt:   i.clock.Now(),
		Summary:   summary,
		Stats:     view.Snapshot.Stats,
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = rec.EndedAt
	}
	ctx := context.Background()
	if i.history != nil {
		if err := i.history.Record(ctx, rec); err != nil {
			i.logger.Warn("record session failed", "session", r.id, "error", err)
		}
	}
	path := ""
	if i.journal != nil {
		var err error
		path, err = i.journal.Write(ctx, rec)
		if err != nil {
			i.logger.Warn("write journal failed", "session", r.id, "error", err)
		}
	}
	r.mu.Lock()
	r.summary = &summary
	if path != "" {
		r.journalPath = path
	}
	r.mu.Unlock()
}

func (i *Interactor) Stop(_ context.Context) (dto.StopOutput, error) {
	i.mu.Lock()
	r := i.run
	i.run = nil
	i.mu.Unlock()
	if r == nil {
		return dto.StopOutput{}, apperrors.ErrNoActiveSession
	}
	r.engine.Stop(domain.CompletionManual)
	r.cancel()

	r.mu.Lock()
	out := dto.StopOutput{SessionID: r.id, JournalPath: r.journalPath}
	if r.summary != nil {
		out.Summary = *r.summary
	}
	r.mu.Unlock()
	i.publish(dto.Event{Kind: dto.EventStopped, Summary: out.Summary})
	return out, nil
}

// stopCurrent ends a running session before another one replaces it.
func (i *Interactor) stopCurrent() {
	i.mu.Lock()
	r := i.run
	i.run = nil
	i.mu.Unlock()
	if r == nil {
		return
	}
	r.engine.Stop(domain.CompletionManual)
	r.cancel()
}

func (i *Interactor) current() (*run, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.run == nil {
		return nil, apperrors.ErrNoActiveSession
	}
	return i.run, nil
}

func (i *Interactor) Pause(_ context.Context) error {
	r, err := i.current()
	if err != nil {
		return err
	}
	r.engine.Pause(domain.PauseManual)
	return nil
}

func (i *Interactor) Resume(ctx context.Context) error {
	r, err := i.current()
	if err != nil {
		return err
	}
	view, ok := r.engine.ViewState()
	if ok && view.Snapshot.PauseReason == domain.PauseLimit {
		limits, err := i.settings.DailyLimits(ctx)
		if err != nil {
			return err
		}
		if domain.IsDailyLimitReached(limits, r.engine.DailyUsage(), r.adapter.ID()) {
			return apperrors.ErrDailyLimitReached
		}
	}
	r.engine.Resume()
	return nil
}

func (i *Interactor) Next(_ context.Context) (bool, error) {
	r, err := i.current()
	if err != nil {
		return false, err
	}
	return r.engine.Next(), nil
}

func (i *Interactor) Previous(_ context.Context) (bool, error) {
	r, err := i.current()
	if err != nil {
		return false, err
	}
	return r.engine.Previous(), nil
}

func (i *Interactor) RunAction(ctx context.Context, input dto.ActionInput) (dto.ActionOutput, error) {
	r, err := i.current()
	if err != nil {
		return dto.ActionOutput{}, err
	}
	permalink := ""
	if view, ok := r.engine.ViewState(); ok && view.FocusedMeta != nil {
		permalink = view.FocusedMeta.Permalink
	}
	res := r.engine.RunAction(ctx, input.Kind, input.UserGesture)
	if res.OK && input.Kind == domain.ActionOpenOriginal && permalink != "" {
		if _, err := i.Navigate(ctx, permalink); err != nil {
			return dto.ActionOutput{}, err
		}
	}
	return dto.ActionOutput{OK: res.OK, Message: res.Message, CanUndo: res.Undo != nil}, nil
}

func (i *Interactor) Extend(_ context.Context, additionalPosts int) error {
	if additionalPosts <= 0 {
		return fmt.Errorf("extend by %d posts: %w", additionalPosts, apperrors.ErrInvalidInput)
	}
	r, err := i.current()
	if err != nil {
		return err
	}
	r.engine.ExtendSession(additionalPosts)
	return nil
}

// Navigate records the current URL and pauses or resumes the session when
// the user leaves or returns to the feed.
func (i *Interactor) Navigate(_ context.Context, url string) (dto.NavigateOutput, error) {
	i.route.Store(&url)
	r, err := i.current()
	if err != nil {
		return dto.NavigateOutput{Phase: domain.PhaseIdle}, nil
	}
	feed, detail := classify(r.adapter, url)
	engine := r.engine
	out := dto.NavigateOutput{}

	phase := engine.Phase()
	view, _ := engine.ViewState()
	switch {
	case phase == domain.PhaseActive && detail:
		engine.Pause(domain.PauseDetails)
		out.Paused = true
	case phase == domain.PhaseActive && !feed:
		engine.Pause(domain.PauseNavigation)
		out.Paused = true
	case phase == domain.PhasePaused && feed && !detail && (engine.HasRoutePause() || view.Snapshot.PauseReason.IsRoute()):
		out.Resumed = i.resumeFromRoute(engine, view)
	case phase == domain.PhaseActive && feed:
		engine.FocusNearestToViewportCenter(false, false)
	}

	if view, ok := engine.ViewState(); ok {
		out.Phase = view.Snapshot.Phase
		out.PauseReason = view.Snapshot.PauseReason
	}
	return out, nil
}

func (i *Interactor) resumeFromRoute(engine *service.Engine, view dto.ViewState) bool {
	if view.Snapshot.PauseReason == domain.PauseLimit {
		return false
	}
	engine.Resume()
	if !engine.RestoreFocus(view.Snapshot.FocusedPostID, false) {
		engine.FocusNearestToViewportCenter(true, false)
	}
	return true
}

func (i *Interactor) Back(ctx context.Context) (dto.NavigateOutput, error) {
	r, err := i.current()
	if err != nil {
		return dto.NavigateOutput{}, err
	}
	return i.Navigate(ctx, r.feedURL)
}

func (i *Interactor) onFeed(adapter deckout.Adapter) bool {
	route := ""
	if p := i.route.Load(); p != nil {
		route = *p
	}
	feed, detail := classify(adapter, route)
	return feed && !detail
}

// classify treats an empty URL, or an adapter without route knowledge, as
// the feed.
func classify(adapter deckout.Adapter, url string) (feed, detail bool) {
	classifier, ok := adapter.(deckout.RouteClassifier)
	if !ok || url == "" {
		return true, false
	}
	return classifier.IsFeedPage(url), classifier.IsDetailPage(url)
}

func (i *Interactor) ShowPrompt(ctx context.Context, url string) (dto.PromptOutput, error) {
	adapter, err := i.resolveAdapter("", url)
	if err != nil {
		return dto.PromptOutput{}, err
	}
	out := dto.PromptOutput{SiteID: adapter.ID(), SiteName: adapter.Name(), RemainingPosts: -1}
	if _, err := i.current(); err == nil {
		return out, nil
	}
	site, err := i.settings.SiteSettings(ctx, adapter.ID())
	if err != nil {
		return dto.PromptOutput{}, err
	}
	if !site.Enabled {
		return out, nil
	}
	if site.SuppressPromptDate == domain.DateKey(i.clock.Now()) {
		out.Suppressed = true
		return out, nil
	}
	limits, err := i.settings.DailyLimits(ctx)
	if err != nil {
		return dto.PromptOutput{}, err
	}
	usage, err := i.loadUsage(ctx)
	if err != nil {
		return dto.PromptOutput{}, err
	}
	if domain.IsDailyLimitReached(limits, usage, adapter.ID()) {
		out.LimitReached = true
		return out, nil
	}
	if remaining, ok := domain.RemainingPosts(limits, usage); ok {
		out.RemainingPosts = remaining
	}
	phase := domain.TransitionSessionPhase(domain.PhaseIdle, domain.ShowPrompt())
	out.Show = phase == domain.PhasePrompting
	return out, nil
}

func (i *Interactor) SuppressPromptToday(ctx context.Context, siteID string) error {
	if _, ok := i.registry.Get(siteID); !ok {
		return fmt.Errorf("site %q: %w", siteID, apperrors.ErrNotFound)
	}
	site, err := i.settings.SiteSettings(ctx, siteID)
	if err != nil {
		return err
	}
	site.SuppressPromptDate = domain.DateKey(i.clock.Now())
	return i.settings.SetSiteSettings(ctx, siteID, site)
}

func (i *Interactor) Subscribe(fn func(dto.Event)) func() {
	i.listenersMu.Lock()
	key := i.nextListener
	i.nextListener++
	i.listeners[key] = fn
	i.listenersMu.Unlock()
	return func() {
		i.listenersMu.Lock()
		delete(i.listeners, key)
		i.listenersMu.Unlock()
	}
}

func (i *Interactor) publish(event dto.Event) {
	i.listenersMu.Lock()
	fns := make([]func(dto.Event), 0, len(i.listeners))
	for key := 0; key < i.nextListener; key++ {
		if fn, ok := i.listeners[key]; ok {
			fns = append(fns, fn)
		}
	}
	i.listenersMu.Unlock()
	for _, fn := range fns {
		fn(event)
	}
}

func (i *Interactor) Viewport(_ context.Context, input dto.ViewportInput) error {
	r, err := i.current()
	if err != nil {
		return err
	}
	if receiver, ok := r.adapter.(deckout.InputReceiver); ok {
		receiver.ApplyInput(input)
	}
	return nil
}

func (i *Interactor) resolveAdapter(siteID, url string) (deckout.Adapter, error) {
	if siteID != "" {
		adapter, ok := i.registry.Get(siteID)
		if !ok {
			return nil, fmt.Errorf("site %q: %w", siteID, apperrors.ErrNoAdapter)
		}
		return adapter, nil
	}
	adapter, ok := i.registry.Resolve(url)
	if !ok {
		return nil, fmt.Errorf("%q: %w", url, apperrors.ErrNoAdapter)
	}
	return adapter, nil
}

// resumable returns the persisted snapshot when it belongs to adapterID and
// is still running. Unreadable snapshots are treated as absent.
func (i *Interactor) resumable(ctx context.Context, adapterID string) *domain.SessionSnapshot {
	snapshot, err := i.sessions.LoadSnapshot(ctx)
	if err != nil {
		i.logger.Warn("ignoring unreadable snapshot", "error", err)
		return nil
	}
	if snapshot == nil || snapshot.AdapterID != adapterID {
		return nil
	}
	switch snapshot.Phase {
	case domain.PhaseActive, domain.PhasePaused:
		return snapshot
	default:
		return nil
	}
}

// loadUsage returns today's usage. Unreadable usage starts the day over.
func (i *Interactor) loadUsage(ctx context.Context) (domain.DailyUsage, error) {
	today := domain.DateKey(i.clock.Now())
	stored, err := i.sessions.LoadUsage(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return domain.DailyUsage{}, ctx.Err()
		}
		i.logger.Warn("ignoring unreadable usage", "error", err)
		stored = nil
	}
	return domain.NormalizeUsageForDate(stored, today), nil
}

func toOverrides(input dto.ConfigInput) (domain.ConfigOverrides, error) {
	out := domain.ConfigOverrides{PostLimit: input.PostLimit, MinimalMode: input.MinimalMode}
	if input.PostLimit != nil && *input.PostLimit < 1 {
		return domain.ConfigOverrides{}, fmt.Errorf("post limit %d: %w", *input.PostLimit, apperrors.ErrInvalidInput)
	}
	if input.ThemeMode != nil {
		mode := domain.ThemeMode(*input.ThemeMode)
		if !mode.Valid() {
			return domain.ConfigOverrides{}, fmt.Errorf("theme %q: %w", *input.ThemeMode, apperrors.ErrInvalidInput)
		}
		out.ThemeMode = &mode
	}
	return out, nil
}
