package service

import (
	"context"

	"golang.org/x/sync/errgroup"

	"focusdeck/internal/modules/deck/domain"
	"focusdeck/internal/modules/deck/port/out"
)

func (e *Engine) attachObserverLocked() {
	observer, ok := e.adapter.(out.FeedObserver)
	if !ok {
		return
	}
	e.unobserveFeed = observer.ObserveFeedChanges(e.onFeedMutation)
}

func (e *Engine) attachViewportLocked() {
	e.unobserveViewport = e.viewport.OnViewportChange(e.onViewportChange)
}

func (e *Engine) startTickerLocked() {
	gen := e.generation.Load()
	e.cancelTick = e.scheduler.Every(e.tickInterval, func() {
		e.tick(gen)
	})
}

// teardownLocked detaches every observer and cancels every timer. Nothing
// scheduled before it returns will mutate state afterwards.
func (e *Engine) teardownLocked() {
	if e.unobserveFeed != nil {
		e.unobserveFeed()
		e.unobserveFeed = nil
	}
	if e.unobserveViewport != nil {
		e.unobserveViewport()
		e.unobserveViewport = nil
	}
	if e.cancelTick != nil {
		e.cancelTick()
		e.cancelTick = nil
	}
	if e.cancelPersist != nil {
		e.cancelPersist()
		e.cancelPersist = nil
	}
	e.frameMu.Lock()
	if e.cancelFrame != nil {
		e.cancelFrame()
		e.cancelFrame = nil
	}
	e.frameMu.Unlock()
	e.framePending.Store(false)
	e.mutationPending.Store(false)
}

// onFeedMutation may run on any goroutine, including one that already holds
// the engine lock. In that case the holder reconciles when it finishes.
func (e *Engine) onFeedMutation() {
	e.mutationPending.Store(true)
	e.drainMutations()
}

func (e *Engine) drainMutations() {
	for e.mutationPending.Load() {
		if !e.mu.TryLock() {
			return
		}
		fx := &effects{}
		if e.mutationPending.Swap(false) {
			e.reconcileLocked(fx)
		}
		e.release(fx)
	}
}

// reconcileLocked re-resolves focus after the feed changed under it. A view
// is only counted again when the focused post left the viewport or drifted
// away from its center.
func (e *Engine) reconcileLocked(fx *effects) {
	if e.state == nil || e.state.snapshot.Phase != domain.PhaseActive {
		return
	}
	vh := e.viewport.Height()
	shouldCount := true
	if handle, ok := e.findHandleLocked(e.state.snapshot.FocusedPostID); ok && handle.Element != nil {
		rect := handle.Element.Rect()
		shouldCount = !isVisible(rect, vh) || !isNearCenter(rect, vh)
	}
	e.focusNearestLocked(fx, false, shouldCount)
	fx.emit = true
}

// onViewportChange coalesces events into one frame. Input the user made
// directly releases a focus pinned by Next, Previous or RestoreFocus.
func (e *Engine) onViewportChange(ev out.ViewportEvent) {
	switch ev.Type {
	case out.ViewportWheel, out.ViewportTouchMove, out.ViewportKeyDown:
		e.pinned.Store(false)
	}
	if !e.framePending.CompareAndSwap(false, true) {
		return
	}
	gen := e.generation.Load()
	e.frameMu.Lock()
	e.cancelFrame = e.scheduler.Frame(func() {
		e.frameMu.Lock()
		e.cancelFrame = nil
		e.frameMu.Unlock()
		e.framePending.Store(false)
		e.do(func(fx *effects) {
			if e.generation.Load() != gen {
				return
			}
			e.focusNearestLocked(fx, false, true)
		})
	})
	e.frameMu.Unlock()
}

func (e *Engine) tick(gen uint64) {
	e.do(func(fx *effects) {
		if e.state == nil || e.generation.Load() != gen {
			return
		}
		e.rollUsageLocked(fx)
		now := e.clock.Now()
		if e.state.snapshot.Phase != domain.PhaseActive {
			e.lastTickAt = now
			return
		}
		delta := max(0, now.Sub(e.lastTickAt))
		e.lastTickAt = now
		if !e.viewport.Visible() {
			return
		}
		if e.callbacks.CanCountTime != nil && !e.callbacks.CanCountTime() {
			return
		}
		s := &e.state.snapshot
		s.Stats.ActiveMs += delta.Milliseconds()
		s.UpdatedAt = now
		e.checkSessionLimitLocked(fx)
		e.checkDailyLimitsLocked(fx)
		e.persistSoonLocked()
		fx.emit = true
	})
}

// persistNow writes the snapshot and usage in parallel. Stop holds persistMu
// while clearing, so a write scheduled before Stop cannot land after it.
func (e *Engine) persistNow(gen uint64) {
	e.persistMu.Lock()
	defer e.persistMu.Unlock()

	e.mu.Lock()
	fx := &effects{}
	if e.state == nil || e.generation.Load() != gen {
		e.finish(fx)
		return
	}
	e.cancelPersist = nil
	e.rollUsageLocked(fx)
	snapshot := e.state.snapshot.Clone()
	usage := cloneUsage(e.usage)
	e.finish(fx)

	g, ctx := errgroup.WithContext(context.Background())
	g.Go(func() error { return e.store.SaveSnapshot(ctx, snapshot) })
	g.Go(func() error { return e.store.SaveUsage(ctx, usage) })
	if err := g.Wait(); err != nil {
		e.logger.Warn("persist failed", "error", err)
	}
}

func (e *Engine) focusNearestLocked(fx *effects, force, countView bool) {
	if e.state == nil || e.state.snapshot.Phase != domain.PhaseActive {
		return
	}
	vh := e.viewport.Height()
	if !force && e.pinned.Load() {
		if current, ok := e.findHandleLocked(e.state.snapshot.FocusedPostID); ok && current.Element != nil && isVisible(current.Element.Rect(), vh) {
			return
		}
	}
	items := e.adapter.FeedItems()
	top := -1.0
	if reporter, ok := e.viewport.(out.ScrollReporter); ok {
		top = reporter.ScrollTop()
	}
	best, ok := pickFocus(items, vh, top)
	if !ok {
		return
	}
	if !force && best.ID == e.state.snapshot.FocusedPostID {
		return
	}
	e.pinned.Store(false)
	e.applyFocusedLocked(fx, best, countView)
}

func (e *Engine) restoreFocusLocked(fx *effects, postID string, countView bool) bool {
	if e.state == nil || postID == "" {
		return false
	}
	handle, ok := e.findHandleLocked(postID)
	if !ok {
		return false
	}
	e.adapter.FocusItem(handle)
	e.applyFocusedLocked(fx, handle, countView)
	e.pinned.Store(true)
	return true
}

// applyFocusedLocked moves focus to handle and, when allowed, counts it once
// toward the session and today's usage before re-checking limits.
func (e *Engine) applyFocusedLocked(fx *effects, handle domain.PostHandle, countView bool) {
	e.rollUsageLocked(fx)
	s := &e.state.snapshot
	e.focused = &handle
	s.FocusedPostID = handle.ID
	s.UpdatedAt = e.clock.Now()

	canCount := e.callbacks.CanCountProgress == nil || e.callbacks.CanCountProgress()
	if countView && canCount {
		if key, ok := e.progressKey(handle); ok {
			if _, seen := e.state.viewed[key]; !seen {
				e.state.viewed[key] = struct{}{}
				s.Stats.ViewedPostIDs = append(s.Stats.ViewedPostIDs, key)
				s.Stats.ViewedCount = len(s.Stats.ViewedPostIDs)
				e.usage = domain.ApplyUsageDelta(e.usage, e.adapter.ID(), domain.UsageDelta{PostsViewed: 1})
				usage := cloneUsage(e.usage)
				fx.usage = &usage
			}
		}
	}

	e.checkSessionLimitLocked(fx)
	e.checkDailyLimitsLocked(fx)
	e.persistSoonLocked()
	fx.emit = true
}

// findHandleLocked resolves id as a handle id first and as a progress key
// second.
func (e *Engine) findHandleLocked(id string) (domain.PostHandle, bool) {
	if id == "" {
		return domain.PostHandle{}, false
	}
	if finder, ok := e.adapter.(out.HandleFinder); ok {
		if handle, ok := finder.FindHandle(id); ok {
			return handle, true
		}
	}
	items := e.adapter.FeedItems()
	for _, item := range items {
		if item.ID == id {
			return item, true
		}
	}
	for _, item := range items {
		if key, ok := e.progressKey(item); ok && key == id {
			return item, true
		}
	}
	return domain.PostHandle{}, false
}

func (e *Engine) progressKey(handle domain.PostHandle) (string, bool) {
	keyer, ok := e.adapter.(out.ProgressKeyer)
	if !ok {
		return handle.ID, handle.ID != ""
	}
	key, ok := keyer.ProgressKey(handle)
	if !ok || key == "" {
		return "", false
	}
	return key, true
}
