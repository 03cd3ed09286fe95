package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	hclog "github.com/hashicorp/go-hclog"

	"focusdeck/internal/modules/deck/domain"
	"focusdeck/internal/platform/clock"
)

// DefaultActionInterval spaces automated interactions with the host site far
// enough apart to stay clear of its abuse detection.
const DefaultActionInterval = time.Second

// ActionFunc performs one externally visible action.
type ActionFunc func(ctx context.Context) (domain.ActionResult, error)

// ActionDispatcher runs actions one at a time, at least minInterval apart,
// however many goroutines call Dispatch.
type ActionDispatcher struct {
	clock       clock.Clock
	scheduler   clock.Scheduler
	minInterval time.Duration
	logger      hclog.Logger

	slot chan struct{}

	mu           sync.Mutex
	lastActionAt time.Time
}

func NewActionDispatcher(clk clock.Clock, scheduler clock.Scheduler, minInterval time.Duration, logger hclog.Logger) *ActionDispatcher {
	if minInterval < 0 {
		minInterval = 0
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &ActionDispatcher{
		clock:       clk,
		scheduler:   scheduler,
		minInterval: minInterval,
		logger:      logger.Named("dispatcher"),
		slot:        make(chan struct{}, 1),
	}
}

// Dispatch waits for its turn and for the spacing delay, then runs action.
// The action's error, or a panic converted to one, is returned to this caller
// only; later actions still run.
func (d *ActionDispatcher) Dispatch(ctx context.Context, action ActionFunc) (domain.ActionResult, error) {
	select {
	case d.slot <- struct{}{}:
	case <-ctx.Done():
		return domain.ActionResult{}, ctx.Err()
	}
	defer func() { <-d.slot }()

	d.mu.Lock()
	delay := d.lastActionAt.Add(d.minInterval).Sub(d.clock.Now())
	d.mu.Unlock()
	if delay > 0 {
		if err := d.wait(ctx, delay); err != nil {
			return domain.ActionResult{}, err
		}
	}

	d.mu.Lock()
	d.lastActionAt = d.clock.Now()
	d.mu.Unlock()

	return d.run(ctx, action)
}

func (d *ActionDispatcher) wait(ctx context.Context, delay time.Duration) error {
	done := make(chan struct{})
	cancel := d.scheduler.AfterFunc(delay, func() { close(done) })
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		cancel()
		return ctx.Err()
	}
}

func (d *ActionDispatcher) run(ctx context.Context, action ActionFunc) (result domain.ActionResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("action panicked", "panic", r)
			result, err = domain.ActionResult{}, fmt.Errorf("action panicked: %v", r)
		}
	}()
	return action(ctx)
}
