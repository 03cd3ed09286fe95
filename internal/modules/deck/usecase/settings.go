package usecase

import (
	"context"
	"fmt"

	"focusdeck/internal/modules/deck/domain"
	"focusdeck/internal/modules/deck/dto"
	apperrors "focusdeck/internal/platform/errors"
)

func (i *Interactor) Status(ctx context.Context) (dto.StatusOutput, error) {
	now := i.clock.Now()
	limits, err := i.settings.DailyLimits(ctx)
	if err != nil {
		return dto.StatusOutput{}, err
	}
	out := dto.StatusOutput{Limits: limits, DateKey: domain.DateKey(now), CheckedAt: now}

	if r, err := i.current(); err == nil {
		out.Active = true
		out.AdapterID = r.adapter.ID()
		out.View, _ = r.engine.ViewState()
		out.Usage = r.engine.DailyUsage()
	} else {
		usage, err := i.loadUsage(ctx)
		if err != nil {
			return dto.StatusOutput{}, err
		}
		out.Usage = usage
		snapshot, err := i.sessions.LoadSnapshot(ctx)
		if err != nil {
			i.logger.Warn("ignoring unreadable snapshot", "error", err)
		} else {
			out.Persisted = snapshot
		}
	}
	out.LimitHit = domain.IsDailyLimitReached(limits, out.Usage, out.AdapterID)
	return out, nil
}

func (i *Interactor) Settings(ctx context.Context) (dto.SettingsOutput, error) {
	cfg, err := i.settings.SessionConfig(ctx)
	if err != nil {
		return dto.SettingsOutput{}, err
	}
	limits, err := i.settings.DailyLimits(ctx)
	if err != nil {
		return dto.SettingsOutput{}, err
	}
	return dto.SettingsOutput{Session: cfg, Limits: limits}, nil
}

// UpdateSessionConfig changes the defaults for future sessions. A running
// session keeps its own config.
func (i *Interactor) UpdateSessionConfig(ctx context.Context, input dto.ConfigInput) (dto.SettingsOutput, error) {
	overrides, err := toOverrides(input)
	if err != nil {
		return dto.SettingsOutput{}, err
	}
	cfg, err := i.settings.SessionConfig(ctx)
	if err != nil {
		return dto.SettingsOutput{}, err
	}
	if err := i.settings.SetSessionConfig(ctx, overrides.Apply(cfg).Normalize()); err != nil {
		return dto.SettingsOutput{}, err
	}
	return i.Settings(ctx)
}

// UpdateDailyLimits stores new limits and hands them to a running session.
func (i *Interactor) UpdateDailyLimits(ctx context.Context, input dto.LimitsInput) (dto.SettingsOutput, error) {
	limits, err := i.settings.DailyLimits(ctx)
	if err != nil {
		return dto.SettingsOutput{}, err
	}
	limits = domain.NormalizeLimits(limits)
	if input.GlobalMaxPosts != nil {
		if *input.GlobalMaxPosts < 0 {
			return dto.SettingsOutput{}, fmt.Errorf("global limit %d: %w", *input.GlobalMaxPosts, apperrors.ErrInvalidInput)
		}
		limits.Global.MaxPosts = *input.GlobalMaxPosts
	}
	if input.SiteMaxPosts != nil {
		if input.Site == "" || *input.SiteMaxPosts < 0 {
			return dto.SettingsOutput{}, fmt.Errorf("site limit %q=%d: %w", input.Site, *input.SiteMaxPosts, apperrors.ErrInvalidInput)
		}
		if *input.SiteMaxPosts == 0 {
			delete(limits.PerSite, input.Site)
		} else {
			limits.PerSite[input.Site] = domain.DailyLimitRule{MaxPosts: *input.SiteMaxPosts}
		}
	}
	saved, err := i.settings.SetDailyLimits(ctx, limits)
	if err != nil {
		return dto.SettingsOutput{}, err
	}
	if r, err := i.current(); err == nil {
		r.engine.SetDailyContext(saved, r.engine.DailyUsage())
	}
	return i.Settings(ctx)
}

func (i *Interactor) ClearSnapshot(ctx context.Context) error {
	if _, err := i.current(); err == nil {
		return fmt.Errorf("clear snapshot while a session runs: %w", apperrors.ErrInvalidInput)
	}
	return i.sessions.ClearSnapshot(ctx)
}

// ClearUsage resets today's counters, including those of a running session.
func (i *Interactor) ClearUsage(ctx context.Context) error {
	usage := domain.NormalizeUsageForDate(nil, domain.DateKey(i.clock.Now()))
	if err := i.sessions.SaveUsage(ctx, usage); err != nil {
		return err
	}
	if r, err := i.current(); err == nil {
		limits, err := i.settings.DailyLimits(ctx)
		if err != nil {
			return err
		}
		r.engine.SetDailyContext(limits, usage)
	}
	i.publish(dto.Event{Kind: dto.EventUsage, Usage: usage})
	return nil
}

func (i *Interactor) Sites(ctx context.Context) ([]dto.SiteOutput, error) {
	adapters := i.registry.List()
	out := make([]dto.SiteOutput, 0, len(adapters))
	for _, adapter := range adapters {
		site, err := i.settings.SiteSettings(ctx, adapter.ID())
		if err != nil {
			return nil, err
		}
		out = append(out, dto.SiteOutput{ID: adapter.ID(), Name: adapter.Name(), Enabled: site.Enabled})
	}
	return out, nil
}

func (i *Interactor) SetSiteEnabled(ctx context.Context, siteID string, enabled bool) error {
	if _, ok := i.registry.Get(siteID); !ok {
		return fmt.Errorf("site %q: %w", siteID, apperrors.ErrNotFound)
	}
	site, err := i.settings.SiteSettings(ctx, siteID)
	if err != nil {
		return err
	}
	site.Enabled = enabled
	return i.settings.SetSiteSettings(ctx, siteID, site)
}

func (i *Interactor) History(ctx context.Context, limit int) ([]dto.HistoryOutput, error) {
	if i.history == nil {
		return nil, nil
	}
	records, err := i.history.List(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]dto.HistoryOutput, 0, len(records))
	for _, rec := range records {
		out = append(out, dto.HistoryOutput{
			ID:          rec.ID,
			AdapterID:   rec.AdapterID,
			StartedAt:   rec.StartedAt,
			EndedAt:     rec.EndedAt,
			Reason:      rec.Summary.Reason,
			ViewedCount: rec.Summary.ViewedCount,
			DurationMs:  rec.Summary.DurationMs,
			ActiveMs:    rec.Stats.ActiveMs,
		})
	}
	return out, nil
}
