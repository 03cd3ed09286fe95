package in

import (
	"context"

	"focusdeck/internal/modules/deck/dto"
)

type Usecase interface {
	Start(ctx context.Context, input dto.StartInput) (dto.StartOutput, error)
	Stop(ctx context.Context) (dto.StopOutput, error)
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	Next(ctx context.Context) (bool, error)
	Previous(ctx context.Context) (bool, error)
	RunAction(ctx context.Context, input dto.ActionInput) (dto.ActionOutput, error)
	Extend(ctx context.Context, additionalPosts int) error
	Navigate(ctx context.Context, url string) (dto.NavigateOutput, error)
	// Back navigates to the feed of the running session.
	Back(ctx context.Context) (dto.NavigateOutput, error)
	ShowPrompt(ctx context.Context, url string) (dto.PromptOutput, error)
	SuppressPromptToday(ctx context.Context, siteID string) error
	Subscribe(fn func(dto.Event)) (unsubscribe func())
	// Viewport forwards user input to the page the session runs on.
	Viewport(ctx context.Context, input dto.ViewportInput) error

	Status(ctx context.Context) (dto.StatusOutput, error)
	Settings(ctx context.Context) (dto.SettingsOutput, error)
	UpdateSessionConfig(ctx context.Context, input dto.ConfigInput) (dto.SettingsOutput, error)
	UpdateDailyLimits(ctx context.Context, input dto.LimitsInput) (dto.SettingsOutput, error)
	ClearSnapshot(ctx context.Context) error
	ClearUsage(ctx context.Context) error
	Sites(ctx context.Context) ([]dto.SiteOutput, error)
	SetSiteEnabled(ctx context.Context, siteID string, enabled bool) error
	History(ctx context.Context, limit int) ([]dto.HistoryOutput, error)
}
