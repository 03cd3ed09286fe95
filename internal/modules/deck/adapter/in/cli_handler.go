package in

import (
	"context"

	deckdto "focusdeck/internal/modules/deck/dto"
	deckin "focusdeck/internal/modules/deck/port/in"
)

type CLIHandler struct {
	usecase deckin.Usecase
}

func NewCLIHandler(usecase deckin.Usecase) CLIHandler {
	return CLIHandler{usecase: usecase}
}

func (h CLIHandler) Status(ctx context.Context) (deckdto.StatusOutput, error) {
	return h.usecase.Status(ctx)
}

func (h CLIHandler) ClearSnapshot(ctx context.Context) error {
	return h.usecase.ClearSnapshot(ctx)
}

func (h CLIHandler) ClearUsage(ctx context.Context) error {
	return h.usecase.ClearUsage(ctx)
}

func (h CLIHandler) Settings(ctx context.Context) (deckdto.SettingsOutput, error) {
	return h.usecase.Settings(ctx)
}

// SetGlobalLimit sets the daily post limit across sites. Zero removes it.
func (h CLIHandler) SetGlobalLimit(ctx context.Context, maxPosts int) (deckdto.SettingsOutput, error) {
	return h.usecase.UpdateDailyLimits(ctx, deckdto.LimitsInput{GlobalMaxPosts: &maxPosts})
}

func (h CLIHandler) SetSiteLimit(ctx context.Context, siteID string, maxPosts int) (deckdto.SettingsOutput, error) {
	return h.usecase.UpdateDailyLimits(ctx, deckdto.LimitsInput{Site: siteID, SiteMaxPosts: &maxPosts})
}

func (h CLIHandler) UpdateConfig(ctx context.Context, input deckdto.ConfigInput) (deckdto.SettingsOutput, error) {
	return h.usecase.UpdateSessionConfig(ctx, input)
}

func (h CLIHandler) Sites(ctx context.Context) ([]deckdto.SiteOutput, error) {
	return h.usecase.Sites(ctx)
}

func (h CLIHandler) SetSiteEnabled(ctx context.Context, siteID string, enabled bool) error {
	return h.usecase.SetSiteEnabled(ctx, siteID, enabled)
}

func (h CLIHandler) History(ctx context.Context, limit int) ([]deckdto.HistoryOutput, error) {
	return h.usecase.History(ctx, limit)
}
