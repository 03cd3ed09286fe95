package in

import (
	"context"

	"focusdeck/internal/modules/site/dto"
	sitein "focusdeck/internal/modules/site/port/in"
)

type CLIHandler struct {
	usecase sitein.Usecase
}

func NewCLIHandler(usecase sitein.Usecase) CLIHandler {
	return CLIHandler{usecase: usecase}
}

func (h CLIHandler) Plugins(ctx context.Context) ([]dto.PluginInfo, error) {
	return h.usecase.Plugins(ctx)
}

func (h CLIHandler) Doctor(ctx context.Context) ([]dto.DoctorResult, error) {
	return h.usecase.Doctor(ctx)
}

func (h CLIHandler) Bookmarks(ctx context.Context, limit int) ([]dto.BookmarkOutput, error) {
	return h.usecase.Bookmarks(ctx, limit)
}

func (h CLIHandler) RemoveBookmark(ctx context.Context, siteID, postID string) error {
	return h.usecase.RemoveBookmark(ctx, siteID, postID)
}
