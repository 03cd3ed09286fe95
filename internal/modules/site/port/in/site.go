package in

import (
	"context"

	"focusdeck/internal/modules/site/dto"
)

type Usecase interface {
	Plugins(ctx context.Context) ([]dto.PluginInfo, error)
	Doctor(ctx context.Context) ([]dto.DoctorResult, error)
	Bookmarks(ctx context.Context, limit int) ([]dto.BookmarkOutput, error)
	RemoveBookmark(ctx context.Context, siteID, postID string) error
}
