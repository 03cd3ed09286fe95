package usecase

import (
	"context"

	"focusdeck/internal/modules/site/dto"
	sitein "focusdeck/internal/modules/site/port/in"
	"focusdeck/internal/modules/site/service"
)

type Interactor struct {
	svc *service.SiteService
}

func NewInteractor(svc *service.SiteService) sitein.Usecase {
	return &Interactor{svc: svc}
}

func (i *Interactor) Plugins(ctx context.Context) ([]dto.PluginInfo, error) {
	return i.svc.Plugins(ctx)
}

func (i *Interactor) Doctor(ctx context.Context) ([]dto.DoctorResult, error) {
	return i.svc.Doctor(ctx)
}

func (i *Interactor) Bookmarks(ctx context.Context, limit int) ([]dto.BookmarkOutput, error) {
	return i.svc.Bookmarks(ctx, limit)
}

func (i *Interactor) RemoveBookmark(ctx context.Context, siteID, postID string) error {
	return i.svc.RemoveBookmark(ctx, siteID, postID)
}
