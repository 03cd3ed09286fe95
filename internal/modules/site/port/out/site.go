package out

import (
	"context"

	"focusdeck/internal/modules/site/domain"
)

// Source pages through a site's feed. An empty cursor asks for the first
// page.
type Source interface {
	Fetch(ctx context.Context, cursor string) (domain.Batch, error)
}

type BookmarkStore interface {
	SaveBookmark(ctx context.Context, bookmark domain.Bookmark) error
	DeleteBookmark(ctx context.Context, siteID, postID string) error
	ListBookmarks(ctx context.Context, limit int) ([]domain.Bookmark, error)
}

type ManifestStore interface {
	Load(ctx context.Context) ([]domain.Manifest, error)
}

// PluginFeed is a connected site plugin. Close stops the plugin process.
type PluginFeed interface {
	Source
	Metadata() domain.Metadata
	Close()
}

type Host interface {
	Open(ctx context.Context, manifest domain.Manifest) (PluginFeed, error)
}
