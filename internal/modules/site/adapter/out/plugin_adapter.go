package out

import (
	"context"

	siteout "focusdeck/internal/modules/site/port/out"
)

// PluginAdapter is a page over a site plugin's feed. Close stops the plugin.
type PluginAdapter struct {
	*PageAdapter
	feed siteout.PluginFeed
}

func NewPluginAdapter(ctx context.Context, feed siteout.PluginFeed, opts PageOptions) (*PluginAdapter, error) {
	meta := feed.Metadata()
	info := SiteInfo{ID: meta.SiteID, Name: meta.SiteName, BaseURL: "plugin://" + meta.SiteID}
	adapter := &PluginAdapter{PageAdapter: NewPageAdapter(info, feed, opts), feed: feed}
	if _, err := adapter.LoadMore(ctx); err != nil {
		feed.Close()
		return nil, err
	}
	return adapter, nil
}

func (a *PluginAdapter) Close() {
	a.WaitLoads()
	a.feed.Close()
}
