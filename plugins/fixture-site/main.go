package main

import (
	"context"
	"fmt"
	"os"
	"time"

	siteout "focusdeck/internal/modules/site/adapter/out"
	"focusdeck/internal/modules/site/adapter/out/rpc"
	"focusdeck/internal/modules/site/domain"

	"github.com/hashicorp/go-plugin"
)

const (
	feedEnv         = "FOCUSDECK_FIXTURE_FEED"
	generatedPosts  = 60
	defaultPageSize = 12
)

type server struct {
	feed   siteout.FixtureFeed
	source *siteout.FixtureSource
}

func (s *server) GetMetadata(_ context.Context, _ *rpc.Empty) (*rpc.Metadata, error) {
	return &rpc.Metadata{
		SiteID:   s.feed.ID,
		SiteName: s.feed.Name,
		Version:  "1.0.0",
		PageSize: int32(s.feed.PageSize),
	}, nil
}

func (s *server) FetchPage(ctx context.Context, in *rpc.FetchPageRequest) (*rpc.FetchPageResponse, error) {
	batch, err := s.source.Fetch(ctx, in.Cursor)
	if err != nil {
		return nil, err
	}
	resp := &rpc.FetchPageResponse{NextCursor: batch.Next, Posts: make([]rpc.Post, 0, len(batch.Posts))}
	for _, post := range batch.Posts {
		resp.Posts = append(resp.Posts, siteout.PostToRPC(post))
	}
	return resp, nil
}

// loadFeed reads the feed named by the environment, or makes one up.
func loadFeed() (siteout.FixtureFeed, error) {
	if path := os.Getenv(feedEnv); path != "" {
		return siteout.LoadFixtureFeed(path)
	}
	feed := siteout.FixtureFeed{ID: "fixture-site", Name: "Fixture Site", PageSize: defaultPageSize}
	start := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	for i := 1; i <= generatedPosts; i++ {
		feed.Posts = append(feed.Posts, domain.Post{
			ID:       fmt.Sprintf("p%03d", i),
			Author:   fmt.Sprintf("author %d", i%7+1),
			Title:    fmt.Sprintf("Post %d", i),
			Text:     fmt.Sprintf("Generated post number %d.", i),
			PostedAt: start.Add(time.Duration(i) * time.Minute),
			Height:   float64(120 + (i%4)*40),
		})
	}
	return feed, nil
}

func main() {
	feed, err := loadFeed()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	plugin.Serve(&plugin.ServeConfig{
		HandshakeConfig: rpc.HandshakeConfig,
		Plugins:         rpc.PluginMap(&server{feed: feed, source: feed.Source()}),
		GRPCServer:      plugin.DefaultGRPCServer,
	})
}
