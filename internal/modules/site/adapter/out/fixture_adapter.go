package out

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"focusdeck/internal/modules/site/domain"

	"gopkg.in/yaml.v3"
)

const defaultFixturePageSize = 10

// FixtureFeed is a feed read from a YAML file.
type FixtureFeed struct {
	ID       string        `yaml:"id"`
	Name     string        `yaml:"name"`
	PageSize int           `yaml:"page_size,omitempty"`
	Posts    []domain.Post `yaml:"posts"`
}

func LoadFixtureFeed(path string) (FixtureFeed, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return FixtureFeed{}, fmt.Errorf("read fixture feed: %w", err)
	}
	var feed FixtureFeed
	if err := yaml.Unmarshal(b, &feed); err != nil {
		return FixtureFeed{}, fmt.Errorf("decode fixture feed %s: %w", path, err)
	}
	if feed.ID == "" {
		feed.ID = "fixture"
	}
	if feed.Name == "" {
		feed.Name = feed.ID
	}
	if feed.PageSize <= 0 {
		feed.PageSize = defaultFixturePageSize
	}
	seen := map[string]struct{}{}
	for i, post := range feed.Posts {
		if post.ID == "" {
			return FixtureFeed{}, fmt.Errorf("fixture post %d has no id", i)
		}
		if _, dup := seen[post.ID]; dup {
			return FixtureFeed{}, fmt.Errorf("fixture post %q listed twice", post.ID)
		}
		seen[post.ID] = struct{}{}
	}
	return feed, nil
}

// Source serves the posts PageSize at a time.
func (f FixtureFeed) Source() *FixtureSource {
	return &FixtureSource{posts: f.Posts, pageSize: max(1, f.PageSize)}
}

func (f FixtureFeed) Info() SiteInfo {
	return SiteInfo{ID: f.ID, Name: f.Name, BaseURL: "fixture://" + f.ID}
}

type FixtureSource struct {
	posts    []domain.Post
	pageSize int
}

func (s *FixtureSource) Fetch(ctx context.Context, cursor string) (domain.Batch, error) {
	if err := ctx.Err(); err != nil {
		return domain.Batch{}, err
	}
	offset := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil || n < 0 {
			return domain.Batch{}, fmt.Errorf("bad fixture cursor %q", cursor)
		}
		offset = n
	}
	offset = min(offset, len(s.posts))
	end := min(offset+s.pageSize, len(s.posts))
	batch := domain.Batch{Posts: append([]domain.Post(nil), s.posts[offset:end]...)}
	if end < len(s.posts) {
		batch.Next = strconv.Itoa(end)
	}
	return batch, nil
}

// NewFixtureAdapter loads the feed file and its first page.
func NewFixtureAdapter(ctx context.Context, path string, opts PageOptions) (*PageAdapter, error) {
	feed, err := LoadFixtureFeed(path)
	if err != nil {
		return nil, err
	}
	adapter := NewPageAdapter(feed.Info(), feed.Source(), opts)
	if _, err := adapter.LoadMore(ctx); err != nil {
		return nil, err
	}
	return adapter, nil
}
