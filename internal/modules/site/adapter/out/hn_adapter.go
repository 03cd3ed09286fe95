package out

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"focusdeck/internal/modules/site/domain"

	"golang.org/x/sync/errgroup"
)

const (
	HNSiteID         = "hn"
	DefaultHNBaseURL = "https://hacker-news.firebaseio.com/v0"
	hnItemURL        = "https://news.ycombinator.com/item?id="
	hnPageSize       = 20
	hnFetchWorkers   = 8
	hnLineHeight     = 18
	hnCharsPerLine   = 80
)

var htmlTag = regexp.MustCompile(`<[^>]+>`)

type hnItem struct {
	ID      int64  `json:"id"`
	Type    string `json:"type"`
	By      string `json:"by"`
	Time    int64  `json:"time"`
	Title   string `json:"title"`
	Text    string `json:"text"`
	URL     string `json:"url"`
	Score   int    `json:"score"`
	Deleted bool   `json:"deleted"`
	Dead    bool   `json:"dead"`
}

// HNSource reads the Hacker News front page from its public JSON API.
type HNSource struct {
	baseURL string
	client  *http.Client

	mu  sync.Mutex
	ids []int64
}

func NewHNSource(baseURL string, client *http.Client) *HNSource {
	if baseURL == "" {
		baseURL = DefaultHNBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HNSource{baseURL: strings.TrimSuffix(baseURL, "/"), client: client}
}

func (s *HNSource) Fetch(ctx context.Context, cursor string) (domain.Batch, error) {
	ids, err := s.topStories(ctx)
	if err != nil {
		return domain.Batch{}, err
	}
	offset := 0
	if cursor != "" {
		if offset, err = strconv.Atoi(cursor); err != nil || offset < 0 {
			return domain.Batch{}, fmt.Errorf("bad hn cursor %q", cursor)
		}
	}
	offset = min(offset, len(ids))
	end := min(offset+hnPageSize, len(ids))

	items := make([]*hnItem, end-offset)
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(hnFetchWorkers)
	for i, id := range ids[offset:end] {
		group.Go(func() error {
			item := &hnItem{}
			if err := s.get(groupCtx, fmt.Sprintf("/item/%d.json", id), item); err != nil {
				return err
			}
			items[i] = item
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return domain.Batch{}, err
	}

	batch := domain.Batch{Posts: make([]domain.Post, 0, len(items))}
	for _, item := range items {
		if item == nil || item.ID == 0 || item.Deleted || item.Dead {
			continue
		}
		batch.Posts = append(batch.Posts, item.post())
	}
	if end < len(ids) {
		batch.Next = strconv.Itoa(end)
	}
	return batch, nil
}

func (s *HNSource) topStories(ctx context.Context) ([]int64, error) {
	s.mu.Lock()
	ids := s.ids
	s.mu.Unlock()
	if ids != nil {
		return ids, nil
	}
	if err := s.get(ctx, "/topstories.json", &ids); err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []int64{}
	}
	s.mu.Lock()
	s.ids = ids
	s.mu.Unlock()
	return ids, nil
}

func (s *HNSource) get(ctx context.Context, path string, into any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("get %s: status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (it hnItem) post() domain.Post {
	id := strconv.FormatInt(it.ID, 10)
	text := plainText(it.Text)
	if it.URL != "" {
		text = strings.TrimSpace(text + "\n\n" + it.URL)
	}
	var posted time.Time
	if it.Time > 0 {
		posted = time.Unix(it.Time, 0).UTC()
	}
	return domain.Post{
		ID:        id,
		Author:    it.By,
		Handle:    it.By,
		Title:     html.UnescapeString(it.Title),
		Text:      text,
		Permalink: hnItemURL + id,
		PostedAt:  posted,
		Height:    estimateHeight(it.Title, text),
	}
}

func plainText(s string) string {
	s = strings.ReplaceAll(s, "<p>", "\n\n")
	return strings.TrimSpace(html.UnescapeString(htmlTag.ReplaceAllString(s, "")))
}

func estimateHeight(title, text string) float64 {
	lines := 3 + (len(title)+len(text))/hnCharsPerLine + strings.Count(text, "\n")
	return float64(min(lines, 40) * hnLineHeight)
}

func HNInfo() SiteInfo {
	return SiteInfo{
		ID:           HNSiteID,
		Name:         "Hacker News",
		BaseURL:      "https://news.ycombinator.com",
		FeedURL:      "https://news.ycombinator.com/news",
		DetailPrefix: hnItemURL,
	}
}

func NewHNAdapter(source *HNSource, opts PageOptions) *PageAdapter {
	return NewPageAdapter(HNInfo(), source, opts)
}
