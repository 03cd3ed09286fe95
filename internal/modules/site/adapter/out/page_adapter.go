package out

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	deckdomain "focusdeck/internal/modules/deck/domain"
	deckout "focusdeck/internal/modules/deck/port/out"
	"focusdeck/internal/modules/site/domain"
	siteout "focusdeck/internal/modules/site/port/out"
	"focusdeck/internal/platform/clock"

	hclog "github.com/hashicorp/go-hclog"
)

const (
	defaultViewportHeight = 720
	defaultLoadTimeout    = 15 * time.Second
)

// SiteInfo names a site and the URLs its pages live under.
type SiteInfo struct {
	ID   string
	Name string
	// BaseURL prefixes every URL the site serves.
	BaseURL string
	FeedURL string
	// DetailPrefix prefixes the permalink of a single post.
	DetailPrefix string
}

type PageOptions struct {
	ViewportHeight float64
	Bookmarks      siteout.BookmarkStore
	Clock          clock.Clock
	Logger         hclog.Logger
	LoadTimeout    time.Duration
}

// PageAdapter presents a Source as a scrolling feed the session engine can
// drive. Every site adapter is a PageAdapter over its own Source.
type PageAdapter struct {
	info      SiteInfo
	page      *domain.Page
	source    siteout.Source
	bookmarks siteout.BookmarkStore
	clock     clock.Clock
	logger    hclog.Logger
	timeout   time.Duration

	loading atomic.Bool
	loads   sync.WaitGroup

	mu      sync.Mutex
	cursor  string
	done    bool
	loadErr error
}

func NewPageAdapter(info SiteInfo, source siteout.Source, opts PageOptions) *PageAdapter {
	if opts.ViewportHeight <= 0 {
		opts.ViewportHeight = defaultViewportHeight
	}
	if opts.Clock == nil {
		opts.Clock = clock.SystemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = hclog.NewNullLogger()
	}
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = defaultLoadTimeout
	}
	if info.FeedURL == "" {
		info.FeedURL = strings.TrimSuffix(info.BaseURL, "/") + "/feed"
	}
	if info.DetailPrefix == "" {
		info.DetailPrefix = strings.TrimSuffix(info.BaseURL, "/") + "/post/"
	}
	return &PageAdapter{
		info:      info,
		page:      domain.NewPage(opts.ViewportHeight),
		source:    source,
		bookmarks: opts.Bookmarks,
		clock:     opts.Clock,
		logger:    opts.Logger.Named("site").With("site", info.ID),
		timeout:   opts.LoadTimeout,
	}
}

func (a *PageAdapter) ID() string   { return a.info.ID }
func (a *PageAdapter) Name() string { return a.info.Name }

// Page exposes the rendered document, for views that draw it.
func (a *PageAdapter) Page() *domain.Page { return a.page }

func (a *PageAdapter) SupportsURL(url string) bool {
	return a.info.BaseURL != "" && strings.HasPrefix(url, a.info.BaseURL)
}

func (a *PageAdapter) FeedURL() string { return a.info.FeedURL }

func (a *PageAdapter) IsFeedPage(url string) bool {
	return url == a.info.FeedURL || strings.HasPrefix(url, a.info.FeedURL+"?")
}

func (a *PageAdapter) IsDetailPage(url string) bool {
	return strings.HasPrefix(url, a.info.DetailPrefix) && len(url) > len(a.info.DetailPrefix)
}

// LoadMore fetches the next page from the source and appends it. It returns
// the number of posts the source delivered.
func (a *PageAdapter) LoadMore(ctx context.Context) (int, error) {
	a.mu.Lock()
	if a.done {
		a.mu.Unlock()
		return 0, nil
	}
	cursor := a.cursor
	a.mu.Unlock()

	batch, err := a.source.Fetch(ctx, cursor)
	if err != nil {
		a.mu.Lock()
		a.loadErr = err
		a.mu.Unlock()
		return 0, fmt.Errorf("fetch %s feed: %w", a.info.ID, err)
	}

	a.mu.Lock()
	a.cursor = batch.Next
	a.done = batch.Next == ""
	a.loadErr = nil
	a.mu.Unlock()

	a.page.Append(batch.Posts...)
	a.logger.Debug("feed page loaded", "posts", len(batch.Posts), "more", batch.Next != "")
	return len(batch.Posts), nil
}

// Exhausted reports whether the source has no more pages.
func (a *PageAdapter) Exhausted() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.done
}

// LastError is the error of the most recent failed load, if the load after
// it has not succeeded.
func (a *PageAdapter) LastError() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.loadErr
}

// TriggerLazyLoad starts a background load unless one is running.
func (a *PageAdapter) TriggerLazyLoad(*deckdomain.PostHandle) {
	if a.Exhausted() || !a.loading.CompareAndSwap(false, true) {
		return
	}
	a.loads.Add(1)
	go func() {
		defer a.loads.Done()
		defer a.loading.Store(false)
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()
		if _, err := a.LoadMore(ctx); err != nil {
			a.logger.Warn("lazy load failed", "error", err)
		}
	}()
}

// WaitLoads blocks until background loads have finished.
func (a *PageAdapter) WaitLoads() { a.loads.Wait() }

func (a *PageAdapter) FeedItems() []deckdomain.PostHandle {
	posts := a.page.Posts()
	items := make([]deckdomain.PostHandle, 0, len(posts))
	for _, post := range posts {
		items = append(items, a.handle(post.ID))
	}
	return items
}

func (a *PageAdapter) FindHandle(id string) (deckdomain.PostHandle, bool) {
	if _, ok := a.page.Post(id); !ok {
		return deckdomain.PostHandle{}, false
	}
	return a.handle(id), true
}

func (a *PageAdapter) handle(id string) deckdomain.PostHandle {
	return deckdomain.PostHandle{ID: id, Element: element{page: a.page, id: id}}
}

func (a *PageAdapter) ProgressKey(h deckdomain.PostHandle) (string, bool) {
	post, ok := a.page.Post(h.ID)
	if !ok {
		return "", false
	}
	return post.ProgressKey(), true
}

func (a *PageAdapter) FocusItem(h deckdomain.PostHandle) {
	a.page.CenterOn(h.ID)
}

func (a *PageAdapter) ObserveFeedChanges(onChange func()) func() {
	return a.page.OnChange(onChange)
}

func (a *PageAdapter) PostMeta(h deckdomain.PostHandle) (deckdomain.PostMeta, bool) {
	post, ok := a.page.Post(h.ID)
	if !ok {
		return deckdomain.PostMeta{}, false
	}
	return a.meta(post), true
}

func (a *PageAdapter) meta(post domain.Post) deckdomain.PostMeta {
	text := post.Text
	if post.Title != "" {
		text = strings.TrimSpace(post.Title + "\n\n" + post.Text)
	}
	meta := deckdomain.PostMeta{
		ID:        post.ID,
		Text:      text,
		Author:    post.Author,
		Handle:    post.Handle,
		Permalink: a.permalink(post),
		SiteLabel: a.info.Name,
		IsRepost:  post.RepostOf != "",
	}
	if !post.PostedAt.IsZero() {
		meta.Timestamp = post.PostedAt.UTC().Format(time.RFC3339)
	}
	for _, m := range post.Media {
		kind := deckdomain.MediaImage
		if m.Kind == string(deckdomain.MediaVideo) {
			kind = deckdomain.MediaVideo
		}
		meta.Media = append(meta.Media, deckdomain.MediaItem{Kind: kind, URL: m.URL, Alt: m.Alt})
	}
	return meta
}

func (a *PageAdapter) permalink(post domain.Post) string {
	if post.Permalink != "" {
		return post.Permalink
	}
	return a.info.DetailPrefix + post.ID
}

// NotInterested hides the post from the page. Undo puts it back where it was.
func (a *PageAdapter) NotInterested(_ context.Context, h deckdomain.PostHandle) (deckdomain.ActionResult, error) {
	index, post, ok := a.page.Remove(h.ID)
	if !ok {
		return deckdomain.Failed("Post is no longer in the feed."), nil
	}
	a.logger.Debug("post hidden", "post", h.ID)
	return deckdomain.ActionResult{
		OK:      true,
		Message: "Post hidden.",
		Undo: func(context.Context) error {
			a.page.Insert(index, post)
			return nil
		},
	}, nil
}

func (a *PageAdapter) Bookmark(ctx context.Context, h deckdomain.PostHandle) (deckdomain.ActionResult, error) {
	if a.bookmarks == nil {
		return deckdomain.Failed("Bookmarks are not available for this site."), nil
	}
	post, ok := a.page.Post(h.ID)
	if !ok {
		return deckdomain.Failed("Post is no longer in the feed."), nil
	}
	bookmark := domain.Bookmark{
		SiteID:    a.info.ID,
		PostID:    post.ID,
		Author:    post.Author,
		Text:      a.meta(post).Text,
		Permalink: a.permalink(post),
		SavedAt:   a.clock.Now().UTC(),
	}
	if err := a.bookmarks.SaveBookmark(ctx, bookmark); err != nil {
		return deckdomain.ActionResult{}, fmt.Errorf("save bookmark: %w", err)
	}
	return deckdomain.ActionResult{
		OK:      true,
		Message: "Bookmarked.",
		Undo: func(ctx context.Context) error {
			return a.bookmarks.DeleteBookmark(ctx, a.info.ID, post.ID)
		},
	}, nil
}

// OpenOriginal resolves the post's permalink. The caller navigates to it.
func (a *PageAdapter) OpenOriginal(_ context.Context, h deckdomain.PostHandle) (deckdomain.ActionResult, error) {
	post, ok := a.page.Post(h.ID)
	if !ok {
		return deckdomain.Failed("Post is no longer in the feed."), nil
	}
	return deckdomain.ActionResult{OK: true, Message: "Opened " + a.permalink(post)}, nil
}

func (a *PageAdapter) ApplyInput(input deckdomain.ViewportInput) {
	switch input.Kind {
	case deckdomain.InputScroll:
		a.page.ScrollBy(input.Delta, domain.EventScroll)
	case deckdomain.InputWheel:
		a.page.ScrollBy(input.Delta, domain.EventWheel)
	case deckdomain.InputKeyDown:
		a.page.KeyPress()
	case deckdomain.InputResize:
		a.page.Resize(input.Height)
	case deckdomain.InputFocus:
		a.page.SetVisible(true)
	case deckdomain.InputBlur:
		a.page.SetVisible(false)
	}
}

func (a *PageAdapter) Viewport() deckout.Viewport { return viewport{page: a.page} }

type element struct {
	page *domain.Page
	id   string
}

// Rect of a post that left the page lies far above the viewport so it is
// never taken for a visible post.
func (e element) Rect() deckdomain.Rect {
	top, height, ok := e.page.Rect(e.id)
	if !ok {
		return deckdomain.Rect{Top: -1e9}
	}
	return deckdomain.Rect{Top: top, Height: height}
}

type viewport struct {
	page *domain.Page
}

func (v viewport) Height() float64    { return v.page.Height() }
func (v viewport) Visible() bool      { return v.page.Visible() }
func (v viewport) ScrollTop() float64 { return v.page.ScrollTop() }

func (v viewport) OnViewportChange(fn func(deckout.ViewportEvent)) func() {
	return v.page.OnEvent(func(kind domain.EventKind) {
		fn(deckout.ViewportEvent{Type: viewportEventType(kind)})
	})
}

func viewportEventType(kind domain.EventKind) deckout.ViewportEventType {
	switch kind {
	case domain.EventWheel:
		return deckout.ViewportWheel
	case domain.EventResize:
		return deckout.ViewportResize
	case domain.EventKeyDown:
		return deckout.ViewportKeyDown
	case domain.EventVisibility:
		return deckout.ViewportVisible
	default:
		return deckout.ViewportScroll
	}
}

var (
	_ deckout.Adapter          = (*PageAdapter)(nil)
	_ deckout.HandleFinder     = (*PageAdapter)(nil)
	_ deckout.ProgressKeyer    = (*PageAdapter)(nil)
	_ deckout.FeedObserver     = (*PageAdapter)(nil)
	_ deckout.LazyLoader       = (*PageAdapter)(nil)
	_ deckout.OriginalOpener   = (*PageAdapter)(nil)
	_ deckout.RouteClassifier  = (*PageAdapter)(nil)
	_ deckout.FeedLocator      = (*PageAdapter)(nil)
	_ deckout.InputReceiver    = (*PageAdapter)(nil)
	_ deckout.ViewportProvider = (*PageAdapter)(nil)
	_ deckout.ScrollReporter   = viewport{}
)
