package out

import (
	"context"

	"focusdeck/internal/modules/deck/domain"
)

// Adapter is the capability a site must provide for the engine to run a
// session over its feed. Optional capabilities below are discovered with a
// type assertion.
type Adapter interface {
	ID() string
	Name() string
	SupportsURL(url string) bool
	// FeedItems returns handles in feed order.
	FeedItems() []domain.PostHandle
	// FocusItem brings the handle into view. Best effort.
	FocusItem(handle domain.PostHandle)
	PostMeta(handle domain.PostHandle) (domain.PostMeta, bool)
	// NotInterested and Bookmark report host UI failures as a result with
	// OK=false rather than an error; errors are for unexpected failures.
	NotInterested(ctx context.Context, handle domain.PostHandle) (domain.ActionResult, error)
	Bookmark(ctx context.Context, handle domain.PostHandle) (domain.ActionResult, error)
}

type HandleFinder interface {
	FindHandle(id string) (domain.PostHandle, bool)
}

// ProgressKeyer maps a handle to the key counted toward progress. ok=false
// means the post never counts.
type ProgressKeyer interface {
	ProgressKey(handle domain.PostHandle) (key string, ok bool)
}

type FeedObserver interface {
	ObserveFeedChanges(onChange func()) (unsubscribe func())
}

type LazyLoader interface {
	// TriggerLazyLoad asks the host for more items. near may be nil.
	TriggerLazyLoad(near *domain.PostHandle)
}

// LoadErrorReporter exposes the last failed feed load until a later load
// succeeds.
type LoadErrorReporter interface {
	LastError() error
}

type MediaPauser interface {
	PauseMedia(near *domain.PostHandle)
}

type FocusMarkerClearer interface {
	ClearFocusMarkers()
}

type OriginalOpener interface {
	OpenOriginal(ctx context.Context, handle domain.PostHandle) (domain.ActionResult, error)
}

type RouteClassifier interface {
	IsFeedPage(url string) bool
	IsDetailPage(url string) bool
}

// FeedLocator reports the URL of the adapter's feed, used to navigate back
// from a detail page.
type FeedLocator interface {
	FeedURL() string
}

// InputReceiver accepts user input for the page the adapter renders.
type InputReceiver interface {
	ApplyInput(input domain.ViewportInput)
}

type ViewportEventType string

const (
	ViewportScroll    ViewportEventType = "scroll"
	ViewportResize    ViewportEventType = "resize"
	ViewportWheel     ViewportEventType = "wheel"
	ViewportTouchMove ViewportEventType = "touchmove"
	ViewportKeyDown   ViewportEventType = "keydown"
	ViewportVisible   ViewportEventType = "visibilitychange"
)

type ViewportEvent struct {
	Type ViewportEventType
}

// Viewport is the window the feed is rendered into.
type Viewport interface {
	Height() float64
	// Visible mirrors the page visibility API.
	Visible() bool
	OnViewportChange(fn func(ViewportEvent)) (unsubscribe func())
}

// ScrollReporter is implemented by viewports that know how far the feed has
// been scrolled. At offset zero the first visible post wins focus over the
// one nearest the center.
type ScrollReporter interface {
	ScrollTop() float64
}

// ViewportProvider is implemented by adapters that render into their own
// viewport.
type ViewportProvider interface {
	Viewport() Viewport
}

// SessionStore keeps the live snapshot and today's usage across restarts.
type SessionStore interface {
	LoadSnapshot(ctx context.Context) (*domain.SessionSnapshot, error)
	SaveSnapshot(ctx context.Context, snapshot domain.SessionSnapshot) error
	ClearSnapshot(ctx context.Context) error
	// LoadUsage returns nil when nothing has been stored yet.
	LoadUsage(ctx context.Context) (*domain.DailyUsage, error)
	SaveUsage(ctx context.Context, usage domain.DailyUsage) error
}

type SiteSettings struct {
	Enabled            bool   `yaml:"enabled"`
	SuppressPromptDate string `yaml:"suppress_prompt_date,omitempty"`
}

// SettingsStore holds user-authored preferences.
type SettingsStore interface {
	SessionConfig(ctx context.Context) (domain.SessionConfig, error)
	SetSessionConfig(ctx context.Context, cfg domain.SessionConfig) error
	DailyLimits(ctx context.Context) (domain.DailyLimitsConfig, error)
	SetDailyLimits(ctx context.Context, limits domain.DailyLimitsConfig) (domain.DailyLimitsConfig, error)
	SiteSettings(ctx context.Context, siteID string) (SiteSettings, error)
	SetSiteSettings(ctx context.Context, siteID string, settings SiteSettings) error
}

// HistoryStore records finished sessions.
type HistoryStore interface {
	Record(ctx context.Context, record domain.SessionRecord) error
	List(ctx context.Context, limit int) ([]domain.SessionRecord, error)
}

// JournalStore writes a human-readable note per finished session and returns
// its path.
type JournalStore interface {
	Write(ctx context.Context, record domain.SessionRecord) (string, error)
}
