package domain

import "context"

// Rect is a post's vertical extent relative to the top of the viewport.
type Rect struct {
	Top    float64
	Height float64
}

func (r Rect) Bottom() float64 { return r.Top + r.Height }

func (r Rect) Center() float64 { return r.Top + r.Height/2 }

// Element is the renderable unit behind a handle. Its geometry is live: two
// calls may return different rects if the feed moved in between.
type Element interface {
	Rect() Rect
}

// PostHandle identifies one feed unit as currently rendered. Handles are not
// stable across feed mutations; re-resolve them by ID.
type PostHandle struct {
	ID      string
	Element Element
}

type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

type MediaItem struct {
	Kind MediaKind
	URL  string
	Alt  string
}

type PostMeta struct {
	ID        string
	Text      string
	Author    string
	Handle    string
	Timestamp string
	Permalink string
	Media     []MediaItem
	SiteLabel string
	IsRepost  bool
	Quoted    *PostMeta
}

type ActionKind string

const (
	ActionNotInterested ActionKind = "notInterested"
	ActionBookmark      ActionKind = "bookmark"
	ActionOpenOriginal  ActionKind = "openOriginal"
)

// Destructive actions change the user's account on the host site and must
// only ever run in response to an explicit user gesture.
func (k ActionKind) Destructive() bool {
	return k == ActionNotInterested || k == ActionBookmark
}

type ActionResult struct {
	OK      bool
	Message string
	Undo    func(ctx context.Context) error
}

func Failed(message string) ActionResult {
	return ActionResult{OK: false, Message: message}
}

type InputKind string

const (
	InputScroll  InputKind = "scroll"
	InputWheel   InputKind = "wheel"
	InputKeyDown InputKind = "keydown"
	InputResize  InputKind = "resize"
	InputFocus   InputKind = "focus"
	InputBlur    InputKind = "blur"
)

// ViewportInput is user input aimed at the page rather than the session:
// Delta for scroll and wheel, Height for resize.
type ViewportInput struct {
	Kind   InputKind
	Delta  float64
	Height float64
}
