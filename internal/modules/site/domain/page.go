package domain

import (
	"sync"
)

// DefaultGap separates posts on a page.
const DefaultGap = 12

type EventKind string

const (
	EventScroll     EventKind = "scroll"
	EventWheel      EventKind = "wheel"
	EventResize     EventKind = "resize"
	EventKeyDown    EventKind = "keydown"
	EventVisibility EventKind = "visibilitychange"
)

type pagePost struct {
	post   Post
	height float64
}

// Page is a virtual scrolling document: posts stacked top to bottom, a
// viewport of fixed height and a scroll offset into them. Listeners are
// called after the page lock is released, on the caller's goroutine.
type Page struct {
	mu       sync.Mutex
	posts    []pagePost
	gap      float64
	scroll   float64
	height   float64
	visible  bool
	seq      int
	onEvent  map[int]func(EventKind)
	onChange map[int]func()
}

func NewPage(viewportHeight float64, posts ...Post) *Page {
	p := &Page{
		gap:      DefaultGap,
		height:   max(1, viewportHeight),
		visible:  true,
		onEvent:  map[int]func(EventKind){},
		onChange: map[int]func(){},
	}
	p.posts = appendPosts(nil, posts)
	return p
}

func appendPosts(dst []pagePost, posts []Post) []pagePost {
	for _, post := range posts {
		h := post.Height
		if h <= 0 {
			h = DefaultPostHeight
		}
		dst = append(dst, pagePost{post: post, height: h})
	}
	return dst
}

func (p *Page) Height() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.height
}

func (p *Page) Visible() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.visible
}

func (p *Page) ScrollTop() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.scroll
}

// Posts returns the rendered posts in order.
func (p *Page) Posts() []Post {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Post, 0, len(p.posts))
	for _, pp := range p.posts {
		out = append(out, pp.post)
	}
	return out
}

func (p *Page) Post(id string) (Post, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i := p.indexLocked(id); i >= 0 {
		return p.posts[i].post, true
	}
	return Post{}, false
}

// Offset returns the document position of post id.
func (p *Page) Offset(id string) (top, height float64, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.offsetLocked(id)
}

// Rect is the post's position relative to the viewport top.
func (p *Page) Rect(id string) (top, height float64, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	top, height, ok = p.offsetLocked(id)
	return top - p.scroll, height, ok
}

func (p *Page) ContentHeight() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.contentHeightLocked()
}

// ScrollBy moves the viewport by delta, reporting the move as kind.
func (p *Page) ScrollBy(delta float64, kind EventKind) {
	p.mu.Lock()
	moved := p.scrollToLocked(p.scroll + delta)
	p.mu.Unlock()
	if moved || kind == EventWheel {
		p.emit(kind)
	}
}

func (p *Page) ScrollTo(offset float64) {
	p.mu.Lock()
	moved := p.scrollToLocked(offset)
	p.mu.Unlock()
	if moved {
		p.emit(EventScroll)
	}
}

// CenterOn scrolls so post id sits in the middle of the viewport, as far as
// the document allows.
func (p *Page) CenterOn(id string) bool {
	p.mu.Lock()
	top, height, ok := p.offsetLocked(id)
	moved := false
	if ok {
		moved = p.scrollToLocked(top + height/2 - p.height/2)
	}
	p.mu.Unlock()
	if moved {
		p.emit(EventScroll)
	}
	return ok
}

func (p *Page) Resize(viewportHeight float64) {
	p.mu.Lock()
	p.height = max(1, viewportHeight)
	p.scrollToLocked(p.scroll)
	p.mu.Unlock()
	p.emit(EventResize)
}

func (p *Page) SetVisible(visible bool) {
	p.mu.Lock()
	changed := p.visible != visible
	p.visible = visible
	p.mu.Unlock()
	if changed {
		p.emit(EventVisibility)
	}
}

// KeyPress reports keyboard input aimed at the page.
func (p *Page) KeyPress() {
	p.emit(EventKeyDown)
}

func (p *Page) Append(posts ...Post) {
	if len(posts) == 0 {
		return
	}
	p.mu.Lock()
	known := make(map[string]struct{}, len(p.posts))
	for _, pp := range p.posts {
		known[pp.post.ID] = struct{}{}
	}
	fresh := make([]Post, 0, len(posts))
	for _, post := range posts {
		if _, dup := known[post.ID]; dup || post.ID == "" {
			continue
		}
		known[post.ID] = struct{}{}
		fresh = append(fresh, post)
	}
	p.posts = appendPosts(p.posts, fresh)
	p.mu.Unlock()
	if len(fresh) > 0 {
		p.changed()
	}
}

// Insert puts post back at index, used to undo a removal.
func (p *Page) Insert(index int, post Post) {
	p.mu.Lock()
	if p.indexLocked(post.ID) >= 0 {
		p.mu.Unlock()
		return
	}
	index = min(max(0, index), len(p.posts))
	added := appendPosts(nil, []Post{post})
	p.posts = append(p.posts[:index], append(added, p.posts[index:]...)...)
	p.mu.Unlock()
	p.changed()
}

// Remove drops post id and returns where it was.
func (p *Page) Remove(id string) (int, Post, bool) {
	p.mu.Lock()
	i := p.indexLocked(id)
	if i < 0 {
		p.mu.Unlock()
		return -1, Post{}, false
	}
	removed := p.posts[i].post
	p.posts = append(p.posts[:i], p.posts[i+1:]...)
	p.scrollToLocked(p.scroll)
	p.mu.Unlock()
	p.changed()
	return i, removed, true
}

// SetHeight changes how tall a post renders, as when media finishes loading.
func (p *Page) SetHeight(id string, height float64) bool {
	p.mu.Lock()
	i := p.indexLocked(id)
	if i < 0 || height <= 0 {
		p.mu.Unlock()
		return false
	}
	p.posts[i].height = height
	p.mu.Unlock()
	p.changed()
	return true
}

// OnEvent registers fn for viewport events.
func (p *Page) OnEvent(fn func(EventKind)) (unsubscribe func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	id := p.seq
	p.onEvent[id] = fn
	return func() {
		p.mu.Lock()
		delete(p.onEvent, id)
		p.mu.Unlock()
	}
}

// OnChange registers fn for changes to the set, order or size of posts.
func (p *Page) OnChange(fn func()) (unsubscribe func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	id := p.seq
	p.onChange[id] = fn
	return func() {
		p.mu.Lock()
		delete(p.onChange, id)
		p.mu.Unlock()
	}
}

func (p *Page) emit(kind EventKind) {
	p.mu.Lock()
	fns := make([]func(EventKind), 0, len(p.onEvent))
	for _, fn := range p.onEvent {
		fns = append(fns, fn)
	}
	p.mu.Unlock()
	for _, fn := range fns {
		fn(kind)
	}
}

func (p *Page) changed() {
	p.mu.Lock()
	fns := make([]func(), 0, len(p.onChange))
	for _, fn := range p.onChange {
		fns = append(fns, fn)
	}
	p.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (p *Page) indexLocked(id string) int {
	for i, pp := range p.posts {
		if pp.post.ID == id {
			return i
		}
	}
	return -1
}

func (p *Page) offsetLocked(id string) (float64, float64, bool) {
	top := 0.0
	for _, pp := range p.posts {
		if pp.post.ID == id {
			return top, pp.height, true
		}
		top += pp.height + p.gap
	}
	return 0, 0, false
}

func (p *Page) contentHeightLocked() float64 {
	if len(p.posts) == 0 {
		return 0
	}
	total := 0.0
	for _, pp := range p.posts {
		total += pp.height
	}
	return total + p.gap*float64(len(p.posts)-1)
}

// scrollToLocked clamps offset to the scrollable range and reports whether
// the viewport moved.
func (p *Page) scrollToLocked(offset float64) bool {
	limit := max(0, p.contentHeightLocked()-p.height)
	next := min(max(0, offset), limit)
	if next == p.scroll {
		return false
	}
	p.scroll = next
	return true
}
