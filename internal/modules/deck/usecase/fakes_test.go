package usecase_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"focusdeck/internal/modules/deck/domain"
	"focusdeck/internal/modules/deck/port/in"
	"focusdeck/internal/modules/deck/port/out"
	"focusdeck/internal/modules/deck/service"
	"focusdeck/internal/modules/deck/usecase"
	"focusdeck/internal/platform/clock"
)

const feedURL = "https://fake.test/feed"

type staticViewport struct{}

func (staticViewport) Height() float64                                 { return 600 }
func (staticViewport) Visible() bool                                   { return true }
func (staticViewport) ScrollTop() float64                              { return 0 }
func (staticViewport) OnViewportChange(func(out.ViewportEvent)) func() { return func() {} }

type box struct{ top float64 }

func (b box) Rect() domain.Rect { return domain.Rect{Top: b.top, Height: 120} }

type fakeSite struct {
	id string

	mu         sync.Mutex
	posts      []string
	pending    []string
	lazyLoads  int
	inputs     []domain.ViewportInput
	bookmarked []string
}

func newFakeSite(id string, posts ...string) *fakeSite {
	return &fakeSite{id: id, posts: posts}
}

func (s *fakeSite) ID() string                            { return s.id }
func (s *fakeSite) Name() string                          { return strings.ToUpper(s.id) }
func (s *fakeSite) SupportsURL(url string) bool           { return strings.HasPrefix(url, "https://"+s.id+".test") }
func (s *fakeSite) Viewport() out.Viewport                { return staticViewport{} }
func (s *fakeSite) FeedURL() string                       { return "https://" + s.id + ".test/feed" }
func (s *fakeSite) IsFeedPage(url string) bool            { return strings.HasSuffix(url, "/feed") }
func (s *fakeSite) IsDetailPage(url string) bool          { return strings.Contains(url, "/post/") }
func (s *fakeSite) ApplyInput(input domain.ViewportInput) { s.record(input) }

func (s *fakeSite) FocusItem(domain.PostHandle) {}

func (s *fakeSite) record(input domain.ViewportInput) {
	s.mu.Lock()
	s.inputs = append(s.inputs, input)
	s.mu.Unlock()
}

func (s *fakeSite) FeedItems() []domain.PostHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]domain.PostHandle, 0, len(s.posts))
	for i, id := range s.posts {
		items = append(items, domain.PostHandle{ID: id, Element: box{top: float64(i) * 150}})
	}
	return items
}

func (s *fakeSite) PostMeta(h domain.PostHandle) (domain.PostMeta, bool) {
	return domain.PostMeta{ID: h.ID, Text: "post " + h.ID, Permalink: "https://" + s.id + ".test/post/" + h.ID}, true
}

func (s *fakeSite) NotInterested(context.Context, domain.PostHandle) (domain.ActionResult, error) {
	return domain.ActionResult{OK: true, Message: "Hidden."}, nil
}

func (s *fakeSite) Bookmark(_ context.Context, h domain.PostHandle) (domain.ActionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bookmarked = append(s.bookmarked, h.ID)
	return domain.ActionResult{OK: true, Message: "Saved."}, nil
}

func (s *fakeSite) OpenOriginal(context.Context, domain.PostHandle) (domain.ActionResult, error) {
	return domain.ActionResult{OK: true, Message: "Opened."}, nil
}

// TriggerLazyLoad releases posts held back with withPending.
func (s *fakeSite) TriggerLazyLoad(*domain.PostHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lazyLoads++
	s.posts = append(s.posts, s.pending...)
	s.pending = nil
}

func (s *fakeSite) withPending(posts ...string) *fakeSite {
	s.pending = posts
	return s
}

func (s *fakeSite) loads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lazyLoads
}

type memorySessions struct {
	mu       sync.Mutex
	snapshot *domain.SessionSnapshot
	usage    *domain.DailyUsage
}

func (m *memorySessions) LoadSnapshot(context.Context) (*domain.SessionSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snapshot == nil {
		return nil, nil
	}
	snap := m.snapshot.Clone()
	return &snap, nil
}

func (m *memorySessions) SaveSnapshot(_ context.Context, snap domain.SessionSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshot = &snap
	return nil
}

func (m *memorySessions) ClearSnapshot(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshot = nil
	return nil
}

func (m *memorySessions) LoadUsage(context.Context) (*domain.DailyUsage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.usage, nil
}

func (m *memorySessions) SaveUsage(_ context.Context, usage domain.DailyUsage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usage = &usage
	return nil
}

type memorySettings struct {
	mu     sync.Mutex
	config domain.SessionConfig
	limits domain.DailyLimitsConfig
	sites  map[string]out.SiteSettings
}

func newMemorySettings() *memorySettings {
	return &memorySettings{config: domain.DefaultSessionConfig(), sites: map[string]out.SiteSettings{}}
}

func (m *memorySettings) SessionConfig(context.Context) (domain.SessionConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.config, nil
}

func (m *memorySettings) SetSessionConfig(_ context.Context, cfg domain.SessionConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config = cfg
	return nil
}

func (m *memorySettings) DailyLimits(context.Context) (domain.DailyLimitsConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return domain.NormalizeLimits(m.limits), nil
}

func (m *memorySettings) SetDailyLimits(_ context.Context, limits domain.DailyLimitsConfig) (domain.DailyLimitsConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limits = domain.NormalizeLimits(limits)
	return m.limits, nil
}

func (m *memorySettings) SiteSettings(_ context.Context, siteID string) (out.SiteSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	site, ok := m.sites[siteID]
	if !ok {
		return out.SiteSettings{Enabled: true}, nil
	}
	return site, nil
}

func (m *memorySettings) SetSiteSettings(_ context.Context, siteID string, settings out.SiteSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sites[siteID] = settings
	return nil
}

type memoryHistory struct {
	mu      sync.Mutex
	records []domain.SessionRecord
	journal []string
}

func (m *memoryHistory) Record(_ context.Context, rec domain.SessionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.records {
		if m.records[i].ID == rec.ID {
			m.records[i] = rec
			return nil
		}
	}
	m.records = append(m.records, rec)
	return nil
}

func (m *memoryHistory) List(_ context.Context, limit int) ([]domain.SessionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]domain.SessionRecord(nil), m.records...)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryHistory) Write(_ context.Context, rec domain.SessionRecord) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	path := fmt.Sprintf("journal/%s.md", rec.ID)
	m.journal = append(m.journal, path)
	return path, nil
}

func (m *memoryHistory) all() []domain.SessionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.SessionRecord(nil), m.records...)
}

type sequenceIDs struct {
	mu sync.Mutex
	n  int
}

func (s *sequenceIDs) New() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("session-%d", s.n)
}

type fixture struct {
	deck     in.Usecase
	site     *fakeSite
	sessions *memorySessions
	settings *memorySettings
	history  *memoryHistory
}

type fixtureOption func(*usecase.Deps)

func withOptions(opts usecase.Options) fixtureOption {
	return func(d *usecase.Deps) { d.Options = opts }
}

// newFixture wires the interactor to in-memory stores. Ticks and debounced
// writes are pushed far out so tests only see the writes Stop makes.
func newFixture(t testing.TB, site *fakeSite, opts ...fixtureOption) *fixture {
	t.Helper()
	f := &fixture{
		site:     site,
		sessions: &memorySessions{},
		settings: newMemorySettings(),
		history:  &memoryHistory{},
	}
	deps := usecase.Deps{
		Registry:   service.NewRegistry(site),
		Dispatcher: service.NewActionDispatcher(clock.SystemClock{}, clock.SystemScheduler{}, 0, nil),
		Sessions:   f.sessions,
		Settings:   f.settings,
		History:    f.history,
		Journal:    f.history,
		IDs:        &sequenceIDs{},
		Options: usecase.Options{
			StartTimeout:    2 * time.Second,
			StartPoll:       time.Millisecond,
			TickInterval:    time.Hour,
			PersistDebounce: time.Hour,
		},
	}
	for _, opt := range opts {
		opt(&deps)
	}
	f.deck = usecase.NewInteractor(deps)
	t.Cleanup(func() { _, _ = f.deck.Stop(context.Background()) })
	return f
}
