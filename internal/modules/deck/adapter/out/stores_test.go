package out

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"focusdeck/internal/modules/deck/domain"
	deckout "focusdeck/internal/modules/deck/port/out"
	"focusdeck/internal/platform/markdown"
)

func sampleSnapshot() domain.SessionSnapshot {
	started := time.Date(2026, 2, 21, 9, 0, 0, 0, time.UTC)
	return domain.SessionSnapshot{
		Phase:         domain.PhasePaused,
		AdapterID:     "hn",
		Config:        domain.SessionConfig{PostLimit: 12, ThemeMode: domain.ThemeDark},
		StartedAt:     started,
		UpdatedAt:     started.Add(time.Minute),
		FocusedPostID: "item-2",
		PauseReason:   domain.PauseDetails,
		Stats: domain.SessionStats{
			ViewedPostIDs: []string{"item-1", "item-2", "item-2"},
			ActiveMs:      4200,
			Actions:       domain.ActionCounters{Bookmarked: 1},
		},
	}
}

func sampleRecord(id string, started time.Time) domain.SessionRecord {
	return domain.SessionRecord{
		ID:        id,
		AdapterID: "hn",
		StartedAt: started,
		EndedAt:   started.Add(5 * time.Minute),
		Summary:   domain.SessionSummary{Reason: domain.CompletionPostsLimit, ViewedCount: 2, DurationMs: 300000},
		Stats: domain.SessionStats{
			ViewedCount:   2,
			ViewedPostIDs: []string{"item-1", "item-2"},
			ActiveMs:      250000,
			Actions:       domain.ActionCounters{NotInterested: 1, OpenedDetails: 1},
		},
	}
}

func exerciseSessionStore(t *testing.T, store deckout.SessionStore) {
	t.Helper()
	ctx := context.Background()

	snap, err := store.LoadSnapshot(ctx)
	require.NoError(t, err)
	require.Nil(t, snap)
	usage, err := store.LoadUsage(ctx)
	require.NoError(t, err)
	require.Nil(t, usage)

	require.NoError(t, store.SaveSnapshot(ctx, sampleSnapshot()))
	require.NoError(t, store.SaveUsage(ctx, domain.DailyUsage{
		DateKey: "2026-02-21",
		Global:  domain.DailyUsageBucket{PostsViewed: 7},
		PerSite: map[string]domain.DailyUsageBucket{"hn": {PostsViewed: 7}},
	}))

	snap, err = store.LoadSnapshot(ctx)
	require.NoError(t, err)
	require.NotNil(t, snap)
	require.Equal(t, domain.PhasePaused, snap.Phase)
	require.Equal(t, "item-2", snap.FocusedPostID)
	require.Equal(t, []string{"item-1", "item-2"}, snap.Stats.ViewedPostIDs)
	require.Equal(t, 2, snap.Stats.ViewedCount)
	require.Equal(t, 12, snap.Config.PostLimit)
	require.True(t, snap.StartedAt.Equal(sampleSnapshot().StartedAt))

	usage, err = store.LoadUsage(ctx)
	require.NoError(t, err)
	require.Equal(t, 7, usage.PerSite["hn"].PostsViewed)

	require.NoError(t, store.ClearSnapshot(ctx))
	require.NoError(t, store.ClearSnapshot(ctx))
	snap, err = store.LoadSnapshot(ctx)
	require.NoError(t, err)
	require.Nil(t, snap)
	usage, err = store.LoadUsage(ctx)
	require.NoError(t, err)
	require.Equal(t, 7, usage.Global.PostsViewed)
}

func TestSQLiteStoreSessionState(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "nested", "focusdeck.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	exerciseSessionStore(t, store)
}

func TestFileStoreSessionState(t *testing.T) {
	exerciseSessionStore(t, NewFileSessionStore(filepath.Join(t.TempDir(), "state.json")))
}

func TestFileStoreReportsCorruptStateAndRecovers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	store := NewFileSessionStore(path)
	ctx := context.Background()

	_, err := store.LoadSnapshot(ctx)
	require.Error(t, err)
	require.NoError(t, store.SaveUsage(ctx, domain.DailyUsage{DateKey: "2026-02-21"}))
	usage, err := store.LoadUsage(ctx)
	require.NoError(t, err)
	require.Equal(t, "2026-02-21", usage.DateKey)
}

func TestSQLiteStoreHistoryUpsertsAndOrders(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "focusdeck.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	ctx := context.Background()
	base := time.Date(2026, 2, 21, 9, 0, 0, 0, time.UTC)

	require.NoError(t, store.Record(ctx, sampleRecord("a", base)))
	require.NoError(t, store.Record(ctx, sampleRecord("b", base.Add(time.Hour))))
	updated := sampleRecord("a", base)
	updated.Summary.ViewedCount = 9
	updated.Summary.Reason = domain.CompletionManual
	require.NoError(t, store.Record(ctx, updated))

	all, err := store.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "b", all[0].ID)
	require.Equal(t, "a", all[1].ID)
	require.Equal(t, 9, all[1].Summary.ViewedCount)
	require.Equal(t, domain.CompletionManual, all[1].Summary.Reason)
	require.Equal(t, []string{"item-1", "item-2"}, all[1].Stats.ViewedPostIDs)
	require.Equal(t, int64(250000), all[1].Stats.ActiveMs)
	require.Equal(t, 1, all[1].Stats.Actions.OpenedDetails)
	require.True(t, all[1].StartedAt.Equal(base))

	newest, err := store.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, newest, 1)
	require.Equal(t, "b", newest[0].ID)
}

func TestYAMLSettingsDefaultsAndUpdates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	store := NewYAMLSettingsStore(path)
	ctx := context.Background()

	cfg, err := store.SessionConfig(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.DefaultSessionConfig(), cfg)
	site, err := store.SiteSettings(ctx, "hn")
	require.NoError(t, err)
	require.True(t, site.Enabled)

	require.NoError(t, store.SetSessionConfig(ctx, domain.SessionConfig{PostLimit: 0, ThemeMode: "neon"}))
	cfg, err = store.SessionConfig(ctx)
	require.NoError(t, err)
	require.Equal(t, 20, cfg.PostLimit)
	require.Equal(t, domain.ThemeSystem, cfg.ThemeMode)

	limits, err := store.SetDailyLimits(ctx, domain.DailyLimitsConfig{
		Global:  domain.DailyLimitRule{MaxPosts: -3},
		PerSite: map[string]domain.DailyLimitRule{"hn": {MaxPosts: 30}, "fixture": {MaxPosts: 0}},
	})
	require.NoError(t, err)
	require.Equal(t, 0, limits.Global.MaxPosts)
	require.Equal(t, map[string]domain.DailyLimitRule{"hn": {MaxPosts: 30}}, limits.PerSite)

	require.NoError(t, store.SetSiteSettings(ctx, "hn", deckout.SiteSettings{Enabled: false, SuppressPromptDate: "2026-02-21"}))
	reopened := NewYAMLSettingsStore(path)
	site, err = reopened.SiteSettings(ctx, "hn")
	require.NoError(t, err)
	require.False(t, site.Enabled)
	require.Equal(t, "2026-02-21", site.SuppressPromptDate)
	got, err := reopened.DailyLimits(ctx)
	require.NoError(t, err)
	require.Equal(t, 30, got.PerSite["hn"].MaxPosts)
}

func TestYAMLSettingsHandWrittenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`session:
  post_limit: 5
  theme_mode: light
daily_limits:
  global:
    max_posts: 40
sites:
  hn:
    suppress_prompt_date: "2026-02-20"
`), 0o644))
	store := NewYAMLSettingsStore(path)
	ctx := context.Background()

	cfg, err := store.SessionConfig(ctx)
	require.NoError(t, err)
	require.Equal(t, 5, cfg.PostLimit)
	require.Equal(t, domain.ThemeLight, cfg.ThemeMode)
	limits, err := store.DailyLimits(ctx)
	require.NoError(t, err)
	require.Equal(t, 40, limits.Global.MaxPosts)
	site, err := store.SiteSettings(ctx, "hn")
	require.NoError(t, err)
	require.True(t, site.Enabled)

	require.NoError(t, os.WriteFile(path, []byte("session: [broken"), 0o644))
	_, err = store.SessionConfig(ctx)
	require.Error(t, err)
}

func TestMarkdownJournalWritesNoteAndIndex(t *testing.T) {
	dir := t.TempDir()
	journal := NewMarkdownJournal(dir)
	ctx := context.Background()
	started := time.Date(2026, 2, 21, 9, 30, 15, 0, time.Local)

	path, err := journal.Write(ctx, sampleRecord("01JSESSION", started))
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "2026", "02", "21", "093015-hn-01jsession.md"), path)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	note, err := markdown.Parse(string(raw))
	require.NoError(t, err)
	require.Equal(t, "01JSESSION", note.String("session_id"))
	require.Equal(t, "posts-limit", note.String("reason"))
	require.Equal(t, 2, note.Meta["viewed"])
	require.Contains(t, note.Body, "# Focus session on hn")
	require.Contains(t, note.Body, "- Viewed: 2 posts")
	require.Contains(t, note.Body, "- item-2")

	// User notes survive a rewrite of the same session.
	edited := strings.Replace(string(raw), "# Focus session on hn", "# Focus session on hn\n\nFelt scattered.", 1)
	require.NoError(t, os.WriteFile(path, []byte(edited), 0o644))
	rec := sampleRecord("01JSESSION", started)
	rec.Summary.ViewedCount = 5
	again, err := journal.Write(ctx, rec)
	require.NoError(t, err)
	require.Equal(t, path, again)
	raw, err = os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(raw), "Felt scattered.")
	require.Contains(t, string(raw), "- Viewed: 5 posts")
	require.NotContains(t, string(raw), "- Viewed: 2 posts")

	_, err = journal.Write(ctx, sampleRecord("01JOTHER", started.Add(time.Hour)))
	require.NoError(t, err)
	index, err := os.ReadFile(filepath.Join(dir, "2026", "02", "21", "index.md"))
	require.NoError(t, err)
	block, ok := markdown.Block(string(index), "sessions")
	require.True(t, ok)
	require.Equal(t, "- [093015-hn-01jsession](093015-hn-01jsession.md)\n- [103015-hn-01jother](103015-hn-01jother.md)", block)
	require.True(t, strings.HasPrefix(string(index), "# Sessions on 2026-02-21\n"))
}
