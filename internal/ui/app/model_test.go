package app

import (
	"context"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"focusdeck/internal/modules/deck/domain"
	deckdto "focusdeck/internal/modules/deck/dto"
	apperrors "focusdeck/internal/platform/errors"
	"focusdeck/internal/ui/components"
)

type fakePort struct {
	mu       sync.Mutex
	calls    []string
	extended []int
	scrolls  []float64
	pages    []float64
	keyDowns int
	focus    []bool
	actions  []deckdto.ActionKind
	startErr error
	listener func(deckdto.Event)
	stopped  bool
}

func (f *fakePort) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakePort) Start(context.Context, string, int, bool) (deckdto.StartOutput, error) {
	f.record("start")
	if f.startErr != nil {
		return deckdto.StartOutput{}, f.startErr
	}
	cfg := domain.DefaultSessionConfig()
	cfg.ThemeMode = domain.ThemeDark
	return deckdto.StartOutput{AdapterID: "fixture", AdapterName: "Fixture", Config: cfg}, nil
}

func (f *fakePort) Stop(context.Context) (deckdto.StopOutput, error) {
	f.record("stop")
	f.stopped = true
	return deckdto.StopOutput{}, nil
}

func (f *fakePort) Pause(context.Context) error {
	f.record("pause")
	return nil
}

func (f *fakePort) Resume(context.Context) error {
	f.record("resume")
	return nil
}

func (f *fakePort) Next(context.Context) (bool, error) {
	f.record("next")
	return true, nil
}

func (f *fakePort) Previous(context.Context) (bool, error) {
	f.record("previous")
	return false, nil
}

func (f *fakePort) Act(_ context.Context, kind deckdto.ActionKind) (deckdto.ActionOutput, error) {
	f.record("act")
	f.actions = append(f.actions, kind)
	return deckdto.ActionOutput{OK: true, Message: "Saved."}, nil
}

func (f *fakePort) Extend(_ context.Context, n int) error {
	f.record("extend")
	f.extended = append(f.extended, n)
	return nil
}

func (f *fakePort) Back(context.Context) (deckdto.NavigateOutput, error) {
	f.record("back")
	return deckdto.NavigateOutput{Phase: deckdto.PhaseActive, Resumed: true}, nil
}

func (f *fakePort) Navigate(context.Context, string) (deckdto.NavigateOutput, error) {
	f.record("navigate")
	return deckdto.NavigateOutput{Phase: deckdto.PhasePaused, Paused: true, PauseReason: deckdto.PauseDetails}, nil
}

func (f *fakePort) Scroll(_ context.Context, delta float64) error {
	f.scrolls = append(f.scrolls, delta)
	return nil
}

func (f *fakePort) PageScroll(_ context.Context, delta float64) error {
	f.pages = append(f.pages, delta)
	return nil
}

func (f *fakePort) KeyDown(context.Context) error {
	f.keyDowns++
	return nil
}

func (f *fakePort) Resize(context.Context, float64) error { return nil }

func (f *fakePort) Focus(_ context.Context, focused bool) error {
	f.focus = append(f.focus, focused)
	return nil
}

func (f *fakePort) Status(context.Context) (deckdto.StatusOutput, error) {
	return deckdto.StatusOutput{}, nil
}

func (f *fakePort) Subscribe(fn func(deckdto.Event)) func() {
	f.listener = fn
	return func() { f.listener = nil }
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// started returns a model that has processed a successful start.
func started(t *testing.T, port *fakePort) Model {
	t.Helper()
	m := NewModel(port, Options{SiteID: "fixture"})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	m = next.(Model)
	msg := m.startCmd()()
	next, _ = m.Update(msg)
	m = next.(Model)
	require.True(t, m.started)
	return m
}

func TestStartFailureKeepsModelIdle(t *testing.T) {
	port := &fakePort{startErr: apperrors.ErrDailyLimitReached}
	m := NewModel(port, Options{SiteID: "fixture"})

	next, _ := m.Update(m.startCmd()())
	m = next.(Model)
	require.False(t, m.started)
	require.Contains(t, m.status, "daily limit reached")

	_, cmd := m.Update(runes("q"))
	require.NotNil(t, cmd)
	require.IsType(t, tea.QuitMsg{}, cmd())
	require.False(t, port.stopped)
}

func TestKeysDriveSession(t *testing.T) {
	port := &fakePort{}
	m := started(t, port)

	_, cmd := m.Update(runes("j"))
	require.Equal(t, stepMsg{moved: true}, cmd())

	_, cmd = m.Update(runes("k"))
	next, _ := m.Update(cmd())
	require.Equal(t, "no more posts here yet", next.(Model).status)

	_, cmd = m.Update(runes("s"))
	next, _ = m.Update(cmd())
	require.Equal(t, "Saved.", next.(Model).status)
	require.Equal(t, []deckdto.ActionKind{deckdto.ActionBookmark}, port.actions)

	_, cmd = m.Update(runes("+"))
	cmd()
	require.Equal(t, []int{extendBy}, port.extended)

	_, cmd = m.Update(tea.MouseMsg{Button: tea.MouseButtonWheelDown, Action: tea.MouseActionPress})
	cmd()
	require.Equal(t, []float64{scrollRows * rowPixels}, port.scrolls)
}

// runAll executes cmd and any commands batched inside it.
func runAll(cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	if batch, ok := cmd().(tea.BatchMsg); ok {
		for _, c := range batch {
			runAll(c)
		}
	}
}

func TestPageKeysScrollFromKeyboard(t *testing.T) {
	port := &fakePort{}
	m := started(t, port)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyPgDown})
	cmd()
	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyPgUp})
	cmd()
	rows := float64(m.bodyHeight() - 2)
	require.Equal(t, []float64{rows * rowPixels, -rows * rowPixels}, port.pages)
	require.Empty(t, port.scrolls)
}

func TestUnboundKeysReachPageAsKeyDown(t *testing.T) {
	port := &fakePort{}
	m := started(t, port)

	_, cmd := m.Update(runes("l"))
	runAll(cmd)
	require.Equal(t, 1, port.keyDowns)

	_, cmd = m.Update(runes("j"))
	runAll(cmd)
	require.Equal(t, 1, port.keyDowns)
}

func TestLoadErrorShowsInStatus(t *testing.T) {
	port := &fakePort{}
	m := started(t, port)

	view := deckdto.ViewState{LoadError: "fetch hn feed: offline"}
	next, _ := m.Update(eventMsg{event: deckdto.Event{Kind: deckdto.EventView, View: view}})
	require.Equal(t, "could not load more posts: fetch hn feed: offline", next.(Model).status)
}

func TestBurstOfViewsKeepsNewest(t *testing.T) {
	port := &fakePort{}
	m := started(t, port)

	for _, id := range []string{"p1", "p2", "p3"} {
		view := deckdto.ViewState{Snapshot: domain.SessionSnapshot{FocusedPostID: id}}
		port.listener(deckdto.Event{Kind: deckdto.EventView, View: view})
	}
	msg := m.waitForEvent()()
	require.Equal(t, "p3", msg.(eventMsg).event.View.Snapshot.FocusedPostID)

	_, ok := m.views.take()
	require.False(t, ok)
}

func TestPauseKeyTogglesOnPhase(t *testing.T) {
	port := &fakePort{}
	m := started(t, port)

	_, cmd := m.Update(runes("p"))
	cmd()

	view := deckdto.ViewState{Snapshot: domain.SessionSnapshot{Phase: deckdto.PhasePaused}}
	next, _ := m.Update(eventMsg{event: deckdto.Event{Kind: deckdto.EventView, View: view}})
	m = next.(Model)
	_, cmd = m.Update(runes("p"))
	cmd()

	require.Contains(t, port.calls, "pause")
	require.Contains(t, port.calls, "resume")
}

func TestFocusAndBlurReachPort(t *testing.T) {
	port := &fakePort{}
	m := started(t, port)
	port.focus = nil

	_, cmd := m.Update(tea.BlurMsg{})
	cmd()
	_, cmd = m.Update(tea.FocusMsg{})
	cmd()
	require.Equal(t, []bool{false, true}, port.focus)
}

func TestPaletteCommands(t *testing.T) {
	port := &fakePort{}
	m := started(t, port)

	next, cmd := m.Update(submit("extend 7"))
	cmd()
	require.Equal(t, []int{7}, port.extended)

	next, cmd = next.(Model).Update(submit("open https://fixture.test/post/1"))
	next, _ = next.(Model).Update(cmd())
	require.Equal(t, "reading details, esc to return", next.(Model).status)

	next, cmd = next.(Model).Update(submit("extend zero"))
	require.Nil(t, cmd)
	require.Equal(t, "usage: extend <posts>", next.(Model).status)

	next, _ = next.(Model).Update(submit("dance"))
	require.Equal(t, "unknown command: dance", next.(Model).status)
}

func TestEventsFlowThroughSubscription(t *testing.T) {
	port := &fakePort{}
	m := started(t, port)
	require.NotNil(t, port.listener)

	port.listener(deckdto.Event{Kind: deckdto.EventUsage, Usage: domain.DailyUsage{Global: domain.DailyUsageBucket{PostsViewed: 4}}})
	msg := m.waitForEvent()()
	next, cmd := m.Update(msg)
	require.NotNil(t, cmd)
	m = next.(Model)
	require.Equal(t, 4, m.usage.Usage.Global.PostsViewed)

	next, _ = m.Update(eventMsg{event: deckdto.Event{
		Kind:    deckdto.EventCompleted,
		Summary: domain.SessionSummary{Reason: domain.CompletionPostsLimit, ViewedCount: 20},
	}})
	m = next.(Model)
	require.NotNil(t, m.summary)
	require.Contains(t, m.View(), "Session finished")

	// Session keys are ignored once the summary is up.
	_, cmd = m.Update(runes("j"))
	require.Nil(t, cmd)
}

func TestQuitStopsRunningSession(t *testing.T) {
	port := &fakePort{}
	m := started(t, port)

	next, cmd := m.Update(runes("q"))
	m = next.(Model)
	require.True(t, m.stopping)

	_, cmd = m.Update(cmd())
	require.True(t, port.stopped)
	require.IsType(t, tea.QuitMsg{}, cmd())
	require.Nil(t, port.listener)
}

func submit(input string) components.PaletteSubmitMsg {
	return components.PaletteSubmitMsg{Input: input}
}
