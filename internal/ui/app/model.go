package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	deckdto "focusdeck/internal/modules/deck/dto"
	apperrors "focusdeck/internal/platform/errors"
	"focusdeck/internal/ui/components"
	"focusdeck/internal/ui/theme"
	postview "focusdeck/internal/ui/views/post"
)

// ─── ports ───────────────────────────────────────────────────────────────────

// DeckPort is what the UI needs from the session usecase.
type DeckPort interface {
	Start(ctx context.Context, siteID string, postLimit int, fresh bool) (deckdto.StartOutput, error)
	Stop(ctx context.Context) (deckdto.StopOutput, error)
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	Next(ctx context.Context) (bool, error)
	Previous(ctx context.Context) (bool, error)
	Act(ctx context.Context, kind deckdto.ActionKind) (deckdto.ActionOutput, error)
	Extend(ctx context.Context, additionalPosts int) error
	Back(ctx context.Context) (deckdto.NavigateOutput, error)
	Navigate(ctx context.Context, url string) (deckdto.NavigateOutput, error)
	Scroll(ctx context.Context, delta float64) error
	PageScroll(ctx context.Context, delta float64) error
	KeyDown(ctx context.Context) error
	Resize(ctx context.Context, height float64) error
	Focus(ctx context.Context, focused bool) error
	Status(ctx context.Context) (deckdto.StatusOutput, error)
	Subscribe(fn func(deckdto.Event)) (unsubscribe func())
}

// Options select the session the UI starts.
type Options struct {
	SiteID    string
	PostLimit int
	Fresh     bool
}

const (
	// rowPixels converts terminal rows into page units.
	rowPixels     = 24
	scrollRows    = 3
	extendBy      = 5
	miniMapWidth  = 18
	eventBuffer   = 256
	actionTimeout = 10 * time.Second
)

// ─── async messages ──────────────────────────────────────────────────────────

type startedMsg struct {
	out    deckdto.StartOutput
	status deckdto.StatusOutput
	err    error
}

type eventMsg struct{ event deckdto.Event }

// viewSlot holds only the newest view event. Views arrive on every engine
// change and each one supersedes the last.
type viewSlot struct {
	mu    sync.Mutex
	event *deckdto.Event
	ready chan struct{}
}

func newViewSlot() *viewSlot {
	return &viewSlot{ready: make(chan struct{}, 1)}
}

func (s *viewSlot) put(ev deckdto.Event) {
	s.mu.Lock()
	s.event = &ev
	s.mu.Unlock()
	select {
	case s.ready <- struct{}{}:
	default:
	}
}

func (s *viewSlot) take() (deckdto.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.event == nil {
		return deckdto.Event{}, false
	}
	ev := *s.event
	s.event = nil
	return ev, true
}

type actionMsg struct {
	kind deckdto.ActionKind
	out  deckdto.ActionOutput
	err  error
}

type stepMsg struct {
	moved bool
	err   error
}

type navigatedMsg struct {
	out deckdto.NavigateOutput
	err error
}

type stoppedMsg struct {
	out deckdto.StopOutput
	err error
}

type doneMsg struct {
	status string
	err    error
}

// ─── key bindings ────────────────────────────────────────────────────────────

type keyMap struct {
	Next          key.Binding
	Prev          key.Binding
	Bookmark      key.Binding
	NotInterested key.Binding
	Open          key.Binding
	Back          key.Binding
	Pause         key.Binding
	Extend        key.Binding
	ScrollDown    key.Binding
	ScrollUp      key.Binding
	Help          key.Binding
	Palette       key.Binding
	Quit          key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Next:          key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "next post")),
		Prev:          key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "previous post")),
		Bookmark:      key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "bookmark")),
		NotInterested: key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "not interested")),
		Open:          key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "open original")),
		Back:          key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back to feed")),
		Pause:         key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "pause/resume")),
		Extend:        key.NewBinding(key.WithKeys("+"), key.WithHelp("+", fmt.Sprintf("extend by %d", extendBy))),
		ScrollDown:    key.NewBinding(key.WithKeys("pgdown", "ctrl+d"), key.WithHelp("pgdn", "scroll feed")),
		ScrollUp:      key.NewBinding(key.WithKeys("pgup", "ctrl+u"), key.WithHelp("pgup", "scroll feed")),
		Help:          key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Palette:       key.NewBinding(key.WithKeys(":"), key.WithHelp(":", "palette")),
		Quit:          key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "stop & quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Next, k.Prev, k.Bookmark, k.NotInterested, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Next, k.Prev, k.ScrollDown, k.ScrollUp},
		{k.Bookmark, k.NotInterested, k.Open, k.Back},
		{k.Pause, k.Extend, k.Palette, k.Help, k.Quit},
	}
}

// ─── model ───────────────────────────────────────────────────────────────────

// Model is the root Bubble Tea model. It mirrors the engine through usecase
// events and turns key presses into usecase calls.
type Model struct {
	port DeckPort
	opts Options

	events      chan deckdto.Event
	views       *viewSlot
	done        chan struct{}
	unsubscribe func()

	styles   theme.Styles
	keys     keyMap
	help     help.Model
	showHelp bool
	palette  components.Palette
	post     postview.Model

	started  bool
	start    deckdto.StartOutput
	view     deckdto.ViewState
	hasView  bool
	usage    deckdto.StatusOutput
	summary  *deckdto.Event
	mode     string
	status   string
	stopping bool
	width    int
	height   int
}

func NewModel(port DeckPort, opts Options) Model {
	events := make(chan deckdto.Event, eventBuffer)
	views := newViewSlot()
	done := make(chan struct{})
	unsubscribe := port.Subscribe(func(ev deckdto.Event) {
		if ev.Kind == deckdto.EventView {
			views.put(ev)
			return
		}
		select {
		case events <- ev:
		case <-done:
		}
	})
	return Model{
		port:        port,
		opts:        opts,
		events:      events,
		views:       views,
		done:        done,
		unsubscribe: unsubscribe,
		styles:      theme.Default,
		keys:        defaultKeys(),
		help:        help.New(),
		palette:     components.NewPalette(theme.Default),
		post:        postview.New(theme.Default),
		status:      "starting session…",
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.startCmd(), m.waitForEvent())
}

// ─── update ──────────────────────────────────────────────────────────────────

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// The palette intercepts all input while open.
	if m.palette.Visible() {
		if _, ok := msg.(tea.KeyMsg); ok {
			var cmd tea.Cmd
			m.palette, cmd = m.palette.Update(msg)
			return m, cmd
		}
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.palette.SetWidth(min(m.width-4, 80))
		m.help.Width = m.width
		m.post = m.post.SetSize(m.postWidth(), m.bodyHeight())
		if m.started {
			return m, m.resizeCmd()
		}
	case tea.FocusMsg:
		return m, m.focusCmd(true)
	case tea.BlurMsg:
		return m, m.focusCmd(false)
	case startedMsg:
		return m.onStarted(msg)
	case eventMsg:
		m.onEvent(msg.event)
		return m, m.waitForEvent()
	case actionMsg:
		m.onAction(msg)
	case stepMsg:
		if msg.err != nil {
			m.status = errorStatus(msg.err)
		} else if !msg.moved {
			m.status = "no more posts here yet"
		}
	case navigatedMsg:
		if msg.err != nil {
			m.status = errorStatus(msg.err)
		} else {
			m.status = navigationStatus(msg.out)
		}
	case doneMsg:
		if msg.err != nil {
			m.status = errorStatus(msg.err)
		} else if msg.status != "" {
			m.status = msg.status
		}
	case stoppedMsg:
		if msg.err != nil && !errors.Is(msg.err, apperrors.ErrNoActiveSession) {
			m.status = errorStatus(msg.err)
		}
		m.close()
		return m, tea.Quit
	case components.PaletteSubmitMsg:
		return m.executePalette(msg.Input)
	case components.PaletteCancelMsg:
		m.status = "ready"
	case tea.MouseMsg:
		switch msg.Button {
		case tea.MouseButtonWheelDown:
			return m, m.scrollCmd(scrollRows)
		case tea.MouseButtonWheelUp:
			return m, m.scrollCmd(-scrollRows)
		}
	case tea.KeyMsg:
		return m.onKey(msg)
	default:
		// Cursor blinks and the like.
		if m.palette.Visible() {
			var cmd tea.Cmd
			m.palette, cmd = m.palette.Update(msg)
			return m, cmd
		}
	}
	return m, nil
}

func (m Model) onKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		if key.Matches(msg, m.keys.Help, m.keys.Back) {
			m.showHelp = false
		}
		return m, nil
	}
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m.quit()
	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil
	case key.Matches(msg, m.keys.Palette):
		cmd := m.palette.Open()
		return m, cmd
	}
	if !m.started || m.summary != nil {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Next):
		return m, m.stepCmd(m.port.Next)
	case key.Matches(msg, m.keys.Prev):
		return m, m.stepCmd(m.port.Previous)
	case key.Matches(msg, m.keys.Bookmark):
		return m, m.actCmd(deckdto.ActionBookmark)
	case key.Matches(msg, m.keys.NotInterested):
		return m, m.actCmd(deckdto.ActionNotInterested)
	case key.Matches(msg, m.keys.Open):
		return m, m.actCmd(deckdto.ActionOpenOriginal)
	case key.Matches(msg, m.keys.Back):
		return m, m.backCmd()
	case key.Matches(msg, m.keys.Pause):
		return m, m.togglePauseCmd()
	case key.Matches(msg, m.keys.Extend):
		return m, m.extendCmd(extendBy)
	case key.Matches(msg, m.keys.ScrollDown):
		return m, m.pageScrollCmd(max(1, m.bodyHeight()-2))
	case key.Matches(msg, m.keys.ScrollUp):
		return m, m.pageScrollCmd(-max(1, m.bodyHeight()-2))
	}
	// Anything else scrolls the post pane and counts as typing on the page.
	var cmd tea.Cmd
	m.post, cmd = m.post.Update(msg)
	return m, tea.Batch(cmd, m.keyDownCmd())
}

func (m Model) onStarted(msg startedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.status = "session did not start: " + errorStatus(msg.err) + " (q to quit)"
		return m, nil
	}
	m.started = true
	m.start = msg.out
	m.usage = msg.status
	m.status = startStatus(msg.out)
	m.applyTheme(string(msg.out.Config.ThemeMode))
	if msg.status.Active {
		m.setView(msg.status.View)
	}
	return m, tea.Batch(m.resizeCmd(), m.focusCmd(true))
}

func (m *Model) onEvent(ev deckdto.Event) {
	switch ev.Kind {
	case deckdto.EventView:
		m.setView(ev.View)
	case deckdto.EventUsage:
		m.usage.Usage = ev.Usage
	case deckdto.EventDailyLimit:
		m.usage.Usage = ev.Usage
		m.usage.LimitHit = true
		m.status = "daily limit reached, session paused"
	case deckdto.EventCompleted, deckdto.EventStopped:
		ev := ev
		m.summary = &ev
		m.status = fmt.Sprintf("session %s: %d posts", ev.Summary.Reason, ev.Summary.ViewedCount)
	}
}

func (m *Model) setView(view deckdto.ViewState) {
	if view.LoadError != "" && view.LoadError != m.view.LoadError {
		m.status = "could not load more posts: " + view.LoadError
	}
	m.view = view
	m.hasView = true
	m.applyTheme(string(view.Snapshot.Config.ThemeMode))
	m.post = m.post.SetView(view)
}

// applyTheme restyles the UI when the configured theme mode changes.
func (m *Model) applyTheme(mode string) {
	if mode == "" || mode == m.mode {
		return
	}
	m.mode = mode
	styles := theme.ForMode(mode)
	m.styles = styles
	m.palette.SetStyles(styles)
	m.post = m.post.SetStyles(styles)
}

func (m *Model) onAction(msg actionMsg) {
	if msg.err != nil {
		m.status = errorStatus(msg.err)
		return
	}
	status := msg.out.Message
	if status == "" {
		status = string(msg.kind)
	}
	if !msg.out.OK {
		status = "failed: " + status
	}
	m.status = status
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	if !m.started || m.stopping {
		m.close()
		return m, tea.Quit
	}
	m.stopping = true
	m.status = "stopping…"
	return m, m.stopCmd()
}

// close releases the usecase subscription. Safe to call more than once.
func (m *Model) close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
	select {
	case <-m.done:
	default:
		close(m.done)
	}
}

// ─── palette execution ───────────────────────────────────────────────────────

func (m Model) executePalette(input string) (tea.Model, tea.Cmd) {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return m, nil
	}
	if !m.started && parts[0] != "stop" {
		m.status = "no session running"
		return m, nil
	}
	switch parts[0] {
	case "extend":
		n := extendBy
		if len(parts) > 1 {
			v, err := strconv.Atoi(parts[1])
			if err != nil || v <= 0 {
				m.status = "usage: extend <posts>"
				return m, nil
			}
			n = v
		}
		return m, m.extendCmd(n)
	case "pause":
		return m, m.doCmd(m.port.Pause, "paused")
	case "resume":
		return m, m.doCmd(m.port.Resume, "resumed")
	case "stop":
		return m.quit()
	case "back":
		return m, m.backCmd()
	case "open":
		if len(parts) < 2 {
			m.status = "usage: open <url>"
			return m, nil
		}
		return m, m.navigateCmd(parts[1])
	default:
		m.status = "unknown command: " + parts[0]
	}
	return m, nil
}

// ─── view ────────────────────────────────────────────────────────────────────

func (m Model) View() string {
	header := m.renderHeader()
	footer := m.renderFooter()
	bodyH := max(1, m.height-lipgloss.Height(header)-lipgloss.Height(footer))

	var body string
	switch {
	case m.showHelp:
		body = lipgloss.NewStyle().Width(m.width).Height(bodyH).Render(m.help.FullHelpView(m.keys.FullHelp()))
	case m.palette.Visible():
		body = lipgloss.Place(m.width, bodyH, lipgloss.Center, lipgloss.Center, m.palette.View())
	case m.summary != nil:
		body = lipgloss.Place(m.width, bodyH, lipgloss.Center, lipgloss.Center, m.renderSummary())
	default:
		body = m.renderBody(bodyH)
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

func (m Model) renderHeader() string {
	s := m.styles
	parts := []string{s.Title.Render("focusdeck")}
	if m.started {
		parts = append(parts, m.start.AdapterName)
	}
	if m.hasView {
		snap := m.view.Snapshot
		phase := string(snap.Phase)
		if snap.PauseReason != "" {
			phase += " (" + string(snap.PauseReason) + ")"
		}
		parts = append(parts,
			s.Hot.Render(phase),
			fmt.Sprintf("%d/%d posts", snap.Stats.ViewedCount, snap.Config.PostLimit),
		)
	}
	if m.started {
		today := fmt.Sprintf("today %d", m.usage.Usage.Global.PostsViewed)
		if limit := m.usage.Limits.Global.MaxPosts; limit > 0 {
			today += fmt.Sprintf("/%d", limit)
		}
		if m.usage.LimitHit {
			today = s.Bad.Render(today)
		}
		parts = append(parts, today)
	}
	return s.Bar.Width(m.width).Render(strings.Join(parts, s.Muted.Render("  │  ")))
}

func (m Model) renderFooter() string {
	s := m.styles
	left := m.status
	right := s.Muted.Render(m.help.ShortHelpView(m.keys.ShortHelp()))
	gap := max(1, m.width-lipgloss.Width(left)-lipgloss.Width(right))
	return s.Bar.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}

func (m Model) renderBody(height int) string {
	s := m.styles
	post := s.PaneActive.Width(max(1, m.postWidth()-2)).Height(max(1, height-2)).Render(m.post.View())
	if m.minimal() {
		return post
	}
	mapBody := s.Title.Render("feed") + "\n" +
		components.MiniMap(s, m.view.ViewedMarks(), m.focusedIndex(), miniMapWidth-4)
	side := s.Pane.Width(miniMapWidth - 2).Height(max(1, height-2)).Render(mapBody)
	return lipgloss.JoinHorizontal(lipgloss.Top, post, side)
}

func (m Model) renderSummary() string {
	s := m.styles
	sum := m.summary.Summary
	lines := []string{
		s.Title.Render("Session finished"),
		"",
		fmt.Sprintf("reason    %s", sum.Reason),
		fmt.Sprintf("viewed    %d posts", sum.ViewedCount),
		fmt.Sprintf("duration  %s", (time.Duration(sum.DurationMs) * time.Millisecond).Round(time.Second)),
		"",
		s.Muted.Render("q to quit"),
	}
	return s.PaneActive.Render(strings.Join(lines, "\n"))
}

func (m Model) focusedIndex() int {
	for i, h := range m.view.Feed {
		if h.HandleID == m.view.Snapshot.FocusedPostID {
			return i
		}
	}
	return -1
}

func (m Model) minimal() bool {
	return !m.hasView || m.view.Snapshot.Config.MinimalMode || m.width < miniMapWidth*3
}

func (m Model) postWidth() int {
	if m.minimal() {
		return max(1, m.width)
	}
	return max(1, m.width-miniMapWidth)
}

func (m Model) bodyHeight() int {
	return max(1, m.height-4)
}

// ─── async commands ──────────────────────────────────────────────────────────

// waitForEvent delivers the next usecase event. An empty eventMsg only
// re-arms the wait.
func (m Model) waitForEvent() tea.Cmd {
	events, views, done := m.events, m.views, m.done
	return func() tea.Msg {
		select {
		case ev := <-events:
			return eventMsg{event: ev}
		case <-views.ready:
			ev, _ := views.take()
			return eventMsg{event: ev}
		case <-done:
			return nil
		}
	}
}

func (m Model) startCmd() tea.Cmd {
	port, opts := m.port, m.opts
	return func() tea.Msg {
		ctx := context.Background()
		out, err := port.Start(ctx, opts.SiteID, opts.PostLimit, opts.Fresh)
		if err != nil {
			return startedMsg{err: err}
		}
		// The session runs even if status cannot be read; the next event fills it in.
		status, _ := port.Status(ctx)
		return startedMsg{out: out, status: status}
	}
}

func (m Model) stopCmd() tea.Cmd {
	port := m.port
	return func() tea.Msg {
		out, err := port.Stop(context.Background())
		return stoppedMsg{out: out, err: err}
	}
}

func (m Model) stepCmd(step func(context.Context) (bool, error)) tea.Cmd {
	return func() tea.Msg {
		moved, err := step(context.Background())
		return stepMsg{moved: moved, err: err}
	}
}

func (m Model) actCmd(kind deckdto.ActionKind) tea.Cmd {
	port := m.port
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		out, err := port.Act(ctx, kind)
		return actionMsg{kind: kind, out: out, err: err}
	}
}

func (m Model) backCmd() tea.Cmd {
	port := m.port
	return func() tea.Msg {
		out, err := port.Back(context.Background())
		return navigatedMsg{out: out, err: err}
	}
}

func (m Model) navigateCmd(url string) tea.Cmd {
	port := m.port
	return func() tea.Msg {
		out, err := port.Navigate(context.Background(), url)
		return navigatedMsg{out: out, err: err}
	}
}

func (m Model) togglePauseCmd() tea.Cmd {
	if m.hasView && m.view.Snapshot.Phase == deckdto.PhasePaused {
		return m.doCmd(m.port.Resume, "resumed")
	}
	return m.doCmd(m.port.Pause, "paused")
}

func (m Model) extendCmd(n int) tea.Cmd {
	port := m.port
	return func() tea.Msg {
		err := port.Extend(context.Background(), n)
		return doneMsg{status: fmt.Sprintf("extended by %d posts", n), err: err}
	}
}

func (m Model) doCmd(fn func(context.Context) error, status string) tea.Cmd {
	return func() tea.Msg {
		return doneMsg{status: status, err: fn(context.Background())}
	}
}

func (m Model) scrollCmd(rows int) tea.Cmd {
	port := m.port
	return func() tea.Msg {
		return doneMsg{err: port.Scroll(context.Background(), float64(rows*rowPixels))}
	}
}

func (m Model) pageScrollCmd(rows int) tea.Cmd {
	port := m.port
	return func() tea.Msg {
		return doneMsg{err: port.PageScroll(context.Background(), float64(rows*rowPixels))}
	}
}

func (m Model) keyDownCmd() tea.Cmd {
	port := m.port
	return func() tea.Msg {
		return doneMsg{err: port.KeyDown(context.Background())}
	}
}

func (m Model) resizeCmd() tea.Cmd {
	port, rows := m.port, m.bodyHeight()
	return func() tea.Msg {
		return doneMsg{err: port.Resize(context.Background(), float64(rows*rowPixels))}
	}
}

func (m Model) focusCmd(focused bool) tea.Cmd {
	if !m.started {
		return nil
	}
	port := m.port
	return func() tea.Msg {
		return doneMsg{err: port.Focus(context.Background(), focused)}
	}
}

// ─── helpers ─────────────────────────────────────────────────────────────────

func errorStatus(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrDailyLimitReached):
		return "daily limit reached"
	case errors.Is(err, apperrors.ErrNoActiveSession):
		return "no session running"
	case errors.Is(err, apperrors.ErrFeedNotLoaded):
		return "the feed did not load"
	}
	return err.Error()
}

func startStatus(out deckdto.StartOutput) string {
	status := fmt.Sprintf("session started on %s, limit %d posts", out.AdapterName, out.Config.PostLimit)
	if out.Resumed {
		status = fmt.Sprintf("resumed session on %s", out.AdapterName)
	}
	if out.CappedByDailyLimit {
		status += fmt.Sprintf(" (capped, %d left today)", out.RemainingPosts)
	}
	return status
}

func navigationStatus(out deckdto.NavigateOutput) string {
	switch {
	case out.Paused && out.PauseReason == deckdto.PauseDetails:
		return "reading details, esc to return"
	case out.Paused:
		return "left the feed, session paused"
	case out.Resumed:
		return "back on the feed"
	}
	return string(out.Phase)
}
