package post

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	deckdto "focusdeck/internal/modules/deck/dto"
	"focusdeck/internal/ui/theme"
)

// Model shows the focused post rendered as markdown.
type Model struct {
	viewport viewport.Model
	renderer *glamour.TermRenderer
	styles   theme.Styles
	view     deckdto.ViewState
	hasView  bool
	width    int
	height   int
}

func New(styles theme.Styles) Model {
	m := Model{viewport: viewport.New(0, 0), styles: styles}
	m.renderer = newRenderer(styles, 0)
	return m
}

func newRenderer(styles theme.Styles, width int) *glamour.TermRenderer {
	style := "dark"
	if !styles.Dark {
		style = "light"
	}
	r, _ := glamour.NewTermRenderer(
		glamour.WithStylePath(style),
		glamour.WithWordWrap(max(0, width-2)),
	)
	return r
}

func (m Model) SetStyles(styles theme.Styles) Model {
	if styles.Dark == m.styles.Dark {
		m.styles = styles
		return m
	}
	m.styles = styles
	m.renderer = newRenderer(styles, m.width)
	m.refresh()
	return m
}

func (m Model) SetSize(width, height int) Model {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = max(1, height)
	m.renderer = newRenderer(m.styles, width)
	m.refresh()
	return m
}

// SetView replaces the content when the focused post changed.
func (m Model) SetView(view deckdto.ViewState) Model {
	before := focusedID(m.view)
	m.view = view
	m.hasView = true
	m.refresh()
	if focusedID(view) != before {
		m.viewport.GotoTop()
	}
	return m
}

func focusedID(view deckdto.ViewState) string {
	if view.FocusedMeta == nil {
		return ""
	}
	return view.FocusedMeta.ID
}

func (m *Model) refresh() {
	if !m.hasView {
		return
	}
	if m.view.FocusedMeta == nil {
		m.viewport.SetContent(m.styles.Muted.Render("No post in focus. Scroll the feed to pick one."))
		return
	}
	md := Markdown(m.view)
	if m.renderer != nil {
		if out, err := m.renderer.Render(md); err == nil {
			m.viewport.SetContent(out)
			return
		}
	}
	m.viewport.SetContent(md)
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	return m.viewport.View()
}

// Markdown formats the focused post.
func Markdown(view deckdto.ViewState) string {
	meta := view.FocusedMeta
	if meta == nil {
		return ""
	}
	var sb strings.Builder
	byline := meta.Author
	if byline == "" {
		byline = "unknown"
	}
	fmt.Fprintf(&sb, "**%s**", byline)
	if meta.Handle != "" && meta.Handle != meta.Author {
		fmt.Fprintf(&sb, " @%s", meta.Handle)
	}
	if meta.Timestamp != "" {
		fmt.Fprintf(&sb, " · %s", meta.Timestamp)
	}
	if meta.IsRepost {
		sb.WriteString(" · repost")
	}
	sb.WriteString("\n\n")
	sb.WriteString(strings.TrimSpace(meta.Text))
	sb.WriteString("\n")
	if meta.Quoted != nil {
		for _, line := range strings.Split(strings.TrimSpace(meta.Quoted.Text), "\n") {
			sb.WriteString("\n> " + line)
		}
		sb.WriteString("\n")
	}
	for _, media := range meta.Media {
		label := media.Alt
		if label == "" {
			label = string(media.Kind)
		}
		fmt.Fprintf(&sb, "\n- %s: %s", label, media.URL)
	}
	if len(meta.Media) > 0 {
		sb.WriteString("\n")
	}
	if meta.Permalink != "" {
		fmt.Fprintf(&sb, "\n<%s>\n", meta.Permalink)
	}
	return sb.String()
}
