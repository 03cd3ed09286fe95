package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"focusdeck/internal/ui/theme"
)

// PaletteSubmitMsg is emitted when the user confirms a command.
type PaletteSubmitMsg struct{ Input string }

// PaletteCancelMsg is emitted when the user presses esc.
type PaletteCancelMsg struct{}

// PaletteHints must stay in sync with executePalette in app/model.go.
var PaletteHints = []string{
	"extend <posts>",
	"pause",
	"resume",
	"stop",
	"back",
	"open <url>",
}

const (
	maxHints   = 5
	maxHistory = 20
)

// Palette is the ":" command line. Tab completes the command word and
// up/down walk through earlier commands of this run.
type Palette struct {
	input   textinput.Model
	visible bool
	width   int
	styles  theme.Styles

	history []string
	// recall indexes history while browsing it; len(history) means the
	// fresh line.
	recall int
}

func NewPalette(styles theme.Styles) Palette {
	ti := textinput.New()
	ti.Prompt = ": "
	ti.Placeholder = "extend 5, pause, open <url>…"
	ti.CharLimit = 256
	return Palette{input: ti, styles: styles}
}

func (p Palette) Visible() bool { return p.visible }

// Open shows the palette on an empty line and returns the focus command.
func (p *Palette) Open() tea.Cmd {
	p.visible = true
	p.recall = len(p.history)
	p.input.SetValue("")
	return p.input.Focus()
}

func (p *Palette) SetWidth(w int)                { p.width = w }
func (p *Palette) SetStyles(styles theme.Styles) { p.styles = styles }

func (p *Palette) close() {
	p.visible = false
	p.input.Blur()
}

func (p Palette) Update(msg tea.Msg) (Palette, tea.Cmd) {
	if !p.visible {
		return p, nil
	}
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		var cmd tea.Cmd
		p.input, cmd = p.input.Update(msg)
		return p, cmd
	}
	switch keyMsg.Type {
	case tea.KeyEsc:
		p.close()
		return p, func() tea.Msg { return PaletteCancelMsg{} }
	case tea.KeyEnter:
		line := strings.TrimSpace(p.input.Value())
		p.close()
		p.remember(line)
		return p, func() tea.Msg { return PaletteSubmitMsg{Input: line} }
	case tea.KeyTab:
		p.complete()
		return p, nil
	case tea.KeyUp:
		p.browse(-1)
		return p, nil
	case tea.KeyDown:
		p.browse(1)
		return p, nil
	}
	var cmd tea.Cmd
	p.input, cmd = p.input.Update(msg)
	return p, cmd
}

func (p *Palette) remember(line string) {
	if line == "" {
		return
	}
	if n := len(p.history); n > 0 && p.history[n-1] == line {
		return
	}
	p.history = append(p.history, line)
	if len(p.history) > maxHistory {
		p.history = p.history[len(p.history)-maxHistory:]
	}
}

func (p *Palette) browse(step int) {
	next := p.recall + step
	if next < 0 || next > len(p.history) {
		return
	}
	p.recall = next
	if next == len(p.history) {
		p.input.SetValue("")
	} else {
		p.input.SetValue(p.history[next])
	}
	p.input.CursorEnd()
}

// complete replaces a partial command word with the single command it
// matches. Ambiguous or argument-bearing input is left alone.
func (p *Palette) complete() {
	value := p.input.Value()
	if value == "" || strings.Contains(value, " ") {
		return
	}
	matching := p.Matching()
	if len(matching) != 1 {
		return
	}
	word, _, hasArgs := strings.Cut(matching[0], " ")
	if hasArgs {
		word += " "
	}
	p.input.SetValue(word)
	p.input.CursorEnd()
}

// Matching returns the hints whose command word starts with the typed word.
func (p Palette) Matching() []string {
	typed := strings.ToLower(strings.TrimSpace(p.input.Value()))
	word, _, _ := strings.Cut(typed, " ")
	var matching []string
	for _, h := range PaletteHints {
		if strings.HasPrefix(h, word) {
			matching = append(matching, h)
			if len(matching) == maxHints {
				break
			}
		}
	}
	return matching
}

func (p Palette) View() string {
	if !p.visible {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(p.styles.Title.Render("Command") + "\n")
	sb.WriteString(p.input.View() + "\n")
	if matching := p.Matching(); len(matching) > 0 {
		sb.WriteString("\n")
		for _, h := range matching {
			sb.WriteString(p.styles.Muted.Render("  "+h) + "\n")
		}
	}
	w := p.width
	if w < 20 {
		w = 64
	}
	return p.styles.PaneActive.BorderForeground(p.styles.Palette.Peach).Width(w - 2).Render(sb.String())
}
