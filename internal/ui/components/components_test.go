package components

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"focusdeck/internal/ui/theme"
)

func TestMiniMapCells(t *testing.T) {
	cells := MiniMapCells([]bool{true, true, false, false}, 1)
	require.Equal(t, "●◆○○", string(cells))

	require.Equal(t, "○", string(MiniMapCells([]bool{false}, -1)))
}

func TestPaletteSubmitsTrimmedInput(t *testing.T) {
	p := NewPalette(theme.Default)
	require.False(t, p.Visible())
	p.Open()
	require.True(t, p.Visible())
	require.Len(t, p.Matching(), 5)

	for _, r := range "ext" {
		p, _ = p.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	require.Equal(t, []string{"extend <posts>"}, p.Matching())

	p, cmd := p.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.False(t, p.Visible())
	require.Equal(t, PaletteSubmitMsg{Input: "ext"}, cmd())
}

func TestPaletteCancel(t *testing.T) {
	p := NewPalette(theme.Default)
	p.Open()
	p, cmd := p.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.False(t, p.Visible())
	require.Equal(t, PaletteCancelMsg{}, cmd())
}

func typeInto(p Palette, s string) Palette {
	for _, r := range s {
		p, _ = p.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return p
}

func TestPaletteTabCompletesUniqueCommand(t *testing.T) {
	p := NewPalette(theme.Default)
	p.Open()

	p = typeInto(p, "ex")
	p, _ = p.Update(tea.KeyMsg{Type: tea.KeyTab})
	require.Equal(t, "extend ", p.input.Value())

	p.Open()
	p = typeInto(p, "pa")
	p, _ = p.Update(tea.KeyMsg{Type: tea.KeyTab})
	require.Equal(t, "pause", p.input.Value())

	p.Open()
	p = typeInto(p, "re")
	p, _ = p.Update(tea.KeyMsg{Type: tea.KeyTab})
	require.Equal(t, "resume", p.input.Value())
}

func TestPaletteMatchesOnCommandWord(t *testing.T) {
	p := NewPalette(theme.Default)
	p.Open()
	p = typeInto(p, "open https://example.test/post/1")
	require.Equal(t, []string{"open <url>"}, p.Matching())
}

func TestPaletteHistoryRecall(t *testing.T) {
	p := NewPalette(theme.Default)
	for _, line := range []string{"extend 3", "pause", "pause"} {
		p.Open()
		p = typeInto(p, line)
		p, _ = p.Update(tea.KeyMsg{Type: tea.KeyEnter})
	}
	require.Equal(t, []string{"extend 3", "pause"}, p.history)

	p.Open()
	p, _ = p.Update(tea.KeyMsg{Type: tea.KeyUp})
	require.Equal(t, "pause", p.input.Value())
	p, _ = p.Update(tea.KeyMsg{Type: tea.KeyUp})
	require.Equal(t, "extend 3", p.input.Value())
	p, _ = p.Update(tea.KeyMsg{Type: tea.KeyUp})
	require.Equal(t, "extend 3", p.input.Value())
	p, _ = p.Update(tea.KeyMsg{Type: tea.KeyDown})
	p, _ = p.Update(tea.KeyMsg{Type: tea.KeyDown})
	require.Equal(t, "", p.input.Value())
}
