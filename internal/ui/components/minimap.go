package components

import (
	"strings"

	"focusdeck/internal/ui/theme"
)

const (
	cellFocused = '◆'
	cellViewed  = '●'
	cellUnseen  = '○'
)

// MiniMapCells returns one glyph per feed entry.
func MiniMapCells(marks []bool, focused int) []rune {
	cells := make([]rune, len(marks))
	for i, viewed := range marks {
		switch {
		case i == focused:
			cells[i] = cellFocused
		case viewed:
			cells[i] = cellViewed
		default:
			cells[i] = cellUnseen
		}
	}
	return cells
}

// MiniMap lays the feed out as rows of at most width cells.
func MiniMap(styles theme.Styles, marks []bool, focused, width int) string {
	if len(marks) == 0 {
		return styles.Muted.Render("feed is empty")
	}
	width = max(1, width)
	var sb strings.Builder
	for i, cell := range MiniMapCells(marks, focused) {
		if i > 0 && i%width == 0 {
			sb.WriteByte('\n')
		}
		glyph := string(cell)
		switch cell {
		case cellFocused:
			sb.WriteString(styles.Hot.Render(glyph))
		case cellViewed:
			sb.WriteString(styles.Good.Render(glyph))
		default:
			sb.WriteString(styles.Muted.Render(glyph))
		}
	}
	return sb.String()
}
