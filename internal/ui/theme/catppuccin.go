package theme

import "github.com/charmbracelet/lipgloss"

// Palette holds the colors of one catppuccin flavor.
type Palette struct {
	Base     lipgloss.Color
	Mantle   lipgloss.Color
	Surface0 lipgloss.Color
	Surface1 lipgloss.Color
	Text     lipgloss.Color
	Subtext0 lipgloss.Color
	Lavender lipgloss.Color
	Sapphire lipgloss.Color
	Green    lipgloss.Color
	Peach    lipgloss.Color
	Red      lipgloss.Color
}

var (
	Mocha = Palette{
		Base:     lipgloss.Color("#1e1e2e"),
		Mantle:   lipgloss.Color("#181825"),
		Surface0: lipgloss.Color("#313244"),
		Surface1: lipgloss.Color("#45475a"),
		Text:     lipgloss.Color("#cdd6f4"),
		Subtext0: lipgloss.Color("#a6adc8"),
		Lavender: lipgloss.Color("#b4befe"),
		Sapphire: lipgloss.Color("#74c7ec"),
		Green:    lipgloss.Color("#a6e3a1"),
		Peach:    lipgloss.Color("#fab387"),
		Red:      lipgloss.Color("#f38ba8"),
	}
	Latte = Palette{
		Base:     lipgloss.Color("#eff1f5"),
		Mantle:   lipgloss.Color("#e6e9ef"),
		Surface0: lipgloss.Color("#ccd0da"),
		Surface1: lipgloss.Color("#bcc0cc"),
		Text:     lipgloss.Color("#4c4f69"),
		Subtext0: lipgloss.Color("#6c6f85"),
		Lavender: lipgloss.Color("#7287fd"),
		Sapphire: lipgloss.Color("#209fb5"),
		Green:    lipgloss.Color("#40a02b"),
		Peach:    lipgloss.Color("#fe640b"),
		Red:      lipgloss.Color("#d20f39"),
	}
)

// Styles are the rendering styles derived from a palette.
type Styles struct {
	Palette Palette
	Dark    bool

	Pane       lipgloss.Style
	PaneActive lipgloss.Style
	Bar        lipgloss.Style
	Title      lipgloss.Style
	Muted      lipgloss.Style
	Hot        lipgloss.Style
	Good       lipgloss.Style
	Bad        lipgloss.Style
}

func New(p Palette, dark bool) Styles {
	pane := lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(p.Surface1).
		Foreground(p.Text).
		Padding(0, 1)
	return Styles{
		Palette:    p,
		Dark:       dark,
		Pane:       pane,
		PaneActive: pane.BorderForeground(p.Lavender),
		Bar:        lipgloss.NewStyle().Background(p.Mantle).Foreground(p.Text),
		Title:      lipgloss.NewStyle().Foreground(p.Sapphire).Bold(true),
		Muted:      lipgloss.NewStyle().Foreground(p.Subtext0),
		Hot:        lipgloss.NewStyle().Foreground(p.Peach).Bold(true),
		Good:       lipgloss.NewStyle().Foreground(p.Green),
		Bad:        lipgloss.NewStyle().Foreground(p.Red).Bold(true),
	}
}

// ForMode picks the flavor for a session theme mode: "light", "dark", or
// anything else to follow the terminal background.
func ForMode(mode string) Styles {
	switch mode {
	case "light":
		return New(Latte, false)
	case "dark":
		return New(Mocha, true)
	}
	if lipgloss.HasDarkBackground() {
		return New(Mocha, true)
	}
	return New(Latte, false)
}

// Default is used before a session reports its theme mode.
var Default = New(Mocha, true)
