package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/desertthunder/aether/internal/models"
)

var styles = NewPalette("#7D56F4", "#04B575", "#FF0000", "#FFA500", "#626262")

// statusColors maps every [models.Status] to its badge color.
var statusColors = map[models.Status]string{
	models.Discovered:       "#626262",
	models.Matching:         "#5FAFFF",
	models.Queued:           "#7D56F4",
	models.AwaitingDecision: "#FFA500",
	models.NoMatch:          "#AF5F00",
	models.Archiving:        "#00AFAF",
	models.Complete:         "#04B575",
	models.Failed:           "#FF0000",
	models.AlreadyArchived:  "#87AF87",
}

// statusStyles is built from statusColors once; [Badge] falls back to the help style for unknown values.
var statusStyles = func() map[models.Status]lipgloss.Style {
	m := make(map[models.Status]lipgloss.Style, len(statusColors))
	for s, c := range statusColors {
		m[s] = NewBold(c)
	}
	return m
}()

// struct Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
	panel lipgloss.Style
}

func NewPalette(t, s, e, w, h string) *Palette {
	return &Palette{
		title: NewBold(t).MarginBottom(1),
		ok:    NewBold(s),
		err:   NewBold(e),
		warn:  NewStyle(w),
		help:  NewEm(h),
		panel: lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color(t)).Padding(0, 1),
	}
}

// Badge renders a status name in its color.
func Badge(s models.Status) string {
	style, ok := statusStyles[s]
	if !ok {
		style = styles.help
	}
	return style.Render(s.String())
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}
