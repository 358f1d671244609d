// Package render turns status segments into ANSI-styled text.
//
// The color profile is pinned to basic ANSI regardless of what stdout looks
// like: the status line is consumed by the prompt host, not a terminal, so
// TTY detection must never downgrade the output to plain text.
package render

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Color identifies one of the fixed palette entries used by the status line.
type Color int

const (
	// None renders the text unstyled.
	None Color = iota
	Green
	Yellow
	Red
	Blue
	Cyan
	// Magenta is bold; it is only used for the model badge.
	Magenta
	Dim
)

// Separator joins painted segments in the final line.
const Separator = " │ "

// Segment is one colored fragment of the status line.
type Segment struct {
	Color Color
	Text  string
}

var styles = func() map[Color]lipgloss.Style {
	r := lipgloss.NewRenderer(os.Stdout)
	r.SetColorProfile(termenv.ANSI)
	return map[Color]lipgloss.Style{
		Green:   r.NewStyle().Foreground(lipgloss.Color("2")),
		Yellow:  r.NewStyle().Foreground(lipgloss.Color("3")),
		Red:     r.NewStyle().Foreground(lipgloss.Color("1")),
		Blue:    r.NewStyle().Foreground(lipgloss.Color("4")),
		Cyan:    r.NewStyle().Foreground(lipgloss.Color("6")),
		Magenta: r.NewStyle().Foreground(lipgloss.Color("5")).Bold(true),
		Dim:     r.NewStyle().Faint(true),
	}
}()

// ByUsage maps a used-percentage to a severity color: 80 and above is red,
// 60 and above is yellow, everything below is green.
func ByUsage(pct float64) Color {
	switch {
	case pct >= 80:
		return Red
	case pct >= 60:
		return Yellow
	default:
		return Green
	}
}

// ByRemaining is the inverted rule for remaining-percentage values:
// 20 or less is red, 40 or less is yellow.
func ByRemaining(pct float64) Color {
	switch {
	case pct <= 20:
		return Red
	case pct <= 40:
		return Yellow
	default:
		return Green
	}
}

// Paint styles a single segment. Segments with Color None pass through
// untouched, which lets callers embed pre-painted text.
func Paint(s Segment) string {
	style, ok := styles[s.Color]
	if !ok {
		return s.Text
	}
	return style.Render(s.Text)
}

// Join paints every segment and joins them with sep.
func Join(segments []Segment, sep string) string {
	if len(segments) == 0 {
		return ""
	}
	painted := make([]string, 0, len(segments))
	for _, s := range segments {
		painted = append(painted, Paint(s))
	}
	return strings.Join(painted, sep)
}
