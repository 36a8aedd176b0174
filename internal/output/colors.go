package output

import (
	"github.com/fatih/color"
)

// ColorScheme defines the colors used for the different parts of the
// console report.
type ColorScheme struct {
	Title  *color.Color
	Label  *color.Color
	Value  *color.Color
	Good   *color.Color
	Warn   *color.Color
	Bad    *color.Color
	Dim    *color.Color
	Accent *color.Color
}

// DefaultColorScheme returns the default color scheme
func DefaultColorScheme() *ColorScheme {
	return &ColorScheme{
		Title:  color.New(color.Bold),
		Label:  color.New(color.FgWhite),
		Value:  color.New(color.FgCyan),
		Good:   color.New(color.FgGreen),
		Warn:   color.New(color.FgYellow),
		Bad:    color.New(color.FgRed),
		Dim:    color.New(color.Faint),
		Accent: color.New(color.FgMagenta, color.Bold),
	}
}

// NoColorScheme returns a color scheme with all colors disabled
func NoColorScheme() *ColorScheme {
	scheme := DefaultColorScheme()
	for _, c := range scheme.all() {
		c.DisableColor()
	}
	return scheme
}

func (s *ColorScheme) all() []*color.Color {
	return []*color.Color{s.Title, s.Label, s.Value, s.Good, s.Warn, s.Bad, s.Dim, s.Accent}
}

// rateColor picks green, yellow or red for a failure ratio.
func (s *ColorScheme) rateColor(failRate float64) *color.Color {
	switch {
	case failRate > 0.05:
		return s.Bad
	case failRate > 0.01:
		return s.Warn
	default:
		return s.Good
	}
}

// SuccessIcon returns a checkmark symbol with appropriate color
func SuccessIcon(noColor bool) string {
	if noColor {
		return "✓"
	}
	return color.New(color.FgGreen).Sprint("✓")
}

// ErrorIcon returns an X symbol with appropriate color
func ErrorIcon(noColor bool) string {
	if noColor {
		return "✗"
	}
	return color.New(color.FgRed).Sprint("✗")
}

// WarningIcon returns a warning symbol with appropriate color
func WarningIcon(noColor bool) string {
	if noColor {
		return "⚠"
	}
	return color.New(color.FgYellow).Sprint("⚠")
}
