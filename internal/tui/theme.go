package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"levelview/internal/render"
	"levelview/internal/telemetry"
)

// Theme is the color palette for the viewer chrome.
type Theme struct {
	HeaderForeground lipgloss.Color
	FaintText        lipgloss.Color
	NormalText       lipgloss.Color
	ErrorText        lipgloss.Color
	ActiveValue      lipgloss.Color

	QualityColors map[telemetry.Quality]lipgloss.Color
}

// DefaultTheme targets 256-color terminals with a dark background.
var DefaultTheme = Theme{
	HeaderForeground: lipgloss.Color("255"),
	FaintText:        lipgloss.Color("241"),
	NormalText:       lipgloss.Color("252"),
	ErrorText:        lipgloss.Color("196"),
	ActiveValue:      lipgloss.Color("75"),

	QualityColors: map[telemetry.Quality]lipgloss.Color{
		telemetry.QualityNoData:    lipgloss.Color("196"),
		telemetry.QualityInvalid:   lipgloss.Color("196"),
		telemetry.QualityPoor:      lipgloss.Color("208"),
		telemetry.QualityFair:      lipgloss.Color("220"),
		telemetry.QualityGood:      lipgloss.Color("75"),
		telemetry.QualityExcellent: lipgloss.Color("114"),
	},
}

// QualityColor returns the color for a quality grade.
func (theme Theme) QualityColor(quality telemetry.Quality) lipgloss.Color {
	if color, ok := theme.QualityColors[quality]; ok {
		return color
	}
	return theme.FaintText
}

// segmentColor converts a scene color to a truecolor lipgloss color.
func segmentColor(color render.Color) lipgloss.Color {
	return lipgloss.Color(fmt.Sprintf("#%06x", uint32(color)))
}
