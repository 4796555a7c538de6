package ui

import (
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/abelbrown/yarnstash/internal/model"
	"github.com/abelbrown/yarnstash/internal/otel"
)

// Colors used in the application.
var (
	colorPrimary   = lipgloss.Color("62")  // Purple
	colorSecondary = lipgloss.Color("241") // Gray
	colorMuted     = lipgloss.Color("240") // Darker gray
	colorHighlight = lipgloss.Color("212") // Pink
	colorSuccess   = lipgloss.Color("78")  // Green
	colorWarn      = lipgloss.Color("214") // Amber
	colorError     = lipgloss.Color("196") // Red
)

// Header style for the summary line above the table.
var Header = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("255")).
	Background(colorPrimary).
	Padding(0, 1)

// HeaderStat style for the numbers inside the header.
var HeaderStat = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("229"))

// DetailLine style for the selected-record line under the table.
var DetailLine = lipgloss.NewStyle().
	Foreground(lipgloss.Color("252")).
	Padding(0, 1)

// PanelTitle style for the title of a side panel.
var PanelTitle = lipgloss.NewStyle().
	Bold(true).
	Foreground(colorHighlight).
	MarginBottom(1)

// SectionHeader style for group labels inside panels.
var SectionHeader = lipgloss.NewStyle().
	Bold(true).
	Foreground(colorHighlight).
	MarginTop(1)

// SelectedRow style for the highlighted row in panels.
var SelectedRow = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("255")).
	Background(colorPrimary)

// NormalRow style for unselected panel rows.
var NormalRow = lipgloss.NewStyle().
	Foreground(lipgloss.Color("255"))

// DimRow style for discarded or inactive rows.
var DimRow = lipgloss.NewStyle().
	Foreground(colorMuted).
	Strikethrough(true)

// Checked style for an active filter option.
var Checked = lipgloss.NewStyle().
	Foreground(colorSuccess).
	Bold(true)

// Panel is the bordered box around side panels.
var Panel = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(colorPrimary).
	Padding(0, 1)

// StatusBar style for the bottom status bar.
var StatusBar = lipgloss.NewStyle().
	Foreground(lipgloss.Color("255")).
	Background(lipgloss.Color("236")).
	Padding(0, 1)

// StatusBarKey style for key hints in status bar.
var StatusBarKey = lipgloss.NewStyle().
	Foreground(colorHighlight).
	Bold(true)

// StatusBarText style for descriptive text in status bar.
var StatusBarText = lipgloss.NewStyle().
	Foreground(colorSecondary)

// InputBar style for the search, edit and name prompts.
var InputBar = lipgloss.NewStyle().
	Foreground(lipgloss.Color("255")).
	Background(lipgloss.Color("240")).
	Padding(0, 1)

// HelpStyle for help text.
var HelpStyle = lipgloss.NewStyle().
	Foreground(colorMuted).
	Padding(1, 2)

// DebugPanel style for the debug overlay.
var DebugPanel = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(colorHighlight).
	Padding(1, 2)

// DebugHeaderStyle for section headers in the debug overlay.
var DebugHeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(colorHighlight)

// noticeStyle picks the notice bar style by level.
func noticeStyle(level otel.Level) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	switch level {
	case otel.LevelError:
		return base.Foreground(colorError)
	case otel.LevelWarn:
		return base.Foreground(colorWarn)
	default:
		return base.Foreground(colorSuccess)
	}
}

// stateStyle colors the sync state label.
func stateStyle(s string) lipgloss.Style {
	switch s {
	case "watching":
		return lipgloss.NewStyle().Foreground(colorSuccess)
	case "retrying", "loading":
		return lipgloss.NewStyle().Foreground(colorWarn)
	case "degraded", "not configured":
		return lipgloss.NewStyle().Foreground(colorError)
	default:
		return lipgloss.NewStyle().Foreground(colorSecondary)
	}
}

func tableStyles() table.Styles {
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(colorMuted).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("255")).
		Background(colorPrimary).
		Bold(false)
	return s
}

// groupColor is the swatch color for a color group. Neutrals render grey.
func groupColor(g model.ColorGroup) lipgloss.Color {
	sat, light := 0.65, 0.5
	if g.Name == "Neutrals" {
		sat, light = 0, 0.6
	}
	return lipgloss.Color(colorful.Hsl(float64(g.Hue), sat, light).Hex())
}

// Swatch renders a colored block followed by the label. Labels outside the
// taxonomy get a plain block.
func Swatch(tax *model.ColorTaxonomy, label string) string {
	block := "■"
	if g, ok := tax.Classify(label); ok {
		block = lipgloss.NewStyle().Foreground(groupColor(g)).Render(block)
	} else {
		block = lipgloss.NewStyle().Foreground(colorMuted).Render(block)
	}
	return block + " " + label
}
