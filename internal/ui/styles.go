package ui

import (
	"github.com/charmbracelet/lipgloss"

	"webforge/internal/events"
)

// Colors for the UI theme - Muted Professional Palette
var (
	ColorPrimary   = lipgloss.Color("#A78BFA") // Soft Purple (Lavender 400)
	ColorSecondary = lipgloss.Color("#22D3EE") // Bright Cyan (Cyan 400)
	ColorSuccess   = lipgloss.Color("#059669") // Emerald 600
	ColorWarning   = lipgloss.Color("#D97706") // Amber 600
	ColorError     = lipgloss.Color("#DC2626") // Red 600
	ColorMuted     = lipgloss.Color("#9CA3AF") // Gray 400
	ColorText      = lipgloss.Color("#F1F5F9") // Slate 100
	ColorDim       = lipgloss.Color("#6B7280") // Gray 500
	ColorHighlight = lipgloss.Color("#E9D5FF") // Purple 200
	ColorRunning   = lipgloss.Color("#60A5FA") // Blue 400
	ColorInfo      = lipgloss.Color("#2DD4BF") // Teal 400
	ColorAccent    = lipgloss.Color("#F472B6") // Pink 400
)

// MessageIcons provides consistent icons for different message types
var MessageIcons = map[string]string{
	"success": "✓",
	"error":   "✗",
	"warning": "⚠",
	"info":    "ℹ",
	"done":    "✨",
	"file":    "📄",
}

// StageIcons maps pipeline stages to icons.
var StageIcons = map[string]string{
	events.StageIngest:   "🌍",
	events.StageSpec:     "📐",
	events.StageBuild:    "🔨",
	events.StagePolicy:   "📦",
	events.StageValidate: "🔍",
	events.StageRuntime:  "💻",
	events.StageRepair:   "🔧",
	events.StageRollback: "↩️",
	events.StageFinalize: "📋",
	events.StageComplete: "✨",
	events.StageWarning:  "⚠",
	"default":            "⚙️",
}

// StageIcon returns the icon for a stage.
func StageIcon(stage string) string {
	if icon, ok := StageIcons[stage]; ok {
		return icon
	}
	return StageIcons["default"]
}

// StageColor returns the semantic color of a stage.
func StageColor(stage string) lipgloss.Color {
	switch stage {
	case events.StageIngest, events.StageSpec:
		return ColorPrimary
	case events.StageBuild, events.StagePolicy:
		return ColorRunning
	case events.StageValidate, events.StageRuntime:
		return ColorInfo
	case events.StageRepair, events.StageWarning:
		return ColorWarning
	case events.StageRollback:
		return ColorAccent
	case events.StageComplete:
		return ColorSuccess
	default:
		return ColorMuted
	}
}

// Styles groups the lipgloss styles used by the printer and the TUI.
type Styles struct {
	Stage    lipgloss.Style
	Message  lipgloss.Style
	Dim      lipgloss.Style
	File     lipgloss.Style
	Success  lipgloss.Style
	Warning  lipgloss.Style
	Error    lipgloss.Style
	Bar      lipgloss.Style
	Title    lipgloss.Style
	Progress lipgloss.Style
}

// DefaultStyles returns the default theme.
func DefaultStyles() *Styles {
	return &Styles{
		Stage:    lipgloss.NewStyle().Bold(true).Width(9),
		Message:  lipgloss.NewStyle().Foreground(ColorText),
		Dim:      lipgloss.NewStyle().Foreground(ColorDim),
		File:     lipgloss.NewStyle().Foreground(ColorSecondary),
		Success:  lipgloss.NewStyle().Foreground(ColorSuccess).Bold(true),
		Warning:  lipgloss.NewStyle().Foreground(ColorWarning),
		Error:    lipgloss.NewStyle().Foreground(ColorError).Bold(true),
		Bar:      lipgloss.NewStyle().Foreground(ColorSuccess),
		Title:    lipgloss.NewStyle().Foreground(ColorHighlight).Bold(true),
		Progress: lipgloss.NewStyle().Foreground(ColorMuted).Width(5).Align(lipgloss.Right),
	}
}
