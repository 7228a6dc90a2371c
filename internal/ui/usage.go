package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"

	"webforge/internal/audit"
)

// RenderUsage renders recorded spend as a summary line and a per-model table.
func RenderUsage(s *audit.Spend) string {
	st := DefaultStyles()
	var b strings.Builder

	b.WriteString(st.Title.Render("Model spend since " + s.Since.Format("2006-01-02 15:04")))
	b.WriteString("\n")
	summary := fmt.Sprintf("%s generations, %s calls (%d failed), $%.4f",
		humanize.Comma(int64(s.Requests)), humanize.Comma(int64(s.Calls)), s.Failed, s.TotalUSD)
	b.WriteString(st.Message.Render(summary))
	b.WriteString("\n")

	if len(s.Models) == 0 {
		b.WriteString(st.Dim.Render("No model calls recorded."))
		b.WriteString("\n")
		return b.String()
	}

	header := lipgloss.NewStyle().Foreground(ColorHighlight).Bold(true).Padding(0, 1)
	cell := lipgloss.NewStyle().Padding(0, 1)
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(ColorMuted)).
		Headers("PROVIDER", "MODEL", "CALLS", "INPUT", "OUTPUT", "COST").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			if col >= 2 {
				return cell.Align(lipgloss.Right)
			}
			return cell
		})
	for _, m := range s.Models {
		t.Row(m.Provider, m.Model,
			humanize.Comma(int64(m.Calls)),
			humanize.Comma(int64(m.InputTokens)),
			humanize.Comma(int64(m.OutputTokens)),
			fmt.Sprintf("$%.4f", m.CostUSD))
	}
	b.WriteString(t.Render())
	b.WriteString("\n")
	return b.String()
}
