package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"tiplens/internal/hover"
)

var (
	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("6")).
			Padding(0, 1)
	cardTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	cardLinkStyle  = lipgloss.NewStyle().Underline(true).Foreground(lipgloss.Color("4"))
	cardMetaStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// RenderBlocks draws hover blocks as terminal cards no wider than width.
func RenderBlocks(blocks []hover.Block, width int) string {
	if len(blocks) == 0 {
		return ""
	}
	if width < 24 {
		width = 24
	}
	inner := width - cardStyle.GetHorizontalFrameSize()
	cards := make([]string, 0, len(blocks))
	for _, b := range blocks {
		var sb strings.Builder
		sb.WriteString(cardTitleStyle.Render(truncate(b.Name, inner)))
		if b.Message != "" {
			sb.WriteString("\n\n")
			sb.WriteString(lipgloss.NewStyle().Width(inner).Render(b.Message))
		}
		if b.Link != "" {
			sb.WriteString("\n\n")
			sb.WriteString(cardLinkStyle.Render(truncate(b.Link, inner)))
		}
		sb.WriteString("\n")
		sb.WriteString(cardMetaStyle.Render(truncate("tiplens dismiss "+b.TipID, inner)))
		cards = append(cards, cardStyle.Width(inner+cardStyle.GetHorizontalPadding()).Render(sb.String()))
	}
	return strings.Join(cards, "\n")
}
