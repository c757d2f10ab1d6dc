package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// TruncateString truncates a string to fit within maxWidth, adding ellipsis if needed.
func TruncateString(s string, maxWidth int) string {
	if maxWidth < 1 {
		return ""
	}

	if lipgloss.Width(s) <= maxWidth {
		return s
	}

	// Need to truncate - leave room for ellipsis
	if maxWidth <= 3 {
		return strings.Repeat(".", maxWidth)
	}

	result := ""
	for _, r := range s {
		test := result + string(r)
		if lipgloss.Width(test) > maxWidth-3 {
			break
		}
		result = test
	}

	return result + "..."
}

// StatusLine renders a lifecycle line: a fixed width label in style
// followed by muted key=value fields. fields alternate keys and values; a
// trailing key without a value is dropped.
func StatusLine(label string, style lipgloss.Style, fields ...string) string {
	var b strings.Builder
	b.WriteString(style.Render(padRight(label, 12)))
	for i := 0; i+1 < len(fields); i += 2 {
		b.WriteByte(' ')
		b.WriteString(MutedStyle.Render(fields[i] + "="))
		b.WriteString(fields[i+1])
	}
	return b.String()
}

func padRight(s string, width int) string {
	if w := lipgloss.Width(s); w < width {
		return s + strings.Repeat(" ", width-w)
	}
	return s
}
