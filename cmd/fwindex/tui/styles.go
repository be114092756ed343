// Package tui is the interactive catalog browser: directory navigation,
// facet filters, live search, file selection and archive download.
package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	brandColor  = lipgloss.Color("#2BB8A6")
	dirColor    = lipgloss.Color("#5FA8FF")
	sizeColor   = lipgloss.Color("#8FB8DE")
	okColor     = lipgloss.Color("#3CB371")
	warnColor   = lipgloss.Color("#E8A33D")
	failColor   = lipgloss.Color("#E05A5A")
	dimColor    = lipgloss.Color("#6C7A89")
	trackColor  = lipgloss.Color("#3A4452")
	ruleColor   = lipgloss.Color("#2E3440")
	cursorBg    = lipgloss.Color("#1E2A36")
	brightColor = lipgloss.Color("#F2F4F7")
	plainColor  = lipgloss.Color("#C8CED6")
)

var (
	outerBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(brandColor).
			Padding(0, 1)
	dividerStyle = lipgloss.NewStyle().Foreground(ruleColor)

	titleStyle       = lipgloss.NewStyle().Bold(true).Foreground(brandColor)
	mutedTextStyle   = lipgloss.NewStyle().Foreground(dimColor)
	errorTextStyle   = lipgloss.NewStyle().Foreground(failColor)
	successTextStyle = lipgloss.NewStyle().Foreground(okColor)
	warningTextStyle = lipgloss.NewStyle().Foreground(warnColor)
)

// Listing rows. The cursor row swaps the background, directories are
// drawn bold in their own color, sizes are right aligned in a fixed column.
var (
	selectedItemStyle = lipgloss.NewStyle().Background(cursorBg).Foreground(brightColor).Bold(true)
	normalItemStyle   = lipgloss.NewStyle().Foreground(plainColor)
	dirItemStyle      = lipgloss.NewStyle().Foreground(dirColor).Bold(true)
	checkedStyle      = lipgloss.NewStyle().Foreground(okColor).Bold(true)
	uncheckedStyle    = lipgloss.NewStyle().Foreground(dimColor)
	fileSizeStyle     = lipgloss.NewStyle().Width(10).Align(lipgloss.Right).Foreground(sizeColor)
	fileDetailStyle   = lipgloss.NewStyle().Foreground(dimColor).PaddingLeft(12)
	cursorStyle       = lipgloss.NewStyle().Foreground(brandColor).Bold(true)
)

var (
	facetLabelStyle  = lipgloss.NewStyle().Foreground(dimColor)
	facetValueStyle  = lipgloss.NewStyle().Foreground(brightColor).Bold(true)
	facetActiveStyle = lipgloss.NewStyle().Background(brandColor).Foreground(brightColor).Padding(0, 1)

	progressFillStyle  = lipgloss.NewStyle().Foreground(okColor)
	progressEmptyStyle = lipgloss.NewStyle().Foreground(trackColor)

	keyStyle     = lipgloss.NewStyle().Foreground(brandColor).Bold(true)
	keyDescStyle = lipgloss.NewStyle().Foreground(dimColor)
)

func renderDivider(width int) string {
	return dividerStyle.Render(repeatChar('─', width))
}

func repeatChar(char rune, n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat(string(char), n)
}

// truncatePath keeps the tail of path, which carries the file name,
// and marks the cut with "...". Widths are counted in runes.
func truncatePath(path string, maxLen int) string {
	r := []rune(path)
	if len(r) <= maxLen {
		return path
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return "..." + string(r[len(r)-(maxLen-3):])
}

func padLeft(s string, width int) string {
	return repeatChar(' ', width-lipgloss.Width(s)) + s
}

func center(s string, width int) string {
	gap := width - lipgloss.Width(s)
	if gap <= 0 {
		return s
	}
	return repeatChar(' ', gap/2) + s + repeatChar(' ', gap-gap/2)
}

// renderHints renders key hints as "[key] desc" pairs.
func renderHints(hints [][2]string) string {
	parts := make([]string, 0, len(hints))
	for _, h := range hints {
		parts = append(parts, keyStyle.Render("["+h[0]+"]")+" "+keyDescStyle.Render(h[1]))
	}
	return "  " + strings.Join(parts, "  ")
}
