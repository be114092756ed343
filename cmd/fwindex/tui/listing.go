package tui

import (
	"fmt"
	"strings"

	"github.com/jamesainslie/fwindex/pkg/fwindex/query"
	"github.com/jamesainslie/fwindex/pkg/fwindex/types"
)

// ListModel is the scrollable listing: one directory level, or search hits.
type ListModel struct {
	entries []query.Entry

	// showPaths labels file rows with their full path, as search hits need.
	showPaths bool

	cursor  int
	offset  int
	width   int
	height  int
}

// NewListModel creates a list showing entries.
func NewListModel(entries []query.Entry) ListModel {
	return ListModel{entries: entries, width: 80, height: 24}
}

// SetEntries replaces the rows and moves the cursor to the top.
func (m *ListModel) SetEntries(entries []query.Entry, showPaths bool) {
	m.entries = entries
	m.showPaths = showPaths
	m.cursor = 0
	m.offset = 0
}

// Entries returns the rows.
func (m ListModel) Entries() []query.Entry {
	return m.entries
}

// Cursor returns the cursor position.
func (m ListModel) Cursor() int {
	return m.cursor
}

// Current returns the row under the cursor.
func (m ListModel) Current() (query.Entry, bool) {
	if m.cursor < 0 || m.cursor >= len(m.entries) {
		return query.Entry{}, false
	}
	return m.entries[m.cursor], true
}

// SetDimensions updates the width and height.
func (m *ListModel) SetDimensions(width, height int) {
	m.width = width
	m.height = height
	m.ensureVisible()
}

// HandleKey moves the cursor. It reports whether the key was consumed.
func (m *ListModel) HandleKey(key string) bool {
	switch key {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.entries)-1 {
			m.cursor++
		}
	case "home", "g":
		m.cursor = 0
	case "end", "G":
		m.cursor = max(len(m.entries)-1, 0)
	case "pgup":
		m.cursor = max(m.cursor-m.visibleRows(), 0)
	case "pgdown":
		m.cursor = max(min(m.cursor+m.visibleRows(), len(m.entries)-1), 0)
	default:
		return false
	}
	m.ensureVisible()
	return true
}

// FilePaths returns the paths of every file row.
func (m ListModel) FilePaths() []string {
	var out []string
	for i := range m.entries {
		if m.entries[i].Kind == query.KindFile {
			out = append(out, m.entries[i].Path)
		}
	}
	return out
}

// visibleRows returns the number of rows that fit. The cursor row takes an
// extra detail line.
func (m ListModel) visibleRows() int {
	available := m.height - 14
	if available < 4 {
		available = 4
	}
	return available - 1
}

// ensureVisible adjusts offset to keep the cursor on screen.
func (m *ListModel) ensureVisible() {
	rows := m.visibleRows()
	if m.cursor < m.offset {
		m.offset = m.cursor
	} else if m.cursor >= m.offset+rows {
		m.offset = m.cursor - rows + 1
	}
	if m.offset < 0 {
		m.offset = 0
	}
}

// View renders the visible rows. isSelected reports file selection.
func (m ListModel) View(width int, isSelected func(string) bool) string {
	var b strings.Builder
	rows := m.visibleRows()
	nameWidth := width - 20

	lines := 0
	for i := m.offset; i < m.offset+rows && i < len(m.entries); i++ {
		e := m.entries[i]
		b.WriteString(renderEntryLine(e, isSelected(e.Path), i == m.cursor, m.showPaths, nameWidth))
		b.WriteString("\n")
		lines++
		if i == m.cursor {
			b.WriteString(renderEntryDetails(e))
			b.WriteString("\n")
			lines++
		}
	}
	for lines < rows+1 {
		b.WriteString("\n")
		lines++
	}
	return b.String()
}

// entryLabel is the name column for a row.
func entryLabel(e query.Entry, showPath bool) string {
	switch e.Kind {
	case query.KindParent:
		return query.ParentName
	case query.KindDir:
		return fmt.Sprintf("%s/ (%d files)", e.Name, e.Count)
	default:
		if showPath {
			return e.Path
		}
		return e.Name
	}
}

func renderEntryLine(e query.Entry, selected, isCursor, showPath bool, nameWidth int) string {
	checkbox := "   "
	if e.Kind == query.KindFile {
		checkbox = uncheckedStyle.Render("[ ]")
		if selected {
			checkbox = checkedStyle.Render("[x]")
		}
	}

	size := ""
	if e.Kind != query.KindParent {
		size = types.FormatSize(e.Size)
	}
	sizeCol := fileSizeStyle.Render(padLeft(size, 9))

	cursor := " "
	if isCursor {
		cursor = cursorStyle.Render(">")
	}

	label := truncatePath(entryLabel(e, showPath), nameWidth)
	line := fmt.Sprintf("  %s %s %s  %s", checkbox, sizeCol, cursor, label)

	switch {
	case isCursor:
		return selectedItemStyle.Width(nameWidth + 20).Render(line)
	case e.Kind == query.KindDir || e.Kind == query.KindParent:
		return dirItemStyle.Render(line)
	default:
		return normalItemStyle.Render(line)
	}
}

// renderEntryDetails renders the facet line for the cursor row.
func renderEntryDetails(e query.Entry) string {
	switch e.Kind {
	case query.KindParent:
		return fileDetailStyle.Render("Up to /" + e.Path)
	case query.KindDir:
		return fileDetailStyle.Render(fmt.Sprintf("Newest: %s", e.ModifiedAt.Format("2006-01-02 15:04")))
	}
	if e.Record == nil {
		return ""
	}
	r := e.Record
	parts := []string{"Type: " + r.Type}
	if r.Device != "" {
		parts = append(parts, "Device: "+r.Device)
	}
	if r.ISP != "" {
		parts = append(parts, "ISP: "+r.ISP)
	}
	parts = append(parts, "Modified: "+r.ModifiedAt.Format("2006-01-02"))
	return fileDetailStyle.Render(strings.Join(parts, "  "))
}
