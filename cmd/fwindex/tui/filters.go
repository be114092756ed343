package tui

import (
	"strings"

	"github.com/jamesainslie/fwindex/pkg/fwindex/query"
)

// Facet field indexes in the filter bar.
const (
	facetType = iota
	facetDevice
	facetISP
	facetExtension
	facetCount
)

var facetLabels = [facetCount]string{"Type", "Device", "ISP", "Ext"}

// facet is one filter with its choices. Index 0 is always "any".
type facet struct {
	choices []string
	index   int
}

func newFacet(values []string, current string) facet {
	f := facet{choices: append([]string{""}, values...)}
	for i, v := range f.choices {
		if strings.EqualFold(v, current) {
			f.index = i
			break
		}
	}
	if current != "" && f.index == 0 {
		// Keep a value that is not offered, e.g. from a shared link.
		f.choices = append(f.choices, current)
		f.index = len(f.choices) - 1
	}
	return f
}

func (f facet) value() string {
	return f.choices[f.index]
}

func (f *facet) step(delta int) {
	n := len(f.choices)
	f.index = ((f.index+delta)%n + n) % n
}

// FilterModel edits the four facet filters.
type FilterModel struct {
	facets [facetCount]facet
	focus  int
}

// NewFilterModel offers choices with current preselected.
func NewFilterModel(choices query.Choices, current query.Filters) FilterModel {
	return FilterModel{facets: [facetCount]facet{
		facetType:      newFacet(choices.Types, current.Type),
		facetDevice:    newFacet(choices.Devices, current.Device),
		facetISP:       newFacet(choices.ISPs, current.ISP),
		facetExtension: newFacet(choices.Extensions, current.Extension),
	}}
}

// HandleKey moves focus between facets and cycles the focused value. It
// reports whether the filters changed.
func (m *FilterModel) HandleKey(key string) bool {
	switch key {
	case "tab", "down", "j":
		m.focus = (m.focus + 1) % facetCount
	case "shift+tab", "up", "k":
		m.focus = (m.focus + facetCount - 1) % facetCount
	case "right", "l":
		m.facets[m.focus].step(1)
		return true
	case "left", "h":
		m.facets[m.focus].step(-1)
		return true
	case "x", "backspace":
		m.facets[m.focus].index = 0
		return true
	case "X":
		for i := range m.facets {
			m.facets[i].index = 0
		}
		return true
	}
	return false
}

// Filters returns the selected values.
func (m FilterModel) Filters() query.Filters {
	return query.Filters{
		Type:      m.facets[facetType].value(),
		Device:    m.facets[facetDevice].value(),
		ISP:       m.facets[facetISP].value(),
		Extension: m.facets[facetExtension].value(),
	}
}

// View renders the filter bar. The focused facet is highlighted when
// editing.
func (m FilterModel) View(editing bool) string {
	parts := make([]string, 0, facetCount)
	for i := range m.facets {
		v := m.facets[i].value()
		if v == "" {
			v = "any"
		}
		label := facetLabelStyle.Render(facetLabels[i]+":") + " "
		if editing && i == m.focus {
			parts = append(parts, label+facetActiveStyle.Render("‹ "+v+" ›"))
			continue
		}
		parts = append(parts, label+facetValueStyle.Render(v))
	}
	return "  " + strings.Join(parts, "   ")
}

// renderFilterSummary describes active filters in one line, or "".
func renderFilterSummary(f query.Filters) string {
	var parts []string
	for _, kv := range [][2]string{
		{"type", f.Type}, {"device", f.Device}, {"isp", f.ISP}, {"ext", f.Extension},
	} {
		if kv[1] != "" {
			parts = append(parts, kv[0]+"="+kv[1])
		}
	}
	return strings.Join(parts, " ")
}
