// Package query implements the read-only catalog query layer: directory
// listing, statistics, sorting, faceted filtering, search, and session state.
package query

import (
	"sort"
	"strings"

	"github.com/jamesainslie/fwindex/pkg/fwindex/types"
)

// Filters are conjunctive equality constraints. An empty field is
// unconstrained.
type Filters struct {
	Type      string `json:"type,omitempty"`
	Device    string `json:"device,omitempty"`
	ISP       string `json:"isp,omitempty"`
	Extension string `json:"extension,omitempty"`
}

// IsEmpty reports whether no filter is set.
func (f Filters) IsEmpty() bool {
	return f.Type == "" && f.Device == "" && f.ISP == "" && f.Extension == ""
}

// NormalizeExtension strips a leading dot and lowercases ext.
func NormalizeExtension(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// Matcher evaluates Filters against records, resolving device aliases.
type Matcher struct {
	filters   Filters
	extension string
	devices   map[string]struct{}
}

// NewMatcher prepares f for repeated evaluation. A device filter value
// matches the record's device literally, or through the alias table when the
// value is an alias of that device.
func NewMatcher(f Filters, aliases map[string]string) *Matcher {
	m := &Matcher{
		filters:   f,
		extension: NormalizeExtension(f.Extension),
	}
	if f.Device != "" {
		m.devices = map[string]struct{}{f.Device: {}}
		if canonical, ok := resolveAlias(f.Device, aliases); ok {
			m.devices[canonical] = struct{}{}
		}
	}
	return m
}

// resolveAlias looks up name in the alias table, falling back to a
// case-insensitive key match since config files may fold key case.
func resolveAlias(name string, aliases map[string]string) (string, bool) {
	if canonical, ok := aliases[name]; ok {
		return canonical, true
	}
	for alias, canonical := range aliases {
		if strings.EqualFold(alias, name) {
			return canonical, true
		}
	}
	return "", false
}

// Match reports whether r satisfies every active filter.
func (m *Matcher) Match(r *types.FileRecord) bool {
	if m.filters.Type != "" && r.Type != m.filters.Type {
		return false
	}
	if m.devices != nil {
		if _, ok := m.devices[r.Device]; !ok {
			return false
		}
	}
	if m.filters.ISP != "" && r.ISP != m.filters.ISP {
		return false
	}
	if m.extension != "" && r.Extension != m.extension {
		return false
	}
	return true
}

// Filter returns the records satisfying f, preserving order. With no active
// filter the input slice is returned as is.
func Filter(records []types.FileRecord, f Filters, aliases map[string]string) []types.FileRecord {
	if f.IsEmpty() {
		return records
	}
	m := NewMatcher(f, aliases)
	out := make([]types.FileRecord, 0, len(records))
	for i := range records {
		if m.Match(&records[i]) {
			out = append(out, records[i])
		}
	}
	return out
}

// Choices are the values offered for each filter.
type Choices struct {
	Types      []string `json:"types"`
	Devices    []string `json:"devices"`
	ISPs       []string `json:"isps"`
	Extensions []string `json:"extensions"`
}

// FilterChoices returns the facet values of c. Devices are the canonical
// record devices only; DeviceChoices adds the alias names.
func FilterChoices(c *types.Catalog) Choices {
	return Choices{
		Types:      c.Types,
		Devices:    c.Devices,
		ISPs:       c.ISPs,
		Extensions: c.Extensions,
	}
}

// DeviceChoices returns the canonical devices plus alias names, sorted and
// deduplicated. Aliases never become record devices.
func DeviceChoices(c *types.Catalog) []string {
	seen := make(map[string]struct{}, len(c.Devices)+len(c.Aliases))
	out := make([]string, 0, len(c.Devices)+len(c.Aliases))
	for _, d := range c.Devices {
		if _, ok := seen[d]; !ok {
			seen[d] = struct{}{}
			out = append(out, d)
		}
	}
	for alias := range c.Aliases {
		if _, ok := seen[alias]; !ok {
			seen[alias] = struct{}{}
			out = append(out, alias)
		}
	}
	sort.Strings(out)
	return out
}
