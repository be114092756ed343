// Package classify derives the name- and path-based facets of a file record:
// extension, type label, and the positional device/ISP/category segments.
//
// All functions are pure. Type labels come from the static tables in
// tables.go.
package classify

import (
	"strings"
)

var (
	extensionIndex = buildIndex(extensionLabels)
	nameIndex      = buildIndex(nameLabels)
)

func buildIndex(rules []labelRule) map[string]string {
	idx := make(map[string]string, len(rules))
	for _, r := range rules {
		if _, dup := idx[r.Key]; dup {
			continue // first rule wins
		}
		idx[r.Key] = r.Label
	}
	return idx
}

// Extension returns the lowercase suffix after the last "." in name, without
// the dot. It returns "" when name has no dot or ends with one.
func Extension(name string) string {
	idx := strings.LastIndexByte(name, '.')
	if idx < 0 || idx == len(name)-1 {
		return ""
	}
	return strings.ToLower(name[idx+1:])
}

// TypeLabel classifies a file name: extension table first, then the
// extensionless system file table, else DefaultLabel.
func TypeLabel(name string) string {
	if ext := Extension(name); ext != "" {
		if label, ok := extensionIndex[ext]; ok {
			return label
		}
	}
	if label, ok := nameIndex[strings.ToLower(name)]; ok {
		return label
	}
	return DefaultLabel
}

// Facets holds the positional facets of a relative path.
type Facets struct {
	Device   string
	ISP      string
	Category string
}

// PathFacets splits a slash-separated relative path into its positional
// facets. Device needs at least 2 segments, ISP 3, Category 4, so the file
// name itself is never used as a facet.
func PathFacets(relPath string) Facets {
	segs := strings.Split(relPath, "/")
	var f Facets
	if len(segs) >= 2 {
		f.Device = segs[0]
	}
	if len(segs) >= 3 {
		f.ISP = segs[1]
	}
	if len(segs) >= 4 {
		f.Category = segs[2]
	}
	return f
}

// Labels returns every distinct type label the tables can produce, plus
// DefaultLabel, in table order.
func Labels() []string {
	seen := make(map[string]bool)
	var out []string
	for _, rules := range [][]labelRule{extensionLabels, nameLabels} {
		for _, r := range rules {
			if !seen[r.Label] {
				seen[r.Label] = true
				out = append(out, r.Label)
			}
		}
	}
	if !seen[DefaultLabel] {
		out = append(out, DefaultLabel)
	}
	return out
}
