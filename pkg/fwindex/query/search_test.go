package query

import (
	"testing"

	"github.com/jamesainslie/fwindex/pkg/fwindex/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"a", "isp1", "f1", "xml"}, Tokenize("A/ISP1/f1.xml"))
	assert.Equal(t, []string{"tg", "789"}, Tokenize("TG-789"))
	assert.Empty(t, Tokenize(" -/. "))
}

func TestTokenIndexMatch(t *testing.T) {
	c := testCatalog()
	ix := NewTokenIndex(c.Files)
	assert.Positive(t, ix.Len())

	t.Run("exact token", func(t *testing.T) {
		assert.Equal(t, []string{"TG789vac/Telia/config.xml"}, pathsAt(c.Files, ix.Match("telia")))
	})
	t.Run("prefix token", func(t *testing.T) {
		assert.Equal(t, []string{"B/ISP1/file10.bin", "B/ISP1/file2.bin"}, pathsAt(c.Files, ix.Match("file")))
	})
	t.Run("tokens are ANDed", func(t *testing.T) {
		assert.Equal(t, []string{"A/ISP1/f1.xml"}, pathsAt(c.Files, ix.Match("isp1 xml")))
	})
	t.Run("no match", func(t *testing.T) {
		assert.Empty(t, ix.Match("nothing"))
		assert.Empty(t, ix.Match(""))
	})
}

func pathsAt(records []types.FileRecord, positions []int) []string {
	out := make([]string, len(positions))
	for i, p := range positions {
		out[i] = records[p].Path
	}
	return out
}

func TestFuzzySearchRanksNameMatchFirst(t *testing.T) {
	records := []types.FileRecord{
		rec("X/ISP9/firmware_v1.bin", 1, 0),
		rec("A/ISP2/f2.bin", 1, 0),
		rec("A/ISP1/f1.xml", 1, 0),
		rec("Q/ISP3/unrelated.txt", 1, 0),
	}

	hits := FuzzySearch(records, "f1", SearchOptions{Threshold: 0.01})
	require.NotEmpty(t, hits)
	assert.Equal(t, "A/ISP1/f1.xml", hits[0].Record.Path)
	assert.Equal(t, PassFuzzy, hits[0].Pass)
	assert.NotContains(t, hitPaths(hits), "Q/ISP3/unrelated.txt")

	for i := 1; i < len(hits); i++ {
		assert.GreaterOrEqual(t, hits[i-1].Score, hits[i].Score)
	}
	for _, h := range hits {
		assert.LessOrEqual(t, h.Score, 1.0)
	}
}

func TestFuzzySearchThresholdAndLimit(t *testing.T) {
	c := testCatalog()

	assert.Empty(t, FuzzySearch(c.Files, "f1", SearchOptions{Threshold: 1.01}))

	hits := FuzzySearch(c.Files, "i", SearchOptions{Threshold: 0, Limit: 2})
	assert.Len(t, hits, 2)

	assert.Empty(t, FuzzySearch(c.Files, "   ", DefaultSearchOptions()))
	assert.Empty(t, FuzzySearch(nil, "f1", DefaultSearchOptions()))
}

func TestExactSearch(t *testing.T) {
	c := testCatalog()
	ix := NewTokenIndex(c.Files)

	hits := ExactSearch(ix, c.Files, "isp2", 0)
	assert.Equal(t, []string{"A/ISP2/f2.bin", "A/ISP2/sub/deep/x.ko", "A/ISP2/sub/y.sh", "A/ISP2/sub2/z.txt"}, hitPaths(hits))
	for _, h := range hits {
		assert.Equal(t, PassExact, h.Pass)
	}

	assert.Len(t, ExactSearch(ix, c.Files, "isp2", 3), 3)
}

func TestMerge(t *testing.T) {
	h := func(p string, pass Pass) Hit { return Hit{Record: types.FileRecord{Path: p}, Pass: pass} }

	primary := []Hit{h("c", PassFuzzy), h("a", PassFuzzy)}
	supplementary := []Hit{h("a", PassExact), h("b", PassExact), h("d", PassExact)}

	merged := Merge(primary, supplementary, 0)
	assert.Equal(t, []string{"c", "a", "b", "d"}, hitPaths(merged))
	assert.Equal(t, PassFuzzy, merged[1].Pass, "primary wins duplicates")

	assert.Equal(t, []string{"c", "a", "b"}, hitPaths(Merge(primary, supplementary, 3)))
	assert.Equal(t, []string{"c"}, hitPaths(Merge(primary, supplementary, 1)))
	assert.Empty(t, Merge(nil, nil, 10))
}

func TestEngineSearchExactPassRescuesDevice(t *testing.T) {
	e := NewEngine(testCatalog())

	// A threshold above 1 disables every fuzzy hit, so only the exact
	// token pass can return the device's records.
	hits := e.Search("TG789vac", Filters{}, SearchOptions{Threshold: 1.01, Limit: 10})
	require.Len(t, hits, 1)
	assert.Equal(t, "TG789vac/Telia/config.xml", hits[0].Record.Path)
	assert.Equal(t, PassExact, hits[0].Pass)
}

func TestEngineSearchIgnoresCurrentPathAndAppliesFilters(t *testing.T) {
	e := NewEngine(testCatalog())
	opts := SearchOptions{Threshold: 0.3, Limit: 50}

	all := e.Search("bin", Filters{}, opts)
	assert.Subset(t, hitPaths(all), []string{"A/ISP2/f2.bin", "B/ISP1/file10.bin", "B/ISP1/file2.bin"})

	filtered := e.Search("bin", Filters{Device: "B"}, opts)
	require.NotEmpty(t, filtered)
	for _, h := range filtered {
		assert.Equal(t, "B", h.Record.Device)
	}

	// Filtering preserves the merged order.
	var want []string
	for _, h := range all {
		if h.Record.Device == "B" {
			want = append(want, h.Record.Path)
		}
	}
	assert.Equal(t, want, hitPaths(filtered))
}

func TestEngineSearchDedup(t *testing.T) {
	e := NewEngine(testCatalog())
	hits := e.Search("f1", Filters{}, SearchOptions{Threshold: 0.1, Limit: 50})

	seen := make(map[string]bool)
	for _, h := range hits {
		assert.False(t, seen[h.Record.Path], "duplicate %s", h.Record.Path)
		seen[h.Record.Path] = true
	}
	require.NotEmpty(t, hits)
	assert.Equal(t, "A/ISP1/f1.xml", hits[0].Record.Path)
}
