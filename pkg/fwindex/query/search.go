package query

import (
	"sort"
	"strings"

	"github.com/jamesainslie/fwindex/pkg/fwindex/config"
	"github.com/jamesainslie/fwindex/pkg/fwindex/types"
	"github.com/sahilm/fuzzy"
)

// Pass identifies which search pass produced a hit.
type Pass string

// Search passes.
const (
	PassFuzzy Pass = "fuzzy"
	PassExact Pass = "exact"
)

// Hit is one search result.
type Hit struct {
	Record types.FileRecord `json:"record"`

	// Score is the weighted fuzzy similarity in [0,1]. Exact-pass hits
	// score 0.
	Score float64 `json:"score"`
	Pass  Pass    `json:"pass"`
}

// SearchOptions bounds the search passes.
type SearchOptions struct {
	// Limit caps the merged result set. Zero or less means no cap.
	Limit int

	// Threshold is the minimum fuzzy score kept by the primary pass.
	Threshold float64
}

// DefaultSearchOptions returns the configured defaults.
func DefaultSearchOptions() SearchOptions {
	return SearchOptions{
		Limit:     config.DefaultSearchLimit,
		Threshold: config.DefaultSearchThreshold,
	}
}

type weightedField struct {
	weight float64
	value  func(*types.FileRecord) string
}

// fuzzyFields orders the searchable fields by weight: name highest, path
// lowest.
var fuzzyFields = []weightedField{
	{1.0, func(r *types.FileRecord) string { return r.Name }},
	{0.8, func(r *types.FileRecord) string { return r.Device }},
	{0.7, func(r *types.FileRecord) string { return r.ISP }},
	{0.6, func(r *types.FileRecord) string { return r.Type }},
	{0.6, func(r *types.FileRecord) string { return r.Category }},
	{0.5, func(r *types.FileRecord) string { return r.Path }},
}

// fieldSource adapts one record field to fuzzy.Source.
type fieldSource struct {
	records []types.FileRecord
	value   func(*types.FileRecord) string
}

func (s fieldSource) String(i int) string { return strings.ToLower(s.value(&s.records[i])) }
func (s fieldSource) Len() int            { return len(s.records) }

// selfScore is the score a pattern earns against itself, used to normalize
// fuzzy scores into [0,1].
func selfScore(pattern string) float64 {
	matches := fuzzy.Find(pattern, []string{pattern})
	if len(matches) == 0 || matches[0].Score <= 0 {
		return 1
	}
	return float64(matches[0].Score)
}

// FuzzySearch is the primary pass. Each whitespace-separated query token is
// fuzzy matched against every field; a token's score for a record is its best
// weighted similarity, and the record score is the mean over tokens. Hits
// below opts.Threshold are dropped. Results are ordered by score, then path,
// and capped at opts.Limit.
func FuzzySearch(records []types.FileRecord, query string, opts SearchOptions) []Hit {
	tokens := strings.Fields(strings.ToLower(query))
	if len(tokens) == 0 || len(records) == 0 {
		return nil
	}

	scores := make(map[int]float64)
	for _, tok := range tokens {
		self := selfScore(tok)
		best := make(map[int]float64)
		for _, field := range fuzzyFields {
			for _, m := range fuzzy.FindFrom(tok, fieldSource{records: records, value: field.value}) {
				sim := float64(m.Score) / self
				if sim <= 0 {
					continue
				}
				if sim > 1 {
					sim = 1
				}
				if w := field.weight * sim; w > best[m.Index] {
					best[m.Index] = w
				}
			}
		}
		for idx, s := range best {
			scores[idx] += s
		}
	}

	hits := make([]Hit, 0, len(scores))
	for idx, total := range scores {
		score := total / float64(len(tokens))
		if score < opts.Threshold {
			continue
		}
		hits = append(hits, Hit{Record: records[idx], Score: score, Pass: PassFuzzy})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Record.Path < hits[j].Record.Path
	})
	return capHits(hits, opts.Limit)
}

// ExactSearch is the supplementary pass: records where every query token
// equals or prefixes an indexed token, in record order, capped at limit.
func ExactSearch(index *TokenIndex, records []types.FileRecord, query string, limit int) []Hit {
	positions := index.Match(query)
	hits := make([]Hit, 0, len(positions))
	for _, pos := range positions {
		if pos >= len(records) {
			continue
		}
		hits = append(hits, Hit{Record: records[pos], Pass: PassExact})
	}
	return capHits(hits, limit)
}

// Merge keeps primary's order, appends supplementary hits primary missed,
// deduplicates by path, and caps the result at limit.
func Merge(primary, supplementary []Hit, limit int) []Hit {
	seen := make(map[string]struct{}, len(primary)+len(supplementary))
	out := make([]Hit, 0, len(primary)+len(supplementary))
	for _, list := range [][]Hit{primary, supplementary} {
		for _, h := range list {
			if limit > 0 && len(out) >= limit {
				return out
			}
			if _, ok := seen[h.Record.Path]; ok {
				continue
			}
			seen[h.Record.Path] = struct{}{}
			out = append(out, h)
		}
	}
	return out
}

// FilterHits keeps hits whose record satisfies m, preserving order.
func FilterHits(hits []Hit, m *Matcher) []Hit {
	out := hits[:0:0]
	for i := range hits {
		if m.Match(&hits[i].Record) {
			out = append(out, hits[i])
		}
	}
	return out
}

func capHits(hits []Hit, limit int) []Hit {
	if limit > 0 && len(hits) > limit {
		return hits[:limit]
	}
	return hits
}
