package query

import (
	"sort"
	"strings"
	"unicode"

	"github.com/jamesainslie/fwindex/pkg/fwindex/types"
)

// Tokenize lowercases s and splits it on anything that is not a letter or
// digit.
func Tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// searchFields returns the record fields covered by both search passes.
func searchFields(r *types.FileRecord) []string {
	return []string{r.Name, r.Path, r.Device, r.ISP, r.Category, r.Type}
}

// TokenIndex is an inverted index from lowercase tokens to record positions.
// Each field contributes its tokens and, when it has separators, its whole
// lowercase value.
type TokenIndex struct {
	tokens   []string // sorted
	postings map[string][]int
}

// NewTokenIndex indexes records. Postings refer to positions in records.
func NewTokenIndex(records []types.FileRecord) *TokenIndex {
	postings := make(map[string][]int)
	for i := range records {
		seen := make(map[string]struct{})
		add := func(tok string) {
			if tok == "" {
				return
			}
			if _, ok := seen[tok]; ok {
				return
			}
			seen[tok] = struct{}{}
			postings[tok] = append(postings[tok], i)
		}
		for _, field := range searchFields(&records[i]) {
			add(strings.ToLower(field))
			for _, tok := range Tokenize(field) {
				add(tok)
			}
		}
	}

	tokens := make([]string, 0, len(postings))
	for tok := range postings {
		tokens = append(tokens, tok)
	}
	sort.Strings(tokens)
	return &TokenIndex{tokens: tokens, postings: postings}
}

// Len returns the number of distinct tokens.
func (ix *TokenIndex) Len() int { return len(ix.tokens) }

// lookup returns the positions of records having a token equal to, or
// starting with, tok.
func (ix *TokenIndex) lookup(tok string) map[int]struct{} {
	out := make(map[int]struct{})
	start := sort.SearchStrings(ix.tokens, tok)
	for i := start; i < len(ix.tokens) && strings.HasPrefix(ix.tokens[i], tok); i++ {
		for _, pos := range ix.postings[ix.tokens[i]] {
			out[pos] = struct{}{}
		}
	}
	return out
}

// Match returns record positions, ascending, where every query token matches
// some indexed token exactly or as a prefix.
func (ix *TokenIndex) Match(query string) []int {
	tokens := Tokenize(query)
	if len(tokens) == 0 {
		return nil
	}

	var acc map[int]struct{}
	for _, tok := range tokens {
		hits := ix.lookup(tok)
		if acc == nil {
			acc = hits
		} else {
			for pos := range acc {
				if _, ok := hits[pos]; !ok {
					delete(acc, pos)
				}
			}
		}
		if len(acc) == 0 {
			return nil
		}
	}

	out := make([]int, 0, len(acc))
	for pos := range acc {
		out = append(out, pos)
	}
	sort.Ints(out)
	return out
}
