package retrieval

import (
	"sort"
	"strings"
	"unicode"

	"github.com/novatos-ai/assistant/backend/internal/knowledge"
)

// Scored pairs a chunk with its lexical relevance to a query.
type Scored struct {
	Chunk knowledge.Chunk `json:"chunk"`
	Score int             `json:"score"`
}

// Tokenize lowercases s and splits it on every rune that is neither a letter
// nor a digit. Duplicates are dropped, first occurrence order is kept.
func Tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	seen := make(map[string]struct{}, len(fields))
	tokens := fields[:0]
	for _, f := range fields {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		tokens = append(tokens, f)
	}
	return tokens
}

// Score counts how many of the distinct query tokens occur anywhere in text.
// Matching is by substring, so "book" also counts for "booking".
func Score(tokens []string, text string) int {
	lowered := strings.ToLower(text)
	score := 0
	for _, tok := range tokens {
		if strings.Contains(lowered, tok) {
			score++
		}
	}
	return score
}

// Rank scores every chunk against query and orders them by score, highest
// first. Equal scores keep corpus order.
func Rank(query string, chunks []knowledge.Chunk) []Scored {
	tokens := Tokenize(query)
	ranked := make([]Scored, len(chunks))
	for i, ch := range chunks {
		ranked[i] = Scored{Chunk: ch, Score: Score(tokens, ch.Text)}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	return ranked
}

// TopK returns at most k chunks most relevant to query.
//
// Relevance is plain lexical overlap: no stemming, no synonyms, no semantics,
// and short tokens match inside longer words. That is the precision ceiling of
// this retriever. When nothing matches, the first k chunks in corpus order are
// returned so a non-empty corpus always yields some context.
//
// TopK never mutates chunks and is safe for concurrent use.
func TopK(query string, chunks []knowledge.Chunk, k int) []knowledge.Chunk {
	if k <= 0 || len(chunks) == 0 {
		return nil
	}
	ranked := Rank(query, chunks)
	if k > len(ranked) {
		k = len(ranked)
	}
	out := make([]knowledge.Chunk, k)
	for i := 0; i < k; i++ {
		out[i] = ranked[i].Chunk
	}
	return out
}
