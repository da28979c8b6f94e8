// Package similarity scores how close two short texts are.
package similarity

import (
	"math"
	"strings"
	"unicode"
)

// Scorer compares task text with endpoint text.
type Scorer interface {
	// Similarity returns a score in [0,1].
	Similarity(a, b string) float64
	// MostSimilar returns the index of the best candidate and its score, or -1 when there are none.
	MostSimilar(text string, candidates []string) (int, float64)
}

var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "of": true, "to": true, "for": true, "and": true,
	"or": true, "in": true, "on": true, "by": true, "with": true, "from": true, "is": true,
	"и": true, "в": true, "на": true, "по": true, "с": true, "для": true, "из": true,
}

// TokenCosine is a bag-of-words cosine scorer. Tokens are lower-cased words
// split on punctuation and camelCase boundaries, with a trailing plural "s" removed.
type TokenCosine struct{}

// NewTokenCosine returns the default scorer.
func NewTokenCosine() *TokenCosine {
	return &TokenCosine{}
}

func (TokenCosine) Similarity(a, b string) float64 {
	return cosine(vector(a), vector(b))
}

func (s TokenCosine) MostSimilar(text string, candidates []string) (int, float64) {
	best, bestScore := -1, 0.0
	v := vector(text)

	for i, c := range candidates {
		score := cosine(v, vector(c))
		if best == -1 || score > bestScore {
			best, bestScore = i, score
		}
	}

	return best, bestScore
}

// Tokens exposes the tokenizer used by the scorer.
func Tokens(text string) []string {
	var (
		tokens []string
		cur    []rune
	)

	flush := func() {
		if len(cur) == 0 {
			return
		}

		tok := normalize(string(cur))
		cur = cur[:0]

		if tok != "" && !stopWords[tok] {
			tokens = append(tokens, tok)
		}
	}

	runes := []rune(text)
	for i, r := range runes {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			flush()

			continue
		}

		if i > 0 && unicode.IsUpper(r) && unicode.IsLower(runes[i-1]) {
			flush()
		}

		cur = append(cur, r)
	}

	flush()

	return tokens
}

func normalize(tok string) string {
	tok = strings.ToLower(tok)
	if len(tok) > 3 && strings.HasSuffix(tok, "s") && !strings.HasSuffix(tok, "ss") {
		tok = strings.TrimSuffix(tok, "s")
	}

	return tok
}

func vector(text string) map[string]float64 {
	v := map[string]float64{}
	for _, t := range Tokens(text) {
		v[t]++
	}

	return v
}

func cosine(a, b map[string]float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	var dot, na, nb float64

	for k, x := range a {
		na += x * x
		dot += x * b[k]
	}

	for _, y := range b {
		nb += y * y
	}

	score := dot / (math.Sqrt(na) * math.Sqrt(nb))

	return math.Min(1, score)
}
