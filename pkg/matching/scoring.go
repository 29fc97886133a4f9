package matching

import (
	"math"
	"sort"
	"strings"
)

// Scorer provides string and numeric comparison algorithms. Scores are
// on a 0-100 scale.
type Scorer struct{}

// NewScorer creates a new Scorer
func NewScorer() *Scorer {
	return &Scorer{}
}

// Ratio calculates an indel similarity ratio between two strings.
// Insertions and deletions each cost 1; a substitution counts as one of
// each. Returns a value between 0.0 (nothing in common) and 100.0
// (identical).
func (s *Scorer) Ratio(a, b string) float64 {
	if a == b {
		if a == "" {
			return 0.0
		}
		return 100.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	total := len(a) + len(b)
	dist := total - 2*lcsLength(a, b)

	return (1.0 - float64(dist)/float64(total)) * 100.0
}

// lcsLength calculates the longest common subsequence length between
// two strings using two-row dynamic programming.
func lcsLength(a, b string) int {
	row := make([]int, len(b)+1)
	prevRow := make([]int, len(b)+1)

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				row[j] = prevRow[j-1] + 1
			} else {
				row[j] = max(row[j-1], prevRow[j])
			}
		}
		row, prevRow = prevRow, row
		clear(row)
	}

	return prevRow[len(b)]
}

// TokenSetRatio calculates a token-order-insensitive similarity between
// two normalized strings. Tokens are treated as unordered sets: pure
// reorderings score 100, shared-token overlap is rewarded regardless of
// position, and a strict token subset scores high but below 100.
// Symmetric in its arguments. Either input empty returns 0.
func (s *Scorer) TokenSetRatio(a, b string) float64 {
	tokensA := tokenSet(a)
	tokensB := tokenSet(b)
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0.0
	}

	var common, diffA, diffB []string
	for _, t := range tokensA {
		if containsToken(tokensB, t) {
			common = append(common, t)
		} else {
			diffA = append(diffA, t)
		}
	}
	for _, t := range tokensB {
		if !containsToken(tokensA, t) {
			diffB = append(diffB, t)
		}
	}

	sortedA := strings.Join(tokensA, " ")
	sortedB := strings.Join(tokensB, " ")
	result := s.Ratio(sortedA, sortedB)

	if len(common) > 0 {
		base := strings.Join(common, " ")
		withA := joinNonEmpty(base, strings.Join(diffA, " "))
		withB := joinNonEmpty(base, strings.Join(diffB, " "))

		overlap := (s.Ratio(base, withA) + s.Ratio(base, withB)) / 2
		result = math.Max(result, overlap)
	}

	return result
}

// tokenSet splits a string into its sorted set of unique tokens.
func tokenSet(s string) []string {
	fields := strings.Fields(s)
	seen := make(map[string]bool, len(fields))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if !seen[f] {
			seen[f] = true
			tokens = append(tokens, f)
		}
	}
	sort.Strings(tokens)
	return tokens
}

func containsToken(tokens []string, token string) bool {
	for _, t := range tokens {
		if t == token {
			return true
		}
	}
	return false
}

func joinNonEmpty(a, b string) string {
	if b == "" {
		return a
	}
	return a + " " + b
}

// RelativeDeviation calculates |a - b| / b. Returns +Inf when b is 0
// and a differs from it.
func (s *Scorer) RelativeDeviation(a, b float64) float64 {
	if a == b {
		return 0.0
	}
	if b == 0 {
		return math.Inf(1)
	}
	return math.Abs(a-b) / math.Abs(b)
}

// WeightedScore calculates a weighted average of scores
func (s *Scorer) WeightedScore(scores map[string]float64, weights map[string]float64) float64 {
	if len(scores) == 0 {
		return 0.0
	}

	var totalWeight float64
	var weightedSum float64

	for field, score := range scores {
		weight := 1.0 // Default weight
		if w, ok := weights[field]; ok {
			weight = w
		}
		weightedSum += score * weight
		totalWeight += weight
	}

	if totalWeight == 0 {
		return 0.0
	}

	return weightedSum / totalWeight
}
