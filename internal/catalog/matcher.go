package catalog

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Fold lowercases, trims and strips diacritics so "Crème Fraîche" and
// "creme fraiche" compare equal.
func Fold(s string) string {
	folded, _, err := transform.String(foldTransformer, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(strings.TrimSpace(folded))
}

// Score rates how well a catalog name matches the queried name, in [0,1].
// Exact folded equality wins outright; containment and token overlap share
// the rest of the range. Anything below the caller's threshold is no match.
func Score(query, name string) float64 {
	q := Fold(query)
	n := Fold(name)
	if q == "" || n == "" {
		return 0
	}
	if q == n {
		return 1
	}
	score := tokenOverlap(q, n)
	if strings.Contains(n, q) || strings.Contains(q, n) {
		containment := float64(min(len(q), len(n))) / float64(max(len(q), len(n)))
		if 0.6+0.3*containment > score {
			score = 0.6 + 0.3*containment
		}
	}
	return score
}

func tokenOverlap(a, b string) float64 {
	at := strings.Fields(a)
	bt := strings.Fields(b)
	if len(at) == 0 || len(bt) == 0 {
		return 0
	}
	seen := make(map[string]bool, len(at))
	for _, tok := range at {
		seen[tok] = true
	}
	common := 0
	for _, tok := range bt {
		if seen[tok] {
			common++
		}
	}
	total := len(at) + len(bt) - common
	if total == 0 {
		return 0
	}
	return 0.9 * float64(common) / float64(total)
}

// Rank scores every candidate against the query, drops those below threshold
// and orders the rest best-first.
func Rank(query string, candidates []Candidate, threshold float64) []Candidate {
	ranked := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		c.Score = Score(query, c.Name)
		if c.Score >= threshold {
			ranked = append(ranked, c)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	return ranked
}

// BestMatch returns the top candidate above threshold, or nil when no
// candidate is confident enough. A low-confidence pick is never forced.
func BestMatch(query string, candidates []Candidate, threshold float64) *Candidate {
	ranked := Rank(query, candidates, threshold)
	if len(ranked) == 0 {
		return nil
	}
	best := ranked[0]
	return &best
}
