package linker

import (
	"strings"

	"golang.org/x/text/width"

	"github.com/kokkai-archive/kokkaid/models"
)

// NormalizeCommitteeName folds a committee name to a comparable key:
// full-width/half-width folding, case folding, whitespace collapse.
// It deliberately does not strip suffixes or apply aliases; those belong to
// the alias stage so that the resulting confidence tier reflects how far the
// two names actually were from each other.
func NormalizeCommitteeName(name string) string {
	folded := width.Fold.String(name)
	folded = strings.ToLower(folded)
	return strings.Join(strings.Fields(folded), " ")
}

// AliasTable canonicalizes committee names that the transcript source and the
// broadcast source spell differently: renamed committees, abbreviations, and
// decoration suffixes the broadcaster appends. The table is versioned
// configuration, not code, since source naming drifts over time.
type AliasTable struct {
	Version       string
	entries       map[string]string
	stripSuffixes []string
}

// NewAliasTable builds a table from configuration. Keys, values and suffixes
// are normalized so lookups work on normalized names.
func NewAliasTable(version string, aliases map[string]string, stripSuffixes []string) AliasTable {
	entries := make(map[string]string, len(aliases))
	for from, to := range aliases {
		entries[NormalizeCommitteeName(from)] = NormalizeCommitteeName(to)
	}
	suffixes := make([]string, 0, len(stripSuffixes))
	for _, s := range stripSuffixes {
		if folded := NormalizeCommitteeName(s); folded != "" {
			suffixes = append(suffixes, folded)
		}
	}
	return AliasTable{Version: version, entries: entries, stripSuffixes: suffixes}
}

// Canonical maps a normalized name to its canonical committee name. The
// explicit alias entries win; otherwise known decoration suffixes are
// stripped and the alias entries consulted once more.
func (t AliasTable) Canonical(normalized string) string {
	if c, ok := t.entries[normalized]; ok {
		return c
	}
	stripped := normalized
	for _, suffix := range t.stripSuffixes {
		stripped = strings.TrimSpace(strings.TrimSuffix(stripped, suffix))
	}
	if c, ok := t.entries[stripped]; ok {
		return c
	}
	return stripped
}

// Matcher scores committee-name pairs into confidence tiers.
type Matcher struct {
	Aliases        AliasTable
	FuzzyThreshold int
}

// Score returns the confidence tier for a minutes/broadcast name pair, or
// false when the pair is below the fuzzy threshold and must not be linked.
func (m Matcher) Score(minutesName, broadcastName string) (models.ConfidenceTier, bool) {
	a := NormalizeCommitteeName(minutesName)
	b := NormalizeCommitteeName(broadcastName)
	if a == "" || b == "" {
		return "", false
	}
	if a == b {
		return models.TierExact, true
	}
	ca := m.Aliases.Canonical(a)
	cb := m.Aliases.Canonical(b)
	if ca == cb {
		return models.TierAlias, true
	}
	if m.fuzzyMatch(ca, cb) {
		return models.TierFuzzy, true
	}
	return "", false
}

// fuzzyMatch accepts substring containment or an edit distance within the
// configured threshold. Containment requires the shorter name to be at least
// three runes so 委員会-style fragments don't match everything.
func (m Matcher) fuzzyMatch(a, b string) bool {
	shorter := a
	if len([]rune(b)) < len([]rune(shorter)) {
		shorter = b
	}
	if len([]rune(shorter)) >= 3 && (strings.Contains(a, b) || strings.Contains(b, a)) {
		return true
	}
	if m.FuzzyThreshold <= 0 {
		return false
	}
	return editDistance(a, b) <= m.FuzzyThreshold
}

// editDistance is plain Levenshtein over runes.
func editDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, min(curr[j-1]+1, prev[j-1]+cost))
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
