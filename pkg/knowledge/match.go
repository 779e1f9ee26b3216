package knowledge

import (
	"github.com/dtnitsch/school-kb/models"
	"github.com/pmezard/go-difflib/difflib"
)

// Similarity is the difflib ratio (2*M/T) between two strings, compared
// rune by rune. It is case-sensitive and symmetric up to junk heuristics.
func Similarity(a, b string) float64 {
	return difflib.NewMatcher(runes(a), runes(b)).Ratio()
}

// Match returns the candidate whose question is most similar to userText,
// provided that similarity is at least cutoff (0..1). Candidates are ranked
// by (score, question) like difflib.get_close_matches, so among equal scores
// the lexically greater question wins; identical questions keep the first.
func Match(userText string, pairs []models.KnowledgeEntry, cutoff float64) (models.KnowledgeEntry, bool) {
	if userText == "" || len(pairs) == 0 {
		return models.KnowledgeEntry{}, false
	}
	cutoff = clamp(cutoff)

	// seq2 stays fixed so the matcher indexes the user text once.
	m := difflib.NewMatcher(nil, runes(userText))

	best, bestScore := -1, -1.0
	for i, pair := range pairs {
		m.SetSeq1(runes(pair.Question))
		// Cheap upper bounds first, as difflib.get_close_matches does.
		if m.RealQuickRatio() < cutoff || m.QuickRatio() < cutoff {
			continue
		}
		score := m.Ratio()
		if score < cutoff {
			continue
		}
		if score > bestScore || (score == bestScore && pair.Question > pairs[best].Question) {
			best, bestScore = i, score
		}
	}
	if best < 0 {
		return models.KnowledgeEntry{}, false
	}
	return pairs[best], true
}

// Candidates flattens per-language sequences into one pool, in
// models.Languages order.
func Candidates(entries map[models.Language][]models.KnowledgeEntry) []models.KnowledgeEntry {
	var pool []models.KnowledgeEntry
	for _, lang := range models.Languages {
		pool = append(pool, entries[lang]...)
	}
	return pool
}

func runes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
