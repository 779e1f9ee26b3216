package extractors

import (
	"strings"

	"github.com/dtnitsch/school-kb/models"
)

// MineFAQ pairs each block ending in "?" with the block right after it, as
// long as that block is not itself a question.
//
// This is a high-recall, low-precision heuristic: a rhetorical question
// followed by unrelated text still produces a pair. Filtering those out is
// left to refinement or a human editor.
func MineFAQ(blocks []string) []models.QAPair {
	var pairs []models.QAPair
	for i := 0; i+1 < len(blocks); i++ {
		if !isQuestion(blocks[i]) || isQuestion(blocks[i+1]) {
			continue
		}
		pairs = append(pairs, models.QAPair{
			Question: blocks[i],
			Answer:   blocks[i+1],
		})
	}
	return pairs
}

// ExtractFAQ mines a parsed page and attributes every pair to its URL.
func ExtractFAQ(page *models.Page) []models.QAPair {
	if page == nil {
		return nil
	}
	pairs := MineFAQ(page.Lines())
	for i := range pairs {
		pairs[i].SourceURL = page.URL
	}
	return pairs
}

func isQuestion(block string) bool {
	return strings.HasSuffix(block, "?")
}
