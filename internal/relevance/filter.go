// Package relevance scores arXiv papers against a digest's interests with a
// language model: it filters papers by subject, renders batched prompts,
// decodes the numbered JSON replies and accumulates the results.
package relevance

import (
	"strings"

	"ArxivDigest/internal/domain"
)

// FilterBySubjects keeps the papers with at least one subject tag containing
// one of the query subjects ("cs.CV" matches "Computer Vision (cs.CV)").
// The input slice is not modified; order is preserved.
func FilterBySubjects(papers []domain.Paper, subjects []string) []domain.Paper {
	if len(subjects) == 0 {
		return nil
	}

	var out []domain.Paper
	for _, paper := range papers {
		if hasSubject(paper.Subjects, subjects) {
			out = append(out, paper)
		}
	}
	return out
}

func hasSubject(tags, query []string) bool {
	for _, q := range query {
		if q == "" {
			continue
		}
		for _, tag := range tags {
			if strings.Contains(tag, q) {
				return true
			}
		}
	}
	return false
}
