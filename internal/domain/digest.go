package domain

import (
	"fmt"
	"sort"
	"strings"
)

// Digest is a named relevance configuration owned by a user.
type Digest struct {
	Name      string
	Topics    []Topic
	Interests string
}

// User aggregates every digest that shares the same user id in the store.
type User struct {
	ID      string
	Digests []Digest
}

// Categories returns the distinct topic ids used by the given users, sorted.
func Categories(users []User) []string {
	set := map[string]struct{}{}
	for _, user := range users {
		for _, digest := range user.Digests {
			for _, topic := range digest.Topics {
				set[topic.ID] = struct{}{}
			}
		}
	}

	out := make([]string, 0, len(set))
	for category := range set {
		out = append(out, category)
	}
	sort.Strings(out)
	return out
}

// ScoreItem is the structured part of one line of a model reply.
type ScoreItem struct {
	RelevancyScore int
	Reason         string
}

// ScoredPaper pairs a paper with the score item the model returned for it.
type ScoredPaper struct {
	Paper Paper
	Score ScoreItem
}

// SummarizedText renders the paper and its score as a short plain-text block.
func (s ScoredPaper) SummarizedText() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", s.Paper.Title)
	fmt.Fprintf(&b, "Authors: %s\n", s.Paper.Authors)
	fmt.Fprintf(&b, "Link: %s\n", s.Paper.MainPage)
	fmt.Fprintf(&b, "Relevancy score: %d\n", s.Score.RelevancyScore)
	fmt.Fprintf(&b, "Reasons for match: %s\n", s.Score.Reason)
	return b.String()
}

// DigestResult is the persisted unit of a run, one per surviving paper.
type DigestResult struct {
	RelevancyScore int
	Reason         string
	ArxivID        string
}

// ResultKey scopes a set of digest results in the store.
type ResultKey struct {
	UserID     string
	Date       string
	DigestName string
}

// ResultDateLayout formats result dates as YYYY-MM-DD.
const ResultDateLayout = "2006-01-02"

// ListingDateLayout is the date format arXiv prints on its listing pages
// ("Wed, 10 May 23"), also used to key the local paper cache.
const ListingDateLayout = "Mon, 02 Jan 06"
