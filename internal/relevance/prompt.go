package relevance

import (
	"fmt"
	"strings"

	"ArxivDigest/internal/domain"
)

const relevancyPreamble = `
You have been asked to read a list of a few arxiv papers, each with title, authors and abstract.
Based on my specific research interests, relevancy score out of 10 for each paper, based on my specific research interest, with a higher score indicating greater relevance. A relevance score more than 7 will need person's attention for details.
Additionally, please generate 1-2 sentence summary for each paper explaining why it's relevant to my research interests.
Please keep the paper order the same as in the input list, with one json format per line. Example is:
1. {"Relevancy score": "an integer score out of 10", "Reasons for match": "1-2 sentence short reasonings"}

My research interests are:
`

// Batch splits papers into consecutive groups of at most size papers. The
// order of papers inside and across batches is the input order; the model is
// expected to answer each batch in that same order.
func Batch(papers []domain.Paper, size int) [][]domain.Paper {
	if size <= 0 {
		size = 1
	}

	batches := make([][]domain.Paper, 0, (len(papers)+size-1)/size)
	for start := 0; start < len(papers); start += size {
		end := min(start+size, len(papers))
		batches = append(batches, papers[start:end:end])
	}
	return batches
}

// EncodePrompt renders one batch into a single prompt: the instruction
// preamble, the reader's interests, a numbered listing of the papers and a
// trailing cue for the model to continue the numbered JSON lines from "1.".
func EncodePrompt(interests string, papers []domain.Paper) (string, error) {
	var b strings.Builder
	b.WriteString(relevancyPreamble)
	b.WriteString("\n")
	b.WriteString(interests)
	b.WriteString("\nThe papers are: \n")

	for i, paper := range papers {
		if strings.TrimSpace(paper.Title) == "" {
			return "", fmt.Errorf("paper %d (%s) has no title", i+1, paper.ID)
		}
		n := i + 1
		b.WriteString("###\n")
		fmt.Fprintf(&b, "%d. Title: %s\n", n, paper.Title)
		fmt.Fprintf(&b, "%d. Authors: %s\n", n, paper.Authors)
		fmt.Fprintf(&b, "%d. Abstract: %s\n", n, paper.Abstract)
	}

	b.WriteString("\n Generate response:\n1.")
	return b.String(), nil
}
