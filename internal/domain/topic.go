package domain

import (
	"sort"
	"strings"
)

// Topic is an arXiv archive (e.g. "cs") together with the subject classes a
// digest follows inside it (e.g. "CV", "LG").
type Topic struct {
	ID        string
	Subtopics []string
}

// Subjects expands the topic into full subject codes such as "cs.CV".
func (t Topic) Subjects() []string {
	out := make([]string, 0, len(t.Subtopics))
	for _, sub := range t.Subtopics {
		out = append(out, t.ID+"."+sub)
	}
	return out
}

// ParseTopics reads a comma separated "<topic>.<subtopic>" declaration and
// returns the merged topics. Tokens are split on their first dot.
func ParseTopics(raw string) ([]Topic, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	var topics []Topic
	for _, token := range strings.Split(raw, ",") {
		token = strings.TrimSpace(token)
		id, sub, ok := strings.Cut(token, ".")
		id, sub = strings.TrimSpace(id), strings.TrimSpace(sub)
		if !ok || id == "" || sub == "" {
			return nil, &MalformedTopicError{Token: token}
		}
		topics = append(topics, Topic{ID: id, Subtopics: []string{sub}})
	}

	return MergeTopics(topics), nil
}

// MergeTopics groups topics by ID and unions their subtopics. The result is
// ordered by first appearance of each ID; subtopics are sorted and unique.
func MergeTopics(topics []Topic) []Topic {
	index := make(map[string]int, len(topics))
	seen := make(map[string]map[string]struct{}, len(topics))
	merged := make([]Topic, 0, len(topics))

	for _, topic := range topics {
		pos, ok := index[topic.ID]
		if !ok {
			pos = len(merged)
			index[topic.ID] = pos
			seen[topic.ID] = map[string]struct{}{}
			merged = append(merged, Topic{ID: topic.ID})
		}
		for _, sub := range topic.Subtopics {
			if _, dup := seen[topic.ID][sub]; dup {
				continue
			}
			seen[topic.ID][sub] = struct{}{}
			merged[pos].Subtopics = append(merged[pos].Subtopics, sub)
		}
	}

	for i := range merged {
		sort.Strings(merged[i].Subtopics)
	}
	return merged
}
