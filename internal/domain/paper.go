package domain

import "strings"

// Paper is the metadata of a single arXiv listing entry. Papers are shared
// read-only between every digest that scores the same category and date.
type Paper struct {
	ID       string
	Title    string
	Authors  string
	Abstract string
	Subjects []string
	MainPage string
	PDF      string
}

// ArxivIDFromURL returns the last path segment of a canonical abstract URL.
func ArxivIDFromURL(raw string) string {
	raw = strings.TrimRight(strings.TrimSpace(raw), "/")
	if idx := strings.LastIndex(raw, "/"); idx >= 0 {
		return raw[idx+1:]
	}
	return raw
}

// SplitSubjects turns an arXiv subject line such as
// "Computer Vision and Pattern Recognition (cs.CV); Machine Learning (cs.LG)"
// into its individual entries.
func SplitSubjects(line string) []string {
	parts := strings.Split(line, ";")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
