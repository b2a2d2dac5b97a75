package usecase

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// RunReport summarizes one digest run for operators.
type RunReport struct {
	Date             string
	Users            []UserReport
	FailedCategories []string
	Duration         time.Duration
}

// UserReport is the per-user outcome. Err is set when the user's processing
// stopped before every digest was handled.
type UserReport struct {
	UserID  string
	Digests []DigestReport
	Err     error
}

// DigestReport counts what happened to one digest.
type DigestReport struct {
	Name           string
	Results        int
	Written        int
	Failed         int
	Batches        int
	FailedBatches  int
	Hallucinations int
	MissingTopics  []string
	// Cleared is set when results of an earlier run were removed first.
	Cleared bool
	// Top holds the summarized text of the best scored papers, best first.
	Top []string
}

// Complete reports whether every topic was fetched and every batch scored.
// Only a complete digest replaces the results of an earlier run.
func (d DigestReport) Complete() bool {
	return len(d.MissingTopics) == 0 && d.FailedBatches == 0
}

// Written totals the persisted results of the run.
func (r RunReport) Written() int {
	total := 0
	for _, u := range r.Users {
		for _, d := range u.Digests {
			total += d.Written
		}
	}
	return total
}

// WriteFailures totals the results that could not be persisted.
func (r RunReport) WriteFailures() int {
	total := 0
	for _, u := range r.Users {
		for _, d := range u.Digests {
			total += d.Failed
		}
	}
	return total
}

// FailedUsers lists users whose processing aborted.
func (r RunReport) FailedUsers() []string {
	var out []string
	for _, u := range r.Users {
		if u.Err != nil {
			out = append(out, u.UserID)
		}
	}
	return out
}

func (r RunReport) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "arXiv digest %s: %d users, %d results written", r.Date, len(r.Users), r.Written())
	if n := r.WriteFailures(); n > 0 {
		fmt.Fprintf(&b, ", %d writes failed", n)
	}
	fmt.Fprintf(&b, " (%s)\n", r.Duration.Round(time.Second))

	if len(r.FailedCategories) > 0 {
		fmt.Fprintf(&b, "unavailable categories: %s\n", strings.Join(r.FailedCategories, ", "))
	}
	if failed := r.FailedUsers(); len(failed) > 0 {
		fmt.Fprintf(&b, "aborted users: %s\n", strings.Join(failed, ", "))
	}

	for _, u := range r.Users {
		for _, d := range u.Digests {
			fmt.Fprintf(&b, "- %s/%s: %d written", u.UserID, d.Name, d.Written)
			if d.Failed > 0 {
				fmt.Fprintf(&b, ", %d failed", d.Failed)
			}
			if d.FailedBatches > 0 {
				fmt.Fprintf(&b, ", %d/%d batches skipped", d.FailedBatches, d.Batches)
			}
			if d.Hallucinations > 0 {
				fmt.Fprintf(&b, ", %d hallucinated", d.Hallucinations)
			}
			b.WriteString("\n")
			for _, summary := range d.Top {
				writeIndented(&b, summary, "    ")
			}
		}
	}
	return b.String()
}

func sortedCopy(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := slices.Clone(in)
	slices.Sort(out)
	return out
}

func writeIndented(b *strings.Builder, text, indent string) {
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		b.WriteString(indent)
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("\n")
}
