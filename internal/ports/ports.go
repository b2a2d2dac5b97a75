package ports

import (
	"context"
	"time"

	"ArxivDigest/internal/domain"
)

// PaperSource returns the listing of a category for a given day.
// Repeated calls for the same category and day return the same papers.
type PaperSource interface {
	FetchPapers(ctx context.Context, category string, day time.Time) ([]domain.Paper, error)
}

// CompletionClient sends a single prompt to a language model and returns the
// text of the first completion.
type CompletionClient interface {
	Complete(ctx context.Context, req domain.CompletionRequest) (string, error)
}

// DigestRepository reads the digest configuration of every user.
type DigestRepository interface {
	ListUsers(ctx context.Context) ([]domain.User, error)
}

// ResultWriter persists one digest result under a (user, date, digest) key.
// Writing the same arXiv id twice under a key must not yield two results.
// ClearResults removes every result stored under key; clearing an empty key
// is not an error.
type ResultWriter interface {
	AppendResult(ctx context.Context, key domain.ResultKey, result domain.DigestResult) error
	ClearResults(ctx context.Context, key domain.ResultKey) error
}

// DocumentStore is a store that both holds digest configuration and receives results.
type DocumentStore interface {
	DigestRepository
	ResultWriter
	Close() error
}

// CompletionCache stores model replies keyed by request fingerprint.
type CompletionCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// Notifier delivers the run report to an operator channel.
type Notifier interface {
	PublishReport(ctx context.Context, report string) error
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
