package relevance

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"slices"

	"golang.org/x/sync/errgroup"

	"ArxivDigest/internal/domain"
	"ArxivDigest/internal/ports"
)

// Options are the decoding and batching parameters of a Scorer.
type Options struct {
	Model          string
	Temperature    float64
	TopP           float64
	TokensPerPaper int
	LogitBias      map[string]int
	BatchSize      int
	Threshold      int
	// BatchConcurrency bounds in-flight completions per topic; 1 is sequential.
	BatchConcurrency int
}

// TopicScore is the accumulated outcome of scoring one topic's papers.
type TopicScore struct {
	Items          []domain.ScoredPaper
	Hallucinated   bool
	Batches        int
	FailedBatches  int
	Hallucinations int
}

// Scorer turns papers into threshold-passing scored items, one completion per batch.
type Scorer struct {
	client ports.CompletionClient
	opts   Options
	logger *slog.Logger
}

// NewScorer wires a completion client. Zero options fall back to the defaults
// the digest job has always used.
func NewScorer(client ports.CompletionClient, opts Options, logger *slog.Logger) *Scorer {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 8
	}
	if opts.TokensPerPaper <= 0 {
		opts.TokensPerPaper = 128
	}
	if opts.BatchConcurrency <= 0 {
		opts.BatchConcurrency = 1
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Scorer{client: client, opts: opts, logger: logger}
}

type batchOutcome struct {
	items        []domain.ScoredPaper
	hallucinated bool
	failed       bool
}

// ScoreTopic scores papers against interests. Batches may run concurrently but
// their items are accumulated in batch order. A batch whose completion fails
// or whose reply cannot be decoded is logged and skipped.
func (s *Scorer) ScoreTopic(ctx context.Context, interests string, papers []domain.Paper) (TopicScore, error) {
	batches := Batch(papers, s.opts.BatchSize)
	outcomes := make([]batchOutcome, len(batches))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.BatchConcurrency)
	for i, batch := range batches {
		g.Go(func() error {
			outcomes[i] = s.scoreBatch(gctx, interests, batch, i)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return TopicScore{}, err
	}

	score := TopicScore{Batches: len(batches)}
	for _, outcome := range outcomes {
		if outcome.failed {
			score.FailedBatches++
			continue
		}
		if outcome.hallucinated {
			score.Hallucinated = true
			score.Hallucinations++
		}
		score.Items = append(score.Items, outcome.items...)
	}
	return score, nil
}

func (s *Scorer) scoreBatch(ctx context.Context, interests string, batch []domain.Paper, index int) batchOutcome {
	log := s.logger.With("batch", index, "papers", len(batch))

	prompt, err := EncodePrompt(interests, batch)
	if err != nil {
		log.Warn("skip batch: encode prompt", "error", err)
		return batchOutcome{failed: true}
	}

	reply, err := s.client.Complete(ctx, domain.CompletionRequest{
		Prompt:      prompt,
		Model:       s.opts.Model,
		Temperature: s.opts.Temperature,
		TopP:        s.opts.TopP,
		MaxTokens:   s.opts.TokensPerPaper * len(batch),
		LogitBias:   s.opts.LogitBias,
	})
	if err != nil {
		log.Warn("skip batch: completion failed", "error", err)
		return batchOutcome{failed: true}
	}

	resp, err := ParseResponse(batch, reply)
	if err != nil {
		var decodeErr *domain.ResponseDecodeError
		if errors.As(err, &decodeErr) {
			log.Warn("skip batch: undecodable reply", "line", decodeErr.Line, "error", decodeErr.Err)
		} else {
			log.Warn("skip batch: parse reply", "error", err)
		}
		return batchOutcome{failed: true}
	}

	if resp.Hallucinated {
		log.Warn("score count mismatch, truncated", "scored", len(resp.Items))
	}
	if len(resp.UnknownFields) > 0 {
		log.Debug("ignored unexpected score fields", "fields", resp.UnknownFields)
	}

	return batchOutcome{
		items:        resp.AboveThreshold(s.opts.Threshold),
		hallucinated: resp.Hallucinated,
	}
}

// SortByScore orders items by descending relevancy score, keeping the input
// order of equal scores.
func SortByScore(items []domain.ScoredPaper) {
	slices.SortStableFunc(items, func(a, b domain.ScoredPaper) int {
		return cmp.Compare(b.Score.RelevancyScore, a.Score.RelevancyScore)
	})
}
