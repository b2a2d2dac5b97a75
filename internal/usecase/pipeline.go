package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"ArxivDigest/internal/domain"
	"ArxivDigest/internal/metrics"
	"ArxivDigest/internal/ports"
	"ArxivDigest/internal/relevance"
)

// reportTopPapers is how many papers per digest the run report spells out.
const reportTopPapers = 3

// TopicScorer scores the papers of one topic against a digest's interests.
type TopicScorer interface {
	ScoreTopic(ctx context.Context, interests string, papers []domain.Paper) (relevance.TopicScore, error)
}

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Source     ports.PaperSource
	Repository ports.DigestRepository
	Writer     ports.ResultWriter
	Scorer     TopicScorer
	Notifier   ports.Notifier
	Metrics    *metrics.Recorder
	Pusher     *metrics.Pusher
	Logger     *slog.Logger

	// UserConcurrency and FetchConcurrency bound the fan-out across users
	// and categories; zero means one at a time.
	UserConcurrency  int
	FetchConcurrency int
}

// Pipeline implements the daily digest workflow.
type Pipeline struct {
	source     ports.PaperSource
	repository ports.DigestRepository
	writer     ports.ResultWriter
	scorer     TopicScorer
	notifier   ports.Notifier
	metrics    *metrics.Recorder
	pusher     *metrics.Pusher
	logger     *slog.Logger

	userConcurrency  int
	fetchConcurrency int
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Pipeline{
		source:           deps.Source,
		repository:       deps.Repository,
		writer:           deps.Writer,
		scorer:           deps.Scorer,
		notifier:         deps.Notifier,
		metrics:          deps.Metrics,
		pusher:           deps.Pusher,
		logger:           logger,
		userConcurrency:  max(deps.UserConcurrency, 1),
		fetchConcurrency: max(deps.FetchConcurrency, 1),
	}
}

// ProcessDay runs the digest job for day: list users, fetch every category
// they follow, score each digest and persist what clears the threshold.
// Only a failure to list users or a cancelled context is returned as an
// error; fetch, batch and write failures are isolated and reported.
func (p *Pipeline) ProcessDay(ctx context.Context, day time.Time) (RunReport, error) {
	started := time.Now()
	report := RunReport{Date: day.Format(domain.ResultDateLayout)}

	if p.repository == nil || p.source == nil || p.scorer == nil || p.writer == nil {
		return report, errors.New("pipeline is missing a dependency")
	}

	users, err := p.repository.ListUsers(ctx)
	if err != nil {
		return report, fmt.Errorf("list users: %w", err)
	}
	p.logger.Info("digest run started", "date", report.Date, "users", len(users))

	papers, failed := p.fetchCategories(ctx, domain.Categories(users), day)
	report.FailedCategories = failed
	if err := ctx.Err(); err != nil {
		return report, err
	}

	report.Users = make([]UserReport, len(users))
	g := new(errgroup.Group)
	g.SetLimit(p.userConcurrency)
	for i, user := range users {
		g.Go(func() error {
			report.Users[i] = p.processUser(ctx, user, papers, report.Date)
			return nil
		})
	}
	_ = g.Wait()

	report.Duration = time.Since(started)
	p.finish(ctx, report)

	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

// fetchCategories loads every category listing. Categories that fail are
// logged and left out; digests depending on them get partial results.
func (p *Pipeline) fetchCategories(ctx context.Context, categories []string, day time.Time) (map[string][]domain.Paper, []string) {
	var (
		mu     sync.Mutex
		papers = make(map[string][]domain.Paper, len(categories))
		failed []string
	)

	g := new(errgroup.Group)
	g.SetLimit(p.fetchConcurrency)
	for _, category := range categories {
		g.Go(func() error {
			list, err := p.source.FetchPapers(ctx, category, day)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				p.logger.Warn("skip category: fetch failed", "category", category, "error", err)
				p.metrics.FetchFailed(category)
				failed = append(failed, category)
				return nil
			}
			p.logger.Info("category fetched", "category", category, "papers", len(list))
			p.metrics.Fetched(category, len(list))
			papers[category] = list
			return nil
		})
	}
	_ = g.Wait()

	return papers, sortedCopy(failed)
}

func (p *Pipeline) processUser(ctx context.Context, user domain.User, papers map[string][]domain.Paper, date string) UserReport {
	log := p.logger.With("user", user.ID)
	report := UserReport{UserID: user.ID}

	for _, digest := range user.Digests {
		if err := ctx.Err(); err != nil {
			report.Err = err
			break
		}

		dr, err := p.processDigest(ctx, log, user.ID, digest, papers, date)
		report.Digests = append(report.Digests, dr)
		if err != nil {
			report.Err = err
			break
		}
	}

	if report.Err != nil {
		log.Error("user aborted", "error", report.Err)
		p.metrics.UserFailed()
	}
	return report
}

func (p *Pipeline) processDigest(
	ctx context.Context,
	log *slog.Logger,
	userID string,
	digest domain.Digest,
	papers map[string][]domain.Paper,
	date string,
) (DigestReport, error) {
	log = log.With("digest", digest.Name)
	report := DigestReport{Name: digest.Name}

	var items []domain.ScoredPaper
	for _, topic := range digest.Topics {
		listing, ok := papers[topic.ID]
		if !ok {
			report.MissingTopics = append(report.MissingTopics, topic.ID)
			continue
		}

		candidates := relevance.FilterBySubjects(listing, topic.Subjects())
		log.Debug("topic filtered", "topic", topic.ID, "candidates", len(candidates))

		score, err := p.scorer.ScoreTopic(ctx, digest.Interests, candidates)
		if err != nil {
			return report, fmt.Errorf("score topic %s: %w", topic.ID, err)
		}

		p.metrics.Scored(score.Batches, score.FailedBatches, score.Hallucinations)
		report.Batches += score.Batches
		report.FailedBatches += score.FailedBatches
		report.Hallucinations += score.Hallucinations
		items = append(items, score.Items...)
	}

	relevance.SortByScore(items)
	results := BuildResults(items)
	report.Results = len(results)
	report.Top = topSummaries(items, reportTopPapers)

	key := domain.ResultKey{UserID: userID, Date: date, DigestName: digest.Name}
	if report.Complete() {
		report.Cleared = p.clearResults(ctx, log, key)
	} else {
		log.Warn("keeping earlier results: scoring was partial",
			"missing_topics", report.MissingTopics, "failed_batches", report.FailedBatches)
	}
	report.Written, report.Failed = p.writeResults(ctx, log, key, results)
	p.metrics.Written(report.Written, report.Failed)

	log.Info("digest scored",
		"results", report.Results,
		"written", report.Written,
		"failed", report.Failed,
		"hallucinations", report.Hallucinations)
	return report, nil
}

// clearResults drops what an earlier run stored under key so that a rerun
// leaves exactly its own results. A failed clear is logged and the new
// results are still written.
func (p *Pipeline) clearResults(ctx context.Context, log *slog.Logger, key domain.ResultKey) bool {
	if err := p.writer.ClearResults(ctx, key); err != nil {
		log.Warn("clearing earlier results failed", "error", err)
		return false
	}
	return true
}

// writeResults persists each record on its own; one failed write does not
// stop the rest.
func (p *Pipeline) writeResults(ctx context.Context, log *slog.Logger, key domain.ResultKey, results []domain.DigestResult) (written, failed int) {
	for _, result := range results {
		if err := p.writer.AppendResult(ctx, key, result); err != nil {
			werr := &domain.StoreWriteError{Key: key, ArxivID: result.ArxivID, Err: err}
			log.Warn("result write failed", "arxiv_id", result.ArxivID, "error", werr)
			failed++
			continue
		}
		written++
	}
	return written, failed
}

// BuildResults maps sorted scored papers to persisted records. A paper that
// was scored under several topics is kept once, at its first (highest) position.
func BuildResults(items []domain.ScoredPaper) []domain.DigestResult {
	seen := make(map[string]struct{}, len(items))
	results := make([]domain.DigestResult, 0, len(items))
	for _, item := range items {
		id := domain.ArxivIDFromURL(item.Paper.MainPage)
		if id == "" {
			id = item.Paper.ID
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		results = append(results, domain.DigestResult{
			RelevancyScore: item.Score.RelevancyScore,
			Reason:         item.Score.Reason,
			ArxivID:        id,
		})
	}
	return results
}

// topSummaries renders the first n distinct papers of sorted items.
func topSummaries(items []domain.ScoredPaper, n int) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, item := range items {
		if len(out) == n {
			break
		}
		id := domain.ArxivIDFromURL(item.Paper.MainPage)
		if id == "" {
			id = item.Paper.ID
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, item.SummarizedText())
	}
	return out
}

func (p *Pipeline) finish(ctx context.Context, report RunReport) {
	p.metrics.RunFinished(report.Duration.Seconds(), time.Now().Unix())
	if err := p.pusher.Push(ctx, p.metrics); err != nil {
		p.logger.Warn("metrics push failed", "error", err)
	}

	p.logger.Info("digest run finished",
		"date", report.Date,
		"users", len(report.Users),
		"written", report.Written(),
		"failed_categories", strings.Join(report.FailedCategories, ","),
		"duration", report.Duration.Round(time.Millisecond))

	if p.notifier == nil {
		return
	}
	if err := p.notifier.PublishReport(ctx, report.String()); err != nil {
		p.logger.Warn("report notification failed", "error", err)
	}
}
