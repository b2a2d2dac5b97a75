package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"ArxivDigest/internal/config"
	"ArxivDigest/internal/infrastructure/cache"
	"ArxivDigest/internal/infrastructure/llm"
	"ArxivDigest/internal/infrastructure/parser"
	"ArxivDigest/internal/infrastructure/scheduler"
	"ArxivDigest/internal/infrastructure/storage"
	"ArxivDigest/internal/infrastructure/telegram"
	"ArxivDigest/internal/logging"
	"ArxivDigest/internal/metrics"
	"ArxivDigest/internal/ports"
	"ArxivDigest/internal/relevance"
	"ArxivDigest/internal/scanner"
	"ArxivDigest/internal/usecase"
)

const shutdownTimeout = 30 * time.Second

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	pipeline *usecase.Pipeline
	closers  []func() error
}

// New validates cfg and connects every collaborator. Configuration and store
// errors are returned here, before any per-user work starts.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	a := &Application{cfg: cfg, logger: baseLogger}

	store, err := openStore(ctx, cfg.Store, baseLogger.With("component", "store."+cfg.Store.Driver))
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, store.Close)

	registry := scanner.NewRegistry()
	registry.Register(parser.NewArxivScanner(
		&http.Client{Timeout: cfg.Source.Timeout},
		cfg.Source.BaseURL,
		baseLogger.With("component", "scanner.arxiv"),
	))
	source := parser.NewStrategySource(registry, cfg.Source.Scanner, cfg.Source.CacheDir,
		baseLogger.With("component", "source"))

	var completion ports.CompletionClient = llm.NewChatGPTClient(cfg.ChatGPT, baseLogger.With("component", "llm"))
	if cfg.Cache.Addr != "" {
		client, err := cache.Dial(ctx, cfg.Cache.Addr, cfg.Cache.Password, cfg.Cache.DB)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		completion = cache.NewCachedCompletionClient(completion,
			cache.NewRedisCache(client, cfg.Cache.KeyPrefix, cfg.Cache.TTL),
			baseLogger.With("component", "cache"),
			cache.WithValidator(relevance.CheckReply))
	}

	scorer := relevance.NewScorer(completion, relevance.Options{
		Model:            cfg.ChatGPT.Model,
		Temperature:      cfg.ChatGPT.Temperature,
		TopP:             cfg.ChatGPT.TopP,
		TokensPerPaper:   cfg.ChatGPT.TokensPerPaper,
		LogitBias:        cfg.ChatGPT.LogitBias,
		BatchSize:        cfg.Scoring.BatchSize,
		Threshold:        cfg.Scoring.Threshold,
		BatchConcurrency: cfg.Scoring.BatchConcurrency,
	}, baseLogger.With("component", "scorer"))

	var notifier ports.Notifier
	if tg := cfg.Notifications.Telegram; tg.BotToken != "" && tg.ChatID != "" {
		notifier = telegram.NewNotifier(tg.BotToken, tg.ChatID)
	}

	a.pipeline = usecase.NewPipeline(usecase.PipelineDeps{
		Source:           source,
		Repository:       store,
		Writer:           store,
		Scorer:           scorer,
		Notifier:         notifier,
		Metrics:          metrics.NewRecorder(),
		Pusher:           metrics.NewPusher(cfg.Metrics.PushgatewayURL, cfg.Metrics.Job),
		Logger:           baseLogger.With("component", "pipeline"),
		UserConcurrency:  cfg.Scoring.UserConcurrency,
		FetchConcurrency: cfg.Scoring.FetchConcurrency,
	})

	return a, nil
}

func openStore(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (ports.DocumentStore, error) {
	switch cfg.Driver {
	case config.StorePostgres:
		repo, err := storage.OpenPostgres(ctx, cfg.DSN, logger)
		if err != nil {
			return nil, err
		}
		if err := repo.EnsureSchema(ctx); err != nil {
			_ = repo.Close()
			return nil, err
		}
		return repo, nil
	case config.StoreFirestore:
		repo, err := storage.OpenFirestore(ctx, cfg.ProjectID, cfg.CredentialsFile, logger)
		if err != nil {
			return nil, err
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// RunOnce processes a single day. A zero day means today in the scheduler timezone.
func (a *Application) RunOnce(ctx context.Context, day time.Time) (usecase.RunReport, error) {
	loc := a.cfg.Scheduler.Location()
	if day.IsZero() {
		day = time.Now()
	}
	return a.pipeline.ProcessDay(ctx, day.In(loc))
}

// Schedule runs the pipeline on the configured cron until ctx is cancelled.
func (a *Application) Schedule(ctx context.Context) error {
	loc := a.cfg.Scheduler.Location()
	driver, err := scheduler.NewCronScheduler(a.cfg.Scheduler.CronExpression, loc,
		a.logger.With("component", "scheduler"))
	if err != nil {
		return err
	}

	sched := usecase.NewScheduler(driver, a.pipeline, loc, a.logger.With("component", "scheduler"))
	if err := sched.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return sched.Stop(stopCtx)
}

// Close releases the store and cache connections.
func (a *Application) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
