package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/filing-classifier/internal/config"
	"github.com/kirillkom/filing-classifier/internal/core/domain"
	"github.com/kirillkom/filing-classifier/internal/core/ports"
	"github.com/kirillkom/filing-classifier/internal/core/usecase"
	"github.com/kirillkom/filing-classifier/internal/infrastructure/cache/memory"
	"github.com/kirillkom/filing-classifier/internal/infrastructure/cache/redisstore"
	"github.com/kirillkom/filing-classifier/internal/infrastructure/catalog/yamlcatalog"
	"github.com/kirillkom/filing-classifier/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/filing-classifier/internal/infrastructure/normalizer"
	"github.com/kirillkom/filing-classifier/internal/infrastructure/policyrules/xlsx"
	"github.com/kirillkom/filing-classifier/internal/infrastructure/queue/nats"
	"github.com/kirillkom/filing-classifier/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/filing-classifier/internal/infrastructure/resilience"
	"github.com/kirillkom/filing-classifier/internal/infrastructure/storage/localfs"
)

type App struct {
	Config config.Config

	Queue     ports.MessageQueue
	Repo      ports.FilingRepository
	SubmitUC  ports.FilingSubmitter
	ProcessUC ports.StoredFilingProcessor

	closeFn func()
}

// Options carries the process-specific hooks of the composition.
type Options struct {
	Logger   *slog.Logger
	Observer ports.FilingObserver
	// QueueLag receives the submission-to-delivery delay of consumed events.
	QueueLag func(time.Duration)
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	pipeline, err := NewPipeline(ctx, cfg, logger, opts.Observer)
	if err != nil {
		return nil, err
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		pipeline.Close()
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewFilingRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		pipeline.Close()
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		pipeline.Close()
		_ = db.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	queueExecutor := resilience.NewExecutor(resilience.QueueConfig(), resilience.WithLogger(logger))
	queue, err := nats.New(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: queueExecutor,
		Logger:             logger,
		HandlerTimeout:     cfg.WorkerProcessTimeout,
		LagObserver:        opts.QueueLag,
	})
	if err != nil {
		pipeline.Close()
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	submitUC := usecase.NewSubmitFilingUseCase(repo, storage, queue, pipeline.Catalog, pipeline.Processor)
	processUC := usecase.NewProcessStoredFilingUseCase(repo, storage, pipeline.Catalog, pipeline.Processor)

	return &App{
		Config:    cfg,
		Queue:     queue,
		Repo:      repo,
		SubmitUC:  submitUC,
		ProcessUC: processUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
			pipeline.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

// Pipeline is the storage-independent part of the composition: everything
// ProcessFiling needs.
type Pipeline struct {
	Catalog   *yamlcatalog.Catalog
	Processor *usecase.ProcessFilingUseCase

	closeFn func()
}

type breakerStateObserver interface {
	ObserveBreakerState(operation, from, to string)
}

func NewPipeline(ctx context.Context, cfg config.Config, logger *slog.Logger, observer ports.FilingObserver) (*Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}

	catalog, err := yamlcatalog.Load(cfg.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	rules := xlsx.New(cfg.PolicyRulesPath, cfg.PolicyRulesSheet)

	cache, closeCache, err := newClassificationCache(ctx, cfg)
	if err != nil {
		return nil, err
	}

	capabilityPolicy := capabilityResilienceConfig(cfg)
	logger.Info("capability_policy",
		"attempts", capabilityPolicy.RetryMaxAttempts,
		"backoff", capabilityPolicy.Schedule(),
		"breaker", capabilityPolicy.BreakerEnabled,
		"rate_limit", capabilityPolicy.RateLimit,
	)
	executorOpts := []resilience.Option{resilience.WithLogger(logger)}
	if listener, ok := observer.(breakerStateObserver); ok {
		executorOpts = append(executorOpts, resilience.WithStateListener(listener.ObserveBreakerState))
	}
	executor := resilience.NewExecutor(capabilityPolicy, executorOpts...)
	guard := resilience.NewCapabilityGuard(executor)
	vision := ollama.New(cfg.OllamaURL, cfg.OllamaVisionModel, ollama.WithKeepAlive(cfg.OllamaKeepAlive))

	classifier := usecase.NewClassificationDispatcher(vision, guard, cache, usecase.ClassificationOptions{
		CallTimeout: cfg.CapabilityTimeout,
		CacheTTL:    cfg.CacheTTL,
		Logger:      logger,
		Observer:    observer,
	})
	extractor := usecase.NewFieldExtractionDispatcher(vision, guard, usecase.ExtractionOptions{
		CallTimeout: cfg.CapabilityTimeout,
		Logger:      logger,
		Observer:    observer,
	})
	policies := usecase.NewPolicyEvaluationBatcher(vision, guard, usecase.PolicyOptions{
		CallTimeout: cfg.PolicyTimeout,
		Logger:      logger,
		Observer:    observer,
	})

	files := normalizer.New(normalizer.Config{
		MaxUploadBytes: cfg.MaxUploadBytes,
		MaxPages:       cfg.MaxPDFPages,
		MaxImageDim:    cfg.MaxImageDim,
		RenderDPI:      cfg.PDFRenderDPI,
	}, normalizer.NewPdftoppm(cfg.PdftoppmPath))

	processor := usecase.NewProcessFilingUseCase(files, classifier, extractor, policies, rules, usecase.ProcessFilingOptions{
		WorkDir:         cfg.WorkDir,
		FileConcurrency: cfg.FileConcurrency,
		FuzzyMatching:   cfg.FuzzyMatching,
		Logger:          logger,
		Observer:        observer,
	})

	return &Pipeline{
		Catalog:   catalog,
		Processor: processor,
		closeFn:   closeCache,
	}, nil
}

func (p *Pipeline) Close() {
	if p.closeFn != nil {
		p.closeFn()
	}
}

func capabilityResilienceConfig(cfg config.Config) resilience.Config {
	out := resilience.DefaultConfig()
	if cfg.CapabilityRetryAttempts > 0 {
		out.RetryMaxAttempts = cfg.CapabilityRetryAttempts
	}
	if cfg.CapabilityRetryBackoff > 0 {
		out.RetryInitialBackoff = cfg.CapabilityRetryBackoff
		out.RetryMaxBackoff = 4 * cfg.CapabilityRetryBackoff
	}
	out.RateLimit = cfg.CapabilityRateLimit
	out.BreakerEnabled = cfg.CapabilityBreakerEnabled
	return out
}

func newClassificationCache(ctx context.Context, cfg config.Config) (ports.ClassificationCache, func(), error) {
	switch strings.ToLower(strings.TrimSpace(cfg.CacheBackend)) {
	case "", "memory":
		return memory.New(cfg.CacheMaxEntries, cfg.CacheTTL), func() {}, nil
	case "none", "off", "disabled":
		return nil, func() {}, nil
	case "redis":
		client, err := redisstore.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("init classification cache: %w", err)
		}
		return redisstore.New(client), func() { _ = client.Close() }, nil
	default:
		return nil, nil, domain.WrapError(domain.ErrConfiguration, "init classification cache", fmt.Errorf("unknown backend %q", cfg.CacheBackend))
	}
}
