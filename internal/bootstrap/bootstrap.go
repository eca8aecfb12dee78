package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/doc-salience/internal/config"
	"github.com/kirillkom/doc-salience/internal/core/extract"
	"github.com/kirillkom/doc-salience/internal/core/ports"
	"github.com/kirillkom/doc-salience/internal/infrastructure/embedding/ollama"
	"github.com/kirillkom/doc-salience/internal/infrastructure/parser/markdown"
	"github.com/kirillkom/doc-salience/internal/infrastructure/queue/nats"
	"github.com/kirillkom/doc-salience/internal/infrastructure/resilience"
	"github.com/kirillkom/doc-salience/internal/observability/logging"
)

// App holds the wired dependency graph shared by the api and worker binaries.
type App struct {
	Config config.Config
	Logger *slog.Logger

	Embedder  ports.Embedder
	Parser    ports.SectionParser
	Queue     ports.ChunkQueue
	Extractor ports.DocumentExtractor
	Pipeline  ports.StreamExtractor

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, service string) (*App, error) {
	logger := logging.NewJSONLogger(service, cfg.LogLevel)
	slog.SetDefault(logger)

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	embedder := ollama.New(ollama.Config{
		BaseURL:  cfg.OllamaURL,
		Model:    cfg.OllamaEmbedModel,
		MaxBatch: cfg.OllamaMaxBatch,
		Timeout:  time.Duration(cfg.OllamaTimeoutSeconds) * time.Second,
	}, executor)
	if err := embedder.Init(ctx); err != nil {
		// The gateway may still be starting; sessions retry per batch.
		logger.Warn("embedder warmup failed", "error", err)
	}

	parser := markdown.New()

	opts := extractOptions(cfg)
	extractor, err := extract.New(embedder, opts, logger)
	if err != nil {
		return nil, fmt.Errorf("init extractor: %w", err)
	}
	pipeline, err := extract.NewPipeline(embedder, parser, opts, logger)
	if err != nil {
		return nil, fmt.Errorf("init pipeline: %w", err)
	}

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init chunk queue: %w", err)
	}

	return &App{
		Config: cfg,
		Logger: logger,

		Embedder:  embedder,
		Parser:    parser,
		Queue:     queue,
		Extractor: extractor,
		Pipeline:  pipeline,

		closeFn: func() {
			queue.Close()
		},
	}, nil
}

func extractOptions(cfg config.Config) extract.Options {
	opts := extract.DefaultOptions()
	opts.MinSegmentLength = cfg.MinSegmentLength
	opts.MMRLambda = cfg.MMRLambda
	opts.ExtractionRatio = cfg.ExtractionRatio
	opts.MinSegments = cfg.MinSegments
	opts.MaxSegments = cfg.MaxSegments
	opts.MaxSegmentsToEmbed = cfg.MaxSegmentsToEmbed
	opts.HierarchicalThreshold = cfg.HierarchicalThreshold
	opts.HierarchicalBatchSize = cfg.HierarchicalBatchSize
	opts.Pipeline.GlobalEmbedBudget = cfg.StreamEmbedBudget
	opts.Pipeline.ChunkCap = cfg.StreamChunkCap
	opts.Pipeline.DrainWait = time.Duration(cfg.StreamDrainWaitSeconds) * time.Second
	return opts
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
