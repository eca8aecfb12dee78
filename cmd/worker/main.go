package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/kirillkom/doc-salience/internal/bootstrap"
	"github.com/kirillkom/doc-salience/internal/config"
	"github.com/kirillkom/doc-salience/internal/core/domain"
	"github.com/kirillkom/doc-salience/internal/core/ports"
	"github.com/kirillkom/doc-salience/internal/observability/metrics"
)

// coordinator routes incoming chunks to per-document streaming sessions.
// NATS delivers chunks for one document in order on a single queue-group
// member, so a plain map behind a mutex is enough.
type coordinator struct {
	pipeline ports.StreamExtractor
	metrics  *metrics.WorkerMetrics
	budget   int
	logger   *slog.Logger

	mu       sync.Mutex
	sessions map[string]*openSession
}

type openSession struct {
	session ports.StreamSession
	started time.Time
}

func (c *coordinator) handle(ctx context.Context, chunk domain.Chunk) error {
	open, err := c.sessionFor(chunk)
	if err != nil {
		c.metrics.RecordChunk("worker", err)
		return err
	}

	err = open.session.Append(ctx, chunk)
	c.metrics.RecordChunk("worker", err)
	if err != nil {
		return err
	}
	if !chunk.Final {
		return nil
	}

	c.mu.Lock()
	delete(c.sessions, chunk.DocumentID)
	c.mu.Unlock()

	result, err := open.session.Finalize(ctx)
	elapsed := time.Since(open.started)
	segments, embedded := 0, 0
	if result != nil {
		segments, embedded = len(result.Segments), result.EmbeddedCount
	}
	c.metrics.RecordFinalize("worker", segments, embedded, c.budget, elapsed, err)
	if err != nil {
		return err
	}

	c.logger.Info("session_finalized",
		"document_id", chunk.DocumentID,
		"segments", segments,
		"embedded", embedded,
		"top_by_salience", len(result.TopBySalience),
		"elapsed_ms", float64(elapsed.Microseconds())/1000.0,
	)
	return nil
}

func (c *coordinator) sessionFor(chunk domain.Chunk) (*openSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if open, ok := c.sessions[chunk.DocumentID]; ok {
		return open, nil
	}
	session, err := c.pipeline.NewSession(chunk.DocumentID, chunk.ContentType, chunk.ExpectedChunks)
	if err != nil {
		return nil, err
	}
	open := &openSession{session: session, started: time.Now()}
	c.sessions[chunk.DocumentID] = open
	c.metrics.SessionOpened()
	return open, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, "worker")
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics("worker")
	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: workerMetrics.Handler(),
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.Logger.Error("worker metrics server error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	coord := &coordinator{
		pipeline: app.Pipeline,
		metrics:  workerMetrics,
		budget:   cfg.StreamEmbedBudget,
		logger:   app.Logger,
	}
	coord.sessions = make(map[string]*openSession)

	app.Logger.Info("worker subscribed", "subject", cfg.NATSSubject)
	if err := app.Queue.SubscribeChunks(ctx, coord.handle); err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}
}
