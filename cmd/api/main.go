// Package main implements the minesafe API server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/WessleyAI/minesafe/engine/events"
	"github.com/WessleyAI/minesafe/engine/graph"
	"github.com/WessleyAI/minesafe/engine/index"
	"github.com/WessleyAI/minesafe/engine/kbstore"
	"github.com/WessleyAI/minesafe/engine/rag"
	"github.com/WessleyAI/minesafe/engine/semantic"
	"github.com/WessleyAI/minesafe/pkg/config"
	"github.com/WessleyAI/minesafe/pkg/gemini"
	"github.com/WessleyAI/minesafe/pkg/metrics"
	"github.com/WessleyAI/minesafe/pkg/mid"
	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

const maxBodyBytes = 1 << 20

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load(os.Getenv("MINESAFE_CONFIG"))
	if err != nil {
		logger.Error("load config", "err", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := metrics.New()
	am := metrics.NewAnalysis(reg)

	// --- Knowledge bases ---
	var store kbstore.Store
	if cfg.Postgres.DSN != "" {
		db := kbstore.Open(cfg.Postgres.DSN, cfg.Postgres.Debug)
		defer db.Close()
		pg := kbstore.NewPGStore(db)
		if err := pg.Init(ctx, kbstore.Defaults()); err != nil {
			return fmt.Errorf("postgres init: %w", err)
		}
		store = pg
	} else {
		logger.Info("no DATABASE_URL, serving built-in knowledge bases")
		store = kbstore.NewStaticStore(kbstore.Defaults())
	}
	kbs := kbstore.NewCache(store, cfg.Cache.PromptTTL)

	// --- Model clients and retrieval ---
	embedder, generator := gemini.FromConfig(cfg.Gemini, logger)
	indexes := index.NewRegistry(embedder, index.Options{Workers: cfg.RAG.EmbedWorkers, Logger: logger, Metrics: am})

	var retriever rag.Retriever = indexes
	if cfg.Qdrant.Addr != "" {
		vs, err := semantic.New(cfg.Qdrant.Addr, cfg.Qdrant.Collection)
		if err != nil {
			logger.Warn("qdrant unavailable, using in-memory retrieval", "err", err)
		} else {
			defer vs.Close()
			retriever = semantic.NewRetriever(vs, embedder, indexes, logger)
		}
	}

	svc := rag.New(generator, rag.Options{TopK: cfg.RAG.TopK, Metrics: am}, logger)
	batch := rag.NewBatch(generator, rag.BatchOptions{ItemTimeout: cfg.RAG.BatchItemTimeout, Metrics: am}, logger)

	// --- Optional history (Neo4j) and events (NATS) ---
	var hist history
	if cfg.Neo4j.URL != "" {
		driver, err := neo4j.NewDriverWithContext(cfg.Neo4j.URL, neo4j.BasicAuth(cfg.Neo4j.User, cfg.Neo4j.Pass, ""))
		if err != nil {
			return fmt.Errorf("neo4j driver: %w", err)
		}
		defer driver.Close(context.Background())
		if err := driver.VerifyConnectivity(ctx); err != nil {
			logger.Warn("neo4j unreachable, history disabled", "err", err)
		} else {
			gs := graph.New(driver, graph.WithLogger(logger))
			if err := gs.EnsureSchema(ctx); err != nil {
				logger.Warn("neo4j schema", "err", err)
			}
			batch = batch.WithRecorders(gs)
			hist = gs
		}
	}
	if cfg.NATS.URL != "" {
		nc, err := nats.Connect(cfg.NATS.URL, nats.Name("minesafe-api"))
		if err != nil {
			logger.Warn("nats unavailable, completion events disabled", "err", err)
		} else {
			defer nc.Drain()
			batch = batch.WithRecorders(events.NewPublisher(nc, cfg.NATS.CompletedSubject))
		}
	}

	s := &server{
		kbs:       kbs,
		indexes:   indexes,
		svc:       svc,
		batch:     batch,
		retriever: retriever,
		history:   hist,
		metrics:   am,
		topK:      cfg.RAG.TopK,
		logger:    logger,
	}

	handler := withMiddleware(s.routes(reg), logger, cfg.Server.CORSOrigin, maxBodyBytes)

	// Batches run every item for up to BatchItemTimeout.
	writeTimeout := cfg.RAG.BatchItemTimeout + 30*time.Second

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// --- Graceful shutdown ---
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Server.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

// withMiddleware wraps h in the server's middleware stack. RequestID is
// outermost so panic and access logs carry the request ID.
func withMiddleware(h http.Handler, logger *slog.Logger, corsOrigin string, maxBody int64) http.Handler {
	return mid.Chain(h,
		mid.RequestID(),
		mid.Recover(logger),
		mid.Logger(logger),
		mid.CORS(corsOrigin),
		mid.OTel("minesafe-api"),
		mid.MaxBody(maxBody),
	)
}
