// Command worker serves batch hazard analyses over NATS request/reply and
// publishes a completion event for every batch.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/WessleyAI/minesafe/engine/domain"
	"github.com/WessleyAI/minesafe/engine/events"
	"github.com/WessleyAI/minesafe/engine/graph"
	"github.com/WessleyAI/minesafe/engine/rag"
	"github.com/WessleyAI/minesafe/pkg/config"
	"github.com/WessleyAI/minesafe/pkg/gemini"
	"github.com/WessleyAI/minesafe/pkg/metrics"
	"github.com/WessleyAI/minesafe/pkg/natsutil"
	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

func main() {
	var (
		configPath  = flag.String("config", os.Getenv("MINESAFE_CONFIG"), "YAML config file")
		metricsAddr = flag.String("metrics-addr", ":9091", "listen address for /metrics; empty disables it")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("load config", "err", err)
		os.Exit(1)
	}
	if err := run(cfg, *metricsAddr, logger); err != nil {
		logger.Error("worker exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, metricsAddr string, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := metrics.New()
	am := metrics.NewAnalysis(reg)

	nc, err := nats.Connect(cfg.NATS.URL, nats.Name("minesafe-worker"))
	if err != nil {
		return fmt.Errorf("nats connect: %w", err)
	}
	defer nc.Drain()

	_, generator := gemini.FromConfig(cfg.Gemini, logger)
	batch := rag.NewBatch(generator, rag.BatchOptions{ItemTimeout: cfg.RAG.BatchItemTimeout, Metrics: am}, logger).
		WithRecorders(events.NewPublisher(nc, cfg.NATS.CompletedSubject))

	if cfg.Neo4j.URL != "" {
		driver, err := neo4j.NewDriverWithContext(cfg.Neo4j.URL, neo4j.BasicAuth(cfg.Neo4j.User, cfg.Neo4j.Pass, ""))
		if err != nil {
			return fmt.Errorf("neo4j driver: %w", err)
		}
		defer driver.Close(context.Background())
		if err := driver.VerifyConnectivity(ctx); err != nil {
			logger.Warn("neo4j unreachable, history disabled", "err", err)
		} else {
			batch = batch.WithRecorders(graph.New(driver, graph.WithLogger(logger)))
		}
	}

	sub, err := serve(nc, cfg.NATS, batch, logger)
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()
	logger.Info("worker listening", "subject", cfg.NATS.BatchSubject, "queue", cfg.NATS.Queue, "workers", cfg.NATS.Workers)

	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", reg.Handler())
		srv := &http.Server{Addr: metricsAddr, Handler: mux, ReadTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server", "err", err)
			}
		}()
		defer srv.Close()
	}

	<-ctx.Done()
	logger.Info("shutdown signal received")
	return nil
}

type batchRunner interface {
	Run(ctx context.Context, req domain.BatchRequest) domain.BatchResponse
}

// serve answers BatchRequests on the configured subject.
func serve(nc *nats.Conn, cfg config.NATS, batch batchRunner, logger *slog.Logger) (*nats.Subscription, error) {
	sub, err := natsutil.Reply(nc, cfg.BatchSubject, cfg.Queue, cfg.Workers, func(ctx context.Context, req domain.BatchRequest) domain.BatchResponse {
		resp := batch.Run(ctx, req)
		logger.Info("batch served", "items", len(resp.Results), "succeeded", resp.Succeeded(), "ms", resp.TotalProcessingTime)
		return resp
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", cfg.BatchSubject, err)
	}
	return sub, nil
}
