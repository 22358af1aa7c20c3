// Command ingest embeds every knowledge base's chunks into Qdrant. With
// -interval it keeps running and re-syncs knowledge bases whose content changed.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/WessleyAI/minesafe/engine/domain"
	"github.com/WessleyAI/minesafe/engine/index"
	"github.com/WessleyAI/minesafe/engine/kbstore"
	"github.com/WessleyAI/minesafe/engine/semantic"
	"github.com/WessleyAI/minesafe/pkg/config"
	"github.com/WessleyAI/minesafe/pkg/gemini"
	"github.com/WessleyAI/minesafe/pkg/metrics"
)

var met = metrics.New()

var (
	mKBsSynced  = met.Counter("minesafe_ingest_kbs_synced_total", "Knowledge bases written to the vector store")
	mKBsSkipped = met.Counter("minesafe_ingest_kbs_skipped_total", "Knowledge bases unchanged since the last sync")
	mChunks     = met.Counter("minesafe_ingest_chunks_total", "Chunks upserted")
	mFailed     = met.Counter("minesafe_ingest_chunk_failures_total", "Chunks skipped after an embedding failure")
	mErrors     = met.CounterVec("minesafe_ingest_errors_total", "Ingestion errors by stage", "stage")
	mSyncDur    = met.Histogram("minesafe_ingest_sync_duration_seconds", "Per knowledge base sync time", nil)
)

func main() {
	var (
		configPath = flag.String("config", os.Getenv("MINESAFE_CONFIG"), "YAML config file")
		only       = flag.String("kb", "", "comma-separated knowledge base IDs (default all)")
		recreate   = flag.Bool("recreate", false, "drop and recreate the collection first")
		interval   = flag.Duration("interval", 0, "re-sync interval; zero runs once")
	)
	flag.Parse()

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(log)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("load config", "err", err)
		os.Exit(1)
	}
	if err := run(cfg, splitIDs(*only), *recreate, *interval, log); err != nil {
		log.Error("ingest failed", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, ids []string, recreate bool, interval time.Duration, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store kbstore.Store
	if cfg.Postgres.DSN != "" {
		db := kbstore.Open(cfg.Postgres.DSN, cfg.Postgres.Debug)
		defer db.Close()
		store = kbstore.NewPGStore(db)
	} else {
		store = kbstore.NewStaticStore(kbstore.Defaults())
	}

	embedder, _ := gemini.FromConfig(cfg.Gemini, log)

	vs, err := semantic.New(cfg.Qdrant.Addr, cfg.Qdrant.Collection)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer vs.Close()

	// The probe fixes the collection's vector size to whatever the model returns.
	probe, err := embedder.Embed(ctx, "dimension probe")
	if err != nil {
		return fmt.Errorf("embedding probe: %w", err)
	}
	if recreate {
		if err := vs.DeleteCollection(ctx); err != nil {
			log.Warn("delete collection", "err", err)
		}
	}
	if err := vs.EnsureCollection(ctx, len(probe)); err != nil {
		return fmt.Errorf("qdrant ensure collection: %w", err)
	}
	log.Info("connected to Qdrant", "collection", cfg.Qdrant.Collection, "dims", len(probe))

	s := &syncer{
		store:   store,
		writer:  vs,
		embed:   embedder,
		workers: cfg.RAG.EmbedWorkers,
		hashes:  make(map[string]string),
		log:     log,
	}

	if err := s.syncAll(ctx, ids); err != nil && interval <= 0 {
		return err
	}
	if interval <= 0 {
		log.Info("ingest done", "metrics", strings.TrimSpace(met.Render()))
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("shutting down")
			return nil
		case <-ticker.C:
			if err := s.syncAll(ctx, ids); err != nil {
				log.Error("sync failed", "err", err)
			}
		}
	}
}

// syncer remembers the content hash written for each knowledge base so
// unchanged ones are skipped on later passes.
type syncer struct {
	store   kbstore.Store
	writer  semantic.Writer
	embed   semantic.Embedder
	workers int
	hashes  map[string]string
	log     *slog.Logger
}

func (s *syncer) syncAll(ctx context.Context, ids []string) error {
	kbs, err := kbstore.GetMany(ctx, s.store, ids)
	if err != nil {
		mErrors.With("load").Inc()
		return fmt.Errorf("load knowledge bases: %w", err)
	}
	var failed int
	for _, kb := range kbs {
		if err := s.syncOne(ctx, kb); err != nil {
			failed++
			s.log.Error("sync knowledge base", "kb", kb.ID, "err", err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d knowledge bases failed", failed, len(kbs))
	}
	return nil
}

func (s *syncer) syncOne(ctx context.Context, kb domain.KnowledgeBase) error {
	hash := index.ContentHash(kb.Content)
	if s.hashes[kb.ID] == hash {
		mKBsSkipped.Inc()
		return nil
	}
	start := time.Now()
	stats, err := semantic.Sync(ctx, s.writer, s.embed, kb, s.workers, s.log)
	mSyncDur.Since(start)
	if err != nil {
		mErrors.With("sync").Inc()
		return err
	}
	mKBsSynced.Inc()
	mChunks.Add(int64(stats.Upserted))
	mFailed.Add(int64(stats.Failed))
	s.log.Info("knowledge base synced", "kb", kb.ID, "chunks", stats.Chunks, "upserted", stats.Upserted, "failed", stats.Failed)
	// A partial sync is retried on the next pass.
	if stats.Failed == 0 {
		s.hashes[kb.ID] = hash
	}
	return nil
}

func splitIDs(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
