// Package app wires the purchasing assistant from configuration. The API
// server and the operator CLI share it.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/aggregate"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/assistant"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/cache/redis"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/catalog"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/executor"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/indexer"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/llm"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/metrics"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/query"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/recovery"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/search/semantic"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/search/textual"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/sqlgen"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/storage/postgres"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/storage/sqlite"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/synthesis"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/vector/milvus"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/pkg/config"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/pkg/logger"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/pkg/retry"
)

type App struct {
	Postgres  *postgres.Client
	SQLite    *sqlite.Client
	Cache     *redis.Client
	Milvus    *milvus.Client
	LLM       *llm.Client
	Engine    *query.Engine
	Recorder  *metrics.Recorder
	Assistant *assistant.Service
	Indexer   *indexer.Indexer

	closers []func() error
}

// Build connects every configured dependency. Redis and Milvus are optional:
// Redis failures degrade to no cache, Milvus failures abort only when Milvus
// is the configured candidate store.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{}

	db, err := postgres.Open(ctx, postgres.DBConfig{
		DSN:             cfg.Postgres.DSN,
		MaxOpenConns:    cfg.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Postgres.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Postgres.ConnMaxLifetime) * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	a.Postgres = postgres.NewClient(db, time.Duration(cfg.Postgres.QueryTimeoutSec)*time.Second)
	a.closers = append(a.closers, a.Postgres.Close)

	a.SQLite, err = sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	a.closers = append(a.closers, a.SQLite.Close)

	if err := a.SQLite.InitSchema(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize sqlite schema: %w", err)
	}

	if cfg.Redis.Enabled {
		cache, err := redis.NewClient(ctx, cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB,
			time.Duration(cfg.Redis.TTLHours)*time.Hour)
		if err != nil {
			logger.Warn("Embedding cache unavailable, continuing without it", zap.Error(err))
		} else {
			a.Cache = cache
			a.closers = append(a.closers, cache.Close)
		}
	}

	if cfg.Milvus.Enabled {
		mc, err := milvus.NewClient(ctx, milvus.Config{
			Endpoint:           cfg.Milvus.Endpoint,
			APIKey:             cfg.Milvus.APIKey,
			ProductCollection:  cfg.Milvus.ProductCollection,
			SupplierCollection: cfg.Milvus.SupplierCollection,
			VectorDim:          cfg.Milvus.VectorDim,
		})
		if err == nil {
			a.closers = append(a.closers, mc.Close)
			err = mc.EnsureCollections(ctx)
		}
		switch {
		case err == nil:
			a.Milvus = mc
		case cfg.Semantic.CandidateStore == "milvus":
			a.Close()
			return nil, fmt.Errorf("failed to connect milvus: %w", err)
		default:
			logger.Warn("Milvus mirror unavailable, continuing without it", zap.Error(err))
		}
	}

	a.LLM = llm.NewClient(llm.Config{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		EmbeddingModel: cfg.LLM.EmbeddingModel,
		EmbeddingDim:   cfg.LLM.EmbeddingDim,
		Temperature:    cfg.LLM.Temperature,
		MaxTokens:      cfg.LLM.MaxTokens,
		Timeout:        time.Duration(cfg.LLM.TimeoutSec) * time.Second,
	})

	var candidates semantic.CandidateStore = a.Postgres
	if cfg.Semantic.CandidateStore == "milvus" {
		candidates = a.Milvus
	}
	var semOpts []semantic.Option
	if a.Cache != nil {
		semOpts = append(semOpts, semantic.WithCache(a.Cache))
	}

	a.Engine = query.NewEngine(
		sqlgen.NewGenerator(a.LLM, catalog.NewResolver(catalog.Default()...)),
		executor.NewExecutor(a.Postgres),
		semantic.NewEngine(a.LLM, candidates, semOpts...),
		textual.NewEngine(a.Postgres),
		aggregate.NewProvider(a.Postgres),
	)

	var sinks []metrics.Sink
	if cfg.Metrics.Enabled {
		sinks = append(sinks, metrics.PrometheusSink{})
	}
	if cfg.Metrics.DurableLog {
		sinks = append(sinks, metrics.NewDurableSink(a.SQLite, retry.DefaultConfig()))
	}
	a.Recorder = metrics.NewRecorder(time.Duration(cfg.Metrics.WriteTimeoutMs)*time.Millisecond, sinks...)

	a.Assistant = assistant.NewService(
		a.Engine,
		synthesis.NewSynthesizer(a.LLM),
		recovery.NewRouter(a.Engine),
		a.Recorder,
		a.SQLite,
	)

	var mirror indexer.VectorSink
	if a.Milvus != nil {
		mirror = a.Milvus
	}
	a.Indexer = indexer.NewIndexer(a.Postgres, a.LLM, mirror)

	logger.Info("Purchasing assistant wired",
		zap.String("candidate_store", cfg.Semantic.CandidateStore),
		zap.Bool("embedding_cache", a.Cache != nil),
		zap.Bool("milvus", a.Milvus != nil),
		zap.Int("metric_sinks", len(sinks)),
	)

	return a, nil
}

// Close drains the recorder, then closes connections in reverse open order.
func (a *App) Close() {
	a.Recorder.Close()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.Warn("Failed to close dependency", zap.Error(err))
		}
	}
	a.closers = nil
}
