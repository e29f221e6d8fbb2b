// Package semantic ranks a tenant's products and suppliers by embedding
// similarity to the question.
package semantic

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/pkg/logger"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/pkg/utils"
)

const (
	SimilarityThreshold   = 0.70
	MaxProductCandidates  = 20
	MaxSupplierCandidates = 10
)

const (
	EntityProduct  = "product"
	EntitySupplier = "supplier"
)

type Candidate struct {
	EntityType string  `json:"entity_type"`
	ID         string  `json:"id"`
	Label      string  `json:"label"`
	Similarity float64 `json:"similarity"`
	Source     string  `json:"source"`
}

// Embedded is a stored entity together with its pre-computed embedding.
type Embedded struct {
	ID     string
	Label  string
	Vector []float32
	Usage  int
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// CandidateStore returns tenant entities with non-null embeddings, most used
// first, at most limit rows.
type CandidateStore interface {
	Name() string
	ProductEmbeddings(ctx context.Context, tenantID string, limit int) ([]Embedded, error)
	SupplierEmbeddings(ctx context.Context, tenantID string, limit int) ([]Embedded, error)
}

// EmbeddingCache stores question embeddings by key. A miss returns (nil, nil).
type EmbeddingCache interface {
	GetEmbedding(ctx context.Context, key string) ([]float32, error)
	SetEmbedding(ctx context.Context, key string, vector []float32) error
}

// Outcome separates "the embedding provider was unavailable" from "nothing
// was similar enough".
type Outcome struct {
	Candidates  []Candidate
	Unavailable bool
	// Err is the provider or store failure behind Unavailable or a partial load.
	Err error
}

func (o Outcome) Empty() bool {
	return len(o.Candidates) == 0
}

type Engine struct {
	embedder Embedder
	store    CandidateStore
	cache    EmbeddingCache
}

type Option func(*Engine)

func WithCache(cache EmbeddingCache) Option {
	return func(e *Engine) { e.cache = cache }
}

func NewEngine(embedder Embedder, store CandidateStore, opts ...Option) *Engine {
	e := &Engine{embedder: embedder, store: store}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Search never returns an error; failures are reported on the Outcome.
func (e *Engine) Search(ctx context.Context, question, tenantID string) Outcome {
	vector, err := e.embed(ctx, question)
	if err != nil || len(vector) == 0 {
		if err == nil {
			err = errors.New("embedding service returned an empty vector")
		}
		logger.Warn("Semantic search unavailable",
			zap.String("tenant_id", tenantID),
			zap.Error(err),
		)
		return Outcome{Unavailable: true, Err: fmt.Errorf("semantic unavailable: %w", err)}
	}

	var (
		wg                  sync.WaitGroup
		products, suppliers []Embedded
		productErr, suppErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		products, productErr = e.store.ProductEmbeddings(ctx, tenantID, MaxProductCandidates)
	}()
	go func() {
		defer wg.Done()
		suppliers, suppErr = e.store.SupplierEmbeddings(ctx, tenantID, MaxSupplierCandidates)
	}()
	wg.Wait()

	loadErr := errors.Join(productErr, suppErr)
	if loadErr != nil {
		logger.Warn("Failed to load candidate embeddings",
			zap.String("tenant_id", tenantID),
			zap.String("store", e.store.Name()),
			zap.Error(loadErr),
		)
		loadErr = fmt.Errorf("failed to load candidate embeddings: %w", loadErr)
	}

	candidates := e.score(vector, EntityProduct, capEmbedded(products, MaxProductCandidates))
	candidates = append(candidates, e.score(vector, EntitySupplier, capEmbedded(suppliers, MaxSupplierCandidates))...)

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Similarity > candidates[j].Similarity
	})

	logger.Debug("Semantic search completed",
		zap.String("tenant_id", tenantID),
		zap.Int("products", len(products)),
		zap.Int("suppliers", len(suppliers)),
		zap.Int("candidates", len(candidates)),
	)

	return Outcome{Candidates: candidates, Err: loadErr}
}

func (e *Engine) score(query []float32, entityType string, items []Embedded) []Candidate {
	var out []Candidate
	for _, item := range items {
		sim := CosineSimilarity(query, item.Vector)
		if sim <= SimilarityThreshold {
			continue
		}
		out = append(out, Candidate{
			EntityType: entityType,
			ID:         item.ID,
			Label:      item.Label,
			Similarity: sim,
			Source:     e.store.Name(),
		})
	}
	return out
}

func (e *Engine) embed(ctx context.Context, question string) ([]float32, error) {
	if e.cache == nil {
		return e.embedder.Embed(ctx, question)
	}

	key := "embedding:" + utils.NormalizedHash(question)
	if cached, err := e.cache.GetEmbedding(ctx, key); err == nil && len(cached) > 0 {
		return cached, nil
	} else if err != nil {
		logger.Debug("Embedding cache read failed", zap.Error(err))
	}

	vector, err := e.embedder.Embed(ctx, question)
	if err != nil {
		return nil, err
	}
	if len(vector) > 0 {
		if err := e.cache.SetEmbedding(ctx, key, vector); err != nil {
			logger.Debug("Embedding cache write failed", zap.Error(err))
		}
	}
	return vector, nil
}

func capEmbedded(items []Embedded, n int) []Embedded {
	if len(items) > n {
		return items[:n]
	}
	return items
}
