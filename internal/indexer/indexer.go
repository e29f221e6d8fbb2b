// Package indexer computes the product and supplier embeddings that semantic
// search reads.
package indexer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/search/semantic"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/storage/postgres"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/pkg/logger"
)

const DefaultBatchSize = 100

type Source interface {
	MissingEmbeddings(ctx context.Context, tenantID, entityType string, limit int) ([]postgres.Pending, error)
	UpdateEmbedding(ctx context.Context, tenantID, entityType, id string, vector []float32) error
}

type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorSink mirrors embeddings into an external vector store.
type VectorSink interface {
	Upsert(ctx context.Context, tenantID, entityType string, items []semantic.Embedded) error
}

type Report struct {
	TenantID  string `json:"tenant_id"`
	Products  int    `json:"products"`
	Suppliers int    `json:"suppliers"`
	Mirrored  int    `json:"mirrored"`
}

type Indexer struct {
	source   Source
	embedder BatchEmbedder
	mirror   VectorSink
}

// NewIndexer accepts a nil mirror when no vector store is configured.
func NewIndexer(source Source, embedder BatchEmbedder, mirror VectorSink) *Indexer {
	return &Indexer{source: source, embedder: embedder, mirror: mirror}
}

// Backfill embeds up to batch products and batch suppliers that still lack
// an embedding.
func (i *Indexer) Backfill(ctx context.Context, tenantID string, batch int) (*Report, error) {
	if batch <= 0 {
		batch = DefaultBatchSize
	}

	report := &Report{TenantID: tenantID}
	for _, entityType := range []string{semantic.EntityProduct, semantic.EntitySupplier} {
		written, mirrored, err := i.backfillEntity(ctx, tenantID, entityType, batch)
		if err != nil {
			return report, err
		}
		if entityType == semantic.EntityProduct {
			report.Products = written
		} else {
			report.Suppliers = written
		}
		report.Mirrored += mirrored
	}

	logger.Info("Embedding backfill completed",
		zap.String("tenant_id", tenantID),
		zap.Int("products", report.Products),
		zap.Int("suppliers", report.Suppliers),
		zap.Int("mirrored", report.Mirrored),
	)
	return report, nil
}

func (i *Indexer) backfillEntity(ctx context.Context, tenantID, entityType string, batch int) (int, int, error) {
	pending, err := i.source.MissingEmbeddings(ctx, tenantID, entityType, batch)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to list pending %s: %w", entityType, err)
	}
	if len(pending) == 0 {
		return 0, 0, nil
	}

	labels := make([]string, len(pending))
	for n, p := range pending {
		labels[n] = p.Label
	}

	vectors, err := i.embedder.EmbedBatch(ctx, labels)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to embed %s labels: %w", entityType, err)
	}
	if len(vectors) != len(pending) {
		return 0, 0, fmt.Errorf("embedding count mismatch: got %d, expected %d", len(vectors), len(pending))
	}

	items := make([]semantic.Embedded, 0, len(pending))
	for n, p := range pending {
		if err := i.source.UpdateEmbedding(ctx, tenantID, entityType, p.ID, vectors[n]); err != nil {
			return len(items), 0, fmt.Errorf("failed to store embedding: %w", err)
		}
		items = append(items, semantic.Embedded{ID: p.ID, Label: p.Label, Vector: vectors[n], Usage: p.Usage})
	}

	if i.mirror == nil {
		return len(items), 0, nil
	}
	if err := i.mirror.Upsert(ctx, tenantID, entityType, items); err != nil {
		return len(items), 0, fmt.Errorf("failed to mirror embeddings: %w", err)
	}
	return len(items), len(items), nil
}
