// Package textual is the keyword fallback used when neither SQL nor semantic
// search produced anything.
package textual

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/pkg/logger"
)

const (
	MaxProductMatches  = 15
	MaxSupplierMatches = 10
)

const (
	EntityProduct  = "product"
	EntitySupplier = "supplier"
)

type Match struct {
	EntityType string    `json:"entity_type"`
	ID         string    `json:"id"`
	Label      string    `json:"label"`
	Detail     string    `json:"detail,omitempty"`
	LastSeen   time.Time `json:"last_seen"`
}

// Store runs tenant-scoped fuzzy-contains lookups. Keywords are OR-combined
// and passed as bind parameters, newest rows first.
type Store interface {
	SearchProducts(ctx context.Context, tenantID string, keywords []string, limit int) ([]Match, error)
	SearchSuppliers(ctx context.Context, tenantID string, keywords []string, limit int) ([]Match, error)
}

type Result struct {
	Keywords []string
	Matches  []Match
}

type Engine struct {
	store Store
}

func NewEngine(store Store) *Engine {
	return &Engine{store: store}
}

// Search issues no query when the question has no usable keywords.
func (e *Engine) Search(ctx context.Context, question, tenantID string) (*Result, error) {
	keywords := ExtractKeywords(question)
	if len(keywords) == 0 {
		logger.Debug("No keywords extracted, skipping textual search", zap.String("tenant_id", tenantID))
		return &Result{}, nil
	}

	var products, suppliers []Match
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		products, err = e.store.SearchProducts(gctx, tenantID, keywords, MaxProductMatches)
		if err != nil {
			return fmt.Errorf("failed to search products: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		suppliers, err = e.store.SearchSuppliers(gctx, tenantID, keywords, MaxSupplierMatches)
		if err != nil {
			return fmt.Errorf("failed to search suppliers: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	matches := make([]Match, 0, len(products)+len(suppliers))
	for _, m := range capMatches(products, MaxProductMatches) {
		m.EntityType = EntityProduct
		matches = append(matches, m)
	}
	for _, m := range capMatches(suppliers, MaxSupplierMatches) {
		m.EntityType = EntitySupplier
		matches = append(matches, m)
	}

	logger.Debug("Textual search completed",
		zap.String("tenant_id", tenantID),
		zap.Strings("keywords", keywords),
		zap.Int("matches", len(matches)),
	)

	return &Result{Keywords: keywords, Matches: matches}, nil
}

func capMatches(ms []Match, n int) []Match {
	if len(ms) > n {
		return ms[:n]
	}
	return ms
}
