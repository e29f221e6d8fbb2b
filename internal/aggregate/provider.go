// Package aggregate builds the question-independent tenant snapshot returned
// when every question-specific strategy came back empty.
package aggregate

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/pkg/logger"
)

const (
	RecentInvoiceCount = 5
	TopProductCount    = 5
	TopSupplierCount   = 5
)

type InvoiceHeader struct {
	ID            string    `json:"id"`
	InvoiceNumber string    `json:"invoice_number"`
	SupplierName  string    `json:"supplier_name"`
	InvoiceDate   time.Time `json:"invoice_date"`
	TotalAmount   float64   `json:"total_amount"`
}

type ProductTotal struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	TotalAmount float64 `json:"total_amount"`
}

type SupplierTotal struct {
	Name         string  `json:"name"`
	InvoiceCount int     `json:"invoice_count"`
	TotalAmount  float64 `json:"total_amount"`
}

type Snapshot struct {
	RecentInvoices []InvoiceHeader `json:"recent_invoices"`
	TopProducts    []ProductTotal  `json:"top_products"`
	TopSuppliers   []SupplierTotal `json:"top_suppliers"`
	GeneratedAt    time.Time       `json:"generated_at"`
}

// Empty reports whether the tenant has no purchasing data at all.
func (s *Snapshot) Empty() bool {
	return s == nil || len(s.RecentInvoices) == 0 && len(s.TopProducts) == 0 && len(s.TopSuppliers) == 0
}

type Store interface {
	RecentInvoices(ctx context.Context, tenantID string, limit int) ([]InvoiceHeader, error)
	TopProductLines(ctx context.Context, tenantID string, limit int) ([]ProductTotal, error)
	TopSupplierTotals(ctx context.Context, tenantID string, limit int) ([]SupplierTotal, error)
}

type Provider struct {
	store Store
	now   func() time.Time
}

func NewProvider(store Store) *Provider {
	return &Provider{store: store, now: time.Now}
}

// Snapshot fails only when the datastore does.
func (p *Provider) Snapshot(ctx context.Context, tenantID string) (*Snapshot, error) {
	snap := &Snapshot{}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := p.store.RecentInvoices(gctx, tenantID, RecentInvoiceCount)
		if err != nil {
			return fmt.Errorf("failed to load recent invoices: %w", err)
		}
		snap.RecentInvoices = rows
		return nil
	})
	g.Go(func() error {
		rows, err := p.store.TopProductLines(gctx, tenantID, TopProductCount)
		if err != nil {
			return fmt.Errorf("failed to load top products: %w", err)
		}
		snap.TopProducts = rows
		return nil
	})
	g.Go(func() error {
		rows, err := p.store.TopSupplierTotals(gctx, tenantID, TopSupplierCount)
		if err != nil {
			return fmt.Errorf("failed to load top suppliers: %w", err)
		}
		snap.TopSuppliers = rows
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Aggregate snapshot failed", zap.String("tenant_id", tenantID), zap.Error(err))
		return nil, fmt.Errorf("datastore unavailable: %w", err)
	}

	snap.GeneratedAt = p.now()
	return snap, nil
}
