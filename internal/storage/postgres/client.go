// Package postgres is the tenant purchasing datastore. Every statement it
// issues carries an explicit tenant_id filter.
package postgres

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/aggregate"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/executor"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/search/semantic"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/search/textual"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/pkg/logger"
)

const defaultQueryTimeout = 10 * time.Second

type Client struct {
	db      *sql.DB
	timeout time.Duration
}

func NewClient(db *sql.DB, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultQueryTimeout
	}
	return &Client{db: db, timeout: timeout}
}

// Name identifies this store as a source of semantic candidates.
func (c *Client) Name() string {
	return "postgres"
}

func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.db.PingContext(ctx)
}

func (c *Client) Close() error {
	return c.db.Close()
}

// ExecuteReadOnly runs a validated statement through the read-only procedure.
// The procedure returns one jsonb document per result row.
func (c *Client) ExecuteReadOnly(ctx context.Context, query, tenantID string) ([]executor.Row, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	rows, err := c.db.QueryContext(ctx, `SELECT row_data FROM execute_readonly_sql($1, $2)`, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("execute_readonly_sql failed: %w", err)
	}
	defer rows.Close()

	var out []executor.Row
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan result row: %w", err)
		}

		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		row := executor.Row{}
		if err := dec.Decode(&row); err != nil {
			return nil, fmt.Errorf("failed to decode result row: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("execute_readonly_sql failed: %w", err)
	}

	logger.Debug("Read-only statement executed",
		zap.String("tenant_id", tenantID),
		zap.Int("rows", len(out)),
	)
	return out, nil
}

func (c *Client) ProductEmbeddings(ctx context.Context, tenantID string, limit int) ([]semantic.Embedded, error) {
	return c.embeddings(ctx, `SELECT id, description, embedding, usage_count
FROM products
WHERE tenant_id = $1 AND embedding IS NOT NULL
ORDER BY usage_count DESC
LIMIT $2`, tenantID, limit)
}

func (c *Client) SupplierEmbeddings(ctx context.Context, tenantID string, limit int) ([]semantic.Embedded, error) {
	return c.embeddings(ctx, `SELECT id, name, embedding, usage_count
FROM suppliers
WHERE tenant_id = $1 AND embedding IS NOT NULL
ORDER BY usage_count DESC
LIMIT $2`, tenantID, limit)
}

func (c *Client) embeddings(ctx context.Context, query, tenantID string, limit int) ([]semantic.Embedded, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	rows, err := c.db.QueryContext(ctx, query, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load embeddings: %w", err)
	}
	defer rows.Close()

	var out []semantic.Embedded
	for rows.Next() {
		var (
			e   semantic.Embedded
			vec pgvector.Vector
		)
		if err := rows.Scan(&e.ID, &e.Label, &vec, &e.Usage); err != nil {
			return nil, fmt.Errorf("failed to scan embedding: %w", err)
		}
		e.Vector = vec.Slice()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to load embeddings: %w", err)
	}
	return out, nil
}

func (c *Client) SearchProducts(ctx context.Context, tenantID string, keywords []string, limit int) ([]textual.Match, error) {
	return c.search(ctx, `SELECT id, description, COALESCE(category, ''), created_at
FROM products
WHERE tenant_id = $1 AND (%s)
ORDER BY created_at DESC
LIMIT %d`, "description", tenantID, keywords, limit)
}

func (c *Client) SearchSuppliers(ctx context.Context, tenantID string, keywords []string, limit int) ([]textual.Match, error) {
	return c.search(ctx, `SELECT id, name, COALESCE(tax_id, ''), created_at
FROM suppliers
WHERE tenant_id = $1 AND (%s)
ORDER BY created_at DESC
LIMIT %d`, "name", tenantID, keywords, limit)
}

// search fills the template with one ILIKE per keyword. Keywords are bound,
// only the column name and limit are formatted in.
func (c *Client) search(ctx context.Context, tmpl, column, tenantID string, keywords []string, limit int) ([]textual.Match, error) {
	if len(keywords) == 0 {
		return nil, nil
	}

	clauses := make([]string, 0, len(keywords))
	args := make([]any, 0, len(keywords)+1)
	args = append(args, tenantID)
	for i, kw := range keywords {
		clauses = append(clauses, fmt.Sprintf("%s ILIKE $%d", column, i+2))
		args = append(args, "%"+kw+"%")
	}
	query := fmt.Sprintf(tmpl, strings.Join(clauses, " OR "), limit)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search %s: %w", column, err)
	}
	defer rows.Close()

	var out []textual.Match
	for rows.Next() {
		var m textual.Match
		if err := rows.Scan(&m.ID, &m.Label, &m.Detail, &m.LastSeen); err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to search %s: %w", column, err)
	}
	return out, nil
}

func (c *Client) RecentInvoices(ctx context.Context, tenantID string, limit int) ([]aggregate.InvoiceHeader, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	rows, err := c.db.QueryContext(ctx, `SELECT id, COALESCE(invoice_number, ''), COALESCE(supplier_name, ''), invoice_date, COALESCE(total_amount, 0)
FROM invoices
WHERE tenant_id = $1
ORDER BY invoice_date DESC, created_at DESC
LIMIT $2`, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoices: %w", err)
	}
	defer rows.Close()

	var out []aggregate.InvoiceHeader
	for rows.Next() {
		var h aggregate.InvoiceHeader
		if err := rows.Scan(&h.ID, &h.InvoiceNumber, &h.SupplierName, &h.InvoiceDate, &h.TotalAmount); err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (c *Client) TopProductLines(ctx context.Context, tenantID string, limit int) ([]aggregate.ProductTotal, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	rows, err := c.db.QueryContext(ctx, `SELECT description, COALESCE(SUM(quantity), 0), COALESCE(SUM(line_total), 0) AS total
FROM invoice_lines
WHERE tenant_id = $1
GROUP BY description
ORDER BY total DESC
LIMIT $2`, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query product totals: %w", err)
	}
	defer rows.Close()

	var out []aggregate.ProductTotal
	for rows.Next() {
		var p aggregate.ProductTotal
		if err := rows.Scan(&p.Description, &p.Quantity, &p.TotalAmount); err != nil {
			return nil, fmt.Errorf("failed to scan product total: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (c *Client) TopSupplierTotals(ctx context.Context, tenantID string, limit int) ([]aggregate.SupplierTotal, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	rows, err := c.db.QueryContext(ctx, `SELECT supplier_name, COUNT(*), COALESCE(SUM(total_amount), 0) AS total
FROM invoices
WHERE tenant_id = $1 AND supplier_name IS NOT NULL
GROUP BY supplier_name
ORDER BY total DESC
LIMIT $2`, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query supplier totals: %w", err)
	}
	defer rows.Close()

	var out []aggregate.SupplierTotal
	for rows.Next() {
		var s aggregate.SupplierTotal
		if err := rows.Scan(&s.Name, &s.InvoiceCount, &s.TotalAmount); err != nil {
			return nil, fmt.Errorf("failed to scan supplier total: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
