package postgres

import (
	"context"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/search/semantic"
)

// Pending is an entity whose embedding has not been computed yet.
type Pending struct {
	EntityType string
	ID         string
	Label      string
	Usage      int
}

type entityTable struct {
	table string
	label string
}

var entityTables = map[string]entityTable{
	semantic.EntityProduct:  {table: "products", label: "description"},
	semantic.EntitySupplier: {table: "suppliers", label: "name"},
}

func lookupEntity(entityType string) (entityTable, error) {
	t, ok := entityTables[entityType]
	if !ok {
		return entityTable{}, fmt.Errorf("unknown entity type %q", entityType)
	}
	return t, nil
}

// MissingEmbeddings lists the most used entities that still lack an embedding.
func (c *Client) MissingEmbeddings(ctx context.Context, tenantID, entityType string, limit int) ([]Pending, error) {
	t, err := lookupEntity(entityType)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	query := fmt.Sprintf(`SELECT id, %s, usage_count
FROM %s
WHERE tenant_id = $1 AND embedding IS NULL
ORDER BY usage_count DESC
LIMIT $2`, t.label, t.table)

	rows, err := c.db.QueryContext(ctx, query, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s without embedding: %w", t.table, err)
	}
	defer rows.Close()

	var out []Pending
	for rows.Next() {
		p := Pending{EntityType: entityType}
		if err := rows.Scan(&p.ID, &p.Label, &p.Usage); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", t.table, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (c *Client) UpdateEmbedding(ctx context.Context, tenantID, entityType, id string, vector []float32) error {
	t, err := lookupEntity(entityType)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	query := fmt.Sprintf(`UPDATE %s SET embedding = $1 WHERE tenant_id = $2 AND id = $3`, t.table)
	res, err := c.db.ExecContext(ctx, query, pgvector.NewVector(vector), tenantID, id)
	if err != nil {
		return fmt.Errorf("failed to update %s embedding: %w", t.table, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s %s not found for tenant %s", entityType, id, tenantID)
	}
	return nil
}
