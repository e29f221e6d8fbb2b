// Package milvus keeps product and supplier embeddings in Milvus/Zilliz
// collections and serves them as semantic candidates.
package milvus

import (
	"context"
	"fmt"
	"sort"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/search/semantic"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/pkg/logger"
)

const (
	fieldPK        = "pk"
	fieldTenant    = "tenant_id"
	fieldEntityID  = "entity_id"
	fieldLabel     = "label"
	fieldUsage     = "usage_count"
	fieldEmbedding = "embedding"
)

// Milvus caps offset+limit of a query at 16384. A query reads at most
// queryWindowFactor times the requested candidates before ranking.
const (
	maxQueryWindow    = 16384
	queryWindowFactor = 50
)

type Config struct {
	Endpoint           string
	APIKey             string
	ProductCollection  string
	SupplierCollection string
	VectorDim          int
}

type Client struct {
	client      client.Client
	collections map[string]string
	vectorDim   int
}

func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	c, err := client.NewClient(ctx, client.Config{
		Address: cfg.Endpoint,
		APIKey:  cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	logger.Info("Milvus client initialized",
		zap.String("endpoint", cfg.Endpoint),
		zap.String("product_collection", cfg.ProductCollection),
		zap.String("supplier_collection", cfg.SupplierCollection),
	)

	return NewClientWithMilvus(c, cfg), nil
}

func NewClientWithMilvus(c client.Client, cfg Config) *Client {
	return &Client{
		client: c,
		collections: map[string]string{
			semantic.EntityProduct:  cfg.ProductCollection,
			semantic.EntitySupplier: cfg.SupplierCollection,
		},
		vectorDim: cfg.VectorDim,
	}
}

func (m *Client) Close() error {
	return m.client.Close()
}

func (m *Client) Name() string {
	return "milvus"
}

// EnsureCollections creates and loads both collections when missing.
func (m *Client) EnsureCollections(ctx context.Context) error {
	for _, entityType := range []string{semantic.EntityProduct, semantic.EntitySupplier} {
		if err := m.ensureCollection(ctx, m.collections[entityType], entityType); err != nil {
			return err
		}
	}
	return nil
}

func (m *Client) ensureCollection(ctx context.Context, name, entityType string) error {
	has, err := m.client.HasCollection(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if has {
		logger.Debug("Collection already exists", zap.String("collection", name))
		return nil
	}

	schema := &entity.Schema{
		CollectionName: name,
		Description:    entityType + " embeddings per tenant",
		Fields: []*entity.Field{
			{
				Name:       fieldPK,
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{"max_length": "160"},
			},
			{
				Name:       fieldTenant,
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "64"},
			},
			{
				Name:       fieldEntityID,
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "64"},
			},
			{
				Name:       fieldLabel,
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "512"},
			},
			{
				Name:     fieldUsage,
				DataType: entity.FieldTypeInt64,
			},
			{
				Name:       fieldEmbedding,
				DataType:   entity.FieldTypeFloatVector,
				TypeParams: map[string]string{"dim": fmt.Sprintf("%d", m.vectorDim)},
			},
		},
	}

	if err := m.client.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	idx, err := entity.NewIndexIvfFlat(entity.IP, 128)
	if err != nil {
		return fmt.Errorf("failed to build index params: %w", err)
	}
	if err := m.client.CreateIndex(ctx, name, fieldEmbedding, idx, false); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	if err := m.client.LoadCollection(ctx, name, false); err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}

	logger.Info("Collection created and loaded", zap.String("collection", name))
	return nil
}

func (m *Client) ProductEmbeddings(ctx context.Context, tenantID string, limit int) ([]semantic.Embedded, error) {
	return m.embeddings(ctx, semantic.EntityProduct, tenantID, limit)
}

func (m *Client) SupplierEmbeddings(ctx context.Context, tenantID string, limit int) ([]semantic.Embedded, error) {
	return m.embeddings(ctx, semantic.EntitySupplier, tenantID, limit)
}

// embeddings returns the tenant's most used entities. Milvus queries are
// unordered, so ranking and capping happen here over a bounded window.
func (m *Client) embeddings(ctx context.Context, entityType, tenantID string, limit int) ([]semantic.Embedded, error) {
	collection := m.collections[entityType]

	rs, err := m.client.Query(ctx, collection, nil, tenantExpr(tenantID),
		[]string{fieldEntityID, fieldLabel, fieldUsage, fieldEmbedding},
		client.WithLimit(queryWindow(limit)))
	if err != nil {
		return nil, fmt.Errorf("failed to query %s embeddings: %w", entityType, err)
	}

	ids, ok1 := rs.GetColumn(fieldEntityID).(*entity.ColumnVarChar)
	labels, ok2 := rs.GetColumn(fieldLabel).(*entity.ColumnVarChar)
	usage, ok3 := rs.GetColumn(fieldUsage).(*entity.ColumnInt64)
	vectors, ok4 := rs.GetColumn(fieldEmbedding).(*entity.ColumnFloatVector)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		if len(rs) == 0 {
			return nil, nil
		}
		return nil, fmt.Errorf("unexpected %s result columns from collection %s", entityType, collection)
	}

	n := ids.Len()
	if labels.Len() != n || usage.Len() != n || vectors.Len() != n {
		return nil, fmt.Errorf("inconsistent %s result columns from collection %s", entityType, collection)
	}
	out := make([]semantic.Embedded, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, semantic.Embedded{
			ID:     ids.Data()[i],
			Label:  labels.Data()[i],
			Usage:  int(usage.Data()[i]),
			Vector: vectors.Data()[i],
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Usage > out[j].Usage })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func queryWindow(limit int) int64 {
	if limit <= 0 || limit*queryWindowFactor > maxQueryWindow {
		return maxQueryWindow
	}
	return int64(limit * queryWindowFactor)
}

// Upsert writes embeddings for one tenant and entity type.
func (m *Client) Upsert(ctx context.Context, tenantID, entityType string, items []semantic.Embedded) error {
	if len(items) == 0 {
		return nil
	}
	collection, ok := m.collections[entityType]
	if !ok {
		return fmt.Errorf("unknown entity type %q", entityType)
	}

	pks := make([]string, len(items))
	tenants := make([]string, len(items))
	entityIDs := make([]string, len(items))
	labels := make([]string, len(items))
	usage := make([]int64, len(items))
	vectors := make([][]float32, len(items))

	for i, item := range items {
		if len(item.Vector) != m.vectorDim {
			return fmt.Errorf("embedding for %s %s has dimension %d, want %d", entityType, item.ID, len(item.Vector), m.vectorDim)
		}
		pks[i] = tenantID + "/" + item.ID
		tenants[i] = tenantID
		entityIDs[i] = item.ID
		labels[i] = item.Label
		usage[i] = int64(item.Usage)
		vectors[i] = item.Vector
	}

	_, err := m.client.Upsert(ctx, collection, "",
		entity.NewColumnVarChar(fieldPK, pks),
		entity.NewColumnVarChar(fieldTenant, tenants),
		entity.NewColumnVarChar(fieldEntityID, entityIDs),
		entity.NewColumnVarChar(fieldLabel, labels),
		entity.NewColumnInt64(fieldUsage, usage),
		entity.NewColumnFloatVector(fieldEmbedding, m.vectorDim, vectors),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert %s embeddings: %w", entityType, err)
	}

	logger.Info("Embeddings upserted into vector store",
		zap.String("tenant_id", tenantID),
		zap.String("entity_type", entityType),
		zap.Int("count", len(items)),
	)
	return nil
}

func tenantExpr(tenantID string) string {
	return fmt.Sprintf("%s == %q", fieldTenant, tenantID)
}
