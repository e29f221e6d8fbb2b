package milvus

import (
	"context"
	"errors"
	"testing"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/search/semantic"
)

// fakeMilvus overrides the calls the store makes; anything else panics on
// the nil embedded interface.
type fakeMilvus struct {
	client.Client

	result     client.ResultSet
	queryErr   error
	collection string
	expr       string
	fields     []string
	limit      int64
	upserted   []entity.Column
}

func (f *fakeMilvus) Query(ctx context.Context, collectionName string, partitionNames []string, expr string, outputFields []string, opts ...client.SearchQueryOptionFunc) (client.ResultSet, error) {
	f.collection = collectionName
	f.expr = expr
	f.fields = outputFields

	var opt client.SearchQueryOption
	for _, o := range opts {
		o(&opt)
	}
	f.limit = opt.Limit
	return f.result, f.queryErr
}

func (f *fakeMilvus) Upsert(ctx context.Context, collName string, partitionName string, columns ...entity.Column) (entity.Column, error) {
	f.collection = collName
	f.upserted = columns
	return nil, nil
}

var testConfig = Config{ProductCollection: "products", SupplierCollection: "suppliers", VectorDim: 2}

func TestProductEmbeddings_RanksByUsageAndCaps(t *testing.T) {
	fake := &fakeMilvus{result: client.ResultSet{
		entity.NewColumnVarChar(fieldEntityID, []string{"p1", "p2", "p3"}),
		entity.NewColumnVarChar(fieldLabel, []string{"sal", "harina de trigo", "aceite"}),
		entity.NewColumnInt64(fieldUsage, []int64{1, 9, 5}),
		entity.NewColumnFloatVector(fieldEmbedding, 2, [][]float32{{1, 0}, {0, 1}, {1, 1}}),
	}}
	store := NewClientWithMilvus(fake, testConfig)

	got, err := store.ProductEmbeddings(context.Background(), "rest-001", 2)
	require.NoError(t, err)

	assert.Equal(t, "products", fake.collection)
	assert.Equal(t, `tenant_id == "rest-001"`, fake.expr)
	assert.EqualValues(t, 100, fake.limit)
	require.Len(t, got, 2)
	assert.Equal(t, "harina de trigo", got[0].Label)
	assert.Equal(t, []float32{0, 1}, got[0].Vector)
	assert.Equal(t, "aceite", got[1].Label)
}

func TestSupplierEmbeddings_EmptyResult(t *testing.T) {
	fake := &fakeMilvus{}
	store := NewClientWithMilvus(fake, testConfig)

	got, err := store.SupplierEmbeddings(context.Background(), "rest-001", 10)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, "suppliers", fake.collection)
}

func TestEmbeddings_QueryError(t *testing.T) {
	fake := &fakeMilvus{queryErr: errors.New("rpc error: unavailable")}
	store := NewClientWithMilvus(fake, testConfig)

	_, err := store.ProductEmbeddings(context.Background(), "rest-001", 20)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to query product embeddings")
}

func TestUpsert(t *testing.T) {
	fake := &fakeMilvus{}
	store := NewClientWithMilvus(fake, testConfig)

	err := store.Upsert(context.Background(), "rest-001", semantic.EntitySupplier, []semantic.Embedded{
		{ID: "s1", Label: "Makro", Vector: []float32{0.5, 0.5}, Usage: 3},
	})
	require.NoError(t, err)

	assert.Equal(t, "suppliers", fake.collection)
	require.Len(t, fake.upserted, 6)
	pk, ok := fake.upserted[0].(*entity.ColumnVarChar)
	require.True(t, ok)
	assert.Equal(t, []string{"rest-001/s1"}, pk.Data())
}

func TestUpsert_RejectsWrongDimension(t *testing.T) {
	fake := &fakeMilvus{}
	store := NewClientWithMilvus(fake, testConfig)

	err := store.Upsert(context.Background(), "rest-001", semantic.EntityProduct, []semantic.Embedded{
		{ID: "p1", Vector: []float32{1, 0, 0}},
	})
	require.Error(t, err)
	assert.Nil(t, fake.upserted)
}

func TestQueryWindow(t *testing.T) {
	assert.EqualValues(t, 1000, queryWindow(20))
	assert.EqualValues(t, maxQueryWindow, queryWindow(0))
	assert.EqualValues(t, maxQueryWindow, queryWindow(1000))
}
