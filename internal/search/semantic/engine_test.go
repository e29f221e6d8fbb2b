package semantic

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosineSimilarity(t *testing.T) {
	v := []float32{0.3, -1.2, 4}

	assert.InDelta(t, 1.0, CosineSimilarity(v, v), 1e-9)
	assert.Equal(t, 0.0, CosineSimilarity(v, []float32{0, 0, 0}))
	assert.Equal(t, 0.0, CosineSimilarity(v, []float32{-0.3, 1.2, -4}), "negative cosine clamps to zero")
	assert.Equal(t, 0.0, CosineSimilarity(v, []float32{1, 2}), "dimension mismatch")
	assert.Equal(t, 0.0, CosineSimilarity(nil, nil))
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-12)
}

func TestCosineSimilarity_AlwaysInUnitRange(t *testing.T) {
	vectors := [][]float32{
		{1, 2, 3}, {-1, -2, -3}, {1e-20, 1e-20, 1e-20}, {math.MaxFloat32, 1, 1}, {0.5, -0.5, 0},
	}
	for _, a := range vectors {
		for _, b := range vectors {
			sim := CosineSimilarity(a, b)
			assert.GreaterOrEqual(t, sim, 0.0)
			assert.LessOrEqual(t, sim, 1.0)
		}
	}
}

// unitAt returns a 2-d unit vector whose cosine with (1,0) equals sim.
func unitAt(sim float64) []float32 {
	return []float32{float32(sim), float32(math.Sqrt(1 - sim*sim))}
}

type fakeEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	return f.vector, f.err
}

type fakeStore struct {
	products     []Embedded
	suppliers    []Embedded
	supplierErr  error
	productLimit int
	supplierLim  int
}

func (f *fakeStore) Name() string { return "fake" }

func (f *fakeStore) ProductEmbeddings(ctx context.Context, tenantID string, limit int) ([]Embedded, error) {
	f.productLimit = limit
	return f.products, nil
}

func (f *fakeStore) SupplierEmbeddings(ctx context.Context, tenantID string, limit int) ([]Embedded, error) {
	f.supplierLim = limit
	return f.suppliers, f.supplierErr
}

func TestEngine_Search_FiltersAndSorts(t *testing.T) {
	store := &fakeStore{
		products: []Embedded{
			{ID: "p1", Label: "harina de trigo", Vector: unitAt(0.82)},
			{ID: "p2", Label: "levadura", Vector: unitAt(0.65)},
			{ID: "p3", Label: "harina integral", Vector: unitAt(0.91)},
		},
		suppliers: []Embedded{
			{ID: "s1", Label: "Harinas Castilla", Vector: unitAt(0.75)},
			{ID: "s2", Label: "Lácteos Norte", Vector: unitAt(0.10)},
		},
	}

	out := NewEngine(&fakeEmbedder{vector: []float32{1, 0}}, store).Search(context.Background(), "harina", "rest-001")

	require.False(t, out.Unavailable)
	require.NoError(t, out.Err)
	require.Len(t, out.Candidates, 3)
	assert.Equal(t, "p3", out.Candidates[0].ID)
	assert.Equal(t, "p1", out.Candidates[1].ID)
	assert.Equal(t, "s1", out.Candidates[2].ID)
	assert.Equal(t, EntitySupplier, out.Candidates[2].EntityType)
	assert.InDelta(t, 0.82, out.Candidates[1].Similarity, 1e-6)
	assert.Equal(t, MaxProductCandidates, store.productLimit)
	assert.Equal(t, MaxSupplierCandidates, store.supplierLim)
}

func TestEngine_Search_ThresholdBoundary(t *testing.T) {
	store := &fakeStore{products: []Embedded{
		{ID: "below", Vector: unitAt(0.69)},
		{ID: "above", Vector: unitAt(0.71)},
	}}

	out := NewEngine(&fakeEmbedder{vector: []float32{1, 0}}, store).Search(context.Background(), "harina", "rest-001")

	require.Len(t, out.Candidates, 1)
	assert.Equal(t, "above", out.Candidates[0].ID)
	assert.InDelta(t, 0.70, SimilarityThreshold, 1e-9)
}

func TestEngine_Search_CapsCandidates(t *testing.T) {
	store := &fakeStore{}
	for i := 0; i < 30; i++ {
		store.products = append(store.products, Embedded{ID: fmt.Sprintf("p%d", i), Vector: unitAt(0.9)})
	}

	out := NewEngine(&fakeEmbedder{vector: []float32{1, 0}}, store).Search(context.Background(), "q", "rest-001")
	assert.Len(t, out.Candidates, MaxProductCandidates)
}

func TestEngine_Search_EmbeddingFailureIsUnavailable(t *testing.T) {
	store := &fakeStore{products: []Embedded{{ID: "p1", Vector: unitAt(0.99)}}}

	out := NewEngine(&fakeEmbedder{err: errors.New("429 rate limited")}, store).Search(context.Background(), "q", "rest-001")
	assert.True(t, out.Unavailable)
	assert.True(t, out.Empty())
	assert.ErrorContains(t, out.Err, "semantic unavailable")
	assert.Zero(t, store.productLimit, "no store read without a query vector")

	out = NewEngine(&fakeEmbedder{vector: nil}, store).Search(context.Background(), "q", "rest-001")
	assert.True(t, out.Unavailable)
}

func TestEngine_Search_PartialStoreFailureKeepsCandidates(t *testing.T) {
	store := &fakeStore{
		products:    []Embedded{{ID: "p1", Vector: unitAt(0.95)}},
		supplierErr: errors.New("timeout"),
	}

	out := NewEngine(&fakeEmbedder{vector: []float32{1, 0}}, store).Search(context.Background(), "q", "rest-001")
	assert.False(t, out.Unavailable)
	assert.Len(t, out.Candidates, 1)
	assert.ErrorContains(t, out.Err, "timeout")
}

type mapCache map[string][]float32

func (m mapCache) GetEmbedding(ctx context.Context, key string) ([]float32, error) {
	return m[key], nil
}

func (m mapCache) SetEmbedding(ctx context.Context, key string, v []float32) error {
	m[key] = v
	return nil
}

func TestEngine_Search_UsesCache(t *testing.T) {
	embedder := &fakeEmbedder{vector: []float32{1, 0}}
	cache := mapCache{}
	engine := NewEngine(embedder, &fakeStore{}, WithCache(cache))

	engine.Search(context.Background(), "Harina  de trigo", "rest-001")
	engine.Search(context.Background(), "harina de trigo", "rest-002")

	assert.Equal(t, 1, embedder.calls)
	assert.Len(t, cache, 1)
}
