package service

import (
	"context"
	"errors"
	"testing"

	"chatrag-go/internal/model"
	"chatrag-go/internal/rag"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend 按脚本返回两路检索结果，并记录收到的参数。
type fakeBackend struct {
	count    int
	countErr error
	lexHits  []model.SearchHit
	lexErr   error
	vecHits  []model.SearchHit
	vecErr   error

	gotLexicalQuery string
	gotVector       []float32
	gotFilters      map[string]string
	lexCalled       bool
	vecCalled       bool
}

func (f *fakeBackend) CountFiltered(_ context.Context, _ string, filters map[string]string) (int, error) {
	f.gotFilters = filters
	return f.count, f.countErr
}

func (f *fakeBackend) LexicalSearch(_ context.Context, _ string, query string, _ map[string]string, _ int) ([]model.SearchHit, error) {
	f.lexCalled = true
	f.gotLexicalQuery = query
	return f.lexHits, f.lexErr
}

func (f *fakeBackend) VectorSearch(_ context.Context, _ string, vector []float32, _ map[string]string, _ int) ([]model.SearchHit, error) {
	f.vecCalled = true
	f.gotVector = vector
	return f.vecHits, f.vecErr
}

type fakeEmbedder struct {
	vector []float32
	err    error
}

func (f *fakeEmbedder) CreateEmbedding(_ context.Context, _ string) ([]float32, error) {
	return f.vector, f.err
}

// fakeReranker 将结果顺序反转。
type fakeReranker struct {
	err    error
	called bool
}

func (f *fakeReranker) Rerank(_ context.Context, _ string, documents []string) ([]int, error) {
	f.called = true
	if f.err != nil {
		return nil, f.err
	}
	indices := make([]int, len(documents))
	for i := range documents {
		indices[i] = len(documents) - 1 - i
	}
	return indices, nil
}

func hit(uid string, score float64) model.SearchHit {
	return model.SearchHit{ChunkUID: uid, DocumentName: uid + ".pdf", Text: "text of " + uid, Score: score}
}

func TestHybridSearchEmptyFilterScope(t *testing.T) {
	backend := &fakeBackend{count: 0}
	svc := NewSearchService(backend, nil, nil, 0.5, 0.5)

	results, err := svc.HybridSearchWithVector(context.Background(), "tenant", "query", []float32{0.1}, nil, 12)
	require.NoError(t, err)

	// 合法的空命中：不报错，也不再调用两路检索
	assert.Empty(t, results)
	assert.False(t, backend.lexCalled)
	assert.False(t, backend.vecCalled)
}

func TestHybridSearchFusesAndRanks(t *testing.T) {
	backend := &fakeBackend{
		count:   10,
		lexHits: []model.SearchHit{hit("a", 2.0), hit("b", 1.0)},
		vecHits: []model.SearchHit{hit("b", 0.8), hit("c", 0.4)},
	}
	svc := NewSearchService(backend, nil, nil, 0.5, 0.5)

	results, err := svc.HybridSearchWithVector(context.Background(), "tenant", "query", []float32{0.1}, nil, 12)
	require.NoError(t, err)
	require.Len(t, results, 3)

	// b 同时命中两路: 0.5*0.5 + 0.5*1.0 = 0.75
	// a 只命中词法:   0.5*1.0 + 0.5*0   = 0.50
	// c 只命中向量:   0.5*0   + 0.5*0.5 = 0.25
	assert.Equal(t, "b", results[0].ChunkUID)
	assert.Equal(t, "a", results[1].ChunkUID)
	assert.Equal(t, "c", results[2].ChunkUID)

	assert.InDelta(t, 0.75, results[0].FusedScore, 1e-9)
	assert.InDelta(t, 0.50, results[1].FusedScore, 1e-9)
	assert.InDelta(t, 0.25, results[2].FusedScore, 1e-9)

	// 缺失信号按 0 分参与融合
	assert.Zero(t, results[1].VectorScore)
	assert.Zero(t, results[2].LexicalScore)

	assert.Equal(t, 1, results[0].Rank)
	assert.Equal(t, 2, results[1].Rank)
	assert.Equal(t, 3, results[2].Rank)
}

func TestHybridSearchTruncatesToTopK(t *testing.T) {
	backend := &fakeBackend{
		count:   10,
		lexHits: []model.SearchHit{hit("a", 3.0), hit("b", 2.0)},
		vecHits: []model.SearchHit{hit("c", 0.9), hit("d", 0.8)},
	}
	svc := NewSearchService(backend, nil, nil, 0.5, 0.5)

	results, err := svc.HybridSearchWithVector(context.Background(), "tenant", "query", []float32{0.1}, nil, 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestHybridSearchBackendFailure(t *testing.T) {
	backend := &fakeBackend{count: 10, vecErr: errors.New("es unavailable")}
	svc := NewSearchService(backend, nil, nil, 0.5, 0.5)

	_, err := svc.HybridSearchWithVector(context.Background(), "tenant", "query", []float32{0.1}, nil, 12)
	require.Error(t, err)

	var searchErr *rag.SearchError
	assert.True(t, errors.As(err, &searchErr))
}

func TestHybridSearchRerankReorders(t *testing.T) {
	backend := &fakeBackend{
		count:   10,
		lexHits: []model.SearchHit{hit("a", 2.0), hit("b", 1.0)},
	}
	reranker := &fakeReranker{}
	svc := NewSearchService(backend, nil, reranker, 0.5, 0.5)

	results, err := svc.HybridSearchWithVector(context.Background(), "tenant", "query", []float32{0.1}, nil, 12)
	require.NoError(t, err)
	require.True(t, reranker.called)
	require.Len(t, results, 2)

	// 重排序反转了融合顺序，Rank 在重排后重新分配
	assert.Equal(t, "b", results[0].ChunkUID)
	assert.Equal(t, 1, results[0].Rank)
	assert.Equal(t, "a", results[1].ChunkUID)
	assert.Equal(t, 2, results[1].Rank)
}

func TestHybridSearchReranksBeforeTruncation(t *testing.T) {
	// 融合排名最低的候选 c 在重排后被提升，topK 截断必须发生在重排之后
	backend := &fakeBackend{
		count:   10,
		lexHits: []model.SearchHit{hit("a", 3.0), hit("b", 2.0), hit("c", 1.0)},
	}
	reranker := &fakeReranker{}
	svc := NewSearchService(backend, nil, reranker, 0.5, 0.5)

	results, err := svc.HybridSearchWithVector(context.Background(), "tenant", "query", []float32{0.1}, nil, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "c", results[0].ChunkUID)
	assert.Equal(t, "b", results[1].ChunkUID)
	assert.Equal(t, 1, results[0].Rank)
	assert.Equal(t, 2, results[1].Rank)
}

func TestHybridSearchDeterministicTieOrder(t *testing.T) {
	// a、b、c 的融合得分全部相同(0.5)：顺序保持合并时的插入顺序
	// （词法命中在前），且重复执行得到完全一致的排序
	backend := &fakeBackend{
		count:   10,
		lexHits: []model.SearchHit{hit("a", 2.0), hit("b", 2.0)},
		vecHits: []model.SearchHit{hit("c", 0.5)},
	}
	svc := NewSearchService(backend, nil, nil, 0.5, 0.5)

	first, err := svc.HybridSearchWithVector(context.Background(), "tenant", "query", []float32{0.1}, nil, 12)
	require.NoError(t, err)
	second, err := svc.HybridSearchWithVector(context.Background(), "tenant", "query", []float32{0.1}, nil, 12)
	require.NoError(t, err)

	require.Len(t, first, 3)
	assert.InDelta(t, first[0].FusedScore, first[1].FusedScore, 1e-9)
	assert.InDelta(t, first[1].FusedScore, first[2].FusedScore, 1e-9)
	assert.Equal(t, "a", first[0].ChunkUID)
	assert.Equal(t, "b", first[1].ChunkUID)
	assert.Equal(t, "c", first[2].ChunkUID)
	assert.Equal(t, first, second)
}

func TestHybridSearchClampsNegativeVectorScores(t *testing.T) {
	// 余弦相似度为负的命中按 0 分参与融合，得分不会越出 [0,1]
	backend := &fakeBackend{
		count:   10,
		lexHits: []model.SearchHit{hit("a", 2.0)},
		vecHits: []model.SearchHit{hit("a", 0.8), hit("b", -0.3)},
	}
	svc := NewSearchService(backend, nil, nil, 0.5, 0.5)

	results, err := svc.HybridSearchWithVector(context.Background(), "tenant", "query", []float32{0.1}, nil, 12)
	require.NoError(t, err)
	require.Len(t, results, 2)

	for _, r := range results {
		assert.GreaterOrEqual(t, r.LexicalScore, 0.0)
		assert.LessOrEqual(t, r.LexicalScore, 1.0)
		assert.GreaterOrEqual(t, r.VectorScore, 0.0)
		assert.LessOrEqual(t, r.VectorScore, 1.0)
		assert.GreaterOrEqual(t, r.FusedScore, 0.0)
		assert.LessOrEqual(t, r.FusedScore, 1.0)
	}

	var b model.SearchResultDTO
	for _, r := range results {
		if r.ChunkUID == "b" {
			b = r
		}
	}
	assert.Zero(t, b.VectorScore)
	assert.Zero(t, b.FusedScore)
}

func TestHybridSearchRerankFailureIsFatal(t *testing.T) {
	backend := &fakeBackend{
		count:   10,
		lexHits: []model.SearchHit{hit("a", 2.0)},
	}
	svc := NewSearchService(backend, nil, &fakeReranker{err: errors.New("rerank api down")}, 0.5, 0.5)

	_, err := svc.HybridSearchWithVector(context.Background(), "tenant", "query", []float32{0.1}, nil, 12)
	require.Error(t, err)

	var rerankErr *rag.RerankError
	assert.True(t, errors.As(err, &rerankErr))
}

func TestHybridSearchEmbedsQuery(t *testing.T) {
	backend := &fakeBackend{count: 10, lexHits: []model.SearchHit{hit("a", 1.0)}}
	embedder := &fakeEmbedder{vector: []float32{0.25, 0.5}}
	svc := NewSearchService(backend, embedder, nil, 0.5, 0.5)

	_, err := svc.HybridSearch(context.Background(), "tenant", "query", nil, 12)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.25, 0.5}, backend.gotVector)
	assert.Equal(t, "query", backend.gotLexicalQuery)
}

func TestHybridSearchEmbeddingFailure(t *testing.T) {
	svc := NewSearchService(&fakeBackend{}, &fakeEmbedder{err: errors.New("quota exceeded")}, nil, 0.5, 0.5)

	_, err := svc.HybridSearch(context.Background(), "tenant", "query", nil, 12)
	require.Error(t, err)

	var embeddingErr *rag.EmbeddingError
	assert.True(t, errors.As(err, &embeddingErr))
}
