package service

import (
	"context"
	"sort"
	"sync"

	"chatrag-go/internal/model"
	"chatrag-go/internal/rag"
	"chatrag-go/pkg/embedding"
	"chatrag-go/pkg/es"
	"chatrag-go/pkg/log"
	"chatrag-go/pkg/rerank"
)

// SearchService 实现词法 + 向量混合检索与得分融合。
type SearchService interface {
	// HybridSearch 将查询文本向量化后执行混合检索（HTTP 检索接口使用）。
	HybridSearch(ctx context.Context, tenantID, query string, filters map[string]string, topK int) ([]model.SearchResultDTO, error)
	// HybridSearchWithVector 使用调用方给定的向量执行混合检索。
	// 追问场景下词法查询文本与向量来自不同的轮次，所以两者分开传入。
	HybridSearchWithVector(ctx context.Context, tenantID, lexicalQuery string, queryVector []float32, filters map[string]string, topK int) ([]model.SearchResultDTO, error)
}

type searchService struct {
	backend         es.Backend
	embeddingClient embedding.Client
	reranker        rerank.Client // nil 表示重排序未启用
	lexicalWeight   float64
	vectorWeight    float64
}

// NewSearchService 创建混合检索服务。reranker 传 nil 则跳过重排序。
func NewSearchService(backend es.Backend, embeddingClient embedding.Client, reranker rerank.Client, lexicalWeight, vectorWeight float64) SearchService {
	if lexicalWeight <= 0 && vectorWeight <= 0 {
		lexicalWeight, vectorWeight = 0.5, 0.5
	}
	return &searchService{
		backend:         backend,
		embeddingClient: embeddingClient,
		reranker:        reranker,
		lexicalWeight:   lexicalWeight,
		vectorWeight:    vectorWeight,
	}
}

func (s *searchService) HybridSearch(ctx context.Context, tenantID, query string, filters map[string]string, topK int) ([]model.SearchResultDTO, error) {
	vector, err := s.embeddingClient.CreateEmbedding(ctx, query)
	if err != nil {
		return nil, &rag.EmbeddingError{Err: err}
	}
	return s.HybridSearchWithVector(ctx, tenantID, query, vector, filters, topK)
}

func (s *searchService) HybridSearchWithVector(ctx context.Context, tenantID, lexicalQuery string, queryVector []float32, filters map[string]string, topK int) ([]model.SearchResultDTO, error) {
	// 过滤条件为空结果直接短路：这是合法的空命中，不是错误。
	count, err := s.backend.CountFiltered(ctx, tenantID, filters)
	if err != nil {
		return nil, &rag.SearchError{Err: err}
	}
	if count == 0 {
		log.Infof("[Search] 租户 %s 过滤范围内没有候选分块, 跳过检索", tenantID)
		return []model.SearchResultDTO{}, nil
	}

	// 词法与向量两路检索并发执行，各自独立截断到 topK。
	var (
		wg          sync.WaitGroup
		lexicalHits []model.SearchHit
		vectorHits  []model.SearchHit
		lexicalErr  error
		vectorErr   error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		lexicalHits, lexicalErr = s.backend.LexicalSearch(ctx, tenantID, lexicalQuery, filters, topK)
	}()
	go func() {
		defer wg.Done()
		vectorHits, vectorErr = s.backend.VectorSearch(ctx, tenantID, queryVector, filters, topK)
	}()
	wg.Wait()

	if lexicalErr != nil {
		return nil, &rag.SearchError{Err: lexicalErr}
	}
	if vectorErr != nil {
		return nil, &rag.SearchError{Err: vectorErr}
	}

	// 重排序作用在完整的融合候选列表上（最多 2k 条），截断到 topK
	// 放在其后：融合排名靠后的候选仍可能被交叉编码器提升进前列。
	results := fuseRankings(lexicalHits, vectorHits, s.lexicalWeight, s.vectorWeight)
	if s.reranker != nil && len(results) > 0 {
		results, err = s.rerank(ctx, lexicalQuery, results)
		if err != nil {
			return nil, err
		}
	}
	if len(results) > topK {
		results = results[:topK]
	}

	for i := range results {
		results[i].Rank = i + 1
	}
	log.Infof("[Search] 租户 %s 混合检索完成, 词法 %d 条, 向量 %d 条, 融合后 %d 条", tenantID, len(lexicalHits), len(vectorHits), len(results))
	return results, nil
}

// fuseRankings 按 chunk_uid 合并两路命中，缺失信号按 0 分处理，
// 归一化后线性加权。排序是稳定的：得分相同保持合并顺序。
func fuseRankings(lexicalHits, vectorHits []model.SearchHit, lexicalWeight, vectorWeight float64) []model.SearchResultDTO {
	merged := make(map[string]*model.SearchResultDTO)
	order := make([]string, 0, len(lexicalHits)+len(vectorHits))

	for _, hit := range lexicalHits {
		merged[hit.ChunkUID] = &model.SearchResultDTO{
			ChunkUID:     hit.ChunkUID,
			DocumentID:   hit.DocumentID,
			DocumentName: hit.DocumentName,
			PageLabel:    hit.PageLabel,
			Text:         hit.Text,
			LexicalScore: hit.Score,
		}
		order = append(order, hit.ChunkUID)
	}
	for _, hit := range vectorHits {
		if existing, ok := merged[hit.ChunkUID]; ok {
			existing.VectorScore = hit.Score
			continue
		}
		merged[hit.ChunkUID] = &model.SearchResultDTO{
			ChunkUID:     hit.ChunkUID,
			DocumentID:   hit.DocumentID,
			DocumentName: hit.DocumentName,
			PageLabel:    hit.PageLabel,
			Text:         hit.Text,
			VectorScore:  hit.Score,
		}
		order = append(order, hit.ChunkUID)
	}

	// 负的向量得分（余弦相似度为负）按 0 处理，
	// 保证归一化后的单路得分与融合得分都落在 [0,1]。
	for _, r := range merged {
		if r.LexicalScore < 0 {
			r.LexicalScore = 0
		}
		if r.VectorScore < 0 {
			r.VectorScore = 0
		}
	}

	maxLexical, maxVector := 0.0, 0.0
	for _, r := range merged {
		if r.LexicalScore > maxLexical {
			maxLexical = r.LexicalScore
		}
		if r.VectorScore > maxVector {
			maxVector = r.VectorScore
		}
	}
	// 防止除零：最大值不为正时按 1 处理。
	if maxLexical <= 0 {
		maxLexical = 1
	}
	if maxVector <= 0 {
		maxVector = 1
	}

	results := make([]model.SearchResultDTO, 0, len(order))
	for _, uid := range order {
		r := merged[uid]
		r.LexicalScore = r.LexicalScore / maxLexical
		r.VectorScore = r.VectorScore / maxVector
		r.FusedScore = lexicalWeight*r.LexicalScore + vectorWeight*r.VectorScore
		results = append(results, *r)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].FusedScore > results[j].FusedScore
	})
	return results
}

// rerank 将融合后的结果交给重排序服务，按返回的下标重排。
// 重排序失败对本次请求是致命的。
func (s *searchService) rerank(ctx context.Context, query string, results []model.SearchResultDTO) ([]model.SearchResultDTO, error) {
	documents := make([]string, len(results))
	for i, r := range results {
		documents[i] = r.Text
	}

	indices, err := s.reranker.Rerank(ctx, query, documents)
	if err != nil {
		return nil, &rag.RerankError{Err: err}
	}

	reordered := make([]model.SearchResultDTO, 0, len(indices))
	for _, idx := range indices {
		reordered = append(reordered, results[idx])
	}
	return reordered, nil
}
