package service

import (
	"context"

	"chatrag-go/internal/memory"
	"chatrag-go/internal/model"
	"chatrag-go/internal/prompt"
	"chatrag-go/internal/rag"
	"chatrag-go/internal/repository"
	"chatrag-go/internal/tenant"
	"chatrag-go/pkg/embedding"
	"chatrag-go/pkg/llm"
	"chatrag-go/pkg/log"
)

// ChatService 是问答流水线的编排入口：
// 向量化 -> 追问判定 -> 元数据抽取 -> 混合检索 -> 提示组装 -> 生成 -> 持久化。
type ChatService interface {
	Answer(ctx context.Context, tenantID, instanceID, query string) (string, error)
}

type chatService struct {
	registry        *tenant.Registry
	embeddingClient embedding.Client
	metadataService MetadataService
	searchService   SearchService
	assembler       *prompt.Assembler
	llmClient       llm.Client
	memoryStore     *memory.Store
	historyRepo     repository.HistoryRepository
	topK            int
}

// NewChatService 创建问答编排服务。
func NewChatService(
	registry *tenant.Registry,
	embeddingClient embedding.Client,
	metadataService MetadataService,
	searchService SearchService,
	assembler *prompt.Assembler,
	llmClient llm.Client,
	memoryStore *memory.Store,
	historyRepo repository.HistoryRepository,
	topK int,
) ChatService {
	if topK <= 0 {
		topK = 12
	}
	return &chatService{
		registry:        registry,
		embeddingClient: embeddingClient,
		metadataService: metadataService,
		searchService:   searchService,
		assembler:       assembler,
		llmClient:       llmClient,
		memoryStore:     memoryStore,
		historyRepo:     historyRepo,
		topK:            topK,
	}
}

// Answer 处理一次用户查询，返回生成的回答。
// 任一阶段失败都以对应的错误类别上抛，调用方据此决定响应状态。
func (s *chatService) Answer(ctx context.Context, tenantID, instanceID, query string) (string, error) {
	tenantCfg := s.registry.Lookup(tenantID)

	// 1. 当前查询向量化。向量始终来自当前查询，即便是追问。
	queryVector, err := s.embeddingClient.CreateEmbedding(ctx, query)
	if err != nil {
		return "", &rag.EmbeddingError{Err: err}
	}

	transcript := s.memoryStore.Transcript(instanceID)
	hasHistory := transcript != ""
	followUp := IsFollowUp(query, hasHistory)

	// 2. 确定抽取与词法检索所依据的查询文本。
	// 追问本身往往太短（"yes"、"why not"），不足以支撑元数据抽取
	// 和 BM25 匹配，改用上一条用户查询。
	extractionQuery := query
	if followUp {
		if lastQuery, ok := s.memoryStore.LastUserQuery(instanceID); ok {
			extractionQuery = lastQuery
		}
		log.Infof("[Chat] 实例 %s 判定为追问, 复用上一条查询进行抽取与词法检索", instanceID)
	}

	// 3. 元数据抽取，得到检索过滤条件。
	filters, err := s.metadataService.Extract(ctx, tenantCfg, transcript, extractionQuery)
	if err != nil {
		return "", err
	}

	// 4. 混合检索。
	results, err := s.searchService.HybridSearchWithVector(ctx, tenantID, extractionQuery, queryVector, filters, s.topK)
	if err != nil {
		return "", err
	}

	// 5. 提示组装。
	var messages []llm.Message
	if followUp {
		messages, err = s.assembler.BuildFollowUp(transcript, query, results)
	} else {
		previousResponse := s.findConsistentResponse(tenantCfg, instanceID, query)
		messages, err = s.assembler.BuildStandard(tenantCfg.TemplateFamily, query, results, previousResponse)
	}
	if err != nil {
		return "", err
	}

	// 6. 生成回答。
	answer, err := s.llmClient.Complete(ctx, messages)
	if err != nil {
		return "", &rag.GenerationError{Err: err}
	}

	// 7. 持久化：先写会话记忆，再落库。落库失败只记录错误，
	// 已生成的回答仍返回给用户。
	s.memoryStore.AppendTurn(instanceID, query, answer)
	turn := &model.ChatHistory{
		ChatInstanceID: instanceID,
		TenantID:       tenantID,
		UserQuery:      query,
		Response:       answer,
	}
	if err := s.historyRepo.CreateTurn(turn); err != nil {
		log.Errorf("[Chat] 实例 %s 问答历史落库失败: %v", instanceID, err)
	}

	return answer, nil
}

// findConsistentResponse 在开启一致性检查的租户下，查找同一实例内
// 与当前查询完全一致（大小写不敏感）的最近历史回答。
// 查询失败视为未命中，不中断本次请求。
func (s *chatService) findConsistentResponse(tenantCfg tenant.Config, instanceID, query string) string {
	if !tenantCfg.ConsistencyCheck {
		return ""
	}
	turn, err := s.historyRepo.FindLatestByExactQuery(instanceID, query)
	if err != nil {
		log.Errorf("[Chat] 一致性检查查询失败: %v", err)
		return ""
	}
	if turn == nil {
		return ""
	}
	log.Infof("[Chat] 实例 %s 命中重复提问, 附带上一次回答保持一致性", instanceID)
	return turn.Response
}
