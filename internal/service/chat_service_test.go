package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"chatrag-go/internal/memory"
	"chatrag-go/internal/model"
	"chatrag-go/internal/prompt"
	"chatrag-go/internal/rag"
	"chatrag-go/internal/tenant"
	"chatrag-go/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedCounter 每条消息按 1 个 token 计数，测试中不会触发预算回退。
type fixedCounter struct{}

func (fixedCounter) CountMessages(messages []llm.Message) (int, error) {
	return len(messages), nil
}

type fakeHistoryRepo struct {
	turns         []model.ChatHistory
	latestByQuery *model.ChatHistory
	latestErr     error
	createErr     error
}

func (f *fakeHistoryRepo) CreateInstance(*model.ChatInstance) error { return nil }
func (f *fakeHistoryRepo) GetInstance(string) (*model.ChatInstance, error) {
	return nil, nil
}
func (f *fakeHistoryRepo) ListInstancesByTenant(string) ([]model.ChatInstance, error) {
	return nil, nil
}
func (f *fakeHistoryRepo) CreateTurn(turn *model.ChatHistory) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.turns = append(f.turns, *turn)
	return nil
}
func (f *fakeHistoryRepo) FindRecentTurns(string, int) ([]model.ChatHistory, error) {
	return f.turns, nil
}
func (f *fakeHistoryRepo) FindLatestByExactQuery(string, string) (*model.ChatHistory, error) {
	return f.latestByQuery, f.latestErr
}

type chatFixture struct {
	backend     *fakeBackend
	embedder    *fakeEmbedder
	llmClient   *fakeLLM
	memoryStore *memory.Store
	historyRepo *fakeHistoryRepo
	service     ChatService
}

func newChatFixture(t *testing.T, tenants []tenant.Config) *chatFixture {
	t.Helper()

	backend := &fakeBackend{
		count:   5,
		lexHits: []model.SearchHit{hit("a", 2.0)},
		vecHits: []model.SearchHit{hit("b", 0.9)},
	}
	embedder := &fakeEmbedder{vector: []float32{0.1, 0.2}}
	llmClient := &fakeLLM{response: "generated answer"}
	memoryStore := memory.NewStore(16, 4, 1)
	historyRepo := &fakeHistoryRepo{}

	registry := tenant.NewRegistry(tenants, tenant.Config{})
	searchService := NewSearchService(backend, embedder, nil, 0.5, 0.5)
	assembler := prompt.NewAssembler(fixedCounter{}, 1000)

	svc := NewChatService(
		registry,
		embedder,
		NewMetadataService(llmClient),
		searchService,
		assembler,
		llmClient,
		memoryStore,
		historyRepo,
		12,
	)
	return &chatFixture{
		backend:     backend,
		embedder:    embedder,
		llmClient:   llmClient,
		memoryStore: memoryStore,
		historyRepo: historyRepo,
		service:     svc,
	}
}

func promptText(messages []llm.Message) string {
	var b strings.Builder
	for _, m := range messages {
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	return b.String()
}

func TestAnswerStandardQuery(t *testing.T) {
	fx := newChatFixture(t, nil)

	answer, err := fx.service.Answer(context.Background(), "tenant", "instance-1", "what is the vacation policy?")
	require.NoError(t, err)
	assert.Equal(t, "generated answer", answer)

	// 词法检索使用当前查询，向量来自当前查询
	assert.Equal(t, "what is the vacation policy?", fx.backend.gotLexicalQuery)
	assert.Equal(t, []float32{0.1, 0.2}, fx.backend.gotVector)

	// 会话记忆与历史库都持久化了本轮问答
	turns := fx.memoryStore.History("instance-1")
	require.Len(t, turns, 2)
	assert.Equal(t, "what is the vacation policy?", turns[0].Content)
	assert.Equal(t, "generated answer", turns[1].Content)

	require.Len(t, fx.historyRepo.turns, 1)
	assert.Equal(t, "what is the vacation policy?", fx.historyRepo.turns[0].UserQuery)
	assert.Equal(t, "generated answer", fx.historyRepo.turns[0].Response)
}

func TestAnswerFollowUpReusesPreviousQuery(t *testing.T) {
	fx := newChatFixture(t, nil)
	fx.memoryStore.AppendTurn("instance-1", "what is the notice period for contracts?", "it is 30 days")

	answer, err := fx.service.Answer(context.Background(), "tenant", "instance-1", "why?")
	require.NoError(t, err)
	assert.Equal(t, "generated answer", answer)

	// 追问：词法检索用上一条查询，向量仍来自当前查询
	assert.Equal(t, "what is the notice period for contracts?", fx.backend.gotLexicalQuery)
	assert.Equal(t, []float32{0.1, 0.2}, fx.backend.gotVector)

	// 提示里带上会话文本与当前追问
	text := promptText(fx.llmClient.messages)
	assert.Contains(t, text, "what is the notice period for contracts?")
	assert.Contains(t, text, "it is 30 days")
	assert.Contains(t, text, "why?")
}

// scriptedLLM 依次返回脚本化的响应，记录每次调用的消息。
type scriptedLLM struct {
	responses []string
	calls     [][]llm.Message
}

func (f *scriptedLLM) Complete(_ context.Context, messages []llm.Message) (string, error) {
	f.calls = append(f.calls, messages)
	if len(f.calls) > len(f.responses) {
		return "", errors.New("no scripted response left")
	}
	return f.responses[len(f.calls)-1], nil
}

func TestAnswerFollowUpExtractsFromPreviousQuery(t *testing.T) {
	tenants := []tenant.Config{{
		ID:             "hr-tenant",
		TemplateFamily: "hr",
		Attributes: []tenant.Attribute{
			{Name: "document_type", Format: `{"document_type": "policy" | null}`, Prompt: "Extract the document type"},
		},
	}}

	backend := &fakeBackend{count: 5, lexHits: []model.SearchHit{hit("a", 2.0)}}
	embedder := &fakeEmbedder{vector: []float32{0.1, 0.2}}
	// 第一次调用是元数据抽取，第二次是回答生成
	llmClient := &scriptedLLM{responses: []string{`{"document_type": "policy"}`, "generated answer"}}
	memoryStore := memory.NewStore(16, 4, 1)
	memoryStore.AppendTurn("instance-1", "show me the parental leave policy", "here it is")

	svc := NewChatService(
		tenant.NewRegistry(tenants, tenant.Config{}),
		embedder,
		NewMetadataService(llmClient),
		NewSearchService(backend, embedder, nil, 0.5, 0.5),
		prompt.NewAssembler(fixedCounter{}, 1000),
		llmClient,
		memoryStore,
		&fakeHistoryRepo{},
		12,
	)

	answer, err := svc.Answer(context.Background(), "hr-tenant", "instance-1", "no")
	require.NoError(t, err)
	assert.Equal(t, "generated answer", answer)
	require.Len(t, llmClient.calls, 2)

	// 抽取提示针对上一条用户查询，而不是 "no" 本身
	extraction := promptText(llmClient.calls[0])
	assert.Contains(t, extraction, "show me the parental leave policy")

	// 抽取出的过滤条件传入了检索
	assert.Equal(t, map[string]string{"document_type": "policy"}, backend.gotFilters)
	assert.Equal(t, "show me the parental leave policy", backend.gotLexicalQuery)
}

func TestAnswerConsistencyCheck(t *testing.T) {
	tenants := []tenant.Config{{
		ID:               "hr-tenant",
		TemplateFamily:   "hr",
		ConsistencyCheck: true,
	}}
	fx := newChatFixture(t, tenants)
	fx.historyRepo.latestByQuery = &model.ChatHistory{
		UserQuery: "what is the travel expense limit for managers",
		Response:  "the limit is 200 euros per day",
	}

	_, err := fx.service.Answer(context.Background(), "hr-tenant", "instance-1", "what is the travel expense limit for managers")
	require.NoError(t, err)

	text := promptText(fx.llmClient.messages)
	assert.Contains(t, text, "This is my previous response to a similar query")
	assert.Contains(t, text, "the limit is 200 euros per day")
}

func TestAnswerConsistencyLookupFailureIsNonFatal(t *testing.T) {
	tenants := []tenant.Config{{
		ID:               "hr-tenant",
		TemplateFamily:   "hr",
		ConsistencyCheck: true,
	}}
	fx := newChatFixture(t, tenants)
	fx.historyRepo.latestErr = errors.New("mysql gone away")

	answer, err := fx.service.Answer(context.Background(), "hr-tenant", "instance-1", "what is the travel expense limit for managers")
	require.NoError(t, err)
	assert.Equal(t, "generated answer", answer)
}

func TestAnswerEmbeddingFailure(t *testing.T) {
	fx := newChatFixture(t, nil)
	fx.embedder.err = errors.New("quota exceeded")

	_, err := fx.service.Answer(context.Background(), "tenant", "instance-1", "query")
	require.Error(t, err)

	var embeddingErr *rag.EmbeddingError
	assert.True(t, errors.As(err, &embeddingErr))
}

func TestAnswerGenerationFailure(t *testing.T) {
	fx := newChatFixture(t, nil)
	fx.llmClient.err = errors.New("upstream 500")

	_, err := fx.service.Answer(context.Background(), "tenant", "instance-1", "what is the vacation policy?")
	require.Error(t, err)

	var generationErr *rag.GenerationError
	assert.True(t, errors.As(err, &generationErr))

	// 生成失败时不落库也不写记忆
	assert.Empty(t, fx.historyRepo.turns)
	assert.Empty(t, fx.memoryStore.History("instance-1"))
}

func TestAnswerPersistFailureStillReturnsAnswer(t *testing.T) {
	fx := newChatFixture(t, nil)
	fx.historyRepo.createErr = errors.New("mysql gone away")

	answer, err := fx.service.Answer(context.Background(), "tenant", "instance-1", "what is the vacation policy?")
	require.NoError(t, err)
	assert.Equal(t, "generated answer", answer)

	// 记忆仍然更新，落库失败只记录日志
	assert.Len(t, fx.memoryStore.History("instance-1"), 2)
}
