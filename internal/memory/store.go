// Package memory 实现了按会话实例划分的有界会话记忆。
// 记忆是进程内共享状态：键总量由 LRU 容量 + TTL 约束，
// 单个会话的轮次由 maxTurns 约束，每次保存后从头部截断。
package memory

import (
	"strings"
	"sync"
	"time"

	"chatrag-go/internal/model"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Store 是进程级的会话记忆存储。
// 不同会话之间的写入互不阻塞；同一会话的写入由会话级互斥锁串行化。
type Store struct {
	mu       sync.Mutex
	cache    *expirable.LRU[string, *session]
	maxTurns int
}

type session struct {
	mu    sync.Mutex
	turns []model.ChatMessage
}

// NewStore 创建会话记忆存储。
// capacity 限制同时保留的会话数，ttlHours 限制空闲会话的存活时间，
// maxTurns 限制单个会话保留的消息条数。
func NewStore(capacity, maxTurns, ttlHours int) *Store {
	if capacity <= 0 {
		capacity = 4096
	}
	if maxTurns <= 0 {
		maxTurns = 2
	}
	ttl := time.Duration(ttlHours) * time.Hour
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Store{
		cache:    expirable.NewLRU[string, *session](capacity, nil, ttl),
		maxTurns: maxTurns,
	}
}

// getOrCreate 获取或创建会话，store 级锁只保护查找与插入。
func (s *Store) getOrCreate(instanceID string) *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.cache.Get(instanceID); ok {
		return sess
	}
	sess := &session{}
	s.cache.Add(instanceID, sess)
	return sess
}

// AppendTurn 在会话末尾追加一轮问答，并截断到保留上限。
func (s *Store) AppendTurn(instanceID, query, response string) {
	sess := s.getOrCreate(instanceID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	now := time.Now()
	sess.turns = append(sess.turns,
		model.ChatMessage{Role: "user", Content: query, Timestamp: now},
		model.ChatMessage{Role: "assistant", Content: response, Timestamp: now},
	)
	if len(sess.turns) > s.maxTurns {
		sess.turns = sess.turns[len(sess.turns)-s.maxTurns:]
	}
}

// History 返回会话当前保留的消息副本。
func (s *Store) History(instanceID string) []model.ChatMessage {
	sess, ok := s.cache.Get(instanceID)
	if !ok {
		return nil
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	out := make([]model.ChatMessage, len(sess.turns))
	copy(out, sess.turns)
	return out
}

// HasHistory 报告会话是否已有保留的消息。
func (s *Store) HasHistory(instanceID string) bool {
	return len(s.History(instanceID)) > 0
}

// LastUserQuery 返回会话中最近一条用户消息。
func (s *Store) LastUserQuery(instanceID string) (string, bool) {
	turns := s.History(instanceID)
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == "user" {
			return turns[i].Content, true
		}
	}
	return "", false
}

// Transcript 将会话记忆渲染为 "Human:/AI:" 文本，供提示词引用。
func (s *Store) Transcript(instanceID string) string {
	turns := s.History(instanceID)
	if len(turns) == 0 {
		return ""
	}
	var b strings.Builder
	for _, t := range turns {
		if t.Role == "user" {
			b.WriteString("Human: ")
		} else {
			b.WriteString("AI: ")
		}
		b.WriteString(t.Content)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
