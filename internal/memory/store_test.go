package memory

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreAppendAndTruncate(t *testing.T) {
	// maxTurns = 2 条消息，只保留最近一轮问答
	store := NewStore(16, 2, 1)

	store.AppendTurn("instance-1", "first question", "first answer")
	store.AppendTurn("instance-1", "second question", "second answer")

	turns := store.History("instance-1")
	require.Len(t, turns, 2)
	assert.Equal(t, "user", turns[0].Role)
	assert.Equal(t, "second question", turns[0].Content)
	assert.Equal(t, "assistant", turns[1].Role)
	assert.Equal(t, "second answer", turns[1].Content)
}

func TestStoreSessionIsolation(t *testing.T) {
	store := NewStore(16, 4, 1)

	store.AppendTurn("instance-a", "query a", "answer a")
	store.AppendTurn("instance-b", "query b", "answer b")

	assert.Equal(t, 2, len(store.History("instance-a")))
	assert.Equal(t, 2, len(store.History("instance-b")))

	lastA, ok := store.LastUserQuery("instance-a")
	require.True(t, ok)
	assert.Equal(t, "query a", lastA)
}

func TestStoreEmptySession(t *testing.T) {
	store := NewStore(16, 2, 1)

	assert.Empty(t, store.History("unknown"))
	assert.False(t, store.HasHistory("unknown"))
	assert.Equal(t, "", store.Transcript("unknown"))

	_, ok := store.LastUserQuery("unknown")
	assert.False(t, ok)
}

func TestStoreTranscriptFormat(t *testing.T) {
	store := NewStore(16, 4, 1)
	store.AppendTurn("instance-1", "what is the vacation policy?", "you get 25 days per year")

	transcript := store.Transcript("instance-1")
	assert.Equal(t, "Human: what is the vacation policy?\nAI: you get 25 days per year", transcript)
}

func TestStoreCapacityEviction(t *testing.T) {
	store := NewStore(2, 2, 1)

	store.AppendTurn("instance-1", "q1", "a1")
	store.AppendTurn("instance-2", "q2", "a2")
	store.AppendTurn("instance-3", "q3", "a3")

	// 容量为 2，最早的会话被淘汰
	assert.False(t, store.HasHistory("instance-1"))
	assert.True(t, store.HasHistory("instance-2"))
	assert.True(t, store.HasHistory("instance-3"))
}

func TestStoreConcurrentAppend(t *testing.T) {
	store := NewStore(64, 4, 1)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			instanceID := fmt.Sprintf("instance-%d", i%4)
			store.AppendTurn(instanceID, "query", "answer")
		}(i)
	}
	wg.Wait()

	for i := 0; i < 4; i++ {
		turns := store.History(fmt.Sprintf("instance-%d", i))
		assert.LessOrEqual(t, len(turns), 4)
	}
}
