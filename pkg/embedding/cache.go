package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"chatrag-go/pkg/log"

	"github.com/go-redis/redis/v8"
)

// cachedClient 是 Client 的 Redis 缓存装饰器。
// 相同文本的向量化结果按 model+text 的摘要缓存，命中则省去一次上游调用。
type cachedClient struct {
	inner Client
	rdb   *redis.Client
	model string
	ttl   time.Duration
}

// WithCache 为 embedding 客户端套上 Redis 缓存。ttlHours <= 0 时使用 24 小时。
func WithCache(inner Client, rdb *redis.Client, model string, ttlHours int) Client {
	if ttlHours <= 0 {
		ttlHours = 24
	}
	return &cachedClient{
		inner: inner,
		rdb:   rdb,
		model: model,
		ttl:   time.Duration(ttlHours) * time.Hour,
	}
}

func (c *cachedClient) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(c.model + "\x00" + text))
	return "embedding:" + hex.EncodeToString(sum[:])
}

// CreateEmbedding 先查缓存，未命中则调用内层客户端并回填。
// 缓存读写失败只记录日志，不影响请求本身。
func (c *cachedClient) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	key := c.cacheKey(text)
	if data, err := c.rdb.Get(ctx, key).Result(); err == nil {
		var vector []float32
		if err := json.Unmarshal([]byte(data), &vector); err == nil && len(vector) > 0 {
			log.Infof("[EmbeddingClient] 缓存命中, key: %s", key)
			return vector, nil
		}
	} else if err != redis.Nil {
		log.Warnf("[EmbeddingClient] 读取向量缓存失败: %v", err)
	}

	vector, err := c.inner.CreateEmbedding(ctx, text)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(vector); err == nil {
		if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
			log.Warnf("[EmbeddingClient] 写入向量缓存失败: %v", err)
		}
	}
	return vector, nil
}
