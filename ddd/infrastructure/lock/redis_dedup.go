package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"media-transcode-service/pkg/redisclient"
)

// RedisDedupStore 基于 SET NX 的去重/租约，多实例部署时使用
type RedisDedupStore struct {
	client *redisclient.Client
}

// NewRedisDedupStore 创建 redis 去重存储
func NewRedisDedupStore(client *redisclient.Client) *RedisDedupStore {
	return &RedisDedupStore{client: client}
}

// Acquire SET key NX PX ttl
func (s *RedisDedupStore) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.Raw().SetNX(ctx, s.client.Key("dedup", key), time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx %s: %w", key, err)
	}
	return ok, nil
}

// Release 删除 key，不存在时不报错
func (s *RedisDedupStore) Release(ctx context.Context, key string) error {
	if err := s.client.Raw().Del(ctx, s.client.Key("dedup", key)).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}
