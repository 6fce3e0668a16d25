package bandit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisPendingStore Redis 实现的待反馈决策存储，TTL 由 Redis 原生
// 过期承担。适用于多进程部署：choose 与 record_feedback 可以发生在
// 不同实例上。
type RedisPendingStore struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRedisPendingStore 创建 Redis 存储并探活
func NewRedisPendingStore(client *redis.Client, keyPrefix string, ttl time.Duration) (*RedisPendingStore, error) {
	if keyPrefix == "" {
		keyPrefix = "pitchsim:bandit:pending:"
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisPendingStore{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
	}, nil
}

func (s *RedisPendingStore) key(id string) string {
	return s.keyPrefix + id
}

func (s *RedisPendingStore) Put(ctx context.Context, d PendingDecision) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal pending decision: %w", err)
	}
	if err := s.client.Set(ctx, s.key(d.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("store pending decision: %w", err)
	}
	return nil
}

func (s *RedisPendingStore) Take(ctx context.Context, id string) (PendingDecision, bool, error) {
	data, err := s.client.GetDel(ctx, s.key(id)).Bytes()
	if err == redis.Nil {
		return PendingDecision{}, false, nil
	}
	if err != nil {
		return PendingDecision{}, false, fmt.Errorf("take pending decision: %w", err)
	}

	var d PendingDecision
	if err := json.Unmarshal(data, &d); err != nil {
		return PendingDecision{}, false, fmt.Errorf("unmarshal pending decision: %w", err)
	}
	return d, true, nil
}

func (s *RedisPendingStore) Len(ctx context.Context) (int, error) {
	var count int
	iter := s.client.Scan(ctx, 0, s.keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("scan pending decisions: %w", err)
	}
	return count, nil
}

// Close 不关闭注入的 client，连接归调用方所有
func (s *RedisPendingStore) Close() error {
	return nil
}
