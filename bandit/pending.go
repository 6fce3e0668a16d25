package bandit

import (
	"context"
	"sync"
	"time"
)

// PendingDecision 由 Choose 创建、被 RecordFeedback 恰好消费一次的
// 待反馈决策。decision_id 是唯一能把延迟到达的奖励归因到决策的凭证。
type PendingDecision struct {
	ID        string    `json:"id"`
	Arm       string    `json:"arm"`
	Features  []float64 `json:"features"`
	CreatedAt time.Time `json:"created_at"`
}

// PendingStore 待反馈决策的存储。实现必须支持 TTL 过期：
// 源系统的无界 map 在反馈永不到达时会泄漏，这里的过期策略是
// 刻意的修正而非忠实复刻。
type PendingStore interface {
	// Put 存入一条待反馈决策
	Put(ctx context.Context, d PendingDecision) error
	// Take 按 id 取出并删除；不存在（或已过期）时返回 false
	Take(ctx context.Context, id string) (PendingDecision, bool, error)
	// Len 当前待反馈决策数量，诊断用
	Len(ctx context.Context) (int, error)
	// Close 释放后台资源
	Close() error
}

// MemoryPendingStore 进程内 TTL 存储，后台定时清扫过期条目。
type MemoryPendingStore struct {
	mu      sync.Mutex
	entries map[string]PendingDecision
	ttl     time.Duration

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewMemoryPendingStore 创建内存存储。ttl<=0 时使用 10 分钟默认值。
func NewMemoryPendingStore(ttl time.Duration) *MemoryPendingStore {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	s := &MemoryPendingStore{
		entries: make(map[string]PendingDecision),
		ttl:     ttl,
		stopCh:  make(chan struct{}),
	}
	go s.sweepLoop()
	return s
}

func (s *MemoryPendingStore) Put(_ context.Context, d PendingDecision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[d.ID] = d
	return nil
}

func (s *MemoryPendingStore) Take(_ context.Context, id string) (PendingDecision, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.entries[id]
	if !ok {
		return PendingDecision{}, false, nil
	}
	if time.Since(d.CreatedAt) > s.ttl {
		delete(s.entries, id)
		return PendingDecision{}, false, nil
	}
	delete(s.entries, id)
	return d, true, nil
}

func (s *MemoryPendingStore) Len(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries), nil
}

func (s *MemoryPendingStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopCh) })
	return nil
}

func (s *MemoryPendingStore) sweepLoop() {
	interval := s.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *MemoryPendingStore) sweep() {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, d := range s.entries {
		if now.Sub(d.CreatedAt) > s.ttl {
			delete(s.entries, id)
		}
	}
}
