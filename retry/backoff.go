// Package retry provides an exponential-backoff retryer for collaborator
// calls made from the simulation turn loop.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// Policy 重试策略配置
type Policy struct {
	MaxRetries      int           // 最大重试次数（0 表示不重试）
	InitialDelay    time.Duration // 初始延迟
	MaxDelay        time.Duration // 最大延迟
	Multiplier      float64       // 指数退避倍增因子
	Jitter          bool          // 随机抖动（±25%），防止雪崩
	RetryableErrors []error       // 可重试错误（为空则全部可重试）

	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultPolicy 适用于外部 Agent / Coach 协作方调用的默认策略
func DefaultPolicy() *Policy {
	return &Policy{
		MaxRetries:   2,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// Retryer 重试器接口
type Retryer interface {
	// Do 执行 fn，失败时按策略重试
	Do(ctx context.Context, fn func() error) error
}

type backoffRetryer struct {
	policy *Policy
	logger *zap.Logger
}

// NewBackoffRetryer 创建指数退避重试器
func NewBackoffRetryer(policy *Policy, logger *zap.Logger) Retryer {
	if policy == nil {
		policy = DefaultPolicy()
	}
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}
	if policy.InitialDelay <= 0 {
		policy.InitialDelay = 200 * time.Millisecond
	}
	if policy.MaxDelay <= 0 {
		policy.MaxDelay = 5 * time.Second
	}
	if policy.Multiplier < 1.0 {
		policy.Multiplier = 2.0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &backoffRetryer{policy: policy, logger: logger}
}

func (r *backoffRetryer) Do(ctx context.Context, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt <= r.policy.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := r.calculateDelay(attempt)
			r.logger.Debug("retrying",
				zap.Int("attempt", attempt),
				zap.Int("max_retries", r.policy.MaxRetries),
				zap.Duration("delay", delay),
				zap.Error(lastErr))
			if r.policy.OnRetry != nil {
				r.policy.OnRetry(attempt, lastErr, delay)
			}

			select {
			case <-ctx.Done():
				return fmt.Errorf("retry cancelled: %w", ctx.Err())
			case <-time.After(delay):
			}
		}

		lastErr = fn()
		if lastErr == nil {
			if attempt > 0 {
				r.logger.Info("retry succeeded", zap.Int("attempt", attempt))
			}
			return nil
		}

		if !r.isRetryable(lastErr) {
			r.logger.Debug("error not retryable", zap.Error(lastErr))
			return lastErr
		}
	}

	r.logger.Warn("retries exhausted",
		zap.Int("attempts", r.policy.MaxRetries+1),
		zap.Error(lastErr))
	return fmt.Errorf("failed after %d retries: %w", r.policy.MaxRetries, lastErr)
}

// calculateDelay 指数退避 + 可选抖动
func (r *backoffRetryer) calculateDelay(attempt int) time.Duration {
	delay := float64(r.policy.InitialDelay) * math.Pow(r.policy.Multiplier, float64(attempt-1))
	if delay > float64(r.policy.MaxDelay) {
		delay = float64(r.policy.MaxDelay)
	}
	if r.policy.Jitter {
		jitter := delay * 0.25
		delay = delay + (rand.Float64()*2-1)*jitter
	}
	if delay < float64(r.policy.InitialDelay) {
		delay = float64(r.policy.InitialDelay)
	}
	return time.Duration(delay)
}

func (r *backoffRetryer) isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if len(r.policy.RetryableErrors) == 0 {
		return true
	}
	for _, retryable := range r.policy.RetryableErrors {
		if errors.Is(err, retryable) {
			return true
		}
	}
	return false
}
