// =============================================================================
// 🧪 测试辅助函数
// =============================================================================
// 提供通用的测试辅助函数和断言
//
// 使用方法:
//
//	testutil.AssertMessagesEqual(t, expected, actual)
//	testutil.AssertEventuallyTrue(t, func() bool { return condition }, 5*time.Second)
// =============================================================================
package testutil

import (
	"context"
	"encoding/json"
	"math/rand"
	"testing"
	"time"

	"github.com/BaSui01/pitchsim/types"
)

// =============================================================================
// 🎯 上下文辅助
// =============================================================================

// TestContext 返回带超时的测试上下文
func TestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// CancelledContext 返回已取消的上下文
func CancelledContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

// =============================================================================
// 🎲 确定性随机源
// =============================================================================

// fixedSource 恒定随机源。Int63 始终返回同一个值,
// 使 rand.Float64() 精确等于构造时给定的概率。
type fixedSource struct{ v int64 }

func (s fixedSource) Int63() int64 { return s.v }
func (s fixedSource) Seed(int64)   {}

// FixedRand 返回 Float64() 恒等于 f 的 *rand.Rand,f ∈ [0,1)。
func FixedRand(f float64) *rand.Rand {
	return rand.New(fixedSource{v: int64(f * (1 << 63))})
}

// =============================================================================
// 🔍 断言辅助
// =============================================================================

// AssertMessagesEqual 断言两个消息切片相等
func AssertMessagesEqual(t *testing.T, expected, actual []types.Message) {
	t.Helper()

	if len(expected) != len(actual) {
		t.Errorf("message count mismatch: expected %d, got %d", len(expected), len(actual))
		return
	}

	for i := range expected {
		if expected[i].Role != actual[i].Role {
			t.Errorf("message[%d] role mismatch: expected %q, got %q", i, expected[i].Role, actual[i].Role)
		}
		if expected[i].Content != actual[i].Content {
			t.Errorf("message[%d] content mismatch: expected %q, got %q", i, expected[i].Content, actual[i].Content)
		}
	}
}

// AssertEventuallyTrue 轮询等待条件成立,超时则失败
func AssertEventuallyTrue(t *testing.T, condition func() bool, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Errorf("condition not met within %v", timeout)
}

// =============================================================================
// 📦 数据辅助
// =============================================================================

// MustJSON 序列化为 JSON,失败时 panic(仅测试使用)
func MustJSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
