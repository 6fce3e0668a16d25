package persona

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter 消息长度度量接口。busy 画像用它判断销售话术是否
// 超出耐心阈值。
type TokenCounter interface {
	Count(text string) int
}

// WordCounter 按空白分词计数，确定性，测试默认。
type WordCounter struct{}

func (WordCounter) Count(text string) int {
	return len(strings.Fields(text))
}

// TiktokenCounter cl100k_base 编码的真实 token 计数。
// 首次使用时惰性初始化（编码数据可能需要下载）；初始化失败时
// 回退到按词计数。
type TiktokenCounter struct {
	once    sync.Once
	enc     *tiktoken.Tiktoken
	initErr error
}

func NewTiktokenCounter() *TiktokenCounter {
	return &TiktokenCounter{}
}

func (t *TiktokenCounter) init() error {
	t.once.Do(func() {
		t.enc, t.initErr = tiktoken.GetEncoding("cl100k_base")
	})
	return t.initErr
}

func (t *TiktokenCounter) Count(text string) int {
	if err := t.init(); err != nil {
		return WordCounter{}.Count(text)
	}
	return len(t.enc.Encode(text, nil, nil))
}
