// Package persona synthesizes customer turns from parameterized
// behavioral profiles for sales training simulations.
package persona

import (
	"math/rand"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/pitchsim/types"
)

// Length threshold (in tokens) past which the busy persona loses patience.
const busyPatienceTokens = 40

// Probability of converting an eligible turn into a buying signal.
const buyingSignalProbability = 0.3

// priceKeywords 价格敏感画像的强制异议关键词
var priceKeywords = []string{"price", "cost", "pricing", "fee", "expensive", "$"}

// Reply 模拟客户的一轮回复
type Reply struct {
	Content      string `json:"content"`
	Objection    bool   `json:"objection"`
	BuyingSignal bool   `json:"buying_signal"`
}

// Stats 模拟器诊断快照
type Stats struct {
	TurnCount        int      `json:"turn_count"`
	ObjectionsRaised []string `json:"objections_raised"`
	InterestLevel    float64  `json:"interest_level"`
	ReadyToBuy       bool     `json:"ready_to_buy"`
}

// Simulator 按画像生成客户回复并跟踪兴趣/异议状态。
// 一次模拟运行一个实例，运行结束即废弃；非并发安全。
type Simulator struct {
	profile Profile
	rng     *rand.Rand
	counter TokenCounter
	logger  *zap.Logger

	turnCount        int
	objectionsRaised []string
	interestLevel    float64
}

// Option 模拟器可选配置
type Option func(*Simulator)

// WithRand 注入可播种的随机源，测试得以确定性复现
func WithRand(rng *rand.Rand) Option {
	return func(s *Simulator) { s.rng = rng }
}

// WithTokenCounter 注入消息长度度量
func WithTokenCounter(c TokenCounter) Option {
	return func(s *Simulator) { s.counter = c }
}

// WithLogger 注入日志器
func WithLogger(l *zap.Logger) Option {
	return func(s *Simulator) { s.logger = l }
}

// NewSimulator 创建模拟器。初始兴趣水平取画像的 EngagementLevel。
func NewSimulator(profile Profile, opts ...Option) *Simulator {
	s := &Simulator{
		profile:       profile,
		interestLevel: profile.EngagementLevel,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if s.counter == nil {
		s.counter = NewTiktokenCounter()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Respond 生成对一条销售话术的客户回复。
//
// 先做概率为 ObjectionRate 的 Bernoulli 试验，画像启发式可强制覆盖
// （价格敏感画像遇到价格关键词必然异议；busy 画像遇到超长话术必然
// 抱怨太啰嗦）。之后更新兴趣水平（异议 -0.1、否则 +0.15，截断在
// [0,1]），并在轮数达到 BuyingThreshold 且兴趣 > 0.6 时以 0.3 的
// 概率把回复改写为购买信号。
func (s *Simulator) Respond(salesMessage string, salesState types.ConversationState) Reply {
	s.turnCount++

	objecting := s.rng.Float64() < s.profile.ObjectionRate

	// Persona heuristics override the Bernoulli draw. The busy override
	// only forces the objection content; interest update and the buying
	// signal check below still run on that turn.
	var forcedObjection string
	switch s.profile.ID {
	case PriceSensitive:
		if containsAny(salesMessage, priceKeywords) {
			objecting = true
		}
	case Busy:
		if s.counter.Count(salesMessage) > busyPatienceTokens {
			objecting = true
			forcedObjection = "Look, that was way too long. I don't have time for this."
		}
	}

	var reply Reply
	if objecting {
		content := forcedObjection
		if content == "" {
			content = s.pick(s.profile.TypicalObjections)
		}
		reply = Reply{Content: content, Objection: true}
		s.objectionsRaised = append(s.objectionsRaised, reply.Content)
	} else {
		reply = Reply{Content: s.pick(s.profile.TypicalResponses)}
	}

	s.adjustInterest(reply.Objection)

	if s.turnCount >= s.profile.BuyingThreshold &&
		s.interestLevel > 0.6 &&
		s.rng.Float64() < buyingSignalProbability {
		reply.Content = s.pick(s.profile.BuyingSignals)
		reply.Objection = false
		reply.BuyingSignal = true
		s.logger.Debug("buying signal emitted",
			zap.String("persona", s.profile.ID),
			zap.Int("turn", s.turnCount),
			zap.Float64("interest", s.interestLevel))
	}

	s.logger.Debug("customer reply generated",
		zap.String("persona", s.profile.ID),
		zap.String("sales_state", string(salesState)),
		zap.Int("turn", s.turnCount),
		zap.Bool("objection", reply.Objection),
		zap.Bool("buying_signal", reply.BuyingSignal))

	return reply
}

// adjustInterest 异议 -0.1、正常回应 +0.15，始终截断在 [0,1]
func (s *Simulator) adjustInterest(objection bool) {
	if objection {
		s.interestLevel -= 0.1
		if s.interestLevel < 0 {
			s.interestLevel = 0
		}
	} else {
		s.interestLevel += 0.15
		if s.interestLevel > 1 {
			s.interestLevel = 1
		}
	}
}

// GetStats 返回诊断快照
func (s *Simulator) GetStats() Stats {
	raised := make([]string, len(s.objectionsRaised))
	copy(raised, s.objectionsRaised)
	return Stats{
		TurnCount:        s.turnCount,
		ObjectionsRaised: raised,
		InterestLevel:    s.interestLevel,
		ReadyToBuy:       s.turnCount >= s.profile.BuyingThreshold && s.interestLevel > 0.6,
	}
}

// Profile 返回模拟器绑定的画像
func (s *Simulator) Profile() Profile {
	return s.profile
}

func (s *Simulator) pick(options []string) string {
	if len(options) == 0 {
		return ""
	}
	return options[s.rng.Intn(len(options))]
}

func containsAny(msg string, keywords []string) bool {
	lower := strings.ToLower(msg)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
