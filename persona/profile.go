package persona

import "fmt"

// Profile 行为画像。静态目录，运行时只读。
type Profile struct {
	ID                string   `json:"id"`
	Description       string   `json:"description"`
	ObjectionRate     float64  `json:"objection_rate"`   // Bernoulli 异议概率 ∈ [0,1]
	EngagementLevel   float64  `json:"engagement_level"` // 初始兴趣水平 ∈ [0,1]
	TypicalObjections []string `json:"typical_objections"`
	TypicalResponses  []string `json:"typical_responses"`
	BuyingSignals     []string `json:"buying_signals"`
	BuyingThreshold   int      `json:"buying_threshold"` // 至少这么多轮后才可能给出购买信号
}

// 画像 ID
const (
	PriceSensitive    = "price_sensitive"
	Skeptical         = "skeptical"
	SilentType        = "silent_type"
	Busy              = "busy"
	Interested        = "interested"
	ComparisonShopper = "comparison_shopper"
)

var defaultBuyingSignals = []string{
	"Alright, I'm convinced. How do we get started?",
	"This sounds like what we need. Send me the contract.",
	"Let's do it. What are the next steps?",
}

// catalog 固定画像目录。顺序即批量模拟的轮询顺序。
var catalog = []Profile{
	{
		ID:              PriceSensitive,
		Description:     "Fixates on cost, objects whenever money comes up",
		ObjectionRate:   0.8,
		EngagementLevel: 0.5,
		TypicalObjections: []string{
			"That's way more than we budgeted for.",
			"Your competitor quoted us half of that.",
			"I can't justify that price to my boss.",
			"Is there a cheaper tier?",
		},
		TypicalResponses: []string{
			"Okay, but what does that actually cost?",
			"Go on, I'm listening.",
			"Hmm, and the pricing is per seat?",
		},
		BuyingSignals:   defaultBuyingSignals,
		BuyingThreshold: 6,
	},
	{
		ID:              Skeptical,
		Description:     "Doubts every claim, wants proof",
		ObjectionRate:   0.7,
		EngagementLevel: 0.4,
		TypicalObjections: []string{
			"I've heard that promise before.",
			"Do you have any data to back that up?",
			"Our last vendor said exactly the same thing.",
			"I'm not convinced this works for our case.",
		},
		TypicalResponses: []string{
			"Interesting, tell me more.",
			"And how would that work in practice?",
			"Okay, suppose I believe you.",
		},
		BuyingSignals:   defaultBuyingSignals,
		BuyingThreshold: 7,
	},
	{
		ID:              SilentType,
		Description:     "Gives minimal answers, hard to read",
		ObjectionRate:   0.4,
		EngagementLevel: 0.2,
		TypicalObjections: []string{
			"Not sure.",
			"Maybe not.",
			"Hmm.",
		},
		TypicalResponses: []string{
			"Okay.",
			"I see.",
			"Go on.",
			"Mm-hm.",
		},
		BuyingSignals:   defaultBuyingSignals,
		BuyingThreshold: 8,
	},
	{
		ID:              Busy,
		Description:     "No patience, cuts off long pitches",
		ObjectionRate:   0.6,
		EngagementLevel: 0.3,
		TypicalObjections: []string{
			"I really don't have time for this.",
			"Can you get to the point?",
			"I have another meeting in two minutes.",
		},
		TypicalResponses: []string{
			"Quickly, what's the bottom line?",
			"Fine, thirty seconds.",
			"Okay, fast version please.",
		},
		BuyingSignals:   defaultBuyingSignals,
		BuyingThreshold: 5,
	},
	{
		ID:              Interested,
		Description:     "Genuinely curious, low resistance",
		ObjectionRate:   0.2,
		EngagementLevel: 0.9,
		TypicalObjections: []string{
			"One concern though: how long is onboarding?",
			"What happens if it doesn't work out?",
		},
		TypicalResponses: []string{
			"That sounds really useful.",
			"Great, we've been looking for something like this.",
			"Can it also handle multiple teams?",
			"Nice, how soon could we start?",
		},
		BuyingSignals:   defaultBuyingSignals,
		BuyingThreshold: 4,
	},
	{
		ID:              ComparisonShopper,
		Description:     "Evaluating several vendors at once",
		ObjectionRate:   0.6,
		EngagementLevel: 0.6,
		TypicalObjections: []string{
			"VendorX offers the same feature, why you?",
			"I'm talking to three other companies this week.",
			"Their integration list is longer than yours.",
		},
		TypicalResponses: []string{
			"How does that compare to VendorX?",
			"Okay, noted. What about support?",
			"Put that in writing and I'll compare.",
		},
		BuyingSignals:   defaultBuyingSignals,
		BuyingThreshold: 6,
	},
}

// Catalog 返回画像目录的拷贝
func Catalog() []Profile {
	out := make([]Profile, len(catalog))
	copy(out, catalog)
	return out
}

// Get 按 ID 查找画像
func Get(id string) (Profile, error) {
	for _, p := range catalog {
		if p.ID == id {
			return p, nil
		}
	}
	return Profile{}, fmt.Errorf("unknown persona %q", id)
}

// IDs 返回全部画像 ID，顺序与目录一致
func IDs() []string {
	ids := make([]string, len(catalog))
	for i, p := range catalog {
		ids[i] = p.ID
	}
	return ids
}
