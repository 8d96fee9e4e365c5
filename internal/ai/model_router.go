package ai

import "strings"

type ModelProfile struct {
	Model           string
	Temperature     float64
	MaxOutputTokens int
}

type ModelRouterConfig struct {
	StandardModel  string
	LongInputModel string

	// Extracted texts longer than this many characters route to the
	// long-input model.
	LongInputThreshold int
}

// ModelRouter picks the model profile for a scoring call based on how much
// text the extractor produced. Either way a single call is made; the router
// never drives retries or fallback calls.
type ModelRouter struct {
	config ModelRouterConfig
}

func NewModelRouter(config ModelRouterConfig) *ModelRouter {
	if strings.TrimSpace(config.StandardModel) == "" {
		config.StandardModel = "gpt-4.1-mini"
	}
	if strings.TrimSpace(config.LongInputModel) == "" {
		config.LongInputModel = "gpt-4.1"
	}
	if config.LongInputThreshold <= 0 {
		config.LongInputThreshold = 24000
	}
	return &ModelRouter{config: config}
}

func (r *ModelRouter) Select(textLength int) ModelProfile {
	if textLength > r.config.LongInputThreshold {
		return ModelProfile{
			Model:           r.config.LongInputModel,
			Temperature:     0.2,
			MaxOutputTokens: 2200,
		}
	}
	return ModelProfile{
		Model:           r.config.StandardModel,
		Temperature:     0.2,
		MaxOutputTokens: 1800,
	}
}
