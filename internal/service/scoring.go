package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/talentdesk/cv-analysis-back/internal/ai"
	"github.com/talentdesk/cv-analysis-back/internal/cache"
	"github.com/talentdesk/cv-analysis-back/internal/domain"
)

// ErrTextTooShort rejects documents whose extracted text is too small to
// score meaningfully.
var ErrTextTooShort = errors.New("extracted text is too short to analyze")

const minAnalyzableChars = 50

type ScoringDependencies struct {
	Router *ai.ModelRouter
	Client ai.TextGenerator
	Cache  *cache.ResultCache
	Logger *log.Logger
}

// ScoringService turns extracted document text into an AnalysisResult with
// exactly one outbound model call. Infrastructure failures surface as
// classified errors; malformed model output degrades to a neutral result
// instead of failing the job.
type ScoringService struct {
	router *ai.ModelRouter
	client ai.TextGenerator
	cache  *cache.ResultCache
	logger *log.Logger
}

type ScoringOutcome struct {
	Result       *domain.AnalysisResult
	ModelID      string
	CacheHit     bool
	UsedFallback bool
}

func NewScoringService(deps ScoringDependencies) *ScoringService {
	if deps.Router == nil {
		deps.Router = ai.NewModelRouter(ai.ModelRouterConfig{})
	}
	if deps.Cache == nil {
		deps.Cache = cache.NewResultCache(cache.Config{})
	}
	return &ScoringService{
		router: deps.Router,
		client: deps.Client,
		cache:  deps.Cache,
		logger: deps.Logger,
	}
}

func (s *ScoringService) Analyze(ctx context.Context, text, contextText string) (ScoringOutcome, error) {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) < minAnalyzableChars {
		return ScoringOutcome{}, fmt.Errorf("%w: %d characters", ErrTextTooShort, len(trimmed))
	}

	signature := s.cache.BuildSignature(scoringPromptVersion, contextText, trimmed)
	if cached, ok := s.cache.Get(signature); ok {
		result := &domain.AnalysisResult{}
		if err := json.Unmarshal(cached.Value, result); err == nil {
			return ScoringOutcome{
				Result:   result.Normalize(),
				ModelID:  firstNonEmpty(cached.ModelID, "cache-hit"),
				CacheHit: true,
			}, nil
		}
	}

	if s.client == nil || !s.client.Available() {
		return ScoringOutcome{}, ai.ErrScoringNotConfigured
	}

	profile := s.router.Select(len(trimmed))
	generated, err := s.client.Generate(ctx, ai.GenerateRequest{
		Model:           profile.Model,
		Instructions:    scoringInstructions,
		Input:           buildScoringPrompt(trimmed, contextText),
		Temperature:     profile.Temperature,
		MaxOutputTokens: profile.MaxOutputTokens,
	})
	if err != nil {
		return ScoringOutcome{}, fmt.Errorf("generate analysis: %w", err)
	}

	modelID := firstNonEmpty(generated.ModelID, profile.Model)
	result, usedFallback := parseAnalysisResult(generated.Text)
	if usedFallback {
		s.logf("unusable model output for scoring, storing neutral result model=%s", modelID)
		return ScoringOutcome{Result: result, ModelID: modelID, UsedFallback: true}, nil
	}

	if encoded, marshalErr := json.Marshal(result); marshalErr == nil {
		s.cache.Set(signature, cache.Entry{
			Value:         encoded,
			ModelID:       modelID,
			PromptVersion: scoringPromptVersion,
		})
	}

	return ScoringOutcome{Result: result, ModelID: modelID}, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func (s *ScoringService) logf(format string, args ...any) {
	if s.logger == nil {
		return
	}
	s.logger.Printf(format, args...)
}
