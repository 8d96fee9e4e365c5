package service

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/talentdesk/cv-analysis-back/internal/domain"
)

const analysisResultSchema = `{
  "type": "object",
  "required": ["section_completeness", "relevance_score", "overall_score"],
  "properties": {
    "section_completeness": {
      "type": "object",
      "properties": {
        "contact": {"type": "number", "minimum": 0, "maximum": 1},
        "summary": {"type": "number", "minimum": 0, "maximum": 1},
        "experience": {"type": "number", "minimum": 0, "maximum": 1},
        "education": {"type": "number", "minimum": 0, "maximum": 1},
        "skills": {"type": "number", "minimum": 0, "maximum": 1},
        "certifications": {"type": "number", "minimum": 0, "maximum": 1}
      }
    },
    "relevance_score": {"type": "integer", "minimum": 0, "maximum": 100},
    "grammar_issues": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "text": {"type": "string"},
          "suggestion": {"type": "string"}
        }
      }
    },
    "formatting_issues": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "section": {"type": "string"},
          "issue": {"type": "string"},
          "suggestion": {"type": "string"}
        }
      }
    },
    "suggestions": {"type": "array", "items": {"type": "string"}},
    "strengths": {"type": "array", "items": {"type": "string"}},
    "weaknesses": {"type": "array", "items": {"type": "string"}},
    "overall_score": {"type": "integer", "minimum": 0, "maximum": 100}
  }
}`

var analysisSchema = jsonschema.MustCompileString("analysis_result.json", analysisResultSchema)

// parseAnalysisResult turns raw model output into a normalized result. The
// strict path requires schema-valid JSON; when that fails, a lenient pass
// salvages recognizable fields. Only totally unusable output produces the
// neutral fallback, reported through the second return value.
func parseAnalysisResult(text string) (*domain.AnalysisResult, bool) {
	raw, err := extractJSON(text)
	if err != nil {
		return fallbackResult(), true
	}

	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fallbackResult(), true
	}

	if err := analysisSchema.Validate(decoded); err == nil {
		result := &domain.AnalysisResult{}
		if err := json.Unmarshal(raw, result); err == nil {
			return result.Normalize(), false
		}
	}

	if lenient := parseLenientResult(raw); lenient != nil {
		return lenient.Normalize(), false
	}
	return fallbackResult(), true
}

// parseLenientResult accepts scores encoded as floats or numeric strings and
// tolerates missing collections. It returns nil when the payload carries no
// usable score at all.
func parseLenientResult(raw []byte) *domain.AnalysisResult {
	var loose struct {
		SectionCompleteness map[string]any           `json:"section_completeness"`
		RelevanceScore      any                      `json:"relevance_score"`
		GrammarIssues       []domain.GrammarIssue    `json:"grammar_issues"`
		FormattingIssues    []domain.FormattingIssue `json:"formatting_issues"`
		Suggestions         []string                 `json:"suggestions"`
		Strengths           []string                 `json:"strengths"`
		Weaknesses          []string                 `json:"weaknesses"`
		OverallScore        any                      `json:"overall_score"`
	}
	if err := json.Unmarshal(raw, &loose); err != nil {
		return nil
	}

	// An absent score defaults to zero; values are never invented from the
	// other field.
	overall, hasOverall := asScore(loose.OverallScore)
	relevance, hasRelevance := asScore(loose.RelevanceScore)
	if !hasOverall && !hasRelevance {
		return nil
	}

	result := &domain.AnalysisResult{
		RelevanceScore:   relevance,
		GrammarIssues:    loose.GrammarIssues,
		FormattingIssues: loose.FormattingIssues,
		Suggestions:      loose.Suggestions,
		Strengths:        loose.Strengths,
		Weaknesses:       loose.Weaknesses,
		OverallScore:     overall,
	}
	result.SectionCompleteness = domain.SectionCompleteness{
		Contact:        asUnit(loose.SectionCompleteness["contact"]),
		Summary:        asUnit(loose.SectionCompleteness["summary"]),
		Experience:     asUnit(loose.SectionCompleteness["experience"]),
		Education:      asUnit(loose.SectionCompleteness["education"]),
		Skills:         asUnit(loose.SectionCompleteness["skills"]),
		Certifications: asUnit(loose.SectionCompleteness["certifications"]),
	}
	return result
}

// fallbackResult is the neutral output stored when the model returned
// something no parser could use. The score of 50 keeps downstream consumers
// working without signaling either a strong or a weak document.
func fallbackResult() *domain.AnalysisResult {
	result := &domain.AnalysisResult{
		RelevanceScore: 50,
		OverallScore:   50,
		Suggestions: []string{
			"Automated analysis was inconclusive. Resubmitting the document may produce a full report.",
		},
		Weaknesses: []string{
			"The analysis engine could not fully evaluate this document.",
		},
	}
	return result.Normalize()
}

func extractJSON(text string) ([]byte, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, errors.New("empty model output")
	}

	if strings.HasPrefix(trimmed, "```") {
		trimmed = stripCodeFence(trimmed)
	}

	var decoded any
	if err := json.Unmarshal([]byte(trimmed), &decoded); err == nil {
		return []byte(trimmed), nil
	}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start >= 0 && end > start {
		candidate := trimmed[start : end+1]
		if err := json.Unmarshal([]byte(candidate), &decoded); err == nil {
			return []byte(candidate), nil
		}
	}

	return nil, errors.New("model output is not valid JSON")
}

func stripCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimPrefix(trimmed, "json")
	trimmed = strings.TrimSuffix(trimmed, "```")
	return strings.TrimSpace(trimmed)
}

func asScore(value any) (int, bool) {
	switch casted := value.(type) {
	case float64:
		return int(casted), true
	case json.Number:
		parsed, err := casted.Float64()
		if err != nil {
			return 0, false
		}
		return int(parsed), true
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(casted), 64)
		if err != nil {
			return 0, false
		}
		return int(parsed), true
	default:
		return 0, false
	}
}

func asUnit(value any) float64 {
	switch casted := value.(type) {
	case float64:
		return casted
	case json.Number:
		parsed, err := casted.Float64()
		if err != nil {
			return 0
		}
		return parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(casted), 64)
		if err != nil {
			return 0
		}
		return parsed
	default:
		return 0
	}
}
