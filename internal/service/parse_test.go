package service

import (
	"testing"
)

func TestParseAnalysisResultStrictJSON(t *testing.T) {
	output := `{
		"section_completeness": {"contact": 1, "summary": 0.5, "experience": 0.9, "education": 0.8, "skills": 0.7, "certifications": 0},
		"relevance_score": 78,
		"grammar_issues": [{"text": "recieved", "suggestion": "received"}],
		"formatting_issues": [],
		"suggestions": ["Quantify achievements"],
		"strengths": ["Strong experience section"],
		"weaknesses": ["Missing certifications"],
		"overall_score": 82
	}`

	result, usedFallback := parseAnalysisResult(output)
	if usedFallback {
		t.Fatal("valid JSON should not fall back")
	}
	if result.OverallScore != 82 || result.RelevanceScore != 78 {
		t.Fatalf("unexpected scores: %d / %d", result.OverallScore, result.RelevanceScore)
	}
	if result.SectionCompleteness.Summary != 0.5 {
		t.Fatalf("unexpected summary completeness: %v", result.SectionCompleteness.Summary)
	}
	if len(result.GrammarIssues) != 1 || result.GrammarIssues[0].Suggestion != "received" {
		t.Fatalf("unexpected grammar issues: %+v", result.GrammarIssues)
	}
}

func TestParseAnalysisResultStripsCodeFence(t *testing.T) {
	output := "```json\n{\"section_completeness\": {}, \"relevance_score\": 60, \"overall_score\": 70}\n```"

	result, usedFallback := parseAnalysisResult(output)
	if usedFallback {
		t.Fatal("fenced JSON should not fall back")
	}
	if result.OverallScore != 70 {
		t.Fatalf("unexpected overall score: %d", result.OverallScore)
	}
}

func TestParseAnalysisResultFindsEmbeddedObject(t *testing.T) {
	output := `Here is the analysis you asked for: {"section_completeness": {}, "relevance_score": 55, "overall_score": 61} hope it helps`

	result, usedFallback := parseAnalysisResult(output)
	if usedFallback {
		t.Fatal("embedded JSON should not fall back")
	}
	if result.OverallScore != 61 {
		t.Fatalf("unexpected overall score: %d", result.OverallScore)
	}
}

func TestParseAnalysisResultLenientNumericStrings(t *testing.T) {
	output := `{"overall_score": "74", "relevance_score": 68.4, "section_completeness": {"contact": "0.9"}}`

	result, usedFallback := parseAnalysisResult(output)
	if usedFallback {
		t.Fatal("salvageable payload should not fall back")
	}
	if result.OverallScore != 74 {
		t.Fatalf("string score not salvaged: %d", result.OverallScore)
	}
	if result.RelevanceScore != 68 {
		t.Fatalf("float score not truncated: %d", result.RelevanceScore)
	}
	if result.SectionCompleteness.Contact != 0.9 {
		t.Fatalf("string unit not salvaged: %v", result.SectionCompleteness.Contact)
	}
}

func TestParseAnalysisResultDefaultsMissingScoreToZero(t *testing.T) {
	result, usedFallback := parseAnalysisResult(`{"relevance_score": "66"}`)
	if usedFallback {
		t.Fatal("payload with one score should not fall back")
	}
	if result.RelevanceScore != 66 {
		t.Fatalf("present score lost: %d", result.RelevanceScore)
	}
	if result.OverallScore != 0 {
		t.Fatalf("absent score must default to zero, got %d", result.OverallScore)
	}

	result, usedFallback = parseAnalysisResult(`{"overall_score": 74}`)
	if usedFallback {
		t.Fatal("payload with one score should not fall back")
	}
	if result.OverallScore != 74 || result.RelevanceScore != 0 {
		t.Fatalf("unexpected scores: %d / %d", result.OverallScore, result.RelevanceScore)
	}
}

func TestParseAnalysisResultProseFallsBack(t *testing.T) {
	result, usedFallback := parseAnalysisResult("I am sorry, I cannot evaluate this document.")
	if !usedFallback {
		t.Fatal("prose output must produce the neutral fallback")
	}
	if result.OverallScore != 50 || result.RelevanceScore != 50 {
		t.Fatalf("fallback must score 50: %d / %d", result.OverallScore, result.RelevanceScore)
	}
	if len(result.Suggestions) == 0 || len(result.Weaknesses) == 0 {
		t.Fatal("fallback must explain itself")
	}
}

func TestParseAnalysisResultClampsOutOfRangeScores(t *testing.T) {
	output := `{"overall_score": 140, "relevance_score": -3, "section_completeness": {"contact": 1.7}}`

	result, usedFallback := parseAnalysisResult(output)
	if usedFallback {
		t.Fatal("out-of-range payload should be salvaged, not dropped")
	}
	if result.OverallScore != 100 {
		t.Fatalf("overall score not clamped: %d", result.OverallScore)
	}
	if result.RelevanceScore != 0 {
		t.Fatalf("relevance score not clamped: %d", result.RelevanceScore)
	}
	if result.SectionCompleteness.Contact != 1 {
		t.Fatalf("completeness not clamped: %v", result.SectionCompleteness.Contact)
	}
}
