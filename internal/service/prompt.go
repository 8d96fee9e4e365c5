package service

import (
	"strings"
)

const scoringPromptVersion = "cv_score_v1"

const scoringInstructions = "You are an expert resume reviewer. " +
	"Return only valid JSON. Do not use markdown code fences."

// buildScoringPrompt assembles the single user prompt sent to the scoring
// model. When job context is present the relevance score is judged against
// it; otherwise relevance reflects internal consistency of the document.
func buildScoringPrompt(text, contextText string) string {
	builder := strings.Builder{}
	builder.Grow(len(text) + len(contextText) + 2048)

	builder.WriteString("Analyze the resume below and score it.\n\n")
	builder.WriteString("Scoring weights for overall_score (0-100):\n")
	builder.WriteString("- 30% section completeness (contact, summary, experience, education, skills, certifications)\n")
	builder.WriteString("- 30% relevance\n")
	builder.WriteString("- 20% grammar and writing quality\n")
	builder.WriteString("- 20% formatting and structure\n\n")

	if strings.TrimSpace(contextText) != "" {
		builder.WriteString("Target role or job description. Judge relevance against it:\n")
		builder.WriteString("---\n")
		builder.WriteString(strings.TrimSpace(contextText))
		builder.WriteString("\n---\n\n")
	} else {
		builder.WriteString("No target role was provided. Judge relevance as the internal ")
		builder.WriteString("consistency between the candidate's stated goals and their history.\n\n")
	}

	builder.WriteString("Respond with a single JSON object matching exactly this shape:\n")
	builder.WriteString(`{
  "section_completeness": {
    "contact": 0.0,
    "summary": 0.0,
    "experience": 0.0,
    "education": 0.0,
    "skills": 0.0,
    "certifications": 0.0
  },
  "relevance_score": 0,
  "grammar_issues": [{"text": "", "suggestion": ""}],
  "formatting_issues": [{"section": "", "issue": "", "suggestion": ""}],
  "suggestions": [""],
  "strengths": [""],
  "weaknesses": [""],
  "overall_score": 0
}`)
	builder.WriteString("\n\nSection completeness values are fractions in [0.0, 1.0]. ")
	builder.WriteString("Scores are integers in [0, 100].\n\n")
	builder.WriteString("Resume text:\n---\n")
	builder.WriteString(strings.TrimSpace(text))
	builder.WriteString("\n---\n")

	return builder.String()
}
