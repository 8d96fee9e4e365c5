package domain

// SectionCompleteness scores each canonical resume section in [0.0, 1.0].
type SectionCompleteness struct {
	Contact        float64 `json:"contact"`
	Summary        float64 `json:"summary"`
	Experience     float64 `json:"experience"`
	Education      float64 `json:"education"`
	Skills         float64 `json:"skills"`
	Certifications float64 `json:"certifications"`
}

type GrammarIssue struct {
	Text       string `json:"text"`
	Suggestion string `json:"suggestion"`
}

type FormattingIssue struct {
	Section    string `json:"section"`
	Issue      string `json:"issue"`
	Suggestion string `json:"suggestion"`
}

// AnalysisResult is the normalized scoring output. Stored results are always
// fully populated: collections are non-nil and scores sit inside their
// ranges, so readers never need nil checks or clamping of their own.
type AnalysisResult struct {
	SectionCompleteness SectionCompleteness `json:"section_completeness"`
	RelevanceScore      int                 `json:"relevance_score"`
	GrammarIssues       []GrammarIssue      `json:"grammar_issues"`
	FormattingIssues    []FormattingIssue   `json:"formatting_issues"`
	Suggestions         []string            `json:"suggestions"`
	Strengths           []string            `json:"strengths"`
	Weaknesses          []string            `json:"weaknesses"`
	OverallScore        int                 `json:"overall_score"`
}

// Normalize clamps every score into range and replaces nil collections with
// empty ones, returning the same result for chaining.
func (r *AnalysisResult) Normalize() *AnalysisResult {
	r.SectionCompleteness.Contact = clampUnit(r.SectionCompleteness.Contact)
	r.SectionCompleteness.Summary = clampUnit(r.SectionCompleteness.Summary)
	r.SectionCompleteness.Experience = clampUnit(r.SectionCompleteness.Experience)
	r.SectionCompleteness.Education = clampUnit(r.SectionCompleteness.Education)
	r.SectionCompleteness.Skills = clampUnit(r.SectionCompleteness.Skills)
	r.SectionCompleteness.Certifications = clampUnit(r.SectionCompleteness.Certifications)

	r.RelevanceScore = clampScore(r.RelevanceScore)
	r.OverallScore = clampScore(r.OverallScore)

	if r.GrammarIssues == nil {
		r.GrammarIssues = []GrammarIssue{}
	}
	if r.FormattingIssues == nil {
		r.FormattingIssues = []FormattingIssue{}
	}
	if r.Suggestions == nil {
		r.Suggestions = []string{}
	}
	if r.Strengths == nil {
		r.Strengths = []string{}
	}
	if r.Weaknesses == nil {
		r.Weaknesses = []string{}
	}
	return r
}

func clampUnit(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}

func clampScore(value int) int {
	if value < 0 {
		return 0
	}
	if value > 100 {
		return 100
	}
	return value
}
