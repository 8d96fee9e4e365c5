package domain

import (
	"fmt"
	"strings"
	"time"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether a job in this status will not move again
// without an explicit reanalysis.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

type DocumentFormat string

const (
	FormatPDF  DocumentFormat = "application/pdf"
	FormatDOCX DocumentFormat = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	FormatDOC  DocumentFormat = "application/msword"
	FormatTXT  DocumentFormat = "text/plain"
)

// ParseDocumentFormat maps a declared content type or a filename extension
// onto the closed set of supported formats.
func ParseDocumentFormat(value string) (DocumentFormat, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if semicolon := strings.Index(normalized, ";"); semicolon >= 0 {
		normalized = strings.TrimSpace(normalized[:semicolon])
	}

	switch normalized {
	case string(FormatPDF), "pdf", ".pdf":
		return FormatPDF, nil
	case string(FormatDOCX), "docx", ".docx":
		return FormatDOCX, nil
	case string(FormatDOC), "doc", ".doc":
		return FormatDOC, nil
	case string(FormatTXT), "txt", ".txt", "text":
		return FormatTXT, nil
	default:
		return "", fmt.Errorf("unsupported document format: %q", value)
	}
}

// AnalysisJob is the persisted lifecycle record for one submitted document.
type AnalysisJob struct {
	ID            string
	DocumentRef   string
	Format        DocumentFormat
	SubmitterRef  string
	SubjectRefs   []string
	ContextText   string
	Status        JobStatus
	ExtractedText string
	Result        *AnalysisResult
	ErrorMessage  string
	OverallScore  int
	CreatedAt     time.Time
	UpdatedAt     time.Time
	ProcessedAt   *time.Time
}

// QueueMessage is the transport format sent to queue backends. Workers load
// the job record by id; the message itself carries only routing metadata.
type QueueMessage struct {
	JobID       string    `json:"job_id"`
	Reanalysis  bool      `json:"reanalysis"`
	Attempt     int       `json:"attempt"`
	RequestedAt time.Time `json:"requested_at"`
}

// JobSummary is the listing projection returned by the list operations.
type JobSummary struct {
	JobID        string
	Status       JobStatus
	Format       DocumentFormat
	SubmitterRef string
	SubjectRefs  []string
	OverallScore int
	CreatedAt    time.Time
	ProcessedAt  *time.Time
}

// JobListFilter drives ListJobs: an optional subject reference plus
// limit/offset pagination. Limit and Offset are normalized by repositories.
type JobListFilter struct {
	SubjectRef string
	Limit      int
	Offset     int
}
