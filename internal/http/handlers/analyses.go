package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/talentdesk/cv-analysis-back/internal/domain"
	"github.com/talentdesk/cv-analysis-back/internal/repository"
	"github.com/talentdesk/cv-analysis-back/internal/service"
)

// Analyses serves the collection route: listing submitted jobs.
func (api *API) Analyses(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	api.listAnalyses(w, r)
}

// AnalysisByID dispatches the item routes: status, result, reanalyze and
// delete.
func (api *API) AnalysisByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/analyses/")
	segments := strings.Split(strings.Trim(rest, "/"), "/")

	jobID := strings.TrimSpace(segments[0])
	if jobID == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "job id is required")
		return
	}

	switch {
	case len(segments) == 1 && r.Method == http.MethodGet:
		api.analysisStatus(w, r, jobID)
	case len(segments) == 1 && r.Method == http.MethodDelete:
		api.deleteAnalysis(w, r, jobID)
	case len(segments) == 2 && segments[1] == "result" && r.Method == http.MethodGet:
		api.analysisResult(w, r, jobID)
	case len(segments) == 2 && segments[1] == "reanalyze" && r.Method == http.MethodPost:
		api.reanalyze(w, r, jobID)
	default:
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

func (api *API) analysisStatus(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := api.analysisService.Status(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "not_found", "analysis job not found")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal_error", "failed to load analysis job")
		return
	}

	writeJSON(w, http.StatusOK, statusPayload(job))
}

func (api *API) analysisResult(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := api.analysisService.Result(r.Context(), jobID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{
			"job_id":        job.ID,
			"status":        job.Status,
			"overall_score": job.OverallScore,
			"result":        job.Result,
			"processed_at":  formatOptionalTime(job.ProcessedAt),
		})
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "not_found", "analysis job not found")
	case errors.Is(err, service.ErrResultNotReady):
		w.Header().Set("Retry-After", "2")
		writeError(w, r, http.StatusConflict, "not_ready", "analysis is still in progress")
	case errors.Is(err, service.ErrJobFailed):
		writeError(w, r, http.StatusConflict, "job_failed", job.ErrorMessage)
	default:
		writeError(w, r, http.StatusInternalServerError, "internal_error", "failed to load analysis result")
	}
}

func (api *API) reanalyze(w http.ResponseWriter, r *http.Request, jobID string) {
	contextText, ok := readReanalyzeContext(w, r)
	if !ok {
		return
	}

	job, err := api.analysisService.Reanalyze(r.Context(), jobID, contextText)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			writeError(w, r, http.StatusNotFound, "not_found", "analysis job not found")
		case errors.Is(err, service.ErrReanalyzeConflict):
			writeError(w, r, http.StatusConflict, "conflict", "analysis is currently processing")
		default:
			writeError(w, r, http.StatusInternalServerError, "internal_error", "failed to schedule reanalysis")
		}
		return
	}

	api.writeAccepted(w, job.ID, time.Now().UTC())
}

// readReanalyzeContext decodes the optional reanalyze body. An empty body
// keeps the stored context; a present "context" field replaces it.
func readReanalyzeContext(w http.ResponseWriter, r *http.Request) (*string, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "could not read request body")
		return nil, false
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, true
	}

	var payload struct {
		Context *string `json:"context"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "request body must be a JSON object")
		return nil, false
	}
	return payload.Context, true
}

func (api *API) deleteAnalysis(w http.ResponseWriter, r *http.Request, jobID string) {
	if err := api.analysisService.Delete(r.Context(), jobID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "not_found", "analysis job not found")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal_error", "failed to delete analysis job")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (api *API) listAnalyses(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, _ := strconv.Atoi(query.Get("limit"))
	offset, _ := strconv.Atoi(query.Get("offset"))
	if offset < 0 {
		offset = 0
	}

	filter := domain.JobListFilter{
		SubjectRef: strings.TrimSpace(query.Get("subject_ref")),
		Limit:      limit,
		Offset:     offset,
	}

	summaries, total, err := api.analysisService.List(r.Context(), filter)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal_error", "failed to list analysis jobs")
		return
	}

	items := make([]map[string]any, 0, len(summaries))
	for _, summary := range summaries {
		item := map[string]any{
			"job_id":       summary.JobID,
			"status":       summary.Status,
			"format":       summary.Format,
			"subject_refs": summary.SubjectRefs,
			"created_at":   summary.CreatedAt.Format(time.RFC3339Nano),
			"processed_at": formatOptionalTime(summary.ProcessedAt),
		}
		if summary.SubmitterRef != "" {
			item["submitter_ref"] = summary.SubmitterRef
		}
		if summary.Status == domain.JobStatusCompleted {
			item["overall_score"] = summary.OverallScore
		}
		items = append(items, item)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items":    items,
		"total":    total,
		"offset":   offset,
		"has_next": offset+len(items) < total,
	})
}

func statusPayload(job *domain.AnalysisJob) map[string]any {
	payload := map[string]any{
		"job_id":     job.ID,
		"status":     job.Status,
		"format":     job.Format,
		"created_at": job.CreatedAt.Format(time.RFC3339Nano),
		"updated_at": job.UpdatedAt.Format(time.RFC3339Nano),
	}
	if job.ProcessedAt != nil {
		payload["processed_at"] = job.ProcessedAt.Format(time.RFC3339Nano)
	}
	if job.Status == domain.JobStatusCompleted {
		payload["overall_score"] = job.OverallScore
		payload["result_url"] = "/v1/analyses/" + job.ID + "/result"
	}
	if strings.TrimSpace(job.ErrorMessage) != "" {
		payload["error"] = map[string]any{
			"code":    "processing_error",
			"message": job.ErrorMessage,
		}
	}
	return payload
}

func formatOptionalTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.Format(time.RFC3339Nano)
}
