package handlers

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/talentdesk/cv-analysis-back/internal/service"
)

// Documents accepts multipart document uploads and answers 202 with the
// pending job while the pipeline runs in the background.
func (api *API) Documents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	idempotencyKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if idempotencyKey != "" && len(idempotencyKey) < 16 {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "Idempotency-Key must be at least 16 characters")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, api.maxUploadBytes)
	if err := r.ParseMultipartForm(api.maxUploadBytes); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "could not parse multipart upload")
		return
	}

	file, header, err := r.FormFile("document")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "document file field is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "could not read uploaded document")
		return
	}

	contextText := r.FormValue("context")
	submitterRef := r.FormValue("submitter_ref")
	subjectRefs := splitRefs(r.FormValue("subject_refs"))

	payloadHash := hashUpload(data, header.Filename, contextText, submitterRef)
	if idempotencyKey != "" {
		if entry, exists := api.idempotency.Get(idempotencyKey); exists {
			if entry.PayloadHash != payloadHash {
				writeError(w, r, http.StatusConflict, "idempotency_conflict", "Idempotency-Key already used with different payload")
				return
			}
			api.writeAccepted(w, entry.JobID, entry.CreatedAt)
			return
		}
	}

	job, err := api.analysisService.Submit(r.Context(), service.SubmitInput{
		Data:         data,
		Filename:     header.Filename,
		ContentType:  header.Header.Get("Content-Type"),
		SubmitterRef: submitterRef,
		SubjectRefs:  subjectRefs,
		ContextText:  contextText,
	})
	if err != nil {
		if strings.Contains(err.Error(), "unsupported document format") {
			writeError(w, r, http.StatusUnsupportedMediaType, "unsupported_format", "the document format is not supported")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal_error", "failed to accept document")
		return
	}

	if idempotencyKey != "" {
		api.idempotency.Put(idempotencyKey, payloadHash, job.ID)
	}

	api.writeAccepted(w, job.ID, job.CreatedAt)
}

func (api *API) writeAccepted(w http.ResponseWriter, jobID string, acceptedAt time.Time) {
	w.Header().Set("Retry-After", "2")
	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":      jobID,
		"status":      "pending",
		"status_url":  "/v1/analyses/" + jobID,
		"accepted_at": acceptedAt.Format(time.RFC3339Nano),
	})
}

func splitRefs(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	refs := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			refs = append(refs, trimmed)
		}
	}
	return refs
}
