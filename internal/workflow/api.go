package workflow

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"docpipe/internal/models"
	"docpipe/internal/orchestrator"
)

// MaxUploadBytes bounds the multipart body of a workflow request.
const MaxUploadBytes = 64 << 20

// APIResponse represents the API response from workflow execution
type APIResponse struct {
	Status    string          `json:"status"` // "success", "partial", "failed"
	Message   string          `json:"message"`
	Workflow  *WorkflowOutput `json:"workflow"`
	Error     string          `json:"error,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// ExecuteWorkflowHandler runs the whole pipeline for a multipart upload.
//
// Form fields: file (required), question (repeatable), skip_embedding,
// skip_summary and params (JSON summarization parameters).
func ExecuteWorkflowHandler(orch orchestrator.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := slog.Default()

		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)
		if err := r.ParseMultipartForm(MaxUploadBytes); err != nil {
			logger.Error("failed to parse request", "error", err)
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "file is required")
			return
		}
		defer file.Close()

		input := WorkflowInput{
			FileName:  filepath.Base(header.Filename),
			Content:   file,
			Questions: r.MultipartForm.Value["question"],
		}
		if input.SkipEmbedding, err = formBool(r, "skip_embedding"); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if input.SkipSummary, err = formBool(r, "skip_summary"); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if raw := r.FormValue("params"); raw != "" {
			params := models.DefaultSummarizeParams()
			if err := json.Unmarshal([]byte(raw), &params); err != nil {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid params: %v", err))
				return
			}
			if err := params.Validate(); err != nil {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid params: %v", err))
				return
			}
			input.Params = &params
		}

		logger.Info("workflow API request",
			"file", input.FileName,
			"size", header.Size,
			"questions", len(input.Questions),
		)

		// Execute workflow
		workflowOutput, err := ExecuteWorkflow(r.Context(), input, orch)

		// Build response
		response := APIResponse{
			Timestamp: time.Now(),
			Status:    workflowOutput.Status,
			Workflow:  workflowOutput,
		}

		switch workflowOutput.Status {
		case StatusSuccess:
			response.Message = fmt.Sprintf("Workflow completed successfully. Document: %s", workflowOutput.Document.ID)
		case StatusPartial:
			response.Message = fmt.Sprintf(
				"Workflow completed with warnings. Document: %s. Warnings: %d",
				workflowOutput.Document.ID,
				len(workflowOutput.Warnings),
			)
		default:
			response.Message = "Workflow failed"
		}

		if err != nil {
			response.Error = err.Error()
			logger.Error("workflow execution error", "error", err)
		}

		// Determine HTTP status code
		statusCode := http.StatusOK
		switch response.Status {
		case StatusFailed:
			statusCode = http.StatusInternalServerError
		case StatusPartial:
			statusCode = http.StatusAccepted
		case StatusSuccess:
			statusCode = http.StatusCreated
		}

		// Write response
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		json.NewEncoder(w).Encode(response)

		logger.Info("workflow API response",
			"status", response.Status,
			"http_status", statusCode,
			"duration", workflowOutput.TotalDuration,
		)
	}
}

func formBool(r *http.Request, name string) (bool, error) {
	raw := r.FormValue(name)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean: %q", name, raw)
	}
	return v, nil
}

// Helper functions

func writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    "error",
		"error":     message,
		"timestamp": time.Now(),
	})
}
