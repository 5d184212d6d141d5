package v1

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"docpipe/cmd/app/core/middleware"
	"docpipe/cmd/app/models/v1"
	"docpipe/cmd/app/types"
	"docpipe/internal/api"
	pipeline "docpipe/internal/models"
	"docpipe/internal/poller"
	"docpipe/internal/resolver"
	"docpipe/internal/session"
	"docpipe/internal/upload"
	"docpipe/internal/workflow"

	"github.com/go-chi/chi/v5"
)

var timeNow = time.Now

// Routes returns the version 1 API.
func Routes(rc types.RouteConfig) http.Handler {
	r := chi.NewRouter()
	r.Get("/health", GetHealth(rc))
	r.Post("/workflow", workflow.ExecuteWorkflowHandler(rc.Orchestrator))

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", SessionPost(rc))
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", SessionGet(rc))
			r.Delete("/", SessionDelete(rc))
			r.Get("/events", SessionEvents(rc))
			r.Post("/upload", UploadPost(rc))
			r.Post("/extract", StartPost(rc, pipeline.KindExtraction))
			r.Post("/embed", StartPost(rc, pipeline.KindEmbedding))
			r.Post("/summarize", StartPost(rc, pipeline.KindSummarization))
			r.Put("/params", ParamsPut(rc))
			r.Post("/ask", AskPost(rc))
			r.Post("/reset", ResetPost(rc))
			r.Post("/resume/{kind}", ResumePost(rc))
			r.Get("/download", DownloadGet(rc))
		})
	})
	return r
}

func GetHealth(rc types.RouteConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := models.Health{Status: "ok"}
		if rc.Sessions != nil {
			health.Sessions = rc.Sessions.Len()
		}
		render(w, r, http.StatusOK, health)
	}
}

// entry looks up the session named in the URL and renders 404 when it is unknown.
func entry(rc types.RouteConfig, w http.ResponseWriter, r *http.Request) (*session.Entry, bool) {
	e, err := rc.Sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		renderError(w, r, err)
		return nil, false
	}
	return e, true
}

// errorResponse maps an error to its HTTP response.
func errorResponse(err error) *types.Response {
	var (
		qaErr     *api.QAError
		statusErr *api.StatusError
	)
	switch {
	case isRequestError(err):
		return types.BadRequest(err)
	case errors.Is(err, session.ErrNotFound), errors.Is(err, resolver.ErrNoOutput):
		return types.NotFound(err)
	case errors.Is(err, upload.ErrInvalidName), errors.Is(err, session.ErrEmptyQuestion):
		return types.BadRequest(err)
	case errors.Is(err, session.ErrNoDocument),
		errors.Is(err, session.ErrDocumentActive),
		errors.Is(err, session.ErrJobActive),
		errors.Is(err, session.ErrExtractionNotDone),
		errors.Is(err, session.ErrTextNotReady),
		errors.Is(err, session.ErrEmbeddingNotDone),
		errors.Is(err, session.ErrInFlight),
		errors.Is(err, session.ErrSessionReset),
		errors.Is(err, session.ErrNotPolling),
		errors.Is(err, poller.ErrAlreadyScheduled):
		return types.Conflict(err)
	case errors.Is(err, api.ErrSubmission), errors.As(err, &qaErr), errors.As(err, &statusErr):
		return types.BadGateway(err)
	case errors.Is(err, context.DeadlineExceeded):
		return &types.Response{Code: http.StatusGatewayTimeout, Error: err.Error()}
	}
	return types.InternalError(err)
}

func renderError(w http.ResponseWriter, r *http.Request, err error) {
	resp := errorResponse(err)
	if resp.Code >= http.StatusInternalServerError {
		slog.Error("Request failed",
			slog.String("request_id", middleware.RequestID(r.Context())),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
	if err := resp.Render(w, r); err != nil {
		slog.Error("Error writing response",
			slog.String("request_id", middleware.RequestID(r.Context())),
			slog.String("error", err.Error()),
		)
	}
}

func render(w http.ResponseWriter, r *http.Request, code int, v any) {
	if err := types.JSON(w, code, v); err != nil {
		slog.Error("Error writing response",
			slog.String("request_id", middleware.RequestID(r.Context())),
			slog.String("error", err.Error()),
		)
	}
}
