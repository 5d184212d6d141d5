package v1

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"docpipe/cmd/app/models/v1"
	"docpipe/cmd/app/types"
	pipeline "docpipe/internal/models"
	"docpipe/internal/ui"
	"docpipe/internal/workflow"

	"github.com/go-chi/chi/v5"
)

func SessionPost(rc types.RouteConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, err := rc.Sessions.Create()
		if err != nil {
			renderError(w, r, fmt.Errorf("failed to create session: %w", err))
			return
		}
		render(w, r, http.StatusCreated, models.Session{ID: e.ID, View: ui.Render(e.Session.Snapshot())})
	}
}

func SessionGet(rc types.RouteConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, ok := entry(rc, w, r)
		if !ok {
			return
		}
		view := ui.Render(e.Session.Snapshot())
		if strings.Contains(r.Header.Get("Accept"), "text/plain") {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(http.StatusOK)
			if err := ui.WriteText(w, view); err != nil {
				slog.Error("Error writing response", slog.String("error", err.Error()))
			}
			return
		}
		render(w, r, http.StatusOK, models.Session{ID: e.ID, View: view})
	}
}

func SessionDelete(rc types.RouteConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := rc.Sessions.Delete(chi.URLParam(r, "id")); err != nil {
			renderError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// UploadPost stores the multipart "file" field as the session's document.
func UploadPost(rc types.RouteConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, ok := entry(rc, w, r)
		if !ok {
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, workflow.MaxUploadBytes)
		file, header, err := r.FormFile("file")
		if err != nil {
			renderError(w, r, badRequest(fmt.Errorf("file is required: %w", err)))
			return
		}
		defer file.Close()

		if _, err := e.Session.Upload(r.Context(), header.Filename, file); err != nil {
			renderError(w, r, err)
			return
		}
		render(w, r, http.StatusCreated, models.Session{ID: e.ID, View: ui.Render(e.Session.Snapshot())})
	}
}

// StartPost submits a job of kind. Status polling continues in the background.
func StartPost(rc types.RouteConfig, kind pipeline.JobKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, ok := entry(rc, w, r)
		if !ok {
			return
		}
		jobID, err := e.Session.Start(r.Context(), kind)
		if err != nil {
			renderError(w, r, err)
			return
		}
		render(w, r, http.StatusAccepted, models.JobStarted{
			ID:    e.ID,
			Kind:  kind,
			JobID: jobID,
			View:  ui.Render(e.Session.Snapshot()),
		})
	}
}

func ParamsPut(rc types.RouteConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, ok := entry(rc, w, r)
		if !ok {
			return
		}
		// Fields missing from the body keep their current values.
		params := e.Session.Snapshot().Params
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
			renderError(w, r, badRequest(fmt.Errorf("invalid request body: %w", err)))
			return
		}
		if err := e.Session.SetParams(params); err != nil {
			renderError(w, r, badRequest(err))
			return
		}
		render(w, r, http.StatusOK, models.Session{ID: e.ID, View: ui.Render(e.Session.Snapshot())})
	}
}

func AskPost(rc types.RouteConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, ok := entry(rc, w, r)
		if !ok {
			return
		}
		var payload models.AskPost
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			renderError(w, r, badRequest(fmt.Errorf("invalid request body: %w", err)))
			return
		}

		e.Session.SetQuestion(payload.Question)
		answer, err := e.Session.Ask(r.Context())
		if err != nil {
			renderError(w, r, err)
			return
		}
		render(w, r, http.StatusOK, models.Answer{
			ID:     e.ID,
			Answer: answer,
			View:   ui.Render(e.Session.Snapshot()),
		})
	}
}

func ResetPost(rc types.RouteConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, ok := entry(rc, w, r)
		if !ok {
			return
		}
		e.Session.StartOver()
		render(w, r, http.StatusOK, models.Session{ID: e.ID, View: ui.Render(e.Session.Snapshot())})
	}
}

// ResumePost restarts polling for a job whose polling stopped.
func ResumePost(rc types.RouteConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, ok := entry(rc, w, r)
		if !ok {
			return
		}
		kind, ok := pipeline.ParseJobKind(chi.URLParam(r, "kind"))
		if !ok {
			renderError(w, r, badRequest(fmt.Errorf("unknown job kind %q", chi.URLParam(r, "kind"))))
			return
		}
		if err := e.Session.Resume(kind); err != nil {
			renderError(w, r, err)
			return
		}
		render(w, r, http.StatusAccepted, models.Session{ID: e.ID, View: ui.Render(e.Session.Snapshot())})
	}
}

// DownloadGet returns the download link of the extracted text, requesting a
// new one when none is held or the held one expired.
func DownloadGet(rc types.RouteConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, ok := entry(rc, w, r)
		if !ok {
			return
		}

		st := e.Session.Snapshot()
		if st.DownloadURL == "" || !st.DownloadExpiresAt.After(timeNow()) {
			if _, err := e.Session.ResolveDownload(r.Context()); err != nil {
				renderError(w, r, err)
				return
			}
			st = e.Session.Snapshot()
		}
		render(w, r, http.StatusOK, models.Download{
			ID:        e.ID,
			URL:       st.DownloadURL,
			ExpiresAt: st.DownloadExpiresAt,
		})
	}
}

// requestError marks client errors that carry no sentinel of their own.
type requestError struct{ err error }

func (e *requestError) Error() string { return e.err.Error() }
func (e *requestError) Unwrap() error { return e.err }

func badRequest(err error) error { return &requestError{err: err} }

func isRequestError(err error) bool {
	var re *requestError
	return errors.As(err, &re)
}
