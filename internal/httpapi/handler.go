// Package httpapi exposes the engine's thin net/http read-model API: the
// progress and metrics polling endpoints and the UploadDocument action,
// grounded on the teacher's internal/app/httpapi handler shape (a single
// mux-backed handler struct, helper writeJSON/writeError/decodeJSON, one
// method per resource).
package httpapi

import (
	"net/http"
	"strings"

	"github.com/docuflow/enginecore/internal/app"
	"github.com/docuflow/enginecore/internal/logger"
	"github.com/docuflow/enginecore/internal/metrics"
)

type handler struct {
	app *app.Application
	log *logger.Logger
}

// NewHandler returns a mux exposing the upload action and the progress/
// metrics read-model endpoints.
func NewHandler(application *app.Application, log *logger.Logger) http.Handler {
	if log == nil {
		log = logger.NewDefault("http")
	}
	h := &handler{app: application, log: log}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", h.health)
	mux.HandleFunc("/documents", h.upload)
	mux.HandleFunc("/documents/", h.documentResource)
	return mux
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// documentResource dispatches /documents/{uuid}/progress and
// /documents/{uuid}/metrics by trailing path segment.
func (h *handler) documentResource(w http.ResponseWriter, r *http.Request) {
	uuid, resource, ok := splitDocumentPath(r.URL.Path)
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	switch resource {
	case "progress":
		h.progress(w, r, uuid)
	case "metrics":
		h.metrics(w, r, uuid)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func splitDocumentPath(path string) (uuid, resource string, ok bool) {
	trimmed := strings.Trim(strings.TrimPrefix(path, "/documents"), "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
