// Package httpapi is the boundary layer: request decoding, cheap
// validation and job submission. All real work happens behind the
// catalog, ledger, queue and storage interfaces.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"videoforge/internal/catalog"
	"videoforge/internal/config"
	"videoforge/internal/errs"
	"videoforge/internal/ledger"
	"videoforge/internal/queue"
	"videoforge/internal/storage"
)

type Server struct {
	catalog catalog.Store
	ledger  ledger.Store
	queue   queue.Queue
	storage *storage.Manager
	cfg     *config.Config
	logger  *slog.Logger
}

func NewServer(cat catalog.Store, led ledger.Store, q queue.Queue, st *storage.Manager, cfg *config.Config, logger *slog.Logger) *Server {
	return &Server{catalog: cat, ledger: led, queue: q, storage: st, cfg: cfg, logger: logger}
}

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/videos/upload", s.handleUpload).Methods(http.MethodPost)
	api.HandleFunc("/videos", s.handleListVideos).Methods(http.MethodGet)
	api.HandleFunc("/videos/{id}", s.handleGetVideo).Methods(http.MethodGet)
	api.HandleFunc("/videos/{id}/artifacts", s.handleListArtifacts).Methods(http.MethodGet)
	api.HandleFunc("/process/trim", s.handleTrim).Methods(http.MethodPost)
	api.HandleFunc("/process/overlay", s.handleOverlay).Methods(http.MethodPost)
	api.HandleFunc("/process/watermark", s.handleWatermark).Methods(http.MethodPost)
	api.HandleFunc("/process/quality", s.handleQuality).Methods(http.MethodPost)
	api.HandleFunc("/jobs/{id}", s.handleJobStatus).Methods(http.MethodGet)
	api.HandleFunc("/jobs/{id}/result", s.handleJobResult).Methods(http.MethodGet)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch errs.KindOf(err) {
	case errs.Validation:
		status = http.StatusBadRequest
	case errs.Reference:
		status = http.StatusNotFound
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
