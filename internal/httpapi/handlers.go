package httpapi

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"videoforge/internal/errs"
	"videoforge/internal/media"
	"videoforge/internal/model"
	"videoforge/internal/queue"
	"videoforge/internal/storage"
)

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.writeError(w, errs.Wrap(errs.Validation, err, "bad multipart body"))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("video")
	if err != nil {
		s.writeError(w, errs.Wrap(errs.Validation, err, `missing "video" form file`))
		return
	}
	defer file.Close()

	mimeType := header.Header.Get("Content-Type")
	if !s.allowedMIME(mimeType) {
		s.writeError(w, errs.New(errs.Validation, "unsupported file type: %s", mimeType))
		return
	}

	path, err := s.storage.Allocate(storage.CategoryUpload, "upload", filepath.Ext(header.Filename))
	if err != nil {
		s.writeError(w, err)
		return
	}
	size, err := s.storage.Save(file, path)
	if err != nil {
		s.writeError(w, err)
		return
	}

	video := &model.Video{
		Filename:         filepath.Base(path),
		OriginalFilename: header.Filename,
		FilePath:         path,
		FileSize:         size,
		MimeType:         mimeType,
	}
	if err := s.catalog.RegisterVideo(r.Context(), video); err != nil {
		_ = s.storage.Discard(path)
		s.writeError(w, err)
		return
	}

	// Metadata probing runs as the first job against the new video.
	probeJob, err := s.submitJob(r, video.ID, model.KindProbe, nil)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"video":        video,
		"probe_job_id": probeJob.ID,
	})
}

func (s *Server) handleListVideos(w http.ResponseWriter, r *http.Request) {
	offset := queryInt(r, "offset", 0)
	limit := queryInt(r, "limit", 50)
	if limit < 1 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	videos, total, err := s.catalog.ListVideos(r.Context(), offset, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"videos": videos,
		"total":  total,
		"offset": offset,
		"limit":  limit,
	})
}

func (s *Server) handleGetVideo(w http.ResponseWriter, r *http.Request) {
	video, err := s.catalog.GetVideo(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, video)
}

func (s *Server) handleListArtifacts(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := s.catalog.GetVideo(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	artifacts, err := s.catalog.ListArtifacts(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"artifacts": artifacts})
}

type trimRequest struct {
	VideoID string `json:"video_id"`
	model.TrimConfig
}

func (s *Server) handleTrim(w http.ResponseWriter, r *http.Request) {
	var req trimRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	video, err := s.catalog.GetVideo(r.Context(), req.VideoID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if req.StartTime < 0 || req.EndTime <= req.StartTime {
		s.writeError(w, errs.New(errs.Validation, "end time must be greater than start time and start must be >= 0"))
		return
	}
	if video.Duration != nil && req.EndTime > *video.Duration {
		s.writeError(w, errs.New(errs.Validation, "end time cannot exceed video duration (%.2fs)", *video.Duration))
		return
	}
	s.submit(w, r, video.ID, model.KindTrim, req.TrimConfig)
}

type overlayRequest struct {
	VideoID string `json:"video_id"`
	model.OverlayConfig
}

func (s *Server) handleOverlay(w http.ResponseWriter, r *http.Request) {
	var req overlayRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	video, err := s.catalog.GetVideo(r.Context(), req.VideoID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	switch req.OverlayType {
	case "text":
		if req.Content == "" {
			s.writeError(w, errs.New(errs.Validation, "overlay text content is required"))
			return
		}
	case "image", "video":
		if !s.assetExists(req.Content) {
			s.writeError(w, errs.New(errs.Reference, "overlay file not found: %s", req.Content))
			return
		}
	default:
		s.writeError(w, errs.New(errs.Validation, "unsupported overlay type: %s", req.OverlayType))
		return
	}
	s.submit(w, r, video.ID, model.KindOverlay, req.OverlayConfig)
}

type watermarkRequest struct {
	VideoID string `json:"video_id"`
	model.WatermarkConfig
}

func (s *Server) handleWatermark(w http.ResponseWriter, r *http.Request) {
	var req watermarkRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	video, err := s.catalog.GetVideo(r.Context(), req.VideoID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := media.ValidatePosition(req.Position); err != nil {
		s.writeError(w, err)
		return
	}
	if req.Opacity != 0 && (req.Opacity <= 0 || req.Opacity > 1) {
		s.writeError(w, errs.New(errs.Validation, "watermark opacity must be in (0, 1]"))
		return
	}
	if !s.assetExists(req.WatermarkPath) {
		s.writeError(w, errs.New(errs.Reference, "watermark file not found: %s", req.WatermarkPath))
		return
	}
	s.submit(w, r, video.ID, model.KindWatermark, req.WatermarkConfig)
}

type qualityRequest struct {
	VideoID string `json:"video_id"`
	model.QualityConfig
}

func (s *Server) handleQuality(w http.ResponseWriter, r *http.Request) {
	var req qualityRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	video, err := s.catalog.GetVideo(r.Context(), req.VideoID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := media.ValidatePresets(req.Qualities); err != nil {
		s.writeError(w, err)
		return
	}
	s.submit(w, r, video.ID, model.KindQuality, req.QualityConfig)
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	job, err := s.ledger.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleJobResult(w http.ResponseWriter, r *http.Request) {
	job, err := s.ledger.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	if job.Status != model.StatusCompleted {
		writeJSON(w, http.StatusConflict, map[string]string{
			"error":  "job has no result yet",
			"status": string(job.Status),
		})
		return
	}
	http.ServeFile(w, r, job.ResultFilePath)
}

// submit creates the ledger row and the queue task for one transform and
// answers with the correlation ID in pending state.
func (s *Server) submit(w http.ResponseWriter, r *http.Request, videoID string, kind model.TransformKind, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		s.writeError(w, errs.Wrap(errs.Validation, err, "encode config"))
		return
	}
	job, err := s.submitJob(r, videoID, kind, raw)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id": job.ID,
		"status": job.Status,
	})
}

func (s *Server) submitJob(r *http.Request, videoID string, kind model.TransformKind, raw json.RawMessage) (*model.Job, error) {
	job := &model.Job{
		ID:      uuid.NewString(),
		VideoID: videoID,
		JobType: kind,
		Config:  raw,
	}
	if err := s.ledger.Create(r.Context(), job); err != nil {
		return nil, err
	}
	task := queue.Task{JobID: job.ID, VideoID: videoID, Kind: kind, Payload: raw}
	if err := s.queue.Enqueue(r.Context(), task); err != nil {
		return nil, errs.Wrap(errs.Persistence, err, "enqueue job %s", job.ID)
	}
	return job, nil
}

func (s *Server) allowedMIME(mimeType string) bool {
	for _, allowed := range s.cfg.Server.AllowedVideoMIME {
		if mimeType == allowed {
			return true
		}
	}
	return false
}

func (s *Server) assetExists(name string) bool {
	if name == "" {
		return false
	}
	path := filepath.Join(s.cfg.Storage.AssetsDir, filepath.Clean("/"+name))
	_, err := os.Stat(path)
	return err == nil
}

func decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errs.Wrap(errs.Validation, err, "bad request body")
	}
	return nil
}

func queryInt(r *http.Request, key string, fallback int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
