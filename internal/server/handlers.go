package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hyperjump/mcqgen/internal/config"
	"github.com/hyperjump/mcqgen/internal/generator"
	"github.com/hyperjump/mcqgen/internal/ingest"
	"github.com/hyperjump/mcqgen/internal/models"
	"github.com/hyperjump/mcqgen/internal/storage"
	"github.com/hyperjump/mcqgen/internal/vectorstore"
	"go.uber.org/zap"
)

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ingest.ErrSessionNotFound), errors.Is(err, vectorstore.ErrNotReady):
		return http.StatusNotFound
	case errors.Is(err, ingest.ErrInvalidSessionID), errors.Is(err, ingest.ErrNoDocuments),
		errors.Is(err, vectorstore.ErrConfiguration):
		return http.StatusBadRequest
	case errors.Is(err, ingest.ErrSessionBusy):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(msg, zap.Error(err))
	} else {
		s.logger.Debug(msg, zap.Error(err))
	}
	s.respondError(w, status, err.Error())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.sessions.Sessions(r.Context(), 0, 0)
	if err != nil {
		s.fail(w, "status: list sessions failed", err)
		return
	}
	resp := map[string]interface{}{
		"sessions": len(sessions),
		"config": map[string]interface{}{
			"embedding_provider": s.cfg.Embedding.Provider,
			"llm_provider":       s.cfg.LLM.Provider,
			"llm_model":          s.cfg.LLM.Model,
			"index_type":         s.cfg.Index.Type,
			"metric":             s.cfg.Index.Metric,
			"chunk_size":         s.cfg.Chunking.ChunkSize,
			"chunk_overlap":      s.cfg.Chunking.ChunkOverlap,
			"retriever":          s.sessions.RetrieverOptions(),
			"data_dir":           s.cfg.Storage.DataDir,
			"index_dir":          s.cfg.Storage.IndexDir,
		},
	}
	if diskBytes, err := storage.DiskUsageBytes(s.cfg.Storage.DataDir, s.cfg.Storage.IndexDir, s.cfg.Storage.CatalogPath); err == nil {
		resp["disk_usage_bytes"] = diskBytes
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	list, err := s.sessions.Sessions(r.Context(), offset, limit)
	if err != nil {
		s.fail(w, "list sessions failed", err)
		return
	}
	if list == nil {
		list = []*models.Session{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"sessions": list, "offset": offset, "limit": limit})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.CreateSession(r.Context())
	if err != nil {
		s.fail(w, "create session failed", err)
		return
	}
	s.respondJSON(w, http.StatusCreated, sess)
}

func (s *Server) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.sessions.Status(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, "session status failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, st)
}

// handleUpload ingests the multipart "files" field. Without a session in the path a
// new session is created.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	maxBytes := int64(s.cfg.Server.MaxUploadMB) << 20
	if maxBytes <= 0 {
		maxBytes = 50 << 20
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		s.respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		s.respondError(w, http.StatusBadRequest, "no files uploaded")
		return
	}
	uploads := make([]models.Upload, len(headers))
	for i, h := range headers {
		uploads[i] = models.MultipartUpload{Header: h}
	}

	sessionID := chi.URLParam(r, "id")
	s.logger.Debug("upload request", zap.String("session", sessionID), zap.Int("files", len(uploads)))
	report, err := s.sessions.Ingest(r.Context(), sessionID, uploads)
	if err != nil {
		s.fail(w, "ingestion failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, models.UploadResponse{
		SessionID: report.SessionID,
		Indexed:   true,
		Message:   "Files uploaded and indexed successfully",
		Report:    report,
	})
}

func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	var req models.RetrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(s.cfg.Retriever.MaxK); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	start := time.Now()
	sessionID := chi.URLParam(r, "id")
	opts := s.sessions.RetrieverOptions().WithK(req.K)
	retriever, err := s.sessions.Retriever(r.Context(), sessionID, &opts)
	if err != nil {
		s.fail(w, "retriever unavailable", err)
		return
	}
	passages, err := retriever.Retrieve(r.Context(), req.Query)
	if err != nil {
		s.fail(w, "retrieval failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, models.RetrieveResponse{
		SessionID: sessionID,
		Query:     req.Query,
		Passages:  passages,
		QueryTime: time.Since(start).Milliseconds(),
	})
}

// handleGenerate answers 200 with the questions, or 422 with the raw model output when
// it could not be parsed.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if s.model == nil {
		s.respondError(w, http.StatusNotImplemented, "generation not configured")
		return
	}
	var req models.GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(s.cfg.Generation.QuestionCount); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	sessionID := chi.URLParam(r, "id")
	retriever, err := s.sessions.Retriever(r.Context(), sessionID, nil)
	if err != nil {
		s.fail(w, "retriever unavailable", err)
		return
	}
	gen, err := generator.New(retriever, s.model, generator.WithCount(req.Count), generator.WithLogger(s.logger))
	if err != nil {
		s.fail(w, "generator unavailable", err)
		return
	}
	res, err := gen.Generate(r.Context(), req.Topic)
	if err != nil {
		s.fail(w, "generation failed", err)
		return
	}
	s.sessions.RecordGeneration(r.Context(), sessionID, req.Topic, res)
	if !res.IsOK() {
		s.respondJSON(w, http.StatusUnprocessableEntity, res)
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleWatchDirectoriesList(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"directories": s.watch.Directories()})
}

type watchAddRequest struct {
	Path string `json:"path"`
	Sync *bool  `json:"sync,omitempty"`
}

func (s *Server) handleWatchDirectoriesAdd(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	var req watchAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	abs, err := filepath.Abs(req.Path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			s.respondError(w, http.StatusNotFound, "directory not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !info.IsDir() {
		s.respondError(w, http.StatusBadRequest, "path is not a directory")
		return
	}
	syncExisting := true
	if req.Sync != nil {
		syncExisting = *req.Sync
	}
	s.logger.Debug("watch add directory request", zap.String("path", abs), zap.Bool("sync_existing", syncExisting))
	if err := s.watch.AddDirectory(abs, syncExisting); err != nil {
		s.logger.Error("watch add directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusCreated, map[string]string{"path": abs, "status": "added"})
}

func (s *Server) handleWatchDirectoriesRemove(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		var body struct {
			Path string `json:"path"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			path = body.Path
		}
	}
	if path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required (query or body)")
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	s.logger.Debug("watch remove directory request", zap.String("path", abs))
	if err := s.watch.RemoveDirectory(abs); err != nil {
		s.logger.Error("watch remove directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusOK, map[string]string{"path": abs, "status": "removed"})
}

func (s *Server) persistWatchDirectories() {
	if s.configPath == "" {
		return
	}
	s.configMu.Lock()
	defer s.configMu.Unlock()
	s.cfg.Watch.Directories = s.watch.Directories()
	if err := config.Save(s.configPath, s.cfg); err != nil {
		s.logger.Warn("failed to persist watch config", zap.Error(err))
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
