package server

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hyperjump/vidgrep/internal/catalog"
	"github.com/hyperjump/vidgrep/internal/cli"
	"github.com/hyperjump/vidgrep/internal/config"
	"github.com/hyperjump/vidgrep/internal/ingest"
	"github.com/hyperjump/vidgrep/internal/models"
	"go.uber.org/zap"
)

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var query models.SearchQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.runSearch(w, r, &query)
}

func (s *Server) handleSearchGet(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := models.SearchQuery{Query: q.Get("q")}
	var err error
	if v := q.Get("top_k"); v != "" {
		if query.TopK, err = strconv.Atoi(v); err != nil {
			s.respondError(w, http.StatusBadRequest, "top_k must be an integer")
			return
		}
	}
	if v := q.Get("limit"); v != "" {
		if query.Limit, err = strconv.Atoi(v); err != nil {
			s.respondError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
	}
	if v := q.Get("window"); v != "" {
		if query.Window, err = strconv.ParseFloat(v, 64); err != nil {
			s.respondError(w, http.StatusBadRequest, "window must be a number")
			return
		}
	}
	if v := q.Get("render"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "render must be a boolean")
			return
		}
		query.Render = &b
	}
	s.runSearch(w, r, &query)
}

// runSearch rejects blank queries; every other failure is answered with an empty result
// list and the failure in debug.
func (s *Server) runSearch(w http.ResponseWriter, r *http.Request, query *models.SearchQuery) {
	if err := query.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("search request", zap.String("query", query.Query), zap.Int("top_k", query.TopK))
	response := s.deps.Search.Run(r.Context(), query)
	if response.Debug != "" {
		s.logger.Debug("search diagnostic", zap.String("query", query.Query), zap.String("debug", response.Debug))
	}
	s.respondJSON(w, http.StatusOK, response)
}

type ingestRequest struct {
	Paths     []string `json:"paths"`
	Directory string   `json:"directory,omitempty"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Paths) == 0 && req.Directory == "" {
		s.respondError(w, http.StatusBadRequest, "paths or directory is required")
		return
	}
	s.logger.Debug("ingest request", zap.Strings("paths", req.Paths), zap.String("directory", req.Directory))
	paths := append([]string(nil), req.Paths...)
	if req.Directory != "" {
		found, err := ingest.DiscoverVideos(req.Directory, s.cfg.Ingest.Extensions)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		paths = append(paths, found...)
	}
	sum, err := s.deps.Ingest.IngestPaths(r.Context(), paths)
	if err != nil {
		s.logger.Error("ingest failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, sum)
}

func (s *Server) handleDeleteVideo(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.logger.Debug("delete video request", zap.String("video_id", id))
	removed, err := s.deps.Ingest.DeleteVideo(r.Context(), id)
	if err != nil {
		s.logger.Error("deletion failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"ok":        true,
		"removed":   removed,
		"remaining": s.deps.Index.Stats().TotalRows,
	})
}

func (s *Server) handleListVideos(w http.ResponseWriter, r *http.Request) {
	var videos []*models.Video
	if s.deps.Catalog != nil {
		list, err := s.deps.Catalog.List(r.Context())
		if err != nil {
			s.logger.Error("list videos failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		videos = list
	} else {
		ids := s.deps.Index.Videos()
		videos = make([]*models.Video, 0, len(ids))
		for _, id := range ids {
			videos = append(videos, &models.Video{ID: id})
		}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"videos": videos, "count": len(videos)})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.cfg.Storage
	status := cli.Status{
		StoreStats:   s.deps.Index.Stats(),
		IndexType:    s.deps.Index.IndexType(),
		IndexPath:    st.IndexPath,
		MetadataPath: st.MetadataPath,
		DatabasePath: st.DatabasePath,
	}
	if s.deps.Catalog != nil {
		n, err := s.deps.Catalog.Count(r.Context())
		if err != nil {
			s.logger.Error("status: count videos failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		status.CatalogVideos = n
	}
	if diskBytes, err := catalog.DiskUsageBytes(st.IndexPath, st.MetadataPath, st.DatabasePath, st.FramesDir); err == nil {
		status.DiskUsageBytes = diskBytes
	}
	s.respondJSON(w, http.StatusOK, status)
}

func (s *Server) handleWatchDirectoriesList(w http.ResponseWriter, r *http.Request) {
	if s.deps.Watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"directories": s.deps.Watch.Directories()})
}

type watchAddRequest struct {
	Path string `json:"path"`
	Sync *bool  `json:"sync,omitempty"`
}

func (s *Server) handleWatchDirectoriesAdd(w http.ResponseWriter, r *http.Request) {
	if s.deps.Watch == nil {
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
	if err := s.deps.Watch.AddDirectory(abs, syncExisting); err != nil {
		s.logger.Error("watch add directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusCreated, map[string]string{"path": abs, "status": "added"})
}

func (s *Server) handleWatchDirectoriesRemove(w http.ResponseWriter, r *http.Request) {
	if s.deps.Watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		var body struct {
			Path string `json:"path"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil && body.Path != "" {
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
	if err := s.deps.Watch.RemoveDirectory(abs); err != nil {
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
	s.cfgMu.Lock()
	defer s.cfgMu.Unlock()
	s.cfg.Watch.Directories = s.deps.Watch.Directories()
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
