// Package server exposes the analysis pipeline and task manager over
// HTTP. The layer is deliberately thin: handlers adapt JSON bodies onto
// the pipeline and task interfaces and nothing else.
package server

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"veridex/internal/cache"
	"veridex/internal/embedding"
	"veridex/internal/pipeline"
	"veridex/internal/task"
)

// Server routes HTTP requests onto the pipeline and task manager
type Server struct {
	router    *mux.Router
	analyzer  *pipeline.Analyzer
	tasks     *task.Manager
	documents cache.DocumentStore
	vectors   *cache.VectorIndex
	embedder  embedding.Engine
	logs      *LogBroker
	logger    *zap.Logger
}

// New wires the HTTP surface
func New(analyzer *pipeline.Analyzer, tasks *task.Manager, documents cache.DocumentStore, vectors *cache.VectorIndex, embedder embedding.Engine, logger *zap.Logger) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		analyzer:  analyzer,
		tasks:     tasks,
		documents: documents,
		vectors:   vectors,
		embedder:  embedder,
		logs:      NewLogBroker(),
		logger:    logger,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/detect_text", s.handleDetectText).Methods(http.MethodPost)
	s.router.HandleFunc("/detect_text_initial", s.handleDetectInitial).Methods(http.MethodPost)
	s.router.HandleFunc("/feedback", s.handleFeedback).Methods(http.MethodPost)
	s.router.HandleFunc("/cancel_session", s.handleCancelSession).Methods(http.MethodPost)
	s.router.HandleFunc("/session_tasks", s.handleSessionTasks).Methods(http.MethodGet)
	s.router.HandleFunc("/task_result/{task_id}", s.handleTaskResult).Methods(http.MethodGet)
	s.router.HandleFunc("/cleanup_expired", s.handleCleanup).Methods(http.MethodPost)
	s.router.HandleFunc("/clear_cache", s.handleClearCache).Methods(http.MethodPost)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/logs/{session}", s.handleLogStream).Methods(http.MethodGet)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type detectRequest struct {
	Text      string `json:"text"`
	URL       string `json:"url,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	Async     bool   `json:"async,omitempty"`
}

// handleDetectText runs the full analysis. With async set and a session
// id, the work is dispatched to a worker process and a task id returned
// instead.
func (s *Server) handleDetectText(w http.ResponseWriter, r *http.Request) {
	var req detectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Text == "" {
		s.writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	if req.Async && req.SessionID != "" {
		id, err := s.tasks.Start(task.Request{
			URL: req.URL, Text: req.Text, SessionID: req.SessionID, UserID: req.UserID,
		})
		if err != nil {
			s.logger.Error("task dispatch failed", zap.Error(err))
			s.writeError(w, http.StatusInternalServerError, "could not start analysis")
			return
		}
		s.logs.Publish(req.SessionID, "analysis dispatched")
		s.writeJSON(w, http.StatusAccepted, map[string]string{"task_id": id})
		return
	}

	s.logs.Publish(req.SessionID, "analysis started")
	resp, err := s.analyzer.Analyze(r.Context(), req.URL, req.Text, req.UserID)
	if err != nil {
		if err == pipeline.ErrEmptyInput {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("analysis failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "analysis failed")
		return
	}
	resp.SessionID = req.SessionID
	s.logs.Publish(req.SessionID, "analysis finished: "+string(resp.Prediction))
	s.logs.Done(req.SessionID)
	s.writeJSON(w, http.StatusOK, resp)
}

// handleDetectInitial returns a quick non-committal first read
func (s *Server) handleDetectInitial(w http.ResponseWriter, r *http.Request) {
	var req detectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Text == "" {
		s.writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	assessment, err := s.analyzer.QuickAssess(r.Context(), req.Text)
	if err != nil {
		s.logger.Warn("initial assessment failed", zap.Error(err))
		s.writeError(w, http.StatusBadGateway, "initial assessment unavailable")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"initial_assessment": assessment})
}

func (s *Server) handleCancelSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID == "" {
		s.writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	count, ids := s.tasks.CancelSession(req.SessionID)
	s.logs.Done(req.SessionID)
	s.writeJSON(w, http.StatusOK, map[string]any{
		"cancelled": count,
		"task_ids":  ids,
	})
}

func (s *Server) handleSessionTasks(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		s.writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	active := s.tasks.Active(sessionID)
	s.writeJSON(w, http.StatusOK, map[string]any{
		"active_tasks": active,
		"count":        len(active),
	})
}

func (s *Server) handleTaskResult(w http.ResponseWriter, r *http.Request) {
	taskID := mux.Vars(r)["task_id"]

	resp, state, err := s.tasks.Result(taskID)
	switch state {
	case "":
		s.writeError(w, http.StatusNotFound, "unknown task")
	case task.StateCompleted:
		s.writeJSON(w, http.StatusOK, resp)
	case task.StateFailed:
		s.logger.Warn("task failed", zap.String("task_id", taskID), zap.Error(err))
		s.writeError(w, http.StatusBadGateway, "analysis failed")
	default:
		s.writeJSON(w, http.StatusAccepted, map[string]string{"state": string(state)})
	}
}

func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	swept, err := s.vectors.SweepExpired(r.Context())
	if err != nil {
		s.logger.Error("vector sweep failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "cleanup failed")
		return
	}
	reaped := s.tasks.ReapExpired()
	s.writeJSON(w, http.StatusOK, map[string]int{
		"vectors_deleted": swept,
		"tasks_reaped":    len(reaped),
	})
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
		s.writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	id, err := s.analyzer.ClearCache(r.Context(), req.Text)
	if err != nil {
		s.logger.Error("cache clear failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "cache clear failed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"cleared": id != "",
		"id":      id,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("response encode failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
