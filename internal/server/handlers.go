package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/astrabot/internal/agent"
	"github.com/hyperjump/astrabot/internal/models"
	"github.com/hyperjump/astrabot/internal/session"
)

type messageRequest struct {
	Message string `json:"message"`
}

type messageResponse struct {
	SessionID string `json:"session_id"`
	*agent.Reply
}

type sessionResponse struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	p := s.chat.Policy()
	ui := p.UI()
	s.respondJSON(w, http.StatusOK, map[string]any{
		"name":        p.Name(),
		"title":       ui.Title,
		"greeting":    ui.Greeting,
		"placeholder": ui.Placeholder,
	})
}

func (s *Server) handleCapabilities(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]any{"capabilities": s.catalog.Capabilities()})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]any{
		"collections": s.catalog.Status(),
		"sessions":    s.sessions.Len(),
	})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.Create()
	s.logger.Debug("session created", zap.String("session", sess.ID()))
	s.respondJSON(w, http.StatusCreated, sessionResponse{ID: sess.ID(), CreatedAt: sess.CreatedAt()})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.sessions.Delete(id); err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": "ended"})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.respondErr(w, err)
		return
	}
	turns := sess.History()
	if turns == nil {
		turns = []models.Turn{}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"id": sess.ID(), "turns": turns})
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.respondErr(w, err)
		return
	}
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	reply, err := s.chat.Handle(r.Context(), sess, req.Message)
	if err != nil {
		s.respondErr(w, err)
		return
	}

	streaming, _ := strconv.ParseBool(r.URL.Query().Get("stream"))
	if !streaming {
		s.respondJSON(w, http.StatusOK, messageResponse{SessionID: sess.ID(), Reply: reply})
		return
	}
	s.streamReply(w, r, sess, reply)
}

func (s *Server) streamReply(w http.ResponseWriter, r *http.Request, sess *session.Session, reply *agent.Reply) {
	flusher, _ := w.(http.Flusher)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Language", string(reply.Language))
	w.WriteHeader(http.StatusOK)
	for chunk, err := range reply.Chunks(r.Context(), s.streamDelay) {
		if err != nil {
			s.logger.Debug("stream aborted", zap.String("session", sess.ID()), zap.Error(err))
			return
		}
		if _, err := w.Write([]byte(chunk)); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

// respondErr maps domain errors to status codes without exposing internals.
func (s *Server) respondErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrSessionNotFound):
		s.respondError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, models.ErrTurnInProgress):
		s.respondError(w, http.StatusConflict, "a message is already being answered in this session")
	case errors.Is(err, agent.ErrEmptyMessage):
		s.respondError(w, http.StatusBadRequest, "message is required")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		s.respondError(w, http.StatusServiceUnavailable, "request cancelled")
	default:
		s.logger.Error("request failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
