package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lazypower/recall/internal/store"
)

type sessionJSON struct {
	ID          string `json:"id"`
	ProjectPath string `json:"project_path"`
	Title       string `json:"title"`
	Status      string `json:"status"`
	CreatedAt   int64  `json:"created_at"`
}

func toSessionJSON(s *store.Session) sessionJSON {
	return sessionJSON{
		ID:          s.ID,
		ProjectPath: s.ProjectPath,
		Title:       s.Title,
		Status:      s.Status,
		CreatedAt:   s.CreatedAt,
	}
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.db.ActiveSessions()
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]sessionJSON, 0, len(sessions))
	for i := range sessions {
		out = append(out, toSessionJSON(&sessions[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProjectPath string `json:"project_path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	sess, err := s.db.CreateSession(req.ProjectPath)
	if err != nil {
		writeError(w, err)
		return
	}
	s.log.Info().Str("session", sess.ID).Str("path", sess.ProjectPath).Msg("session created")
	writeJSON(w, http.StatusCreated, toSessionJSON(sess))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	sess, err := s.db.GetSession(id)
	if err != nil {
		writeError(w, err)
		return
	}
	if sess == nil {
		writeError(w, store.NewNotFoundError("session", id))
		return
	}
	writeJSON(w, http.StatusOK, toSessionJSON(sess))
}

type messageJSON struct {
	ID         string `json:"id"`
	SessionID  string `json:"session_id"`
	Role       string `json:"role"`
	Content    string `json:"content"`
	Sequence   int    `json:"sequence"`
	CreatedAt  int64  `json:"created_at"`
	Model      string `json:"model,omitempty"`
	ToolCall   string `json:"tool_call,omitempty"`
	ToolResult string `json:"tool_result,omitempty"`
}

func (s *Server) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	msgs, err := s.db.SessionMessages(id)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]messageJSON, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, messageJSON{
			ID: m.ID, SessionID: m.SessionID, Role: m.Role, Content: m.Content,
			Sequence: m.Sequence, CreatedAt: m.CreatedAt, Model: m.Model,
			ToolCall: m.ToolCall, ToolResult: m.ToolResult,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleStoreMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")

	var req struct {
		Role       string `json:"role"`
		Content    string `json:"content"`
		Model      string `json:"model"`
		ToolCall   string `json:"tool_call"`
		ToolResult string `json:"tool_result"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	m, err := s.db.StoreMessage(id, req.Role, req.Content, &store.MessageOpts{
		Model:      req.Model,
		ToolCall:   req.ToolCall,
		ToolResult: req.ToolResult,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": m.ID, "sequence": m.Sequence})
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")

	sess, err := s.db.GetSession(id)
	if err != nil {
		writeError(w, err)
		return
	}
	if sess == nil {
		writeError(w, store.NewNotFoundError("session", id))
		return
	}

	stats, err := s.db.Stats(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total":      stats.Total,
		"by_role":    stats.ByRole,
		"tool_calls": stats.ToolCalls,
	})
}

func (s *Server) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	if err := s.db.SetSessionStatus(id, req.Status); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": req.Status})
}

type memoryJSON struct {
	ID              string   `json:"id"`
	SessionID       string   `json:"session_id,omitempty"`
	Type            string   `json:"type"`
	Content         string   `json:"content"`
	InitialStrength float64  `json:"initial_strength"`
	CurrentStrength float64  `json:"current_strength"`
	DecayRate       float64  `json:"decay_rate"`
	Level           int      `json:"level"`
	ParentID        string   `json:"parent_id,omitempty"`
	SourceMessages  []string `json:"source_messages,omitempty"`
}

func (s *Server) handleCreateMemory(w http.ResponseWriter, r *http.Request) {
	var req memoryJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	m := &store.Memory{
		SessionID:       req.SessionID,
		Type:            req.Type,
		Content:         req.Content,
		InitialStrength: req.InitialStrength,
		DecayRate:       req.DecayRate,
		Level:           req.Level,
		ParentID:        req.ParentID,
		SourceMessages:  req.SourceMessages,
	}
	if err := s.db.CreateMemory(m); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": m.ID})
}

func (s *Server) handleReviewQueue(w http.ResponseWriter, r *http.Request) {
	threshold := 0.3
	if v := r.URL.Query().Get("threshold"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid threshold"})
			return
		}
		threshold = parsed
	}

	due, err := s.engine.NeedingReview(threshold, time.Now())
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]memoryJSON, 0, len(due))
	for _, m := range due {
		out = append(out, memoryJSON{
			ID: m.ID, SessionID: m.SessionID, Type: m.Type, Content: m.Content,
			InitialStrength: m.InitialStrength, CurrentStrength: m.CurrentStrength,
			DecayRate: m.DecayRate, Level: m.Level, ParentID: m.ParentID,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleTouchMemory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "memoryID")
	if err := s.db.TouchMemory(id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

func (s *Server) handleRunDecay(w http.ResponseWriter, r *http.Request) {
	updated, err := s.engine.UpdateAllStrengths(time.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	s.log.Info().Int("updated", updated).Msg("decay run")
	writeJSON(w, http.StatusOK, map[string]int{"updated": updated})
}
