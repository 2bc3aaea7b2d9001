package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/concierge-ai/concierge/internal/agent"
	"github.com/concierge-ai/concierge/internal/auth"
	"github.com/concierge-ai/concierge/internal/logging"
	"github.com/concierge-ai/concierge/internal/store"
	"github.com/concierge-ai/concierge/pkg/types"
)

// health handles GET /health.
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// chat handles POST /chat: the non-streaming entry point. The full response
// is assembled server-side and returned in one body.
func (s *Server) chat(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserFromContext(r.Context())

	var req struct {
		Query string `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid JSON body")
		return
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "query is required")
		return
	}

	// The request context already carries the caller's credential, so tool
	// calls issued by the runtime act as this user.
	events, err := s.runtime.Run(r.Context(), query, nil)
	if err != nil {
		logging.Error().Err(err).Str("user_id", userID).Msg("sync chat start failed")
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}

	var reply strings.Builder
	for e := range events {
		switch e.Kind {
		case agent.KindTokenDelta:
			reply.WriteString(e.Text)
		case agent.KindError:
			logging.Error().Err(e.Err).Str("user_id", userID).Msg("sync chat failed")
			writeError(w, http.StatusInternalServerError, ErrCodeInternalError, e.Err.Error())
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"response": reply.String()})
}

// listSessions handles GET /sessions?page=&pageSize=.
func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserFromContext(r.Context())

	page := queryInt(r, "page", 1)
	pageSize := queryInt(r, "pageSize", 10)

	sessions, err := s.sessions.ListByUser(r.Context(), userID, page, pageSize)
	if err != nil {
		logging.Error().Err(err).Str("user_id", userID).Msg("list sessions failed")
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, "failed to list sessions")
		return
	}
	if sessions == nil {
		sessions = []types.Session{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": sessions,
		"page":     page,
		"pageSize": pageSize,
	})
}

// deleteSession handles DELETE /sessions/{sessionID}.
func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserFromContext(r.Context())

	id, ok := s.ownedSession(w, r, userID)
	if !ok {
		return
	}

	if err := s.sessions.Delete(r.Context(), id); err != nil {
		logging.Error().Err(err).Int64("session_id", id).Msg("delete session failed")
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, "failed to delete session")
		return
	}
	writeSuccess(w)
}

// listMessages handles GET /sessions/{sessionID}/messages.
func (s *Server) listMessages(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserFromContext(r.Context())

	id, ok := s.ownedSession(w, r, userID)
	if !ok {
		return
	}

	messages, err := s.messages.ListBySession(r.Context(), id)
	if err != nil {
		logging.Error().Err(err).Int64("session_id", id).Msg("list messages failed")
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, "failed to list messages")
		return
	}
	if messages == nil {
		messages = []types.Message{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

// ownedSession parses the session id from the URL and enforces ownership.
// It writes the error response itself when the check fails.
func (s *Server) ownedSession(w http.ResponseWriter, r *http.Request, userID string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "sessionID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid session id")
		return 0, false
	}

	owner, err := s.sessions.Owner(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "session not found")
		return 0, false
	}
	if err != nil {
		logging.Error().Err(err).Int64("session_id", id).Msg("session lookup failed")
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, "session lookup failed")
		return 0, false
	}
	if owner != userID {
		writeError(w, http.StatusForbidden, ErrCodePermissionDenied, "not your session")
		return 0, false
	}
	return id, true
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return def
	}
	return n
}
