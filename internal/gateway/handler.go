package gateway

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/concierge-ai/concierge/internal/auth"
	"github.com/concierge-ai/concierge/internal/credential"
	"github.com/concierge-ai/concierge/internal/event"
	"github.com/concierge-ai/concierge/internal/logging"
	"github.com/concierge-ai/concierge/pkg/types"
)

// authDeadline is how long a fresh connection gets to complete the auth
// handshake before it is dropped.
const authDeadline = 10 * time.Second

// Handler upgrades HTTP requests to WebSocket connections and runs the
// per-connection receive loop.
type Handler struct {
	upgrader websocket.Upgrader
	verifier *auth.Verifier
	turns    *Orchestrator
	registry *Registry
}

// NewHandler creates the WebSocket handler and subscribes the registry to
// background session updates, so title refinements reach the owning user's
// connection whenever one is live.
func NewHandler(verifier *auth.Verifier, turns *Orchestrator, registry *Registry, bus *event.Bus) *Handler {
	h := &Handler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		verifier: verifier,
		turns:    turns,
		registry: registry,
	}

	bus.Subscribe(event.SessionUpdated, func(e event.Event) {
		data, ok := e.Data.(event.SessionUpdatedData)
		if !ok {
			return
		}
		registry.SendSessionUpdated(data.UserID, data.SessionID, data.Title)
	})

	return h
}

// ServeHTTP handles GET /ws.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	userID, token, ok := h.handshake(conn)
	if !ok {
		return
	}

	h.registry.Register(userID, conn)
	defer h.registry.Unregister(userID, conn)

	logging.Info().Str("user_id", userID).Msg("connection established")
	h.receiveLoop(r, conn, userID, token)
	logging.Info().Str("user_id", userID).Msg("connection closed")
}

// handshake reads and verifies the mandatory first auth frame.
func (h *Handler) handshake(conn *websocket.Conn) (userID, token string, ok bool) {
	_ = conn.SetReadDeadline(time.Now().Add(authDeadline))
	defer func() { _ = conn.SetReadDeadline(time.Time{}) }()

	_, data, err := conn.ReadMessage()
	if err != nil {
		return "", "", false
	}

	authReq, _, err := types.DecodeClientFrame(data)
	if err != nil || authReq == nil {
		_ = conn.WriteJSON(types.NewError("认证失败: 首条消息必须为 auth"))
		return "", "", false
	}

	userID, err = h.verifier.UserID(authReq.Token)
	if err != nil {
		_ = conn.WriteJSON(types.NewError("认证失败: " + authErrorText(err)))
		return "", "", false
	}

	_ = conn.WriteJSON(types.AuthSuccess{Type: types.TypeAuthSuccess, UserID: userID})
	return userID, authReq.Token, true
}

// receiveLoop processes query frames sequentially: one turn at a time per
// connection.
func (h *Handler) receiveLoop(r *http.Request, conn *websocket.Conn, userID, token string) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		_, msg, err := types.DecodeClientFrame(data)
		if err != nil || msg == nil {
			h.registry.SendError(userID, "无法解析的消息格式")
			continue
		}

		// The credential is scoped to this turn's context, never stored on
		// the handler, so concurrent users cannot observe each other's token.
		turnCtx := credential.WithToken(r.Context(), token)
		h.turns.Handle(turnCtx, userID, msg)
	}
}

func authErrorText(err error) string {
	switch {
	case errors.Is(err, auth.ErrMissingToken):
		return "缺少令牌"
	case errors.Is(err, auth.ErrExpiredToken):
		return "令牌已过期"
	default:
		return "令牌无效"
	}
}
