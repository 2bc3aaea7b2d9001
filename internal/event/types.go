package event

import "github.com/concierge-ai/concierge/pkg/types"

// SessionCreatedData is the payload for session.created events. UserID is
// carried so forwarders can route without a store lookup.
type SessionCreatedData struct {
	UserID string         `json:"user_id"`
	Info   *types.Session `json:"info"`
}

// SessionUpdatedData is the payload for session.updated events.
type SessionUpdatedData struct {
	UserID    string `json:"user_id"`
	SessionID int64  `json:"sessionId"`
	Title     string `json:"title"`
}

// MessageCreatedData is the payload for message.created events.
type MessageCreatedData struct {
	UserID string         `json:"user_id"`
	Info   *types.Message `json:"info"`
}
