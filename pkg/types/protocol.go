// Package types defines the wire protocol and shared data model for the
// Concierge gateway.
package types

import "encoding/json"

// MessageType identifies a server→client protocol envelope.
type MessageType string

const (
	TypeAuthSuccess    MessageType = "auth_success"
	TypeError          MessageType = "error"
	TypeChunk          MessageType = "chunk"
	TypeStatus         MessageType = "status"
	TypeSessionCreated MessageType = "session_created"
	TypeSessionUpdated MessageType = "session_updated"
)

// Status values carried by status envelopes.
type Status string

const (
	StatusThinking      Status = "thinking"
	StatusToolCalling   Status = "tool_calling"
	StatusToolCompleted Status = "tool_completed"
	StatusCompleted     Status = "completed"
)

// AuthRequest is the first client frame on a new connection.
type AuthRequest struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// ClientMessage is every subsequent client frame: one query per turn.
// SessionID is nil when the client wants a session created implicitly.
type ClientMessage struct {
	Query     string `json:"query"`
	SessionID *int64 `json:"sessionId"`
}

// AuthSuccess acknowledges a completed auth handshake.
type AuthSuccess struct {
	Type   MessageType `json:"type"`
	UserID string      `json:"user_id"`
}

// ErrorMessage is a terminal, human-readable error for one turn (or for the
// connection attempt during auth).
type ErrorMessage struct {
	Type    MessageType `json:"type"`
	Content string      `json:"content"`
}

// Chunk is a streamed text fragment. The final chunk of a turn has empty
// content and IsFinal set.
type Chunk struct {
	Type    MessageType `json:"type"`
	Content string      `json:"content"`
	IsFinal bool        `json:"is_final"`
}

// StatusMessage reports turn lifecycle progress.
type StatusMessage struct {
	Type   MessageType    `json:"type"`
	Status Status         `json:"status"`
	Data   map[string]any `json:"data"`
}

// SessionRef carries a session id and title in session lifecycle envelopes.
type SessionRef struct {
	SessionID int64  `json:"sessionId"`
	Title     string `json:"title"`
}

// SessionEnvelope announces an implicitly created or retitled session.
type SessionEnvelope struct {
	Type MessageType `json:"type"`
	Data SessionRef  `json:"data"`
}

// NewChunk builds a chunk envelope.
func NewChunk(content string, isFinal bool) Chunk {
	return Chunk{Type: TypeChunk, Content: content, IsFinal: isFinal}
}

// NewStatus builds a status envelope. A nil data map is normalized to an
// empty object so clients never see "data": null.
func NewStatus(status Status, data map[string]any) StatusMessage {
	if data == nil {
		data = map[string]any{}
	}
	return StatusMessage{Type: TypeStatus, Status: status, Data: data}
}

// NewError builds an error envelope.
func NewError(content string) ErrorMessage {
	return ErrorMessage{Type: TypeError, Content: content}
}

// NewSessionCreated builds a session_created envelope.
func NewSessionCreated(id int64, title string) SessionEnvelope {
	return SessionEnvelope{Type: TypeSessionCreated, Data: SessionRef{SessionID: id, Title: title}}
}

// NewSessionUpdated builds a session_updated envelope.
func NewSessionUpdated(id int64, title string) SessionEnvelope {
	return SessionEnvelope{Type: TypeSessionUpdated, Data: SessionRef{SessionID: id, Title: title}}
}

// DecodeClientFrame distinguishes an auth frame from a query frame without
// consuming the payload twice.
func DecodeClientFrame(data []byte) (*AuthRequest, *ClientMessage, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, nil, err
	}
	if probe.Type == "auth" {
		var auth AuthRequest
		if err := json.Unmarshal(data, &auth); err != nil {
			return nil, nil, err
		}
		return &auth, nil, nil
	}
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, nil, err
	}
	return nil, &msg, nil
}
