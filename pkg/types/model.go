package types

import "time"

// Role identifies the author of a stored message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// PlaceholderTitle is the title a session carries until background
// refinement replaces it.
const PlaceholderTitle = "新对话"

// Session is a conversation owned by one user. The row lives in the remote
// table-store; the gateway never caches it beyond a single request.
type Session struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// Message is one stored chat message. Messages are written in user/assistant
// pairs after a turn completes and are never mutated.
type Message struct {
	ID        int64     `json:"id,omitempty"`
	SessionID int64     `json:"session_id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// ToolDisplay is the client-facing description of a tool invocation.
type ToolDisplay struct {
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Category    string `json:"category"`
}
