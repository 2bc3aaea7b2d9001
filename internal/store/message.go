package store

import (
	"context"
	"net/url"

	"github.com/concierge-ai/concierge/pkg/types"
)

// MessageStore appends and lists message rows. Messages are append-only.
type MessageStore struct {
	client *Client
}

// NewMessageStore creates a MessageStore on top of the shared client.
func NewMessageStore(client *Client) *MessageStore {
	return &MessageStore{client: client}
}

// Append inserts one message row. One attempt, no retry: a lost message is
// logged by the caller and tolerated.
func (m *MessageStore) Append(ctx context.Context, sessionID int64, role types.Role, content string) error {
	body := map[string]any{
		"session_id": sessionID,
		"role":       role,
		"content":    content,
	}
	return m.client.rows(ctx, "POST", "messages", nil, body, nil)
}

// ListBySession returns a session's messages in creation order.
func (m *MessageStore) ListBySession(ctx context.Context, sessionID int64) ([]types.Message, error) {
	filters := url.Values{
		"session_id": {eq(sessionID)},
		"order":      {"created_at.asc"},
	}

	var rows []types.Message
	if err := m.client.rows(ctx, "GET", "messages", filters, nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}
