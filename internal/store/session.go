package store

import (
	"context"
	"fmt"
	"net/url"

	"github.com/concierge-ai/concierge/pkg/types"
)

// SessionStore manipulates session rows.
type SessionStore struct {
	client *Client
}

// NewSessionStore creates a SessionStore on top of the shared client.
func NewSessionStore(client *Client) *SessionStore {
	return &SessionStore{client: client}
}

// Create inserts a session row and returns it with the store-assigned id.
func (s *SessionStore) Create(ctx context.Context, userID, title string) (*types.Session, error) {
	body := map[string]any{"user_id": userID, "title": title}

	var rows []types.Session
	if err := s.client.rows(ctx, "POST", "sessions", nil, body, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("store: create session: empty response")
	}
	return &rows[0], nil
}

// UpdateTitle replaces a session's title.
func (s *SessionStore) UpdateTitle(ctx context.Context, id int64, title string) error {
	filters := url.Values{"id": {eq(id)}}
	return s.client.rows(ctx, "PATCH", "sessions", filters, map[string]any{"title": title}, nil)
}

// Owner returns the user id owning the session, or ErrNotFound.
func (s *SessionStore) Owner(ctx context.Context, id int64) (string, error) {
	filters := url.Values{
		"id":     {eq(id)},
		"select": {"user_id"},
	}

	var rows []struct {
		UserID string `json:"user_id"`
	}
	if err := s.client.rows(ctx, "GET", "sessions", filters, nil, &rows); err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", ErrNotFound
	}
	return rows[0].UserID, nil
}

// ListByUser returns one page of a user's sessions, newest first.
func (s *SessionStore) ListByUser(ctx context.Context, userID string, page, pageSize int) ([]types.Session, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}

	filters := url.Values{
		"user_id": {eq(userID)},
		"order":   {"created_at.desc"},
		"limit":   {fmt.Sprint(pageSize)},
		"offset":  {fmt.Sprint((page - 1) * pageSize)},
	}

	var rows []types.Session
	if err := s.client.rows(ctx, "GET", "sessions", filters, nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// Delete removes a session row.
func (s *SessionStore) Delete(ctx context.Context, id int64) error {
	filters := url.Values{"id": {eq(id)}}
	return s.client.rows(ctx, "DELETE", "sessions", filters, nil, nil)
}
