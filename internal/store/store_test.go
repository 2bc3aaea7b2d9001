package store

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/concierge-ai/concierge/pkg/types"
)

func TestSessionCreate(t *testing.T) {
	var gotPath, gotPrefer, gotKey, gotAuth string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotPrefer = r.Header.Get("Prefer")
		gotKey = r.Header.Get("apikey")
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`[{"id": 42, "user_id": "u1", "title": "新对话"}]`))
	}))
	defer srv.Close()

	sessions := NewSessionStore(New(srv.URL, "service-key"))
	sess, err := sessions.Create(context.Background(), "u1", types.PlaceholderTitle)
	require.NoError(t, err)

	assert.Equal(t, int64(42), sess.ID)
	assert.Equal(t, "u1", sess.UserID)
	assert.Equal(t, "/rest/v1/sessions", gotPath)
	assert.Equal(t, "return=representation", gotPrefer)
	assert.Equal(t, "service-key", gotKey)
	assert.Equal(t, "Bearer service-key", gotAuth)
	assert.Equal(t, "u1", gotBody["user_id"])
	assert.Equal(t, types.PlaceholderTitle, gotBody["title"])
}

func TestSessionCreateEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	sessions := NewSessionStore(New(srv.URL, "k"))
	_, err := sessions.Create(context.Background(), "u1", "t")
	assert.Error(t, err)
}

func TestSessionUpdateTitle(t *testing.T) {
	var gotMethod, gotFilter string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotFilter = r.URL.Query().Get("id")
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	sessions := NewSessionStore(New(srv.URL, "k"))
	require.NoError(t, sessions.UpdateTitle(context.Background(), 7, "账单查询"))

	assert.Equal(t, http.MethodPatch, gotMethod)
	assert.Equal(t, "eq.7", gotFilter)
}

func TestSessionOwner(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "eq.5", r.URL.Query().Get("id"))
		assert.Equal(t, "user_id", r.URL.Query().Get("select"))
		w.Write([]byte(`[{"user_id": "owner-1"}]`))
	}))
	defer srv.Close()

	sessions := NewSessionStore(New(srv.URL, "k"))
	owner, err := sessions.Owner(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, "owner-1", owner)
}

func TestSessionOwnerNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	sessions := NewSessionStore(New(srv.URL, "k"))
	_, err := sessions.Owner(context.Background(), 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSessionListByUser(t *testing.T) {
	var gotQuery map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{}
		for k := range r.URL.Query() {
			gotQuery[k] = r.URL.Query().Get(k)
		}
		w.Write([]byte(`[{"id": 2, "user_id": "u1", "title": "b"}, {"id": 1, "user_id": "u1", "title": "a"}]`))
	}))
	defer srv.Close()

	sessions := NewSessionStore(New(srv.URL, "k"))
	rows, err := sessions.ListByUser(context.Background(), "u1", 2, 10)
	require.NoError(t, err)

	assert.Len(t, rows, 2)
	assert.Equal(t, "eq.u1", gotQuery["user_id"])
	assert.Equal(t, "created_at.desc", gotQuery["order"])
	assert.Equal(t, "10", gotQuery["limit"])
	assert.Equal(t, "10", gotQuery["offset"])
}

func TestMessageAppend(t *testing.T) {
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/messages", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	messages := NewMessageStore(New(srv.URL, "k"))
	require.NoError(t, messages.Append(context.Background(), 42, types.RoleUser, "今天天气怎么样"))

	assert.Equal(t, float64(42), gotBody["session_id"])
	assert.Equal(t, "user", gotBody["role"])
	assert.Equal(t, "今天天气怎么样", gotBody["content"])
}

func TestMessageListBySession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "eq.42", r.URL.Query().Get("session_id"))
		assert.Equal(t, "created_at.asc", r.URL.Query().Get("order"))
		w.Write([]byte(`[{"id": 1, "session_id": 42, "role": "user", "content": "hi"}, {"id": 2, "session_id": 42, "role": "assistant", "content": "hello"}]`))
	}))
	defer srv.Close()

	messages := NewMessageStore(New(srv.URL, "k"))
	rows, err := messages.ListBySession(context.Background(), 42)
	require.NoError(t, err)

	require.Len(t, rows, 2)
	assert.Equal(t, types.RoleUser, rows[0].Role)
	assert.Equal(t, types.RoleAssistant, rows[1].Role)
}

func TestTruncateKeepsRuneBoundary(t *testing.T) {
	s := "会话不存在"

	got := truncate(s, 4)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, "会...", got)

	assert.Equal(t, s, truncate(s, len(s)))
}

func TestRowsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message": "invalid api key"}`))
	}))
	defer srv.Close()

	sessions := NewSessionStore(New(srv.URL, "bad-key"))
	_, err := sessions.ListByUser(context.Background(), "u1", 1, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}
