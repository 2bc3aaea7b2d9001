package server

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/concierge-ai/concierge/internal/agent"
	"github.com/concierge-ai/concierge/internal/auth"
	"github.com/concierge-ai/concierge/internal/credential"
	"github.com/concierge-ai/concierge/internal/event"
	"github.com/concierge-ai/concierge/internal/gateway"
	"github.com/concierge-ai/concierge/internal/store"
	"github.com/concierge-ai/concierge/internal/title"
	"github.com/concierge-ai/concierge/internal/tool"
	"github.com/concierge-ai/concierge/pkg/types"
)

const testSecret = "test-secret"

func signToken(t *testing.T, userID string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{
		"userId": userID,
		"exp":    time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

// scriptedRuntime replays events and records the credential it ran under.
type scriptedRuntime struct {
	events    []agent.Event
	lastToken string
}

func (s *scriptedRuntime) Run(ctx context.Context, input string, history []types.Message) (<-chan agent.Event, error) {
	s.lastToken = credential.Token(ctx)
	ch := make(chan agent.Event, len(s.events))
	for _, e := range s.events {
		ch <- e
	}
	close(ch)
	return ch, nil
}

// storeHandler fakes the table-store for session/message endpoints.
func storeHandler(owner string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/rest/v1/sessions" && r.Method == http.MethodGet && r.URL.Query().Get("select") == "user_id":
			if r.URL.Query().Get("id") == "eq.404" {
				w.Write([]byte(`[]`))
				return
			}
			fmt.Fprintf(w, `[{"user_id": %q}]`, owner)
		case r.URL.Path == "/rest/v1/sessions" && r.Method == http.MethodGet:
			fmt.Fprintf(w, `[{"id": 1, "user_id": %q, "title": "新对话"}]`, owner)
		case r.URL.Path == "/rest/v1/sessions" && r.Method == http.MethodDelete:
			w.Write([]byte(`[]`))
		case r.URL.Path == "/rest/v1/messages":
			w.Write([]byte(`[{"id": 1, "session_id": 1, "role": "user", "content": "hi"}]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func newTestServer(t *testing.T, rt agent.Runtime, owner string) *Server {
	t.Helper()

	storeSrv := httptest.NewServer(storeHandler(owner))
	t.Cleanup(storeSrv.Close)

	client := store.New(storeSrv.URL, "k")
	sessions := store.NewSessionStore(client)
	messages := store.NewMessageStore(client)

	verifier := auth.NewVerifier(testSecret)
	registry := gateway.NewRegistry()
	bus := event.NewBus()
	t.Cleanup(func() { bus.Close() })

	orch := gateway.NewOrchestrator(
		sessions, messages, rt,
		title.NewSummarizer(nil),
		bus, registry,
		gateway.NewTranslator(registry, tool.NewRegistry(), 0),
	)
	ws := gateway.NewHandler(verifier, orch, registry, bus)

	return New(DefaultConfig(), verifier, rt, sessions, messages, ws)
}

func doRequest(t *testing.T, s *Server, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, &scriptedRuntime{}, "u1")

	rec := doRequest(t, s, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}

func TestChatRequiresAuth(t *testing.T) {
	s := newTestServer(t, &scriptedRuntime{}, "u1")

	rec := doRequest(t, s, http.MethodPost, "/chat", "", `{"query": "hi"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestChatSync(t *testing.T) {
	rt := &scriptedRuntime{events: []agent.Event{
		agent.TokenDelta("你好"),
		agent.TokenDelta("，有什么可以帮您"),
	}}
	s := newTestServer(t, rt, "u1")
	token := signToken(t, "u1")

	rec := doRequest(t, s, http.MethodPost, "/chat", token, `{"query": "打个招呼"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "你好，有什么可以帮您")

	// The caller's bearer token flowed into the runtime's context.
	assert.Equal(t, token, rt.lastToken)
}

func TestChatEmptyQuery(t *testing.T) {
	s := newTestServer(t, &scriptedRuntime{}, "u1")

	rec := doRequest(t, s, http.MethodPost, "/chat", signToken(t, "u1"), `{"query": "  "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatRuntimeErrorIs500(t *testing.T) {
	rt := &scriptedRuntime{events: []agent.Event{
		agent.Error(fmt.Errorf("model unavailable")),
	}}
	s := newTestServer(t, rt, "u1")

	rec := doRequest(t, s, http.MethodPost, "/chat", signToken(t, "u1"), `{"query": "hi"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestListSessions(t *testing.T) {
	s := newTestServer(t, &scriptedRuntime{}, "u1")

	rec := doRequest(t, s, http.MethodGet, "/sessions/?page=2&pageSize=5", signToken(t, "u1"), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"page":2`)
	assert.Contains(t, rec.Body.String(), "新对话")
}

func TestListMessagesForeignSessionForbidden(t *testing.T) {
	s := newTestServer(t, &scriptedRuntime{}, "someone-else")

	rec := doRequest(t, s, http.MethodGet, "/sessions/1/messages", signToken(t, "u1"), "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestListMessagesUnknownSession(t *testing.T) {
	s := newTestServer(t, &scriptedRuntime{}, "u1")

	rec := doRequest(t, s, http.MethodGet, "/sessions/404/messages", signToken(t, "u1"), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListMessagesOwned(t *testing.T) {
	s := newTestServer(t, &scriptedRuntime{}, "u1")

	rec := doRequest(t, s, http.MethodGet, "/sessions/1/messages", signToken(t, "u1"), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"messages"`)
}

func TestDeleteSessionOwned(t *testing.T) {
	s := newTestServer(t, &scriptedRuntime{}, "u1")

	rec := doRequest(t, s, http.MethodDelete, "/sessions/1/", signToken(t, "u1"), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "success")
}
