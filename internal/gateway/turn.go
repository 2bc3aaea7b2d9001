package gateway

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/concierge-ai/concierge/internal/agent"
	"github.com/concierge-ai/concierge/internal/event"
	"github.com/concierge-ai/concierge/internal/logging"
	"github.com/concierge-ai/concierge/internal/store"
	"github.com/concierge-ai/concierge/internal/title"
	"github.com/concierge-ai/concierge/pkg/types"
)

// backgroundTimeout bounds the detached title and persistence tasks.
const backgroundTimeout = 30 * time.Second

// Orchestrator runs turns: it resolves the session, drives the agent
// runtime through the translator, and schedules the detached title and
// persistence tasks.
type Orchestrator struct {
	sessions   *store.SessionStore
	messages   *store.MessageStore
	runtime    agent.Runtime
	titles     *title.Summarizer
	bus        *event.Bus
	registry   *Registry
	translator *Translator

	bg sync.WaitGroup
}

// NewOrchestrator wires a turn orchestrator.
func NewOrchestrator(
	sessions *store.SessionStore,
	messages *store.MessageStore,
	runtime agent.Runtime,
	titles *title.Summarizer,
	bus *event.Bus,
	registry *Registry,
	translator *Translator,
) *Orchestrator {
	return &Orchestrator{
		sessions:   sessions,
		messages:   messages,
		runtime:    runtime,
		titles:     titles,
		bus:        bus,
		registry:   registry,
		translator: translator,
	}
}

// Handle processes one turn. ctx carries the caller's credential; errors are
// reported to the client as a terminal error message, the connection stays
// open for the next turn.
func (o *Orchestrator) Handle(ctx context.Context, userID string, msg *types.ClientMessage) {
	turnID := ulid.Make().String()
	log := logging.With().Str("turn_id", turnID).Str("user_id", userID).Logger()

	query := strings.TrimSpace(msg.Query)
	if query == "" {
		o.registry.SendError(userID, "查询内容不能为空")
		return
	}
	log.Debug().Int("query_len", len(query)).Msg("turn started")

	sessionID, created, ok := o.resolveSession(ctx, userID, msg.SessionID)
	if !ok {
		return
	}
	if created {
		o.registry.SendSessionCreated(userID, sessionID, types.PlaceholderTitle)
		o.spawn(func() { o.refineTitle(userID, sessionID, query) })
	}

	var history []types.Message
	if !created {
		var err error
		history, err = o.messages.ListBySession(ctx, sessionID)
		if err != nil {
			log.Error().Err(err).Int64("session_id", sessionID).Msg("load history failed")
			o.registry.SendError(userID, "加载会话历史失败，请稍后再试")
			return
		}
	}

	events, err := o.runtime.Run(ctx, query, history)
	if err != nil {
		log.Error().Err(err).Msg("agent start failed")
		o.registry.SendError(userID, "处理失败: "+err.Error())
		return
	}

	reply, err := o.translator.Pump(ctx, userID, events)
	if err != nil {
		// The translator already sent the terminal error. Nothing is
		// persisted for a failed turn.
		return
	}
	log.Debug().Int64("session_id", sessionID).Int("reply_len", len(reply)).Msg("turn completed")

	o.spawn(func() { o.persist(userID, sessionID, query, reply) })
}

// resolveSession validates a supplied session id or implicitly creates one.
// The turn must not reach the agent without a resolved session.
func (o *Orchestrator) resolveSession(ctx context.Context, userID string, supplied *int64) (sessionID int64, created, ok bool) {
	if supplied != nil {
		owner, err := o.sessions.Owner(ctx, *supplied)
		if err != nil {
			logging.Warn().Err(err).Int64("session_id", *supplied).Msg("session lookup failed")
			o.registry.SendError(userID, "会话不存在或暂时不可用")
			return 0, false, false
		}
		if owner != userID {
			o.registry.SendError(userID, "无权访问该会话")
			return 0, false, false
		}
		return *supplied, false, true
	}

	sess, err := o.sessions.Create(ctx, userID, types.PlaceholderTitle)
	if err != nil {
		logging.Error().Err(err).Str("user_id", userID).Msg("implicit session create failed")
		o.registry.SendError(userID, "创建会话失败，请稍后再试")
		return 0, false, false
	}

	// The envelope goes to the client directly; this publish is for external
	// subscribers only.
	o.bus.Publish(event.Event{
		Type: event.SessionCreated,
		Data: event.SessionCreatedData{UserID: userID, Info: sess},
	})
	return sess.ID, true, true
}

// spawn runs fn as a detached background task. Disconnects do not cancel
// these; Wait lets shutdown drain them.
func (o *Orchestrator) spawn(fn func()) {
	o.bg.Add(1)
	go func() {
		defer o.bg.Done()
		fn()
	}()
}

// Wait blocks until all detached background tasks have finished.
func (o *Orchestrator) Wait() {
	o.bg.Wait()
}

// refineTitle replaces the placeholder title with a generated one. Any
// failure leaves the placeholder in place and no session_updated is sent.
func (o *Orchestrator) refineTitle(userID string, sessionID int64, query string) {
	ctx, cancel := context.WithTimeout(context.Background(), backgroundTimeout)
	defer cancel()

	generated, err := o.titles.Summarize(ctx, query)
	if err != nil {
		logging.Warn().Err(err).Int64("session_id", sessionID).Msg("title generation failed")
		return
	}
	if err := o.sessions.UpdateTitle(ctx, sessionID, generated); err != nil {
		logging.Warn().Err(err).Int64("session_id", sessionID).Msg("title update failed")
		return
	}

	o.bus.Publish(event.Event{
		Type: event.SessionUpdated,
		Data: event.SessionUpdatedData{UserID: userID, SessionID: sessionID, Title: generated},
	})
}

// persist writes the turn's message pair. The writes are independent,
// attempted once each, and their failures are only logged.
func (o *Orchestrator) persist(userID string, sessionID int64, query, reply string) {
	ctx, cancel := context.WithTimeout(context.Background(), backgroundTimeout)
	defer cancel()

	pair := []types.Message{
		{SessionID: sessionID, Role: types.RoleUser, Content: query},
		{SessionID: sessionID, Role: types.RoleAssistant, Content: reply},
	}
	for i := range pair {
		m := pair[i]
		if err := o.messages.Append(ctx, m.SessionID, m.Role, m.Content); err != nil {
			logging.Warn().Err(err).Int64("session_id", sessionID).Str("role", string(m.Role)).Msg("message persist failed")
			continue
		}
		// Notification surface for external subscribers; nothing in-process
		// consumes these.
		o.bus.Publish(event.Event{
			Type: event.MessageCreated,
			Data: event.MessageCreatedData{UserID: userID, Info: &m},
		})
	}
}
