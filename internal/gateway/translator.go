package gateway

import (
	"context"
	"strings"
	"time"

	"github.com/concierge-ai/concierge/internal/agent"
	"github.com/concierge-ai/concierge/internal/logging"
	"github.com/concierge-ai/concierge/internal/tool"
	"github.com/concierge-ai/concierge/pkg/types"
)

// Sender is the slice of the registry the translator needs.
type Sender interface {
	SendChunk(userID, content string, isFinal bool)
	SendStatus(userID string, status types.Status, data map[string]any)
	SendError(userID, content string)
}

// Translator converts one turn's execution events into protocol messages,
// preserving their order.
type Translator struct {
	sender Sender
	tools  *tool.Registry

	// delay paces chunk emission for perceived smoothness. Zero disables it.
	delay time.Duration
}

// NewTranslator creates a translator sending through sender and resolving
// tool display metadata from tools.
func NewTranslator(sender Sender, tools *tool.Registry, delay time.Duration) *Translator {
	return &Translator{sender: sender, tools: tools, delay: delay}
}

// Pump drains the event channel, emitting protocol messages in event order,
// and returns the accumulated assistant text. On an error event it emits a
// single terminal error message, skips the completion signals, and returns
// the text streamed so far plus the error.
func (t *Translator) Pump(ctx context.Context, userID string, events <-chan agent.Event) (string, error) {
	t.sender.SendStatus(userID, types.StatusThinking, nil)

	var reply strings.Builder
	for {
		var e agent.Event
		var ok bool
		select {
		case e, ok = <-events:
		case <-ctx.Done():
			t.sender.SendError(userID, "处理失败: "+ctx.Err().Error())
			return reply.String(), ctx.Err()
		}
		if !ok {
			break
		}

		switch e.Kind {
		case agent.KindTokenDelta:
			if e.Text == "" {
				continue
			}
			reply.WriteString(e.Text)
			t.sender.SendChunk(userID, e.Text, false)
			if t.delay > 0 {
				time.Sleep(t.delay)
			}

		case agent.KindToolStart:
			t.sender.SendStatus(userID, types.StatusToolCalling, t.toolData(e.Tool))

		case agent.KindToolEnd:
			t.sender.SendStatus(userID, types.StatusToolCompleted, t.toolData(e.Tool))

		case agent.KindError:
			logging.Error().Err(e.Err).Str("user_id", userID).Msg("turn failed mid-stream")
			t.sender.SendError(userID, "处理失败: "+e.Err.Error())
			return reply.String(), e.Err
		}
	}

	t.sender.SendChunk(userID, "", true)
	t.sender.SendStatus(userID, types.StatusCompleted, nil)
	return reply.String(), nil
}

// toolData builds the status payload for a tool lifecycle event.
func (t *Translator) toolData(name string) map[string]any {
	d := t.tools.Display(name)
	return map[string]any{
		"tool_name":    name,
		"display_name": d.DisplayName,
		"description":  d.Description,
		"icon":         d.Icon,
		"category":     d.Category,
	}
}
