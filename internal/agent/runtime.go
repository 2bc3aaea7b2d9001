package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/concierge-ai/concierge/internal/logging"
	"github.com/concierge-ai/concierge/internal/tool"
	"github.com/concierge-ai/concierge/pkg/types"
)

const (
	// MaxSteps bounds the tool-calling loop.
	MaxSteps = 10
	// MaxRetries bounds stream-open retries per step.
	MaxRetries = 3

	retryInitialInterval = time.Second
	retryMaxInterval     = 30 * time.Second
	retryMaxElapsedTime  = 2 * time.Minute
)

const defaultSystemPrompt = "你是社区智能助理，帮助用户查询天气、账单、通知等信息。" +
	"需要用户数据时调用相应工具，回答保持简洁友好，使用中文。"

// Runtime executes one conversational turn. The returned channel carries the
// turn's execution events in order and is closed when the turn ends; a
// KindError event, if any, is the last one sent.
type Runtime interface {
	Run(ctx context.Context, input string, history []types.Message) (<-chan Event, error)
}

// EinoRuntime is the production Runtime: a tool-calling loop over a
// streaming chat model.
type EinoRuntime struct {
	model        model.ToolCallingChatModel
	tools        *tool.Registry
	maxSteps     int
	systemPrompt string
}

// New creates a runtime over the given model and tool registry.
func New(chatModel model.ToolCallingChatModel, tools *tool.Registry) *EinoRuntime {
	return &EinoRuntime{
		model:        chatModel,
		tools:        tools,
		maxSteps:     MaxSteps,
		systemPrompt: defaultSystemPrompt,
	}
}

// Run starts a turn. Tool binding failures surface synchronously; everything
// after that arrives on the event channel.
func (r *EinoRuntime) Run(ctx context.Context, input string, history []types.Message) (<-chan Event, error) {
	bound := r.model
	if infos := r.tools.ToolInfos(); len(infos) > 0 {
		var err error
		bound, err = r.model.WithTools(infos)
		if err != nil {
			return nil, fmt.Errorf("agent: bind tools: %w", err)
		}
	}

	msgs := make([]*schema.Message, 0, len(history)+2)
	msgs = append(msgs, schema.SystemMessage(r.systemPrompt))
	for _, m := range history {
		switch m.Role {
		case types.RoleAssistant:
			msgs = append(msgs, schema.AssistantMessage(m.Content, nil))
		default:
			msgs = append(msgs, schema.UserMessage(m.Content))
		}
	}
	msgs = append(msgs, schema.UserMessage(input))

	events := make(chan Event, 32)
	go func() {
		defer close(events)
		r.loop(ctx, bound, msgs, events)
	}()
	return events, nil
}

func newRetryBackoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = retryInitialInterval
	b.MaxInterval = retryMaxInterval
	b.MaxElapsedTime = retryMaxElapsedTime
	b.RandomizationFactor = 0.5
	b.Multiplier = 2.0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, MaxRetries), ctx)
}

func (r *EinoRuntime) loop(ctx context.Context, chatModel model.ToolCallingChatModel, msgs []*schema.Message, events chan<- Event) {
	for step := 0; step < r.maxSteps; step++ {
		if ctx.Err() != nil {
			emit(ctx, events, Error(ctx.Err()))
			return
		}

		full, err := r.step(ctx, chatModel, msgs, events)
		if err != nil {
			emit(ctx, events, Error(err))
			return
		}

		if len(full.ToolCalls) == 0 {
			return
		}

		msgs = append(msgs, full)
		for _, tc := range full.ToolCalls {
			name := tc.Function.Name
			emit(ctx, events, ToolStart(name))

			out, err := r.tools.Execute(ctx, name, json.RawMessage(tc.Function.Arguments))
			if err != nil {
				// A failing tool does not end the turn: the model gets a
				// structured failure and decides how to respond.
				logging.Warn().Err(err).Str("tool", name).Msg("tool execution failed")
				failure, _ := json.Marshal(map[string]any{
					"success": false,
					"error":   err.Error(),
				})
				out = string(failure)
			}
			msgs = append(msgs, schema.ToolMessage(out, tc.ID))

			emit(ctx, events, ToolEnd(name))
		}
	}
	emit(ctx, events, Error(fmt.Errorf("agent: max steps (%d) exceeded", r.maxSteps)))
}

// step opens one model stream, forwards its text fragments, and returns the
// concatenated message. Stream-open failures retry with jittered backoff.
func (r *EinoRuntime) step(ctx context.Context, chatModel model.ToolCallingChatModel, msgs []*schema.Message, events chan<- Event) (*schema.Message, error) {
	retry := newRetryBackoff(ctx)

	var stream *schema.StreamReader[*schema.Message]
	for {
		var err error
		stream, err = chatModel.Stream(ctx, msgs)
		if err == nil {
			break
		}
		next := retry.NextBackOff()
		if next == backoff.Stop {
			return nil, fmt.Errorf("agent: open stream: %w", err)
		}
		logging.Warn().Err(err).Dur("retry_in", next).Msg("model stream open failed, retrying")
		time.Sleep(next)
	}
	defer stream.Close()

	var chunks []*schema.Message
	for {
		chunk, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("agent: recv stream: %w", err)
		}
		if chunk.Content != "" {
			emit(ctx, events, TokenDelta(chunk.Content))
		}
		chunks = append(chunks, chunk)
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("agent: empty model stream")
	}

	full, err := schema.ConcatMessages(chunks)
	if err != nil {
		return nil, fmt.Errorf("agent: concat stream: %w", err)
	}
	return full, nil
}

// emit sends unless the turn's context is already gone, so an abandoned
// reader never wedges the loop goroutine.
func emit(ctx context.Context, events chan<- Event, e Event) {
	select {
	case events <- e:
	case <-ctx.Done():
	}
}
