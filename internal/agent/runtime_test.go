package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/concierge-ai/concierge/internal/tool"
	"github.com/concierge-ai/concierge/pkg/types"
)

// fakeModel replays scripted streams, one per Stream call, and records the
// messages each call received.
type fakeModel struct {
	steps  [][]*schema.Message
	inputs [][]*schema.Message
	call   int
}

func (f *fakeModel) Generate(ctx context.Context, in []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	return nil, fmt.Errorf("not used")
}

func (f *fakeModel) Stream(ctx context.Context, in []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	f.inputs = append(f.inputs, in)
	if f.call >= len(f.steps) {
		return nil, fmt.Errorf("no scripted step %d", f.call)
	}
	chunks := f.steps[f.call]
	f.call++
	return schema.StreamReaderFromArray(chunks), nil
}

func (f *fakeModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return f, nil
}

func textChunk(s string) *schema.Message {
	return &schema.Message{Role: schema.Assistant, Content: s}
}

func toolCallChunk(id, name, args string) *schema.Message {
	return &schema.Message{
		Role: schema.Assistant,
		ToolCalls: []schema.ToolCall{{
			ID:       id,
			Function: schema.FunctionCall{Name: name, Arguments: args},
		}},
	}
}

// stubTool is a registry entry with canned output.
type stubTool struct {
	name string
	out  string
	err  error
}

func (s *stubTool) Name() string                 { return s.name }
func (s *stubTool) Description() string          { return s.name }
func (s *stubTool) Parameters() json.RawMessage  { return json.RawMessage(`{"type":"object","properties":{}}`) }
func (s *stubTool) Display() types.ToolDisplay   { return types.ToolDisplay{DisplayName: s.name} }
func (s *stubTool) Execute(ctx context.Context, input json.RawMessage) (string, error) {
	return s.out, s.err
}

func collect(t *testing.T, events <-chan Event) []Event {
	t.Helper()
	var out []Event
	for e := range events {
		out = append(out, e)
	}
	return out
}

func TestRunPlainText(t *testing.T) {
	fm := &fakeModel{steps: [][]*schema.Message{
		{textChunk("你好"), textChunk("！")},
	}}

	rt := New(fm, tool.NewRegistry())
	events, err := rt.Run(context.Background(), "打个招呼", nil)
	require.NoError(t, err)

	got := collect(t, events)
	require.Len(t, got, 2)
	assert.Equal(t, TokenDelta("你好"), got[0])
	assert.Equal(t, TokenDelta("！"), got[1])
}

func TestRunHistoryAndInputOrder(t *testing.T) {
	fm := &fakeModel{steps: [][]*schema.Message{
		{textChunk("ok")},
	}}

	rt := New(fm, tool.NewRegistry())
	history := []types.Message{
		{Role: types.RoleUser, Content: "之前的问题"},
		{Role: types.RoleAssistant, Content: "之前的回答"},
	}
	events, err := rt.Run(context.Background(), "新问题", history)
	require.NoError(t, err)
	collect(t, events)

	require.Len(t, fm.inputs, 1)
	msgs := fm.inputs[0]
	require.Len(t, msgs, 4)
	assert.Equal(t, schema.System, msgs[0].Role)
	assert.Equal(t, "之前的问题", msgs[1].Content)
	assert.Equal(t, schema.Assistant, msgs[2].Role)
	assert.Equal(t, "新问题", msgs[3].Content)
}

func TestRunToolCall(t *testing.T) {
	fm := &fakeModel{steps: [][]*schema.Message{
		{toolCallChunk("call-1", "get_clock", `{}`)},
		{textChunk("现在是下午三点")},
	}}

	reg := tool.NewRegistry()
	reg.Register(&stubTool{name: "get_clock", out: "15:00"})

	rt := New(fm, reg)
	events, err := rt.Run(context.Background(), "现在几点", nil)
	require.NoError(t, err)

	got := collect(t, events)
	require.Len(t, got, 3)
	assert.Equal(t, ToolStart("get_clock"), got[0])
	assert.Equal(t, ToolEnd("get_clock"), got[1])
	assert.Equal(t, TokenDelta("现在是下午三点"), got[2])

	// The second model call must see the assistant tool call and its result.
	require.Len(t, fm.inputs, 2)
	second := fm.inputs[1]
	last := second[len(second)-1]
	assert.Equal(t, schema.Tool, last.Role)
	assert.Equal(t, "15:00", last.Content)
	assert.Equal(t, "call-1", last.ToolCallID)
}

func TestRunToolFailureContinues(t *testing.T) {
	fm := &fakeModel{steps: [][]*schema.Message{
		{toolCallChunk("call-1", "broken", `{}`)},
		{textChunk("工具暂时不可用")},
	}}

	reg := tool.NewRegistry()
	reg.Register(&stubTool{name: "broken", err: fmt.Errorf("backend down")})

	rt := New(fm, reg)
	events, err := rt.Run(context.Background(), "试试", nil)
	require.NoError(t, err)

	got := collect(t, events)
	require.Len(t, got, 3)
	assert.Equal(t, KindToolStart, got[0].Kind)
	assert.Equal(t, KindToolEnd, got[1].Kind)
	assert.Equal(t, KindTokenDelta, got[2].Kind)

	// The model sees a structured failure, not a dead turn.
	second := fm.inputs[1]
	last := second[len(second)-1]
	var failure map[string]any
	require.NoError(t, json.Unmarshal([]byte(last.Content), &failure))
	assert.Equal(t, false, failure["success"])
}

func TestRunEmptyStreamIsError(t *testing.T) {
	fm := &fakeModel{steps: [][]*schema.Message{{}}}

	rt := New(fm, tool.NewRegistry())
	events, err := rt.Run(context.Background(), "hi", nil)
	require.NoError(t, err)

	got := collect(t, events)
	require.Len(t, got, 1)
	assert.Equal(t, KindError, got[0].Kind)
	assert.Error(t, got[0].Err)
}

func TestRunMaxStepsIsError(t *testing.T) {
	fm := &fakeModel{steps: [][]*schema.Message{
		{toolCallChunk("call-1", "echo", `{}`)},
		{toolCallChunk("call-2", "echo", `{}`)},
	}}

	reg := tool.NewRegistry()
	reg.Register(&stubTool{name: "echo", out: "ok"})

	rt := New(fm, reg)
	rt.maxSteps = 2

	events, err := rt.Run(context.Background(), "loop", nil)
	require.NoError(t, err)

	got := collect(t, events)
	require.NotEmpty(t, got)
	final := got[len(got)-1]
	assert.Equal(t, KindError, final.Kind)
	assert.Contains(t, final.Err.Error(), "max steps")
}
