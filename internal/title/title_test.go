package title

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeChatModel returns a canned reply or error from Generate.
type fakeChatModel struct {
	reply string
	err   error
}

func (f *fakeChatModel) Generate(ctx context.Context, in []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.reply, nil), nil
}

func (f *fakeChatModel) Stream(ctx context.Context, in []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("not used")
}

func TestSummarize(t *testing.T) {
	s := NewSummarizer(&fakeChatModel{reply: "天气查询"})

	title, err := s.Summarize(context.Background(), "今天北京天气怎么样")
	require.NoError(t, err)
	assert.Equal(t, "天气查询", title)
}

func TestSummarizeCleansOutput(t *testing.T) {
	cases := []struct {
		name  string
		reply string
		want  string
	}{
		{"quotes", `"账单查询"`, "账单查询"},
		{"cjk quotes", "“物业报修”", "物业报修"},
		{"multiline", "天气查询\n以下是详细说明", "天气查询"},
		{"whitespace", "  通知提醒  ", "通知提醒"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := NewSummarizer(&fakeChatModel{reply: tc.reply})
			title, err := s.Summarize(context.Background(), "query")
			require.NoError(t, err)
			assert.Equal(t, tc.want, title)
		})
	}
}

func TestSummarizeTruncatesLongOutput(t *testing.T) {
	s := NewSummarizer(&fakeChatModel{reply: strings.Repeat("长", 50)})

	title, err := s.Summarize(context.Background(), "query")
	require.NoError(t, err)
	assert.Len(t, []rune(title), 20)
}

func TestSummarizeFallbackOnError(t *testing.T) {
	s := NewSummarizer(&fakeChatModel{err: fmt.Errorf("model unavailable")})

	title, err := s.Summarize(context.Background(), "query")
	require.Error(t, err)
	assert.Equal(t, Fallback, title)
}

func TestSummarizeFallbackOnEmpty(t *testing.T) {
	s := NewSummarizer(&fakeChatModel{reply: "  \n  "})

	title, err := s.Summarize(context.Background(), "query")
	require.NoError(t, err)
	assert.Equal(t, Fallback, title)
}
