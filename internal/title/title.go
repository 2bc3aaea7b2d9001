// Package title generates short session titles from the first user query.
package title

import (
	"context"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// Fallback is used whenever generation fails or returns nothing usable.
const Fallback = "新会话"

// maxRunes bounds the generated title. The prompt asks for 10 characters;
// the hard cut covers models that ignore it.
const maxRunes = 20

const systemPrompt = `你是一个专业的对话总结助手。
请根据用户的输入内容，生成一个简短的会话标题。

要求：
1. 长度控制在 10 个字符以内。
2. 只要返回标题文本，不要包含引号或其他标点。
3. 如果输入太短或无意义，返回 "新会话"。`

// Summarizer turns a user query into a session title.
type Summarizer struct {
	model model.BaseChatModel
}

// NewSummarizer creates a summarizer over the given chat model.
func NewSummarizer(m model.BaseChatModel) *Summarizer {
	return &Summarizer{model: m}
}

// Summarize returns a short title for the given query. It never fails:
// every error path yields Fallback, with the error returned for logging.
func (s *Summarizer) Summarize(ctx context.Context, content string) (string, error) {
	msg, err := s.model.Generate(ctx, []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage("用户输入: " + content),
	}, model.WithTemperature(0.3))
	if err != nil {
		return Fallback, err
	}

	title := clean(msg.Content)
	if title == "" {
		return Fallback, nil
	}
	return title, nil
}

// clean normalizes model output into a single short line.
func clean(raw string) string {
	title := strings.TrimSpace(raw)
	if i := strings.IndexByte(title, '\n'); i >= 0 {
		title = strings.TrimSpace(title[:i])
	}
	title = strings.Trim(title, `"'“”‘’`)
	title = strings.TrimSpace(title)

	runes := []rune(title)
	if len(runes) > maxRunes {
		title = string(runes[:maxRunes])
	}
	return title
}
