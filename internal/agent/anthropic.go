package agent

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// ProviderAnthropic Anthropic Messages 接口
const ProviderAnthropic = "anthropic"

// Messages 接口要求必须指定 max_tokens
const defaultAnthropicMaxTokens = 1024

// Anthropic 基于 Messages 流式接口的 Agent
type Anthropic struct {
	client    *anthropic.Client
	model     string
	maxTokens int
}

// NewAnthropic 创建 Anthropic Agent
func NewAnthropic(apiKey, model string, maxTokens int) *Anthropic {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}
	return &Anthropic{client: &client, model: model, maxTokens: maxTokens}
}

func (a *Anthropic) Name() string {
	return ProviderAnthropic
}

func (a *Anthropic) Stream(ctx context.Context, req *Request) (Stream, error) {
	stream := a.client.Messages.NewStreaming(ctx, a.params(req))
	s, err := openChunkStream(ProviderAnthropic, stream, func(event anthropic.MessageStreamEventUnion) string {
		switch event := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			switch delta := event.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				return delta.Text
			}
		}
		return ""
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (a *Anthropic) params(req *Request) anthropic.MessageNewParams {
	var msgs []anthropic.MessageParam
	for _, m := range req.Messages {
		switch m.Role {
		case RoleUser:
			msgs = append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Text)))
		case RoleAssistant:
			msgs = append(msgs, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Text)))
		}
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = a.maxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: int64(maxTokens),
		Messages:  msgs,
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	return params
}
