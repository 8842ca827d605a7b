package agent

import (
	"context"

	goopenai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// ProviderOpenAI OpenAI 及兼容协议的网关
const ProviderOpenAI = "openai"

// OpenAI 基于 Chat Completions 流式接口的 Agent
type OpenAI struct {
	client    *goopenai.Client
	model     string
	maxTokens int
}

// NewOpenAI 创建 OpenAI Agent
// 参数:
//   - apiKey: API Key
//   - baseURL: 自定义网关地址，空表示官方地址
//   - model: 模型名
//   - maxTokens: 单次回复最大 token 数，0 表示不限制
func NewOpenAI(apiKey, baseURL, model string, maxTokens int) *OpenAI {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := goopenai.NewClient(opts...)

	return &OpenAI{client: client, model: model, maxTokens: maxTokens}
}

func (a *OpenAI) Name() string {
	return ProviderOpenAI
}

func (a *OpenAI) Stream(ctx context.Context, req *Request) (Stream, error) {
	stream := a.client.Chat.Completions.NewStreaming(ctx, a.params(req))
	s, err := openChunkStream(ProviderOpenAI, stream, func(chunk goopenai.ChatCompletionChunk) string {
		if len(chunk.Choices) == 0 {
			return ""
		}
		return chunk.Choices[0].Delta.Content
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (a *OpenAI) params(req *Request) goopenai.ChatCompletionNewParams {
	var msgs []goopenai.ChatCompletionMessageParamUnion
	if req.System != "" {
		msgs = append(msgs, goopenai.SystemMessage(req.System))
	}
	for _, m := range req.Messages {
		switch m.Role {
		case RoleUser:
			msgs = append(msgs, goopenai.UserMessageParts(goopenai.TextPart(m.Text)))
		case RoleAssistant:
			msgs = append(msgs, goopenai.ChatCompletionAssistantMessageParam{
				Role: goopenai.F(goopenai.ChatCompletionAssistantMessageParamRoleAssistant),
				Content: goopenai.F([]goopenai.ChatCompletionAssistantMessageParamContentUnion{
					goopenai.TextPart(m.Text),
				}),
			})
		}
	}

	params := goopenai.ChatCompletionNewParams{
		Model:    goopenai.String(a.model),
		Messages: goopenai.F(msgs),
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = a.maxTokens
	}
	if maxTokens > 0 {
		params.MaxTokens = goopenai.Int(int64(maxTokens))
	}
	return params
}
