package llmclient

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	sdk "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/packages/param"
)

// OpenAIClient adapts openai-go/v2 to the Provider interface. It serves
// both the "openai" and "local" (OpenAI-compatible, e.g. Ollama/vLLM)
// providers — the only difference is BaseURL.
type OpenAIClient struct {
	sdk   sdk.Client
	model string
}

func NewOpenAI(apiKey, baseURL, model string, httpClient *http.Client) *OpenAIClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithHTTPClient(httpClient)}
	if base := strings.TrimSpace(baseURL); base != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSuffix(base, "/")))
	}
	return &OpenAIClient{sdk: sdk.NewClient(opts...), model: model}
}

func (c *OpenAIClient) Name() string { return "openai" }

func (c *OpenAIClient) Ping(ctx context.Context) error {
	_, err := c.sdk.Models.List(ctx)
	return err
}

func adaptOpenAIMessages(msgs []Message) []sdk.ChatCompletionMessageParamUnion {
	out := make([]sdk.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch strings.ToLower(strings.TrimSpace(m.Role)) {
		case "system":
			out = append(out, sdk.SystemMessage(m.Content))
		case "assistant":
			out = append(out, sdk.AssistantMessage(m.Content))
		default:
			out = append(out, sdk.UserMessage(m.Content))
		}
	}
	return out
}

func (c *OpenAIClient) params(msgs []Message, model string, temperature float64, maxTokens *int) sdk.ChatCompletionNewParams {
	m := c.model
	if strings.TrimSpace(model) != "" {
		m = model
	}
	params := sdk.ChatCompletionNewParams{
		Model:       sdk.ChatModel(m),
		Messages:    adaptOpenAIMessages(msgs),
		Temperature: param.NewOpt(temperature),
	}
	if maxTokens != nil {
		params.MaxTokens = param.NewOpt(int64(*maxTokens))
	}
	return params
}

func (c *OpenAIClient) Chat(ctx context.Context, msgs []Message, model string, temperature float64, maxTokens *int) (string, error) {
	comp, err := c.sdk.Chat.Completions.New(ctx, c.params(msgs, model, temperature, maxTokens))
	if err != nil {
		return "", fmt.Errorf("openai chat: %w", err)
	}
	if len(comp.Choices) == 0 {
		return "", fmt.Errorf("openai chat: no choices returned")
	}
	return comp.Choices[0].Message.Content, nil
}

func (c *OpenAIClient) ChatStream(ctx context.Context, msgs []Message, model string, temperature float64, maxTokens *int, h StreamHandler) error {
	stream := c.sdk.Chat.Completions.NewStreaming(ctx, c.params(msgs, model, temperature, maxTokens))
	defer func() { _ = stream.Close() }()

	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta != "" && h != nil {
			h.OnDelta(delta)
		}
	}
	if err := stream.Err(); err != nil {
		return fmt.Errorf("openai stream: %w", err)
	}
	return nil
}
