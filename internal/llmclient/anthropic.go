package llmclient

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicMaxTokens = int64(1024)

// AnthropicClient adapts anthropic-sdk-go to the Provider interface.
type AnthropicClient struct {
	sdk   anthropic.Client
	model string
}

func NewAnthropic(apiKey, baseURL, model string, httpClient *http.Client) *AnthropicClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	opts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(apiKey)),
		option.WithHTTPClient(httpClient),
	}
	if base := strings.TrimSpace(baseURL); base != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSuffix(base, "/")))
	}
	if model == "" {
		model = string(anthropic.ModelClaude3_7SonnetLatest)
	}
	return &AnthropicClient{sdk: anthropic.NewClient(opts...), model: model}
}

func (c *AnthropicClient) Name() string { return "anthropic" }

func (c *AnthropicClient) Ping(ctx context.Context) error {
	_, err := c.sdk.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: 1,
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock("ping"))},
	})
	return err
}

func (c *AnthropicClient) params(msgs []Message, model string, maxTokens *int) (anthropic.MessageNewParams, error) {
	sys, converted, err := adaptAnthropicMessages(msgs)
	if err != nil {
		return anthropic.MessageNewParams{}, err
	}
	m := c.model
	if strings.TrimSpace(model) != "" {
		m = model
	}
	mt := defaultAnthropicMaxTokens
	if maxTokens != nil {
		mt = int64(*maxTokens)
	}
	return anthropic.MessageNewParams{
		Model:     anthropic.Model(m),
		Messages:  converted,
		System:    sys,
		MaxTokens: mt,
	}, nil
}

func (c *AnthropicClient) Chat(ctx context.Context, msgs []Message, model string, _ float64, maxTokens *int) (string, error) {
	params, err := c.params(msgs, model, maxTokens)
	if err != nil {
		return "", err
	}
	resp, err := c.sdk.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic chat: %w", err)
	}
	var sb strings.Builder
	for _, block := range resp.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(tb.Text)
		}
	}
	return sb.String(), nil
}

func (c *AnthropicClient) ChatStream(ctx context.Context, msgs []Message, model string, _ float64, maxTokens *int, h StreamHandler) error {
	params, err := c.params(msgs, model, maxTokens)
	if err != nil {
		return err
	}
	stream := c.sdk.Messages.NewStreaming(ctx, params)
	defer func() { _ = stream.Close() }()

	for stream.Next() {
		event := stream.Current()
		if delta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent); ok {
			if td, ok := delta.Delta.AsAny().(anthropic.TextDelta); ok && h != nil && td.Text != "" {
				h.OnDelta(td.Text)
			}
		}
	}
	if err := stream.Err(); err != nil {
		return fmt.Errorf("anthropic stream: %w", err)
	}
	return nil
}

func adaptAnthropicMessages(msgs []Message) ([]anthropic.TextBlockParam, []anthropic.MessageParam, error) {
	if len(msgs) == 0 {
		return nil, nil, fmt.Errorf("messages required")
	}
	var system []anthropic.TextBlockParam
	var out []anthropic.MessageParam
	for _, m := range msgs {
		switch strings.ToLower(strings.TrimSpace(m.Role)) {
		case "system":
			if strings.TrimSpace(m.Content) != "" {
				system = append(system, anthropic.TextBlockParam{Text: m.Content})
			}
		case "user":
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		case "assistant":
			out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			return nil, nil, fmt.Errorf("unsupported role for anthropic provider: %s", m.Role)
		}
	}
	return system, out, nil
}
