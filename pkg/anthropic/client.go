// Package anthropic wraps the Anthropic SDK behind the one call this
// tool needs: drafting a short outreach message.
package anthropic

import (
	"context"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
)

const defaultModel = "claude-sonnet-4-5"

type Client interface {
	// CreateMessage sends one system+user exchange and returns the
	// concatenated text of the reply.
	CreateMessage(ctx context.Context, system, user string) (string, error)
}

type client struct {
	sdk       sdk.Client
	model     string
	maxTokens int64
}

type Option func(*clientConfig)

type clientConfig struct {
	model      string
	maxTokens  int64
	sdkOptions []option.RequestOption
}

func WithModel(model string) Option {
	return func(c *clientConfig) { c.model = model }
}

func WithMaxTokens(n int64) Option {
	return func(c *clientConfig) { c.maxTokens = n }
}

// WithBaseURL points the client at a different API endpoint, used in
// tests.
func WithBaseURL(u string) Option {
	return func(c *clientConfig) {
		c.sdkOptions = append(c.sdkOptions, option.WithBaseURL(u))
	}
}

func NewClient(apiKey string, opts ...Option) (Client, error) {
	if apiKey == "" {
		return nil, eris.New("anthropic: api key is required")
	}
	cfg := clientConfig{model: defaultModel, maxTokens: 1024}
	for _, opt := range opts {
		opt(&cfg)
	}
	sdkOpts := append([]option.RequestOption{option.WithAPIKey(apiKey)}, cfg.sdkOptions...)
	return &client{
		sdk:       sdk.NewClient(sdkOpts...),
		model:     cfg.model,
		maxTokens: cfg.maxTokens,
	}, nil
}

func (c *client) CreateMessage(ctx context.Context, system, user string) (string, error) {
	params := sdk.MessageNewParams{
		Model:     sdk.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(user)),
		},
	}
	if system != "" {
		params.System = []sdk.TextBlockParam{{Text: system}}
	}

	msg, err := c.sdk.Messages.New(ctx, params)
	if err != nil {
		return "", eris.Wrap(err, "anthropic: creating message")
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	out := strings.TrimSpace(sb.String())
	if out == "" {
		return "", eris.New("anthropic: empty completion")
	}
	return out, nil
}
