// Package claude implements research.Provider on the Anthropic Messages API.
package claude

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/linnemanlabs/regwatch/internal/research"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "claude-sonnet-4-5"

// Client implements research.Provider using the anthropic-sdk-go client.
type Client struct {
	sdk   anthropic.Client
	model string
}

// New creates a Claude client. An empty key fails with research.ErrAuthentication.
func New(apiKey, model string, opts ...option.RequestOption) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("claude api key: %w", research.ErrAuthentication)
	}
	if model == "" {
		model = DefaultModel
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &Client{sdk: anthropic.NewClient(opts...), model: model}, nil
}

// Generate sends the conversation to the Messages API.
func (c *Client) Generate(ctx context.Context, req *research.Request) (*research.Response, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = research.DefaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   int64(maxTokens),
		Messages:    toSDKMessages(req.History, req.Query),
		Temperature: anthropic.Float(req.Temperature),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	msg, err := c.sdk.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("claude messages: %w", classifyError(err))
	}

	out, err := fromSDKMessage(msg)
	if err != nil {
		return nil, err
	}
	out.Model = string(msg.Model)
	return out, nil
}

func toSDKMessages(history []research.Turn, query string) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(history)+1)
	for _, t := range history {
		block := anthropic.NewTextBlock(t.Content)
		if t.Role == research.RoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(block))
			continue
		}
		out = append(out, anthropic.NewUserMessage(block))
	}
	return append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(query)))
}

// fromSDKMessage joins text blocks and collects citations that carry a URL,
// deduplicated by URL.
func fromSDKMessage(msg *anthropic.Message) (*research.Response, error) {
	if msg == nil {
		return nil, research.ErrMalformedResponse
	}

	var b strings.Builder
	citations := []research.Citation{}
	seen := make(map[string]bool)
	for _, block := range msg.Content {
		if block.Type != "text" {
			continue
		}
		b.WriteString(block.Text)
		for _, c := range block.Citations {
			if c.URL == "" || seen[c.URL] {
				continue
			}
			seen[c.URL] = true
			title := c.Title
			if title == "" {
				title = research.DefaultCitationTitle
			}
			citations = append(citations, research.Citation{Title: title, URI: c.URL})
		}
	}
	if strings.TrimSpace(b.String()) == "" {
		return nil, research.ErrMalformedResponse
	}
	return &research.Response{Text: b.String(), Citations: citations}, nil
}

func statusCode(err error) (int, bool) {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) && apiErr != nil {
		return apiErr.StatusCode, true
	}
	return 0, false
}

func classifyError(err error) error {
	if code, ok := statusCode(err); ok {
		if sentinel := research.StatusError(code); sentinel != nil {
			return fmt.Errorf("%w: %w", sentinel, err)
		}
	}
	return err
}
