// Package gemini implements research.Provider on the Gemini API with Google
// Search grounding.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/linnemanlabs/regwatch/internal/research"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.5-pro"

// Client implements research.Provider using the google.golang.org/genai SDK.
type Client struct {
	models *genai.Models
	model  string
}

// New creates a Gemini client. An empty key fails with research.ErrAuthentication.
func New(ctx context.Context, apiKey, model string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key: %w", research.ErrAuthentication)
	}
	if model == "" {
		model = DefaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &Client{models: client.Models, model: model}, nil
}

// Generate sends the conversation with Google Search grounding enabled.
func (c *Client) Generate(ctx context.Context, req *research.Request) (*research.Response, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Temperature)),
		Tools:       []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	resp, err := c.models.GenerateContent(ctx, c.model, toContents(req.History, req.Query), cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", classifyError(err))
	}

	out, err := fromResponse(resp)
	if err != nil {
		return nil, err
	}
	out.Model = c.model
	return out, nil
}

// toContents maps prior turns and the new question onto genai contents.
// Assistant turns use the model role.
func toContents(history []research.Turn, query string) []*genai.Content {
	out := make([]*genai.Content, 0, len(history)+1)
	for _, t := range history {
		role := genai.Role(genai.RoleUser)
		if t.Role == research.RoleAssistant {
			role = genai.RoleModel
		}
		out = append(out, genai.NewContentFromText(t.Content, role))
	}
	return append(out, genai.NewContentFromText(query, genai.RoleUser))
}

// fromResponse extracts the first candidate's text and its web grounding chunks.
func fromResponse(resp *genai.GenerateContentResponse) (*research.Response, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return nil, research.ErrMalformedResponse
	}
	cand := resp.Candidates[0]

	var b strings.Builder
	if cand.Content != nil {
		for _, p := range cand.Content.Parts {
			if p == nil || p.Thought {
				continue
			}
			b.WriteString(p.Text)
		}
	}
	if strings.TrimSpace(b.String()) == "" {
		return nil, research.ErrMalformedResponse
	}

	citations := []research.Citation{}
	if gm := cand.GroundingMetadata; gm != nil {
		for _, chunk := range gm.GroundingChunks {
			if chunk == nil || chunk.Web == nil {
				continue
			}
			title := chunk.Web.Title
			if title == "" {
				title = research.DefaultCitationTitle
			}
			citations = append(citations, research.Citation{Title: title, URI: chunk.Web.URI})
		}
	}

	return &research.Response{Text: b.String(), Citations: citations}, nil
}

// classifyError wraps SDK errors with the research sentinel for their status.
func classifyError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if sentinel := research.StatusError(apiErr.Code); sentinel != nil {
			return fmt.Errorf("%w: %w", sentinel, err)
		}
		return err
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		if sentinel := research.StatusError(apiErrPtr.Code); sentinel != nil {
			return fmt.Errorf("%w: %w", sentinel, err)
		}
	}
	return err
}
