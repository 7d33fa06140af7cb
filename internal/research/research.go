// Package research is the regulatory research assistant: it forwards a
// question plus prior conversation to a grounded LLM provider and turns
// provider failures into fixed messages the dashboard can show verbatim.
package research

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/linnemanlabs/regwatch/internal/research")

// ErrEmptyQuery is returned when the question is blank.
var ErrEmptyQuery = errors.New("query is empty")

// User-facing answers for classified provider failures.
const (
	MsgAuthentication    = "Authentication Error: The regulatory engine's credentials are invalid."
	MsgUnavailable       = "Upstream Error: The research engine is currently unavailable."
	MsgMalformedResponse = "Response Error: The research engine returned an empty or malformed response."
)

// SystemInstruction frames every research call.
const SystemInstruction = `You are the Lead Regulatory Architect at Forefront.
Your expertise covers Title 17, Regulation S-X, and Rule 5-04.

When discussing Rule 5-04 Schedule II, identify if the user is referring to the historical exclusion of 'Schedule VI'.
Provide high-precision technical answers.
If you use Google Search grounding, you MUST extract and return the URLs.

Structure your responses using clear Markdown headers and bullet points for readability.`

// Temperature is kept low for regulatory precision.
const Temperature = 0.2

// DefaultMaxTokens bounds answer length for providers that require it.
const DefaultMaxTokens = 4096

// Answer is what the assistant returns to the caller.
type Answer struct {
	Text      string     `json:"text"`
	Citations []Citation `json:"sources"`
	// Failed is set when Text is a failure message rather than model output.
	Failed bool `json:"failed,omitempty"`
}

// Service answers research questions through a Provider.
type Service struct {
	provider Provider
	logger   log.Logger
	metrics  *Metrics
}

// NewService creates a research service. A nil provider means no
// credentials are configured and every question gets the authentication answer.
func NewService(provider Provider, logger log.Logger, metrics *Metrics) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	return &Service{provider: provider, logger: logger, metrics: metrics}
}

// Ask sends query with the prior history. Authentication, availability and
// malformed-response failures come back as an Answer carrying the matching
// message; any other provider error is returned.
func (s *Service) Ask(ctx context.Context, query string, history []Turn) (*Answer, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}

	if s.provider == nil {
		s.observe("unconfigured", 0)
		return failed(MsgAuthentication), nil
	}

	ctx, span := tracer.Start(ctx, "llm.call", trace.WithAttributes(
		attribute.String("gen_ai.operation.name", "llm.call"),
		attribute.Int("regwatch.research.history_turns", len(history)),
	))
	defer span.End()

	start := time.Now()
	resp, err := s.provider.Generate(ctx, &Request{
		System:      SystemInstruction,
		History:     history,
		Query:       query,
		Temperature: Temperature,
		MaxTokens:   DefaultMaxTokens,
	})
	dur := time.Since(start)

	if err == nil && strings.TrimSpace(resp.Text) == "" {
		err = ErrMalformedResponse
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		var msg, outcome string
		switch {
		case errors.Is(err, ErrAuthentication):
			msg, outcome = MsgAuthentication, "auth_error"
		case errors.Is(err, ErrUnavailable):
			msg, outcome = MsgUnavailable, "unavailable"
		case errors.Is(err, ErrMalformedResponse):
			msg, outcome = MsgMalformedResponse, "malformed"
		default:
			s.observe("error", dur)
			s.logger.Error(ctx, err, "research call failed", "duration", dur.Seconds())
			return nil, err
		}
		s.observe(outcome, dur)
		s.logger.Warn(ctx, "research call failed", "outcome", outcome, "error", err)
		return failed(msg), nil
	}

	span.SetAttributes(
		attribute.String("gen_ai.response.model", resp.Model),
		attribute.Int("regwatch.research.citations", len(resp.Citations)),
	)
	s.observe("success", dur)
	s.logger.Info(ctx, "research call complete",
		"model", resp.Model,
		"citations", len(resp.Citations),
		"duration", dur.Seconds(),
	)

	citations := resp.Citations
	if citations == nil {
		citations = []Citation{}
	}
	return &Answer{Text: resp.Text, Citations: citations}, nil
}

func (s *Service) observe(outcome string, dur time.Duration) {
	if s.metrics == nil {
		return
	}
	s.metrics.CallsTotal.WithLabelValues(outcome).Inc()
	if dur > 0 {
		s.metrics.CallDuration.Observe(dur.Seconds())
	}
}

func failed(msg string) *Answer {
	return &Answer{Text: msg, Citations: []Citation{}, Failed: true}
}
