package research

import (
	"context"
	"errors"
)

// Provider is the interface for any grounded LLM backend.
type Provider interface {
	Generate(ctx context.Context, req *Request) (*Response, error)
}

// Role identifies who authored a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one prior message in a research conversation.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Citation is a web source the model grounded its answer on.
type Citation struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}

// Request is the provider-neutral input for one research call.
type Request struct {
	System      string
	History     []Turn
	Query       string
	Temperature float64
	MaxTokens   int
}

// Response is the provider-neutral output of one research call.
type Response struct {
	Text      string
	Citations []Citation
	Model     string
}

// Providers wrap their failures in these so the service can map them to
// user-facing messages.
var (
	ErrAuthentication    = errors.New("authentication failed")
	ErrUnavailable       = errors.New("upstream unavailable")
	ErrMalformedResponse = errors.New("empty or malformed response")
)

// DefaultCitationTitle labels a grounding source that carries no title.
const DefaultCitationTitle = "Regulatory Source"

// StatusError classifies an upstream HTTP status into one of the sentinel
// errors, or returns nil when the status carries no special meaning.
func StatusError(code int) error {
	switch {
	case code == 401 || code == 403:
		return ErrAuthentication
	case code == 429 || code >= 500:
		return ErrUnavailable
	default:
		return nil
	}
}
