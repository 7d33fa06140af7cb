package cfg

import (
	"errors"
	"flag"
	"fmt"
	"time"
)

// LLM providers selectable with -llm-provider.
const (
	ProviderGemini = "gemini"
	ProviderClaude = "claude"
)

// Config holds regwatch's application flags. go-core packages register
// their own flags alongside these.
type Config struct {
	DrainSeconds          int
	ShutdownBudgetSeconds int
	APIPort               int
	RefreshInterval       time.Duration
	AggregateDelay        time.Duration
	DiscoverDelay         time.Duration
	FaultRate             float64
	LLMProvider           string
	GeminiAPIKey          string
	GeminiModel           string
	ClaudeAPIKey          string
	ClaudeModel           string
	DatabaseURL           string
	SlackWebhookURL       string
	APIToken              string
	SourcesFile           string
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")
	fs.DurationVar(&c.RefreshInterval, "refresh-interval", 15*time.Minute, "period between aggregation passes (>= 1s)")
	fs.DurationVar(&c.AggregateDelay, "aggregate-delay", 600*time.Millisecond, "simulated retrieval latency per aggregation pass (0 disables)")
	fs.DurationVar(&c.DiscoverDelay, "discover-delay", 800*time.Millisecond, "simulated latency per feed discovery (0 disables)")
	fs.Float64Var(&c.FaultRate, "fault-rate", 0, "probability (0..1) that an aggregation pass fails, for exercising the failure banner")
	fs.StringVar(&c.LLMProvider, "llm-provider", ProviderGemini, "research assistant backend (gemini|claude)")
	fs.StringVar(&c.GeminiAPIKey, "gemini-api-key", "", "API key for the Gemini research provider")
	fs.StringVar(&c.GeminiModel, "gemini-model", "gemini-2.5-pro", "Gemini model to use")
	fs.StringVar(&c.ClaudeAPIKey, "claude-api-key", "", "API key for the Claude research provider")
	fs.StringVar(&c.ClaudeModel, "claude-model", "claude-sonnet-4-5", "Claude model to use")
	fs.StringVar(&c.DatabaseURL, "database-url", "", "PostgreSQL connection URL for the source catalog (empty = in-memory store)")
	fs.StringVar(&c.SlackWebhookURL, "slack-webhook-url", "", "Slack webhook URL for critical item notifications")
	fs.StringVar(&c.APIToken, "api-token", "", "bearer token required on state-changing API routes (empty = open)")
	fs.StringVar(&c.SourcesFile, "sources-file", "", "YAML source catalog replacing the embedded one")
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	// Drain and shutdown budgets
	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}

	// Shutdown budget must be greater than drain time
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	// API port must be valid TCP port number
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	if c.RefreshInterval < time.Second {
		errs = append(errs, fmt.Errorf("invalid REFRESH_INTERVAL %s (must be >= 1s)", c.RefreshInterval))
	}
	if c.AggregateDelay < 0 {
		errs = append(errs, fmt.Errorf("invalid AGGREGATE_DELAY %s (must be >= 0)", c.AggregateDelay))
	}
	if c.DiscoverDelay < 0 {
		errs = append(errs, fmt.Errorf("invalid DISCOVER_DELAY %s (must be >= 0)", c.DiscoverDelay))
	}
	// negated so NaN fails too
	if !(c.FaultRate >= 0 && c.FaultRate <= 1) {
		errs = append(errs, fmt.Errorf("invalid FAULT_RATE %v (must be 0..1)", c.FaultRate))
	}

	// Model is required for the selected provider; the key may be absent and
	// surfaces as an authentication answer at research time.
	switch c.LLMProvider {
	case ProviderGemini:
		if c.GeminiModel == "" {
			errs = append(errs, errors.New("GEMINI_MODEL is required when LLM_PROVIDER is gemini"))
		}
	case ProviderClaude:
		if c.ClaudeModel == "" {
			errs = append(errs, errors.New("CLAUDE_MODEL is required when LLM_PROVIDER is claude"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid LLM_PROVIDER %q (must be gemini or claude)", c.LLMProvider))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
