package cfg

import (
	"flag"
	"math"
	"strings"
	"testing"
	"time"
)

// validBase returns a Config with all required fields set to valid values.
func validBase() Config {
	return Config{
		DrainSeconds:          60,
		ShutdownBudgetSeconds: 90,
		APIPort:               8080,
		RefreshInterval:       15 * time.Minute,
		AggregateDelay:        600 * time.Millisecond,
		DiscoverDelay:         800 * time.Millisecond,
		LLMProvider:           ProviderGemini,
		GeminiModel:           "gemini-2.5-pro",
		ClaudeModel:           "claude-sonnet-4-5",
	}
}

func TestRegisterFlags_Defaults(t *testing.T) {
	t.Parallel()

	var c Config
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.RegisterFlags(fs)

	if err := fs.Parse(nil); err != nil {
		t.Fatalf("parse empty args: %v", err)
	}

	if c.DrainSeconds != 60 {
		t.Errorf("DrainSeconds = %d, want 60", c.DrainSeconds)
	}
	if c.ShutdownBudgetSeconds != 90 {
		t.Errorf("ShutdownBudgetSeconds = %d, want 90", c.ShutdownBudgetSeconds)
	}
	if c.APIPort != 8080 {
		t.Errorf("APIPort = %d, want 8080", c.APIPort)
	}
	if c.RefreshInterval != 15*time.Minute {
		t.Errorf("RefreshInterval = %s, want 15m", c.RefreshInterval)
	}
	if c.AggregateDelay != 600*time.Millisecond {
		t.Errorf("AggregateDelay = %s, want 600ms", c.AggregateDelay)
	}
	if c.DiscoverDelay != 800*time.Millisecond {
		t.Errorf("DiscoverDelay = %s, want 800ms", c.DiscoverDelay)
	}
	if c.FaultRate != 0 {
		t.Errorf("FaultRate = %v, want 0", c.FaultRate)
	}
	if c.LLMProvider != ProviderGemini {
		t.Errorf("LLMProvider = %q, want gemini", c.LLMProvider)
	}
	if c.GeminiModel != "gemini-2.5-pro" {
		t.Errorf("GeminiModel = %q", c.GeminiModel)
	}
	if c.APIToken != "" || c.DatabaseURL != "" || c.SourcesFile != "" {
		t.Error("optional strings should default empty")
	}
	if err := c.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestRegisterFlags_Override(t *testing.T) {
	t.Parallel()

	var c Config
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.RegisterFlags(fs)

	args := []string{
		"-drain-seconds", "30",
		"-shutdown-budget-seconds", "120",
		"-http-port", "9090",
		"-refresh-interval", "5m",
		"-aggregate-delay", "0s",
		"-fault-rate", "0.25",
		"-llm-provider", "claude",
		"-claude-api-key", "sk-override",
		"-api-token", "tok",
		"-sources-file", "/etc/regwatch/sources.yaml",
	}
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse args: %v", err)
	}

	if c.DrainSeconds != 30 || c.ShutdownBudgetSeconds != 120 || c.APIPort != 9090 {
		t.Errorf("drain=%d budget=%d port=%d", c.DrainSeconds, c.ShutdownBudgetSeconds, c.APIPort)
	}
	if c.RefreshInterval != 5*time.Minute || c.AggregateDelay != 0 {
		t.Errorf("refresh=%s aggregate=%s", c.RefreshInterval, c.AggregateDelay)
	}
	if c.FaultRate != 0.25 {
		t.Errorf("FaultRate = %v, want 0.25", c.FaultRate)
	}
	if c.LLMProvider != ProviderClaude || c.ClaudeAPIKey != "sk-override" {
		t.Errorf("provider=%q key=%q", c.LLMProvider, c.ClaudeAPIKey)
	}
	if c.APIToken != "tok" || c.SourcesFile != "/etc/regwatch/sources.yaml" {
		t.Errorf("token=%q sources=%q", c.APIToken, c.SourcesFile)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	with := func(mod func(*Config)) Config {
		c := validBase()
		mod(&c)
		return c
	}

	tests := []struct {
		name      string
		cfg       Config
		wantErr   bool
		errSubstr []string // substrings that must appear in error message
	}{
		{name: "defaults are valid", cfg: validBase()},
		{name: "minimum valid values", cfg: with(func(c *Config) {
			c.DrainSeconds, c.ShutdownBudgetSeconds, c.APIPort = 1, 2, 1
			c.RefreshInterval, c.AggregateDelay, c.DiscoverDelay = time.Second, 0, 0
		})},
		{name: "maximum valid values", cfg: with(func(c *Config) {
			c.DrainSeconds, c.ShutdownBudgetSeconds, c.APIPort, c.FaultRate = 299, 300, 65535, 1
		})},
		{name: "claude provider", cfg: with(func(c *Config) { c.LLMProvider = ProviderClaude })},
		{name: "missing keys are allowed", cfg: with(func(c *Config) { c.GeminiAPIKey, c.ClaudeAPIKey = "", "" })},

		{name: "drain zero", cfg: with(func(c *Config) { c.DrainSeconds = 0 }), wantErr: true, errSubstr: []string{"DRAIN_SECONDS"}},
		{name: "drain above max", cfg: with(func(c *Config) { c.DrainSeconds, c.ShutdownBudgetSeconds = 301, 302 }), wantErr: true, errSubstr: []string{"DRAIN_SECONDS"}},
		{name: "drain at upper bound", cfg: with(func(c *Config) { c.DrainSeconds, c.ShutdownBudgetSeconds = 300, 300 }), wantErr: true},
		{name: "budget negative", cfg: with(func(c *Config) { c.ShutdownBudgetSeconds = -1 }), wantErr: true, errSubstr: []string{"SHUTDOWN_BUDGET_SECONDS"}},
		{name: "budget equals drain", cfg: with(func(c *Config) { c.ShutdownBudgetSeconds = 60 }), wantErr: true, errSubstr: []string{"must be greater than"}},
		{name: "port above max", cfg: with(func(c *Config) { c.APIPort = 65536 }), wantErr: true, errSubstr: []string{"HTTP_PORT"}},
		{name: "refresh too short", cfg: with(func(c *Config) { c.RefreshInterval = 500 * time.Millisecond }), wantErr: true, errSubstr: []string{"REFRESH_INTERVAL"}},
		{name: "negative aggregate delay", cfg: with(func(c *Config) { c.AggregateDelay = -time.Millisecond }), wantErr: true, errSubstr: []string{"AGGREGATE_DELAY"}},
		{name: "negative discover delay", cfg: with(func(c *Config) { c.DiscoverDelay = -time.Millisecond }), wantErr: true, errSubstr: []string{"DISCOVER_DELAY"}},
		{name: "fault rate above one", cfg: with(func(c *Config) { c.FaultRate = 1.5 }), wantErr: true, errSubstr: []string{"FAULT_RATE"}},
		{name: "fault rate negative", cfg: with(func(c *Config) { c.FaultRate = -0.1 }), wantErr: true, errSubstr: []string{"FAULT_RATE"}},
		{name: "fault rate NaN", cfg: with(func(c *Config) { c.FaultRate = math.NaN() }), wantErr: true, errSubstr: []string{"FAULT_RATE"}},
		{name: "unknown provider", cfg: with(func(c *Config) { c.LLMProvider = "openai" }), wantErr: true, errSubstr: []string{"LLM_PROVIDER"}},
		{name: "gemini without model", cfg: with(func(c *Config) { c.GeminiModel = "" }), wantErr: true, errSubstr: []string{"GEMINI_MODEL"}},
		{name: "claude without model", cfg: with(func(c *Config) { c.LLMProvider, c.ClaudeModel = ProviderClaude, "" }), wantErr: true, errSubstr: []string{"CLAUDE_MODEL"}},
		{name: "unused provider model may be empty", cfg: with(func(c *Config) { c.ClaudeModel = "" })},

		// Error accumulation: all fields invalid
		{
			name:      "all fields invalid",
			cfg:       Config{RefreshInterval: -1, AggregateDelay: -1, DiscoverDelay: -1, FaultRate: 2},
			wantErr:   true,
			errSubstr: []string{"DRAIN_SECONDS", "SHUTDOWN_BUDGET_SECONDS", "HTTP_PORT", "REFRESH_INTERVAL", "AGGREGATE_DELAY", "DISCOVER_DELAY", "FAULT_RATE", "LLM_PROVIDER"},
		},
		{
			name:      "extreme negative values",
			cfg:       with(func(c *Config) { c.DrainSeconds, c.ShutdownBudgetSeconds, c.APIPort = math.MinInt32, math.MinInt32, math.MinInt32 }),
			wantErr:   true,
			errSubstr: []string{"DRAIN_SECONDS", "SHUTDOWN_BUDGET_SECONDS", "HTTP_PORT"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				errMsg := err.Error()
				for _, sub := range tt.errSubstr {
					if !strings.Contains(errMsg, sub) {
						t.Errorf("error %q does not contain %q", errMsg, sub)
					}
				}
			}
		})
	}
}

func FuzzValidate(f *testing.F) {
	seeds := []struct {
		drain, budget, port int
		fault               float64
		provider            string
	}{
		{60, 90, 8080, 0, "gemini"},
		{1, 2, 1, 1, "claude"},
		{299, 300, 65535, 0.5, "gemini"},
		{0, 0, 0, -1, ""},
		{300, 300, 65535, 0, "gemini"},
		{301, 302, 65536, 2, "openai"},
		{math.MinInt32, math.MinInt32, math.MinInt32, 0, "gemini"},
		{math.MaxInt32, math.MaxInt32, math.MaxInt32, 0, "claude"},
	}
	for _, s := range seeds {
		f.Add(s.drain, s.budget, s.port, s.fault, s.provider)
	}

	f.Fuzz(func(t *testing.T, drain, budget, port int, fault float64, provider string) {
		c := validBase()
		c.DrainSeconds, c.ShutdownBudgetSeconds, c.APIPort = drain, budget, port
		c.FaultRate, c.LLMProvider = fault, provider
		err := c.Validate()

		allValid := drain >= 1 && drain <= 300 &&
			budget >= 1 && budget <= 300 &&
			port >= 1 && port <= 65535 &&
			budget > drain &&
			fault >= 0 && fault <= 1 &&
			(provider == ProviderGemini || provider == ProviderClaude)

		if allValid && err != nil {
			t.Errorf("expected no error for valid config %+v, got: %v", c, err)
		}
		if !allValid && err == nil {
			t.Errorf("expected error for invalid config %+v, got nil", c)
		}
	})
}
