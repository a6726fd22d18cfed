// Package config provides configuration management for the relay.
// It loads configuration from environment variables with sensible defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Defaults mirrored from the deployed trigger worker.
const (
	DefaultUpdateWorkflow    = "update-cs-ro.yml"
	DefaultSummarizeWorkflow = "summarize-papers.yml"
	DefaultLLMBaseURL        = "https://coding.dashscope.aliyuncs.com/v1"
	DefaultLLMModel          = "qwen-plus"
)

// GitHubConfig holds the GitHub Actions control-plane settings.
type GitHubConfig struct {
	// Owner and Repo identify the repository whose workflows are dispatched.
	Owner string
	Repo  string

	// Ref is the git ref workflows are dispatched against when the request
	// does not override it.
	Ref string

	// Token authenticates against the GitHub REST API. Empty means the
	// server is misconfigured; dispatch and status requests fail with a
	// config error rather than being attempted.
	Token string

	// UpdateWorkflow and SummarizeWorkflow are the workflow file names the
	// action table resolves to.
	UpdateWorkflow    string
	SummarizeWorkflow string

	// APIBaseURL allows pointing the client at a test server.
	APIBaseURL string
}

// LLMConfig holds upstream chat-completions settings for the streaming relay.
type LLMConfig struct {
	// BaseURL is the default OpenAI-compatible endpoint base.
	BaseURL string

	// Model is the default model when the request does not name one.
	Model string

	// APIKey is sent as a bearer token when non-empty.
	APIKey string

	// RecommendedModels is served by the models endpoint.
	RecommendedModels []string

	// MaxHistory bounds how many trailing messages are forwarded upstream.
	MaxHistory int

	// ContextCharBudget caps injected document context length.
	ContextCharBudget int

	// Timeout applies to the upstream HTTP call.
	Timeout time.Duration
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Port is the HTTP listen port.
	Port int

	// AllowedOrigins is the CORS allow-list, parsed from a comma-separated
	// variable. Empty means any origin is allowed (wildcard).
	AllowedOrigins []string
}

// Config holds all configuration for the relay.
type Config struct {
	GitHub GitHubConfig
	LLM    LLMConfig
	Server ServerConfig
}

// New creates a Config from environment variables. Variable names for the
// GitHub and LLM surface match the deployed worker so the same environment
// works for both.
func New() (*Config, error) {
	cfg := &Config{}

	cfg.GitHub = GitHubConfig{
		Owner:             os.Getenv("GITHUB_OWNER"),
		Repo:              os.Getenv("GITHUB_REPO"),
		Ref:               envOr("GITHUB_REF", "main"),
		Token:             os.Getenv("GITHUB_TOKEN"),
		UpdateWorkflow:    firstNonEmpty(os.Getenv("UPDATE_WORKFLOW_FILE"), os.Getenv("GITHUB_WORKFLOW_FILE"), DefaultUpdateWorkflow),
		SummarizeWorkflow: envOr("SUMMARIZE_WORKFLOW_FILE", DefaultSummarizeWorkflow),
		APIBaseURL:        envOr("GITHUB_API_BASE_URL", "https://api.github.com"),
	}

	cfg.LLM = LLMConfig{
		BaseURL:           envOr("DEFAULT_LLM_BASE_URL", DefaultLLMBaseURL),
		Model:             envOr("DEFAULT_LLM_MODEL", DefaultLLMModel),
		APIKey:            os.Getenv("LLM_API_KEY"),
		RecommendedModels: splitList(envOr("RECOMMENDED_MODELS", "qwen3-max,qwen-plus-latest,qwen-plus")),
	}

	maxHistory, err := parseIntEnv("RELAY_MAX_HISTORY", 12)
	if err != nil {
		return nil, err
	}
	cfg.LLM.MaxHistory = maxHistory

	charBudget, err := parseIntEnv("RELAY_CONTEXT_CHAR_BUDGET", 60000)
	if err != nil {
		return nil, err
	}
	cfg.LLM.ContextCharBudget = charBudget

	timeoutSecs, err := parseIntEnv("RELAY_LLM_TIMEOUT_SECONDS", 300)
	if err != nil {
		return nil, err
	}
	cfg.LLM.Timeout = time.Duration(timeoutSecs) * time.Second

	cfg.Server = ServerConfig{
		AllowedOrigins: splitList(os.Getenv("ALLOWED_ORIGIN")),
	}

	portStr := os.Getenv("RELAY_HTTP_PORT")
	if portStr == "" {
		cfg.Server.Port = 8788
	} else {
		port, err := parsePort(portStr)
		if err != nil {
			return nil, fmt.Errorf("RELAY_HTTP_PORT %s", err)
		}
		cfg.Server.Port = port
	}

	return cfg, nil
}

// GitHubConfigured reports whether the required GitHub credentials are set.
// Missing credentials are a deployment error, not a per-request condition.
func (c *Config) GitHubConfigured() bool {
	return c.GitHub.Owner != "" && c.GitHub.Repo != "" && c.GitHub.Token != ""
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// parseIntEnv parses a positive integer environment variable with a default.
func parseIntEnv(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s must be positive, got: %d", key, n)
	}
	return n, nil
}

// parsePort parses and validates a port number string.
func parsePort(portStr string) (int, error) {
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0, fmt.Errorf("invalid port number: %s", portStr)
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("must be between 1 and 65535, got: %d", port)
	}
	return port, nil
}
