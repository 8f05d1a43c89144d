// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ashureev/todobot/internal/agent"
)

// Config holds all application configuration.
type Config struct {
	Port             string
	FrontendURL      string
	CORSOrigins      []string
	DBPath           string
	LogLevel         string
	ChatMaxBodyBytes int64
	Agent            AgentConfig
	RedisURL         string
	TodoCacheTTL     time.Duration
	KafkaBrokers     []string
	KafkaTopic       string
	GRPCHealthPort   string
}

// AgentConfig selects and bounds the language model.
type AgentConfig struct {
	Provider     string
	Model        string
	GeminiAPIKey string
	OpenAIAPIKey string
	OpenAIURL    string
	Temperature  float64
	HistoryLimit int
	MaxRounds    int
	ModelTimeout time.Duration
}

// MaxAgentRounds is the upper bound accepted for AGENT_MAX_ROUNDS.
const MaxAgentRounds = 20

// Defaults for settings that the CLI also reads without a full Load.
const (
	DefaultPort   = "8000"
	DefaultDBPath = "./data/todobot.db"
)

// Ports returns the HTTP port and the gRPC health port. grpcPort is empty when the
// health service is disabled.
func Ports() (httpPort, grpcPort string) {
	return getEnv("PORT", DefaultPort), getEnv("GRPC_HEALTH_PORT", "")
}

// DatabasePath returns the SQLite file location.
func DatabasePath() string {
	return getEnv("DB_PATH", DefaultDBPath)
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	httpPort, grpcPort := Ports()
	cfg := &Config{
		Port:             httpPort,
		FrontendURL:      getEnv("FRONTEND_URL", ""),
		CORSOrigins:      getEnvList("CORS_ORIGINS", []string{"*"}),
		DBPath:           DatabasePath(),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		ChatMaxBodyBytes: int64(getEnvInt("CHAT_MAX_BODY_BYTES", 1<<20)),
		Agent: AgentConfig{
			Provider:     strings.ToLower(getEnv("AGENT_PROVIDER", agent.ProviderGemini)),
			Model:        getEnv("AGENT_MODEL", ""),
			GeminiAPIKey: getEnv("GEMINI_API", ""),
			OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),
			OpenAIURL:    getEnv("OPENAI_BASE_URL", ""),
			Temperature:  getEnvFloat("AGENT_TEMPERATURE", 0.7),
			HistoryLimit: getEnvInt("AGENT_HISTORY_LIMIT", 5),
			MaxRounds:    getEnvInt("AGENT_MAX_ROUNDS", 8),
			ModelTimeout: getEnvDuration("AGENT_MODEL_TIMEOUT", 30*time.Second),
		},
		RedisURL:       getEnv("REDIS_URL", ""),
		TodoCacheTTL:   getEnvDuration("TODO_CACHE_TTL", 5*time.Minute),
		KafkaBrokers:   getEnvList("KAFKA_BROKERS", nil),
		KafkaTopic:     getEnv("KAFKA_TOPIC", "todo-events"),
		GRPCHealthPort: grpcPort,
	}

	if cfg.FrontendURL != "" && !contains(cfg.CORSOrigins, "*") && !contains(cfg.CORSOrigins, cfg.FrontendURL) {
		cfg.CORSOrigins = append(cfg.CORSOrigins, cfg.FrontendURL)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.ChatMaxBodyBytes <= 0 {
		return fmt.Errorf("CHAT_MAX_BODY_BYTES must be > 0")
	}
	switch c.Agent.Provider {
	case agent.ProviderGemini:
		if c.Agent.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API is required for the gemini provider")
		}
	case agent.ProviderOpenAI:
		if c.Agent.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for the openai provider")
		}
	default:
		return fmt.Errorf("AGENT_PROVIDER must be %q or %q, got %q", agent.ProviderGemini, agent.ProviderOpenAI, c.Agent.Provider)
	}
	if c.Agent.MaxRounds < 1 || c.Agent.MaxRounds > MaxAgentRounds {
		return fmt.Errorf("AGENT_MAX_ROUNDS must be between 1 and %d", MaxAgentRounds)
	}
	if c.Agent.HistoryLimit < 0 {
		return fmt.Errorf("AGENT_HISTORY_LIMIT must be >= 0")
	}
	if c.Agent.ModelTimeout <= 0 {
		return fmt.Errorf("AGENT_MODEL_TIMEOUT must be > 0")
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		return fmt.Errorf("KAFKA_TOPIC cannot be empty when KAFKA_BROKERS is set")
	}
	return nil
}

// AgentSettings converts the environment view into the agent's Config,
// filling the provider's default model when AGENT_MODEL is unset.
func (c *Config) AgentSettings() agent.Config {
	ac := agent.DefaultConfig()
	ac.Provider = c.Agent.Provider
	ac.GoogleAPIKey = c.Agent.GeminiAPIKey
	ac.OpenAIAPIKey = c.Agent.OpenAIAPIKey
	ac.OpenAIURL = c.Agent.OpenAIURL
	ac.Temperature = float32(c.Agent.Temperature)
	ac.HistoryLimit = c.Agent.HistoryLimit
	ac.MaxRounds = c.Agent.MaxRounds
	ac.ModelTimeout = c.Agent.ModelTimeout

	switch {
	case c.Agent.Model != "":
		ac.ModelName = c.Agent.Model
	case c.Agent.Provider == agent.ProviderOpenAI:
		ac.ModelName = agent.DefaultOpenAIModel
	}
	return ac
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

// getEnvList splits a comma separated variable, dropping empty items.
func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
