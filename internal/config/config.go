package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	ctxpkg "github.com/stupiduntilnot/kontempo/internal/context"
	"github.com/stupiduntilnot/kontempo/internal/persona"
	"github.com/stupiduntilnot/kontempo/internal/portfolio"
)

const (
	ProviderOpenAI = "openai"
	ProviderDummy  = "dummy"
)

// ServerConfig holds configuration for the assistant HTTP server.
type ServerConfig struct {
	ListenAddr          string
	ModelProvider       string
	OpenAIAPIKey        string
	OpenAIChatCompURL   string
	OpenAIModel         string
	Temperature         float64
	ModelTimeout        time.Duration
	ModelMaxRetries     int
	ModelRPS            float64
	ModelBurst          int
	CircuitThreshold    int
	CircuitCooldown     time.Duration
	HistoryWindow       int
	RevenuePolicy       portfolio.RevenuePolicy
	BuyersPerBucket     int
	DefaultUserRole     string
	ResponseModelLabel  string
	EventDBPath         string
	DummyProviderScript string
	Persona             persona.Persona
}

// LoadDotEnv loads variables from the given .env files into the process
// environment without overriding variables that are already set. Missing
// files are skipped.
func LoadDotEnv(paths ...string) error {
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

// LoadServerConfig reads server configuration from environment variables.
// Settings pinned by the persona file apply only when the matching variable
// is unset.
func LoadServerConfig() (ServerConfig, error) {
	modelProvider := strings.ToLower(envOrDefault("MODEL_PROVIDER", ProviderOpenAI))
	if modelProvider != ProviderOpenAI && modelProvider != ProviderDummy {
		return ServerConfig{}, fmt.Errorf("MODEL_PROVIDER must be %q or %q, got %q", ProviderOpenAI, ProviderDummy, modelProvider)
	}
	openaiKey := os.Getenv("OPENAI_API_KEY")
	if modelProvider == ProviderOpenAI && openaiKey == "" {
		return ServerConfig{}, fmt.Errorf("OPENAI_API_KEY is required in environment when MODEL_PROVIDER=openai")
	}

	p := persona.Default()
	if path := os.Getenv("PERSONA_FILE"); path != "" {
		loaded, err := persona.Load(path)
		if err != nil {
			return ServerConfig{}, fmt.Errorf("PERSONA_FILE: %w", err)
		}
		p = loaded
	}

	revenue, err := portfolio.ParseRevenuePolicy(os.Getenv("REVENUE_POLICY"))
	if err != nil {
		return ServerConfig{}, fmt.Errorf("REVENUE_POLICY: %w", err)
	}

	temperature := 0.3
	if p.Temperature != nil {
		temperature = *p.Temperature
	}

	eventDBPath := "./state/assistant.db"
	if v, ok := os.LookupEnv("EVENT_DB_PATH"); ok {
		eventDBPath = strings.TrimSpace(v)
	}

	cfg := ServerConfig{
		ListenAddr:          envOrDefault("LISTEN_ADDR", ":8000"),
		ModelProvider:       modelProvider,
		OpenAIAPIKey:        openaiKey,
		OpenAIChatCompURL:   envOrDefault("OPENAI_CHAT_COMPLETIONS_URL", "https://api.openai.com/v1/chat/completions"),
		OpenAIModel:         envOrDefault("OPENAI_MODEL", firstNonEmpty(p.Model, "gpt-4o-mini")),
		Temperature:         envFloatOrDefault("OPENAI_TEMPERATURE", temperature),
		ModelTimeout:        time.Duration(envIntOrDefault("MODEL_TIMEOUT_SECONDS", 120)) * time.Second,
		ModelMaxRetries:     envIntOrDefault("MODEL_MAX_RETRIES", 2),
		ModelRPS:            envFloatOrDefault("MODEL_RPS", 5),
		ModelBurst:          envIntOrDefault("MODEL_BURST", 10),
		CircuitThreshold:    envIntOrDefault("CIRCUIT_THRESHOLD", 5),
		CircuitCooldown:     time.Duration(envIntOrDefault("CIRCUIT_COOLDOWN_SECONDS", 30)) * time.Second,
		HistoryWindow:       envIntOrDefault("HISTORY_WINDOW", 12),
		RevenuePolicy:       revenue,
		BuyersPerBucket:     envIntOrDefault("BUYERS_PER_BUCKET", 25),
		DefaultUserRole:     envOrDefault("DEFAULT_USER_ROLE", firstNonEmpty(p.DefaultRole, ctxpkg.DefaultUserRole)),
		ResponseModelLabel:  envOrDefault("RESPONSE_MODEL_LABEL", p.Name),
		EventDBPath:         eventDBPath,
		DummyProviderScript: envOrDefault("DUMMY_PROVIDER_SCRIPT", "ok"),
		Persona:             p,
	}
	if err := cfg.validate(); err != nil {
		return ServerConfig{}, err
	}
	return cfg, nil
}

func (c ServerConfig) validate() error {
	switch {
	case c.Temperature < 0 || c.Temperature > 2:
		return fmt.Errorf("OPENAI_TEMPERATURE must be within [0,2], got %v", c.Temperature)
	case c.ModelTimeout <= 0:
		return fmt.Errorf("MODEL_TIMEOUT_SECONDS must be > 0")
	case c.ModelMaxRetries < 0:
		return fmt.Errorf("MODEL_MAX_RETRIES must be >= 0, got %d", c.ModelMaxRetries)
	case c.ModelRPS <= 0:
		return fmt.Errorf("MODEL_RPS must be > 0, got %v", c.ModelRPS)
	case c.ModelBurst < 1:
		return fmt.Errorf("MODEL_BURST must be >= 1, got %d", c.ModelBurst)
	case c.CircuitThreshold < 1:
		return fmt.Errorf("CIRCUIT_THRESHOLD must be >= 1, got %d", c.CircuitThreshold)
	case c.CircuitCooldown <= 0:
		return fmt.Errorf("CIRCUIT_COOLDOWN_SECONDS must be > 0")
	case c.HistoryWindow < 0:
		return fmt.Errorf("HISTORY_WINDOW must be >= 0, got %d", c.HistoryWindow)
	case c.BuyersPerBucket < 0:
		return fmt.Errorf("BUYERS_PER_BUCKET must be >= 0, got %d", c.BuyersPerBucket)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOrDefault(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envFloatOrDefault(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
