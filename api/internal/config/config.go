package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	ProviderGemini = "gemini"
	ProviderAzure  = "azure"
)

type Config struct {
	Port     string
	LogLevel string

	Provider string

	GeminiAPIKey     string
	GeminiModel      string
	GeminiProbeModel string
	GeminiBaseURL    string

	AzureEndpoint   string
	AzureAPIKey     string
	AzureDeployment string
	AzureAPIVersion string

	PokeAPIBaseURL string
	PlaceholderURL string

	AnalyzeTimeout time.Duration
	PromptDir      string

	DatabaseURL string
	// HistoryRetention > 0 purges match history older than this.
	HistoryRetention time.Duration

	ShareLink string

	TelegramBotToken string
	WebhookURL       string
}

func getEnv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getDuration(k string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// Load reads the environment. A .env file in the working directory is applied first
// and never overrides variables that are already set.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:     getEnv("PORT", "8000"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		Provider: strings.ToLower(getEnv("LLM_PROVIDER", ProviderGemini)),

		GeminiAPIKey:     getEnv("GEMINI_API_KEY", ""),
		GeminiModel:      getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		GeminiProbeModel: getEnv("GEMINI_PROBE_MODEL", "gemini-2.5-flash"),
		GeminiBaseURL:    getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),

		AzureEndpoint:   getEnv("AZURE_OPENAI_ENDPOINT", ""),
		AzureAPIKey:     getEnv("AZURE_OPENAI_API_KEY", ""),
		AzureDeployment: getEnv("AZURE_OPENAI_DEPLOYMENT", "gpt-4o-mini"),
		AzureAPIVersion: getEnv("AZURE_OPENAI_API_VERSION", "2024-02-01"),

		PokeAPIBaseURL: getEnv("POKEAPI_BASE_URL", "https://pokeapi.co/api/v2"),
		PlaceholderURL: getEnv("ARTWORK_PLACEHOLDER_URL", "https://via.placeholder.com/200x200?text=Pokemon"),

		AnalyzeTimeout: getDuration("ANALYZE_TIMEOUT", 30*time.Second),
		PromptDir:      getEnv("PROMPT_DIR", ""),

		DatabaseURL:      resolveDSN(),
		HistoryRetention: getDuration("HISTORY_RETENTION", 0),

		ShareLink: getEnv("SHARE_LINK", ""),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		WebhookURL:       getEnv("WEBHOOK_URL", ""),
	}
}

// Validate checks that the selected provider can authenticate upstream.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			return errors.New("missing required env GEMINI_API_KEY")
		}
	case ProviderAzure:
		if c.AzureEndpoint == "" {
			return errors.New("missing required env AZURE_OPENAI_ENDPOINT")
		}
		if c.AzureAPIKey == "" {
			return errors.New("missing required env AZURE_OPENAI_API_KEY")
		}
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q (want gemini | azure)", c.Provider)
	}
	return nil
}

// resolveDSN prefers DATABASE_URL and otherwise builds a DSN from POSTGRES_* / PG* vars.
// Empty means no database: stores fall back to memory.
func resolveDSN() string {
	if v := strings.TrimSpace(os.Getenv("DATABASE_URL")); v != "" {
		return v
	}
	pass := os.Getenv("POSTGRES_PASSWORD")
	host := strings.TrimSpace(os.Getenv("PGHOST"))
	if pass == "" && host == "" {
		return ""
	}
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(getEnv("POSTGRES_USER", "pokiface"), pass),
		Host:     net.JoinHostPort(getEnv("PGHOST", "db"), getEnv("PGPORT", "5432")),
		Path:     "/" + getEnv("POSTGRES_DB", "pokiface"),
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// RedactDSN masks the password of a URL-style DSN for logs.
func RedactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.Host == "" {
		return "(unparsable dsn)"
	}
	return u.Redacted()
}
