package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string

	AuthJWTSecret    string
	AuthTokenTTLDays int

	WelcomeGrantTokens int64
	UsageTimezone      string

	// ChargePromptOnUpstreamFailure keeps the prompt-side debit when the
	// upstream call fails before producing any output.
	ChargePromptOnUpstreamFailure bool

	UpstreamTimeoutSeconds  int
	FinalizerQueueSize      int
	FinalizerTimeoutSeconds int

	DevMockPay bool

	Providers ProvidersConfig
	RateLimit RateLimitConfig
	Stripe    StripeConfig

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int
}

type ProvidersConfig struct {
	GLMAPIKey      string
	GLMAPIBase     string
	ArkAPIKey      string
	ArkAPIBase     string
	MiniMaxAPIKey  string
	MiniMaxAPIBase string
	MiniMaxGroupID string
	OpenAIAPIKey   string
	OpenAIAPIBase  string
}

type RateLimitConfig struct {
	Enabled       bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	CompletionRate  float64
	CompletionBurst int
}

type StripeConfig struct {
	APIKey        string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	environment := getenv("ENVIRONMENT", "development")

	cfg := Config{
		AppName:     getenv("APP_SERVICE", "tokengate"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: environment,

		AuthJWTSecret:    strings.TrimSpace(getenv("AUTH_JWT_SECRET", "")),
		AuthTokenTTLDays: getenvInt("AUTH_TOKEN_TTL_DAYS", 7),

		WelcomeGrantTokens: getenvInt64("WELCOME_GRANT_TOKENS", 50_000),
		UsageTimezone:      getenv("USAGE_TIMEZONE", "UTC"),

		ChargePromptOnUpstreamFailure: getenvBool("CHARGE_PROMPT_ON_UPSTREAM_FAILURE", true),

		UpstreamTimeoutSeconds:  getenvInt("UPSTREAM_TIMEOUT_SECONDS", 300),
		FinalizerQueueSize:      getenvInt("FINALIZER_QUEUE_SIZE", 1024),
		FinalizerTimeoutSeconds: getenvInt("FINALIZER_TIMEOUT_SECONDS", 15),

		DevMockPay: environment != "production" && getenvBool("DEV_MOCK_PAY", true),

		Providers: ProvidersConfig{
			GLMAPIKey:      strings.TrimSpace(getenv("GLM_API_KEY", "")),
			GLMAPIBase:     getenv("GLM_API_BASE", "https://open.bigmodel.cn/api/paas/v4"),
			ArkAPIKey:      strings.TrimSpace(getenv("ARK_API_KEY", "")),
			ArkAPIBase:     getenv("ARK_API_BASE", "https://ark.cn-beijing.volces.com/api/v3"),
			MiniMaxAPIKey:  strings.TrimSpace(getenv("MINIMAX_API_KEY", "")),
			MiniMaxAPIBase: getenv("MINIMAX_API_BASE", "https://api.minimax.chat/v1"),
			MiniMaxGroupID: strings.TrimSpace(getenv("MINIMAX_GROUP_ID", "")),
			OpenAIAPIKey:   strings.TrimSpace(getenv("OPENAI_API_KEY", "")),
			OpenAIAPIBase:  getenv("OPENAI_API_BASE", "https://api.openai.com/v1"),
		},

		RateLimit: RateLimitConfig{
			Enabled:         getenvBool("RATE_LIMIT_ENABLED", false),
			RedisAddr:       strings.TrimSpace(getenv("RATE_LIMIT_REDIS_ADDR", "")),
			RedisPassword:   getenv("RATE_LIMIT_REDIS_PASSWORD", ""),
			RedisDB:         getenvInt("RATE_LIMIT_REDIS_DB", 0),
			CompletionRate:  getenvFloat("RATE_LIMIT_COMPLETION_RATE", 2),
			CompletionBurst: getenvInt("RATE_LIMIT_COMPLETION_BURST", 10),
		},

		Stripe: StripeConfig{
			APIKey:        strings.TrimSpace(getenv("STRIPE_API_KEY", "")),
			WebhookSecret: strings.TrimSpace(getenv("STRIPE_WEBHOOK_SECRET", "")),
			SuccessURL:    getenv("STRIPE_SUCCESS_URL", ""),
			CancelURL:     getenv("STRIPE_CANCEL_URL", ""),
		},

		DBType:     getenv("DATABASE_TYPE", "postgres"),
		DBHost:     getenv("DATABASE_HOST", "localhost"),
		DBPort:     getenv("DATABASE_PORT", "5432"),
		DBName:     getenv("DATABASE_NAME", "tokengate"),
		DBUser:     getenv("DATABASE_USER", "postgres"),
		DBPassword: getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:  getenv("DATABASE_SSLMODE", "disable"),

		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 10),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 50),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 3600),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 600),
	}

	return cfg
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}
