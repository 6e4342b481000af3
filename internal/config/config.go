package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	ParsePolicyAllOrNothing = "all_or_nothing"
	ParsePolicyPerBlock     = "per_block"
)

type Config struct {
	TelegramToken string
	GeminiAPIKey  string

	LogLevel string
	Debug    bool

	PreferIPv4 bool

	GeminiModel       string
	GeminiBaseURL     string
	GeminiAPIVersion  string
	GeminiTemperature float32
	StructuredOutput  bool
	ParsePolicy       string

	WebAddr        string
	MaxUploadBytes int64
	SessionTTL     time.Duration
	SecureCookie   bool

	RedisURL string

	SupabaseURL          string
	SupabaseServiceKey   string
	SupabaseHistoryTable string

	MediaGroupDebounce time.Duration
	MaxConcurrent      int
	RequestTimeout     time.Duration
	HTTPTimeout        time.Duration
}

// LoadWeb reads the environment for the web front end. The Gemini key is
// optional there because visitors may paste their own key.
func LoadWeb() (Config, error) {
	cfg := load()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadBot reads the environment for the Telegram front end, which has no way
// to ask for a key and therefore requires both secrets up front.
func LoadBot() (Config, error) {
	cfg := load()

	switch {
	case cfg.TelegramToken == "":
		return Config{}, errors.New("TELEGRAM_BOT_TOKEN is required")
	case cfg.GeminiAPIKey == "":
		return Config{}, errors.New("GEMINI_API_KEY is required")
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func load() Config {
	cfg := Config{
		LogLevel:             strings.ToLower(strings.TrimSpace(getEnv("LOG_LEVEL", "info"))),
		Debug:                getEnvBool("DEBUG", false),
		PreferIPv4:           getEnvBool("PREFER_IPV4", true),
		GeminiModel:          getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		GeminiBaseURL:        strings.TrimSpace(os.Getenv("GEMINI_BASE_URL")),
		GeminiAPIVersion:     strings.TrimSpace(os.Getenv("GEMINI_API_VERSION")),
		GeminiTemperature:    getEnvFloat32("GEMINI_TEMPERATURE", 0.3),
		StructuredOutput:     getEnvBool("STRUCTURED_OUTPUT", false),
		ParsePolicy:          strings.ToLower(getEnv("PARSE_POLICY", ParsePolicyAllOrNothing)),
		WebAddr:              getEnv("WEB_ADDR", ":8080"),
		MaxUploadBytes:       int64(getEnvInt("MAX_UPLOAD_MB", 25)) << 20,
		SessionTTL:           time.Duration(getEnvInt("SESSION_TTL_MINUTES", 120)) * time.Minute,
		SecureCookie:         getEnvBool("SECURE_COOKIE", false),
		RedisURL:             strings.TrimSpace(os.Getenv("REDIS_URL")),
		SupabaseURL:          strings.TrimRight(strings.TrimSpace(os.Getenv("SUPABASE_URL")), "/"),
		SupabaseServiceKey:   strings.TrimSpace(os.Getenv("SUPABASE_SERVICE_KEY")),
		SupabaseHistoryTable: getEnv("SUPABASE_HISTORY_TABLE", "banner_analyses"),
		MediaGroupDebounce:   time.Duration(getEnvInt("MEDIA_GROUP_DEBOUNCE_MS", 1200)) * time.Millisecond,
		MaxConcurrent:        getEnvInt("MAX_CONCURRENT", 4),
		RequestTimeout:       time.Duration(getEnvInt("REQUEST_TIMEOUT_SECONDS", 180)) * time.Second,
		HTTPTimeout:          time.Duration(getEnvInt("HTTP_TIMEOUT_SECONDS", 180)) * time.Second,
	}

	cfg.TelegramToken = strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN"))
	cfg.GeminiAPIKey = strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))

	switch cfg.ParsePolicy {
	case "per-block", "perblock":
		cfg.ParsePolicy = ParsePolicyPerBlock
	case "all-or-nothing", "allornothing":
		cfg.ParsePolicy = ParsePolicyAllOrNothing
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 25 << 20
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 120 * time.Minute
	}
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 180 * time.Second
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 180 * time.Second
	}

	return cfg
}

func (c Config) validate() error {
	if c.ParsePolicy != ParsePolicyAllOrNothing && c.ParsePolicy != ParsePolicyPerBlock {
		return fmt.Errorf("PARSE_POLICY must be %s or %s, got %q", ParsePolicyAllOrNothing, ParsePolicyPerBlock, c.ParsePolicy)
	}
	if c.GeminiTemperature < 0 || c.GeminiTemperature > 2 {
		return fmt.Errorf("GEMINI_TEMPERATURE must be between 0 and 2, got %v", c.GeminiTemperature)
	}
	return nil
}

// HistoryEnabled reports whether both Supabase settings are present.
func (c Config) HistoryEnabled() bool {
	return c.SupabaseURL != "" && c.SupabaseServiceKey != ""
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat32(key string, fallback float32) float32 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 32)
	if err != nil {
		return fallback
	}
	return float32(parsed)
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
