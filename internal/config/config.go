package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendFile     = "file"

	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderMock   = "mock"

	// MinMedicationGateDays is the shortest allowed gap between medication mentions.
	MinMedicationGateDays = 7
)

type Config struct {
	Env      string
	LogLevel string
	HTTPAddr string

	StorageBackend string
	SQLitePath     string
	PostgresDSN    string
	DataDir        string

	LLMProvider   string
	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string
	GeminiAPIKey  string
	GeminiModel   string

	AdviceMaxRunes      int
	AdvicePromptChars   int
	AdviceTimeout       time.Duration
	AdviceRatePerMinute int
	AdviceLanguage      string
	MedicationGateDays  int
}

var (
	cfg  *Config
	once sync.Once
)

// Load reads the process configuration once and panics if it is invalid.
func Load() *Config {
	once.Do(func() {
		c, err := Parse()
		if err != nil {
			panic("Invalid config: " + err.Error())
		}
		cfg = c
	})
	return cfg
}

// Parse reads .env (if present) and the environment without caching.
func Parse() (*Config, error) {
	_ = godotenv.Load()

	c := &Config{
		Env:      getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		HTTPAddr: getEnv("HTTP_ADDR", "127.0.0.1:8088"),

		StorageBackend: getEnv("STORAGE_BACKEND", BackendSQLite),
		SQLitePath:     getEnv("SQLITE_PATH", "data/sleepcoach.db"),
		PostgresDSN:    getEnv("POSTGRES_DSN", ""),
		DataDir:        getEnv("DATA_DIR", "data"),

		LLMProvider:   getEnv("LLM_PROVIDER", ProviderOpenAI),
		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),
		GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
		GeminiModel:   getEnv("GEMINI_MODEL", "gemini-2.5-flash"),

		AdviceLanguage: getEnv("ADVICE_LANGUAGE", "Japanese"),
	}

	var err error
	if c.AdviceMaxRunes, err = getInt("ADVICE_MAX_RUNES", 1000); err != nil {
		return nil, err
	}
	if c.AdvicePromptChars, err = getInt("ADVICE_PROMPT_CHARS", 500); err != nil {
		return nil, err
	}
	if c.AdviceRatePerMinute, err = getInt("ADVICE_RATE_PER_MINUTE", 6); err != nil {
		return nil, err
	}
	if c.MedicationGateDays, err = getInt("MEDICATION_GATE_DAYS", MinMedicationGateDays); err != nil {
		return nil, err
	}
	if c.AdviceTimeout, err = getDuration("ADVICE_TIMEOUT", 60*time.Second); err != nil {
		return nil, err
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return errors.New("APP_ENV must be one of: development, staging, production")
	}
	switch c.StorageBackend {
	case BackendSQLite:
		if c.SQLitePath == "" {
			return errors.New("SQLITE_PATH is required when STORAGE_BACKEND=sqlite")
		}
	case BackendPostgres:
		if c.PostgresDSN == "" {
			return errors.New("POSTGRES_DSN is required when STORAGE_BACKEND=postgres")
		}
	case BackendFile:
		if c.DataDir == "" {
			return errors.New("DATA_DIR is required when STORAGE_BACKEND=file")
		}
	default:
		return errors.New("STORAGE_BACKEND must be one of: sqlite, postgres, file")
	}
	switch c.LLMProvider {
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return errors.New("OPENAI_API_KEY is required when LLM_PROVIDER=openai")
		}
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			return errors.New("GEMINI_API_KEY is required when LLM_PROVIDER=gemini")
		}
	case ProviderMock:
	default:
		return errors.New("LLM_PROVIDER must be one of: openai, gemini, mock")
	}
	if c.AdviceMaxRunes <= 0 {
		return errors.New("ADVICE_MAX_RUNES must be positive")
	}
	if c.AdviceRatePerMinute <= 0 {
		return errors.New("ADVICE_RATE_PER_MINUTE must be positive")
	}
	if c.MedicationGateDays < MinMedicationGateDays {
		return fmt.Errorf("MEDICATION_GATE_DAYS must be at least %d", MinMedicationGateDays)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	return d, nil
}
