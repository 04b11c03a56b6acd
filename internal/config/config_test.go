package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	t.Setenv("LLM_PROVIDER", ProviderMock)

	c, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, "development", c.Env)
	assert.Equal(t, BackendSQLite, c.StorageBackend)
	assert.Equal(t, "127.0.0.1:8088", c.HTTPAddr)
	assert.Equal(t, 1000, c.AdviceMaxRunes)
	assert.Equal(t, 500, c.AdvicePromptChars)
	assert.Equal(t, 60*time.Second, c.AdviceTimeout)
	assert.Equal(t, 7, c.MedicationGateDays)
	assert.Equal(t, "gpt-4o-mini", c.OpenAIModel)
}

func TestParseOverrides(t *testing.T) {
	t.Setenv("LLM_PROVIDER", ProviderGemini)
	t.Setenv("GEMINI_API_KEY", "key")
	t.Setenv("STORAGE_BACKEND", BackendFile)
	t.Setenv("DATA_DIR", "/tmp/sleepcoach")
	t.Setenv("ADVICE_TIMEOUT", "15s")
	t.Setenv("ADVICE_MAX_RUNES", "400")
	t.Setenv("MEDICATION_GATE_DAYS", "14")

	c, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, BackendFile, c.StorageBackend)
	assert.Equal(t, 15*time.Second, c.AdviceTimeout)
	assert.Equal(t, 400, c.AdviceMaxRunes)
	assert.Equal(t, 14, c.MedicationGateDays)
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := map[string]map[string]string{
		"missing openai key": {"LLM_PROVIDER": ProviderOpenAI, "OPENAI_API_KEY": ""},
		"unknown backend":    {"LLM_PROVIDER": ProviderMock, "STORAGE_BACKEND": "redis"},
		"postgres no dsn":    {"LLM_PROVIDER": ProviderMock, "STORAGE_BACKEND": BackendPostgres, "POSTGRES_DSN": ""},
		"bad env":            {"LLM_PROVIDER": ProviderMock, "APP_ENV": "qa"},
		"non-numeric runes":  {"LLM_PROVIDER": ProviderMock, "ADVICE_MAX_RUNES": "lots"},
		"bad duration":       {"LLM_PROVIDER": ProviderMock, "ADVICE_TIMEOUT": "soon"},
		"zero gate days":     {"LLM_PROVIDER": ProviderMock, "MEDICATION_GATE_DAYS": "0"},
		"gate below a week":  {"LLM_PROVIDER": ProviderMock, "MEDICATION_GATE_DAYS": "6"},
	}
	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Parse()
			assert.Error(t, err)
		})
	}
}
