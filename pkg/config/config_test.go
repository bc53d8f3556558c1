package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ncolesummers/web-research-agent/pkg/domain"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.validate())

	assert.Equal(t, domain.DefaultDeepResearchConfig(), cfg.Research.ToDeepResearchConfig())
	assert.Equal(t, 8*time.Second, cfg.GetDuration(cfg.Research.PageTimeout, 0))
	assert.Equal(t, 1500*time.Millisecond, cfg.GetDuration(cfg.Research.SettleDelay, 0))
	assert.Equal(t, 5*time.Minute, cfg.GetDuration(cfg.Cache.TTL, 0))
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
ollama:
  model: qwen2.5:7b
research:
  max_pages_to_fetch: 4
cache:
  ttl: 1m
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "qwen2.5:7b", cfg.Ollama.Model)
	assert.Equal(t, "http://localhost:11434", cfg.Ollama.BaseURL)
	assert.Equal(t, 4, cfg.Research.MaxPagesToFetch)
	assert.Equal(t, 5, cfg.Research.MaxSubQuestions)
	assert.Equal(t, "memory", cfg.Cache.Type)
	assert.Equal(t, "1m", cfg.Cache.TTL)
	assert.Equal(t, "8s", cfg.Research.PageTimeout)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("OLLAMA_BASE_URL", "http://gpu-box:11434")
	t.Setenv("OLLAMA_MODEL", "llama3.1:70b")
	t.Setenv("REDIS_ADDRESS", "redis:6379")
	t.Setenv("BROWSER_REMOTE_URL", "ws://chrome:9222")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4318")

	cfg, err := Load(writeConfig(t, "ollama:\n  model: ignored\n"))
	require.NoError(t, err)

	assert.Equal(t, "http://gpu-box:11434", cfg.Ollama.BaseURL)
	assert.Equal(t, "llama3.1:70b", cfg.Ollama.Model)
	assert.Equal(t, "redis", cfg.Cache.Type)
	assert.Equal(t, "redis:6379", cfg.Cache.Redis.Address)
	assert.Equal(t, "ws://chrome:9222", cfg.Browser.RemoteURL)
	assert.True(t, cfg.Observability.Tracing.Enabled)
	assert.Equal(t, "collector:4318", cfg.Observability.Tracing.Endpoint)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "ollama: [unclosed"))
	assert.Error(t, err)

	tests := []struct {
		name string
		body string
	}{
		{"bad duration", "research:\n  page_timeout: soon\n"},
		{"negative follow-ups", "research:\n  max_follow_up_searches: -1\n"},
		{"unknown cache", "cache:\n  type: memcached\n"},
		{"sampling rate", "observability:\n  tracing:\n    sampling_rate: 2\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadOrDefault(t *testing.T) {
	cfg := LoadOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Equal(t, Default().Research, cfg.Research)
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Research.MaxFollowUpSearches = 1
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Research.MaxFollowUpSearches)
	assert.Equal(t, cfg.Browser, loaded.Browser)
}

func TestGetDuration_Fallback(t *testing.T) {
	cfg := Default()
	assert.Equal(t, time.Second, cfg.GetDuration("", time.Second))
	assert.Equal(t, 2*time.Minute, cfg.GetDuration(" 2m ", time.Second))
}
