package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildlens/buildlens/internal/core/domain"
)

func TestNewConfigStore_MissingFileGivesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	store, err := NewConfigStore(path)
	require.NoError(t, err)

	settings := store.Settings()
	assert.Equal(t, 12000, settings.Prompt.BudgetChars)
	assert.Equal(t, 5, settings.Extraction.ContextLines)
	assert.Equal(t, domain.PeriodWeekly, settings.Budget.Period)
	assert.False(t, settings.LLM.IsConfigured())
}

func TestConfigStore_LoadsTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
archive_dir = "/var/lib/buildlens/archive"

[llm]
backend = "anthropic"
model = "claude-3-5-sonnet-latest"
temperature = 0.1

[budget]
ceiling = 5.0
period = "daily"

[budget.pricing."claude-3-5-sonnet-latest"]
input_per_1k = 0.003
output_per_1k = 0.015

[webhook]
addr = ":9000"
secret = "hush"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	store, err := NewConfigStore(path)
	require.NoError(t, err)

	settings := store.Settings()
	assert.Equal(t, "anthropic", settings.LLM.Backend)
	assert.Equal(t, "claude-3-5-sonnet-latest", settings.LLM.Model)
	assert.InDelta(t, 0.1, settings.LLM.Temperature, 1e-9)
	assert.InDelta(t, 5.0, settings.Budget.Ceiling, 1e-9)
	assert.Equal(t, domain.PeriodDaily, settings.Budget.Period)
	assert.Equal(t, ":9000", settings.Webhook.Addr)
	assert.Equal(t, "hush", settings.Webhook.Secret)
	assert.Equal(t, "/var/lib/buildlens/archive", settings.ArchiveDir)

	pricing, ok := settings.Budget.Pricing["claude-3-5-sonnet-latest"]
	require.True(t, ok)
	assert.InDelta(t, 0.003, pricing.InputPer1K, 1e-9)

	// Defaults still fill unspecified sections.
	assert.Equal(t, 12000, settings.Prompt.BudgetChars)
}

func TestConfigStore_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[llm]\napi_key = \"from-file\"\n"), 0600))
	t.Setenv("BUILDLENS_LLM_API_KEY", "from-env")

	store, err := NewConfigStore(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", store.Settings().LLM.APIKey)
}

func TestConfigStore_InvalidSettingsRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[prompt]\nbudget_chars = -1\n"), 0600))

	_, err := NewConfigStore(path)
	assert.Error(t, err)
}

func TestConfigStore_UpdatePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	store, err := NewConfigStore(path)
	require.NoError(t, err)

	require.NoError(t, store.Update(func(s *domain.Settings) {
		s.LLM.Backend = "ollama"
		s.LLM.Model = "llama3.2"
	}))

	reopened, err := NewConfigStore(path)
	require.NoError(t, err)
	assert.Equal(t, "ollama", reopened.Settings().LLM.Backend)
	assert.Equal(t, "llama3.2", reopened.Settings().LLM.Model)
}

func TestConfigStore_WatchReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	store, err := NewConfigStore(path)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	reloaded := make(chan struct{}, 1)
	go func() {
		_ = store.Watch(ctx, func() {
			select {
			case reloaded <- struct{}{}:
			default:
			}
		})
	}()

	// Give the watcher time to register before the write.
	time.Sleep(200 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("[llm]\nbackend = \"openai\"\n"), 0600))

	select {
	case <-reloaded:
	case <-ctx.Done():
		t.Fatal("timed out waiting for config reload")
	}
	assert.Equal(t, "openai", store.Settings().LLM.Backend)
}
