package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildlens/buildlens/internal/core/domain"
)

func TestCreateLLMService_UnconfiguredIsNil(t *testing.T) {
	svc, err := CreateLLMService(nil)
	require.NoError(t, err)
	assert.Nil(t, svc)

	svc, err = CreateLLMService(&domain.LLMSettings{})
	require.NoError(t, err)
	assert.Nil(t, svc)
}

func TestCreateLLMService_KillSwitch(t *testing.T) {
	svc, err := CreateLLMService(&domain.LLMSettings{
		Backend:  "anthropic",
		APIKey:   "sk-test",
		Disabled: true,
	})
	require.NoError(t, err)
	assert.Nil(t, svc)
}

func TestCreateLLMService_Backends(t *testing.T) {
	tests := []struct {
		backend string
		apiKey  string
	}{
		{"anthropic", "sk-test"},
		{"openai", "sk-test"},
		{"ollama", ""},
	}
	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			svc, err := CreateLLMService(&domain.LLMSettings{
				Backend: tt.backend,
				APIKey:  tt.apiKey,
			})
			require.NoError(t, err)
			require.NotNil(t, svc)
			assert.Equal(t, tt.backend, svc.Backend())
		})
	}
}

func TestCreateLLMService_UnknownBackend(t *testing.T) {
	_, err := CreateLLMService(&domain.LLMSettings{Backend: "bard"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
