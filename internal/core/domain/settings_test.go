package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettings_ValidateDefaults(t *testing.T) {
	settings := DefaultSettings()
	assert.NoError(t, settings.Validate())
}

func TestSettings_ValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"negative context lines", func(s *Settings) { s.Extraction.ContextLines = -1 }},
		{"zero prompt budget", func(s *Settings) { s.Prompt.BudgetChars = 0 }},
		{"prompt budget below instruction overhead", func(s *Settings) { s.Prompt.BudgetChars = 500 }},
		{"zero max findings", func(s *Settings) { s.Prompt.MaxFindings = 0 }},
		{"zero retry attempts", func(s *Settings) { s.LLM.RetryAttempts = 0 }},
		{"negative budget ceiling", func(s *Settings) { s.Budget.Ceiling = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := DefaultSettings()
			tt.mutate(&settings)
			err := settings.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestSettings_ValidateAcceptsMinimumBudget(t *testing.T) {
	settings := DefaultSettings()
	settings.Prompt.BudgetChars = MinPromptBudgetChars
	assert.NoError(t, settings.Validate())
}
