package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCitation_Verify(t *testing.T) {
	a := NewArtifact("build.log",
		"gcc -c main.c\n"+
			"main.c:10: error: 'config_ptr' undeclared\n"+
			"make: *** [main.o] Error 1")

	tests := []struct {
		name     string
		citation Citation
		want     bool
	}{
		{"exact snippet", Citation{Line: 2, Snippet: "'config_ptr' undeclared"}, true},
		{"case and whitespace tolerant", Citation{Line: 2, Snippet: "ERROR:   'config_ptr'"}, true},
		{"whole line", Citation{Line: 2, Snippet: "main.c:10: error: 'config_ptr' undeclared"}, true},
		{"fabricated identifier", Citation{Line: 2, Snippet: "'buffer_size' undeclared"}, false},
		{"wrong line", Citation{Line: 1, Snippet: "'config_ptr' undeclared"}, false},
		{"out of range line", Citation{Line: 99, Snippet: "error"}, false},
		{"empty snippet", Citation{Line: 2, Snippet: "   "}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.citation.Verify(a))
		})
	}
}

func TestNormalizeEvidence(t *testing.T) {
	assert.Equal(t, "error: boom", NormalizeEvidence("  ERROR:\t boom  "))
	assert.Equal(t, "", NormalizeEvidence("   "))
}

func TestParseConfidence_DegradesUnknownToLow(t *testing.T) {
	assert.Equal(t, ConfidenceHigh, ParseConfidence("High"))
	assert.Equal(t, ConfidenceMedium, ParseConfidence(" medium "))
	assert.Equal(t, ConfidenceLow, ParseConfidence("low"))
	assert.Equal(t, ConfidenceLow, ParseConfidence("certain"))
	assert.Equal(t, ConfidenceLow, ParseConfidence(""))
}

func TestReport_HasVerifiedEvidence(t *testing.T) {
	r := &Report{Findings: []Finding{
		{Confidence: ConfidenceHigh, Citations: []Citation{{Line: 1, Snippet: "x"}}},
		{Confidence: ConfidenceLow},
	}}
	assert.True(t, r.HasVerifiedEvidence())

	r.Findings = append(r.Findings, Finding{Confidence: ConfidenceMedium})
	assert.False(t, r.HasVerifiedEvidence())
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(0))
	assert.Equal(t, 0, EstimateTokens(-10))
	assert.Equal(t, 1, EstimateTokens(3))
	assert.Equal(t, 1000, EstimateTokens(3500))
}
