package services

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildlens/buildlens/internal/core/domain"
)

const validResponse = `{
  "findings": [
    {
      "cause": "missing semicolon in wifi_hal.c",
      "evidence": [{"line": 2, "snippet": "error: expected ';'"}],
      "confidence": "high",
      "next_action": "add the missing semicolon at line 88",
      "missing_data": ""
    }
  ],
  "summary": ["compile error in wifi_hal.c"]
}`

func testArtifact() *domain.Artifact {
	return domain.NewArtifact("build.log",
		"gcc -c wifi_hal.c\n"+
			"wifi_hal.c:88: error: expected ';' before 'return'\n"+
			"make: *** [wifi_hal.o] Error 1")
}

func TestParse_DirectJSON(t *testing.T) {
	v := NewValidator(3)

	out, err := v.Parse(validResponse)
	require.NoError(t, err)
	require.Len(t, out.Findings, 1)
	assert.Equal(t, "missing semicolon in wifi_hal.c", out.Findings[0].Cause)
	assert.Equal(t, []string{"compile error in wifi_hal.c"}, out.Summary)
}

func TestParse_FencedJSON(t *testing.T) {
	v := NewValidator(3)

	for _, wrapped := range []string{
		"```json\n" + validResponse + "\n```",
		"```\n" + validResponse + "\n```",
	} {
		out, err := v.Parse(wrapped)
		require.NoError(t, err)
		assert.Len(t, out.Findings, 1)
	}
}

func TestParse_JSONWithCommentary(t *testing.T) {
	v := NewValidator(3)

	out, err := v.Parse("Here is my analysis:\n" + validResponse + "\nHope that helps!")
	require.NoError(t, err)
	assert.Len(t, out.Findings, 1)
}

func TestParse_BracesInsideStrings(t *testing.T) {
	v := NewValidator(3)
	raw := `prefix {"findings": [{"cause": "brace } in { string", "evidence": [], "confidence": "low"}], "summary": ["s"]} suffix`

	out, err := v.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "brace } in { string", out.Findings[0].Cause)
}

func TestParse_SchemaInvalid(t *testing.T) {
	v := NewValidator(3)

	for _, raw := range []string{
		"",
		"I could not find any errors in the log.",
		`{"unexpected": true}`,
		`[1, 2, 3]`,
	} {
		_, err := v.Parse(raw)
		assert.ErrorIs(t, err, domain.ErrSchemaInvalid, "raw=%q", raw)
	}
}

func TestVerify_KeepsVerifiedCitations(t *testing.T) {
	v := NewValidator(3)
	out := &ModelOutput{Findings: []ModelFinding{{
		Cause:      "missing semicolon",
		Evidence:   []domain.Citation{{Line: 2, Snippet: "expected ';' before 'return'"}},
		Confidence: "high",
		NextAction: "fix it",
	}}}

	findings, rejected := v.Verify(testArtifact(), out)
	require.Len(t, findings, 1)
	assert.Zero(t, rejected)
	assert.Equal(t, domain.ConfidenceHigh, findings[0].Confidence)
	assert.Len(t, findings[0].Citations, 1)
}

func TestVerify_StripsFabricatedCitations(t *testing.T) {
	v := NewValidator(3)
	out := &ModelOutput{Findings: []ModelFinding{{
		Cause:      "uninitialized buffer",
		Confidence: "high",
		Evidence: []domain.Citation{
			{Line: 2, Snippet: "buffer overflow in packet_parse"}, // never in the log
			{Line: 2, Snippet: "expected ';'"},                    // real
		},
	}}}

	findings, rejected := v.Verify(testArtifact(), out)
	require.Len(t, findings, 1)
	assert.Equal(t, 1, rejected)
	require.Len(t, findings[0].Citations, 1)
	assert.Equal(t, "expected ';'", findings[0].Citations[0].Snippet)
	// One verified citation remains, original confidence survives.
	assert.Equal(t, domain.ConfidenceHigh, findings[0].Confidence)
}

func TestVerify_EmptyCitationsForcesLowConfidence(t *testing.T) {
	v := NewValidator(3)
	out := &ModelOutput{Findings: []ModelFinding{{
		Cause:      "wrong compiler version",
		Confidence: "high",
		Evidence:   []domain.Citation{{Line: 1, Snippet: "gcc version 12 mismatch"}},
	}}}

	findings, rejected := v.Verify(testArtifact(), out)
	require.Len(t, findings, 1)
	assert.Equal(t, 1, rejected)
	assert.Empty(t, findings[0].Citations)
	assert.Equal(t, domain.ConfidenceLow, findings[0].Confidence)
	assert.Equal(t, missingEvidenceNote, findings[0].MissingData)
}

func TestVerify_NoCitationsSuppliedAtAll(t *testing.T) {
	v := NewValidator(3)
	out := &ModelOutput{Findings: []ModelFinding{{
		Cause:      "speculation without evidence",
		Confidence: "medium",
	}}}

	findings, rejected := v.Verify(testArtifact(), out)
	require.Len(t, findings, 1)
	assert.Zero(t, rejected)
	assert.Equal(t, domain.ConfidenceLow, findings[0].Confidence)
	assert.NotEmpty(t, findings[0].MissingData)
}

func TestVerify_DropsCauselessFindings(t *testing.T) {
	v := NewValidator(3)
	out := &ModelOutput{Findings: []ModelFinding{
		{Cause: "   "},
		{Cause: "real finding", Evidence: []domain.Citation{{Line: 2, Snippet: "expected ';'"}}},
	}}

	findings, _ := v.Verify(testArtifact(), out)
	require.Len(t, findings, 1)
	assert.Equal(t, "real finding", findings[0].Cause)
}

func TestVerify_CapsFindingsPreservingOrder(t *testing.T) {
	v := NewValidator(2)
	var out ModelOutput
	for i := 1; i <= 5; i++ {
		out.Findings = append(out.Findings, ModelFinding{
			Cause:    fmt.Sprintf("finding %d", i),
			Evidence: []domain.Citation{{Line: 2, Snippet: "expected ';'"}},
		})
	}

	findings, _ := v.Verify(testArtifact(), &out)
	require.Len(t, findings, 2)
	assert.Equal(t, "finding 1", findings[0].Cause)
	assert.Equal(t, "finding 2", findings[1].Cause)
}

func TestVerify_FabricatedCitationFuzz(t *testing.T) {
	// No fabricated snippet may survive verification, whatever its shape.
	v := NewValidator(10)
	a := testArtifact()

	fabricated := []domain.Citation{
		{Line: 1, Snippet: "completely invented text"},
		{Line: 2, Snippet: "error: expected ';' but with extra invented tail"},
		{Line: 3, Snippet: "wifi_hal.c:88"},
		{Line: -4, Snippet: "error"},
		{Line: 1000000, Snippet: "error"},
		{Line: 2, Snippet: ""},
	}
	out := &ModelOutput{Findings: []ModelFinding{{
		Cause:    "fuzzed",
		Evidence: fabricated,
	}}}

	findings, rejected := v.Verify(a, out)
	assert.Equal(t, len(fabricated), rejected)
	require.Len(t, findings, 1)
	assert.Empty(t, findings[0].Citations)
	assert.Equal(t, domain.ConfidenceLow, findings[0].Confidence)
}
