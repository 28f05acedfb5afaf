package services

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/buildlens/buildlens/internal/core/domain"
	"github.com/buildlens/buildlens/internal/logger"
)

// missingEvidenceNote is synthesized for findings whose citation list is
// emptied by verification and which carry no note of their own.
const missingEvidenceNote = "no citation could be verified against the supplied evidence sections"

// ModelOutput is the parsed model response before evidence verification.
type ModelOutput struct {
	Findings []ModelFinding `json:"findings"`
	Summary  []string       `json:"summary"`
}

// ModelFinding mirrors the required response schema for one finding.
type ModelFinding struct {
	Cause       string            `json:"cause"`
	Evidence    []domain.Citation `json:"evidence"`
	Confidence  string            `json:"confidence"`
	NextAction  string            `json:"next_action"`
	MissingData string            `json:"missing_data"`
}

// Validator parses model output against the required schema and gates every
// finding on verifiable evidence. A finding with unverifiable evidence never
// reaches delivery at full confidence.
type Validator struct {
	maxFindings int
}

// NewValidator creates a validator that caps delivered findings.
func NewValidator(maxFindings int) *Validator {
	if maxFindings < 1 {
		maxFindings = 1
	}
	return &Validator{maxFindings: maxFindings}
}

// Parse extracts the response object from raw model text. It tolerates
// responses wrapped in formatting fences or surrounded by commentary:
// direct parse first, then fence-stripped, then the first balanced JSON
// object. Anything else is domain.ErrSchemaInvalid.
func (v *Validator) Parse(raw string) (*ModelOutput, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty response", domain.ErrSchemaInvalid)
	}

	for _, candidate := range parseCandidates(raw) {
		var out ModelOutput
		if err := json.Unmarshal([]byte(candidate), &out); err != nil {
			continue
		}
		if out.Findings == nil && out.Summary == nil {
			continue
		}
		return &out, nil
	}
	return nil, fmt.Errorf("%w: no parsable response object", domain.ErrSchemaInvalid)
}

// parseCandidates yields the strings worth attempting to unmarshal,
// most-direct first.
func parseCandidates(raw string) []string {
	candidates := []string{raw}
	if fenced := stripFences(raw); fenced != "" && fenced != raw {
		candidates = append(candidates, fenced)
	}
	if block := firstJSONObject(raw); block != "" && block != raw {
		candidates = append(candidates, block)
	}
	return candidates
}

// stripFences removes a surrounding markdown code fence, with or without a
// language tag.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return ""
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx >= 0 {
		s = s[idx+1:]
	}
	if idx := strings.LastIndex(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

// firstJSONObject scans for the first balanced top-level JSON object.
// Braces inside JSON strings are skipped.
func firstJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		switch {
		case escaped:
			escaped = false
		case ch == '\\' && inString:
			escaped = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == '{':
			depth++
		case ch == '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

// Verify checks every citation against the artifact and enforces the
// evidence invariants:
//
//   - citations whose snippet is not a verbatim (whitespace/case-normalised)
//     substring of the artifact at the cited line are stripped;
//   - a finding left without citations is forced to low confidence and
//     carries a missing-data note;
//   - findings without a cause are dropped entirely;
//   - the list is capped, preserving the model's original ranking among
//     findings that survived.
//
// It returns the verified findings and the count of rejected citations.
func (v *Validator) Verify(a *domain.Artifact, out *ModelOutput) ([]domain.Finding, int) {
	rejected := 0
	var findings []domain.Finding

	for _, mf := range out.Findings {
		if strings.TrimSpace(mf.Cause) == "" {
			continue
		}

		var citations []domain.Citation
		for _, c := range mf.Evidence {
			if c.Verify(a) {
				citations = append(citations, c)
			} else {
				rejected++
				logger.Debug("Validator: rejected citation line %d: %q", c.Line, c.Snippet)
			}
		}

		f := domain.Finding{
			Cause:       strings.TrimSpace(mf.Cause),
			Citations:   citations,
			Confidence:  domain.ParseConfidence(mf.Confidence),
			NextAction:  strings.TrimSpace(mf.NextAction),
			MissingData: strings.TrimSpace(mf.MissingData),
		}
		if len(f.Citations) == 0 {
			f.Confidence = domain.ConfidenceLow
			if f.MissingData == "" {
				f.MissingData = missingEvidenceNote
			}
		}
		findings = append(findings, f)

		if len(findings) == v.maxFindings {
			break
		}
	}

	if rejected > 0 {
		logger.Info("Validator: stripped %d unverifiable citations", rejected)
	}
	return findings, rejected
}
