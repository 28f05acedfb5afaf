package services

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/buildlens/buildlens/internal/core/domain"
)

// Scanner reports reference source locations two ways: exact "file.c:72"
// coordinates and positional "before 18773" phrases.
var (
	fileLineRefRE = regexp.MustCompile(`([\w\-]+\.\w+):(\d+)`)
	beforeRefRE   = regexp.MustCompile(`(?i)\bbefore\s+(\d+)\b`)
)

// licenseMatchHint is the rule hint attached to scanner-supplied indicators
// so the categorizer buckets them as license matches.
const licenseMatchHint = "license-match"

// ParseScanReferences extracts line references from a license-scanner report
// that point into the given artifact. References to other files and lines
// outside the artifact are dropped.
func ParseScanReferences(a *domain.Artifact, scanReport string) []domain.ExternalRef {
	base := filepath.Base(a.ID)
	var refs []domain.ExternalRef

	for _, m := range fileLineRefRE.FindAllStringSubmatch(scanReport, -1) {
		if m[1] != base && !strings.HasSuffix(base, m[1]) {
			continue
		}
		line, err := strconv.Atoi(m[2])
		if err != nil || line < 1 || line > a.LineCount() {
			continue
		}
		refs = append(refs, domain.ExternalRef{Line: line, Hint: licenseMatchHint})
	}

	for _, m := range beforeRefRE.FindAllStringSubmatch(scanReport, -1) {
		line, err := strconv.Atoi(m[1])
		if err != nil || line < 1 || line > a.LineCount() {
			continue
		}
		refs = append(refs, domain.ExternalRef{Line: line, Hint: licenseMatchHint})
	}

	return refs
}
