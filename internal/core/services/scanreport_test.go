package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/buildlens/buildlens/internal/core/domain"
)

func TestParseScanReferences(t *testing.T) {
	a := domain.NewArtifact("src/util/md5.c", strings.Repeat("line\n", 100))

	report := `Component match: openssl-md5
Snippet match in md5.c:42 (RSA-MD license, 96% score)
Also flagged md5.c:77
Unrelated file sha1.c:12 should be ignored
Match region ends before 90 in the scanned file`

	refs := ParseScanReferences(a, report)

	assert.Equal(t, []domain.ExternalRef{
		{Line: 42, Hint: "license-match"},
		{Line: 77, Hint: "license-match"},
		{Line: 90, Hint: "license-match"},
	}, refs)
}

func TestParseScanReferences_OutOfRangeDropped(t *testing.T) {
	a := domain.NewArtifact("md5.c", "one\ntwo\nthree")

	refs := ParseScanReferences(a, "md5.c:2 ok, md5.c:100 too far, before 0 invalid")
	assert.Equal(t, []domain.ExternalRef{{Line: 2, Hint: "license-match"}}, refs)
}

func TestParseScanReferences_NoMatches(t *testing.T) {
	a := domain.NewArtifact("md5.c", "one")
	assert.Empty(t, ParseScanReferences(a, "clean scan, nothing flagged"))
}
