package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/buildlens/buildlens/internal/core/domain"
)

const signatureHeader = "X-Hub-Signature-256"

// verifySignature checks the HMAC-SHA256 signature of a request body against
// the shared secret. The header carries "sha256=" plus the hex digest.
// Comparison is constant time. Failures wrap domain.ErrSignatureInvalid.
func verifySignature(secret string, body []byte, header string) error {
	if secret == "" {
		return fmt.Errorf("%w: no secret configured", domain.ErrSignatureInvalid)
	}
	if header == "" {
		return fmt.Errorf("%w: missing %s header", domain.ErrSignatureInvalid, signatureHeader)
	}
	const prefix = "sha256="
	if !strings.HasPrefix(header, prefix) {
		return fmt.Errorf("%w: header lacks %q prefix", domain.ErrSignatureInvalid, prefix)
	}
	got, err := hex.DecodeString(strings.TrimPrefix(header, prefix))
	if err != nil {
		return fmt.Errorf("%w: malformed hex digest", domain.ErrSignatureInvalid)
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	want := mac.Sum(nil)

	if !hmac.Equal(got, want) {
		return fmt.Errorf("%w: digest mismatch", domain.ErrSignatureInvalid)
	}
	return nil
}

// signBody computes the signature header value for a body. Exported to tests
// and to callers that need to self-sign internal deliveries.
func signBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
