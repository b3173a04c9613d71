package replicate

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// Static errors for webhook validation.
var (
	// ErrMissingSignatureHeaders is returned when any of the three signature
	// headers is absent.
	ErrMissingSignatureHeaders = errors.New("replicate: missing webhook signature headers")
	// ErrInvalidSigningSecret is returned when the configured secret cannot be decoded.
	ErrInvalidSigningSecret = errors.New("replicate: invalid webhook signing secret")
	// ErrInvalidSignature is returned when no signature candidate matches.
	ErrInvalidSignature = errors.New("replicate: invalid webhook signature")
)

const signingSecretPrefix = "whsec_"

// ValidateWebhook verifies a Replicate webhook delivery. The signed content is
// "{webhook-id}.{webhook-timestamp}.{body}", keyed with the base64-decoded
// secret (after the whsec_ prefix). The signature header may carry several
// space-separated candidates of the form "v1,<base64>"; each is compared in
// constant time.
func ValidateWebhook(webhookID, timestamp, signatureHeader string, body []byte, secret string) error {
	if webhookID == "" || timestamp == "" || signatureHeader == "" {
		return ErrMissingSignatureHeaders
	}

	key, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(secret, signingSecretPrefix))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSigningSecret, err)
	}

	mac := hmac.New(sha256.New, key)
	fmt.Fprintf(mac, "%s.%s.", webhookID, timestamp)
	mac.Write(body)
	expected := []byte(base64.StdEncoding.EncodeToString(mac.Sum(nil)))

	for _, candidate := range strings.Fields(signatureHeader) {
		_, sig, found := strings.Cut(candidate, ",")
		if !found {
			sig = candidate
		}
		if hmac.Equal(expected, []byte(sig)) {
			return nil
		}
	}
	return ErrInvalidSignature
}
