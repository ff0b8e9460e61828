package webhook

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/http"
)

// verifySignature verifies a channel webhook signature using HMAC
func verifySignature(body []byte, signature string, secret string, algorithm string) bool {
	var expected string

	switch algorithm {
	case "sha256":
		expected = computeHMACSHA256(body, secret)
	case "sha1":
		expected = computeHMACSHA1(body, secret)
	default:
		return false
	}

	// Timing-safe comparison to prevent timing attacks
	return subtle.ConstantTimeCompare([]byte(signature), []byte(expected)) == 1
}

// computeHMACSHA256 computes HMAC-SHA256 signature
func computeHMACSHA256(body []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(body)
	return fmt.Sprintf("sha256=%s", hex.EncodeToString(h.Sum(nil)))
}

// computeHMACSHA1 computes HMAC-SHA1 signature
func computeHMACSHA1(body []byte, secret string) string {
	h := hmac.New(sha1.New, []byte(secret))
	h.Write(body)
	return fmt.Sprintf("sha1=%s", hex.EncodeToString(h.Sum(nil)))
}

// checkRequestSignature verifies the request against the app secret. The
// channel sends X-Hub-Signature-256 on current API versions and the legacy
// X-Hub-Signature on older ones; either is accepted.
func checkRequestSignature(r *http.Request, body []byte, secret string) bool {
	if sig := r.Header.Get("X-Hub-Signature-256"); sig != "" {
		return verifySignature(body, sig, secret, "sha256")
	}
	if sig := r.Header.Get("X-Hub-Signature"); sig != "" {
		return verifySignature(body, sig, secret, "sha1")
	}
	return false
}
