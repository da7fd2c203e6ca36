// Package security provides HMAC request signing, verification, and
// request authentication for the database service API.
package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// Names of the authentication headers carried by signed requests.
const (
	TimestampHeader = "X-API-Timestamp"
	SignatureHeader = "X-API-Signature"
)

// CanonicalString builds the string that is signed for a request:
// "{METHOD}:{PATH}:{timestamp}" with the method upper-cased.
func CanonicalString(method, path string, timestamp int64) string {
	return strings.ToUpper(method) + ":" + path + ":" + strconv.FormatInt(timestamp, 10)
}

// Sign computes the lowercase hex HMAC-SHA256 signature for a request.
func Sign(secret, method, path string, timestamp int64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(CanonicalString(method, path, timestamp)))
	return hex.EncodeToString(mac.Sum(nil))
}

// AuthHeaders mints a timestamp/signature header pair for a request made
// now. Used by the companion client and the development helper endpoint.
func AuthHeaders(secret, method, path string) map[string]string {
	ts := time.Now().Unix()
	return map[string]string{
		TimestampHeader: strconv.FormatInt(ts, 10),
		SignatureHeader: Sign(secret, method, path, ts),
	}
}

// VerifySignature checks a supplied signature against the expected one
// for the given request parameters. The timestamp must lie within
// window of now; an expired timestamp fails verification even when the
// signature itself matches, which blocks replay of old signed requests.
// Comparison is constant-time.
func VerifySignature(secret, method, path string, timestamp int64, signature string, window time.Duration, now time.Time) bool {
	diff := now.Unix() - timestamp
	if diff < 0 {
		diff = -diff
	}
	if diff > int64(window/time.Second) {
		return false
	}

	expected := Sign(secret, method, path, timestamp)
	return hmac.Equal([]byte(expected), []byte(signature))
}
