package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// DefaultSignatureTolerance bounds how old a webhook timestamp may be before
// the delivery is rejected as a possible replay.
const DefaultSignatureTolerance = 5 * time.Minute

// VerifyWebhookSignature checks the gateway's HMAC-SHA256 signature. The MAC
// covers "<timestamp>.<payload>" so a valid signature cannot be replayed
// with a fresher timestamp.
func VerifyWebhookSignature(payload []byte, timestampHeader, signatureHeader, webhookSecret string) bool {
	sig := strings.TrimSpace(signatureHeader)
	secret := strings.TrimSpace(webhookSecret)
	ts := strings.TrimSpace(timestampHeader)
	if sig == "" || secret == "" || ts == "" {
		return false
	}

	expectedSig, err := hex.DecodeString(strings.ToLower(sig))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), expectedSig)
}

// TimestampWithinTolerance checks the unix-seconds timestamp header against
// the clock. Future-dated timestamps within the tolerance are accepted to
// absorb clock skew.
func TimestampWithinTolerance(timestampHeader string, now time.Time, tolerance time.Duration) bool {
	ts := strings.TrimSpace(timestampHeader)
	if ts == "" {
		return false
	}
	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return false
	}
	diff := now.Sub(time.Unix(unix, 0))
	if diff < 0 {
		diff = -diff
	}
	return diff <= tolerance
}
