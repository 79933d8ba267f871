package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// SignatureHeader carries "t=<unix>,v0=<hex hmac>".
const SignatureHeader = "elevenlabs-signature"

// SignatureTolerance is how old a signature timestamp may be.
const SignatureTolerance = 30 * time.Minute

// MaxClockSkew is how far in the future a signature timestamp may be.
const MaxClockSkew = 5 * time.Minute

// VerifySignature checks header against an HMAC-SHA256 of "{t}.{body}".
// An empty secret disables verification.
func VerifySignature(body []byte, header, secret string, now time.Time) bool {
	if secret == "" {
		return true
	}

	var ts, sig string
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			ts = v
		case "v0":
			sig = v
		}
	}
	if ts == "" || sig == "" {
		return false
	}

	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return false
	}
	age := now.Sub(time.Unix(unix, 0))
	if age > SignatureTolerance || age < -MaxClockSkew {
		return false
	}

	got, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	return hmac.Equal(got, Sign(body, ts, secret))
}

// Sign returns the raw HMAC for body at timestamp ts.
func Sign(body []byte, ts, secret string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(body)
	return mac.Sum(nil)
}

// SignatureFor builds a header value. Used by tests and local tooling.
func SignatureFor(body []byte, secret string, at time.Time) string {
	ts := strconv.FormatInt(at.Unix(), 10)
	return "t=" + ts + ",v0=" + hex.EncodeToString(Sign(body, ts, secret))
}
