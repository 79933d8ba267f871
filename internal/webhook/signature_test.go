package webhook

import (
	"strconv"
	"testing"
	"time"
)

func TestVerifySignature(t *testing.T) {
	now := time.Unix(1_710_000_000, 0)
	body := []byte(`{"data":{"conversation_id":"c1"}}`)
	secret := "whsec"
	valid := SignatureFor(body, secret, now)

	cases := []struct {
		name   string
		body   []byte
		header string
		secret string
		now    time.Time
		want   bool
	}{
		{"valid", body, valid, secret, now, true},
		{"within tolerance", body, SignatureFor(body, secret, now.Add(-29*time.Minute)), secret, now, true},
		{"stale", body, SignatureFor(body, secret, now.Add(-31*time.Minute)), secret, now, false},
		{"slightly ahead", body, SignatureFor(body, secret, now.Add(4*time.Minute)), secret, now, true},
		{"far future", body, SignatureFor(body, secret, now.Add(6*time.Minute)), secret, now, false},
		{"tampered body", []byte(`{"data":{"conversation_id":"c2"}}`), valid, secret, now, false},
		{"wrong secret", body, valid, "other", now, false},
		{"missing t", body, "v0=abcd", secret, now, false},
		{"missing v0", body, "t=" + strconv.FormatInt(now.Unix(), 10), secret, now, false},
		{"bad timestamp", body, "t=yesterday,v0=abcd", secret, now, false},
		{"bad hex", body, "t=" + strconv.FormatInt(now.Unix(), 10) + ",v0=zz", secret, now, false},
		{"empty header", body, "", secret, now, false},
		{"empty secret skips", body, "", "", now, true},
		{"spaces around pairs", body, " " + valid[:len("t=1710000000")] + " , " + valid[len("t=1710000000,"):], secret, now, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := VerifySignature(tc.body, tc.header, tc.secret, tc.now); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}
