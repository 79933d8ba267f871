package utils

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsUniqueViolation(t *testing.T) {
	err := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})
	if !IsUniqueViolation(err) {
		t.Fatalf("expected unique violation")
	}
	if IsUniqueViolation(errors.New("x")) {
		t.Fatalf("expected plain error not to match")
	}
}

func TestNullHelpersRoundTrip(t *testing.T) {
	if NullString("").Valid {
		t.Fatalf("expected empty string to be NULL")
	}
	if p := StringPtr(NullString("a")); p == nil || *p != "a" {
		t.Fatalf("expected pointer to a")
	}
	if NullTime(nil).Valid {
		t.Fatalf("expected nil time to be NULL")
	}
	now := time.Unix(1700000000, 0).UTC()
	if p := TimePtr(NullTime(&now)); p == nil || !p.Equal(now) {
		t.Fatalf("expected time round trip")
	}
}

func TestPoolDefaults(t *testing.T) {
	p := PostgresPoolConfig{}.withDefaults()
	if p.MaxOpenConns <= 0 || p.PingTimeout <= 0 {
		t.Fatalf("expected defaults, got %+v", p)
	}
}
