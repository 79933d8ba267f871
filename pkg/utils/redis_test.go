package utils

import (
	"context"
	"testing"
	"time"
)

func TestReleaseScriptInitialized(t *testing.T) {
	if releaseLockScript == nil {
		t.Fatalf("expected release script to be initialized")
	}
}

func TestRedisLocker_RejectsInvalidArgs(t *testing.T) {
	var l *RedisLocker
	if _, _, err := l.TryLock(context.Background(), "k", time.Second); err == nil {
		t.Fatalf("expected error for nil locker")
	}
	if _, err := OpenRedis(context.Background(), RedisConfig{}); err == nil {
		t.Fatalf("expected error for empty addr")
	}
}
