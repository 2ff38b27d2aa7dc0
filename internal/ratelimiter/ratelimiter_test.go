package ratelimiter

import (
	"testing"
	"time"
)

func TestAllowEnforcesBurst(t *testing.T) {
	limiter := New(10, 5)

	for i := 0; i < 5; i++ {
		if !limiter.Allow() {
			t.Fatalf("request %d should be allowed within burst", i)
		}
	}
	if limiter.Allow() {
		t.Fatal("request should be rejected after burst exhausted")
	}

	// 10 req/s refills one token every 100ms.
	time.Sleep(110 * time.Millisecond)
	if !limiter.Allow() {
		t.Fatal("request should be allowed after refill")
	}
}

func TestZeroRateDisablesLimiting(t *testing.T) {
	limiter := New(0, 0)
	for i := 0; i < 10_000; i++ {
		if !limiter.Allow() {
			t.Fatalf("request %d rejected by disabled limiter", i)
		}
	}
}
