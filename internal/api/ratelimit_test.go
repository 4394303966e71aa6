package api

import (
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func TestIPRateLimiter(t *testing.T) {
	t.Parallel()

	rl := newIPRateLimiter(rate.Limit(0.001), 2, time.Hour)

	if !rl.Allow("10.0.0.1") || !rl.Allow("10.0.0.1") {
		t.Fatal("burst of 2 must admit two requests")
	}
	if rl.Allow("10.0.0.1") {
		t.Error("third request within burst window admitted")
	}
	// Each IP gets its own bucket.
	if !rl.Allow("10.0.0.2") {
		t.Error("fresh IP denied")
	}
}

func TestClientIP(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"192.0.2.10:51123": "192.0.2.10",
		"[2001:db8::1]:80": "2001:db8::1",
		"192.0.2.10":       "192.0.2.10",
	}
	for in, want := range cases {
		if got := clientIP(in); got != want {
			t.Errorf("clientIP(%q) = %q, want %q", in, got, want)
		}
	}
}
