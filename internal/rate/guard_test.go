package rate

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func TestGuardBudgetRefills(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	guard := newGuardAt(Provider("tech").MaxRequestsPer(Minute, 2), clock.Now)

	for i := 0; i < 2; i++ {
		if d := guard.ShouldCall(); !d.Allowed {
			t.Fatalf("call %d should be allowed: %+v", i, d)
		}
	}

	d := guard.ShouldCall()
	if d.Allowed || d.Reason != "budget" {
		t.Fatalf("expected budget block, got %+v", d)
	}
	if !d.RetryAt.After(clock.now) {
		t.Fatalf("expected retry time in the future, got %s", d.RetryAt)
	}

	clock.now = clock.now.Add(31 * time.Second)
	if d := guard.ShouldCall(); !d.Allowed {
		t.Fatalf("expected refill after 31s, got %+v", d)
	}
}

func TestGuardRetryAfterCooldown(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	guard := newGuardAt(Provider("tech").MaxRequestsPer(Minute, 100), clock.Now)

	header := http.Header{}
	header.Set("Retry-After", "10")
	guard.RecordResponse(http.StatusTooManyRequests, header)

	d := guard.ShouldCall()
	if d.Allowed || d.Reason != "cooldown" {
		t.Fatalf("expected cooldown, got %+v", d)
	}

	clock.now = clock.now.Add(11 * time.Second)
	if d := guard.ShouldCall(); !d.Allowed {
		t.Fatalf("expected call after cooldown, got %+v", d)
	}
}

func TestUnlimitedDeclaration(t *testing.T) {
	guard := NewGuard(Provider("tech").MaxRequestsPer(Minute, 0))
	for i := 0; i < 1000; i++ {
		if d := guard.ShouldCall(); !d.Allowed {
			t.Fatalf("unlimited guard blocked call %d", i)
		}
	}
}

func TestWrapHTTP(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		_, _ = io.WriteString(w, "ok")
	}))
	defer server.Close()

	client := WrapHTTP(Provider("tech").MaxRequestsPer(Minute, 1), &http.Client{Timeout: time.Second})

	resp, err := client.Get(server.URL)
	if err != nil {
		t.Fatalf("first request: %v", err)
	}
	resp.Body.Close()

	_, err = client.Get(server.URL)
	var rateErr RateLimitError
	if !errors.As(err, &rateErr) {
		t.Fatalf("expected RateLimitError, got %v", err)
	}
	if rateErr.Provider != "tech" {
		t.Fatalf("unexpected provider: %s", rateErr.Provider)
	}
	if hits != 1 {
		t.Fatalf("expected 1 upstream hit, got %d", hits)
	}
}
