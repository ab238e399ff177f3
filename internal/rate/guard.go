package rate

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// RateLimitError is returned when calls are blocked.
type RateLimitError struct {
	Provider string
	Reason   string
	RetryAt  time.Time
}

func (e RateLimitError) Error() string {
	if e.RetryAt.IsZero() {
		return fmt.Sprintf("%s rate limited: %s", e.Provider, e.Reason)
	}
	return fmt.Sprintf("%s rate limited: %s (retry at %s)", e.Provider, e.Reason, e.RetryAt.UTC().Format(time.RFC3339))
}

type Decision struct {
	Allowed bool
	Reason  string
	RetryAt time.Time
}

type bucket struct {
	capacity int
	tokens   float64
	last     time.Time
}

// Guard enforces a provider's request budget.
type Guard struct {
	decl Declaration
	now  func() time.Time

	mu       sync.Mutex
	buckets  map[Window]*bucket
	cooldown time.Time
}

func NewGuard(decl Declaration) *Guard {
	return newGuardAt(decl, time.Now)
}

func newGuardAt(decl Declaration, now func() time.Time) *Guard {
	g := &Guard{
		decl:    decl,
		now:     now,
		buckets: make(map[Window]*bucket),
	}
	start := now()
	for window, limit := range decl.Limits() {
		g.buckets[window] = &bucket{capacity: limit, tokens: float64(limit), last: start}
	}
	return g
}

// WrapHTTP wraps an http.Client with rate-limit enforcement.
func WrapHTTP(decl Declaration, base *http.Client) *http.Client {
	if base == nil {
		base = &http.Client{}
	}
	client := *base
	client.Transport = NewGuard(decl).Transport(client.Transport)
	return &client
}

// Transport returns a RoundTripper that consults the guard before each request.
func (g *Guard) Transport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &roundTripper{base: base, guard: g}
}

type roundTripper struct {
	base  http.RoundTripper
	guard *Guard
}

func (rt *roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	decision := rt.guard.ShouldCall()
	if !decision.Allowed {
		if req.Body != nil {
			req.Body.Close()
		}
		blockedCounter.WithLabelValues(rt.guard.decl.ProviderName(), decision.Reason).Inc()
		return nil, RateLimitError{
			Provider: rt.guard.decl.ProviderName(),
			Reason:   decision.Reason,
			RetryAt:  decision.RetryAt,
		}
	}

	resp, err := rt.base.RoundTrip(req)
	if err != nil {
		return resp, err
	}
	rt.guard.RecordResponse(resp.StatusCode, resp.Header)
	return resp, nil
}

// ShouldCall consumes one request from every window, or reports why it cannot.
func (g *Guard) ShouldCall() Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if !g.cooldown.IsZero() && now.Before(g.cooldown) {
		return Decision{Allowed: false, Reason: "cooldown", RetryAt: g.cooldown}
	}

	for window, b := range g.buckets {
		refill(b, window.Duration(), now)
		if b.tokens < 1 {
			retryAt := now.Add(time.Duration((1 - b.tokens) * float64(window.Duration()) / float64(b.capacity)))
			return Decision{Allowed: false, Reason: "budget", RetryAt: retryAt}
		}
	}
	for window, b := range g.buckets {
		b.tokens--
		remainingGauge.WithLabelValues(g.decl.ProviderName(), window.String()).Set(b.tokens)
	}

	return Decision{Allowed: true}
}

// RecordResponse applies cooldowns requested by the provider.
func (g *Guard) RecordResponse(status int, headers http.Header) {
	g.mu.Lock()
	defer g.mu.Unlock()

	lastStatusGauge.WithLabelValues(g.decl.ProviderName()).Set(float64(status))

	if status != http.StatusTooManyRequests && status != http.StatusServiceUnavailable {
		return
	}
	if seconds, err := strconv.Atoi(headers.Get("Retry-After")); err == nil && seconds > 0 {
		g.cooldown = g.now().Add(time.Duration(seconds) * time.Second)
	}
}

func refill(b *bucket, window time.Duration, now time.Time) {
	elapsed := now.Sub(b.last).Seconds()
	if elapsed > 0 {
		rate := float64(b.capacity) / window.Seconds()
		b.tokens = min(float64(b.capacity), b.tokens+elapsed*rate)
	}
	b.last = now
}
