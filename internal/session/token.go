package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

const loginTimeout = 15 * time.Second

// LoginFunc authenticates with the vendor and returns a fresh session.
type LoginFunc func(ctx context.Context) (State, error)

// TokenSource hands out the vendor bearer token, loading it from the store
// or logging in when none is available.
type TokenSource struct {
	provider string
	store    Store
	login    LoginFunc

	mu      sync.Mutex
	current *State
	stale   bool
}

func NewTokenSource(provider string, store Store, login LoginFunc) *TokenSource {
	return &TokenSource{provider: provider, store: store, login: login}
}

// Static returns a token source for a session that is already known.
func Static(state State) *TokenSource {
	return &TokenSource{current: &state}
}

// Session returns the active session.
func (t *TokenSource) Session(ctx context.Context) (State, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current != nil {
		return *t.current, nil
	}

	if !t.stale && t.store != nil {
		state, err := t.store.Load(ctx, t.provider)
		switch {
		case err == nil:
			t.current = &state
			tokenValid.WithLabelValues(t.provider).Set(1)
			return state, nil
		case !errors.Is(err, ErrStateNotFound):
			return State{}, fmt.Errorf("load session: %w", err)
		}
	}

	if t.login == nil {
		return State{}, fmt.Errorf("%s session unavailable and no credentials configured", t.provider)
	}

	state, err := t.login(ctx)
	if err == nil {
		state.SchemaVersion = SchemaVersion
		err = state.Validate()
	}
	if err != nil {
		loginFailure.WithLabelValues(t.provider).Inc()
		tokenValid.WithLabelValues(t.provider).Set(0)
		return State{}, fmt.Errorf("%s login: %w", t.provider, err)
	}
	loginSuccess.WithLabelValues(t.provider).Inc()
	if t.store != nil {
		if err := t.store.Save(ctx, t.provider, state); err != nil {
			return State{}, fmt.Errorf("save session: %w", err)
		}
	}

	t.current = &state
	t.stale = false
	tokenValid.WithLabelValues(t.provider).Set(1)
	return state, nil
}

// Token implements oauth2.TokenSource.
func (t *TokenSource) Token() (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(context.Background(), loginTimeout)
	defer cancel()

	state, err := t.Session(ctx)
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{AccessToken: state.Token, TokenType: "Bearer"}, nil
}

// Invalidate drops the cached session so the next call logs in again.
func (t *TokenSource) Invalidate() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = nil
	t.stale = true
	tokenValid.WithLabelValues(t.provider).Set(0)
}
