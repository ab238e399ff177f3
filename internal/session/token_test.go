package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

type memoryStore struct {
	data  map[string]State
	saves int
}

func (m *memoryStore) Load(_ context.Context, provider string) (State, error) {
	if state, ok := m.data[provider]; ok {
		return state, nil
	}
	return State{}, ErrStateNotFound
}

func (m *memoryStore) Save(_ context.Context, provider string, state State) error {
	if m.data == nil {
		m.data = make(map[string]State)
	}
	m.data[provider] = state
	m.saves++
	return nil
}

func TestTokenSourceLogsInOnceAndPersists(t *testing.T) {
	store := &memoryStore{}
	var logins int
	source := NewTokenSource("tech", store, func(context.Context) (State, error) {
		logins++
		return State{UserID: "42", Token: "secret"}, nil
	})

	for i := 0; i < 3; i++ {
		token, err := source.Token()
		if err != nil {
			t.Fatalf("Token: %v", err)
		}
		if token.AccessToken != "secret" || token.TokenType != "Bearer" {
			t.Fatalf("unexpected token: %+v", token)
		}
	}
	if logins != 1 {
		t.Fatalf("expected 1 login, got %d", logins)
	}
	if store.saves != 1 || store.data["tech"].SchemaVersion != SchemaVersion {
		t.Fatalf("expected persisted session, got %+v", store.data)
	}
}

func TestTokenSourcePrefersStoredState(t *testing.T) {
	store := &memoryStore{data: map[string]State{
		"tech": {SchemaVersion: SchemaVersion, UserID: "7", Token: "stored"},
	}}
	source := NewTokenSource("tech", store, func(context.Context) (State, error) {
		t.Fatalf("login should not be called")
		return State{}, nil
	})

	state, err := source.Session(context.Background())
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	if state.UserID != "7" || state.Token != "stored" {
		t.Fatalf("unexpected state: %+v", state)
	}
}

func TestTokenSourceInvalidateForcesLogin(t *testing.T) {
	store := &memoryStore{data: map[string]State{
		"tech": {SchemaVersion: SchemaVersion, UserID: "7", Token: "expired"},
	}}
	source := NewTokenSource("tech", store, func(context.Context) (State, error) {
		return State{UserID: "7", Token: "fresh"}, nil
	})

	if _, err := source.Session(context.Background()); err != nil {
		t.Fatalf("Session: %v", err)
	}
	source.Invalidate()

	state, err := source.Session(context.Background())
	if err != nil {
		t.Fatalf("Session after invalidate: %v", err)
	}
	if state.Token != "fresh" {
		t.Fatalf("expected fresh token, got %q", state.Token)
	}
	if store.data["tech"].Token != "fresh" {
		t.Fatalf("expected store to hold fresh token, got %q", store.data["tech"].Token)
	}
}

func TestStaticTokenSourceWithoutCredentials(t *testing.T) {
	source := Static(State{SchemaVersion: SchemaVersion, UserID: "1", Token: "t"})
	if _, err := source.Session(context.Background()); err != nil {
		t.Fatalf("Session: %v", err)
	}

	source.Invalidate()
	if _, err := source.Session(context.Background()); err == nil {
		t.Fatalf("expected error once the static session is invalidated")
	}
}

func TestFileStore(t *testing.T) {
	store := FileStore{Dir: filepath.Join(t.TempDir(), "sessions")}
	ctx := context.Background()

	if _, err := store.Load(ctx, "tech"); !errors.Is(err, ErrStateNotFound) {
		t.Fatalf("expected ErrStateNotFound, got %v", err)
	}

	if err := store.Save(ctx, "tech", State{UserID: "42", Token: "secret"}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	info, err := os.Stat(filepath.Join(store.Dir, "tech.json"))
	if err != nil {
		t.Fatalf("stat state file: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("unexpected permissions: %v", info.Mode().Perm())
	}

	state, err := store.Load(ctx, "tech")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if state.UserID != "42" || state.Token != "secret" || state.SchemaVersion != SchemaVersion {
		t.Fatalf("unexpected state: %+v", state)
	}
}

func TestDecodeStateRejectsInvalid(t *testing.T) {
	if _, err := DecodeState([]byte(`{"schema_version":2,"user_id":"1","token":"t"}`)); err == nil {
		t.Fatalf("expected schema_version error")
	}
	if _, err := DecodeState([]byte(`{"schema_version":1,"user_id":"1"}`)); err == nil {
		t.Fatalf("expected missing token error")
	}
}

func TestMirrorStore(t *testing.T) {
	primary := &memoryStore{}
	secondary := &memoryStore{data: map[string]State{
		"tech": {SchemaVersion: SchemaVersion, UserID: "9", Token: "remote"},
	}}
	mirror := MirrorStore{primary, secondary}
	ctx := context.Background()

	state, err := mirror.Load(ctx, "tech")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if state.Token != "remote" {
		t.Fatalf("expected fallback to secondary, got %q", state.Token)
	}

	if err := mirror.Save(ctx, "tech", State{SchemaVersion: SchemaVersion, UserID: "9", Token: "new"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if primary.data["tech"].Token != "new" || secondary.data["tech"].Token != "new" {
		t.Fatalf("expected both stores updated")
	}
}

func TestTokenSourceLoginMetrics(t *testing.T) {
	tokens := NewTokenSource("metrics_test", nil, func(context.Context) (State, error) {
		return State{UserID: "1", Token: "tok"}, nil
	})
	if _, err := tokens.Session(context.Background()); err != nil {
		t.Fatalf("Session: %v", err)
	}
	if got := testutil.ToFloat64(loginSuccess.WithLabelValues("metrics_test")); got != 1 {
		t.Fatalf("expected 1 login, got %v", got)
	}
	if got := testutil.ToFloat64(tokenValid.WithLabelValues("metrics_test")); got != 1 {
		t.Fatalf("expected valid token gauge, got %v", got)
	}

	tokens.Invalidate()
	if got := testutil.ToFloat64(tokenValid.WithLabelValues("metrics_test")); got != 0 {
		t.Fatalf("expected invalid token gauge, got %v", got)
	}
}
