package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const SchemaVersion = 1

var ErrStateNotFound = errors.New("session state not found")

// State is the persisted vendor session.
type State struct {
	SchemaVersion int    `json:"schema_version"`
	UserID        string `json:"user_id"`
	Token         string `json:"token"`
}

func DecodeState(data []byte) (State, error) {
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return State{}, fmt.Errorf("decode state: %w", err)
	}
	if err := state.Validate(); err != nil {
		return State{}, err
	}
	return state, nil
}

func EncodeState(state State) ([]byte, error) {
	if state.SchemaVersion == 0 {
		state.SchemaVersion = SchemaVersion
	}
	if err := state.Validate(); err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal state: %w", err)
	}
	return data, nil
}

func (s State) Validate() error {
	if s.SchemaVersion != SchemaVersion {
		return fmt.Errorf("unsupported schema_version: %d", s.SchemaVersion)
	}
	if s.UserID == "" {
		return fmt.Errorf("state missing user_id")
	}
	if s.Token == "" {
		return fmt.Errorf("state missing token")
	}
	return nil
}

// FileStore keeps one state file per provider under a directory.
type FileStore struct {
	Dir string
}

func (f FileStore) Load(_ context.Context, provider string) (State, error) {
	data, err := os.ReadFile(f.path(provider))
	if err != nil {
		if os.IsNotExist(err) {
			return State{}, ErrStateNotFound
		}
		return State{}, fmt.Errorf("read state: %w", err)
	}
	return DecodeState(data)
}

func (f FileStore) Save(_ context.Context, provider string, state State) error {
	data, err := EncodeState(state)
	if err != nil {
		return err
	}
	path := f.path(provider)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir state dir: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

func (f FileStore) path(provider string) string {
	return filepath.Join(f.Dir, provider+".json")
}
