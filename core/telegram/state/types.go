package state

import (
	"context"
	"maps"
)

// State identifies a finite-state-machine step used in conversations.
type State string

const (
	// StateNone indicates there is no active conversation with the user.
	StateNone State = ""
)

// Session stores conversation state and scratch data for a chat.
type Session struct {
	State State
	Data  map[string]string
}

// Get returns a scratch value or "".
func (s Session) Get(key string) string {
	return s.Data[key]
}

// Set stores a scratch value, allocating the map on first use.
func (s *Session) Set(key, value string) {
	if s.Data == nil {
		s.Data = make(map[string]string)
	}
	s.Data[key] = value
}

// Del removes scratch values.
func (s *Session) Del(keys ...string) {
	for _, k := range keys {
		delete(s.Data, k)
	}
}

// Clone returns a deep copy so callers can mutate without aliasing.
func (s Session) Clone() Session {
	out := Session{State: s.State, Data: maps.Clone(s.Data)}
	if out.Data == nil {
		out.Data = make(map[string]string)
	}
	return out
}

// InProgress reports whether the session is inside a dialog.
func (s Session) InProgress() bool {
	return s.State != StateNone
}

// Manager loads and persists sessions keyed by chat id.
type Manager interface {
	Load(ctx context.Context, chatID int64) (Session, error)
	Save(ctx context.Context, chatID int64, s Session) error
	Clear(ctx context.Context, chatID int64) error
}
