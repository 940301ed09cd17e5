package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

type sqlManager struct {
	db  *sqlx.DB
	now func() time.Time
}

type sessionRow struct {
	ChatID    int64  `db:"chat_id"`
	State     string `db:"state"`
	Data      string `db:"data"`
	UpdatedAt int64  `db:"updated_at"`
}

// NewSQLManager persists sessions in the chat_sessions table so dialogs
// survive restarts.
func NewSQLManager(db *sqlx.DB) Manager {
	return &sqlManager{db: db, now: time.Now}
}

func (m *sqlManager) Load(ctx context.Context, chatID int64) (Session, error) {
	var row sessionRow
	q := m.db.Rebind(`SELECT chat_id, state, data, updated_at FROM chat_sessions WHERE chat_id = ?`)
	if err := m.db.GetContext(ctx, &row, q, chatID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{Data: make(map[string]string)}, nil
		}
		return Session{}, fmt.Errorf("load session: %w", err)
	}
	s := Session{State: State(row.State), Data: make(map[string]string)}
	if row.Data != "" {
		if err := json.Unmarshal([]byte(row.Data), &s.Data); err != nil {
			return Session{}, fmt.Errorf("decode session: %w", err)
		}
	}
	return s, nil
}

func (m *sqlManager) Save(ctx context.Context, chatID int64, s Session) error {
	data, err := json.Marshal(s.Clone().Data)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	row := sessionRow{ChatID: chatID, State: string(s.State), Data: string(data), UpdatedAt: m.now().UnixMilli()}
	_, err = m.db.NamedExecContext(ctx, `
		INSERT INTO chat_sessions (chat_id, state, data, updated_at)
		VALUES (:chat_id, :state, :data, :updated_at)
		ON CONFLICT (chat_id) DO UPDATE SET state = excluded.state, data = excluded.data, updated_at = excluded.updated_at`, row)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (m *sqlManager) Clear(ctx context.Context, chatID int64) error {
	if _, err := m.db.ExecContext(ctx, m.db.Rebind(`DELETE FROM chat_sessions WHERE chat_id = ?`), chatID); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
