package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/m3rciful/shiftbot/internal/production"
)

type shiftRow struct {
	ID         string        `db:"id"`
	OperatorID string        `db:"operator_id"`
	StartedAt  int64         `db:"started_at"`
	EndedAt    sql.NullInt64 `db:"ended_at"`
}

func (r shiftRow) toEntry() production.ShiftEntry {
	return production.ShiftEntry{
		ID:         r.ID,
		OperatorID: r.OperatorID,
		Start:      fromMillis(r.StartedAt),
		End:        fromNullMillis(r.EndedAt),
	}
}

type shiftRepo struct{ s *Store }

func (s *Store) Shifts() production.ShiftRepository { return shiftRepo{s} }

const shiftSelect = `SELECT id, operator_id, started_at, ended_at FROM shift_entries`

func (r shiftRepo) Find(ctx context.Context, id string) (production.ShiftEntry, error) {
	var row shiftRow
	if err := r.s.get(ctx, &row, "shift", shiftSelect+` WHERE id = ?`, id); err != nil {
		return production.ShiftEntry{}, err
	}
	return row.toEntry(), nil
}

// Latest prefers the open entry when start times tie.
func (r shiftRepo) Latest(ctx context.Context, operatorID string) (production.ShiftEntry, error) {
	var row shiftRow
	q := shiftSelect + ` WHERE operator_id = ?
		ORDER BY started_at DESC, CASE WHEN ended_at IS NULL THEN 0 ELSE 1 END LIMIT 1`
	if err := r.s.get(ctx, &row, "shift", q, operatorID); err != nil {
		return production.ShiftEntry{}, err
	}
	return row.toEntry(), nil
}

func (r shiftRepo) ListByOperator(ctx context.Context, operatorID string) ([]production.ShiftEntry, error) {
	var rows []shiftRow
	if err := r.s.list(ctx, &rows, "shifts", shiftSelect+` WHERE operator_id = ? ORDER BY started_at`, operatorID); err != nil {
		return nil, err
	}
	out := make([]production.ShiftEntry, len(rows))
	for i, row := range rows {
		out[i] = row.toEntry()
	}
	return out, nil
}

func (r shiftRepo) Save(ctx context.Context, e production.ShiftEntry) error {
	row := shiftRow{ID: e.ID, OperatorID: e.OperatorID, StartedAt: toMillis(e.Start), EndedAt: toNullMillis(e.End)}
	return r.s.upsert(ctx, "shift", `
		INSERT INTO shift_entries (id, operator_id, started_at, ended_at)
		VALUES (:id, :operator_id, :started_at, :ended_at)
		ON CONFLICT (id) DO UPDATE SET started_at = excluded.started_at, ended_at = excluded.ended_at`, row)
}

func (r shiftRepo) Delete(ctx context.Context, id string) error {
	return r.s.delete(ctx, "shift", "shift_entries", id)
}

type progressRow struct {
	ID         string  `db:"id"`
	OperatorID string  `db:"operator_id"`
	ProductID  string  `db:"product_id"`
	Amount     float64 `db:"amount"`
	Mass       float64 `db:"mass"`
	LoggedAt   int64   `db:"logged_at"`
}

func (r progressRow) toEntry() production.ProgressEntry {
	return production.ProgressEntry{
		ID:         r.ID,
		OperatorID: r.OperatorID,
		ProductID:  r.ProductID,
		Count:      r.Amount,
		Mass:       r.Mass,
		At:         fromMillis(r.LoggedAt),
	}
}

type progressRepo struct{ s *Store }

func (s *Store) Progress() production.ProgressRepository { return progressRepo{s} }

const progressSelect = `SELECT id, operator_id, product_id, amount, mass, logged_at FROM progress_entries`

func (r progressRepo) Find(ctx context.Context, id string) (production.ProgressEntry, error) {
	var row progressRow
	if err := r.s.get(ctx, &row, "progress", progressSelect+` WHERE id = ?`, id); err != nil {
		return production.ProgressEntry{}, err
	}
	return row.toEntry(), nil
}

func (r progressRepo) ListByOperator(ctx context.Context, operatorID string) ([]production.ProgressEntry, error) {
	var rows []progressRow
	if err := r.s.list(ctx, &rows, "progress", progressSelect+` WHERE operator_id = ? ORDER BY logged_at`, operatorID); err != nil {
		return nil, err
	}
	out := make([]production.ProgressEntry, len(rows))
	for i, row := range rows {
		out[i] = row.toEntry()
	}
	return out, nil
}

// Save appends; progress entries are never rewritten.
func (r progressRepo) Save(ctx context.Context, e production.ProgressEntry) error {
	row := progressRow{
		ID:         e.ID,
		OperatorID: e.OperatorID,
		ProductID:  e.ProductID,
		Amount:     e.Count,
		Mass:       e.Mass,
		LoggedAt:   toMillis(e.At),
	}
	return r.s.upsert(ctx, "progress", `
		INSERT INTO progress_entries (id, operator_id, product_id, amount, mass, logged_at)
		VALUES (:id, :operator_id, :product_id, :amount, :mass, :logged_at)
		ON CONFLICT (id) DO NOTHING`, row)
}

func (r progressRepo) Delete(ctx context.Context, id string) error {
	return r.s.delete(ctx, "progress", "progress_entries", id)
}

type idleRow struct {
	ID          string        `db:"id"`
	LineID      string        `db:"line_id"`
	OperatorID  string        `db:"operator_id"`
	StartedAt   int64         `db:"started_at"`
	EndedAt     sql.NullInt64 `db:"ended_at"`
	IdleType    string        `db:"idle_type"`
	Reason      string        `db:"reason"`
	DurationSec sql.NullInt64 `db:"duration_sec"`
}

func (r idleRow) toEntry() production.IdleEntry {
	e := production.IdleEntry{
		ID:         r.ID,
		LineID:     r.LineID,
		OperatorID: r.OperatorID,
		Start:      fromMillis(r.StartedAt),
		End:        fromNullMillis(r.EndedAt),
		Type:       production.IdleType(r.IdleType),
		Reason:     production.IdleReason(r.Reason),
	}
	if r.DurationSec.Valid {
		d := r.DurationSec.Int64
		e.DurationSec = &d
	}
	return e
}

type idleRepo struct{ s *Store }

func (s *Store) Idles() production.IdleRepository { return idleRepo{s} }

const idleSelect = `SELECT id, line_id, operator_id, started_at, ended_at, idle_type, reason, duration_sec FROM idle_entries`

func (r idleRepo) Find(ctx context.Context, id string) (production.IdleEntry, error) {
	var row idleRow
	if err := r.s.get(ctx, &row, "idle", idleSelect+` WHERE id = ?`, id); err != nil {
		return production.IdleEntry{}, err
	}
	return row.toEntry(), nil
}

func (r idleRepo) Latest(ctx context.Context, lineID string) (production.IdleEntry, error) {
	var row idleRow
	q := idleSelect + ` WHERE line_id = ?
		ORDER BY started_at DESC, CASE WHEN ended_at IS NULL THEN 0 ELSE 1 END LIMIT 1`
	if err := r.s.get(ctx, &row, "idle", q, lineID); err != nil {
		return production.IdleEntry{}, err
	}
	return row.toEntry(), nil
}

func (r idleRepo) ListByLine(ctx context.Context, lineID string) ([]production.IdleEntry, error) {
	var rows []idleRow
	if err := r.s.list(ctx, &rows, "idles", idleSelect+` WHERE line_id = ? ORDER BY started_at`, lineID); err != nil {
		return nil, err
	}
	out := make([]production.IdleEntry, len(rows))
	for i, row := range rows {
		out[i] = row.toEntry()
	}
	return out, nil
}

func (r idleRepo) Save(ctx context.Context, e production.IdleEntry) error {
	row := idleRow{
		ID:         e.ID,
		LineID:     e.LineID,
		OperatorID: e.OperatorID,
		StartedAt:  toMillis(e.Start),
		EndedAt:    toNullMillis(e.End),
		IdleType:   string(e.Type),
		Reason:     string(e.Reason),
	}
	if e.DurationSec != nil {
		row.DurationSec = sql.NullInt64{Int64: *e.DurationSec, Valid: true}
	}
	return r.s.upsert(ctx, "idle", `
		INSERT INTO idle_entries (id, line_id, operator_id, started_at, ended_at, idle_type, reason, duration_sec)
		VALUES (:id, :line_id, :operator_id, :started_at, :ended_at, :idle_type, :reason, :duration_sec)
		ON CONFLICT (id) DO UPDATE SET ended_at = excluded.ended_at, duration_sec = excluded.duration_sec`, row)
}

func (r idleRepo) Delete(ctx context.Context, id string) error {
	return r.s.delete(ctx, "idle", "idle_entries", id)
}

func (r idleRepo) DeleteAll(ctx context.Context) error {
	if _, err := r.s.ext.ExecContext(ctx, `DELETE FROM idle_entries`); err != nil {
		return fmt.Errorf("delete idles: %w", err)
	}
	return nil
}
