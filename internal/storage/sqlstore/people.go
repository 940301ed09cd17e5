package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/m3rciful/shiftbot/internal/production"
)

type lineRepo struct{ s *Store }

func (s *Store) Lines() production.LineRepository { return lineRepo{s} }

type lineRow struct {
	ID   string `db:"id"`
	Name string `db:"name"`
}

func (r lineRepo) Find(ctx context.Context, id string) (production.ProductionLine, error) {
	var row lineRow
	if err := r.s.get(ctx, &row, "line", `SELECT id, name FROM production_lines WHERE id = ?`, id); err != nil {
		return production.ProductionLine{}, err
	}
	return production.ProductionLine(row), nil
}

func (r lineRepo) FindByName(ctx context.Context, name string) (production.ProductionLine, error) {
	var row lineRow
	if err := r.s.get(ctx, &row, "line", `SELECT id, name FROM production_lines WHERE name = ?`, name); err != nil {
		return production.ProductionLine{}, err
	}
	return production.ProductionLine(row), nil
}

func (r lineRepo) List(ctx context.Context) ([]production.ProductionLine, error) {
	var rows []lineRow
	if err := r.s.list(ctx, &rows, "lines", `SELECT id, name FROM production_lines ORDER BY name`); err != nil {
		return nil, err
	}
	out := make([]production.ProductionLine, len(rows))
	for i, row := range rows {
		out[i] = production.ProductionLine(row)
	}
	return out, nil
}

func (r lineRepo) Save(ctx context.Context, l production.ProductionLine) error {
	return r.s.upsert(ctx, "line", `
		INSERT INTO production_lines (id, name) VALUES (:id, :name)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name`, lineRow(l))
}

func (r lineRepo) Delete(ctx context.Context, id string) error {
	return r.s.delete(ctx, "line", "production_lines", id)
}

type operatorRow struct {
	ID                string  `db:"id"`
	Name              string  `db:"name"`
	Rate              float64 `db:"rate"`
	LineID            string  `db:"line_id"`
	ShiftMassProduced float64 `db:"shift_mass_produced"`
}

const operatorColumns = `id, name, rate, line_id, shift_mass_produced`

type operatorRepo struct{ s *Store }

func (s *Store) Operators() production.OperatorRepository { return operatorRepo{s} }

func (r operatorRepo) Find(ctx context.Context, id string) (production.Operator, error) {
	var row operatorRow
	if err := r.s.get(ctx, &row, "operator", `SELECT `+operatorColumns+` FROM operators WHERE id = ?`, id); err != nil {
		return production.Operator{}, err
	}
	return production.Operator(row), nil
}

func (r operatorRepo) ListByLine(ctx context.Context, lineID string) ([]production.Operator, error) {
	var rows []operatorRow
	if err := r.s.list(ctx, &rows, "operators", `SELECT `+operatorColumns+` FROM operators WHERE line_id = ? ORDER BY name`, lineID); err != nil {
		return nil, err
	}
	out := make([]production.Operator, len(rows))
	for i, row := range rows {
		out[i] = production.Operator(row)
	}
	return out, nil
}

func (r operatorRepo) Save(ctx context.Context, o production.Operator) error {
	return r.s.upsert(ctx, "operator", `
		INSERT INTO operators (`+operatorColumns+`)
		VALUES (:id, :name, :rate, :line_id, :shift_mass_produced)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			rate = excluded.rate,
			line_id = excluded.line_id,
			shift_mass_produced = excluded.shift_mass_produced`, operatorRow(o))
}

func (r operatorRepo) Delete(ctx context.Context, id string) error {
	return r.s.delete(ctx, "operator", "operators", id)
}

type accountRow struct {
	ID         string        `db:"id"`
	Phone      string        `db:"phone"`
	TelegramID sql.NullInt64 `db:"tg_id"`
	Role       string        `db:"role"`
}

func (r accountRow) toAccount() production.Account {
	return production.Account{ID: r.ID, Phone: r.Phone, TelegramID: r.TelegramID.Int64, Role: production.Role(r.Role)}
}

type accountRepo struct{ s *Store }

func (s *Store) Accounts() production.AccountRepository { return accountRepo{s} }

func (r accountRepo) Find(ctx context.Context, id string) (production.Account, error) {
	return r.findBy(ctx, "id", id)
}

func (r accountRepo) FindByPhone(ctx context.Context, phone string) (production.Account, error) {
	return r.findBy(ctx, "phone", phone)
}

func (r accountRepo) FindByTelegramID(ctx context.Context, tgID int64) (production.Account, error) {
	if tgID == 0 {
		return production.Account{}, fmt.Errorf("account: %w", production.ErrNotFound)
	}
	return r.findBy(ctx, "tg_id", tgID)
}

func (r accountRepo) findBy(ctx context.Context, column string, v any) (production.Account, error) {
	var row accountRow
	if err := r.s.get(ctx, &row, "account", `SELECT id, phone, tg_id, role FROM accounts WHERE `+column+` = ?`, v); err != nil {
		return production.Account{}, err
	}
	return row.toAccount(), nil
}

func (r accountRepo) Save(ctx context.Context, a production.Account) error {
	row := accountRow{
		ID:         a.ID,
		Phone:      a.Phone,
		TelegramID: sql.NullInt64{Int64: a.TelegramID, Valid: a.TelegramID != 0},
		Role:       string(a.Role),
	}
	return r.s.upsert(ctx, "account", `
		INSERT INTO accounts (id, phone, tg_id, role) VALUES (:id, :phone, :tg_id, :role)
		ON CONFLICT (id) DO UPDATE SET phone = excluded.phone, tg_id = excluded.tg_id, role = excluded.role`, row)
}

func (r accountRepo) Delete(ctx context.Context, id string) error {
	return r.s.delete(ctx, "account", "accounts", id)
}
