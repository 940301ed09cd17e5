package memstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/m3rciful/shiftbot/internal/production"
)

func (s *Store) Plans() production.PlanRepository {
	return planRepo{table[production.Plan]{s, s.plans, func(p production.Plan) string { return p.ID }, "plan"}}
}

func (s *Store) Orders() production.OrderRepository {
	return orderRepo{table[production.Order]{s, s.orders, func(o production.Order) string { return o.ID }, "order"}}
}

func (s *Store) Bundles() production.BundleRepository {
	return bundleRepo{table[production.Bundle]{s, s.bundles, func(b production.Bundle) string { return b.ID }, "bundle"}}
}

func (s *Store) Products() production.ProductRepository {
	return productRepo{table[production.Product]{s, s.products, func(p production.Product) string { return p.ID }, "product"}}
}

func (s *Store) Operators() production.OperatorRepository {
	return operatorRepo{table[production.Operator]{s, s.operators, func(o production.Operator) string { return o.ID }, "operator"}}
}

func (s *Store) Shifts() production.ShiftRepository {
	return shiftRepo{table[production.ShiftEntry]{s, s.shifts, func(e production.ShiftEntry) string { return e.ID }, "shift"}}
}

func (s *Store) Progress() production.ProgressRepository {
	return progressRepo{table[production.ProgressEntry]{s, s.progress, func(e production.ProgressEntry) string { return e.ID }, "progress"}}
}

func (s *Store) Lines() production.LineRepository {
	return lineRepo{table[production.ProductionLine]{s, s.lines, func(l production.ProductionLine) string { return l.ID }, "line"}}
}

func (s *Store) Idles() production.IdleRepository {
	return idleRepo{table[production.IdleEntry]{s, s.idles, func(e production.IdleEntry) string { return e.ID }, "idle"}}
}

func (s *Store) Accounts() production.AccountRepository {
	return accountRepo{table[production.Account]{s, s.accounts, func(a production.Account) string { return a.ID }, "account"}}
}

type planRepo struct{ table[production.Plan] }

func (r planRepo) FindByDate(_ context.Context, day time.Time) (production.Plan, error) {
	key := day.Format(production.DateLayout)
	rows := r.where(func(p production.Plan) bool { return p.Date.Format(production.DateLayout) == key },
		func(a, b production.Plan) int { return strings.Compare(a.ID, b.ID) })
	if len(rows) == 0 {
		return production.Plan{}, fmt.Errorf("plan %s: %w", key, production.ErrNotFound)
	}
	return rows[0], nil
}

// DeleteAll drops plans and everything under them.
func (r planRepo) DeleteAll(context.Context) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	clear(r.s.plans)
	clear(r.s.orders)
	clear(r.s.bundles)
	clear(r.s.products)
	return nil
}

type orderRepo struct{ table[production.Order] }

func (r orderRepo) ListByPlan(_ context.Context, planID string) ([]production.Order, error) {
	return r.where(func(o production.Order) bool { return o.PlanID == planID },
		bySeq(func(o production.Order) int { return o.Seq })), nil
}

type bundleRepo struct{ table[production.Bundle] }

func (r bundleRepo) ListByOrder(_ context.Context, orderID string) ([]production.Bundle, error) {
	return r.where(func(b production.Bundle) bool { return b.OrderID == orderID },
		bySeq(func(b production.Bundle) int { return b.Seq })), nil
}

type productRepo struct{ table[production.Product] }

func (r productRepo) ListByBundle(_ context.Context, bundleID string) ([]production.Product, error) {
	return r.where(func(p production.Product) bool { return p.BundleID == bundleID },
		bySeq(func(p production.Product) int { return p.Seq })), nil
}

func (r productRepo) Decrement(_ context.Context, id string, count float64) (production.Product, error) {
	if count <= 0 {
		return production.Product{}, production.ErrInvalidCount
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.rows[id]
	if !ok {
		return production.Product{}, fmt.Errorf("product %s: %w", id, production.ErrNotFound)
	}
	left, ok := production.SubtractQuantity(p.Quantity, count)
	if !ok {
		return p, production.ErrInsufficientQuantity
	}
	p.Quantity = left
	r.rows[id] = p
	return p, nil
}

type operatorRepo struct{ table[production.Operator] }

func (r operatorRepo) ListByLine(_ context.Context, lineID string) ([]production.Operator, error) {
	return r.where(func(o production.Operator) bool { return o.LineID == lineID },
		func(a, b production.Operator) int { return strings.Compare(a.Name, b.Name) }), nil
}

type shiftRepo struct{ table[production.ShiftEntry] }

func (r shiftRepo) Latest(_ context.Context, operatorID string) (production.ShiftEntry, error) {
	return latest(r.table,
		func(e production.ShiftEntry) bool { return e.OperatorID == operatorID },
		func(e production.ShiftEntry) time.Time { return e.Start },
		production.ShiftEntry.Open)
}

func (r shiftRepo) ListByOperator(_ context.Context, operatorID string) ([]production.ShiftEntry, error) {
	return r.where(func(e production.ShiftEntry) bool { return e.OperatorID == operatorID },
		func(a, b production.ShiftEntry) int { return a.Start.Compare(b.Start) }), nil
}

type progressRepo struct{ table[production.ProgressEntry] }

func (r progressRepo) ListByOperator(_ context.Context, operatorID string) ([]production.ProgressEntry, error) {
	return r.where(func(e production.ProgressEntry) bool { return e.OperatorID == operatorID },
		func(a, b production.ProgressEntry) int { return a.At.Compare(b.At) }), nil
}

type lineRepo struct{ table[production.ProductionLine] }

func (r lineRepo) List(context.Context) ([]production.ProductionLine, error) {
	return r.where(func(production.ProductionLine) bool { return true },
		func(a, b production.ProductionLine) int { return strings.Compare(a.Name, b.Name) }), nil
}

func (r lineRepo) FindByName(_ context.Context, name string) (production.ProductionLine, error) {
	rows := r.where(func(l production.ProductionLine) bool { return l.Name == name },
		func(a, b production.ProductionLine) int { return strings.Compare(a.ID, b.ID) })
	if len(rows) == 0 {
		return production.ProductionLine{}, fmt.Errorf("line %q: %w", name, production.ErrNotFound)
	}
	return rows[0], nil
}

type idleRepo struct{ table[production.IdleEntry] }

func (r idleRepo) Latest(_ context.Context, lineID string) (production.IdleEntry, error) {
	return latest(r.table,
		func(e production.IdleEntry) bool { return e.LineID == lineID },
		func(e production.IdleEntry) time.Time { return e.Start },
		production.IdleEntry.Open)
}

func (r idleRepo) ListByLine(_ context.Context, lineID string) ([]production.IdleEntry, error) {
	return r.where(func(e production.IdleEntry) bool { return e.LineID == lineID },
		func(a, b production.IdleEntry) int { return a.Start.Compare(b.Start) }), nil
}

func (r idleRepo) DeleteAll(context.Context) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	clear(r.rows)
	return nil
}

type accountRepo struct{ table[production.Account] }

func (r accountRepo) FindByPhone(_ context.Context, phone string) (production.Account, error) {
	rows := r.where(func(a production.Account) bool { return a.Phone == phone },
		func(a, b production.Account) int { return strings.Compare(a.ID, b.ID) })
	if len(rows) == 0 {
		return production.Account{}, fmt.Errorf("account: %w", production.ErrNotFound)
	}
	return rows[0], nil
}

func (r accountRepo) FindByTelegramID(_ context.Context, tgID int64) (production.Account, error) {
	rows := r.where(func(a production.Account) bool { return tgID != 0 && a.TelegramID == tgID },
		func(a, b production.Account) int { return strings.Compare(a.ID, b.ID) })
	if len(rows) == 0 {
		return production.Account{}, fmt.Errorf("account: %w", production.ErrNotFound)
	}
	return rows[0], nil
}
