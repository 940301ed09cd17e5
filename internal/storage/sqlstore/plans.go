package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/m3rciful/shiftbot/internal/production"
)

type planRow struct {
	ID        string  `db:"id"`
	Date      string  `db:"plan_date"`
	TotalMass float64 `db:"total_mass"`
}

func (r planRow) toPlan() production.Plan {
	day, _ := time.Parse(production.DateLayout, r.Date)
	return production.Plan{ID: r.ID, Date: day, TotalMass: r.TotalMass}
}

type planRepo struct{ s *Store }

func (s *Store) Plans() production.PlanRepository { return planRepo{s} }

func (r planRepo) Find(ctx context.Context, id string) (production.Plan, error) {
	var row planRow
	if err := r.s.get(ctx, &row, "plan", `SELECT id, plan_date, total_mass FROM plans WHERE id = ?`, id); err != nil {
		return production.Plan{}, err
	}
	return row.toPlan(), nil
}

func (r planRepo) FindByDate(ctx context.Context, day time.Time) (production.Plan, error) {
	var row planRow
	key := day.Format(production.DateLayout)
	if err := r.s.get(ctx, &row, "plan "+key, `SELECT id, plan_date, total_mass FROM plans WHERE plan_date = ?`, key); err != nil {
		return production.Plan{}, err
	}
	return row.toPlan(), nil
}

func (r planRepo) Save(ctx context.Context, p production.Plan) error {
	row := planRow{ID: p.ID, Date: p.Date.Format(production.DateLayout), TotalMass: p.TotalMass}
	return r.s.upsert(ctx, "plan", `
		INSERT INTO plans (id, plan_date, total_mass)
		VALUES (:id, :plan_date, :total_mass)
		ON CONFLICT (id) DO UPDATE SET plan_date = excluded.plan_date, total_mass = excluded.total_mass`, row)
}

func (r planRepo) Delete(ctx context.Context, id string) error {
	return r.s.delete(ctx, "plan", "plans", id)
}

// DeleteAll relies on ON DELETE CASCADE down to products.
func (r planRepo) DeleteAll(ctx context.Context) error {
	if _, err := r.s.ext.ExecContext(ctx, `DELETE FROM plans`); err != nil {
		return fmt.Errorf("delete plans: %w", err)
	}
	return nil
}

type orderRow struct {
	ID            string  `db:"id"`
	PlanID        string  `db:"plan_id"`
	Seq           int     `db:"seq"`
	NativeID      string  `db:"native_id"`
	Name          string  `db:"name"`
	LineRef       string  `db:"line_ref"`
	TotalMass     float64 `db:"total_mass"`
	TotalLength   float64 `db:"total_length"`
	ExecutionTime int     `db:"execution_time"`
	Instructions  string  `db:"instructions"`
	Finished      bool    `db:"finished"`
}

const orderColumns = `id, plan_id, seq, native_id, name, line_ref, total_mass, total_length, execution_time, instructions, finished`

type orderRepo struct{ s *Store }

func (s *Store) Orders() production.OrderRepository { return orderRepo{s} }

func (r orderRepo) Find(ctx context.Context, id string) (production.Order, error) {
	var row orderRow
	if err := r.s.get(ctx, &row, "order", `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id); err != nil {
		return production.Order{}, err
	}
	return production.Order(row), nil
}

func (r orderRepo) ListByPlan(ctx context.Context, planID string) ([]production.Order, error) {
	var rows []orderRow
	if err := r.s.list(ctx, &rows, "orders", `SELECT `+orderColumns+` FROM orders WHERE plan_id = ? ORDER BY seq`, planID); err != nil {
		return nil, err
	}
	out := make([]production.Order, len(rows))
	for i, row := range rows {
		out[i] = production.Order(row)
	}
	return out, nil
}

func (r orderRepo) Save(ctx context.Context, o production.Order) error {
	return r.s.upsert(ctx, "order", `
		INSERT INTO orders (`+orderColumns+`)
		VALUES (:id, :plan_id, :seq, :native_id, :name, :line_ref, :total_mass, :total_length, :execution_time, :instructions, :finished)
		ON CONFLICT (id) DO UPDATE SET
			seq = excluded.seq,
			native_id = excluded.native_id,
			name = excluded.name,
			line_ref = excluded.line_ref,
			total_mass = excluded.total_mass,
			total_length = excluded.total_length,
			execution_time = excluded.execution_time,
			instructions = excluded.instructions,
			finished = excluded.finished`, orderRow(o))
}

func (r orderRepo) Delete(ctx context.Context, id string) error {
	return r.s.delete(ctx, "order", "orders", id)
}

type bundleRow struct {
	ID            string  `db:"id"`
	OrderID       string  `db:"order_id"`
	Seq           int     `db:"seq"`
	NativeID      string  `db:"native_id"`
	TotalMass     float64 `db:"total_mass"`
	TotalLength   float64 `db:"total_length"`
	ExecutionTime int     `db:"execution_time"`
	Instructions  string  `db:"instructions"`
	Finished      bool    `db:"finished"`
}

const bundleColumns = `id, order_id, seq, native_id, total_mass, total_length, execution_time, instructions, finished`

type bundleRepo struct{ s *Store }

func (s *Store) Bundles() production.BundleRepository { return bundleRepo{s} }

func (r bundleRepo) Find(ctx context.Context, id string) (production.Bundle, error) {
	var row bundleRow
	if err := r.s.get(ctx, &row, "bundle", `SELECT `+bundleColumns+` FROM bundles WHERE id = ?`, id); err != nil {
		return production.Bundle{}, err
	}
	return production.Bundle(row), nil
}

func (r bundleRepo) ListByOrder(ctx context.Context, orderID string) ([]production.Bundle, error) {
	var rows []bundleRow
	if err := r.s.list(ctx, &rows, "bundles", `SELECT `+bundleColumns+` FROM bundles WHERE order_id = ? ORDER BY seq`, orderID); err != nil {
		return nil, err
	}
	out := make([]production.Bundle, len(rows))
	for i, row := range rows {
		out[i] = production.Bundle(row)
	}
	return out, nil
}

func (r bundleRepo) Save(ctx context.Context, b production.Bundle) error {
	return r.s.upsert(ctx, "bundle", `
		INSERT INTO bundles (`+bundleColumns+`)
		VALUES (:id, :order_id, :seq, :native_id, :total_mass, :total_length, :execution_time, :instructions, :finished)
		ON CONFLICT (id) DO UPDATE SET
			seq = excluded.seq,
			native_id = excluded.native_id,
			total_mass = excluded.total_mass,
			total_length = excluded.total_length,
			execution_time = excluded.execution_time,
			instructions = excluded.instructions,
			finished = excluded.finished`, bundleRow(b))
}

func (r bundleRepo) Delete(ctx context.Context, id string) error {
	return r.s.delete(ctx, "bundle", "bundles", id)
}

type productRow struct {
	ID             string  `db:"id"`
	BundleID       string  `db:"bundle_id"`
	Seq            int     `db:"seq"`
	NativeID       string  `db:"native_id"`
	Profile        string  `db:"profile"`
	Width          float64 `db:"width"`
	Thickness      float64 `db:"thickness"`
	Length         float64 `db:"length"`
	Color          string  `db:"color"`
	RollNumber     int     `db:"roll_number"`
	Instructions   string  `db:"instructions"`
	QuantityStatic float64 `db:"quantity_static"`
	Quantity       float64 `db:"quantity"`
}

const productColumns = `id, bundle_id, seq, native_id, profile, width, thickness, length, color, roll_number, instructions, quantity_static, quantity`

type productRepo struct{ s *Store }

func (s *Store) Products() production.ProductRepository { return productRepo{s} }

func (r productRepo) Find(ctx context.Context, id string) (production.Product, error) {
	var row productRow
	if err := r.s.get(ctx, &row, "product", `SELECT `+productColumns+` FROM products WHERE id = ?`, id); err != nil {
		return production.Product{}, err
	}
	return production.Product(row), nil
}

func (r productRepo) ListByBundle(ctx context.Context, bundleID string) ([]production.Product, error) {
	var rows []productRow
	if err := r.s.list(ctx, &rows, "products", `SELECT `+productColumns+` FROM products WHERE bundle_id = ? ORDER BY seq`, bundleID); err != nil {
		return nil, err
	}
	out := make([]production.Product, len(rows))
	for i, row := range rows {
		out[i] = production.Product(row)
	}
	return out, nil
}

func (r productRepo) Save(ctx context.Context, p production.Product) error {
	return r.s.upsert(ctx, "product", `
		INSERT INTO products (`+productColumns+`)
		VALUES (:id, :bundle_id, :seq, :native_id, :profile, :width, :thickness, :length, :color, :roll_number, :instructions, :quantity_static, :quantity)
		ON CONFLICT (id) DO UPDATE SET
			seq = excluded.seq,
			native_id = excluded.native_id,
			profile = excluded.profile,
			width = excluded.width,
			thickness = excluded.thickness,
			length = excluded.length,
			color = excluded.color,
			roll_number = excluded.roll_number,
			instructions = excluded.instructions,
			quantity_static = excluded.quantity_static,
			quantity = excluded.quantity`, productRow(p))
}

func (r productRepo) Delete(ctx context.Context, id string) error {
	return r.s.delete(ctx, "product", "products", id)
}

// decrementAttempts bounds the compare-and-swap loop in Decrement.
const decrementAttempts = 3

// Decrement subtracts in decimal and writes the result with a compare-and-swap
// on the previous value, so two concurrent bookings can never drive the
// counter below zero and repeated fractional counts leave no float residue.
func (r productRepo) Decrement(ctx context.Context, id string, count float64) (production.Product, error) {
	if count <= 0 {
		return production.Product{}, production.ErrInvalidCount
	}
	for range decrementAttempts {
		p, err := r.Find(ctx, id)
		if err != nil {
			return production.Product{}, err
		}
		left, ok := production.SubtractQuantity(p.Quantity, count)
		if !ok {
			return p, production.ErrInsufficientQuantity
		}
		res, err := r.s.ext.ExecContext(ctx,
			r.s.rebind(`UPDATE products SET quantity = ? WHERE id = ? AND quantity = ?`),
			left, id, p.Quantity)
		if err != nil {
			return production.Product{}, fmt.Errorf("decrement product: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return production.Product{}, fmt.Errorf("decrement product: %w", err)
		}
		if n == 1 {
			p.Quantity = left
			return p, nil
		}
	}
	return production.Product{}, fmt.Errorf("decrement product %s: concurrent update", id)
}
