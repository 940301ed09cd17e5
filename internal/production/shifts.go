package production

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/m3rciful/shiftbot/core/logger"
)

// ShiftTracker opens and closes operator shifts and books produced quantity
// against products.
type ShiftTracker struct {
	store   Store
	now     Clock
	newID   func() string
	density float64
}

// NewShiftTracker builds a tracker. Zero values fall back to time.Now,
// uuid.NewString and DefaultDensity.
func NewShiftTracker(store Store, now Clock, newID func() string, density float64) *ShiftTracker {
	if now == nil {
		now = time.Now
	}
	if newID == nil {
		newID = uuid.NewString
	}
	if density <= 0 {
		density = DefaultDensity
	}
	return &ShiftTracker{store: store, now: now, newID: newID, density: density}
}

// Density is the mass factor applied to product dimensions.
func (t *ShiftTracker) Density() float64 { return t.density }

// StartShift opens a shift and resets the mass accumulator. An already open
// shift is left as is.
func (t *ShiftTracker) StartShift(ctx context.Context, operatorID string) (Operator, error) {
	var op Operator
	err := t.store.Tx(ctx, func(s Store) error {
		var err error
		op, err = s.Operators().Find(ctx, operatorID)
		if err != nil {
			return err
		}
		latest, err := s.Shifts().Latest(ctx, operatorID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		if latest.Open() {
			return nil
		}
		entry := ShiftEntry{ID: t.newID(), OperatorID: operatorID, Start: t.now()}
		if err := s.Shifts().Save(ctx, entry); err != nil {
			return fmt.Errorf("save shift: %w", err)
		}
		op.ShiftMassProduced = 0
		return s.Operators().Save(ctx, op)
	})
	if err != nil {
		return Operator{}, err
	}
	logger.Info(ctx, "service.shifts", "shift.started", slog.String("operator_id", operatorID))
	return op, nil
}

// FinishShift closes the open shift. Without one it does nothing.
func (t *ShiftTracker) FinishShift(ctx context.Context, operatorID string) (Operator, error) {
	op, err := t.store.Operators().Find(ctx, operatorID)
	if err != nil {
		return Operator{}, err
	}
	latest, err := t.store.Shifts().Latest(ctx, operatorID)
	if errors.Is(err, ErrNotFound) {
		return op, nil
	}
	if err != nil {
		return Operator{}, err
	}
	if !latest.Open() {
		return op, nil
	}
	end := t.now()
	latest.End = &end
	if err := t.store.Shifts().Save(ctx, latest); err != nil {
		return Operator{}, fmt.Errorf("save shift: %w", err)
	}
	logger.Info(ctx, "service.shifts", "shift.finished",
		slog.String("operator_id", operatorID),
		slog.Float64("mass", op.ShiftMassProduced),
	)
	return op, nil
}

// LogProgress appends a progress entry and adds count*unit mass to the
// operator's shift total.
func (t *ShiftTracker) LogProgress(ctx context.Context, operatorID string, product Product, count float64) (Operator, error) {
	var op Operator
	err := t.store.Tx(ctx, func(s Store) error {
		var err error
		op, err = t.logProgress(ctx, s, operatorID, product, count)
		return err
	})
	return op, err
}

func (t *ShiftTracker) logProgress(ctx context.Context, s Store, operatorID string, product Product, count float64) (Operator, error) {
	op, err := s.Operators().Find(ctx, operatorID)
	if err != nil {
		return Operator{}, err
	}
	mass := count * product.UnitMass(t.density)
	entry := ProgressEntry{
		ID:         t.newID(),
		OperatorID: operatorID,
		ProductID:  product.ID,
		Count:      count,
		Mass:       mass,
		At:         t.now(),
	}
	if err := s.Progress().Save(ctx, entry); err != nil {
		return Operator{}, fmt.Errorf("save progress: %w", err)
	}
	op.ShiftMassProduced += mass
	if err := s.Operators().Save(ctx, op); err != nil {
		return Operator{}, fmt.Errorf("save operator: %w", err)
	}
	return op, nil
}

// Record books count produced units: the product counter is decremented
// with a guard and the progress is logged, both or neither. count is kept at
// QuantityPlaces.
func (t *ShiftTracker) Record(ctx context.Context, operatorID, productID string, count float64) (Product, error) {
	count = RoundQuantity(count)
	if count <= 0 {
		return Product{}, ErrInvalidCount
	}
	var product Product
	err := t.store.Tx(ctx, func(s Store) error {
		var err error
		product, err = t.record(ctx, s, operatorID, productID, count)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrInsufficientQuantity) {
			logger.Warn(ctx, "service.shifts", "progress.rejected",
				slog.String("product_id", productID),
				slog.Float64("quantity", count),
			)
		}
		return Product{}, err
	}
	logger.Info(ctx, "service.shifts", "progress.logged",
		slog.String("operator_id", operatorID),
		slog.String("product_id", productID),
		slog.Float64("quantity", count),
		slog.Float64("remaining", product.Quantity),
	)
	return product, nil
}

func (t *ShiftTracker) record(ctx context.Context, s Store, operatorID, productID string, count float64) (Product, error) {
	product, err := s.Products().Decrement(ctx, productID, count)
	if err != nil {
		return Product{}, err
	}
	if _, err := t.logProgress(ctx, s, operatorID, product, count); err != nil {
		return Product{}, err
	}
	return product, nil
}

// CompleteProduct books whatever remains of the product. A finished product
// is returned unchanged.
func (t *ShiftTracker) CompleteProduct(ctx context.Context, operatorID, productID string) (Product, error) {
	product, err := t.store.Products().Find(ctx, productID)
	if err != nil {
		return Product{}, err
	}
	if product.Done() {
		return product, nil
	}
	return t.Record(ctx, operatorID, productID, product.Quantity)
}

// CompleteBundle books the remainder of every product in the bundle and
// flags the bundle finished, all in one transaction. It returns how many
// products were completed.
func (t *ShiftTracker) CompleteBundle(ctx context.Context, operatorID, bundleID string) (int, error) {
	completed := 0
	err := t.store.Tx(ctx, func(s Store) error {
		completed = 0
		products, err := s.Products().ListByBundle(ctx, bundleID)
		if err != nil {
			return fmt.Errorf("list products: %w", err)
		}
		for _, p := range products {
			if p.Done() {
				continue
			}
			if _, err := t.record(ctx, s, operatorID, p.ID, p.Quantity); err != nil {
				return fmt.Errorf("complete product %s: %w", p.ID, err)
			}
			completed++
		}
		return finishBundle(ctx, s, bundleID)
	})
	if err != nil {
		logger.Warn(ctx, "service.shifts", "bundle.complete_failed",
			slog.String("bundle_id", bundleID),
			slog.Any("err", err),
		)
		return 0, err
	}
	logger.Info(ctx, "service.shifts", "bundle.completed",
		slog.String("operator_id", operatorID),
		slog.String("bundle_id", bundleID),
		slog.Int("products", completed),
	)
	return completed, nil
}
