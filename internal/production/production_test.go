package production_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/shiftbot/internal/production"
	"github.com/m3rciful/shiftbot/internal/storage/memstore"
)

type fixture struct {
	store    *memstore.Store
	now      time.Time
	plans    *production.PlanService
	registry *production.Registry
	shifts   *production.ShiftTracker
	idles    *production.IdleTracker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{store: memstore.New(), now: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)}
	clock := func() time.Time { return f.now }
	seq := 0
	ids := func() string { seq++; return fmt.Sprintf("id-%d", seq) }
	f.plans = production.NewPlanService(f.store, clock, time.UTC)
	f.registry = production.NewRegistry(f.store, ids)
	f.shifts = production.NewShiftTracker(f.store, clock, ids, 0)
	f.idles = production.NewIdleTracker(f.store, clock, ids, time.UTC)
	return f
}

func (f *fixture) advance(d time.Duration) { f.now = f.now.Add(d) }

// seed stores line l1, operator op and one plan with one order, one bundle
// and the given products.
func (f *fixture) seed(t *testing.T, products ...production.Product) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.store.Lines().Save(ctx, production.ProductionLine{ID: "l1", Name: "Line 1"}))
	require.NoError(t, f.store.Operators().Save(ctx, production.Operator{ID: "op", Name: "Ann", Rate: 1000, LineID: "l1"}))
	require.NoError(t, f.store.Plans().Save(ctx, production.Plan{ID: "plan", Date: f.now, TotalMass: 0.0314}))
	require.NoError(t, f.store.Orders().Save(ctx, production.Order{ID: "o1", PlanID: "plan", NativeID: "O-1"}))
	require.NoError(t, f.store.Bundles().Save(ctx, production.Bundle{ID: "b1", OrderID: "o1", NativeID: "B-1"}))
	for i, p := range products {
		p.BundleID = "b1"
		p.Seq = i
		require.NoError(t, f.store.Products().Save(ctx, p))
	}
}

func sheet(id string, qty float64) production.Product {
	return production.Product{ID: id, NativeID: id, Width: 1, Thickness: 1, Length: 1, QuantityStatic: qty, Quantity: qty}
}

func TestProductMass(t *testing.T) {
	p := sheet("p", 50)
	assert.InDelta(t, 0.00785, p.TotalMass(production.DefaultDensity), 1e-12)
	assert.InDelta(t, 0.000157, p.UnitMass(production.DefaultDensity), 1e-12)
	assert.Zero(t, production.Product{Width: 1, Thickness: 1, Length: 1}.UnitMass(production.DefaultDensity))
}

func TestRecordDecrementsAndAccumulatesMass(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, sheet("p1", 50))
	_, err := f.shifts.StartShift(ctx, "op")
	require.NoError(t, err)

	p, err := f.shifts.Record(ctx, "op", "p1", 10)
	require.NoError(t, err)
	assert.Equal(t, 40.0, p.Quantity)
	op, err := f.registry.FindOperator(ctx, "op")
	require.NoError(t, err)
	assert.InDelta(t, 0.00157, op.ShiftMassProduced, 1e-12)

	p, err = f.shifts.Record(ctx, "op", "p1", 10)
	require.NoError(t, err)
	assert.Equal(t, 30.0, p.Quantity)
	op, err = f.registry.FindOperator(ctx, "op")
	require.NoError(t, err)
	assert.InDelta(t, 0.00314, op.ShiftMassProduced, 1e-12)

	entries, err := f.store.Progress().ListByOperator(ctx, "op")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "p1", entries[0].ProductID)
	assert.InDelta(t, 0.00157, entries[0].Mass, 1e-12)
}

func TestRecordRejectsOverdraw(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, sheet("p1", 10))

	_, err := f.shifts.Record(ctx, "op", "p1", 15)
	require.ErrorIs(t, err, production.ErrInsufficientQuantity)

	p, err := f.plans.Product(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 10.0, p.Quantity)
	entries, err := f.store.Progress().ListByOperator(ctx, "op")
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = f.shifts.Record(ctx, "op", "p1", 0)
	assert.ErrorIs(t, err, production.ErrInvalidCount)
	_, err = f.shifts.Record(ctx, "op", "p1", -2)
	assert.ErrorIs(t, err, production.ErrInvalidCount)
}

func TestRecordUnknownOperatorRollsBackDecrement(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, sheet("p1", 10))

	_, err := f.shifts.Record(ctx, "ghost", "p1", 5)
	require.ErrorIs(t, err, production.ErrNotFound)

	p, err := f.plans.Product(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 10.0, p.Quantity)
}

func TestShiftStartFinishAreIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, sheet("p1", 50))

	op, err := f.shifts.FinishShift(ctx, "op")
	require.NoError(t, err)
	assert.Equal(t, "op", op.ID)
	entries, err := f.store.Shifts().ListByOperator(ctx, "op")
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = f.shifts.StartShift(ctx, "op")
	require.NoError(t, err)
	_, err = f.shifts.Record(ctx, "op", "p1", 10)
	require.NoError(t, err)

	f.advance(time.Minute)
	op, err = f.shifts.StartShift(ctx, "op")
	require.NoError(t, err)
	assert.InDelta(t, 0.00157, op.ShiftMassProduced, 1e-12, "second start keeps the open shift and its mass")
	entries, err = f.store.Shifts().ListByOperator(ctx, "op")
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	f.advance(time.Hour)
	_, err = f.shifts.FinishShift(ctx, "op")
	require.NoError(t, err)
	f.advance(time.Minute)
	_, err = f.shifts.FinishShift(ctx, "op")
	require.NoError(t, err)

	entries, err = f.store.Shifts().ListByOperator(ctx, "op")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.NotNil(t, entries[0].End)
	assert.Equal(t, f.now.Add(-time.Minute), *entries[0].End)

	f.advance(time.Hour)
	op, err = f.shifts.StartShift(ctx, "op")
	require.NoError(t, err)
	assert.Zero(t, op.ShiftMassProduced)
}

func TestCompleteBundleFinishesEverything(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, sheet("p1", 50), sheet("p2", 5))
	_, err := f.shifts.Record(ctx, "op", "p1", 50)
	require.NoError(t, err)

	n, err := f.shifts.CompleteBundle(ctx, "op", "b1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	active, err := f.plans.ActiveProducts(ctx, "b1")
	require.NoError(t, err)
	assert.Empty(t, active)
	bundles, err := f.plans.ActiveBundles(ctx, "o1")
	require.NoError(t, err)
	assert.Empty(t, bundles)
	orders, err := f.plans.ActiveOrders(ctx, "plan")
	require.NoError(t, err)
	assert.Len(t, orders, 1, "bundle completion does not cascade upward")
}

func TestFractionalCountsDrainToZero(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, sheet("p1", 1))

	for i := range 10 {
		p, err := f.shifts.Record(ctx, "op", "p1", 0.1)
		require.NoError(t, err, "entry %d", i)
		assert.GreaterOrEqual(t, p.Quantity, 0.0)
		assert.LessOrEqual(t, p.Quantity, p.QuantityStatic)
		assert.Equal(t, i == 9, p.Done(), "entry %d left %v", i, p.Quantity)
	}
	p, err := f.plans.Product(ctx, "p1")
	require.NoError(t, err)
	assert.Zero(t, p.Quantity)

	_, err = f.shifts.Record(ctx, "op", "p1", 0.001)
	require.ErrorIs(t, err, production.ErrInsufficientQuantity)
	entries, err := f.store.Progress().ListByOperator(ctx, "op")
	require.NoError(t, err)
	assert.Len(t, entries, 10)
}

func TestSubtractQuantity(t *testing.T) {
	left, ok := production.SubtractQuantity(0.30000000000000004, 0.1)
	assert.True(t, ok)
	assert.Equal(t, 0.2, left)

	left, ok = production.SubtractQuantity(0.2, 0.2000001)
	assert.True(t, ok, "differences below QuantityPlaces are ignored")
	assert.Zero(t, left)

	left, ok = production.SubtractQuantity(2.5, 2.501)
	assert.False(t, ok)
	assert.Equal(t, 2.5, left)

	assert.Equal(t, 0.333, production.RoundQuantity(1.0/3))
}

type failingBundles struct{ production.BundleRepository }

func (failingBundles) Save(context.Context, production.Bundle) error {
	return errors.New("disk full")
}

type failingStore struct{ production.Store }

func (f failingStore) Bundles() production.BundleRepository {
	return failingBundles{f.Store.Bundles()}
}

func (f failingStore) Tx(ctx context.Context, fn func(production.Store) error) error {
	return f.Store.Tx(ctx, func(s production.Store) error { return fn(failingStore{s}) })
}

func TestCompleteBundleRollsBackWhenFlagFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, sheet("p1", 50), sheet("p2", 5))
	shifts := production.NewShiftTracker(failingStore{f.store}, func() time.Time { return f.now }, nil, 0)

	n, err := shifts.CompleteBundle(ctx, "op", "b1")
	require.ErrorContains(t, err, "disk full")
	assert.Zero(t, n)

	for id, want := range map[string]float64{"p1": 50, "p2": 5} {
		p, err := f.plans.Product(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, p.Quantity, id)
	}
	entries, err := f.store.Progress().ListByOperator(ctx, "op")
	require.NoError(t, err)
	assert.Empty(t, entries)
	op, err := f.registry.FindOperator(ctx, "op")
	require.NoError(t, err)
	assert.Zero(t, op.ShiftMassProduced)
}

func TestCurrentPlanUsesCalendarDay(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t)

	f.advance(10 * time.Hour)
	plan, err := f.plans.CurrentPlan(ctx)
	require.NoError(t, err)
	assert.Equal(t, "plan", plan.ID)

	f.advance(24 * time.Hour)
	_, err = f.plans.CurrentPlan(ctx)
	assert.ErrorIs(t, err, production.ErrNotFound)
}

func TestIdleLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t)

	_, err := f.idles.StartIdle(ctx, "l1", "op", production.IdleScheduled, production.ReasonBreakdown)
	require.ErrorIs(t, err, production.ErrInvalidIdle)

	_, err = f.idles.StartIdle(ctx, "l1", "op", production.IdleScheduled, production.ReasonRepair)
	require.NoError(t, err)
	_, err = f.idles.StartIdle(ctx, "l1", "op", production.IdleUnscheduled, production.ReasonOther)
	require.ErrorIs(t, err, production.ErrIdleAlreadyOpen)

	f.advance(90 * time.Second)
	entry, closed, err := f.idles.FinishIdle(ctx, "l1")
	require.NoError(t, err)
	require.True(t, closed)
	require.NotNil(t, entry.DurationSec)
	assert.Equal(t, int64(90), *entry.DurationSec)

	_, closed, err = f.idles.FinishIdle(ctx, "l1")
	require.NoError(t, err)
	assert.False(t, closed)

	f.advance(time.Minute)
	_, err = f.idles.StartIdle(ctx, "l1", "op", production.IdleUnscheduled, production.ReasonOther)
	require.NoError(t, err)
	f.advance(30 * time.Second)

	total, err := f.idles.IdleDurationToday(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, int64(90), total, "open interval is not counted")

	_, _, err = f.idles.FinishIdle(ctx, "l1")
	require.NoError(t, err)
	total, err = f.idles.IdleDurationToday(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, int64(120), total)

	f.advance(24 * time.Hour)
	total, err = f.idles.IdleDurationToday(ctx, "l1")
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestShiftReport(t *testing.T) {
	r := production.BuildShiftReport(1_500_000, 3_000_000, 1000, 150)
	assert.Equal(t, "1.5", r.Produced.String())
	assert.Equal(t, "500", r.Pay.String())
	assert.Equal(t, "2.5", r.IdleMinutes.String())

	r = production.BuildShiftReport(1234, 0, 1000, 0)
	assert.True(t, r.Pay.IsZero())
	assert.Equal(t, "0.0012", r.Produced.String())

	// Both masses are grams: a quarter of a 2 t plan is 0.5 t.
	r = production.BuildShiftReport(500_000, 2_000_000, 800, 0)
	assert.Equal(t, "0.5", r.Produced.String())
	assert.Equal(t, "200", r.Pay.String())
	assert.Equal(t, "0.5", production.Tons(500_000).String())
}

func TestNormalizePhone(t *testing.T) {
	cases := map[string]string{
		"+7 (900) 123-45-67": "79001234567",
		"89001234567":        "79001234567",
		"375291234567":       "375291234567",
	}
	for in, want := range cases {
		got, err := production.NormalizePhone(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	for _, bad := range []string{"", "12345", "7900abc4567", "+7900123456789012"} {
		_, err := production.NormalizePhone(bad)
		assert.ErrorIs(t, err, production.ErrInvalidPhone, bad)
	}
}

func TestRegistryAccounts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t)

	_, err := f.registry.CreateAccount(ctx, "8 900 123 45 67", production.RoleOperator)
	require.NoError(t, err)
	_, err = f.registry.CreateAccount(ctx, "+79001234567", production.RoleOperator)
	require.ErrorIs(t, err, production.ErrDuplicatePhone)

	_, err = f.registry.BindContact(ctx, "+79990000000", 7)
	require.ErrorIs(t, err, production.ErrNotFound)

	acc, err := f.registry.BindContact(ctx, "+79001234567", 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), acc.TelegramID)

	got, err := f.registry.GetUserByTelegramID(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, production.RoleOperator, got.Role)
}

func TestUpsertAccountKeepsBinding(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	acc, created, err := f.registry.UpsertAccount(ctx, "79001234567", production.RoleOperator)
	require.NoError(t, err)
	assert.True(t, created)
	_, err = f.registry.BindContact(ctx, "79001234567", 9)
	require.NoError(t, err)

	got, created, err := f.registry.UpsertAccount(ctx, "+7 900 123-45-67", production.RoleAdmin)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, acc.ID, got.ID)
	assert.Equal(t, production.RoleAdmin, got.Role)
	assert.Equal(t, int64(9), got.TelegramID)

	_, _, err = f.registry.UpsertAccount(ctx, "79001234567", production.Role("boss"))
	require.Error(t, err)
}

func TestRegistryOperatorsAndLines(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t)

	line, err := f.registry.EnsureLine(ctx, "Line 1")
	require.NoError(t, err)
	assert.Equal(t, "l1", line.ID)
	line2, err := f.registry.EnsureLine(ctx, "Line 2")
	require.NoError(t, err)
	assert.NotEqual(t, "l1", line2.ID)

	_, err = f.registry.CreateOperator(ctx, "  ", 10, "l1")
	require.ErrorIs(t, err, production.ErrInvalidName)
	_, err = f.registry.CreateOperator(ctx, "Bob", 0, "l1")
	require.ErrorIs(t, err, production.ErrInvalidRate)
	_, err = f.registry.CreateOperator(ctx, "Bob", 10, "nope")
	require.ErrorIs(t, err, production.ErrNotFound)

	_, err = f.registry.CreateOperator(ctx, "Bob", 10, "l1")
	require.NoError(t, err)
	ops, err := f.registry.OperatorsOnLine(ctx, "l1")
	require.NoError(t, err)
	require.Len(t, ops, 2)
	assert.Equal(t, "Ann", ops[0].Name)
	assert.Equal(t, "Bob", ops[1].Name)
}
