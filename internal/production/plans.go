package production

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/m3rciful/shiftbot/core/logger"
)

// DateLayout is the storage and display format of plan dates.
const DateLayout = "2006-01-02"

// PlanService reads the plan hierarchy and records order/bundle completion.
// Active lists are filtered on every call; finished flags are set lazily
// by the caller once a level turns out empty.
type PlanService struct {
	store Store
	now   Clock
	loc   *time.Location
	group singleflight.Group
}

// NewPlanService builds a plan service. A nil clock means time.Now and a nil
// location means time.Local.
func NewPlanService(store Store, now Clock, loc *time.Location) *PlanService {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.Local
	}
	return &PlanService{store: store, now: now, loc: loc}
}

// Location is the timezone used for plan dates.
func (s *PlanService) Location() *time.Location { return s.loc }

// CurrentPlan returns the plan dated today.
func (s *PlanService) CurrentPlan(ctx context.Context) (Plan, error) {
	return s.PlanFor(ctx, s.now())
}

// PlanFor returns the plan dated on the calendar day of t. Concurrent lookups
// for the same day share one store read.
func (s *PlanService) PlanFor(ctx context.Context, t time.Time) (Plan, error) {
	day := Day(t, s.loc)
	key := day.Format(DateLayout)
	v, err, shared := s.group.Do(key, func() (any, error) {
		return s.store.Plans().FindByDate(ctx, day)
	})
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			logger.Error(ctx, "service.plans", "plan.lookup", slog.String("date", key), slog.Any("err", err))
		}
		return Plan{}, err
	}
	if shared {
		logger.Debug(ctx, "service.plans", "plan.lookup", slog.String("date", key), slog.Bool("collapsed", true))
	}
	return v.(Plan), nil
}

func (s *PlanService) Order(ctx context.Context, id string) (Order, error) {
	return s.store.Orders().Find(ctx, id)
}

func (s *PlanService) Bundle(ctx context.Context, id string) (Bundle, error) {
	return s.store.Bundles().Find(ctx, id)
}

func (s *PlanService) Product(ctx context.Context, id string) (Product, error) {
	return s.store.Products().Find(ctx, id)
}

// ActiveOrders lists unfinished orders of the plan in ingestion order.
func (s *PlanService) ActiveOrders(ctx context.Context, planID string) ([]Order, error) {
	orders, err := s.store.Orders().ListByPlan(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	active := orders[:0]
	for _, o := range orders {
		if !o.Finished {
			active = append(active, o)
		}
	}
	return active, nil
}

// ActiveBundles lists unfinished bundles of the order in ingestion order.
func (s *PlanService) ActiveBundles(ctx context.Context, orderID string) ([]Bundle, error) {
	bundles, err := s.store.Bundles().ListByOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("list bundles: %w", err)
	}
	active := bundles[:0]
	for _, b := range bundles {
		if !b.Finished {
			active = append(active, b)
		}
	}
	return active, nil
}

// ActiveProducts lists products of the bundle with quantity left.
func (s *PlanService) ActiveProducts(ctx context.Context, bundleID string) ([]Product, error) {
	products, err := s.store.Products().ListByBundle(ctx, bundleID)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	active := products[:0]
	for _, p := range products {
		if !p.Done() {
			active = append(active, p)
		}
	}
	return active, nil
}

// FinishOrder flags the order finished. It does not touch the plan.
func (s *PlanService) FinishOrder(ctx context.Context, id string) error {
	order, err := s.store.Orders().Find(ctx, id)
	if err != nil {
		return err
	}
	if order.Finished {
		return nil
	}
	order.Finished = true
	if err := s.store.Orders().Save(ctx, order); err != nil {
		return fmt.Errorf("save order: %w", err)
	}
	logger.Info(ctx, "service.plans", "order.finished", slog.String("order_id", id))
	return nil
}

// FinishBundle flags the bundle finished. It does not touch the order.
func (s *PlanService) FinishBundle(ctx context.Context, id string) error {
	return finishBundle(ctx, s.store, id)
}

func finishBundle(ctx context.Context, store Store, id string) error {
	bundle, err := store.Bundles().Find(ctx, id)
	if err != nil {
		return err
	}
	if bundle.Finished {
		return nil
	}
	bundle.Finished = true
	if err := store.Bundles().Save(ctx, bundle); err != nil {
		return fmt.Errorf("save bundle: %w", err)
	}
	logger.Info(ctx, "service.plans", "bundle.finished", slog.String("bundle_id", id))
	return nil
}
