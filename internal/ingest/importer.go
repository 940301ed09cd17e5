package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/m3rciful/shiftbot/core/logger"
	"github.com/m3rciful/shiftbot/internal/production"
)

// Importer writes validated documents into the store.
type Importer struct {
	store production.Store
	loc   *time.Location
	newID func() string
}

// NewImporter builds an importer. A nil location means time.Local and a nil
// id generator means uuid.NewString.
func NewImporter(store production.Store, loc *time.Location, newID func() string) *Importer {
	if loc == nil {
		loc = time.Local
	}
	if newID == nil {
		newID = uuid.NewString
	}
	return &Importer{store: store, loc: loc, newID: newID}
}

// Summary counts what one import created.
type Summary struct {
	PlanID    string
	Date      time.Time
	Orders    int
	Bundles   int
	Products  int
	TotalMass float64
}

// Import validates doc and stores it as the plan of day. The whole tree is
// written in one transaction; an existing plan for the day is never replaced.
func (im *Importer) Import(ctx context.Context, doc Document, day time.Time) (Summary, error) {
	if err := doc.Validate(); err != nil {
		logger.Warn(ctx, component, "ingest.invalid", slog.Any("err", err))
		return Summary{}, err
	}
	day = production.Day(day, im.loc)
	sum := Summary{Date: day}

	err := im.store.Tx(ctx, func(s production.Store) error {
		if _, err := s.Plans().FindByDate(ctx, day); err == nil {
			return fmt.Errorf("%s: %w", day.Format(production.DateLayout), production.ErrPlanExists)
		} else if !errors.Is(err, production.ErrNotFound) {
			return err
		}

		plan := production.Plan{ID: im.newID(), Date: day}
		for _, o := range doc.Orders {
			plan.TotalMass += *o.TotalMass
		}
		// Children reference the plan, so the root goes first.
		if err := s.Plans().Save(ctx, plan); err != nil {
			return fmt.Errorf("save plan: %w", err)
		}
		sum.PlanID = plan.ID
		sum.TotalMass = plan.TotalMass

		for i, o := range doc.Orders {
			order := production.Order{
				ID:            im.newID(),
				PlanID:        plan.ID,
				Seq:           i,
				NativeID:      o.ID,
				Name:          o.Name,
				LineRef:       o.LineID,
				TotalMass:     *o.TotalMass,
				TotalLength:   *o.TotalLength,
				ExecutionTime: *o.ExecutionTime,
				Instructions:  o.Instructions,
			}
			if err := s.Orders().Save(ctx, order); err != nil {
				return fmt.Errorf("save order %s: %w", o.ID, err)
			}
			sum.Orders++
			for j, b := range o.Bundles {
				bundle := production.Bundle{
					ID:            im.newID(),
					OrderID:       order.ID,
					Seq:           j,
					NativeID:      b.ID,
					TotalMass:     *b.TotalMass,
					TotalLength:   *b.TotalLength,
					ExecutionTime: *b.ExecutionTime,
					Instructions:  b.Instructions,
				}
				if err := s.Bundles().Save(ctx, bundle); err != nil {
					return fmt.Errorf("save bundle %s: %w", b.ID, err)
				}
				sum.Bundles++
				for k, p := range b.Products {
					qty := float64(*p.Quantity)
					product := production.Product{
						ID:             im.newID(),
						BundleID:       bundle.ID,
						Seq:            k,
						NativeID:       p.ID,
						Profile:        p.Profile,
						Width:          *p.Width,
						Thickness:      *p.Thickness,
						Length:         *p.Length,
						Color:          p.Color,
						RollNumber:     *p.RollNumber,
						Instructions:   p.Instructions,
						QuantityStatic: qty,
						Quantity:       qty,
					}
					if err := s.Products().Save(ctx, product); err != nil {
						return fmt.Errorf("save product %s: %w", p.ID, err)
					}
					sum.Products++
				}
			}
		}
		return nil
	})
	if err != nil {
		logger.Error(ctx, component, "ingest.failed",
			slog.String("date", day.Format(production.DateLayout)),
			slog.Any("err", err),
		)
		return Summary{}, err
	}
	logger.Info(ctx, component, "ingest.imported",
		slog.String("plan_id", sum.PlanID),
		slog.String("date", day.Format(production.DateLayout)),
		slog.Int("orders", sum.Orders),
		slog.Int("bundles", sum.Bundles),
		slog.Int("products", sum.Products),
	)
	return sum, nil
}

// Run fetches from src and imports the result.
func (im *Importer) Run(ctx context.Context, src Source, day time.Time) (Summary, error) {
	doc, err := src.Fetch(ctx)
	if err != nil {
		return Summary{}, err
	}
	return im.Import(ctx, doc, day)
}
