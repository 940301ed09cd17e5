package flow

import (
	"context"
	"errors"

	"github.com/m3rciful/shiftbot/core/telegram/format"
	"github.com/m3rciful/shiftbot/internal/production"
)

// onFinishShift closes the shift. A bundle still open on screen is booked
// in full first, then the report is posted and the operator list is shown
// again for the next person on the line.
func (e *Engine) onFinishShift(ctx context.Context, t *turn) error {
	opID, err := t.required(KeyOperator)
	if err != nil {
		return err
	}
	lineID, err := t.required(KeyLine)
	if err != nil {
		return err
	}
	if bundleID := t.get(KeyBundle); bundleID != "" {
		n, err := e.shifts.CompleteBundle(ctx, opID, bundleID)
		if err != nil {
			return err
		}
		if n > 0 {
			t.notice("shift/bundle_completed", n)
		}
	}
	op, err := e.shifts.FinishShift(ctx, opID)
	if err != nil {
		return err
	}

	var planMass float64
	plan, err := e.plans.CurrentPlan(ctx)
	switch {
	case err == nil:
		planMass = plan.TotalMass
	case !errors.Is(err, production.ErrNotFound):
		return err
	}
	idleSec, err := e.idles.IdleDurationToday(ctx, lineID)
	if err != nil {
		return err
	}
	report := production.BuildShiftReport(op.ShiftMassProduced, planMass, op.Rate, idleSec)
	t.say(Message{Text: t.tr("shift/report",
		format.Escape(op.Name),
		report.Produced.String(),
		report.Pay.StringFixed(2),
		report.IdleMinutes.StringFixed(1),
	)})
	return e.enterOperators(ctx, t, 0)
}
