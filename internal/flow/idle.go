package flow

import (
	"context"
	"errors"
	"time"

	"github.com/m3rciful/shiftbot/core/telegram/format"
	"github.com/m3rciful/shiftbot/core/telegram/state"
	"github.com/m3rciful/shiftbot/internal/production"
)

func (e *Engine) idleRoutes() {
	e.onAction(StateIdle, TagIdleType, e.onIdleType)
	e.onAction(StateIdle, TagReturn, e.resume)
	e.onAction(StateIdleOption, TagIdleReason, e.onIdleReason)
	e.onAction(StateIdleOption, TagReturn, e.enterIdleTypes)
	e.onAction(StateIdleNow, TagFinishIdle, e.onFinishIdle)
}

// onIdle interrupts work. The current screen is remembered so finishing the
// idle lands the operator back where they were.
func (e *Engine) onIdle(ctx context.Context, t *turn) error {
	lineID, err := t.required(KeyLine)
	if err != nil {
		return err
	}
	t.set(KeyIdleReturn, string(t.sess.State))
	running, ok, err := e.idles.OpenIdle(ctx, lineID)
	if err != nil {
		return err
	}
	if ok {
		e.enterIdleNow(t, running)
		return nil
	}
	return e.enterIdleTypes(ctx, t)
}

func (e *Engine) enterIdleTypes(_ context.Context, t *turn) error {
	t.del(KeyIdleType)
	rows := make([][]Button, 0, 3)
	for _, typ := range production.IdleTypes() {
		rows = append(rows, []Button{t.button("idle/type/"+string(typ), Action{Tag: TagIdleType, IdleType: typ})})
	}
	rows = append(rows, []Button{t.button("common/return", Action{Tag: TagReturn})})
	t.prompt(StateIdle, Message{Text: t.tr("idle/choose_type"), Buttons: rows})
	return nil
}

func (e *Engine) onIdleType(ctx context.Context, t *turn) error {
	typ := t.action().IdleType
	if !typ.Valid() {
		t.notice("idle/invalid")
		return e.enterIdleTypes(ctx, t)
	}
	t.set(KeyIdleType, string(typ))
	reasons := production.ReasonsFor(typ)
	rows := make([][]Button, 0, len(reasons)+1)
	for _, r := range reasons {
		rows = append(rows, []Button{t.button("idle/reason/"+string(r), Action{Tag: TagIdleReason, IdleType: typ, Reason: r})})
	}
	rows = append(rows, []Button{t.button("common/return", Action{Tag: TagReturn})})
	t.prompt(StateIdleOption, Message{Text: t.tr("idle/choose_reason", t.tr("idle/type/"+string(typ))), Buttons: rows})
	return nil
}

func (e *Engine) onIdleReason(ctx context.Context, t *turn) error {
	lineID, err := t.required(KeyLine)
	if err != nil {
		return err
	}
	opID, err := t.required(KeyOperator)
	if err != nil {
		return err
	}
	a := t.action()
	entry, err := e.idles.StartIdle(ctx, lineID, opID, a.IdleType, a.Reason)
	switch {
	case errors.Is(err, production.ErrInvalidIdle):
		t.notice("idle/invalid")
		return e.enterIdleTypes(ctx, t)
	case errors.Is(err, production.ErrIdleAlreadyOpen):
		t.notice("idle/already_running")
	case err != nil:
		return err
	}
	e.enterIdleNow(t, entry)
	return nil
}

func (e *Engine) enterIdleNow(t *turn, entry production.IdleEntry) {
	t.del(KeyIdleType)
	t.prompt(StateIdleNow, Message{
		Text: t.tr("idle/running",
			t.tr("idle/type/"+string(entry.Type)),
			t.tr("idle/reason/"+string(entry.Reason)),
			format.Clock(entry.Start, e.plans.Location()),
		),
		Buttons: [][]Button{{t.button("idle/finish", Action{Tag: TagFinishIdle})}},
	})
}

func (e *Engine) onFinishIdle(ctx context.Context, t *turn) error {
	lineID, err := t.required(KeyLine)
	if err != nil {
		return err
	}
	entry, closed, err := e.idles.FinishIdle(ctx, lineID)
	if err != nil {
		return err
	}
	if closed {
		d := time.Duration(format.Deref(entry.DurationSec, 0)) * time.Second
		t.notice("idle/finished", d.String())
	}
	return e.resume(ctx, t)
}

// resume returns to the screen the idle interrupted. Without a usable marker
// the operator starts over from the line list.
func (e *Engine) resume(ctx context.Context, t *turn) error {
	prev := state.State(t.get(KeyIdleReturn))
	t.del(KeyIdleReturn, KeyIdleType)
	switch {
	case prev == StateEnterResult && t.get(KeyProduct) != "":
		return e.enterResult(ctx, t)
	case prev == StateChooseProduct && t.get(KeyBundle) != "":
		return e.enterProducts(ctx, t, false)
	case prev == StateChooseBundle && t.get(KeyOrder) != "":
		return e.enterBundles(ctx, t, false)
	case prev == StateChooseOrder && t.get(KeyOperator) != "":
		return e.enterOrders(ctx, t, true)
	default:
		return e.enterLines(ctx, t)
	}
}
