package flow

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/m3rciful/shiftbot/core/telegram/format"
	"github.com/m3rciful/shiftbot/core/telegram/state"
	"github.com/m3rciful/shiftbot/internal/production"
)

func (e *Engine) operatorRoutes() {
	e.onAction(StateChooseLine, TagLine, e.onLine)

	e.onAction(StateChooseOperator, TagOperator, e.onOperator)
	e.onAction(StateChooseOperator, TagPage, e.onOperatorPage)
	e.onAction(StateChooseOperator, TagReturn, e.enterLines)

	e.onAction(StateChooseAction, TagStartShift, e.onStartShift)
	e.onAction(StateChooseAction, TagReturn, func(ctx context.Context, t *turn) error {
		return e.enterOperators(ctx, t, 0)
	})

	e.onAction(StateChooseOrder, TagOrder, e.onOrder)

	e.onAction(StateChooseBundle, TagBundle, e.onBundle)
	e.onAction(StateChooseBundle, TagReturn, func(ctx context.Context, t *turn) error {
		return e.enterOrders(ctx, t, false)
	})

	e.onAction(StateChooseProduct, TagProduct, e.onProduct)
	e.onAction(StateChooseProduct, TagFinishBundle, e.onFinishBundle)
	e.onAction(StateChooseProduct, TagReturn, func(ctx context.Context, t *turn) error {
		return e.enterBundles(ctx, t, false)
	})

	e.onAction(StateEnterResult, TagBatch, e.onBatch)
	e.onAction(StateEnterResult, TagInputCount, e.enterInputCount)
	e.onAction(StateEnterResult, TagFinishProduct, e.onFinishProduct)
	e.onAction(StateEnterResult, TagFinishBundle, e.onFinishBundle)
	e.onAction(StateEnterResult, TagReturn, func(ctx context.Context, t *turn) error {
		return e.enterProducts(ctx, t, false)
	})

	e.onText(StateInputCount, e.onCount)
	e.onAction(StateInputCount, TagReturn, e.enterResult)

	for _, st := range workStates {
		e.onAction(st, TagFinishShift, e.onFinishShift)
		e.onAction(st, TagIdle, e.onIdle)
	}
}

// workStates are the shift screens that can be interrupted by an idle or
// closed by finishing the shift.
var workStates = []state.State{StateChooseOrder, StateChooseBundle, StateChooseProduct, StateEnterResult}

func (e *Engine) enterLines(ctx context.Context, t *turn) error {
	lines, err := e.registry.Lines(ctx)
	if err != nil {
		return err
	}
	t.del(KeyLine, KeyOperator, KeyOrder, KeyBundle, KeyProduct, KeyPage)
	if len(lines) == 0 {
		t.prompt(StateChooseLine, Message{Text: t.tr("operator/no_lines")})
		return nil
	}
	rows := make([][]Button, 0, len(lines))
	for _, l := range lines {
		rows = append(rows, []Button{{Label: l.Name, Action: Action{Tag: TagLine, ID: l.ID}}})
	}
	t.prompt(StateChooseLine, Message{Text: t.tr("operator/choose_line"), Buttons: rows})
	return nil
}

func (e *Engine) onLine(ctx context.Context, t *turn) error {
	line, err := e.registry.FindLine(ctx, t.action().ID)
	if err != nil {
		return err
	}
	t.set(KeyLine, line.ID)
	return e.enterOperators(ctx, t, 0)
}

func (e *Engine) onOperatorPage(ctx context.Context, t *turn) error {
	return e.enterOperators(ctx, t, t.action().Page)
}

func (e *Engine) enterOperators(ctx context.Context, t *turn, page int) error {
	lineID, err := t.required(KeyLine)
	if err != nil {
		return err
	}
	line, err := e.registry.FindLine(ctx, lineID)
	if err != nil {
		return err
	}
	ops, err := e.registry.OperatorsOnLine(ctx, lineID)
	if err != nil {
		return err
	}
	t.del(KeyOperator, KeyOrder, KeyBundle, KeyProduct)

	per := e.opts.OperatorsPerPage
	pages := max(1, (len(ops)+per-1)/per)
	page = min(max(page, 0), pages-1)
	t.set(KeyPage, strconv.Itoa(page))

	shown := ops[page*per : min(len(ops), (page+1)*per)]
	buttons := make([]Button, 0, len(shown))
	for _, op := range shown {
		buttons = append(buttons, Button{Label: op.Name, Action: Action{Tag: TagOperator, ID: op.ID}})
	}
	rows := grid(buttons, e.opts.OperatorsPerRow)
	var nav []Button
	if page > 0 {
		nav = append(nav, t.button("common/prev", Action{Tag: TagPage, Page: page - 1}))
	}
	if page < pages-1 {
		nav = append(nav, t.button("common/next", Action{Tag: TagPage, Page: page + 1}))
	}
	if len(nav) > 0 {
		rows = append(rows, nav)
	}
	rows = append(rows, []Button{t.button("common/return", Action{Tag: TagReturn})})

	text := t.tr("operator/choose_operator", format.Escape(line.Name))
	if len(ops) == 0 {
		text = t.tr("operator/no_operators", format.Escape(line.Name))
	}
	t.prompt(StateChooseOperator, Message{Text: text, Buttons: rows})
	return nil
}

func (e *Engine) onOperator(ctx context.Context, t *turn) error {
	lineID, err := t.required(KeyLine)
	if err != nil {
		return err
	}
	op, err := e.registry.FindOperator(ctx, t.action().ID)
	if err != nil {
		return err
	}
	if op.LineID != lineID {
		return production.ErrNotFound
	}
	t.set(KeyOperator, op.ID)
	return e.enterAction(ctx, t)
}

func (e *Engine) enterAction(ctx context.Context, t *turn) error {
	opID, err := t.required(KeyOperator)
	if err != nil {
		return err
	}
	op, err := e.registry.FindOperator(ctx, opID)
	if err != nil {
		return err
	}
	t.prompt(StateChooseAction, Message{
		Text: t.tr("operator/greeting", format.Escape(op.Name)),
		Buttons: [][]Button{
			{t.button("operator/start_shift", Action{Tag: TagStartShift})},
			{t.button("common/return", Action{Tag: TagReturn})},
		},
	})
	return nil
}

func (e *Engine) onStartShift(ctx context.Context, t *turn) error {
	opID, err := t.required(KeyOperator)
	if err != nil {
		return err
	}
	if _, err := e.shifts.StartShift(ctx, opID); err != nil {
		return err
	}
	return e.enterOrders(ctx, t, true)
}

// enterOrders shows the active orders of today's plan. Without a plan the
// operator stays on the action screen.
func (e *Engine) enterOrders(ctx context.Context, t *turn, skip bool) error {
	t.del(KeyOrder, KeyBundle, KeyProduct)
	plan, err := e.plans.CurrentPlan(ctx)
	if errors.Is(err, production.ErrNotFound) {
		t.notice("operator/no_plan")
		return e.enterAction(ctx, t)
	}
	if err != nil {
		return err
	}
	orders, err := e.plans.ActiveOrders(ctx, plan.ID)
	if err != nil {
		return err
	}
	shiftRow := []Button{
		t.button("idle/start", Action{Tag: TagIdle}),
		t.button("shift/finish", Action{Tag: TagFinishShift}),
	}
	if len(orders) == 0 {
		t.prompt(StateChooseOrder, Message{Text: t.tr("operator/no_orders"), Buttons: [][]Button{shiftRow}})
		return nil
	}
	if skip && len(orders) == 1 {
		t.set(KeyOrder, orders[0].ID)
		return e.enterBundles(ctx, t, true)
	}
	rows := make([][]Button, 0, len(orders)+1)
	for _, o := range orders {
		rows = append(rows, []Button{{Label: orderLabel(o), Action: Action{Tag: TagOrder, ID: o.ID}}})
	}
	rows = append(rows, shiftRow)
	t.prompt(StateChooseOrder, Message{Text: t.tr("operator/choose_order"), Buttons: rows})
	return nil
}

func (e *Engine) onOrder(ctx context.Context, t *turn) error {
	order, err := e.plans.Order(ctx, t.action().ID)
	if err != nil {
		return err
	}
	t.set(KeyOrder, order.ID)
	return e.enterBundles(ctx, t, true)
}

// enterBundles shows the active bundles of the selected order. An order with
// nothing left is finished and control goes back to the order list.
func (e *Engine) enterBundles(ctx context.Context, t *turn, skip bool) error {
	orderID, err := t.required(KeyOrder)
	if err != nil {
		return err
	}
	order, err := e.plans.Order(ctx, orderID)
	if err != nil {
		return err
	}
	bundles, err := e.plans.ActiveBundles(ctx, orderID)
	if err != nil {
		return err
	}
	t.del(KeyBundle, KeyProduct)
	if len(bundles) == 0 {
		if err := e.plans.FinishOrder(ctx, orderID); err != nil {
			return err
		}
		t.notice("operator/order_finished", order.NativeID)
		return e.enterOrders(ctx, t, true)
	}
	if skip && len(bundles) == 1 {
		t.set(KeyBundle, bundles[0].ID)
		return e.enterProducts(ctx, t, true)
	}
	buttons := make([]Button, 0, len(bundles))
	for _, b := range bundles {
		buttons = append(buttons, Button{
			Label:  t.tr("operator/bundle_button", b.NativeID),
			Action: Action{Tag: TagBundle, ID: b.ID},
		})
	}
	rows := grid(buttons, 2)
	rows = append(rows,
		[]Button{t.button("idle/start", Action{Tag: TagIdle}), t.button("shift/finish", Action{Tag: TagFinishShift})},
		[]Button{t.button("common/return", Action{Tag: TagReturn})},
	)
	t.prompt(StateChooseBundle, Message{Text: orderCard(t, order), Buttons: rows})
	return nil
}

func (e *Engine) onBundle(ctx context.Context, t *turn) error {
	bundle, err := e.plans.Bundle(ctx, t.action().ID)
	if err != nil {
		return err
	}
	t.set(KeyBundle, bundle.ID)
	return e.enterProducts(ctx, t, true)
}

// enterProducts shows the products of the selected bundle with quantity
// left. An exhausted bundle is finished and control goes back up.
func (e *Engine) enterProducts(ctx context.Context, t *turn, skip bool) error {
	bundleID, err := t.required(KeyBundle)
	if err != nil {
		return err
	}
	bundle, err := e.plans.Bundle(ctx, bundleID)
	if err != nil {
		return err
	}
	products, err := e.plans.ActiveProducts(ctx, bundleID)
	if err != nil {
		return err
	}
	t.del(KeyProduct)
	if len(products) == 0 {
		if err := e.plans.FinishBundle(ctx, bundleID); err != nil {
			return err
		}
		t.notice("operator/bundle_finished", bundle.NativeID)
		return e.enterBundles(ctx, t, true)
	}
	if skip && len(products) == 1 {
		t.set(KeyProduct, products[0].ID)
		return e.enterResult(ctx, t)
	}
	rows := make([][]Button, 0, len(products)+3)
	for _, p := range products {
		rows = append(rows, []Button{{Label: productLabel(p), Action: Action{Tag: TagProduct, ID: p.ID}}})
	}
	rows = append(rows,
		[]Button{t.button("operator/finish_bundle", Action{Tag: TagFinishBundle})},
		[]Button{t.button("idle/start", Action{Tag: TagIdle}), t.button("shift/finish", Action{Tag: TagFinishShift})},
		[]Button{t.button("common/return", Action{Tag: TagReturn})},
	)
	t.prompt(StateChooseProduct, Message{Text: bundleCard(t, bundle), Buttons: rows})
	return nil
}

func (e *Engine) onProduct(ctx context.Context, t *turn) error {
	p, err := e.plans.Product(ctx, t.action().ID)
	if err != nil {
		return err
	}
	t.set(KeyProduct, p.ID)
	return e.enterResult(ctx, t)
}

func (e *Engine) enterResult(ctx context.Context, t *turn) error {
	productID, err := t.required(KeyProduct)
	if err != nil {
		return err
	}
	p, err := e.plans.Product(ctx, productID)
	if err != nil {
		return err
	}
	if p.Done() {
		t.notice("operator/product_done", p.NativeID)
		return e.enterProducts(ctx, t, true)
	}
	batch := math.Min(e.opts.BatchSize, p.Quantity)
	t.prompt(StateEnterResult, Message{
		Text: productCard(t, p, e.shifts.Density()),
		Buttons: [][]Button{
			{{Label: t.tr("operator/batch", format.Quantity(batch)), Action: Action{Tag: TagBatch, Quantity: batch}}},
			{t.button("operator/input_count", Action{Tag: TagInputCount})},
			{t.button("operator/finish_product", Action{Tag: TagFinishProduct}), t.button("operator/finish_bundle", Action{Tag: TagFinishBundle})},
			{t.button("idle/start", Action{Tag: TagIdle}), t.button("shift/finish", Action{Tag: TagFinishShift})},
			{t.button("common/return", Action{Tag: TagReturn})},
		},
	})
	return nil
}

func (e *Engine) enterInputCount(ctx context.Context, t *turn) error {
	productID, err := t.required(KeyProduct)
	if err != nil {
		return err
	}
	p, err := e.plans.Product(ctx, productID)
	if err != nil {
		return err
	}
	t.prompt(StateInputCount, Message{
		Text:    t.tr("operator/input_count_prompt", format.Escape(p.NativeID), format.Quantity(p.Quantity)),
		Buttons: [][]Button{{t.button("common/return", Action{Tag: TagReturn})}},
	})
	return nil
}

func (e *Engine) onBatch(ctx context.Context, t *turn) error {
	return e.record(ctx, t, t.action().Quantity)
}

func (e *Engine) onCount(ctx context.Context, t *turn) error {
	count, ok := parseCount(t.text())
	if !ok {
		t.notice("operator/invalid_count")
		return e.enterInputCount(ctx, t)
	}
	return e.record(ctx, t, count)
}

// parseCount accepts a positive integer or decimal, with either separator.
func parseCount(raw string) (float64, bool) {
	s := strings.ReplaceAll(strings.TrimSpace(raw), ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0, false
	}
	return v, true
}

// record books count units of the selected product. An overdraw is refused
// and the user stays where they were.
func (e *Engine) record(ctx context.Context, t *turn, count float64) error {
	opID, err := t.required(KeyOperator)
	if err != nil {
		return err
	}
	productID, err := t.required(KeyProduct)
	if err != nil {
		return err
	}
	p, err := e.shifts.Record(ctx, opID, productID, count)
	switch {
	case errors.Is(err, production.ErrInsufficientQuantity):
		current, err := e.plans.Product(ctx, productID)
		if err != nil {
			return err
		}
		t.notice("operator/count_exceeds", format.Quantity(count), format.Quantity(current.Quantity))
		return e.rePrompt(ctx, t)
	case errors.Is(err, production.ErrInvalidCount):
		t.notice("operator/invalid_count")
		return e.rePrompt(ctx, t)
	case err != nil:
		return err
	}
	t.notice("operator/logged", format.Quantity(count), format.Quantity(p.Quantity))
	if p.Done() {
		t.notice("operator/product_done", p.NativeID)
		return e.enterProducts(ctx, t, true)
	}
	return e.enterResult(ctx, t)
}

func (e *Engine) rePrompt(ctx context.Context, t *turn) error {
	if t.sess.State == StateInputCount {
		return e.enterInputCount(ctx, t)
	}
	return e.enterResult(ctx, t)
}

func (e *Engine) onFinishProduct(ctx context.Context, t *turn) error {
	opID, err := t.required(KeyOperator)
	if err != nil {
		return err
	}
	productID, err := t.required(KeyProduct)
	if err != nil {
		return err
	}
	p, err := e.shifts.CompleteProduct(ctx, opID, productID)
	if err != nil {
		return err
	}
	t.notice("operator/product_done", p.NativeID)
	return e.enterProducts(ctx, t, true)
}

func (e *Engine) onFinishBundle(ctx context.Context, t *turn) error {
	opID, err := t.required(KeyOperator)
	if err != nil {
		return err
	}
	bundleID, err := t.required(KeyBundle)
	if err != nil {
		return err
	}
	bundle, err := e.plans.Bundle(ctx, bundleID)
	if err != nil {
		return err
	}
	if _, err := e.shifts.CompleteBundle(ctx, opID, bundleID); err != nil {
		return err
	}
	t.notice("operator/bundle_finished", bundle.NativeID)
	return e.enterBundles(ctx, t, true)
}
