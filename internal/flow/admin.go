package flow

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/m3rciful/shiftbot/core/telegram/format"
	"github.com/m3rciful/shiftbot/core/telegram/state"
	"github.com/m3rciful/shiftbot/internal/production"
)

func (e *Engine) adminRoutes() {
	e.onAction(StateAdminMain, TagAddOperator, e.enterOperatorName)
	e.onAction(StateAdminMain, TagAddAccount, e.enterAccountPhone)

	e.onText(StateAddOperator, e.onOperatorName)
	e.onText(StateOperatorRate, e.onOperatorRate)
	e.onAction(StateOperatorLine, TagLine, e.onOperatorLine)
	e.onText(StateAddAccount, e.onAccountPhone)

	for _, st := range []state.State{StateAddOperator, StateOperatorRate, StateOperatorLine, StateAddAccount} {
		e.onAction(st, TagReturn, func(_ context.Context, t *turn) error {
			e.enterAdminMain(t)
			return nil
		})
	}
}

func (e *Engine) enterAdminMain(t *turn) {
	t.del(KeyOperatorName, KeyOperatorRate)
	t.prompt(StateAdminMain, Message{
		Text: t.tr("admin/main"),
		Buttons: [][]Button{
			{t.button("admin/add_operator", Action{Tag: TagAddOperator})},
			{t.button("admin/add_account", Action{Tag: TagAddAccount})},
		},
	})
}

func backRow(t *turn) [][]Button {
	return [][]Button{{t.button("common/return", Action{Tag: TagReturn})}}
}

func (e *Engine) enterOperatorName(_ context.Context, t *turn) error {
	t.prompt(StateAddOperator, Message{Text: t.tr("admin/operator_name"), Buttons: backRow(t)})
	return nil
}

func (e *Engine) onOperatorName(ctx context.Context, t *turn) error {
	name := strings.TrimSpace(t.text())
	if name == "" {
		t.notice("admin/invalid_name")
		return e.enterOperatorName(ctx, t)
	}
	t.set(KeyOperatorName, name)
	e.enterOperatorRate(t)
	return nil
}

func (e *Engine) enterOperatorRate(t *turn) {
	t.prompt(StateOperatorRate, Message{
		Text:    t.tr("admin/operator_rate", format.Escape(t.get(KeyOperatorName))),
		Buttons: backRow(t),
	})
}

func (e *Engine) onOperatorRate(ctx context.Context, t *turn) error {
	rate, ok := parseCount(t.text())
	if !ok {
		t.notice("admin/invalid_rate")
		e.enterOperatorRate(t)
		return nil
	}
	t.set(KeyOperatorRate, strconv.FormatFloat(rate, 'f', -1, 64))
	return e.enterOperatorLine(ctx, t)
}

func (e *Engine) enterOperatorLine(ctx context.Context, t *turn) error {
	lines, err := e.registry.Lines(ctx)
	if err != nil {
		return err
	}
	if len(lines) == 0 {
		t.notice("admin/no_lines")
		e.enterAdminMain(t)
		return nil
	}
	rows := make([][]Button, 0, len(lines)+1)
	for _, l := range lines {
		rows = append(rows, []Button{{Label: l.Name, Action: Action{Tag: TagLine, ID: l.ID}}})
	}
	rows = append(rows, backRow(t)...)
	t.prompt(StateOperatorLine, Message{Text: t.tr("admin/operator_line"), Buttons: rows})
	return nil
}

func (e *Engine) onOperatorLine(ctx context.Context, t *turn) error {
	name, err := t.required(KeyOperatorName)
	if err != nil {
		return err
	}
	rawRate, err := t.required(KeyOperatorRate)
	if err != nil {
		return err
	}
	rate, err := strconv.ParseFloat(rawRate, 64)
	if err != nil {
		return production.ErrInvalidRate
	}
	line, err := e.registry.FindLine(ctx, t.action().ID)
	if err != nil {
		return err
	}
	op, err := e.registry.CreateOperator(ctx, name, rate, line.ID)
	switch {
	case errors.Is(err, production.ErrInvalidName), errors.Is(err, production.ErrInvalidRate):
		t.notice("admin/operator_rejected")
		e.enterAdminMain(t)
		return nil
	case err != nil:
		return err
	}
	t.notice("admin/operator_created", op.Name, line.Name)
	e.enterAdminMain(t)
	return nil
}

func (e *Engine) enterAccountPhone(_ context.Context, t *turn) error {
	t.prompt(StateAddAccount, Message{Text: t.tr("admin/account_phone"), Buttons: backRow(t)})
	return nil
}

func (e *Engine) onAccountPhone(ctx context.Context, t *turn) error {
	acc, err := e.registry.CreateAccount(ctx, t.text(), production.RoleOperator)
	switch {
	case errors.Is(err, production.ErrInvalidPhone):
		t.notice("admin/invalid_phone")
		return e.enterAccountPhone(ctx, t)
	case errors.Is(err, production.ErrDuplicatePhone):
		t.notice("admin/duplicate_phone")
		e.enterAdminMain(t)
		return nil
	case err != nil:
		return err
	}
	t.notice("admin/account_created", acc.Phone)
	e.enterAdminMain(t)
	return nil
}
