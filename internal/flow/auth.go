package flow

import (
	"context"
	"errors"

	"github.com/m3rciful/shiftbot/internal/production"
)

// onContact binds the sender's Telegram id to the account registered for
// the shared phone. Only the sender's own contact is accepted.
func (e *Engine) onContact(ctx context.Context, t *turn) error {
	ev, _ := t.event.(ContactEvent)
	if ev.UserID != t.userID {
		t.notice("auth/foreign_contact")
		e.askContact(t)
		return nil
	}
	acc, err := e.registry.BindContact(ctx, ev.Phone, t.userID)
	switch {
	case errors.Is(err, production.ErrNotFound), errors.Is(err, production.ErrInvalidPhone):
		t.notice("auth/unknown_phone")
		e.askContact(t)
		return nil
	case err != nil:
		return err
	}
	t.say(Message{Text: t.tr("auth/welcome"), RemoveKeyboard: true})
	return e.enterRole(ctx, t, acc.Role)
}

func (e *Engine) askContact(t *turn) {
	t.prompt(StateContactConfirm, Message{
		Text:           t.tr("auth/share_contact"),
		RequestContact: t.tr("auth/share_contact_button"),
	})
}
