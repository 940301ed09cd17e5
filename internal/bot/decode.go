package bot

import (
	"fmt"

	"github.com/m3rciful/shiftbot/core/telegram/callbacks"
	"github.com/m3rciful/shiftbot/internal/flow"
	"github.com/m3rciful/shiftbot/internal/production"

	tele "gopkg.in/telebot.v4"
)

// decodeAction turns a button press into a typed action. The payload shape
// depends on the tag and mirrors flow.Action.Payload.
func decodeAction(c tele.Context) (flow.Action, error) {
	tag := callbacks.CallbackKey(c)
	if tag == "" {
		return flow.Action{}, fmt.Errorf("callback without tag")
	}
	a := flow.Action{Tag: tag}
	switch tag {
	case flow.TagPage:
		page, err := callbacks.PayloadInt(c)
		if err != nil || page < 0 {
			return flow.Action{}, fmt.Errorf("page payload %q", callbacks.CallbackPayload(c))
		}
		a.Page = page
	case flow.TagBatch:
		qty, err := callbacks.PayloadFloat64(c)
		if err != nil {
			return flow.Action{}, fmt.Errorf("batch payload: %w", err)
		}
		a.Quantity = qty
	case flow.TagIdleType:
		a.IdleType = production.IdleType(callbacks.CallbackPayload(c))
	case flow.TagIdleReason:
		typ, reason, err := callbacks.PayloadPair(c, flow.ReasonSep)
		if err != nil {
			return flow.Action{}, fmt.Errorf("idle reason payload %q: %w", callbacks.CallbackPayload(c), err)
		}
		a.IdleType = production.IdleType(typ)
		a.Reason = production.IdleReason(reason)
	default:
		a.ID = callbacks.CallbackPayload(c)
	}
	return a, nil
}
