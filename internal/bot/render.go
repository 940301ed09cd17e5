package bot

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/m3rciful/shiftbot/core/logger"
	"github.com/m3rciful/shiftbot/core/telegram/format"
	"github.com/m3rciful/shiftbot/core/telegram/keyboard"
	"github.com/m3rciful/shiftbot/core/telegram/state"
	"github.com/m3rciful/shiftbot/internal/flow"

	tele "gopkg.in/telebot.v4"
)

// markup renders the buttons of a message. Inline buttons win over the
// reply-keyboard variants.
func markup(msg flow.Message) *tele.ReplyMarkup {
	if len(msg.Buttons) > 0 {
		rows := make([][]keyboard.InlineBtn, 0, len(msg.Buttons))
		for _, row := range msg.Buttons {
			r := make([]keyboard.InlineBtn, 0, len(row))
			for _, btn := range row {
				r = append(r, keyboard.InlineBtn{
					Text:   btn.Label,
					Unique: btn.Action.Tag,
					Data:   btn.Action.Payload(),
				})
			}
			rows = append(rows, r)
		}
		return keyboard.InlineButtonsRows(rows...)
	}
	switch {
	case msg.RequestContact != "":
		return keyboard.RequestContact(msg.RequestContact)
	case msg.RemoveKeyboard:
		return keyboard.RemoveKeyboard()
	}
	return nil
}

// deliver sends the outcome of a turn and returns the session to store.
// The prompt is edited in place when the user pressed a button on it and
// nothing else was said; otherwise a fresh prompt replaces the old one.
// Delivery failures are logged and never undo the transition.
func (b *Bot) deliver(ctx context.Context, c tele.Context, prev state.Session, resp flow.Response) state.Session {
	next := resp.Session.Clone()
	prevPrompt := prev.Get(flow.KeyMessageID)

	for _, notice := range resp.Notices {
		b.send(ctx, c, format.Escape(notice), nil)
	}
	prompt, ok := resp.Prompt()
	if !ok {
		if prevPrompt != "" {
			next.Set(flow.KeyMessageID, prevPrompt)
		}
		return next
	}
	others := resp.Messages[:len(resp.Messages)-1]
	for _, msg := range others {
		b.send(ctx, c, msg.Text, markup(msg))
	}

	rm := markup(prompt)
	inPlace := len(resp.Notices) == 0 && len(others) == 0 && prompt.RequestContact == "" &&
		!prompt.RemoveKeyboard && pressedOn(c, prevPrompt)
	if inPlace {
		_, err := b.transport.Edit(c, storedMessage(c, prevPrompt), prompt.Text, rm)
		if err == nil {
			next.Set(flow.KeyMessageID, prevPrompt)
			return next
		}
		logger.Debug(ctx, component, "prompt.edit", slog.String("err", err.Error()))
	}

	next.Del(flow.KeyMessageID)
	if sent := b.send(ctx, c, prompt.Text, rm); sent != nil {
		next.Set(flow.KeyMessageID, strconv.Itoa(sent.ID))
	}
	if prevPrompt != "" && prevPrompt != next.Get(flow.KeyMessageID) {
		if err := b.transport.Delete(c, storedMessage(c, prevPrompt)); err != nil {
			logger.Debug(ctx, component, "prompt.delete", slog.String("err", err.Error()))
		}
	}
	return next
}

func (b *Bot) send(ctx context.Context, c tele.Context, text string, rm *tele.ReplyMarkup) *tele.Message {
	msg, err := b.transport.Send(c, text, rm)
	if err != nil {
		logger.Warn(ctx, component, "send.failed",
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
		return nil
	}
	return msg
}

func pressedOn(c tele.Context, messageID string) bool {
	cb := c.Callback()
	if messageID == "" || cb == nil || cb.Message == nil {
		return false
	}
	return strconv.Itoa(cb.Message.ID) == messageID
}

func storedMessage(c tele.Context, messageID string) tele.StoredMessage {
	var chatID int64
	if chat := c.Chat(); chat != nil {
		chatID = chat.ID
	}
	return tele.StoredMessage{MessageID: messageID, ChatID: chatID}
}
