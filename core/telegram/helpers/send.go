package helpers

import (
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/m3rciful/shiftbot/core/logger"
	"github.com/m3rciful/shiftbot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

var globalDispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher wires the asynchronous sender used by helper functions.
func SetDispatcher(d *sender.Dispatcher) {
	globalDispatcher.Store(d)
}

func currentDispatcher() *sender.Dispatcher {
	return globalDispatcher.Load()
}

func sendAsync(c tele.Context, action, endpoint string, run func() error) error {
	disp := currentDispatcher()
	if disp == nil {
		return run()
	}

	ctx := BuildContext(c)
	if err := disp.Enqueue(ctx, action, endpoint, run); err != nil {
		if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
			logger.Warn(ctx, "tg.sender", "queue.fallback",
				slog.String("action", action),
				slog.String("endpoint", endpoint),
				slog.String("err", err.Error()),
			)
			return run()
		}
		return err
	}
	return nil
}

func htmlOptions(markup *tele.ReplyMarkup) *tele.SendOptions {
	return &tele.SendOptions{ParseMode: tele.ModeHTML, ReplyMarkup: markup}
}

// CountSent bumps the per-update counters read by the handler summary log.
func CountSent(c tele.Context, hasKB bool) {
	n, _ := c.Get("messages").(int)
	c.Set("messages", n+1)
	if hasKB {
		c.Set("kb", true)
	}
}

// SendHTML sends an HTML message right away and returns it, so the caller
// can keep its id for later edits.
func SendHTML(c tele.Context, text string, markup *tele.ReplyMarkup) (*tele.Message, error) {
	msg, err := c.Bot().Send(c.Recipient(), text, htmlOptions(markup))
	if err == nil {
		CountSent(c, markup != nil)
	}
	return msg, err
}

// EditHTML replaces text and inline keyboard of msg in place.
func EditHTML(c tele.Context, msg tele.Editable, text string, markup *tele.ReplyMarkup) (*tele.Message, error) {
	edited, err := c.Bot().Edit(msg, text, htmlOptions(markup))
	if err == nil {
		CountSent(c, markup != nil)
	}
	return edited, err
}

// DeleteAsync queues deletion of msg. Failures are logged by the dispatcher.
func DeleteAsync(c tele.Context, msg tele.Editable) error {
	return sendAsync(c, "delete", "deleteMessage", func() error {
		return c.Bot().Delete(msg)
	})
}
