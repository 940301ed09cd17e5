package router

import (
	"time"

	tg "github.com/m3rciful/shiftbot/core/telegram"
	"github.com/m3rciful/shiftbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// FSM is the conversation driver text updates are handed to while a
// conversation is in progress.
type FSM interface {
	InProgress(c tele.Context) bool
	Handle(c tele.Context) error
}

// TextOptions controls fallback behaviour for text/document updates.
type TextOptions struct {
	UnknownText     tele.HandlerFunc
	UnknownDocument tele.HandlerFunc
}

// TextRoutes builds handlers for text and document routing. Text goes to the
// FSM first, then to commands typed without a menu, then to fallbacks.
func TextRoutes(fsm FSM, reg *tg.Registry, opts TextOptions) []tg.Route {
	handler := func(c tele.Context) error {
		start := time.Now()
		text := c.Text()

		if fsm != nil && fsm.InProgress(c) {
			return handleWithSummary(c, "fsm", start, "", "", func() error {
				return fsm.Handle(c)
			})
		}

		if reg != nil {
			if key, cmd, ok := reg.LookupCommand(text); ok && cmd.Handler != nil && !cmd.AdminOnly {
				name := normalizeHandlerName(key)
				return handleWithSummary(c, name, start, "", "", func() error {
					return cmd.Handler(c)
				})
			}
			if fb := reg.TextFallback(); fb != nil {
				return handleWithSummary(c, "fallback", start, "", "", func() error {
					return fb(c)
				})
			}
		}

		if opts.UnknownText != nil {
			return handleWithSummary(c, "unknown_text", start, "", "", func() error {
				return opts.UnknownText(c)
			})
		}

		logHandlerSummary(c, "unknown_text", start, "skip", "ok", nil)
		return nil
	}

	docHandler := func(c tele.Context) error {
		start := time.Now()
		if opts.UnknownDocument != nil {
			return handleWithSummary(c, "unexpected_document", start, "", "", func() error {
				return opts.UnknownDocument(c)
			})
		}
		logHandlerSummary(c, "unexpected_document", start, "skip", "ok", nil)
		return nil
	}

	return []tg.Route{
		{
			Endpoint: tele.OnText,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
		},
		{
			Endpoint: tele.OnDocument,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(docHandler)),
		},
	}
}

// ContactRoute routes shared contacts to h, behind gate when one is given
// (usually middleware.State).
func ContactRoute(h tele.HandlerFunc, gate tele.MiddlewareFunc) tg.Route {
	handler := func(c tele.Context) error {
		start := time.Now()
		return handleWithSummary(c, "contact", start, "", "", func() error {
			return h(c)
		})
	}
	wrapped := tele.HandlerFunc(handler)
	if gate != nil {
		wrapped = gate(wrapped)
	}
	return tg.Route{
		Endpoint: tele.OnContact,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(wrapped)),
	}
}
