package bot

import (
	"context"
	"fmt"

	tg "github.com/m3rciful/shiftbot/core/telegram"
	"github.com/m3rciful/shiftbot/core/telegram/commands"
	"github.com/m3rciful/shiftbot/core/telegram/middleware"
	"github.com/m3rciful/shiftbot/core/telegram/router"
	"github.com/m3rciful/shiftbot/core/telegram/ui"
	"github.com/m3rciful/shiftbot/internal/flow"

	tele "gopkg.in/telebot.v4"
)

var _ ui.FallbackProvider = (*Bot)(nil)

// Register adds the bot commands and one callback handler per action tag.
// Command descriptions use the default language.
func (b *Bot) Register(reg *tg.Registry) error {
	lang := b.texts.DefaultLang()
	reg.RegisterCommand("/start", commands.Command{
		Handler:     b.onStart,
		Description: b.texts.Text(lang, "command/start"),
	})
	reg.RegisterCommand("/reset", commands.Command{
		Handler:     b.onReset,
		Description: b.texts.Text(lang, "command/reset"),
	})
	reg.RegisterCommand("/admin", commands.Command{
		Handler:     b.onAdmin,
		Description: b.texts.Text(lang, "command/admin"),
		AdminOnly:   true,
	})
	reg.RegisterCommand("/ping", commands.Command{
		Handler:     b.onPing,
		Description: b.texts.Text(lang, "command/ping"),
		Hidden:      true,
	})
	for _, tag := range flow.Tags() {
		if err := reg.RegisterCallback(tag, b.onCallback); err != nil {
			return fmt.Errorf("register callback %s: %w", tag, err)
		}
	}
	reg.SetCallbackNotFound(b.UnknownCallback())
	return nil
}

// Routes returns every handler the bot needs, wrapped with the shared
// logging and recovery middleware.
func (b *Bot) Routes(reg *tg.Registry) []tg.Route {
	routes := router.CommandRoutes(reg, router.CommandRouteOptions{
		IsAdmin:       b.IsAdmin,
		OnAdminReject: b.onAdminReject,
	})
	routes = append(routes, router.TextRoutes(b, reg, router.TextOptions{
		UnknownText:     b.UnknownText(),
		UnknownDocument: b.UnknownDocument(),
	})...)
	routes = append(routes,
		router.CallbackRoute(reg, router.CallbackOptions{NotFound: b.UnknownCallback()}),
		router.ContactRoute(b.onContact, middleware.State(b.sessions, flow.StateContactConfirm)),
	)
	return routes
}

func (b *Bot) onStart(c tele.Context) error {
	return b.run(c, b.engine.Start)
}

func (b *Bot) onReset(c tele.Context) error {
	return b.run(c, func(ctx context.Context, req flow.Request) (flow.Response, error) {
		if err := b.sessions.Clear(ctx, c.Chat().ID); err != nil {
			return flow.Response{Session: req.Session}, fmt.Errorf("clear session: %w", err)
		}
		return b.engine.Start(ctx, req)
	})
}

func (b *Bot) onAdmin(c tele.Context) error {
	return b.run(c, b.engine.Admin)
}

func (b *Bot) onPing(c tele.Context) error {
	return b.reply(c, "common/pong")
}

func (b *Bot) onAdminReject(c tele.Context) error {
	return b.reply(c, "common/admin_only")
}

// OnRateLimited tells a throttled user to slow down. Only button presses get
// a reply; extra text messages are dropped silently.
func (b *Bot) OnRateLimited(c tele.Context) error {
	if c.Callback() == nil {
		return nil
	}
	return b.transport.Answer(c, b.tr(c, "common/rate_limited"))
}

// UnknownText answers text that no conversation or command expects.
func (b *Bot) UnknownText() tele.HandlerFunc {
	return func(c tele.Context) error {
		return b.reply(c, "common/unknown_command")
	}
}

// UnknownDocument answers uploads; the bot takes none.
func (b *Bot) UnknownDocument() tele.HandlerFunc {
	return func(c tele.Context) error {
		return b.reply(c, "common/use_buttons")
	}
}

// UnknownCallback answers buttons with an unknown tag.
func (b *Bot) UnknownCallback() tele.HandlerFunc {
	return func(c tele.Context) error {
		return b.transport.Answer(c, b.tr(c, "common/unsupported_action"))
	}
}
