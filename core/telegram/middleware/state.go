package middleware

import (
	"context"
	"log/slog"

	"github.com/m3rciful/shiftbot/core/logger"
	tghelpers "github.com/m3rciful/shiftbot/core/telegram/helpers"
	"github.com/m3rciful/shiftbot/core/telegram/state"

	tele "gopkg.in/telebot.v4"
)

// StateGetter is the minimal interface required from a session manager.
type StateGetter interface {
	Load(ctx context.Context, chatID int64) (state.Session, error)
}

// State returns a middleware that passes the update on only while the chat's
// session is in one of the expected states. Other updates are dropped.
func State(mgr StateGetter, expected ...state.State) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			chat := c.Chat()
			if chat == nil {
				return nil
			}
			ctx := tghelpers.BuildContext(c)
			sess, err := mgr.Load(ctx, chat.ID)
			if err != nil {
				return err
			}
			for _, st := range expected {
				if sess.State == st {
					logger.TG.LogAttrs(ctx, slog.LevelDebug, "fsm.match",
						slog.String("state", string(sess.State)),
						slog.String("rid", logger.RIDFrom(ctx)),
					)
					return next(c)
				}
			}
			logger.TG.LogAttrs(ctx, slog.LevelDebug, "fsm.skip",
				slog.String("state", string(sess.State)),
				slog.Int("expected", len(expected)),
				slog.String("rid", logger.RIDFrom(ctx)),
			)
			return nil
		}
	}
}
