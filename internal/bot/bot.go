// Package bot adapts the conversation engine to Telegram: it decodes updates
// into flow events, serialises turns per chat, renders responses and keeps
// the session in the store.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/m3rciful/shiftbot/core/logger"
	"github.com/m3rciful/shiftbot/core/telegram/format"
	"github.com/m3rciful/shiftbot/core/telegram/helpers"
	"github.com/m3rciful/shiftbot/core/telegram/state"
	"github.com/m3rciful/shiftbot/internal/flow"
	"github.com/m3rciful/shiftbot/internal/production"

	tele "gopkg.in/telebot.v4"
)

const component = "tg.bot"

// Texts resolves localized strings.
type Texts interface {
	Text(lang, key string, args ...any) string
	DefaultLang() string
}

// Deps are the collaborators of the bot.
type Deps struct {
	Engine    *flow.Engine
	Sessions  state.Manager
	Registry  *production.Registry
	Texts     Texts
	Transport Transport
}

// Bot drives one engine step per update.
type Bot struct {
	engine    *flow.Engine
	sessions  state.Manager
	registry  *production.Registry
	texts     Texts
	transport Transport
	locks     *chatLocks
}

// New builds a bot. A nil Transport talks to the Telegram API.
func New(deps Deps) *Bot {
	tr := deps.Transport
	if tr == nil {
		tr = telegramTransport{}
	}
	return &Bot{
		engine:    deps.Engine,
		sessions:  deps.Sessions,
		registry:  deps.Registry,
		texts:     deps.Texts,
		transport: tr,
		locks:     newChatLocks(),
	}
}

type stepFunc func(ctx context.Context, req flow.Request) (flow.Response, error)

// InProgress reports whether the chat has a conversation state.
func (b *Bot) InProgress(c tele.Context) bool {
	chat := c.Chat()
	if chat == nil {
		return false
	}
	sess, err := b.sessions.Load(helpers.BuildContext(c), chat.ID)
	return err == nil && sess.InProgress()
}

// Handle feeds a text message to the engine.
func (b *Bot) Handle(c tele.Context) error {
	return b.dispatch(c, flow.TextEvent{Text: strings.TrimSpace(c.Text())})
}

func (b *Bot) onCallback(c tele.Context) error {
	action, err := decodeAction(c)
	if err != nil {
		logger.Warn(helpers.BuildContext(c), component, "callback.decode",
			slog.String("err", err.Error()),
		)
		return b.transport.Answer(c, b.tr(c, "common/unsupported_action"))
	}
	return b.dispatch(c, flow.ActionEvent{Action: action})
}

func (b *Bot) onContact(c tele.Context) error {
	msg := c.Message()
	if msg == nil || msg.Contact == nil {
		return nil
	}
	return b.dispatch(c, flow.ContactEvent{Phone: msg.Contact.PhoneNumber, UserID: msg.Contact.UserID})
}

func (b *Bot) dispatch(c tele.Context, ev flow.Event) error {
	return b.run(c, func(ctx context.Context, req flow.Request) (flow.Response, error) {
		req.Event = ev
		return b.engine.Handle(ctx, req)
	})
}

// run executes one turn under the chat lock: load, step, deliver, save.
func (b *Bot) run(c tele.Context, step stepFunc) error {
	chat, user := c.Chat(), c.Sender()
	if chat == nil || user == nil {
		return nil
	}
	ctx := helpers.BuildContext(c)

	unlock := b.locks.lock(chat.ID)
	defer unlock()

	sess, err := b.sessions.Load(ctx, chat.ID)
	if err != nil {
		b.fail(c)
		return fmt.Errorf("load session: %w", err)
	}
	ctx = logger.WithShift(ctx, logger.Shift{
		State:      string(sess.State),
		LineID:     sess.Get(flow.KeyLine),
		OperatorID: sess.Get(flow.KeyOperator),
	})
	req := flow.Request{UserID: user.ID, Lang: language(user), Session: sess}
	resp, err := step(ctx, req)
	if err != nil {
		b.fail(c)
		return err
	}
	if c.Callback() != nil {
		if err := b.answerCallback(c, resp); err != nil {
			logger.Debug(ctx, component, "callback.answer", slog.String("err", err.Error()))
		}
	}
	if !resp.Handled {
		return b.unhandled(c, sess)
	}

	next := b.deliver(ctx, c, sess, resp)
	if err := b.sessions.Save(ctx, chat.ID, next); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (b *Bot) answerCallback(c tele.Context, resp flow.Response) error {
	if resp.Handled {
		return b.transport.Answer(c, "")
	}
	return b.transport.Answer(c, b.tr(c, "common/unsupported_action"))
}

func (b *Bot) unhandled(c tele.Context, sess state.Session) error {
	if c.Callback() != nil || c.Message() == nil || c.Message().Contact != nil {
		return nil
	}
	key := "common/use_buttons"
	if !sess.InProgress() {
		key = "common/unknown_command"
	}
	return b.reply(c, key)
}

// reply sends a plain localized line outside the prompt cycle.
func (b *Bot) reply(c tele.Context, key string) error {
	_, err := b.transport.Send(c, format.Escape(b.tr(c, key)), nil)
	return err
}

func (b *Bot) fail(c tele.Context) {
	if err := b.reply(c, "common/error"); err != nil {
		logger.Warn(helpers.BuildContext(c), component, "notify.error", slog.String("err", err.Error()))
	}
}

func (b *Bot) tr(c tele.Context, key string, args ...any) string {
	return b.texts.Text(language(c.Sender()), key, args...)
}

// IsAdmin reports whether the sender is bound to an admin account.
func (b *Bot) IsAdmin(c tele.Context) bool {
	user := c.Sender()
	if user == nil {
		return false
	}
	ctx := helpers.BuildContext(c)
	acc, err := helpers.CurrentUser[production.Account](ctx, b.registry, user.ID)
	if err != nil {
		if !errors.Is(err, production.ErrNotFound) {
			logger.Error(ctx, component, "admin.lookup", slog.String("err", err.Error()))
		}
		return false
	}
	return acc.Role == production.RoleAdmin
}

func language(user *tele.User) string {
	if user == nil {
		return ""
	}
	lang, _, _ := strings.Cut(strings.ToLower(user.LanguageCode), "-")
	return lang
}

// chatLocks hands out one mutex per chat so turns of a chat never overlap.
type chatLocks struct {
	mu    sync.Mutex
	chats map[int64]*sync.Mutex
}

func newChatLocks() *chatLocks {
	return &chatLocks{chats: make(map[int64]*sync.Mutex)}
}

func (l *chatLocks) lock(chatID int64) func() {
	l.mu.Lock()
	m, ok := l.chats[chatID]
	if !ok {
		m = &sync.Mutex{}
		l.chats[chatID] = m
	}
	l.mu.Unlock()
	m.Lock()
	return m.Unlock
}
