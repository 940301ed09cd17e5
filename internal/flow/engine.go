// Package flow is the shop-floor conversation state machine. It maps
// (state, event) to a new session plus the messages to show, and does no
// transport I/O of its own.
package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/m3rciful/shiftbot/core/logger"
	"github.com/m3rciful/shiftbot/core/telegram/state"
	"github.com/m3rciful/shiftbot/internal/production"
)

// Texts resolves localized message templates.
type Texts interface {
	Text(lang, key string, args ...any) string
}

// Deps are the services the engine drives.
type Deps struct {
	Plans    *production.PlanService
	Registry *production.Registry
	Shifts   *production.ShiftTracker
	Idles    *production.IdleTracker
	Texts    Texts
}

// Options tune list rendering.
type Options struct {
	OperatorsPerPage int
	OperatorsPerRow  int
	BatchSize        float64
}

func (o Options) withDefaults() Options {
	if o.OperatorsPerPage <= 0 {
		o.OperatorsPerPage = 10
	}
	if o.OperatorsPerRow <= 0 {
		o.OperatorsPerRow = 2
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 10
	}
	return o
}

const component = "fsm"

type eventKind int

const (
	kindText eventKind = iota
	kindAction
	kindContact
)

type route struct {
	state state.State
	kind  eventKind
	tag   string
}

type step func(ctx context.Context, t *turn) error

// Engine dispatches events by exact (state, event) match.
type Engine struct {
	plans    *production.PlanService
	registry *production.Registry
	shifts   *production.ShiftTracker
	idles    *production.IdleTracker
	texts    Texts
	opts     Options
	routes   map[route]step
}

// NewEngine wires the dispatch table.
func NewEngine(deps Deps, opts Options) *Engine {
	e := &Engine{
		plans:    deps.Plans,
		registry: deps.Registry,
		shifts:   deps.Shifts,
		idles:    deps.Idles,
		texts:    deps.Texts,
		opts:     opts.withDefaults(),
		routes:   make(map[route]step),
	}
	e.operatorRoutes()
	e.idleRoutes()
	e.adminRoutes()
	e.on(StateContactConfirm, kindContact, "", e.onContact)
	return e
}

func (e *Engine) on(st state.State, kind eventKind, tag string, fn step) {
	e.routes[route{state: st, kind: kind, tag: tag}] = fn
}

func (e *Engine) onAction(st state.State, tag string, fn step) {
	e.on(st, kindAction, tag, fn)
}

func (e *Engine) onText(st state.State, fn step) {
	e.on(st, kindText, "", fn)
}

func routeOf(st state.State, ev Event) (route, bool) {
	switch ev := ev.(type) {
	case TextEvent:
		return route{state: st, kind: kindText}, true
	case ActionEvent:
		return route{state: st, kind: kindAction, tag: ev.Action.Tag}, true
	case ContactEvent:
		return route{state: st, kind: kindContact}, true
	}
	return route{}, false
}

// Matches reports whether the event would be dispatched in the given state.
func (e *Engine) Matches(st state.State, ev Event) bool {
	r, ok := routeOf(st, ev)
	if !ok {
		return false
	}
	_, ok = e.routes[r]
	return ok
}

// Handle runs one step. Events that do not match the current state, or come
// from a user whose role does not own that state, are ignored. A missing
// entity aborts the step with a notice and leaves the session untouched.
func (e *Engine) Handle(ctx context.Context, req Request) (Response, error) {
	from := req.Session.State
	r, ok := routeOf(from, req.Event)
	fn, found := e.routes[r]
	if !ok || !found {
		logger.Debug(ctx, component, "fsm.ignored",
			slog.String("state", string(from)),
			slog.Int64("user_id", req.UserID),
		)
		return Response{Session: req.Session}, nil
	}
	allowed, err := e.roleAllows(ctx, from, req.UserID)
	if err != nil {
		return Response{Session: req.Session}, err
	}
	if !allowed {
		logger.Warn(ctx, component, "fsm.role_denied",
			slog.String("state", string(from)),
			slog.Int64("user_id", req.UserID),
		)
		return Response{Session: req.Session}, nil
	}

	t := e.newTurn(req)
	if err := fn(ctx, t); err != nil {
		if errors.Is(err, production.ErrNotFound) {
			logger.Warn(ctx, component, "fsm.not_found",
				slog.String("state", string(from)),
				slog.String("err", err.Error()),
			)
			return e.recoverMiss(ctx, req), nil
		}
		return Response{Session: req.Session}, fmt.Errorf("%s: %w", from, err)
	}
	logger.Debug(ctx, component, "fsm.transition",
		slog.String("from", string(from)),
		slog.String("to", string(t.sess.State)),
	)
	return t.response(), nil
}

// recoverMiss answers a lookup miss: the notice plus a fresh rendering of
// the screen the user was on. A screen that can no longer be built falls
// back to the role's entry screen.
func (e *Engine) recoverMiss(ctx context.Context, req Request) Response {
	t := e.newTurn(req)
	t.notice("common/not_found")
	err := e.redraw(ctx, t)
	if errors.Is(err, production.ErrNotFound) {
		t = e.newTurn(req)
		t.notice("common/not_found")
		err = e.redrawEntry(ctx, t)
	}
	if err != nil {
		logger.Error(ctx, component, "fsm.redraw_failed",
			slog.String("state", string(req.Session.State)),
			slog.Any("err", err),
		)
		return Response{Session: req.Session, Notices: t.notices, Handled: true}
	}
	return t.response()
}

// redraw renders the prompt of the current state from the session data.
func (e *Engine) redraw(ctx context.Context, t *turn) error {
	switch t.sess.State {
	case StateContactConfirm:
		e.askContact(t)
		return nil
	case StateChooseLine:
		return e.enterLines(ctx, t)
	case StateChooseOperator:
		page, _ := strconv.Atoi(t.get(KeyPage))
		return e.enterOperators(ctx, t, page)
	case StateChooseAction:
		return e.enterAction(ctx, t)
	case StateChooseOrder:
		return e.enterOrders(ctx, t, false)
	case StateChooseBundle:
		return e.enterBundles(ctx, t, false)
	case StateChooseProduct:
		return e.enterProducts(ctx, t, false)
	case StateEnterResult:
		return e.enterResult(ctx, t)
	case StateInputCount:
		return e.enterInputCount(ctx, t)
	case StateIdle, StateIdleOption:
		return e.enterIdleTypes(ctx, t)
	case StateIdleNow:
		lineID, err := t.required(KeyLine)
		if err != nil {
			return err
		}
		running, ok, err := e.idles.OpenIdle(ctx, lineID)
		if err != nil {
			return err
		}
		if !ok {
			return e.resume(ctx, t)
		}
		e.enterIdleNow(t, running)
		return nil
	case StateAddOperator:
		return e.enterOperatorName(ctx, t)
	case StateOperatorRate:
		e.enterOperatorRate(t)
		return nil
	case StateOperatorLine:
		return e.enterOperatorLine(ctx, t)
	case StateAddAccount:
		return e.enterAccountPhone(ctx, t)
	default:
		return e.redrawEntry(ctx, t)
	}
}

// redrawEntry renders the first screen of the flow the state belongs to.
func (e *Engine) redrawEntry(ctx context.Context, t *turn) error {
	if adminStates[t.sess.State] {
		e.enterAdminMain(t)
		return nil
	}
	return e.enterLines(ctx, t)
}

// Start resets the conversation. A bound account goes straight to its
// role's entry screen, anyone else is asked to share a phone contact.
func (e *Engine) Start(ctx context.Context, req Request) (Response, error) {
	t := e.newTurn(req)
	t.sess = state.Session{Data: make(map[string]string)}
	acc, err := e.registry.GetUserByTelegramID(ctx, req.UserID)
	switch {
	case errors.Is(err, production.ErrNotFound):
		e.askContact(t)
		return t.response(), nil
	case err != nil:
		return Response{Session: req.Session}, err
	}
	if err := e.enterRole(ctx, t, acc.Role); err != nil {
		return Response{Session: req.Session}, err
	}
	return t.response(), nil
}

// Admin opens the admin menu for admin accounts and ignores everyone else.
func (e *Engine) Admin(ctx context.Context, req Request) (Response, error) {
	acc, err := e.registry.GetUserByTelegramID(ctx, req.UserID)
	if errors.Is(err, production.ErrNotFound) || (err == nil && acc.Role != production.RoleAdmin) {
		return Response{Session: req.Session}, nil
	}
	if err != nil {
		return Response{Session: req.Session}, err
	}
	t := e.newTurn(req)
	t.sess = state.Session{Data: make(map[string]string)}
	e.enterAdminMain(t)
	return t.response(), nil
}

func (e *Engine) enterRole(ctx context.Context, t *turn, role production.Role) error {
	if role == production.RoleAdmin {
		e.enterAdminMain(t)
		return nil
	}
	return e.enterLines(ctx, t)
}

var adminStates = map[state.State]bool{
	StateAdminMain:    true,
	StateAddOperator:  true,
	StateOperatorRate: true,
	StateOperatorLine: true,
	StateAddAccount:   true,
}

func (e *Engine) roleAllows(ctx context.Context, st state.State, userID int64) (bool, error) {
	if st == StateContactConfirm {
		return true, nil
	}
	acc, err := e.registry.GetUserByTelegramID(ctx, userID)
	if errors.Is(err, production.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if adminStates[st] {
		return acc.Role == production.RoleAdmin, nil
	}
	return acc.Role == production.RoleOperator, nil
}

// turn accumulates the outcome of one step.
type turn struct {
	e        *Engine
	lang     string
	userID   int64
	sess     state.Session
	event    Event
	notices  []string
	messages []Message
}

func (e *Engine) newTurn(req Request) *turn {
	return &turn{
		e:      e,
		lang:   req.Lang,
		userID: req.UserID,
		sess:   req.Session.Clone(),
		event:  req.Event,
	}
}

func (t *turn) tr(key string, args ...any) string {
	return t.e.texts.Text(t.lang, key, args...)
}

func (t *turn) notice(key string, args ...any) {
	t.notices = append(t.notices, t.tr(key, args...))
}

// say queues a message that stays in the chat.
func (t *turn) say(msg Message) {
	t.messages = append(t.messages, msg)
}

// prompt moves to st and queues its prompt.
func (t *turn) prompt(st state.State, msg Message) {
	t.sess.State = st
	t.messages = append(t.messages, msg)
}

func (t *turn) get(key string) string { return t.sess.Get(key) }

func (t *turn) set(key, value string) { t.sess.Set(key, value) }

func (t *turn) del(keys ...string) { t.sess.Del(keys...) }

func (t *turn) action() Action {
	if ev, ok := t.event.(ActionEvent); ok {
		return ev.Action
	}
	return Action{}
}

func (t *turn) text() string {
	if ev, ok := t.event.(TextEvent); ok {
		return ev.Text
	}
	return ""
}

func (t *turn) button(key string, a Action) Button {
	return Button{Label: t.tr(key), Action: a}
}

func (t *turn) response() Response {
	return Response{
		Session:  t.sess,
		Notices:  t.notices,
		Messages: t.messages,
		Handled:  true,
	}
}

// required returns the scratch value for key or a not-found error.
func (t *turn) required(key string) (string, error) {
	v := t.get(key)
	if v == "" {
		return "", fmt.Errorf("%s: %w", key, production.ErrNotFound)
	}
	return v, nil
}
