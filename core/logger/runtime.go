package logger

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode"
)

type contextKey int

const (
	ctxLogger contextKey = iota
	ctxRID
	ctxUpdate
	ctxHandler
	ctxShift
)

// updateMeta identifies the Telegram update being processed.
type updateMeta struct {
	updateID int
	userID   int64
	chatID   int64
}

// Shift is the conversation position a log line belongs to. Empty fields are
// omitted from the output.
type Shift struct {
	State      string
	LineID     string
	OperatorID string
}

func ensure(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

func valueFrom[T any](ctx context.Context, key contextKey) (T, bool) {
	var zero T
	if ctx == nil {
		return zero, false
	}
	v, ok := ctx.Value(key).(T)
	return v, ok
}

// WithLogger stores log in ctx. A nil logger leaves ctx untouched.
func WithLogger(ctx context.Context, log *slog.Logger) context.Context {
	ctx = ensure(ctx)
	if log == nil {
		return ctx
	}
	return context.WithValue(ctx, ctxLogger, log)
}

// FromContext returns the logger stored in ctx or L.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := valueFrom[*slog.Logger](ctx, ctxLogger); ok && l != nil {
		return l
	}
	return L
}

// WithRID attaches the request correlation id.
func WithRID(ctx context.Context, rid string) context.Context {
	return context.WithValue(ensure(ctx), ctxRID, rid)
}

func RIDFrom(ctx context.Context) string {
	rid, _ := valueFrom[string](ctx, ctxRID)
	return rid
}

// WithUpdateMeta attaches the update, user and chat identifiers.
func WithUpdateMeta(ctx context.Context, updateID int, userID, chatID int64) context.Context {
	return context.WithValue(ensure(ctx), ctxUpdate, updateMeta{updateID: updateID, userID: userID, chatID: chatID})
}

func UpdateIDFrom(ctx context.Context) int {
	m, _ := valueFrom[updateMeta](ctx, ctxUpdate)
	return m.updateID
}

func UserIDFrom(ctx context.Context) int64 {
	m, _ := valueFrom[updateMeta](ctx, ctxUpdate)
	return m.userID
}

func ChatIDFrom(ctx context.Context) int64 {
	m, _ := valueFrom[updateMeta](ctx, ctxUpdate)
	return m.chatID
}

// WithHandler names the Telegram handler serving the update.
func WithHandler(ctx context.Context, handler string) context.Context {
	ctx = ensure(ctx)
	if handler == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxHandler, handler)
}

func HandlerFrom(ctx context.Context) string {
	h, _ := valueFrom[string](ctx, ctxHandler)
	return h
}

// WithShift scopes every later log line to the chat's conversation position.
func WithShift(ctx context.Context, s Shift) context.Context {
	ctx = ensure(ctx)
	if s == (Shift{}) {
		return ctx
	}
	return context.WithValue(ctx, ctxShift, s)
}

func ShiftFrom(ctx context.Context) Shift {
	s, _ := valueFrom[Shift](ctx, ctxShift)
	return s
}

// Sanitize drops control and format runes except tab and newline.
func Sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\t':
			return r
		case unicode.IsControl(r), unicode.Is(unicode.Cf, r):
			return -1
		}
		return r
	}, s)
}

// SanitizeLimit sanitizes s and keeps at most max runes.
func SanitizeLimit(s string, max int) string {
	if max <= 0 {
		return ""
	}
	r := []rune(Sanitize(s))
	if len(r) > max {
		r = r[:max]
	}
	return string(r)
}

// BuildRID returns updateID:chatID:userID.
func BuildRID(updateID int, chatID, userID int64) string {
	return fmt.Sprintf("%d:%d:%d", updateID, chatID, userID)
}

// CompactRID rewrites a BuildRID value as dot-separated base36 segments.
// Anything else is returned trimmed but otherwise unchanged.
func CompactRID(rid string) string {
	rid = strings.TrimSpace(rid)
	parts := strings.Split(rid, ":")
	if len(parts) != 3 {
		return rid
	}
	for i, part := range parts {
		n, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return rid
		}
		parts[i] = strconv.FormatInt(n, 36)
	}
	return strings.Join(parts, ".")
}
