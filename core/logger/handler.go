package logger

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"
)

type logFormat string

const (
	formatJSON logFormat = "json"
	formatKV   logFormat = "kv"

	timeFormatMillis = "2006-01-02T15:04:05.000Z07:00"
)

type handlerConfig struct {
	level    slog.Leveler
	writer   *queueWriter
	format   logFormat
	keyOrder []string
}

// lineHandler renders each record as one ordered line: the keys listed in
// keyOrder first, everything else alphabetically after them.
type lineHandler struct {
	cfg    handlerConfig
	attrs  []slog.Attr
	groups []string
}

func newLineHandler(cfg handlerConfig) *lineHandler {
	if cfg.level == nil {
		cfg.level = slog.LevelInfo
	}
	if cfg.keyOrder == nil {
		cfg.keyOrder = slices.Clone(defaultKeyOrder)
	}
	return &lineHandler{cfg: cfg}
}

func (h *lineHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.cfg.level.Level()
}

func (h *lineHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.cfg.writer == nil {
		return errors.New("logger: writer not initialized")
	}
	fields := h.fields(ctx, r)
	var (
		line []byte
		err  error
	)
	if h.cfg.format == formatJSON {
		line, err = encodeJSON(fields, h.cfg.keyOrder)
		if err != nil {
			return err
		}
	} else {
		line = encodeKV(fields, h.cfg.keyOrder)
	}
	return h.cfg.writer.Write(append(line, '\n'))
}

func (h *lineHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(slices.Clone(h.attrs), attrs...)
	return &clone
}

func (h *lineHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(slices.Clone(h.groups), name)
	return &clone
}

// fields collects the record, the handler attrs and the context scope into
// one flat map. Attributes logged explicitly win over context values.
func (h *lineHandler) fields(ctx context.Context, r slog.Record) map[string]any {
	fields := make(map[string]any, 16)
	ts := r.Time.UTC()
	fields["ts"] = ts.Truncate(time.Millisecond).Format(timeFormatMillis)
	fields["level"] = normalizeLevel(r.Level.String())
	if h.cfg.format == formatJSON {
		fields["ts_unix_nano"] = ts.UnixNano()
	}

	prefix := strings.Join(h.groups, ".")
	put := func(a slog.Attr) bool {
		flatten(prefix, a, func(k string, v slog.Value) {
			if key, val, ok := normalizeAttr(k, v); ok {
				fields[key] = val
			}
		})
		return true
	}
	for _, a := range h.attrs {
		put(a)
	}
	r.Attrs(put)

	for _, f := range contextFields(ctx) {
		if _, set := fields[f.key]; !set {
			fields[f.key] = f.val
		}
	}

	if rid, ok := fields["rid"].(string); ok {
		if compact := CompactRID(rid); compact != rid {
			if h.cfg.format == formatJSON {
				fields["rid_full"] = rid
			}
			fields["rid"] = compact
		}
	}
	if ev, _ := fields["event"].(string); ev == "" {
		fields["event"] = cmp.Or(r.Message, "unknown")
	}
	if c, _ := fields["component"].(string); c == "" {
		fields["component"] = "app"
	}

	normalizeEnums(fields)
	dropEmpty(fields)
	return fields
}

type contextField struct {
	key string
	val any
}

// contextFields lists the non-zero identifiers carried by ctx.
func contextFields(ctx context.Context) []contextField {
	if ctx == nil {
		return nil
	}
	var out []contextField
	add := func(key string, val any, zero bool) {
		if !zero {
			out = append(out, contextField{key: key, val: val})
		}
	}
	rid := RIDFrom(ctx)
	add("rid", rid, rid == "")
	upd, _ := valueFrom[updateMeta](ctx, ctxUpdate)
	add("update_id", int64(upd.updateID), upd.updateID == 0)
	add("user_id", upd.userID, upd.userID == 0)
	add("chat_id", upd.chatID, upd.chatID == 0)
	handler := HandlerFrom(ctx)
	add("handler", handler, handler == "")
	shift := ShiftFrom(ctx)
	add("state", shift.State, shift.State == "")
	add("line_id", shift.LineID, shift.LineID == "")
	add("operator_id", shift.OperatorID, shift.OperatorID == "")
	return out
}

func flatten(prefix string, attr slog.Attr, fn func(string, slog.Value)) {
	key := attr.Key
	switch {
	case key == "":
		key = prefix
	case prefix != "":
		key = prefix + "." + key
	}
	if attr.Value.Kind() == slog.KindGroup {
		for _, child := range attr.Value.Group() {
			flatten(key, child, fn)
		}
		return
	}
	if key != "" {
		fn(key, attr.Value.Resolve())
	}
}

// durationKey gives duration attributes a _ms suffix: duration becomes
// duration_ms and wait_duration becomes wait_duration_ms.
func durationKey(key string) string {
	if strings.HasSuffix(key, "_ms") {
		return key
	}
	return key + "_ms"
}

func normalizeAttr(key string, val slog.Value) (string, any, bool) {
	switch val.Kind() {
	case slog.KindString:
		return key, strings.TrimSpace(val.String()), true
	case slog.KindBool:
		return key, val.Bool(), true
	case slog.KindInt64:
		return key, val.Int64(), true
	case slog.KindUint64:
		if u := val.Uint64(); u <= math.MaxInt64 {
			return key, int64(u), true
		}
		return key, val.Uint64(), true
	case slog.KindFloat64:
		return key, val.Float64(), true
	case slog.KindDuration:
		return durationKey(key), RoundMS(val.Duration()).Milliseconds(), true
	case slog.KindTime:
		return key, val.Time().UTC().Format(time.RFC3339Nano), true
	}
	switch x := val.Any().(type) {
	case nil:
		return key, nil, false
	case error:
		return key, x.Error(), true
	case string:
		return key, strings.TrimSpace(x), true
	case time.Duration:
		return durationKey(key), RoundMS(x).Milliseconds(), true
	case fmt.Stringer:
		return key, x.String(), true
	default:
		return key, fmt.Sprint(x), true
	}
}

func normalizeEnums(fields map[string]any) {
	if s, ok := fields["status"].(string); ok && s != "" {
		fields["status"], _ = normalizeStatus(s)
	}
	if o, ok := fields["outcome"].(string); ok && o != "" {
		if v, valid := normalizeOutcome(o); valid {
			fields["outcome"] = v
		} else {
			delete(fields, "outcome")
		}
	}
}

func dropEmpty(fields map[string]any) {
	for k, v := range fields {
		if v == nil || v == "" {
			delete(fields, k)
		}
	}
}

// orderedKeys returns the keys present in fields: those in order first, the
// rest sorted.
func orderedKeys(fields map[string]any, order []string) []string {
	keys := make([]string, 0, len(fields))
	seen := make(map[string]bool, len(fields))
	for _, k := range order {
		if _, ok := fields[k]; ok && !seen[k] {
			keys = append(keys, k)
			seen[k] = true
		}
	}
	head := len(keys)
	for k := range fields {
		if !seen[k] {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys[head:])
	return keys
}

func encodeJSON(fields map[string]any, order []string) ([]byte, error) {
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range orderedKeys(fields, order) {
		data, err := json.Marshal(fields[k])
		if err != nil {
			return nil, fmt.Errorf("logger: encode %s: %w", k, err)
		}
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Quote(k))
		b.WriteByte(':')
		b.Write(data)
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}

func encodeKV(fields map[string]any, order []string) []byte {
	var b strings.Builder
	for i, k := range orderedKeys(fields, order) {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(kvValue(fields[k]))
	}
	return []byte(b.String())
}

// kvValue prints floats without exponents so quantities stay readable.
func kvValue(val any) string {
	var s string
	switch v := val.(type) {
	case string:
		s = v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool, int64, uint64:
		return fmt.Sprint(v)
	default:
		s = fmt.Sprint(v)
	}
	if strings.ContainsFunc(s, needsQuote) {
		return strconv.Quote(s)
	}
	return s
}

func needsQuote(r rune) bool {
	return r <= ' ' || r == '=' || r == '"'
}
