package production

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/m3rciful/shiftbot/core/logger"
)

// IdleTracker keeps at most one open idle interval per line.
type IdleTracker struct {
	store Store
	now   Clock
	newID func() string
	loc   *time.Location
}

func NewIdleTracker(store Store, now Clock, newID func() string, loc *time.Location) *IdleTracker {
	if now == nil {
		now = time.Now
	}
	if newID == nil {
		newID = uuid.NewString
	}
	if loc == nil {
		loc = time.Local
	}
	return &IdleTracker{store: store, now: now, newID: newID, loc: loc}
}

// StartIdle opens an idle interval on the line. It fails with
// ErrIdleAlreadyOpen while the previous interval is still running.
func (t *IdleTracker) StartIdle(ctx context.Context, lineID, operatorID string, typ IdleType, reason IdleReason) (IdleEntry, error) {
	if !typ.Allows(reason) {
		return IdleEntry{}, fmt.Errorf("%w: %s/%s", ErrInvalidIdle, typ, reason)
	}
	var entry IdleEntry
	err := t.store.Tx(ctx, func(s Store) error {
		latest, err := s.Idles().Latest(ctx, lineID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		if latest.Open() {
			entry = latest
			return ErrIdleAlreadyOpen
		}
		entry = IdleEntry{
			ID:         t.newID(),
			LineID:     lineID,
			OperatorID: operatorID,
			Start:      t.now(),
			Type:       typ,
			Reason:     reason,
		}
		return s.Idles().Save(ctx, entry)
	})
	if errors.Is(err, ErrIdleAlreadyOpen) {
		return entry, err
	}
	if err != nil {
		return IdleEntry{}, err
	}
	logger.Info(ctx, "service.idles", "idle.started",
		slog.String("line_id", lineID),
		slog.String("idle_type", string(typ)),
		slog.String("reason", string(reason)),
	)
	return entry, nil
}

// FinishIdle closes the running interval of the line and reports whether
// there was one. An already closed interval is returned untouched.
func (t *IdleTracker) FinishIdle(ctx context.Context, lineID string) (IdleEntry, bool, error) {
	latest, err := t.store.Idles().Latest(ctx, lineID)
	if errors.Is(err, ErrNotFound) {
		return IdleEntry{}, false, nil
	}
	if err != nil {
		return IdleEntry{}, false, err
	}
	if !latest.Open() {
		return latest, false, nil
	}
	end := t.now()
	secs := int64(end.Sub(latest.Start) / time.Second)
	if secs < 0 {
		secs = 0
	}
	latest.End = &end
	latest.DurationSec = &secs
	if err := t.store.Idles().Save(ctx, latest); err != nil {
		return IdleEntry{}, false, fmt.Errorf("save idle: %w", err)
	}
	logger.Info(ctx, "service.idles", "idle.finished",
		slog.String("line_id", lineID),
		slog.Int64("duration_s", secs),
	)
	return latest, true, nil
}

// OpenIdle returns the running interval of the line, if any.
func (t *IdleTracker) OpenIdle(ctx context.Context, lineID string) (IdleEntry, bool, error) {
	latest, err := t.store.Idles().Latest(ctx, lineID)
	if errors.Is(err, ErrNotFound) {
		return IdleEntry{}, false, nil
	}
	if err != nil {
		return IdleEntry{}, false, err
	}
	return latest, latest.Open(), nil
}

// IdleDurationToday sums, in seconds, the closed intervals of the line that
// ended today. Open intervals do not count.
func (t *IdleTracker) IdleDurationToday(ctx context.Context, lineID string) (int64, error) {
	return t.IdleDurationOn(ctx, lineID, t.now())
}

// IdleDurationOn sums closed intervals of the line that ended on day.
func (t *IdleTracker) IdleDurationOn(ctx context.Context, lineID string, day time.Time) (int64, error) {
	entries, err := t.store.Idles().ListByLine(ctx, lineID)
	if err != nil {
		return 0, fmt.Errorf("list idles: %w", err)
	}
	var total int64
	for _, e := range entries {
		if e.End == nil || e.DurationSec == nil {
			continue
		}
		if SameDay(*e.End, day, t.loc) {
			total += *e.DurationSec
		}
	}
	return total, nil
}
