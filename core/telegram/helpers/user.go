package helpers

import "context"

// UserLookup finds the account bound to a Telegram user id.
type UserLookup[T any] interface {
	GetUserByTelegramID(ctx context.Context, telegramID int64) (T, error)
}

// CurrentUser returns the account bound to tgID. A nil lookup yields the
// zero account and no error.
func CurrentUser[T any](ctx context.Context, lookup UserLookup[T], tgID int64) (T, error) {
	if lookup == nil {
		var zero T
		return zero, nil
	}
	return lookup.GetUserByTelegramID(ctx, tgID)
}
