package callbacks

import (
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"
)

// PayloadInt parses callback payload as int.
func PayloadInt(c tele.Context) (int, error) {
	p := CallbackPayload(c)
	return strconv.Atoi(p)
}

// PayloadFloat64 parses callback payload as float64.
func PayloadFloat64(c tele.Context) (float64, error) {
	p := CallbackPayload(c)
	return strconv.ParseFloat(p, 64)
}

// PayloadPair splits the callback payload into exactly two non-empty parts.
func PayloadPair(c tele.Context, sep string) (string, string, error) {
	a, b, ok := strings.Cut(CallbackPayload(c), sep)
	if !ok || a == "" || b == "" {
		return "", "", strconv.ErrSyntax
	}
	return a, b, nil
}
