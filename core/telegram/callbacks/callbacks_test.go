package callbacks_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/shiftbot/core/telegram/callbacks"
)

func callbackContext(t *testing.T, cb *tele.Callback) tele.Context {
	t.Helper()
	bot, err := tele.NewBot(tele.Settings{Offline: true})
	require.NoError(t, err)
	return bot.NewContext(tele.Update{Callback: cb})
}

func TestParseCallbackData(t *testing.T) {
	unique, payload := callbacks.ParseCallbackData(&tele.Callback{Data: "\fidle_reason|scheduled:repair"})
	assert.Equal(t, "idle_reason", unique)
	assert.Equal(t, "scheduled:repair", payload)

	unique, payload = callbacks.ParseCallbackData(&tele.Callback{Data: "\freturn"})
	assert.Equal(t, "return", unique)
	assert.Empty(t, payload)

	unique, payload = callbacks.ParseCallbackData(nil)
	assert.Empty(t, unique)
	assert.Empty(t, payload)
}

func TestPayloadParsers(t *testing.T) {
	c := callbackContext(t, &tele.Callback{Data: "\fpage|2"})
	assert.Equal(t, "page", callbacks.CallbackKey(c))
	n, err := callbacks.PayloadInt(c)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	c = callbackContext(t, &tele.Callback{Data: "\fbatch|7.5"})
	f, err := callbacks.PayloadFloat64(c)
	require.NoError(t, err)
	assert.Equal(t, 7.5, f)

	c = callbackContext(t, &tele.Callback{Data: "\fidle_reason|unscheduled:other"})
	a, b, err := callbacks.PayloadPair(c, ":")
	require.NoError(t, err)
	assert.Equal(t, "unscheduled", a)
	assert.Equal(t, "other", b)

	c = callbackContext(t, &tele.Callback{Data: "\fidle_reason|broken"})
	_, _, err = callbacks.PayloadPair(c, ":")
	assert.Error(t, err)
}

func TestCallbackKeyPrefersUnique(t *testing.T) {
	c := callbackContext(t, &tele.Callback{Unique: "order", Data: "o-1"})
	assert.Equal(t, "order", callbacks.CallbackKey(c))
}
