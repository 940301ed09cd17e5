package helpers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

func TestParseFlexibleDate(t *testing.T) {
	loc := time.FixedZone("MSK", 3*3600)
	for _, in := range []string{"2024-03-05", "2024-3-5", "05.03.2024", "5.3.2024", " 2024-03-05 "} {
		got, ok := ParseFlexibleDate(in, loc)
		require.True(t, ok, in)
		assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, loc), got, in)
	}

	_, ok := ParseFlexibleDate("", loc)
	assert.False(t, ok)
	_, ok = ParseFlexibleDate("yesterday", loc)
	assert.False(t, ok)
}

func TestCountSent(t *testing.T) {
	bot, err := tele.NewBot(tele.Settings{Offline: true})
	require.NoError(t, err)
	c := bot.NewContext(tele.Update{ID: 1})

	CountSent(c, false)
	CountSent(c, true)
	n, _ := c.Get("messages").(int)
	assert.Equal(t, 2, n)
	assert.Equal(t, true, c.Get("kb"))
}
