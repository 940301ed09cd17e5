package format_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/m3rciful/shiftbot/core/telegram/format"
)

func TestEscape(t *testing.T) {
	assert.Equal(t, "a &lt;b&gt; &amp; c", format.Escape("a <b> & c"))
}

func TestQuantity(t *testing.T) {
	assert.Equal(t, "10", format.Quantity(10))
	assert.Equal(t, "2.5", format.Quantity(2.5))
	assert.Equal(t, "0.00157", format.Quantity(0.00157))
}

func TestClock(t *testing.T) {
	ts := time.Date(2024, 3, 1, 6, 5, 0, 0, time.UTC)
	assert.Equal(t, "06:05", format.Clock(ts, time.UTC))
	assert.Equal(t, "09:05", format.Clock(ts, time.FixedZone("MSK", 3*3600)))
}

func TestDeref(t *testing.T) {
	n := int64(90)
	assert.Equal(t, int64(90), format.Deref(&n, 0))
	assert.Equal(t, int64(0), format.Deref[int64](nil, 0))
}
