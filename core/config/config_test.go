package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDefaults(t *testing.T) {
	cfg := &Config{Telegram: TelegramConfig{Token: "t", RunMode: "polling"}}
	require.NoError(t, Normalize(cfg))
	assert.Equal(t, RunModeLongpoll, cfg.Telegram.RunMode)

	cfg = &Config{Telegram: TelegramConfig{Token: "t"}, RateLimit: RateLimitConfig{ExcludeUpdates: []string{" Callback "}}}
	require.NoError(t, Normalize(cfg))
	assert.Equal(t, []string{UpdateCallback}, cfg.RateLimit.ExcludeUpdates)
}

func TestNormalizeRejects(t *testing.T) {
	cases := map[string]Config{
		"no token":        {},
		"bad mode":        {Telegram: TelegramConfig{Token: "t", RunMode: "push"}},
		"webhook no url":  {Telegram: TelegramConfig{Token: "t", RunMode: RunModeWebhook}},
		"bad exclusion":   {Telegram: TelegramConfig{Token: "t"}, RateLimit: RateLimitConfig{ExcludeUpdates: []string{"poll"}}},
		"negative sender": {Telegram: TelegramConfig{Token: "t"}, Sender: SenderConfig{Workers: -1}},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, Normalize(&cfg))
		})
	}
}

func TestDecodeOverlaysEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("telegram:\n  token: from-file\n  run_mode: longpoll\nsender:\n  workers: 2\n"), 0o600))
	t.Setenv("TELEGRAM_BOT_TOKEN", "from-env")

	var cfg Config
	require.NoError(t, Decode(path, &cfg))
	assert.Equal(t, "from-env", cfg.Telegram.Token)
	assert.Equal(t, 2, cfg.Sender.Workers)
}

func TestDecodeMissingFile(t *testing.T) {
	var cfg Config
	assert.Error(t, Decode(filepath.Join(t.TempDir(), "nope.yaml"), &cfg))
}
