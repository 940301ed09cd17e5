package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coredatabase "github.com/m3rciful/shiftbot/core/database"
	"github.com/m3rciful/shiftbot/internal/production"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
telegram:
  token: t
database:
  driver: sqlite
  path: test.db
lines: ["Line 1", " ", "Line 2"]
admins: ["+7 (900) 111-22-33"]
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "longpoll", cfg.Telegram.RunMode)
	assert.Equal(t, coredatabase.DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, 1, cfg.Database.MaxConnections)
	assert.Equal(t, "ru", cfg.Locale.DefaultLang)
	assert.Equal(t, production.DefaultDensity, cfg.Production.Density)
	assert.Equal(t, 10, cfg.Production.OperatorsPerPage)
	assert.Equal(t, 2, cfg.Production.OperatorsPerRow)
	assert.Equal(t, 10.0, cfg.Production.BatchSize)
	assert.Equal(t, "UTC", cfg.Production.Location().String())
	assert.Equal(t, 30, cfg.Ingest.TimeoutSeconds)
	assert.Equal(t, []string{"Line 1", "Line 2"}, cfg.Lines)
	assert.Equal(t, []string{"79001112233"}, cfg.Admins)
	assert.Same(t, &cfg.Config, cfg.CoreConfig())
}

func TestLoadEnvOverlay(t *testing.T) {
	path := writeConfig(t, "telegram:\n  token: file\nproduction:\n  timezone: Europe/Moscow\n")
	t.Setenv("TELEGRAM_BOT_TOKEN", "env")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("LINES", "A,B")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env", cfg.Telegram.Token)
	assert.Equal(t, coredatabase.DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, []string{"A", "B"}, cfg.Lines)
	assert.Equal(t, "Europe/Moscow", cfg.Production.Location().String())
}

func TestLoadRejects(t *testing.T) {
	cases := map[string]string{
		"no token":     "database:\n  driver: sqlite\n",
		"bad driver":   "telegram:\n  token: t\ndatabase:\n  driver: oracle\n",
		"bad timezone": "telegram:\n  token: t\nproduction:\n  timezone: Mars/Olympus\n",
		"bad admin":    "telegram:\n  token: t\nadmins: [\"12ab\"]\n",
		"negative":     "telegram:\n  token: t\nproduction:\n  batch_size: -1\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoadStoreSkipsTelegram(t *testing.T) {
	cfg, err := LoadStore(writeConfig(t, "database:\n  driver: sqlite\n"))
	require.NoError(t, err)
	assert.Equal(t, "shiftbot.db", cfg.Database.Path)
}
