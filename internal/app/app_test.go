package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/shiftbot/core/config"
	coredatabase "github.com/m3rciful/shiftbot/core/database"
	"github.com/m3rciful/shiftbot/internal/config"
	"github.com/m3rciful/shiftbot/internal/production"
	"github.com/m3rciful/shiftbot/internal/storage/sqlstore"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{
		Config: coreconfig.Config{
			Telegram: coreconfig.TelegramConfig{Token: "123:abc"},
			Sender:   coreconfig.SenderConfig{Workers: 2, RetryBackoffMS: 250},
		},
		Database: coredatabase.Config{Driver: coredatabase.DriverSQLite, Path: filepath.Join(t.TempDir(), "app.db")},
		Lines:    []string{"Line 1", "Line 2"},
		Admins:   []string{"79001112233"},
	}
	require.NoError(t, cfg.Normalize())
	return cfg
}

func TestNewSeedsAndWires(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	a, err := New(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	store := sqlstore.New(a.db)
	lines, err := store.Lines().List(ctx)
	require.NoError(t, err)
	assert.Len(t, lines, 2)
	acc, err := store.Accounts().FindByPhone(ctx, "79001112233")
	require.NoError(t, err)
	assert.Equal(t, production.RoleAdmin, acc.Role)

	opts, err := a.TelegramRunOptions()
	require.NoError(t, err)
	assert.Same(t, cfg.CoreConfig(), opts.Config)
	assert.NotEmpty(t, opts.Routes)
	assert.NotEmpty(t, opts.Middlewares)
	assert.Equal(t, 2, opts.DispatcherOptions.Workers)
	assert.Equal(t, "250ms", opts.DispatcherOptions.RetryBackoff.String())
}

func TestSeedersAreRepeatable(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	a, err := New(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	for _, s := range Seeders(cfg) {
		require.NoError(t, s.Seed(ctx, a.db))
	}
	lines, err := sqlstore.New(a.db).Lines().List(ctx)
	require.NoError(t, err)
	assert.Len(t, lines, 2)
}

func TestBackgroundStopsWithContext(t *testing.T) {
	cfg := testConfig(t)
	a := &App{cfg: cfg}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, a.Background(ctx))
	assert.NoError(t, a.Close())
}
