// Package app wires configuration, storage, services and the Telegram
// adapter into a runnable bot.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/shiftbot/core/bootstrap"
	"github.com/m3rciful/shiftbot/core/logger"
	tg "github.com/m3rciful/shiftbot/core/telegram"
	tgsender "github.com/m3rciful/shiftbot/core/telegram/sender"
	"github.com/m3rciful/shiftbot/core/telegram/state"
	"github.com/m3rciful/shiftbot/internal/bot"
	"github.com/m3rciful/shiftbot/internal/config"
	"github.com/m3rciful/shiftbot/internal/flow"
	"github.com/m3rciful/shiftbot/internal/locale"
	"github.com/m3rciful/shiftbot/internal/production"
	"github.com/m3rciful/shiftbot/internal/storage/sqlstore"
	"github.com/m3rciful/shiftbot/migrations"
)

// App owns the database handle and everything built on top of it.
type App struct {
	cfg     *config.Config
	db      *sqlx.DB
	catalog *locale.Catalog
	bot     *bot.Bot
}

// Services are the domain services sharing one store.
type Services struct {
	Store    production.Store
	Plans    *production.PlanService
	Registry *production.Registry
	Shifts   *production.ShiftTracker
	Idles    *production.IdleTracker
}

// NewServices builds the domain services over store.
func NewServices(store production.Store, cfg *config.Config, now production.Clock) Services {
	loc := cfg.Production.Location()
	return Services{
		Store:    store,
		Plans:    production.NewPlanService(store, now, loc),
		Registry: production.NewRegistry(store, uuid.NewString),
		Shifts:   production.NewShiftTracker(store, now, uuid.NewString, cfg.Production.Density),
		Idles:    production.NewIdleTracker(store, now, uuid.NewString, loc),
	}
}

// New runs the bootstrap pipeline and builds the bot.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	res, err := bootstrap.Run(ctx, bootstrap.Options{
		Config:     cfg.CoreConfig(),
		Database:   cfg.Database,
		Migrations: migrations.FS,
		Modules:    bootstrap.Modules{Seeders: Seeders(cfg)},
	})
	if err != nil {
		return nil, err
	}

	catalog, err := locale.New(cfg.Locale.Path, cfg.Locale.DefaultLang)
	if err != nil {
		_ = res.DB.Close()
		return nil, fmt.Errorf("app: locale: %w", err)
	}

	svc := NewServices(sqlstore.New(res.DB), cfg, time.Now)
	engine := flow.NewEngine(flow.Deps{
		Plans:    svc.Plans,
		Registry: svc.Registry,
		Shifts:   svc.Shifts,
		Idles:    svc.Idles,
		Texts:    catalog,
	}, flow.Options{
		OperatorsPerPage: cfg.Production.OperatorsPerPage,
		OperatorsPerRow:  cfg.Production.OperatorsPerRow,
		BatchSize:        cfg.Production.BatchSize,
	})

	b := bot.New(bot.Deps{
		Engine:   engine,
		Sessions: state.NewSQLManager(res.DB),
		Registry: svc.Registry,
		Texts:    catalog,
	})

	return &App{cfg: cfg, db: res.DB, catalog: catalog, bot: b}, nil
}

// Seeders create the configured lines and admin accounts.
func Seeders(cfg *config.Config) []bootstrap.Seeder {
	return []bootstrap.Seeder{
		bootstrap.SeederFunc(func(ctx context.Context, db *sqlx.DB) error {
			reg := production.NewRegistry(sqlstore.New(db), uuid.NewString)
			for _, name := range cfg.Lines {
				if _, err := reg.EnsureLine(ctx, name); err != nil {
					return fmt.Errorf("line %q: %w", name, err)
				}
			}
			return nil
		}),
		bootstrap.SeederFunc(func(ctx context.Context, db *sqlx.DB) error {
			reg := production.NewRegistry(sqlstore.New(db), uuid.NewString)
			for _, phone := range cfg.Admins {
				acc, created, err := reg.UpsertAccount(ctx, phone, production.RoleAdmin)
				if err != nil {
					return fmt.Errorf("admin account: %w", err)
				}
				if created {
					logger.Info(ctx, "db.seed", "seed.admin", slog.String("account_id", acc.ID))
				}
			}
			return nil
		}),
	}
}

// TelegramRunOptions registers commands and routes on a fresh registry.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	reg := tg.NewRegistry()
	if err := a.bot.Register(reg); err != nil {
		return tg.RunOptions{}, fmt.Errorf("app: register handlers: %w", err)
	}
	core := a.cfg.CoreConfig()
	return tg.RunOptions{
		Config:      core,
		Registry:    reg,
		Middlewares: tg.DefaultMiddlewares(core, a.bot.OnRateLimited),
		Routes:      a.bot.Routes(reg),
		DispatcherOptions: tgsender.Options{
			QueueSize:    core.Sender.QueueSize,
			Workers:      core.Sender.Workers,
			MaxRetries:   core.Sender.MaxRetries,
			RetryBackoff: time.Duration(core.Sender.RetryBackoffMS) * time.Millisecond,
		},
	}, nil
}

// Background reloads the locale overlay on change when enabled and
// otherwise just waits for ctx.
func (a *App) Background(ctx context.Context) error {
	if !a.cfg.Locale.Watch {
		<-ctx.Done()
		return nil
	}
	logger.Info(ctx, "locale", "locale.watch", slog.String("path", a.cfg.Locale.Path))
	return a.catalog.Watch(ctx)
}

// Close releases the database.
func (a *App) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}
