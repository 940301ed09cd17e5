package bootstrap

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/shiftbot/core/config"
	coredatabase "github.com/m3rciful/shiftbot/core/database"
	"github.com/m3rciful/shiftbot/core/logger"
)

// Options control the generic bootstrap pipeline shared between bots.
type Options struct {
	Config     *coreconfig.Config
	Database   coredatabase.Config
	Migrations fs.FS
	Modules    Modules

	LoggerInit func(*coreconfig.Config) error
	Connect    func(coredatabase.Config) (*sqlx.DB, error)
	Migrate    func(coredatabase.Config, fs.FS) error
}

// Result exposes infrastructure initialized by the bootstrap pipeline.
type Result struct {
	DB *sqlx.DB
}

// Run initializes the logger, applies migrations, connects to the database
// and runs the seeders in order.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("bootstrap: nil config provided")
	}

	loggerInit := opts.LoggerInit
	if loggerInit == nil {
		loggerInit = logger.InitLogger
	}
	if err := loggerInit(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	if opts.Migrations != nil {
		migrate := opts.Migrate
		if migrate == nil {
			migrate = coredatabase.RunMigrations
		}
		if err := migrate(opts.Database, opts.Migrations); err != nil {
			return nil, fmt.Errorf("bootstrap: migrations failed: %w", err)
		}
	}

	connect := opts.Connect
	if connect == nil {
		connect = coredatabase.Connect
	}
	db, err := connect(opts.Database)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
	}

	if err := runSeeders(ctx, db, opts.Modules.Seeders); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Result{DB: db}, nil
}

func runSeeders(ctx context.Context, db *sqlx.DB, seeders []Seeder) error {
	for i, s := range seeders {
		if s == nil {
			continue
		}
		start := time.Now()
		if err := s.Seed(ctx, db); err != nil {
			logger.SEED.Error("seed failed",
				slog.String("event", "db.seed"),
				slog.Int("seeder", i),
				slog.String("err", err.Error()),
			)
			return fmt.Errorf("bootstrap: seeder %d failed: %w", i, err)
		}
		logger.SEED.Debug("seed applied",
			slog.String("event", "db.seed"),
			slog.Int("seeder", i),
			slog.Duration("duration", logger.RoundMS(time.Since(start))),
		)
	}
	return nil
}
