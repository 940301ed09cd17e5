// Command planimport loads daily plans into the shiftbot database and runs
// maintenance tasks against it.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/m3rciful/shiftbot/core/bootstrap"
	"github.com/m3rciful/shiftbot/core/buildinfo"
	"github.com/m3rciful/shiftbot/core/logger"
	tg "github.com/m3rciful/shiftbot/core/telegram"
	"github.com/m3rciful/shiftbot/core/telegram/helpers"
	"github.com/m3rciful/shiftbot/internal/config"
	"github.com/m3rciful/shiftbot/internal/ingest"
	"github.com/m3rciful/shiftbot/internal/production"
	"github.com/m3rciful/shiftbot/internal/storage/sqlstore"
	"github.com/m3rciful/shiftbot/migrations"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	_ = logger.Shutdown()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// env carries what every subcommand needs once the database is open.
type env struct {
	cfg   *config.Config
	store production.Store
	close func() error
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var configPath string

	open := func(ctx context.Context) (*env, error) {
		cfg, err := config.LoadStore(configPath)
		if err != nil {
			return nil, fmt.Errorf("load config %q: %w", configPath, err)
		}
		res, err := bootstrap.Run(ctx, bootstrap.Options{
			Config:     cfg.CoreConfig(),
			Database:   cfg.Database,
			Migrations: migrations.FS,
		})
		if err != nil {
			return nil, err
		}
		return &env{cfg: cfg, store: sqlstore.New(res.DB), close: res.DB.Close}, nil
	}

	root := &cobra.Command{
		Use:           "planimport",
		Short:         "Load daily plans and maintain the shiftbot database",
		Version:       fmt.Sprintf("%s (%s)", buildinfo.Version, buildinfo.Commit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	defaultConfig := os.Getenv("CONFIG_PATH")
	if defaultConfig == "" {
		defaultConfig = "config.yaml"
	}
	root.PersistentFlags().StringVar(&configPath, "config", defaultConfig, "path to config YAML")
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.AddCommand(
		importCmd(open),
		validateCmd(),
		resetCmd(open),
		accountCmd(open),
	)
	return root.ExecuteContext(ctx)
}

type opener func(ctx context.Context) (*env, error)

func importCmd(open opener) *cobra.Command {
	var file, url, date string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a plan document for one day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if file != "" && url != "" {
				return errors.New("--file and --url are mutually exclusive")
			}
			ctx := cmd.Context()
			e, err := open(ctx)
			if err != nil {
				return err
			}
			defer e.close()
			if file == "" && url == "" {
				url = e.cfg.Ingest.URL
			}
			if file == "" && url == "" {
				return errors.New("one of --file, --url or ingest.url is required")
			}

			loc := e.cfg.Production.Location()
			day := time.Now().In(loc)
			if date != "" {
				parsed, ok := helpers.ParseFlexibleDate(date, loc)
				if !ok {
					return fmt.Errorf("invalid --date %q", date)
				}
				day = parsed
			}

			var src ingest.Source = ingest.FileSource{Path: file}
			if url != "" {
				src = ingest.HTTPSource{URL: url, Client: tg.BuildHTTPClient(), Timeout: e.cfg.Ingest.Timeout()}
			}
			sum, err := ingest.NewImporter(e.store, loc, nil).Run(ctx, src, day)
			if err != nil {
				printViolations(cmd.ErrOrStderr(), err)
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported plan %s for %s: %d orders, %d bundles, %d products, total mass %.2f\n",
				sum.PlanID, sum.Date.Format(production.DateLayout), sum.Orders, sum.Bundles, sum.Products, sum.TotalMass)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "plan document on disk")
	cmd.Flags().StringVar(&url, "url", "", "plan API endpoint (defaults to ingest.url when --file is absent)")
	cmd.Flags().StringVar(&date, "date", "", "plan day, YYYY-MM-DD or DD.MM.YYYY (default today)")
	return cmd
}

func validateCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a plan document without importing it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			doc, err := ingest.FileSource{Path: file}.Fetch(cmd.Context())
			if err == nil {
				err = doc.Validate()
			}
			if err != nil {
				printViolations(cmd.ErrOrStderr(), err)
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %d orders\n", len(doc.Orders))
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "plan document on disk")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func resetCmd(open opener) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every plan and clear line idle logs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("refusing to reset without --yes")
			}
			ctx := cmd.Context()
			e, err := open(ctx)
			if err != nil {
				return err
			}
			defer e.close()
			err = e.store.Tx(ctx, func(s production.Store) error {
				if err := s.Plans().DeleteAll(ctx); err != nil {
					return fmt.Errorf("delete plans: %w", err)
				}
				if err := s.Idles().DeleteAll(ctx); err != nil {
					return fmt.Errorf("delete idles: %w", err)
				}
				return nil
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "plans and idle logs removed")
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the reset")
	return cmd
}

func accountCmd(open opener) *cobra.Command {
	var phone, role string
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Create an account or change its role",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r := production.Role(strings.ToLower(strings.TrimSpace(role)))
			if !r.Valid() {
				return fmt.Errorf("--role must be %q or %q", production.RoleOperator, production.RoleAdmin)
			}
			ctx := cmd.Context()
			e, err := open(ctx)
			if err != nil {
				return err
			}
			defer e.close()
			acc, created, err := production.NewRegistry(e.store, nil).UpsertAccount(ctx, phone, r)
			if err != nil {
				return err
			}
			verb := "updated"
			if created {
				verb = "created"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s account %s (%s)\n", verb, acc.Phone, acc.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&phone, "phone", "", "phone number, 11-13 digits")
	cmd.Flags().StringVar(&role, "role", string(production.RoleOperator), "operator or admin")
	_ = cmd.MarkFlagRequired("phone")
	return cmd
}

func printViolations(w io.Writer, err error) {
	var verr *ingest.ValidationError
	if !errors.As(err, &verr) {
		return
	}
	for _, v := range verr.Violations {
		fmt.Fprintln(w, "  "+v.String())
	}
}
