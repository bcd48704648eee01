package main

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vetpms/backend/internal/infrastructure/config"
	"github.com/vetpms/backend/internal/infrastructure/logger"
	"github.com/vetpms/backend/internal/infrastructure/migration"
)

// sourceDir is where create and list work when --path is not given
const sourceDir = "migrations"

// errSchemaBehind makes status exit 2 so deploy scripts can gate on it
var errSchemaBehind = errors.New("schema is behind or dirty")

type migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	GoTo(version uint) error
	Status() (migration.Status, error)
	Force(version int) error
	Close() error
}

type options struct {
	path       string
	configPath string
	logLevel   string
}

func (o options) dir() string {
	if o.path == "" {
		return sourceDir
	}
	return o.path
}

type opener func(opts options, log *zap.Logger) (migrator, error)

// openMigrator connects to the configured postgres database. An empty --path
// runs the migrations embedded in the binary.
func openMigrator(opts options, log *zap.Logger) (migrator, error) {
	cfg, err := config.LoadFrom(opts.configPath)
	if err != nil {
		return nil, err
	}
	if cfg.Database.Driver != "postgres" {
		return nil, fmt.Errorf("driver %q has no SQL migrations; only postgres is migrated", cfg.Database.Driver)
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to reach database %s: %w", cfg.Database.DBName, err)
	}

	m, err := migration.New(db, opts.path, log)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	// closing the migrator closes db
	return m, nil
}

func newRootCmd(open opener) *cobra.Command {
	opts := options{}
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the postgres schema",
		Long: `migrate applies and inspects the SQL migrations of the allocation service.

Connection settings come from config.toml, .env and VETPMS_DATABASE_*
environment variables, the same as the server.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.path, "path", "", "migrations directory (default: embedded for database commands, ./migrations for create and list)")
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default: ./config.toml)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	withDB := func(fn func(m migrator, log *zap.Logger, args []string, out io.Writer) error) func(*cobra.Command, []string) error {
		return func(c *cobra.Command, args []string) error {
			log, err := logger.New(&logger.Config{Level: opts.logLevel, Format: "console", Output: "stderr"})
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			defer func() { _ = log.Sync() }()

			m, err := open(opts, log)
			if err != nil {
				return err
			}
			defer func() { _ = m.Close() }()
			return fn(m, log, args, c.OutOrStdout())
		}
	}

	cmd.AddCommand(
		upCmd(withDB),
		downCmd(withDB),
		gotoCmd(withDB),
		statusCmd(withDB),
		forceCmd(withDB),
		createCmd(&opts),
		listCmd(&opts),
	)
	return cmd
}

type dbRunner func(fn func(m migrator, log *zap.Logger, args []string, out io.Writer) error) func(*cobra.Command, []string) error

func upCmd(withDB dbRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "up [n]",
		Short: "Apply all pending migrations, or the next n",
		Args:  cobra.MaximumNArgs(1),
		RunE: withDB(func(m migrator, log *zap.Logger, args []string, _ io.Writer) error {
			if len(args) == 0 {
				return m.Up()
			}
			n, err := positiveArg("step count", args[0])
			if err != nil {
				return err
			}
			return m.Steps(n)
		}),
	}
}

func downCmd(withDB dbRunner) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "down <n> | --all",
		Short: "Roll back the last n migrations, or all of them",
		Args:  cobra.MaximumNArgs(1),
		RunE: withDB(func(m migrator, log *zap.Logger, args []string, _ io.Writer) error {
			switch {
			case all && len(args) == 0:
				log.Warn("Rolling back every migration")
				return m.Down()
			case !all && len(args) == 1:
				n, err := positiveArg("step count", args[0])
				if err != nil {
					return err
				}
				return m.Steps(-n)
			default:
				return errors.New("give either a step count or --all")
			}
		}),
	}
	cmd.Flags().BoolVar(&all, "all", false, "roll back every migration")
	return cmd
}

func gotoCmd(withDB dbRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "goto <version>",
		Short: "Migrate up or down to a version",
		Args:  cobra.ExactArgs(1),
		RunE: withDB(func(m migrator, _ *zap.Logger, args []string, _ io.Writer) error {
			v, err := positiveArg("version", args[0])
			if err != nil {
				return err
			}
			return m.GoTo(uint(v))
		}),
	}
}

func statusCmd(withDB dbRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the applied and latest versions; exits 2 when behind or dirty",
		Args:  cobra.NoArgs,
		RunE: withDB(func(m migrator, _ *zap.Logger, _ []string, out io.Writer) error {
			st, err := m.Status()
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintf(out, "version=%d latest=%d dirty=%t\n", st.Version, st.Latest, st.Dirty); err != nil {
				return err
			}
			if st.Pending() || st.Dirty {
				return errSchemaBehind
			}
			return nil
		}),
	}
}

func forceCmd(withDB dbRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "force <version>",
		Short: "Record a version as applied without running it, clearing the dirty flag",
		Args:  cobra.ExactArgs(1),
		RunE: withDB(func(m migrator, _ *zap.Logger, args []string, _ io.Writer) error {
			v, err := strconv.Atoi(args[0])
			if err != nil || v < -1 {
				return fmt.Errorf("invalid version %q", args[0])
			}
			return m.Force(v)
		}),
	}
}

func createCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "create <name> [description...]",
		Short: "Scaffold the next up/down migration pair",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			mf, err := migration.CreateMigration(opts.dir(), args[0], strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(c.OutOrStdout(), "%s\n%s\n", mf.UpPath, mf.DownPath)
			return err
		},
	}
}

func listCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the migrations in the source directory",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			names, err := migration.ListMigrations(opts.dir())
			if err != nil {
				return err
			}
			for _, n := range names {
				if _, err := fmt.Fprintln(c.OutOrStdout(), n); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func positiveArg(what, raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s %q: want a positive integer", what, raw)
	}
	return n, nil
}
