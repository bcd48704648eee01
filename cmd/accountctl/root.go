package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	appaccount "github.com/vetpms/backend/internal/application/account"
	"github.com/vetpms/backend/internal/bootstrap"
	"github.com/vetpms/backend/internal/infrastructure/config"
	"github.com/vetpms/backend/internal/infrastructure/logger"
)

type allocationService interface {
	AllocateCredit(ctx context.Context, creditID uuid.UUID) (*appaccount.AllocationResult, error)
	PreviewCreditAllocation(ctx context.Context, creditID uuid.UUID) (*appaccount.AllocationResult, error)
	AllocateCreditTo(ctx context.Context, creditID uuid.UUID, debitIDs []uuid.UUID) (*appaccount.AllocationResult, error)
}

type balanceService interface {
	GetSummary(ctx context.Context, customerID uuid.UUID, asOf time.Time) (*appaccount.BalanceSummary, error)
	RebalanceCustomer(ctx context.Context, customerID uuid.UUID) (*appaccount.RebalanceResult, error)
}

type sweeper interface {
	Sweep(ctx context.Context) (*appaccount.SweepReport, error)
}

// services is what the subcommands run against
type services struct {
	allocation allocationService
	balances   balanceService
	sweep      sweeper
	close      func() error
}

// globalOptions are the persistent flags of the root command
type globalOptions struct {
	configPath string
	logLevel   string
}

type opener func(ctx context.Context, opts globalOptions) (*services, error)

// openServices wires the real services from configuration
func openServices(ctx context.Context, opts globalOptions) (*services, error) {
	cfg, err := config.LoadFrom(opts.configPath)
	if err != nil {
		return nil, err
	}

	log, err := logger.New(&logger.Config{
		Level:  opts.logLevel,
		Format: "console",
		Output: "stderr",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	container, err := bootstrap.New(ctx, cfg, bootstrap.WithLogger(log))
	if err != nil {
		return nil, err
	}
	log.Debug("Services ready",
		zap.String("driver", cfg.Database.Driver),
		zap.String("lock_backend", cfg.Account.LockBackend),
	)

	return &services{
		allocation: container.Allocation,
		balances:   container.Balances,
		sweep:      container.Sweep,
		close: func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return container.Close(ctx)
		},
	}, nil
}

func newRootCmd(open opener) *cobra.Command {
	opts := globalOptions{}

	cmd := &cobra.Command{
		Use:   "accountctl",
		Short: "Allocate customer credits and inspect balances",
		Long: `accountctl matches payments and credit notes against outstanding
invoices, and reports customer balances, from the command line.

Configuration is read the same way as the server: config.toml, .env and
VETPMS_ environment variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default: ./config.toml)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	// subcommands open the services lazily so --help never touches the database
	run := func(fn func(ctx context.Context, svc *services, out io.Writer) error) func(*cobra.Command, []string) error {
		return func(c *cobra.Command, _ []string) error {
			svc, err := open(c.Context(), opts)
			if err != nil {
				return err
			}
			defer func() {
				if svc.close != nil {
					_ = svc.close()
				}
			}()
			return fn(c.Context(), svc, c.OutOrStdout())
		}
	}

	cmd.AddCommand(allocateCmd(run))
	cmd.AddCommand(balanceCmd(run))
	cmd.AddCommand(rebalanceCmd(run))
	cmd.AddCommand(sweepCmd(run))
	cmd.AddCommand(versionCmd())

	return cmd
}

type runner func(fn func(ctx context.Context, svc *services, out io.Writer) error) func(*cobra.Command, []string) error

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(c.OutOrStdout(), version)
			return err
		},
	}
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseUUIDArg(what, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s %q: %w", what, raw, err)
	}
	return id, nil
}
