package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func allocateCmd(run runner) *cobra.Command {
	var (
		targets []string
		dryRun  bool
	)

	cmd := &cobra.Command{
		Use:   "allocate <credit-id>",
		Short: "Allocate a credit against outstanding debits",
		Long: `Allocate a payment or credit note against the customer's outstanding debits.

Without --to the credit goes to the oldest debits first, skipping invoices
held back by an unpaid gap claim. With --to it goes to the listed debits in
the order given, gap claims notwithstanding.`,
		Args: cobra.ExactArgs(1),
	}

	cmd.Flags().StringSliceVar(&targets, "to", nil, "debit IDs to allocate to, in order")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show the default allocation without saving it")

	cmd.RunE = func(c *cobra.Command, args []string) error {
		creditID, err := parseUUIDArg("credit id", args[0])
		if err != nil {
			return err
		}
		if dryRun && len(targets) > 0 {
			return fmt.Errorf("--dry-run cannot be combined with --to")
		}
		debitIDs := make([]uuid.UUID, 0, len(targets))
		for _, raw := range targets {
			id, err := parseUUIDArg("debit id", raw)
			if err != nil {
				return err
			}
			debitIDs = append(debitIDs, id)
		}

		return run(func(ctx context.Context, svc *services, out io.Writer) error {
			switch {
			case dryRun:
				result, err := svc.allocation.PreviewCreditAllocation(ctx, creditID)
				if err != nil {
					return err
				}
				return writeJSON(out, result)
			case len(debitIDs) > 0:
				result, err := svc.allocation.AllocateCreditTo(ctx, creditID, debitIDs)
				if err != nil {
					return err
				}
				return writeJSON(out, result)
			default:
				result, err := svc.allocation.AllocateCredit(ctx, creditID)
				if err != nil {
					return err
				}
				return writeJSON(out, result)
			}
		})(c, args)
	}

	return cmd
}

func balanceCmd(run runner) *cobra.Command {
	var asOf string

	cmd := &cobra.Command{
		Use:   "balance <customer-id>",
		Short: "Show a customer's balance summary",
		Args:  cobra.ExactArgs(1),
	}
	cmd.Flags().StringVar(&asOf, "as-of", "", "date the overdue balance is computed at (YYYY-MM-DD or RFC3339, default now)")

	cmd.RunE = func(c *cobra.Command, args []string) error {
		customerID, err := parseUUIDArg("customer id", args[0])
		if err != nil {
			return err
		}
		at, err := parseAsOf(asOf)
		if err != nil {
			return err
		}
		return run(func(ctx context.Context, svc *services, out io.Writer) error {
			summary, err := svc.balances.GetSummary(ctx, customerID, at)
			if err != nil {
				return err
			}
			return writeJSON(out, summary)
		})(c, args)
	}

	return cmd
}

func rebalanceCmd(run runner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rebalance <customer-id>",
		Short: "Allocate every unallocated credit of a customer",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = func(c *cobra.Command, args []string) error {
		customerID, err := parseUUIDArg("customer id", args[0])
		if err != nil {
			return err
		}
		return run(func(ctx context.Context, svc *services, out io.Writer) error {
			result, err := svc.balances.RebalanceCustomer(ctx, customerID)
			if err != nil {
				return err
			}
			return writeJSON(out, result)
		})(c, args)
	}
	return cmd
}

func sweepCmd(run runner) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one pass of the unallocated credit sweep",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, svc *services, out io.Writer) error {
			report, err := svc.sweep.Sweep(ctx)
			if err != nil {
				return err
			}
			return writeJSON(out, report)
		}),
	}
}

// parseAsOf accepts a date or a full timestamp; empty means now
func parseAsOf(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --as-of %q: use YYYY-MM-DD or RFC3339", raw)
	}
	return t, nil
}
