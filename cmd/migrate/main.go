// Command migrate applies, inspects and scaffolds the postgres schema
// migrations. SQLite databases are created from the models on startup and
// are not managed here.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd(openMigrator).ExecuteContext(ctx)
	stop()

	switch {
	case err == nil:
	case errors.Is(err, errSchemaBehind):
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	default:
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
