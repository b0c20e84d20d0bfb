// Command salesetl validates, curates and loads sales extracts.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"salesetl/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Main(ctx)
	stop()
	os.Exit(code)
}
