package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/asynkron/patchsplit/internal/cli"
)

// main splits a patch file in two at the configured hunk marker.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := cli.Run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
