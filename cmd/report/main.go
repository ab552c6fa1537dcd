package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"marketpipe/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.RunReport(ctx, os.Args[1:], cli.Deps{})
	stop()
	os.Exit(code)
}
