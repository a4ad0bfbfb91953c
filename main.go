package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/joelmoss/vcsinfo/cmd"
)

// version is set via -ldflags at build time.
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cmd.SetVersion(version)
	if err := cmd.Execute(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
