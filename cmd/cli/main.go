package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/offsync/internal/buildinfo"
	"github.com/dmitrijs2005/offsync/internal/client/cli"
	"github.com/dmitrijs2005/offsync/internal/client/config"
	"github.com/dmitrijs2005/offsync/internal/flagx"
)

func main() {

	buildinfo.PrintBuildData(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadConfig()

	root := cli.NewRootCommand(cfg, cli.NewApp)
	// config flags were consumed by LoadConfig
	root.SetArgs(flagx.StripArgs(os.Args[1:], append(flagx.ConfigFileFlags, config.Flags...)))

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
