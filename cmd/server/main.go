package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	servercmd "github.com/mhliao/crewlog/internal/cmd/server"
	"github.com/mhliao/crewlog/internal/platform/config"
)

func main() {
	cfg, err := servercmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("Error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := servercmd.Run(ctx, cfg); err != nil {
		config.Exitf("Error: %v", err)
	}
}
