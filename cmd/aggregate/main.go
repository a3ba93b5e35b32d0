package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	aggregatecmd "github.com/mhliao/crewlog/internal/cmd/aggregate"
	"github.com/mhliao/crewlog/internal/platform/config"
)

func main() {
	cfg, err := aggregatecmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("Error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	if err := aggregatecmd.Run(ctx, cfg, os.Stdout); err != nil {
		config.Exitf("Error: %v", err)
	}
}
