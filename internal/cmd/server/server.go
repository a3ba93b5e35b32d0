// Package server parses server command flags and starts the attendance
// service runtime.
package server

import (
	"context"
	"flag"

	"github.com/mhliao/crewlog/internal/app"
	entrypoint "github.com/mhliao/crewlog/internal/platform/cmd"
)

// ParseConfig parses environment and flags into an app configuration.
func ParseConfig(fs *flag.FlagSet, args []string) (app.Config, error) {
	var cfg app.Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return app.Config{}, err
	}
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "webhook listen address")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "path to the ledger sqlite database")
	fs.StringVar(&cfg.PolicyPath, "policy-path", cfg.PolicyPath, "path to the role policy yaml file")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return app.Config{}, err
	}
	return cfg, nil
}

// Run starts the attendance webhook service.
func Run(ctx context.Context, cfg app.Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceServer, func(ctx context.Context) error {
		a, err := app.New(cfg)
		if err != nil {
			return err
		}
		defer a.Close()
		return a.Run(ctx)
	})
}
