package cmd

import (
	"context"
	"errors"
	"flag"
	"testing"
)

func TestParseConfigNilTarget(t *testing.T) {
	if err := ParseConfig[struct{}](nil); err == nil {
		t.Fatal("expected error for nil config target")
	}
}

func TestParseConfigFromArgs(t *testing.T) {
	type cfg struct {
		Addr string `env:"CREWLOG_ENTRYPOINT_TEST_ADDR" envDefault:":8080"`
	}
	var c cfg
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.StringVar(&c.Addr, "addr", c.Addr, "listen address")

	if err := ParseConfigFromArgs(&c, fs, []string{"-addr", ":9090"}); err != nil {
		t.Fatalf("parse config from args: %v", err)
	}
	if c.Addr != ":9090" {
		t.Fatalf("expected flag to win, got %q", c.Addr)
	}
}

func TestRunWithTelemetryValidation(t *testing.T) {
	if err := RunWithTelemetry(context.Background(), "", func(context.Context) error { return nil }); err == nil {
		t.Fatal("expected error for empty service name")
	}
	if err := RunWithTelemetry(context.Background(), "server", nil); err == nil {
		t.Fatal("expected error for nil run function")
	}
}

func TestRunWithTelemetryPropagatesRunError(t *testing.T) {
	wantErr := errors.New("run failed")
	err := RunWithTelemetry(context.Background(), "server", func(context.Context) error {
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected run error, got %v", err)
	}
}
