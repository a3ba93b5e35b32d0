package server

import (
	"flag"
	"testing"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Fatalf("expected default addr :8080, got %q", cfg.Addr)
	}
	if cfg.SessionCapacity != 100 {
		t.Fatalf("expected default capacity 100, got %d", cfg.SessionCapacity)
	}
	if cfg.AttendanceSheet != "出勤總表" {
		t.Fatalf("unexpected attendance sheet %q", cfg.AttendanceSheet)
	}
}

func TestParseConfigOverrides(t *testing.T) {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-addr", "127.0.0.1:9999", "-db-path", "/tmp/ledger.db"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Addr != "127.0.0.1:9999" {
		t.Fatalf("expected addr override, got %q", cfg.Addr)
	}
	if cfg.DBPath != "/tmp/ledger.db" {
		t.Fatalf("expected db path override, got %q", cfg.DBPath)
	}
}
