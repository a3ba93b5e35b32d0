package app

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the attendance service runtime configuration.
type Config struct {
	Addr              string        `env:"CREWLOG_ADDR"               envDefault:":8080"`
	DBPath            string        `env:"CREWLOG_DB_PATH"            envDefault:"data/crewlog.db"`
	PolicyPath        string        `env:"CREWLOG_POLICY_PATH"        envDefault:"policy.yaml"`
	ChannelSecret     string        `env:"CREWLOG_CHANNEL_SECRET"`
	ChannelToken      string        `env:"CREWLOG_CHANNEL_TOKEN"`
	MessagingEndpoint string        `env:"CREWLOG_MESSAGING_ENDPOINT"`
	ChannelID         string        `env:"CREWLOG_CHANNEL_ID"`
	AssertionKeyID    string        `env:"CREWLOG_ASSERTION_KEY_ID"`
	AssertionKeyPEM   string        `env:"CREWLOG_ASSERTION_KEY"`
	SessionCapacity   int           `env:"CREWLOG_SESSION_CAPACITY"   envDefault:"100"`
	RetentionDays     int           `env:"CREWLOG_RETENTION_DAYS"     envDefault:"7"`
	SweepInterval     time.Duration `env:"CREWLOG_SWEEP_INTERVAL"     envDefault:"10h"`
	DedupWindow       time.Duration `env:"CREWLOG_DEDUP_WINDOW"       envDefault:"5m"`
	AggregateHour     int           `env:"CREWLOG_AGGREGATE_HOUR"     envDefault:"23"`
	MaxConns          int           `env:"CREWLOG_MAX_CONNS"          envDefault:"64"`
	AttendanceSheet   string        `env:"CREWLOG_ATTENDANCE_SHEET"   envDefault:"出勤總表"`
	SummarySheet      string        `env:"CREWLOG_SUMMARY_SHEET"      envDefault:"每日彙總"`
}

// Validate reports the first configuration problem found.
func (c Config) Validate() error {
	if c.ChannelSecret == "" {
		return errors.New("channel secret is required")
	}
	if c.ChannelToken == "" && !c.useAssertion() {
		return errors.New("channel token or assertion key configuration is required")
	}
	if c.useAssertion() && (c.ChannelID == "" || c.AssertionKeyID == "" || c.AssertionKeyPEM == "") {
		return errors.New("assertion auth needs channel id, key id, and key")
	}
	if c.SessionCapacity <= 0 {
		return fmt.Errorf("session capacity must be positive, got %d", c.SessionCapacity)
	}
	if c.RetentionDays <= 0 {
		return fmt.Errorf("retention days must be positive, got %d", c.RetentionDays)
	}
	if c.AggregateHour < 0 || c.AggregateHour > 23 {
		return fmt.Errorf("aggregate hour must be 0..23, got %d", c.AggregateHour)
	}
	if c.MaxConns <= 0 {
		return fmt.Errorf("max connections must be positive, got %d", c.MaxConns)
	}
	return nil
}

func (c Config) useAssertion() bool {
	return c.ChannelID != "" || c.AssertionKeyID != "" || c.AssertionKeyPEM != ""
}

func (c Config) retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}
