// Package aggregate parses aggregation job flags and writes the daily
// per-person summary for one work date.
package aggregate

import (
	"context"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/mhliao/crewlog/internal/attendance/aggregate"
	"github.com/mhliao/crewlog/internal/attendance/domain"
	"github.com/mhliao/crewlog/internal/ledger"
	ledgersqlite "github.com/mhliao/crewlog/internal/ledger/sqlite"
	entrypoint "github.com/mhliao/crewlog/internal/platform/cmd"
)

// Config holds aggregation job configuration.
type Config struct {
	DBPath          string        `env:"CREWLOG_DB_PATH"          envDefault:"data/crewlog.db"`
	AttendanceSheet string        `env:"CREWLOG_ATTENDANCE_SHEET" envDefault:"出勤總表"`
	SummarySheet    string        `env:"CREWLOG_SUMMARY_SHEET"    envDefault:"每日彙總"`
	Timeout         time.Duration `env:"CREWLOG_AGGREGATE_TIMEOUT" envDefault:"10m"`
	Date            string
}

// ParseConfig parses environment and flags into a Config. The date flag
// takes an era work date and defaults to today.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "path to the ledger sqlite database")
	fs.StringVar(&cfg.Date, "date", "", "era work date to aggregate, e.g. 114/10/10 (default: today)")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	if cfg.Date == "" {
		cfg.Date = domain.FormatEraDate(time.Now().In(domain.Timezone))
	}
	return cfg, nil
}

// Run aggregates one work date and reports the outcome on out.
func Run(ctx context.Context, cfg Config, out io.Writer) error {
	if _, err := domain.ParseEraDate(cfg.Date); err != nil {
		return fmt.Errorf("invalid work date %q: %w", cfg.Date, err)
	}

	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceAggregate, func(ctx context.Context) error {
		db, err := ledgersqlite.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open ledger database: %w", err)
		}
		defer db.Close()

		attendance := db.Sheet(cfg.AttendanceSheet, ledger.AttendanceHeaders)
		summary := db.Sheet(cfg.SummarySheet, ledger.SummaryHeaders)

		rows, err := aggregate.New(attendance, summary, nil).Run(ctx, cfg.Date)
		if err != nil {
			return fmt.Errorf("aggregate %s: %w", cfg.Date, err)
		}
		fmt.Fprintf(out, "aggregated %s: %d summary rows\n", cfg.Date, rows)
		return nil
	})
}
