// Package aggregate collapses committed attendance rows into summary
// figures: the end-of-day per-person maximum, and the statement-period day
// counts behind the query command.
package aggregate

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/mhliao/crewlog/internal/attendance/domain"
	"github.com/mhliao/crewlog/internal/ledger"
)

// Aggregator writes one summary row per person for a work date.
type Aggregator struct {
	attendance ledger.Ledger
	summary    ledger.Ledger
	now        func() time.Time
}

// New creates an aggregator reading committed rows from attendance and
// writing summary rows to summary.
func New(attendance, summary ledger.Ledger, now func() time.Time) *Aggregator {
	if now == nil {
		now = time.Now
	}
	return &Aggregator{attendance: attendance, summary: summary, now: now}
}

// Run aggregates the given era work date: per person, the maximum duration
// among that day's rows wins. A person working two projects the same day is
// billed the higher figure, never the sum. Rows whose duration does not
// parse are excluded from the maximum. With no rows for the date Run is a
// no-op. It returns the number of summary rows written.
func (a *Aggregator) Run(ctx context.Context, forDate string) (int, error) {
	records, err := a.attendance.GetAllRecords(ctx)
	if err != nil {
		return 0, fmt.Errorf("read attendance rows: %w", err)
	}

	maxima := make(map[string]float64)
	for _, record := range records {
		if record[ledger.AttendanceHeaders[ledger.ColDate]] != forDate {
			continue
		}
		name := record[ledger.AttendanceHeaders[ledger.ColName]]
		if name == "" {
			continue
		}
		duration, err := strconv.ParseFloat(record[ledger.AttendanceHeaders[ledger.ColDuration]], 64)
		if err != nil {
			continue
		}
		if existing, ok := maxima[name]; !ok || duration > existing {
			maxima[name] = duration
		}
	}
	if len(maxima) == 0 {
		return 0, nil
	}

	names := make([]string, 0, len(maxima))
	for name := range maxima {
		names = append(names, name)
	}
	sort.Strings(names)

	writtenTime := a.now().In(domain.Timezone).Format("2006-01-02 15:04:05")
	for _, name := range names {
		cells := []string{writtenTime, forDate, name, domain.FormatDuration(maxima[name])}
		if _, err := a.summary.AppendRow(ctx, cells); err != nil {
			return 0, fmt.Errorf("write summary row for %s: %w", name, err)
		}
	}
	return len(names), nil
}

// NameCount is one person's attendance day count within a period.
type NameCount struct {
	Name string
	Days int
}

// PeriodDays counts attendance rows per person inside the statement period
// covering today. Rows whose era date fails to convert are excluded.
func PeriodDays(ctx context.Context, attendance ledger.Ledger, today time.Time) (start, end time.Time, counts []NameCount, err error) {
	start, end = domain.StatementPeriod(today)

	records, err := attendance.GetAllRecords(ctx)
	if err != nil {
		return start, end, nil, fmt.Errorf("read attendance rows: %w", err)
	}

	days := make(map[string]int)
	for _, record := range records {
		date, err := domain.ParseEraDate(record[ledger.AttendanceHeaders[ledger.ColDate]])
		if err != nil {
			continue
		}
		if date.Before(start) || date.After(end) {
			continue
		}
		name := record[ledger.AttendanceHeaders[ledger.ColName]]
		if name == "" {
			continue
		}
		days[name]++
	}

	counts = make([]NameCount, 0, len(days))
	for name, count := range days {
		counts = append(counts, NameCount{Name: name, Days: count})
	}
	sort.Slice(counts, func(i, j int) bool { return counts[i].Name < counts[j].Name })
	return start, end, counts, nil
}
