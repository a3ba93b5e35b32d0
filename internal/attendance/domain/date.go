package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// Timezone is the wall clock for all attendance timestamps. Reports carry no
// zone information; the crews operate in UTC+8.
var Timezone = time.FixedZone("UTC+8", 8*60*60)

// eraYearOffset converts between era (Minguo) years and absolute years.
const eraYearOffset = 1911

// EraDatePattern matches an era-formatted work date such as "114/10/10".
var EraDatePattern = regexp.MustCompile(`^(\d{3})/(\d{2})/(\d{2})$`)

// ErrInvalidEraDate indicates a date string that is not a valid era date.
var ErrInvalidEraDate = errors.New("invalid era date")

// ParseEraDate converts an era date string like "114/10/10" into the
// corresponding absolute date (2025-10-10) in the attendance timezone.
func ParseEraDate(value string) (time.Time, error) {
	match := EraDatePattern.FindStringSubmatch(value)
	if match == nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidEraDate, value)
	}
	year, _ := strconv.Atoi(match[1])
	month, _ := strconv.Atoi(match[2])
	day, _ := strconv.Atoi(match[3])

	date := time.Date(year+eraYearOffset, time.Month(month), day, 0, 0, 0, 0, Timezone)
	if date.Day() != day || int(date.Month()) != month {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidEraDate, value)
	}
	return date, nil
}

// FormatEraDate renders a date as an era date string like "114/10/10".
func FormatEraDate(date time.Time) string {
	date = date.In(Timezone)
	return fmt.Sprintf("%03d/%02d/%02d", date.Year()-eraYearOffset, int(date.Month()), date.Day())
}

// StatementPeriod returns the attendance billing period covering today.
// Periods run from the 6th through the 20th of a month, and from the 21st
// through the 5th of the following month.
func StatementPeriod(today time.Time) (start, end time.Time) {
	today = today.In(Timezone)
	year, month, day := today.Year(), today.Month(), today.Day()

	switch {
	case day >= 6 && day <= 20:
		start = time.Date(year, month, 6, 0, 0, 0, 0, Timezone)
		end = time.Date(year, month, 20, 0, 0, 0, 0, Timezone)
	case day >= 21:
		start = time.Date(year, month, 21, 0, 0, 0, 0, Timezone)
		end = time.Date(year, month, 5, 0, 0, 0, 0, Timezone).AddDate(0, 1, 0)
	default: // day <= 5
		end = time.Date(year, month, 5, 0, 0, 0, 0, Timezone)
		start = time.Date(year, month, 21, 0, 0, 0, 0, Timezone).AddDate(0, -1, 0)
	}
	return start, end
}
