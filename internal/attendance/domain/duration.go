package domain

import (
	"fmt"
	"strconv"
	"time"
)

// Duration remarks. Remarks accumulate left to right separated by a space;
// an early leave replaces whatever came before it.
const (
	RemarkAfternoon = "午後到工"
	RemarkOvertime  = "加班"
)

// Duration hour-of-day thresholds in the attendance timezone.
const (
	afternoonCheckInHour = 13
	earlyLeaveHour       = 16
	overtimeHour         = 17
)

// ComputeDuration maps a check-in/check-out pair to the attendance duration
// (0.5 or 1.0) and its remark. The rules apply in strict order:
//
//  1. Check-in before 13:00 earns a full day; 13:00 or later earns a half
//     day with an afternoon remark.
//  2. Check-out before 16:00 forces a half day and replaces the remark with
//     an early-leave annotation.
//  3. Otherwise a check-out at 17:00 or later appends an overtime remark
//     without changing the duration.
func ComputeDuration(checkIn, checkOut time.Time) (float64, string) {
	checkIn = checkIn.In(Timezone)
	checkOut = checkOut.In(Timezone)

	duration := 1.0
	remark := ""
	if checkIn.Hour() >= afternoonCheckInHour {
		duration = 0.5
		remark = RemarkAfternoon
	}

	if checkOut.Hour() < earlyLeaveHour {
		return 0.5, fmt.Sprintf("提早收工(%02d:%02d)", checkOut.Hour(), checkOut.Minute())
	}
	if checkOut.Hour() >= overtimeHour {
		if remark == "" {
			remark = RemarkOvertime
		} else {
			remark += " " + RemarkOvertime
		}
	}
	return duration, remark
}

// FormatDuration renders a duration value the way it is written to the
// ledger: "1" for a full day, "0.5" for a half day.
func FormatDuration(duration float64) string {
	return strconv.FormatFloat(duration, 'f', -1, 64)
}
