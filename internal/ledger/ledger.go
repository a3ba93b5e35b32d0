// Package ledger defines the tabular contract for the committed attendance
// record store. The interface mirrors a worksheet: ordered rows of ordered
// cells, append-only except for targeted cell updates. Implementations own
// persistence; callers own column layout.
package ledger

import (
	"context"
	"errors"
)

// ErrRowNotFound indicates an update against a row index that does not exist.
var ErrRowNotFound = errors.New("ledger row not found")

// Attendance sheet column layout. The header names double as the record keys
// returned by GetAllRecords.
const (
	ColWrittenTime = iota
	ColDate
	ColProject
	ColName
	ColNote
	ColCheckIn
	ColCheckOut
	ColDuration
	ColRemark
)

// AttendanceHeaders is the attendance sheet header row.
var AttendanceHeaders = []string{
	"記錄時間", "日期", "工地", "姓名", "備註", "上工時間", "收工時間", "工數", "註記",
}

// Summary sheet column layout.
const (
	SummaryColWrittenTime = iota
	SummaryColDate
	SummaryColName
	SummaryColDuration
)

// SummaryHeaders is the daily summary sheet header row.
var SummaryHeaders = []string{"記錄時間", "日期", "姓名", "工數"}

// Ledger is the tabular store surface consumed by the attendance service.
// Row indexes are stable: the first appended row is index 1, matching
// spreadsheet conventions with the header at index 0.
type Ledger interface {
	// AppendRow appends one row of cells and returns its row index.
	AppendRow(ctx context.Context, cells []string) (int, error)
	// UpdateCell overwrites a single cell of an existing row.
	UpdateCell(ctx context.Context, rowIndex, columnIndex int, value string) error
	// GetAllRecords returns every row keyed by header name.
	GetAllRecords(ctx context.Context) ([]map[string]string, error)
}
