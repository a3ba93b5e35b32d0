// Package domain defines the attendance entities and business rules: era
// (Minguo) work dates, the statement period used for aggregate queries, the
// attendance-duration table, and the per-project per-day session entity.
package domain
