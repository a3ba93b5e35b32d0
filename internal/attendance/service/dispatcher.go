// Package service dispatches inbound crew messages: authorization, duplicate
// filtering, parsing, session mutation, ledger writes, and reply text.
package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/mhliao/crewlog/internal/attendance/aggregate"
	"github.com/mhliao/crewlog/internal/attendance/authz"
	"github.com/mhliao/crewlog/internal/attendance/dedup"
	"github.com/mhliao/crewlog/internal/attendance/domain"
	"github.com/mhliao/crewlog/internal/attendance/parse"
	"github.com/mhliao/crewlog/internal/attendance/store"
	"github.com/mhliao/crewlog/internal/ledger"
)

// Event is one inbound text message from the messaging channel.
type Event struct {
	SenderID    string
	Text        string
	TimestampMs int64
	ReplyToken  string
}

// Dispatcher turns inbound events into session mutations, ledger rows, and
// replies.
type Dispatcher struct {
	policy     authz.Policy
	dedup      *dedup.Cache
	sessions   *store.Store
	attendance ledger.Ledger
	now        func() time.Time
	tracer     trace.Tracer
}

// New creates a dispatcher. All collaborators are required except now,
// which defaults to the wall clock.
func New(policy authz.Policy, dedupCache *dedup.Cache, sessions *store.Store, attendance ledger.Ledger, now func() time.Time) *Dispatcher {
	if now == nil {
		now = time.Now
	}
	return &Dispatcher{
		policy:     policy,
		dedup:      dedupCache,
		sessions:   sessions,
		attendance: attendance,
		now:        now,
		tracer:     otel.Tracer("crewlog/attendance"),
	}
}

// HandleMessage processes one inbound event. The returned bool reports
// whether a reply should be sent; unknown senders and duplicate deliveries
// are dropped silently so the bot stays invisible to uninvited parties.
func (d *Dispatcher) HandleMessage(ctx context.Context, event Event) (string, bool) {
	role := d.policy.RoleFor(event.SenderID)
	if role == authz.RoleNone {
		return "", false
	}
	if d.dedup.CheckAndRecord(event.SenderID, event.Text, event.TimestampMs) {
		log.Printf("attendance: dropped duplicate delivery from %s", event.SenderID)
		return "", false
	}

	command := parse.Parse(event.Text)

	ctx, span := d.tracer.Start(ctx, "attendance.dispatch",
		trace.WithAttributes(attribute.String("attendance.command", commandName(command))))
	defer span.End()

	switch cmd := command.(type) {
	case parse.FullReport:
		return d.handleFullReport(ctx, event, cmd), true
	case parse.AddPerson:
		return d.handleAddPerson(ctx, event, role, cmd), true
	case parse.Checkout:
		return d.handleCheckout(ctx, event, role, cmd.Name, cmd.Project), true
	case parse.BulkCheckout:
		return d.handleBulkCheckout(ctx, event, role, cmd.Project), true
	case parse.Query:
		return d.handleQuery(ctx), true
	default:
		return "無法識別的指令或格式錯誤。", true
	}
}

const replyLedgerFailure = "寫入出勤紀錄失敗，請稍後再試。"

func (d *Dispatcher) handleFullReport(ctx context.Context, event Event, cmd parse.FullReport) string {
	if _, err := d.sessions.GetOrCreate(cmd.Date, cmd.Project, event.SenderID); err != nil {
		log.Printf("attendance: create session %s/%s: %v", cmd.Date, cmd.Project, err)
		return replyLedgerFailure
	}

	checkIn := time.UnixMilli(event.TimestampMs).In(domain.Timezone)
	added, duplicates := 0, 0
	for _, person := range cmd.Staff {
		if d.sessions.HasStaff(cmd.Date, cmd.Project, person.Name) {
			duplicates++
			continue
		}
		rowIndex, err := d.appendAttendanceRow(ctx, cmd.Date, cmd.Project, person.Name, person.Note, checkIn)
		if err != nil {
			log.Printf("attendance: append row for %s: %v", person.Name, err)
			return replyLedgerFailure
		}
		entry := domain.StaffEntry{Name: person.Name, Note: person.Note, CheckIn: checkIn, LedgerRow: rowIndex}
		if err := d.sessions.AddStaff(cmd.Date, cmd.Project, entry); err != nil {
			log.Printf("attendance: commit staff %s: %v", person.Name, err)
			continue
		}
		added++
	}

	reply := fmt.Sprintf("已紀錄 %s %s 出工 %d 人。", cmd.Date, cmd.Project, added)
	if duplicates > 0 {
		reply += fmt.Sprintf("（%d 人已在名單中）", duplicates)
	}
	return reply
}

func (d *Dispatcher) handleAddPerson(ctx context.Context, event Event, role authz.Role, cmd parse.AddPerson) string {
	today := domain.FormatEraDate(d.now())

	var workDate, project string
	if cmd.Project != "" {
		session, err := d.sessions.GetOrCreate(today, cmd.Project, event.SenderID)
		if err != nil {
			log.Printf("attendance: create session %s/%s: %v", today, cmd.Project, err)
			return replyLedgerFailure
		}
		workDate, project = session.WorkDate, session.Project
	} else {
		session, ok := d.sessions.FindForUser(event.SenderID, role, "", today)
		if !ok {
			return "找不到可對應的出工紀錄，請先回報日報或指定工地。"
		}
		workDate, project = session.WorkDate, session.Project
	}

	if d.sessions.HasStaff(workDate, project, cmd.Name) {
		return fmt.Sprintf("%s 已在 %s 的出工名單中。", cmd.Name, project)
	}

	checkIn := time.UnixMilli(event.TimestampMs).In(domain.Timezone)
	rowIndex, err := d.appendAttendanceRow(ctx, workDate, project, cmd.Name, cmd.Note, checkIn)
	if err != nil {
		log.Printf("attendance: append row for %s: %v", cmd.Name, err)
		return replyLedgerFailure
	}
	entry := domain.StaffEntry{Name: cmd.Name, Note: cmd.Note, CheckIn: checkIn, LedgerRow: rowIndex}
	if err := d.sessions.AddStaff(workDate, project, entry); err != nil {
		log.Printf("attendance: commit staff %s: %v", cmd.Name, err)
		return fmt.Sprintf("%s 已在 %s 的出工名單中。", cmd.Name, project)
	}
	return fmt.Sprintf("已將 %s 加入 %s 的出工名單。", cmd.Name, project)
}

func (d *Dispatcher) handleCheckout(ctx context.Context, event Event, role authz.Role, name, project string) string {
	today := domain.FormatEraDate(d.now())
	session, ok := d.sessions.FindForUser(event.SenderID, role, project, today)
	if !ok {
		return "找不到可對應的出工紀錄，請先回報日報或指定工地。"
	}

	entry, ok := session.FindStaff(name)
	if !ok {
		return fmt.Sprintf("%s 不在 %s 的出工名單中。", name, session.Project)
	}
	if entry.CheckOut != nil {
		return fmt.Sprintf("%s 已經收工。", name)
	}

	at := d.now().In(domain.Timezone)
	duration, remark, err := d.commitCheckout(ctx, session.WorkDate, session.Project, entry, at)
	if err != nil {
		log.Printf("attendance: checkout %s: %v", name, err)
		return replyLedgerFailure
	}
	return fmt.Sprintf("%s 已收工（工數 %s%s）。", name, domain.FormatDuration(duration), remarkSuffix(remark))
}

func (d *Dispatcher) handleBulkCheckout(ctx context.Context, event Event, role authz.Role, project string) string {
	today := domain.FormatEraDate(d.now())
	session, ok := d.sessions.FindForUser(event.SenderID, role, project, today)
	if !ok {
		return "找不到可對應的出工紀錄，請先回報日報或指定工地。"
	}

	pending := session.PendingCheckout()
	if len(pending) == 0 {
		return fmt.Sprintf("%s 目前沒有待收工的人員。", session.Project)
	}

	at := d.now().In(domain.Timezone)
	done := 0
	for _, entry := range pending {
		if _, _, err := d.commitCheckout(ctx, session.WorkDate, session.Project, entry, at); err != nil {
			log.Printf("attendance: bulk checkout %s: %v", entry.Name, err)
			continue
		}
		done++
	}
	if done == 0 {
		return replyLedgerFailure
	}
	return fmt.Sprintf("已為 %s 的 %d 人收工。", session.Project, done)
}

func (d *Dispatcher) handleQuery(ctx context.Context) string {
	start, end, counts, err := aggregate.PeriodDays(ctx, d.attendance, d.now())
	if err != nil {
		log.Printf("attendance: period query: %v", err)
		return "查詢出勤統計失敗，請稍後再試。"
	}

	rangeText := fmt.Sprintf("%s ~ %s", start.Format("2006/01/02"), end.Format("2006/01/02"))
	if len(counts) == 0 {
		return fmt.Sprintf("在 %s 區間內找不到任何出勤紀錄。", rangeText)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "本期 (%s) 出勤統計：", rangeText)
	for _, count := range counts {
		fmt.Fprintf(&b, "\n- %s: %d 天", count.Name, count.Days)
	}
	return b.String()
}

// appendAttendanceRow writes one committed attendance row. It runs outside
// the session store lock so a slow ledger cannot serialize other sessions.
func (d *Dispatcher) appendAttendanceRow(ctx context.Context, workDate, project, name, note string, checkIn time.Time) (int, error) {
	ctx, span := d.tracer.Start(ctx, "ledger.append_row")
	defer span.End()

	writtenTime := d.now().In(domain.Timezone).Format("2006-01-02 15:04:05")
	cells := []string{
		writtenTime,
		workDate,
		project,
		name,
		note,
		checkIn.Format("15:04"),
		"", // check-out
		"", // duration
		"", // remark
	}
	return d.attendance.AppendRow(ctx, cells)
}

// commitCheckout writes the checkout cells to the ledger and then commits
// the checkout to the in-memory session, in that order, so memory never
// records a checkout the ledger lost.
func (d *Dispatcher) commitCheckout(ctx context.Context, workDate, project string, entry domain.StaffEntry, at time.Time) (float64, string, error) {
	ctx, span := d.tracer.Start(ctx, "ledger.update_checkout")
	defer span.End()

	duration, remark := domain.ComputeDuration(entry.CheckIn, at)
	updates := []struct {
		column int
		value  string
	}{
		{column: ledger.ColCheckOut, value: at.Format("15:04")},
		{column: ledger.ColDuration, value: domain.FormatDuration(duration)},
		{column: ledger.ColRemark, value: remark},
	}
	for _, update := range updates {
		if err := d.attendance.UpdateCell(ctx, entry.LedgerRow, update.column, update.value); err != nil {
			return 0, "", fmt.Errorf("update row %d column %d: %w", entry.LedgerRow, update.column, err)
		}
	}

	if err := d.sessions.Checkout(workDate, project, entry.Name, at); err != nil {
		return 0, "", fmt.Errorf("commit checkout: %w", err)
	}
	return duration, remark, nil
}

func remarkSuffix(remark string) string {
	if remark == "" {
		return ""
	}
	return "，" + remark
}

func commandName(command parse.Command) string {
	switch command.(type) {
	case parse.FullReport:
		return "full_report"
	case parse.AddPerson:
		return "add_person"
	case parse.Checkout:
		return "checkout"
	case parse.BulkCheckout:
		return "bulk_checkout"
	case parse.Query:
		return "query"
	default:
		return "unrecognized"
	}
}
