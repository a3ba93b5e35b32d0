package parse

import (
	"testing"
)

const canonicalReport = `114/10/10
惠宇新案
出工人員：
1.王小明
2.李大華(半天)
3.陳志強
共計：3人
便當：3個`

func TestParseFullReport(t *testing.T) {
	cmd := Parse(canonicalReport)
	report, ok := cmd.(FullReport)
	if !ok {
		t.Fatalf("expected FullReport, got %T", cmd)
	}
	if report.Date != "114/10/10" {
		t.Fatalf("expected date 114/10/10, got %q", report.Date)
	}
	if report.Project != "惠宇新案" {
		t.Fatalf("expected project 惠宇新案, got %q", report.Project)
	}
	if len(report.Staff) != 3 {
		t.Fatalf("expected 3 staff, got %d", len(report.Staff))
	}
	if report.Staff[0].Name != "王小明" || report.Staff[0].Note != "" {
		t.Fatalf("unexpected first staff: %+v", report.Staff[0])
	}
	if report.Staff[1].Name != "李大華" || report.Staff[1].Note != "半天" {
		t.Fatalf("unexpected second staff: %+v", report.Staff[1])
	}
	if report.Staff[2].Name != "陳志強" {
		t.Fatalf("unexpected third staff: %+v", report.Staff[2])
	}
}

func TestParseFullReportFullwidthPunctuation(t *testing.T) {
	report := "114/10/10\n惠宇新案\n出工人員：\n１.王小明\n２.李大華（半天）\n共計：2人"
	cmd := Parse(report)
	full, ok := cmd.(FullReport)
	if !ok {
		t.Fatalf("expected FullReport, got %T", cmd)
	}
	if len(full.Staff) != 2 {
		t.Fatalf("expected 2 staff, got %d", len(full.Staff))
	}
	if full.Staff[1].Name != "李大華" || full.Staff[1].Note != "半天" {
		t.Fatalf("expected fullwidth note extracted, got %+v", full.Staff[1])
	}
}

func TestParseFullReportFailures(t *testing.T) {
	cases := []struct {
		name string
		text string
	}{
		{name: "no date", text: "今天\n惠宇新案\n出工人員：\n王小明"},
		{name: "empty project", text: "114/10/10\n\n出工人員：\n王小明"},
		{name: "zero staff", text: "114/10/10\n惠宇新案\n出工人員：\n共計：0人"},
		{name: "date without marker", text: "114/10/10\n惠宇新案\n王小明"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, ok := Parse(tc.text).(Unrecognized); !ok {
				t.Fatalf("expected Unrecognized, got %T", Parse(tc.text))
			}
		})
	}
}

func TestParseFullReportWinsOverAddKeyword(t *testing.T) {
	report := "114/10/10\n惠宇新案\n出工人員：\n加人:王小明"
	cmd := Parse(report)
	full, ok := cmd.(FullReport)
	if !ok {
		t.Fatalf("expected FullReport to take precedence, got %T", cmd)
	}
	if len(full.Staff) != 1 || full.Staff[0].Name != "加人:王小明" {
		t.Fatalf("unexpected staff: %+v", full.Staff)
	}
}

func TestParseAddPerson(t *testing.T) {
	cases := []struct {
		text    string
		name    string
		project string
		note    string
	}{
		{text: "加人:王小明", name: "王小明"},
		{text: "加人:王小明@惠宇新案", name: "王小明", project: "惠宇新案"},
		{text: "加人:王小明(半天)", name: "王小明", note: "半天"},
		{text: "加人:王小明@惠宇新案(半天)", name: "王小明", project: "惠宇新案", note: "半天"},
		{text: "加人：王小明＠惠宇新案（半天）", name: "王小明", project: "惠宇新案", note: "半天"},
	}
	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			cmd := Parse(tc.text)
			add, ok := cmd.(AddPerson)
			if !ok {
				t.Fatalf("expected AddPerson, got %T", cmd)
			}
			if add.Name != tc.name || add.Project != tc.project || add.Note != tc.note {
				t.Fatalf("expected %+v, got %+v", tc, add)
			}
		})
	}

	if _, ok := Parse("加人:").(Unrecognized); !ok {
		t.Fatal("expected empty add to be unrecognized")
	}
}

func TestParseCheckout(t *testing.T) {
	cmd := Parse("收工:王小明@惠宇新案")
	checkout, ok := cmd.(Checkout)
	if !ok {
		t.Fatalf("expected Checkout, got %T", cmd)
	}
	if checkout.Name != "王小明" || checkout.Project != "惠宇新案" {
		t.Fatalf("unexpected checkout: %+v", checkout)
	}

	cmd = Parse("收工:王小明")
	checkout, ok = cmd.(Checkout)
	if !ok {
		t.Fatalf("expected Checkout, got %T", cmd)
	}
	if checkout.Project != "" {
		t.Fatalf("expected empty project, got %q", checkout.Project)
	}
}

func TestParseBulkCheckout(t *testing.T) {
	cmd := Parse("大家辛苦了 全員收工")
	if _, ok := cmd.(BulkCheckout); !ok {
		t.Fatalf("expected BulkCheckout, got %T", cmd)
	}

	cmd = Parse("全員收工@惠宇新案")
	bulk, ok := cmd.(BulkCheckout)
	if !ok {
		t.Fatalf("expected BulkCheckout, got %T", cmd)
	}
	if bulk.Project != "惠宇新案" {
		t.Fatalf("expected project, got %q", bulk.Project)
	}
}

func TestParseQuery(t *testing.T) {
	if _, ok := Parse("查詢本期出勤").(Query); !ok {
		t.Fatal("expected Query")
	}
	// The query phrase must match exactly.
	if _, ok := Parse("請幫我查詢本期出勤").(Unrecognized); !ok {
		t.Fatal("expected inexact query phrase to be unrecognized")
	}
}

func TestParseUnrecognized(t *testing.T) {
	for _, text := range []string{"", "   ", "早安", "checkout"} {
		if _, ok := Parse(text).(Unrecognized); !ok {
			t.Fatalf("expected Unrecognized for %q", text)
		}
	}
}
