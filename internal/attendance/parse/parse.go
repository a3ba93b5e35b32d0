// Package parse converts free-text crew messages into a closed set of
// structured commands. All grammar and precedence rules live here so the
// dispatcher is a single switch over the returned Command.
package parse

import (
	"regexp"
	"strings"

	"golang.org/x/text/width"

	"github.com/mhliao/crewlog/internal/attendance/domain"
)

// Grammar keywords. Messages are width-folded before matching, so fullwidth
// colons, parentheses and at-signs typed on phone keyboards also match.
const (
	staffMarker    = "出工人員"
	headCountWord  = "共計"
	lunchBoxWord   = "便當"
	addPrefix      = "加人:"
	checkoutPrefix = "收工:"
	bulkPhrase     = "全員收工"
	queryPhrase    = "查詢本期出勤"
)

var (
	ordinalPrefix = regexp.MustCompile(`^\d+[.、]\s*`)
	trailingNote  = regexp.MustCompile(`\(([^)]*)\)\s*$`)
	bulkProject   = regexp.MustCompile(`全員收工\s*@\s*(\S+)`)
)

// Command is the closed result union of Parse.
type Command interface{ isCommand() }

// Staff is one parsed person line of a full report.
type Staff struct {
	Name string
	Note string
}

// FullReport is a day's report: era work date, project, and crew list.
type FullReport struct {
	Date    string
	Project string
	Staff   []Staff
}

// AddPerson adds one person to an existing or new session.
type AddPerson struct {
	Name    string
	Project string
	Note    string
}

// Checkout checks one person out.
type Checkout struct {
	Name    string
	Project string
}

// BulkCheckout checks out everyone still on site.
type BulkCheckout struct {
	Project string
}

// Query requests the current statement-period aggregate.
type Query struct{}

// Unrecognized is returned when no grammar matched.
type Unrecognized struct{}

func (FullReport) isCommand()   {}
func (AddPerson) isCommand()    {}
func (Checkout) isCommand()     {}
func (BulkCheckout) isCommand() {}
func (Query) isCommand()        {}
func (Unrecognized) isCommand() {}

// Parse maps a message to its command. Precedence: a message whose first
// line is an era date and which carries the staff marker is treated as a
// full report even when other keywords appear in it; then add, single and
// bulk checkout, and the period query.
func Parse(text string) Command {
	folded := width.Narrow.String(text)
	trimmed := strings.TrimSpace(folded)
	if trimmed == "" {
		return Unrecognized{}
	}

	lines := strings.Split(trimmed, "\n")
	firstLine := strings.TrimSpace(lines[0])
	if domain.EraDatePattern.MatchString(firstLine) && strings.Contains(trimmed, staffMarker) {
		return parseFullReport(firstLine, lines)
	}

	if rest, ok := strings.CutPrefix(trimmed, addPrefix); ok {
		return parseAddPerson(rest)
	}
	if rest, ok := strings.CutPrefix(trimmed, checkoutPrefix); ok {
		return parseCheckout(rest)
	}
	if strings.Contains(trimmed, bulkPhrase) {
		cmd := BulkCheckout{}
		if match := bulkProject.FindStringSubmatch(trimmed); match != nil {
			cmd.Project = match[1]
		}
		return cmd
	}
	if trimmed == queryPhrase {
		return Query{}
	}
	return Unrecognized{}
}

func parseFullReport(date string, lines []string) Command {
	if len(lines) < 2 {
		return Unrecognized{}
	}
	project := strings.TrimSpace(lines[1])
	if project == "" {
		return Unrecognized{}
	}

	markerIdx := -1
	for i, line := range lines {
		if strings.Contains(line, staffMarker) {
			markerIdx = i
			break
		}
	}
	if markerIdx < 0 {
		return Unrecognized{}
	}

	var staff []Staff
	for _, line := range lines[markerIdx+1:] {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.Contains(line, headCountWord) || strings.Contains(line, lunchBoxWord) {
			continue
		}
		name, note := splitNote(ordinalPrefix.ReplaceAllString(line, ""))
		if name == "" {
			continue
		}
		staff = append(staff, Staff{Name: name, Note: note})
	}
	if len(staff) == 0 {
		return Unrecognized{}
	}

	return FullReport{Date: date, Project: project, Staff: staff}
}

func parseAddPerson(rest string) Command {
	rest, note := splitNote(rest)
	name, project := splitProject(rest)
	if name == "" {
		return Unrecognized{}
	}
	return AddPerson{Name: name, Project: project, Note: note}
}

func parseCheckout(rest string) Command {
	name, project := splitProject(strings.TrimSpace(rest))
	if name == "" {
		return Unrecognized{}
	}
	return Checkout{Name: name, Project: project}
}

// splitNote strips a trailing parenthesized note and returns the remainder
// and the note text.
func splitNote(line string) (rest, note string) {
	line = strings.TrimSpace(line)
	match := trailingNote.FindStringSubmatchIndex(line)
	if match == nil {
		return line, ""
	}
	return strings.TrimSpace(line[:match[0]]), strings.TrimSpace(line[match[2]:match[3]])
}

// splitProject splits an optional @<project> suffix off a name.
func splitProject(value string) (name, project string) {
	name, project, found := strings.Cut(value, "@")
	name = strings.TrimSpace(name)
	if !found {
		return name, ""
	}
	return name, strings.TrimSpace(project)
}
