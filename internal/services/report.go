package services

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/localnerve/stepio/internal/models"
	"github.com/localnerve/stepio/internal/notifications"
)

// ErrInvalidMonth is returned for a month that is not YYYY-MM.
var ErrInvalidMonth = errors.New("month must be YYYY-MM")

// Report sheet names.
const (
	SheetSummary    = "Summary"
	SheetLogs       = "Logs"
	SheetEvents     = "Events"
	SheetMilestones = "Milestones"
	SheetGoals      = "Goals"
)

var reportHeaders = map[string][2][]string{
	SheetLogs: {
		{"Data", "Humor", "Alimentacao", "Sono", "Crise", "Notas"},
		{"Date", "Mood", "Food", "Sleep", "Crisis", "Notes"},
	},
	SheetEvents: {
		{"Data", "Hora", "Titulo", "Profissional", "Tipo", "Local"},
		{"Date", "Time", "Title", "Professional", "Type", "Location"},
	},
	SheetMilestones: {
		{"Data", "Titulo", "Descricao"},
		{"Date", "Title", "Description"},
	},
	SheetGoals: {
		{"Meta", "Status", "Origem"},
		{"Goal", "Status", "Source"},
	},
}

var summaryLabels = [2][]string{
	{"Crianca", "Idade", "Condicoes", "Responsavel", "Mes", "Registros", "Humor mais comum", "Sono mais comum", "Alimentacao mais comum", "Crise mais comum"},
	{"Child", "Age", "Conditions", "Parent", "Month", "Logs", "Top mood", "Top sleep", "Top food", "Top crisis"},
}

func byLang(pair [2][]string, lang models.Language) []string {
	if lang == models.LanguageEN {
		return pair[1]
	}
	return pair[0]
}

// ParseMonth reads a YYYY-MM month as its first instant in loc.
func ParseMonth(value string, loc *time.Location) (time.Time, error) {
	month, err := time.ParseInLocation("2006-01", value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidMonth, value)
	}
	return month, nil
}

// Age formats the age of someone born on birthDate at now, in years, or in
// months below one year. An unreadable birth date yields "".
func Age(birthDate string, now time.Time, lang models.Language) string {
	born, err := time.Parse("2006-01-02", birthDate)
	if err != nil || born.After(now) {
		return ""
	}
	months := (now.Year()-born.Year())*12 + int(now.Month()-born.Month())
	if now.Day() < born.Day() {
		months--
	}
	if months >= 12 {
		if lang == models.LanguageEN {
			return fmt.Sprintf("%d years", months/12)
		}
		return fmt.Sprintf("%d anos", months/12)
	}
	if lang == models.LanguageEN {
		return fmt.Sprintf("%d months", months)
	}
	return fmt.Sprintf("%d meses", months)
}

// MonthlyReport builds the XLSX report of one child for the calendar month
// starting at month. The record is only read.
func MonthlyReport(rec models.Record, childID string, month time.Time, lang models.Language) ([]byte, error) {
	child, ok := rec.FindChild(childID)
	if !ok {
		return nil, fmt.Errorf("%w: child %s", ErrNotFound, childID)
	}
	loc := month.Location()
	start := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, loc)
	end := start.AddDate(0, 1, 0).Add(-time.Nanosecond)

	logs := logsBetween(rec.LogsFor(childID), start, end, loc)
	summary := Summarize(logs, lang)

	type datedEvent struct {
		at time.Time
		ev models.Event
	}
	var events []datedEvent
	for _, ev := range rec.EventsFor(childID) {
		at, err := notifications.ParseInstant(ev.Datetime, loc)
		if err == nil && !at.Before(start) && !at.After(end) {
			events = append(events, datedEvent{at, ev})
		}
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].at.Before(events[j].at) })

	var milestones []models.Milestone
	for _, m := range rec.MilestonesFor(childID) {
		at, err := time.ParseInLocation("2006-01-02", m.Date, loc)
		if err == nil && !at.Before(start) && !at.After(end) {
			milestones = append(milestones, m)
		}
	}
	sort.SliceStable(milestones, func(i, j int) bool { return milestones[i].Date < milestones[j].Date })

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	conditions := make([]string, 0, len(child.Conditions))
	for _, c := range child.Conditions {
		conditions = append(conditions, c.Label(lang))
	}
	parent := ""
	if rec.User != nil {
		parent = rec.User.Name
	}
	values := []interface{}{
		child.Name,
		Age(child.BirthDate, end, lang),
		strings.Join(conditions, ", "),
		parent,
		start.Format("2006-01"),
		summary.TotalLogs,
		summary.Moods.Top(lang),
		summary.Sleeps.Top(lang),
		summary.Foods.Top(lang),
		summary.Crises.Top(lang),
	}
	for i, label := range byLang(summaryLabels, lang) {
		row := i + 1
		if err := f.SetCellValue(SheetSummary, fmt.Sprintf("A%d", row), label); err != nil {
			return nil, fmt.Errorf("failed to write summary: %w", err)
		}
		if err := f.SetCellValue(SheetSummary, fmt.Sprintf("B%d", row), values[i]); err != nil {
			return nil, fmt.Errorf("failed to write summary: %w", err)
		}
	}
	if err := f.SetCellStyle(SheetSummary, "A1", fmt.Sprintf("A%d", len(values)), headerStyle); err != nil {
		return nil, fmt.Errorf("failed to style summary: %w", err)
	}
	_ = f.SetColWidth(SheetSummary, "A", "A", 24)
	_ = f.SetColWidth(SheetSummary, "B", "B", 40)

	var logRows [][]interface{}
	for _, l := range logs {
		logRows = append(logRows, []interface{}{
			l.Date, dash(l.Mood.Label(lang)), dash(l.Food.Label(lang)),
			dash(l.Sleep.Label(lang)), dash(l.Crisis.Label(lang)), dash(l.Notes),
		})
	}
	var eventRows [][]interface{}
	for _, e := range events {
		eventRows = append(eventRows, []interface{}{
			e.at.Format("02/01/2006"), e.at.Format("15:04"), e.ev.Title,
			dash(e.ev.Professional), e.ev.Type.Label(lang), dash(e.ev.Location),
		})
	}
	var milestoneRows [][]interface{}
	for _, m := range milestones {
		milestoneRows = append(milestoneRows, []interface{}{m.Date, m.Title, dash(m.Description)})
	}
	var goalRows [][]interface{}
	for _, g := range rec.TherapyPlans[childID].Goals {
		goalRows = append(goalRows, []interface{}{g.Text, goalStatus(g.Done, lang), g.Source.Label(lang)})
	}

	for _, sheet := range []struct {
		name string
		rows [][]interface{}
	}{
		{SheetLogs, logRows},
		{SheetEvents, eventRows},
		{SheetMilestones, milestoneRows},
		{SheetGoals, goalRows},
	} {
		if err := writeTable(f, sheet.name, byLang(reportHeaders[sheet.name], lang), sheet.rows, headerStyle); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeTable(f *excelize.File, sheet string, headers []string, rows [][]interface{}, headerStyle int) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", sheet, err)
	}
	row := make([]interface{}, len(headers))
	for i, h := range headers {
		row[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &row); err != nil {
		return fmt.Errorf("failed to write %s header: %w", sheet, err)
	}
	last, err := excelize.CoordinatesToCellName(len(headers), 1)
	if err != nil {
		return fmt.Errorf("failed to convert coordinates: %w", err)
	}
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("failed to style %s header: %w", sheet, err)
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetSheetRow(sheet, cell, &r); err != nil {
			return fmt.Errorf("failed to write %s row: %w", sheet, err)
		}
	}
	return nil
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func goalStatus(done bool, lang models.Language) string {
	switch {
	case done && lang == models.LanguageEN:
		return "Done"
	case done:
		return "Concluida"
	case lang == models.LanguageEN:
		return "Pending"
	default:
		return "Pendente"
	}
}
