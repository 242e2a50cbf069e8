package services

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/localnerve/stepio/internal/models"
	"github.com/localnerve/stepio/internal/types"
)

func reportRecord() models.Record {
	rec := models.NewRecord()
	rec.User = &models.User{Name: "Carla"}
	rec.Children = []models.Child{{
		ID:         "c1",
		Name:       "Bia",
		BirthDate:  "2019-03-15",
		Conditions: types.FlexList[models.Condition]{"TEA", "custom"},
	}}
	rec.ActiveChildID = "c1"
	rec.DailyLogs = map[string]models.DailyLog{
		"c1:2024-05-03": {ChildID: "c1", Date: "2024-05-03", Mood: "calmo", Sleep: "bem", Notes: "ok"},
		"c1:2024-05-01": {ChildID: "c1", Date: "2024-05-01", Mood: "calmo", Crisis: "leve"},
		"c1:2024-04-30": {ChildID: "c1", Date: "2024-04-30", Mood: "raiva"},
	}
	rec.Events = []models.Event{
		{ID: "e2", ChildID: "c1", Title: "Fono", Datetime: "2024-05-20T14:00", Type: models.EventTherapy},
		{ID: "e1", ChildID: "c1", Title: "Pediatra", Datetime: "2024-05-02T09:15", Type: models.EventDoctor, Professional: "Dra. Ana"},
		{ID: "e3", ChildID: "c1", Title: "June", Datetime: "2024-06-01T09:00", Type: models.EventSchool},
	}
	rec.Milestones = []models.Milestone{
		{ID: "m1", ChildID: "c1", Title: "First words", Date: "2024-05-12"},
		{ID: "m2", ChildID: "c1", Title: "Old", Date: "2023-05-12"},
	}
	rec.TherapyPlans = map[string]models.TherapyPlan{
		"c1": {ChildID: "c1", Goals: []models.TherapyGoal{
			{ID: "g1", Text: "Keep sessions", Done: true, Source: models.GoalAuto},
			{ID: "g2", Text: "Read together", Source: models.GoalCustom},
		}},
	}
	return rec
}

func TestMonthlyReport(t *testing.T) {
	month, err := ParseMonth("2024-05", time.UTC)
	require.NoError(t, err)

	data, err := MonthlyReport(reportRecord(), "c1", month, models.LanguageEN)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetSummary, SheetLogs, SheetEvents, SheetMilestones, SheetGoals}, f.GetSheetList())

	summary, err := f.GetRows(SheetSummary)
	require.NoError(t, err)
	assert.Equal(t, []string{"Child", "Bia"}, summary[0])
	assert.Equal(t, []string{"Age", "5 years"}, summary[1])
	assert.Equal(t, []string{"Conditions", "Autism (ASD), custom"}, summary[2])
	assert.Equal(t, []string{"Parent", "Carla"}, summary[3])
	assert.Equal(t, []string{"Month", "2024-05"}, summary[4])
	assert.Equal(t, []string{"Logs", "2"}, summary[5])
	assert.Equal(t, []string{"Top mood", "Calm (2)"}, summary[6])
	assert.Equal(t, []string{"Top sleep", "Slept well (1)"}, summary[7])

	logs, err := f.GetRows(SheetLogs)
	require.NoError(t, err)
	require.Len(t, logs, 3)
	assert.Equal(t, []string{"2024-05-01", "Calm", "-", "-", "Mild", "-"}, logs[1])
	assert.Equal(t, "2024-05-03", logs[2][0])

	events, err := f.GetRows(SheetEvents)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, []string{"02/05/2024", "09:15", "Pediatra", "Dra. Ana", "Doctor", "-"}, events[1])
	assert.Equal(t, "Fono", events[2][2])

	milestones, err := f.GetRows(SheetMilestones)
	require.NoError(t, err)
	require.Len(t, milestones, 2)
	assert.Equal(t, "First words", milestones[1][1])

	goals, err := f.GetRows(SheetGoals)
	require.NoError(t, err)
	require.Len(t, goals, 3)
	assert.Equal(t, []string{"Keep sessions", "Done", "Suggested"}, goals[1])
	assert.Equal(t, []string{"Read together", "Pending", "Custom"}, goals[2])
}

func TestMonthlyReportUnknownChild(t *testing.T) {
	month, err := ParseMonth("2024-05", time.UTC)
	require.NoError(t, err)

	_, err = MonthlyReport(reportRecord(), "nope", month, models.LanguagePT)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestParseMonth(t *testing.T) {
	_, err := ParseMonth("05/2024", time.UTC)
	assert.ErrorIs(t, err, ErrInvalidMonth)
}

func TestAge(t *testing.T) {
	now := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "5 anos", Age("2019-03-15", now, models.LanguagePT))
	assert.Equal(t, "4 years", Age("2019-05-11", now, models.LanguageEN))
	assert.Equal(t, "7 months", Age("2023-10-01", now, models.LanguageEN))
	assert.Equal(t, "", Age("", now, models.LanguageEN))
	assert.Equal(t, "", Age("2025-01-01", now, models.LanguageEN))
}
