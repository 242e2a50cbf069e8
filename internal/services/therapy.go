package services

import (
	"fmt"
	"sort"
	"time"

	"github.com/localnerve/stepio/internal/models"
	"github.com/localnerve/stepio/internal/notifications"
)

const (
	suggestionWindow = 7 * 24 * time.Hour
	alertThreshold   = 2
)

var goalTexts = map[string][2]string{
	"schedule": {"Agendar ao menos 1 terapia nesta semana.", "Schedule at least 1 therapy this week."},
	"addOne":   {"Adicionar mais uma sessao se possivel.", "Add one more session if possible."},
	"keep":     {"Manter as sessoes planejadas da semana.", "Keep the planned sessions this week."},
	"mood":     {"Registrar gatilhos e emocoes apos as sessoes.", "Log triggers and emotions after sessions."},
	"sleep":    {"Ajustar rotina de sono com horario fixo.", "Adjust sleep routine with a fixed bedtime."},
	"food":     {"Planejar alimentacao com foco em variedade.", "Plan meals with focus on variety."},
	"noData":   {"Sem dados", "No data"},
}

func text(key string, lang models.Language) string {
	if lang == models.LanguageEN {
		return goalTexts[key][1]
	}
	return goalTexts[key][0]
}

// UpcomingEvents returns the events starting within the next seven days,
// soonest first. Events with an unreadable datetime are skipped.
func UpcomingEvents(events []models.Event, now time.Time, loc *time.Location) []models.Event {
	type dated struct {
		at time.Time
		ev models.Event
	}
	var in []dated
	end := now.Add(suggestionWindow)
	for _, ev := range events {
		at, err := notifications.ParseInstant(ev.Datetime, loc)
		if err != nil || at.Before(now) || at.After(end) {
			continue
		}
		in = append(in, dated{at, ev})
	}
	sort.SliceStable(in, func(i, j int) bool { return in[i].at.Before(in[j].at) })

	out := make([]models.Event, len(in))
	for i, d := range in {
		out[i] = d.ev
	}
	return out
}

// logsBetween returns logs dated in [start, end], oldest first.
func logsBetween(logs []models.DailyLog, start, end time.Time, loc *time.Location) []models.DailyLog {
	var out []models.DailyLog
	for _, l := range logs {
		if l.Date == "" {
			continue
		}
		day, err := time.ParseInLocation("2006-01-02", l.Date, loc)
		if err != nil || day.Before(start) || day.After(end) {
			continue
		}
		out = append(out, l)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// SuggestGoals derives the automatic therapy goals of a child from the
// sessions booked for the coming week and the diary of the past week.
func SuggestGoals(events []models.Event, logs []models.DailyLog, now time.Time, loc *time.Location, lang models.Language) []string {
	now = now.In(loc)
	var goals []string

	switch upcoming := len(UpcomingEvents(events, now, loc)); {
	case upcoming == 0:
		goals = append(goals, text("schedule", lang))
	case upcoming < 2:
		goals = append(goals, text("addOne", lang))
	default:
		goals = append(goals, text("keep", lang))
	}

	var moods, sleeps, foods int
	for _, l := range logsBetween(logs, now.AddDate(0, 0, -6), now, loc) {
		if l.Mood.IsNegative() {
			moods++
		}
		if l.Sleep.IsChallenge() {
			sleeps++
		}
		if l.Food.IsChallenge() {
			foods++
		}
	}
	if moods >= alertThreshold {
		goals = append(goals, text("mood", lang))
	}
	if sleeps >= alertThreshold {
		goals = append(goals, text("sleep", lang))
	}
	if foods >= alertThreshold {
		goals = append(goals, text("food", lang))
	}
	return goals
}

// Count is how many logs carried one option value.
type Count struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Tally counts the values of one diary field, in order of first appearance.
type Tally []Count

func (t Tally) add(id, label string) Tally {
	if id == "" {
		return t
	}
	for i := range t {
		if t[i].ID == id {
			t[i].Count++
			return t
		}
	}
	return append(t, Count{ID: id, Label: label, Count: 1})
}

// Top formats the most frequent value as "label (count)". Ties go to the
// value seen first.
func (t Tally) Top(lang models.Language) string {
	if len(t) == 0 {
		return text("noData", lang)
	}
	best := t[0]
	for _, c := range t[1:] {
		if c.Count > best.Count {
			best = c
		}
	}
	return fmt.Sprintf("%s (%d)", best.Label, best.Count)
}

// Summary aggregates a run of daily logs.
type Summary struct {
	TotalLogs     int   `json:"totalLogs"`
	Moods         Tally `json:"moods"`
	Sleeps        Tally `json:"sleeps"`
	Foods         Tally `json:"foods"`
	Crises        Tally `json:"crises"`
	UpcomingCount int   `json:"upcomingCount"`
}

// Summarize tallies the given logs, which are expected sorted by date.
func Summarize(logs []models.DailyLog, lang models.Language) Summary {
	s := Summary{TotalLogs: len(logs)}
	for _, l := range logs {
		s.Moods = s.Moods.add(string(l.Mood), l.Mood.Label(lang))
		s.Sleeps = s.Sleeps.add(string(l.Sleep), l.Sleep.Label(lang))
		s.Foods = s.Foods.add(string(l.Food), l.Food.Label(lang))
		s.Crises = s.Crises.add(string(l.Crisis), l.Crisis.Label(lang))
	}
	return s
}

// MonthSummary covers the last 30 days of logs and the sessions booked for
// the next week.
func MonthSummary(events []models.Event, logs []models.DailyLog, now time.Time, loc *time.Location, lang models.Language) Summary {
	now = now.In(loc)
	s := Summarize(logsBetween(logs, now.AddDate(0, 0, -29), now, loc), lang)
	s.UpcomingCount = len(UpcomingEvents(events, now, loc))
	return s
}

// TherapySuggestions is what the therapy screen shows for a child.
type TherapySuggestions struct {
	ChildID  string         `json:"childId"`
	Goals    []string       `json:"goals"`
	Upcoming []models.Event `json:"upcoming"`
	Summary  Summary        `json:"summary"`
}

// SuggestForChild gathers goals, the coming week and the 30 day summary of
// one child from a record snapshot.
func SuggestForChild(rec models.Record, childID string, now time.Time, loc *time.Location, lang models.Language) TherapySuggestions {
	events := rec.EventsFor(childID)
	logs := rec.LogsFor(childID)
	upcoming := UpcomingEvents(events, now.In(loc), loc)
	if upcoming == nil {
		upcoming = []models.Event{}
	}
	return TherapySuggestions{
		ChildID:  childID,
		Goals:    SuggestGoals(events, logs, now, loc, lang),
		Upcoming: upcoming,
		Summary:  MonthSummary(events, logs, now, loc, lang),
	}
}
