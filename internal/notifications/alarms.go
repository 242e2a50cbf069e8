// Package notifications derives reminder alarms for events and medications
// and keeps a notification platform in sync with them.
package notifications

import (
	"fmt"
	"strconv"
	"time"

	"github.com/localnerve/stepio/internal/models"
	"github.com/localnerve/stepio/internal/schedule"
	"github.com/localnerve/stepio/internal/utils"
)

// ChannelID is the platform channel every reminder is posted to.
const ChannelID = "stepio-reminders"

// Kind is the source entity type of an alarm.
type Kind string

const (
	KindEvent      Kind = "event"
	KindMedication Kind = "medication"
)

// Alarm is one concrete scheduled reminder.
type Alarm struct {
	ID            int64     `json:"id"`
	Kind          Kind      `json:"kind"`
	SourceID      string    `json:"sourceId"`
	OffsetMinutes int       `json:"offsetMinutes"`
	TimeOfDay     string    `json:"timeOfDay,omitempty"`
	FireAt        time.Time `json:"fireAt"`
	Repeats       bool      `json:"repeats"`
	Title         string    `json:"title"`
	Body          string    `json:"body"`
	ChannelID     string    `json:"channelId"`
}

type offset struct {
	label   string
	minutes int
}

// Changing either table changes alarm ids; see schedule.TimesFor.
var (
	eventOffsets = []offset{
		{"1 day", -24 * 60},
		{"30 min", -30},
		{"now", 0},
	}
	medicationOffsets = []offset{
		{"1h", -60},
		{"5 min", -5},
		{"now", 0},
	}
)

func eventKey(eventID string, minutes int) string {
	return "event:" + eventID + ":" + strconv.Itoa(minutes)
}

func medicationKey(medicationID, timeOfDay string, minutes int) string {
	return "med:" + medicationID + ":" + timeOfDay + ":" + strconv.Itoa(minutes)
}

func reminderBody(name string, o offset) string {
	if o.minutes == 0 {
		return name + " now"
	}
	return name + " in " + o.label
}

var instantLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseInstant reads an ISO 8601 date-time. Values without a zone are read
// in loc.
func ParseInstant(value string, loc *time.Location) (time.Time, error) {
	for _, layout := range instantLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid datetime %q", value)
}

// EventAlarms returns the one-shot reminders for ev that are still in the
// future at now.
func EventAlarms(ev models.Event, now time.Time, loc *time.Location) ([]Alarm, error) {
	base, err := ParseInstant(ev.Datetime, loc)
	if err != nil {
		return nil, err
	}

	var alarms []Alarm
	for _, o := range eventOffsets {
		at := base.Add(time.Duration(o.minutes) * time.Minute)
		if !at.After(now) {
			continue
		}
		alarms = append(alarms, Alarm{
			ID:            utils.HashID(eventKey(ev.ID, o.minutes)),
			Kind:          KindEvent,
			SourceID:      ev.ID,
			OffsetMinutes: o.minutes,
			FireAt:        at,
			Title:         "Upcoming appointment",
			Body:          reminderBody(ev.Title, o),
			ChannelID:     ChannelID,
		})
	}
	return alarms, nil
}

// MedicationAlarms returns one daily repeating reminder per dose time and
// offset. The first occurrence is today when still ahead of now, else tomorrow.
func MedicationAlarms(med models.Medication, now time.Time, loc *time.Location) []Alarm {
	now = now.In(loc)
	y, m, d := now.Date()

	var alarms []Alarm
	for _, timeOfDay := range schedule.TimesFor(med.Frequency) {
		minutes, err := schedule.MinutesOf(timeOfDay)
		if err != nil {
			continue
		}
		for _, o := range medicationOffsets {
			target := ((minutes+o.minutes)%1440 + 1440) % 1440
			at := time.Date(y, m, d, target/60, target%60, 0, 0, loc)
			if !at.After(now) {
				at = time.Date(y, m, d+1, target/60, target%60, 0, 0, loc)
			}
			alarms = append(alarms, Alarm{
				ID:            utils.HashID(medicationKey(med.ID, timeOfDay, o.minutes)),
				Kind:          KindMedication,
				SourceID:      med.ID,
				OffsetMinutes: o.minutes,
				TimeOfDay:     timeOfDay,
				FireAt:        at,
				Repeats:       true,
				Title:         "Medication reminder",
				Body:          reminderBody(med.Name, o),
				ChannelID:     ChannelID,
			})
		}
	}
	return alarms
}

// EventAlarmIDs returns every id EventAlarms can produce for eventID,
// whether or not the offset was still in the future.
func EventAlarmIDs(eventID string) []int64 {
	ids := make([]int64, 0, len(eventOffsets))
	for _, o := range eventOffsets {
		ids = append(ids, utils.HashID(eventKey(eventID, o.minutes)))
	}
	return ids
}

// MedicationAlarmIDs returns the ids MedicationAlarms produces for med at its
// current frequency.
func MedicationAlarmIDs(med models.Medication) []int64 {
	times := schedule.TimesFor(med.Frequency)
	ids := make([]int64, 0, len(times)*len(medicationOffsets))
	for _, timeOfDay := range times {
		for _, o := range medicationOffsets {
			ids = append(ids, utils.HashID(medicationKey(med.ID, timeOfDay, o.minutes)))
		}
	}
	return ids
}
