// Package schedule maps medication frequencies onto fixed times of day.
package schedule

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/localnerve/stepio/internal/models"
)

// Changing any entry changes the alarm ids derived from it. Devices that
// scheduled under the old table keep those alarms until a full reschedule.
var timesOfDay = map[models.Frequency][]string{
	models.FrequencyDaily:    {"08:00"},
	models.FrequencyEvery6h:  {"00:00", "06:00", "12:00", "18:00"},
	models.FrequencyEvery8h:  {"00:00", "08:00", "16:00"},
	models.FrequencyEvery12h: {"08:00", "20:00"},
	models.FrequencyAsNeeded: {},
}

// TimesFor returns the "HH:MM" dose times for frequency, in order.
// Unknown frequencies and as-needed medications have no times.
func TimesFor(frequency models.Frequency) []string {
	times := timesOfDay[frequency]
	out := make([]string, len(times))
	copy(out, times)
	return out
}

// MinutesOf parses an "HH:MM" string into minutes after midnight.
func MinutesOf(timeOfDay string) (int, error) {
	hh, mm, ok := strings.Cut(timeOfDay, ":")
	if !ok {
		return 0, fmt.Errorf("invalid time of day %q", timeOfDay)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", timeOfDay)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", timeOfDay)
	}
	return h*60 + m, nil
}
