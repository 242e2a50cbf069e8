package notifications

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localnerve/stepio/internal/models"
	"github.com/localnerve/stepio/internal/utils"
)

var testNow = time.Date(2024, time.May, 10, 9, 30, 0, 0, time.UTC)

func TestEventAlarmsAllOffsetsAhead(t *testing.T) {
	ev := models.Event{ID: "e1", Title: "Fono", Datetime: "2024-05-12T10:00:00Z"}

	alarms, err := EventAlarms(ev, testNow, time.UTC)
	require.NoError(t, err)
	require.Len(t, alarms, 3)

	base := time.Date(2024, time.May, 12, 10, 0, 0, 0, time.UTC)
	assert.True(t, alarms[0].FireAt.Equal(base.Add(-24*time.Hour)))
	assert.Equal(t, -1440, alarms[0].OffsetMinutes)
	assert.Equal(t, "Fono in 1 day", alarms[0].Body)

	assert.True(t, alarms[1].FireAt.Equal(base.Add(-30*time.Minute)))
	assert.Equal(t, "Fono in 30 min", alarms[1].Body)

	assert.True(t, alarms[2].FireAt.Equal(base))
	assert.Equal(t, "Fono now", alarms[2].Body)

	for _, a := range alarms {
		assert.False(t, a.Repeats)
		assert.Equal(t, KindEvent, a.Kind)
		assert.Equal(t, "e1", a.SourceID)
		assert.Equal(t, ChannelID, a.ChannelID)
		assert.Equal(t, "Upcoming appointment", a.Title)
	}
}

func TestEventAlarmsSkipsPastOffsets(t *testing.T) {
	ev := models.Event{ID: "e1", Title: "Fono", Datetime: testNow.Add(10 * time.Minute).Format(time.RFC3339)}

	alarms, err := EventAlarms(ev, testNow, time.UTC)
	require.NoError(t, err)
	require.Len(t, alarms, 1)
	assert.Equal(t, 0, alarms[0].OffsetMinutes)
	assert.Equal(t, utils.HashID("event:e1:0"), alarms[0].ID)
}

func TestEventAlarmsPastEvent(t *testing.T) {
	ev := models.Event{ID: "e1", Datetime: "2024-05-01T10:00:00Z"}
	alarms, err := EventAlarms(ev, testNow, time.UTC)
	require.NoError(t, err)
	assert.Empty(t, alarms)
}

func TestEventAlarmsOffsetExactlyNow(t *testing.T) {
	ev := models.Event{ID: "e1", Datetime: testNow.Add(30 * time.Minute).Format(time.RFC3339)}
	alarms, err := EventAlarms(ev, testNow, time.UTC)
	require.NoError(t, err)
	// -30 lands exactly on now and is not in the future
	require.Len(t, alarms, 1)
	assert.Equal(t, 0, alarms[0].OffsetMinutes)
}

func TestEventAlarmsLocalDatetime(t *testing.T) {
	brt := time.FixedZone("BRT", -3*60*60)
	ev := models.Event{ID: "e1", Datetime: "2024-05-10T10:00"}

	alarms, err := EventAlarms(ev, testNow, brt)
	require.NoError(t, err)
	require.Len(t, alarms, 2)
	assert.True(t, alarms[1].FireAt.Equal(time.Date(2024, time.May, 10, 13, 0, 0, 0, time.UTC)))
}

func TestEventAlarmsInvalidDatetime(t *testing.T) {
	_, err := EventAlarms(models.Event{ID: "e1", Datetime: "tomorrow"}, testNow, time.UTC)
	assert.Error(t, err)
}

func TestMedicationAlarmsDaily(t *testing.T) {
	med := models.Medication{ID: "m1", Name: "Depakene", Frequency: models.FrequencyDaily}

	alarms := MedicationAlarms(med, testNow, time.UTC)
	require.Len(t, alarms, 3)

	want := []struct {
		offset int
		at     time.Time
		body   string
	}{
		{-60, time.Date(2024, time.May, 11, 7, 0, 0, 0, time.UTC), "Depakene in 1h"},
		{-5, time.Date(2024, time.May, 11, 7, 55, 0, 0, time.UTC), "Depakene in 5 min"},
		{0, time.Date(2024, time.May, 11, 8, 0, 0, 0, time.UTC), "Depakene now"},
	}
	for i, w := range want {
		a := alarms[i]
		assert.Equal(t, w.offset, a.OffsetMinutes)
		assert.True(t, a.FireAt.Equal(w.at), "got %s want %s", a.FireAt, w.at)
		assert.Equal(t, w.body, a.Body)
		assert.True(t, a.Repeats)
		assert.Equal(t, "08:00", a.TimeOfDay)
		assert.Equal(t, KindMedication, a.Kind)
		assert.Equal(t, "Medication reminder", a.Title)
	}
	assert.Equal(t, utils.HashID("med:m1:08:00:-60"), alarms[0].ID)
}

func TestMedicationAlarmsWrapMidnight(t *testing.T) {
	med := models.Medication{ID: "m1", Frequency: models.FrequencyEvery8h}

	alarms := MedicationAlarms(med, testNow, time.UTC)
	require.Len(t, alarms, 9)

	// 00:00 dose: the -60 reminder is 23:00, still ahead today
	assert.True(t, alarms[0].FireAt.Equal(time.Date(2024, time.May, 10, 23, 0, 0, 0, time.UTC)))
	assert.True(t, alarms[1].FireAt.Equal(time.Date(2024, time.May, 10, 23, 55, 0, 0, time.UTC)))
	assert.True(t, alarms[2].FireAt.Equal(time.Date(2024, time.May, 11, 0, 0, 0, 0, time.UTC)))

	// 16:00 dose is ahead today
	assert.True(t, alarms[8].FireAt.Equal(time.Date(2024, time.May, 10, 16, 0, 0, 0, time.UTC)))

	ids := make(map[int64]bool)
	for _, a := range alarms {
		ids[a.ID] = true
	}
	assert.Len(t, ids, 9)
}

func TestMedicationAlarmsInLocation(t *testing.T) {
	brt := time.FixedZone("BRT", -3*60*60)
	med := models.Medication{ID: "m1", Frequency: models.FrequencyDaily}

	// 09:30 UTC is 06:30 in BRT, so the 08:00 dose is still ahead today
	alarms := MedicationAlarms(med, testNow, brt)
	require.Len(t, alarms, 3)
	assert.True(t, alarms[2].FireAt.Equal(time.Date(2024, time.May, 10, 11, 0, 0, 0, time.UTC)))
}

func TestMedicationAlarmCounts(t *testing.T) {
	tests := []struct {
		frequency models.Frequency
		want      int
	}{
		{models.FrequencyDaily, 3},
		{models.FrequencyEvery6h, 12},
		{models.FrequencyEvery8h, 9},
		{models.FrequencyEvery12h, 6},
		{models.FrequencyAsNeeded, 0},
	}
	for _, tt := range tests {
		t.Run(string(tt.frequency), func(t *testing.T) {
			med := models.Medication{ID: "m1", Frequency: tt.frequency}
			assert.Len(t, MedicationAlarms(med, testNow, time.UTC), tt.want)
			assert.Len(t, MedicationAlarmIDs(med), tt.want)
		})
	}
}

func TestAlarmIDsMatchScheduledIDs(t *testing.T) {
	med := models.Medication{ID: "m1", Frequency: models.FrequencyEvery6h}
	var scheduled []int64
	for _, a := range MedicationAlarms(med, testNow, time.UTC) {
		scheduled = append(scheduled, a.ID)
	}
	assert.Equal(t, scheduled, MedicationAlarmIDs(med))

	ev := models.Event{ID: "e1", Datetime: "2024-06-01T10:00:00Z"}
	alarms, err := EventAlarms(ev, testNow, time.UTC)
	require.NoError(t, err)
	for i, a := range alarms {
		assert.Equal(t, EventAlarmIDs("e1")[i], a.ID)
	}
	assert.Equal(t, EventAlarmIDs("e1"), EventAlarmIDs("e1"))
}
