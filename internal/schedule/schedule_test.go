package schedule

import (
	"testing"

	"github.com/localnerve/stepio/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimesFor(t *testing.T) {
	tests := []struct {
		frequency models.Frequency
		want      []string
	}{
		{models.FrequencyDaily, []string{"08:00"}},
		{models.FrequencyEvery6h, []string{"00:00", "06:00", "12:00", "18:00"}},
		{models.FrequencyEvery8h, []string{"00:00", "08:00", "16:00"}},
		{models.FrequencyEvery12h, []string{"08:00", "20:00"}},
		{models.FrequencyAsNeeded, []string{}},
		{models.Frequency("weekly"), []string{}},
	}

	for _, tt := range tests {
		t.Run(string(tt.frequency), func(t *testing.T) {
			assert.Equal(t, tt.want, TimesFor(tt.frequency))
		})
	}
}

func TestTimesForReturnsCopy(t *testing.T) {
	times := TimesFor(models.FrequencyDaily)
	times[0] = "23:59"
	assert.Equal(t, []string{"08:00"}, TimesFor(models.FrequencyDaily))
}

func TestMinutesOf(t *testing.T) {
	m, err := MinutesOf("16:30")
	require.NoError(t, err)
	assert.Equal(t, 990, m)

	m, err = MinutesOf("00:00")
	require.NoError(t, err)
	assert.Equal(t, 0, m)

	for _, bad := range []string{"", "8", "24:00", "08:60", "aa:bb"} {
		_, err := MinutesOf(bad)
		assert.Error(t, err, bad)
	}
}
