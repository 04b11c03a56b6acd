package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourname/sleepcoach/internal"
)

func TestCalculateDuration(t *testing.T) {
	tests := []struct {
		name    string
		sleepAt string
		wakeAt  string
		want    string
		minutes int
	}{
		{"overnight", "2024-01-01 23:30", "2024-01-02 06:15", "6h45m", 405},
		{"clock rollover input", "2024-01-01 23:30", "2024-01-01 00:15", "0h45m", 45},
		{"same day nap", "2024-01-01 13:00", "2024-01-01 14:30", "1h30m", 90},
		{"equal times", "2024-01-01 23:00", "2024-01-01 23:00", "24h00m", 1440},
		{"seconds accepted", "2024-01-01 22:00:00", "2024-01-02 05:00:00", "7h00m", 420},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := CalculateDuration(tt.sleepAt, tt.wakeAt)
			require.NoError(t, err)
			assert.True(t, d.Valid)
			assert.Equal(t, tt.minutes, d.Minutes)
			assert.Equal(t, tt.want, d.String())
		})
	}
}

func TestCalculateDurationInvalidInput(t *testing.T) {
	for _, in := range [][2]string{
		{"2024-01-01 25:00", "2024-01-02 06:00"},
		{"2024-01-01 23:00", "tomorrow"},
		{"", "2024-01-02 06:00"},
	} {
		d, err := CalculateDuration(in[0], in[1])
		assert.ErrorIs(t, err, internal.ErrInvalidTimestamp)
		assert.ErrorIs(t, err, internal.ErrValidation)
		assert.False(t, d.Valid)
		assert.Equal(t, UnavailableLabel, d.String())
	}
}

func TestCalculateDurationWakeDaysBeforeSleep(t *testing.T) {
	d, err := CalculateDuration("2024-01-05 23:00", "2024-01-01 06:00")
	assert.ErrorIs(t, err, internal.ErrInvalidTimestamp)
	assert.False(t, d.Valid)
	assert.Equal(t, UnavailableLabel, d.String())
}

func TestDurationBetweenReturnsCorrectedWake(t *testing.T) {
	sleepAt := time.Date(2024, 1, 1, 23, 30, 0, 0, time.UTC)
	wakeAt := time.Date(2024, 1, 1, 6, 0, 0, 0, time.UTC)

	corrected, d, err := DurationBetween(sleepAt, wakeAt)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 2, 6, 0, 0, 0, time.UTC), corrected)
	assert.Equal(t, 390, d.Minutes)
}

func TestCorrectWakeAppliesOnce(t *testing.T) {
	sleepAt := time.Date(2024, 1, 3, 23, 0, 0, 0, time.UTC)
	wakeAt := time.Date(2024, 1, 1, 6, 0, 0, 0, time.UTC)

	// Two days behind is still only moved by one day.
	corrected := CorrectWake(sleepAt, wakeAt)
	assert.Equal(t, wakeAt.Add(24*time.Hour), corrected)
}

func TestParseDateTime(t *testing.T) {
	ts, err := ParseDateTime(" 2024-03-09 ", "07:05")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 9, 7, 5, 0, 0, time.UTC), ts)

	_, err = ParseDateTime("2024-03-09", "7am")
	assert.ErrorIs(t, err, internal.ErrInvalidTimestamp)
}
