package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/yourname/sleepcoach/internal"
)

// UnavailableLabel is what a duration that could not be computed displays as.
const UnavailableLabel = "unavailable"

// Duration is elapsed sleep time. The zero value is the unavailable result.
type Duration struct {
	Minutes int
	Valid   bool
}

func (d Duration) String() string {
	if !d.Valid {
		return UnavailableLabel
	}
	return internal.FormatMinutes(d.Minutes)
}

// ParseTimestamp reads "YYYY-MM-DD HH:MM" (seconds optional). No time zone
// conversion is applied.
func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range []string{internal.InputLayout, internal.TimestampLayout} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", internal.ErrInvalidTimestamp, value)
}

// ParseDateTime joins a calendar date and a clock time and parses them.
func ParseDateTime(date, clock string) (time.Time, error) {
	return ParseTimestamp(strings.TrimSpace(date) + " " + strings.TrimSpace(clock))
}

// CorrectWake moves wakeAt one day forward when it does not come after
// sleepAt. The correction is applied once and never repeated.
func CorrectWake(sleepAt, wakeAt time.Time) time.Time {
	if !wakeAt.After(sleepAt) {
		return wakeAt.Add(24 * time.Hour)
	}
	return wakeAt
}

// DurationBetween corrects wakeAt once and returns it with the elapsed time.
// A wake time still not after sleepAt is rejected with the unavailable Duration.
func DurationBetween(sleepAt, wakeAt time.Time) (time.Time, Duration, error) {
	corrected := CorrectWake(sleepAt, wakeAt)
	if !corrected.After(sleepAt) {
		return wakeAt, Duration{}, fmt.Errorf("%w: wake %s is more than a day before sleep %s",
			internal.ErrInvalidTimestamp, wakeAt.Format(internal.InputLayout), sleepAt.Format(internal.InputLayout))
	}
	elapsed := corrected.Sub(sleepAt)
	return corrected, Duration{Minutes: int(elapsed / time.Minute), Valid: true}, nil
}

// CalculateDuration parses both timestamps and computes the duration. On a
// parse failure or an unusable wake time it returns the unavailable Duration together with the error,
// so display code can ignore the error and callers that persist cannot.
func CalculateDuration(sleepAt, wakeAt string) (Duration, error) {
	start, err := ParseTimestamp(sleepAt)
	if err != nil {
		return Duration{}, err
	}
	end, err := ParseTimestamp(wakeAt)
	if err != nil {
		return Duration{}, err
	}
	_, d, err := DurationBetween(start, end)
	return d, err
}
