package internal

import (
	"fmt"
	"time"
)

const (
	// DateLayout is the calendar-day key shared by sessions and guidance.
	DateLayout = "2006-01-02"
	// TimestampLayout is the stored wall-clock form of sleep and wake times.
	TimestampLayout = "2006-01-02 15:04:05"
	// InputLayout is the date+time form accepted from the user.
	InputLayout = "2006-01-02 15:04"

	// ProfileID is the fixed identifier of the singleton profile row.
	ProfileID = 1
	// ReferenceID is the fixed identifier of the singleton reference content row.
	ReferenceID = 1
)

type SessionStatus string

const (
	SessionOpen     SessionStatus = "open"
	SessionComplete SessionStatus = "complete"
)

// SleepSession is one sleep attempt. Date is the wake day once the session
// is complete and the sleep day while it is still open.
type SleepSession struct {
	ID              string        `json:"id"`
	Date            string        `json:"date"`
	Status          SessionStatus `json:"status"`
	SleepAt         time.Time     `json:"sleep_at"`
	WakeAt          *time.Time    `json:"wake_at,omitempty"`
	DurationMinutes *int          `json:"duration_minutes,omitempty"`
	Satisfaction    int           `json:"satisfaction"`    // 0–100
	Quality         int           `json:"quality"`         // 0–100
	Dissatisfaction int           `json:"dissatisfaction"` // 0–100
	Anxiety         int           `json:"anxiety"`         // 0–100
	Preparation     string        `json:"preparation,omitempty"`
	Reflection      string        `json:"reflection,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
}

func (s *SleepSession) IsOpen() bool { return s.Status == SessionOpen }

type GuidanceKind string

const (
	GuidanceSession GuidanceKind = "session"
	GuidancePeriod  GuidanceKind = "period"
)

// Guidance is one generated advice text, associated with sessions by Date only.
type Guidance struct {
	ID                 string       `json:"id"`
	Date               string       `json:"date"`
	RangeStart         string       `json:"range_start,omitempty"`
	Kind               GuidanceKind `json:"kind"`
	Text               string       `json:"text"`
	MentionsMedication bool         `json:"mentions_medication"`
	CreatedAt          time.Time    `json:"created_at"`
}

type MedicationStatus string

const (
	MedicationNotUsing MedicationStatus = "not_using"
	MedicationUsing    MedicationStatus = "using"
)

type ReductionIntent string

const (
	ReductionNotApplicable ReductionIntent = "not_applicable"
	ReductionWantsToReduce ReductionIntent = "wants_to_reduce"
	ReductionMaintain      ReductionIntent = "maintain"
)

type AdviceIntensity string

const (
	IntensityLight  AdviceIntensity = "light"
	IntensityMedium AdviceIntensity = "medium"
	IntensityHard   AdviceIntensity = "hard"
)

type UserProfile struct {
	ID               int              `json:"id"`
	Nickname         string           `json:"nickname"`
	MedicationStatus MedicationStatus `json:"medication_status"`
	ReductionIntent  ReductionIntent  `json:"reduction_intent"`
	AdviceIntensity  AdviceIntensity  `json:"advice_intensity"`
}

// DefaultProfile is what a first access persists.
func DefaultProfile() *UserProfile {
	return &UserProfile{
		ID:               ProfileID,
		MedicationStatus: MedicationNotUsing,
		ReductionIntent:  ReductionNotApplicable,
		AdviceIntensity:  IntensityLight,
	}
}

type ReferenceContent struct {
	ID      int    `json:"id"`
	Content string `json:"content"`
}

// FormatMinutes renders a duration in minutes as "6h45m".
func FormatMinutes(minutes int) string {
	return fmt.Sprintf("%dh%02dm", minutes/60, minutes%60)
}
