// Package policy decides what a generation request is allowed to say.
//
// Decisions are structured values; rendering them into prompt text is the
// advice package's job. Nothing here performs I/O.
package policy

import (
	"time"

	"github.com/yourname/sleepcoach/internal"
)

type MedicationInstruction string

const (
	// MedicationNeverMention: the user takes no medication.
	MedicationNeverMention MedicationInstruction = "never_mention"
	// MedicationCautiousReduction: the user wants to reduce; physician consultation
	// is mandatory and the topic is gated to once per window.
	MedicationCautiousReduction MedicationInstruction = "cautious_reduction"
	// MedicationDoNotMention: the user takes medication and is not asking to change it.
	MedicationDoNotMention MedicationInstruction = "do_not_mention"
)

type IntensityInstruction string

const (
	IntensityGeneralHygiene IntensityInstruction = "general_hygiene"
	IntensityCoreTechniques IntensityInstruction = "core_techniques"
	IntensityFullProgram    IntensityInstruction = "full_program"
)

const (
	DefaultGateWindow = 7 * 24 * time.Hour

	// HighNegativeDensity is the share of negative indicators at which the
	// request must push toward professional consultation.
	HighNegativeDensity = 0.5

	lowScore  = 40
	highScore = 60
)

// Request is the per-call context the decision depends on besides the profile.
type Request struct {
	Now time.Time
	// LastMedicationMention is the newest guidance that was allowed to discuss
	// medication; nil means never.
	LastMedicationMention *time.Time
	// MentionHistoryKnown is false when the mention history could not be read.
	MentionHistoryKnown bool
	GateWindow          time.Duration
	NegativeDensity     float64
}

type Decision struct {
	Medication             MedicationInstruction
	Intensity              IntensityInstruction
	MedicationTopicAllowed bool
	RecommendProfessional  bool
}

// Decide is total: a nil or incomplete profile falls back to the defaults.
func Decide(p *internal.UserProfile, req Request) Decision {
	if p == nil {
		p = internal.DefaultProfile()
	}
	d := Decision{
		Medication:            SelectMedication(p.MedicationStatus, p.ReductionIntent),
		Intensity:             SelectIntensity(p.AdviceIntensity),
		RecommendProfessional: req.NegativeDensity >= HighNegativeDensity,
	}
	d.MedicationTopicAllowed = d.Medication == MedicationCautiousReduction && gateOpen(req)
	return d
}

func SelectMedication(status internal.MedicationStatus, intent internal.ReductionIntent) MedicationInstruction {
	if status != internal.MedicationUsing {
		return MedicationNeverMention
	}
	switch intent {
	case internal.ReductionWantsToReduce:
		return MedicationCautiousReduction
	default:
		return MedicationDoNotMention
	}
}

// SelectIntensity maps unknown or missing values to the medium instruction.
func SelectIntensity(intensity internal.AdviceIntensity) IntensityInstruction {
	switch intensity {
	case internal.IntensityLight:
		return IntensityGeneralHygiene
	case internal.IntensityHard:
		return IntensityFullProgram
	default:
		return IntensityCoreTechniques
	}
}

// gateOpen fails closed whenever the history is unknown.
func gateOpen(req Request) bool {
	if !req.MentionHistoryKnown {
		return false
	}
	if req.LastMedicationMention == nil {
		return true
	}
	window := req.GateWindow
	if window <= 0 {
		window = DefaultGateWindow
	}
	return req.Now.Sub(*req.LastMedicationMention) >= window
}

// NegativeDensity is the share of negative indicators over the completed
// sessions: low satisfaction, low quality, high dissatisfaction, high anxiety.
func NegativeDensity(sessions []internal.SleepSession) float64 {
	var total, negative int
	for _, s := range sessions {
		if s.IsOpen() {
			continue
		}
		total += 4
		if s.Satisfaction < lowScore {
			negative++
		}
		if s.Quality < lowScore {
			negative++
		}
		if s.Dissatisfaction > highScore {
			negative++
		}
		if s.Anxiety > highScore {
			negative++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(negative) / float64(total)
}
