package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/yourname/sleepcoach/internal"
)

func TestDecide_AllProfileStates(t *testing.T) {
	wantMed := map[internal.MedicationStatus]map[internal.ReductionIntent]MedicationInstruction{
		internal.MedicationNotUsing: {
			internal.ReductionNotApplicable: MedicationNeverMention,
			internal.ReductionWantsToReduce: MedicationNeverMention,
			internal.ReductionMaintain:      MedicationNeverMention,
		},
		internal.MedicationUsing: {
			internal.ReductionNotApplicable: MedicationDoNotMention,
			internal.ReductionWantsToReduce: MedicationCautiousReduction,
			internal.ReductionMaintain:      MedicationDoNotMention,
		},
	}
	wantIntensity := map[internal.AdviceIntensity]IntensityInstruction{
		internal.IntensityLight:  IntensityGeneralHygiene,
		internal.IntensityMedium: IntensityCoreTechniques,
		internal.IntensityHard:   IntensityFullProgram,
	}
	req := Request{Now: time.Date(2024, 1, 10, 7, 0, 0, 0, time.UTC), MentionHistoryKnown: true}

	count := 0
	for status, intents := range wantMed {
		for intent, med := range intents {
			for intensity, inst := range wantIntensity {
				p := &internal.UserProfile{MedicationStatus: status, ReductionIntent: intent, AdviceIntensity: intensity}
				first := Decide(p, req)
				second := Decide(p, req)
				assert.Equal(t, first, second, "decision must be deterministic")
				assert.Equal(t, med, first.Medication, "%s/%s", status, intent)
				assert.Equal(t, inst, first.Intensity, "%s", intensity)
				assert.Equal(t, med == MedicationCautiousReduction, first.MedicationTopicAllowed)
				count++
			}
		}
	}
	assert.Equal(t, 18, count)
}

func TestSelectIntensity_UnknownFallsBackToMedium(t *testing.T) {
	assert.Equal(t, IntensityCoreTechniques, SelectIntensity(""))
	assert.Equal(t, IntensityCoreTechniques, SelectIntensity("extreme"))
}

func TestDecide_NilProfileUsesDefaults(t *testing.T) {
	d := Decide(nil, Request{MentionHistoryKnown: true})
	assert.Equal(t, MedicationNeverMention, d.Medication)
	assert.Equal(t, IntensityGeneralHygiene, d.Intensity)
	assert.False(t, d.MedicationTopicAllowed)
}

func TestMedicationGate(t *testing.T) {
	p := &internal.UserProfile{
		MedicationStatus: internal.MedicationUsing,
		ReductionIntent:  internal.ReductionWantsToReduce,
		AdviceIntensity:  internal.IntensityMedium,
	}
	now := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)

	t.Run("unknown history fails closed", func(t *testing.T) {
		d := Decide(p, Request{Now: now})
		assert.False(t, d.MedicationTopicAllowed)
	})

	t.Run("never mentioned", func(t *testing.T) {
		d := Decide(p, Request{Now: now, MentionHistoryKnown: true})
		assert.True(t, d.MedicationTopicAllowed)
	})

	t.Run("mentioned inside window", func(t *testing.T) {
		last := now.Add(-6 * 24 * time.Hour)
		d := Decide(p, Request{Now: now, MentionHistoryKnown: true, LastMedicationMention: &last})
		assert.False(t, d.MedicationTopicAllowed)
	})

	t.Run("mentioned exactly one window ago", func(t *testing.T) {
		last := now.Add(-DefaultGateWindow)
		d := Decide(p, Request{Now: now, MentionHistoryKnown: true, LastMedicationMention: &last})
		assert.True(t, d.MedicationTopicAllowed)
	})

	t.Run("mention in the future", func(t *testing.T) {
		last := now.Add(time.Hour)
		d := Decide(p, Request{Now: now, MentionHistoryKnown: true, LastMedicationMention: &last})
		assert.False(t, d.MedicationTopicAllowed)
	})

	t.Run("two requests within six days", func(t *testing.T) {
		first := Decide(p, Request{Now: now, MentionHistoryKnown: true})
		assert.True(t, first.MedicationTopicAllowed)
		mentioned := now
		for day := 0; day <= 6; day++ {
			later := now.Add(time.Duration(day) * 24 * time.Hour)
			d := Decide(p, Request{Now: later, MentionHistoryKnown: true, LastMedicationMention: &mentioned})
			assert.False(t, d.MedicationTopicAllowed, "day %d", day)
		}
	})
}

func TestNegativeDensity(t *testing.T) {
	calm := internal.SleepSession{Status: internal.SessionComplete, Satisfaction: 80, Quality: 75, Dissatisfaction: 10, Anxiety: 20}
	rough := internal.SleepSession{Status: internal.SessionComplete, Satisfaction: 10, Quality: 20, Dissatisfaction: 90, Anxiety: 85}
	open := internal.SleepSession{Status: internal.SessionOpen}

	assert.Equal(t, 0.0, NegativeDensity(nil))
	assert.Equal(t, 0.0, NegativeDensity([]internal.SleepSession{calm, open}))
	assert.Equal(t, 1.0, NegativeDensity([]internal.SleepSession{rough}))
	assert.InDelta(t, 0.5, NegativeDensity([]internal.SleepSession{calm, rough}), 0.001)

	d := Decide(internal.DefaultProfile(), Request{NegativeDensity: 0.5, MentionHistoryKnown: true})
	assert.True(t, d.RecommendProfessional)
	d = Decide(internal.DefaultProfile(), Request{NegativeDensity: 0.25, MentionHistoryKnown: true})
	assert.False(t, d.RecommendProfessional)
}
