package advice

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/yourname/sleepcoach/internal"
	"github.com/yourname/sleepcoach/internal/policy"
)

const baseSystemPrompt = `
You are a sleep researcher supporting a person who is working through cognitive behavioural therapy for insomnia (CBT-I).
Analyse the sleep data in the user message and write individual guidance.

Grounding:
- Sleep restriction, stimulus control, cognitive restructuring and mindfulness may help; describe them as general information and stress that results vary between people.
- Generic sleep hygiene advice and relaxation methods (progressive muscle relaxation in particular) have weak or even adverse evidence; treat them with care.
- Propose at most one technique per piece of guidance and explain it plainly, so the user is not overwhelmed.

Safety constraints:
- Never state or imply a medical diagnosis, cure or treatment. Frame every technique as general information supporting CBT-I.
- Do not repeat the wording of recent guidance listed in the payload; offer a different angle.
- Avoid formulaic encouragement such as "you did great", "keep trying" or "do your best": trying harder does not bring sleep and can worsen anxiety.
- When the data is negative, recommend consulting a professional.
- Do not mention personal details.

Structure:
- Respond to the most recent record first, with natural empathy for what the user wrote.
- Compare it with the recent pattern and point out changes.
- Acknowledge routines that help, and suggest one concrete next step or goal.
- Write flowing prose without headings.
`

const (
	medicationNeverMention = `Medication: the user does not take sleep medication. Do not mention sleep medication at all; focus on non-pharmacological approaches. Do not provide drug information even if asked.`
	medicationDoNotMention = `Medication: the user takes sleep medication and wants to keep the current regimen. Do not mention sleep medication; focus on non-pharmacological approaches. Do not provide drug information even if asked.`
	medicationReduceToday  = `Medication: the user takes sleep medication and wants to reduce it. You may touch on reduction carefully in this response: any change in dosage requires consulting their physician first, and you must say so explicitly.`
	medicationReduceGated  = `Medication: the user takes sleep medication and wants to reduce it, but this topic was covered recently. Do not mention sleep medication in this response; focus on non-pharmacological approaches.`

	intensityGeneralHygiene = `Depth: keep to general advice on daily rhythm and basic sleep habits. Do not go into detailed techniques.`
	intensityCoreTechniques = `Depth: introduce the basics of sleep restriction and stimulus control, present a simple cognitive restructuring exercise, and analyse the sleep pattern.`
	intensityFullProgram    = `Depth: propose advanced CBT-I techniques and mindfulness practice as an individual sleep improvement plan, and recommend consulting a specialist where appropriate.`

	professionalEmphasis = `The recent records contain many negative indicators. Clearly recommend consulting a sleep specialist or physician.`
)

type promptOptions struct {
	Language    string
	PromptChars int
}

// renderSystem turns a policy decision into the system instruction text.
func renderSystem(d policy.Decision, opts promptOptions) string {
	var b strings.Builder
	b.WriteString(baseSystemPrompt)
	b.WriteString("\n")
	b.WriteString(medicationText(d))
	b.WriteString("\n")
	b.WriteString(intensityText(d.Intensity))
	b.WriteString("\n")
	if d.RecommendProfessional {
		b.WriteString(professionalEmphasis)
		b.WriteString("\n")
	}
	if opts.Language != "" {
		fmt.Fprintf(&b, "Answer in %s.\n", opts.Language)
	}
	if opts.PromptChars > 0 {
		fmt.Fprintf(&b, "Keep the answer within %d characters.\n", opts.PromptChars)
	}
	return b.String()
}

func medicationText(d policy.Decision) string {
	switch d.Medication {
	case policy.MedicationCautiousReduction:
		if d.MedicationTopicAllowed {
			return medicationReduceToday
		}
		return medicationReduceGated
	case policy.MedicationDoNotMention:
		return medicationDoNotMention
	default:
		return medicationNeverMention
	}
}

func intensityText(i policy.IntensityInstruction) string {
	switch i {
	case policy.IntensityGeneralHygiene:
		return intensityGeneralHygiene
	case policy.IntensityFullProgram:
		return intensityFullProgram
	default:
		return intensityCoreTechniques
	}
}

type sessionPayload struct {
	Date            string `json:"date"`
	SleepAt         string `json:"sleep_at"`
	WakeAt          string `json:"wake_at,omitempty"`
	Duration        string `json:"duration,omitempty"`
	Satisfaction    int    `json:"satisfaction"`
	Quality         int    `json:"quality"`
	Dissatisfaction int    `json:"dissatisfaction"`
	Anxiety         int    `json:"anxiety"`
	Preparation     string `json:"pre_sleep_notes,omitempty"`
	Reflection      string `json:"post_wake_reflection,omitempty"`
}

type recentGuidance struct {
	Date string `json:"date"`
	Text string `json:"text"`
}

type requestPayload struct {
	Focus          string           `json:"focus"`
	RangeStart     string           `json:"range_start,omitempty"`
	RangeEnd       string           `json:"range_end,omitempty"`
	Sessions       []sessionPayload `json:"sessions"`
	AverageMinutes int              `json:"average_sleep_minutes,omitempty"`
	RecentGuidance []recentGuidance `json:"recent_guidance,omitempty"`
}

func toSessionPayload(s internal.SleepSession) sessionPayload {
	p := sessionPayload{
		Date:            s.Date,
		SleepAt:         s.SleepAt.Format(internal.TimestampLayout),
		Satisfaction:    s.Satisfaction,
		Quality:         s.Quality,
		Dissatisfaction: s.Dissatisfaction,
		Anxiety:         s.Anxiety,
		Preparation:     s.Preparation,
		Reflection:      s.Reflection,
	}
	if s.WakeAt != nil {
		p.WakeAt = s.WakeAt.Format(internal.TimestampLayout)
	}
	if s.DurationMinutes != nil {
		p.Duration = internal.FormatMinutes(*s.DurationMinutes)
	}
	return p
}

func toRecent(history []internal.Guidance) []recentGuidance {
	out := make([]recentGuidance, 0, len(history))
	for _, g := range history {
		out = append(out, recentGuidance{Date: g.Date, Text: g.Text})
	}
	return out
}

func renderSessionPayload(s internal.SleepSession, history []internal.Guidance) (string, error) {
	p := requestPayload{
		Focus:          "Respond to the record for wake date " + s.Date + ".",
		Sessions:       []sessionPayload{toSessionPayload(s)},
		RecentGuidance: toRecent(history),
	}
	return marshalPayload(p)
}

func renderPeriodPayload(start, end string, sessions []internal.SleepSession, history []internal.Guidance) (string, error) {
	p := requestPayload{
		Focus:          fmt.Sprintf("Summarise the period from %s to %s and compare it with earlier habits.", start, end),
		RangeStart:     start,
		RangeEnd:       end,
		Sessions:       make([]sessionPayload, 0, len(sessions)),
		RecentGuidance: toRecent(history),
	}
	var total, counted int
	for _, s := range sessions {
		p.Sessions = append(p.Sessions, toSessionPayload(s))
		if s.DurationMinutes != nil {
			total += *s.DurationMinutes
			counted++
		}
	}
	if counted > 0 {
		p.AverageMinutes = total / counted
	}
	return marshalPayload(p)
}

func marshalPayload(p requestPayload) (string, error) {
	b, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal generation payload: %w", err)
	}
	return string(b), nil
}

// Truncate cuts text to at most maxRunes runes. The cut is not sentence-aware.
func Truncate(text string, maxRunes int) string {
	if maxRunes <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= maxRunes {
		return text
	}
	return string(runes[:maxRunes])
}
