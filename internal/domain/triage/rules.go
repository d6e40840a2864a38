package triage

import (
	"fmt"
	"strings"

	"github.com/curamind/curamind/internal/contract"
)

// Question steps, asked in this order.
const (
	StepAccident  = "V1_ACCIDENT"
	StepWalking   = "V2_WALKING"
	StepLateral   = "V3_LATERAL"
	StepMedial    = "V3_MEDIAL"
	StepNavicular = "V4_NAVICULAR"
	StepMidfoot   = "V4_MIDFOOT"
	StepSwelling  = "V5_SWELLING"
	StepStability = "V6_STABILITY"
)

// DefaultAge is assumed when the patient's date of birth is unknown.
const DefaultAge = 30

const (
	pediatricAge = 18
	infantAge    = 1
	geriatricAge = 55
)

type Question struct {
	Step   string
	Text   string
	Helper string
}

var Questions = []Question{
	{StepAccident, "Was the injury caused by a high-impact accident, such as a vehicle collision or a fall from height?",
		"Answer yes for road traffic accidents, falls from more than a few stairs, or sports collisions."},
	{StepWalking, "Were you unable to take four steps on the injured foot, both right after the injury and now?",
		"Limping counts as walking. Answer yes only if you cannot bear weight at all."},
	{StepLateral, "Is there pain when pressing the back edge or tip of the outer ankle bone?",
		"Press along the last 6 cm of the bone on the outside of the ankle."},
	{StepMedial, "Is there pain when pressing the back edge or tip of the inner ankle bone?",
		"Press along the last 6 cm of the bone on the inside of the ankle."},
	{StepNavicular, "Is there pain when pressing the bony bump on the inner side of the midfoot?",
		"This is the navicular bone, just in front of the inner ankle."},
	{StepMidfoot, "Is there pain when pressing the base of the bone on the outer edge of the foot?",
		"Follow the outer edge of the foot back from the little toe to the bump halfway along."},
	{StepSwelling, "Is there significant swelling or bruising around the ankle?",
		"Compare with the other ankle."},
	{StepStability, "Does the ankle feel loose or give way when you stand on it?",
		"Answer yes if the joint feels unstable or wobbly."},
}

// redSteps are the Ottawa ankle rule findings that indicate imaging.
var redSteps = []string{StepWalking, StepLateral, StepMedial, StepMidfoot, StepNavicular}

var yellowSteps = []string{StepSwelling, StepStability}

// Answers maps a step to 1 (yes) or 0 (no).
type Answers map[string]int

func (a Answers) yes(step string) bool { return a[step] == 1 }

func (a Answers) anyYes(steps []string) bool {
	for _, s := range steps {
		if a.yes(s) {
			return true
		}
	}
	return false
}

// NextQuestion returns the first unanswered question.
func NextQuestion(a Answers) (Question, bool) {
	for _, q := range Questions {
		if _, ok := a[q.Step]; !ok {
			return q, true
		}
	}
	return Question{}, false
}

// fillUnanswered records 0 for every question still open.
func fillUnanswered(a Answers) Answers {
	out := make(Answers, len(Questions))
	for _, q := range Questions {
		out[q.Step] = a[q.Step]
	}
	return out
}

var yesWords = []string{"yes", "yeah", "yep", "true", "1"}

// IsYes reports whether a free-text answer is affirmative.
func IsYes(answer string) bool {
	s := strings.ToLower(answer)
	for _, w := range yesWords {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// Classify applies the Ottawa ankle rules with the age modifiers.
func Classify(age int, a Answers) contract.Flag {
	switch {
	case age < infantAge || a.yes(StepAccident):
		return contract.FlagRed
	case a.anyYes(redSteps):
		return contract.FlagRed
	case age < pediatricAge || age > geriatricAge || a.anyYes(yellowSteps):
		return contract.FlagYellow
	}
	return contract.FlagGreen
}

var findingText = []struct{ step, text string }{
	{StepWalking, "Inability to bear weight"},
	{StepLateral, "Lateral Malleolus tenderness"},
	{StepMedial, "Medial Malleolus tenderness"},
	{StepMidfoot, "Base of 5th Metatarsal tenderness"},
	{StepNavicular, "Navicular bone tenderness"},
}

func BuildSOAP(age int, a Answers, flag contract.Flag) contract.SOAPNote {
	trauma := "Low-impact"
	if a.yes(StepAccident) {
		trauma = "High-Impact"
	}

	var findings []string
	for _, f := range findingText {
		if a.yes(f.step) {
			findings = append(findings, f.text)
		}
	}
	objective := "No focal bone tenderness noted."
	if len(findings) > 0 {
		objective = strings.Join(findings, ", ")
	}

	rule := "Negative/Inconclusive"
	if flag == contract.FlagRed {
		rule = "Positive"
	}

	var plan string
	switch flag {
	case contract.FlagRed:
		plan = "Immediate referral to the nearest Trauma Center (Nepal) for radiographic imaging (X-ray)."
	case contract.FlagYellow:
		plan = "Orthopedic specialist consultation for joint stability evaluation and ligamentous assessment."
	default:
		plan = "Home management via RICE protocol. Patient to monitor for increased pain or neurovascular changes."
	}

	return contract.SOAPNote{
		Subjective: fmt.Sprintf("Subjective: Patient (%dy) reports %s injury to the ankle.", age, trauma),
		Objective:  "Objective: Exam Findings: " + objective,
		Assessment: fmt.Sprintf("Assessment: %s status. Ottawa Ankle Rules %s.", flag, rule),
		Plan:       "Plan: " + plan,
	}
}

// Recommend returns the patient-facing advice for a flag.
func Recommend(flag contract.Flag) contract.Recommendation {
	switch flag {
	case contract.FlagRed:
		return contract.Recommendation{
			Title: "EMERGENCY CARE REQUIRED",
			Text:  "High risk of fracture detected. Inability to bear weight or bone tenderness requires immediate X-ray imaging at a Trauma Center.",
			EmergencyNumbers: []contract.EmergencyNumber{
				{Label: "Ambulance (Nepal Red Cross)", Number: "102"},
				{Label: "Police", Number: "100"},
			},
			CTALabel: "Call Ambulance (102)",
			Priority: 1,
		}
	case contract.FlagYellow:
		return contract.Recommendation{
			Title:       "Urgent Specialist Review",
			Text:        "Symptoms suggest potential ligamentous injury or age-related risks (Pediatric/Geriatric). Specialist review recommended.",
			CTALabel:    "Book Orthopedist",
			ShowDoctors: true,
			Priority:    2,
		}
	}
	return contract.Recommendation{
		Title:       "Home Care (RICE)",
		Text:        "Low risk of fracture. Follow Rest, Ice, Compression, and Elevation (RICE) for 48 hours.",
		CTALabel:    "View Recovery Guide",
		ShowDoctors: true,
		Priority:    3,
	}
}

// SpecialtyFor is the doctor specialty a flag should be matched against.
func SpecialtyFor(flag contract.Flag) string {
	if flag == contract.FlagGreen {
		return "General"
	}
	return "Orthopedics"
}
