package checkin

import "fmt"

const (
	invalidEnergyReply   = "⚠️ Energy must be a whole number from 1 to 10. Try again:"
	cancelledReply       = "🛑 Check-in cancelled. Nothing was recorded."
	nothingToCancelReply = "There is no check-in in progress."
	restartReply         = "⚠️ Some answers went missing, starting the check-in over."
)

var prompts = map[Step]string{
	StepAwaitingEnergy:   "📋 Daily check-in (1/5)\n\n⚡ Energy level right now, 1-10?",
	StepAwaitingWin:      "🏆 (2/5) What was your win today?",
	StepAwaitingAvoided:  "🙈 (3/5) What did you avoid today?",
	StepAwaitingMood:     "🌤 (4/5) How would you describe your mood?",
	StepAwaitingGrateful: "🙏 (5/5) What are you grateful for?",
}

func prompt(s Step) string {
	return prompts[s]
}

// Prompt returns the question asked at step s, or "" when idle.
func Prompt(s Step) string {
	return prompt(s)
}

// Summary echoes a completed check-in back to the correspondent.
func Summary(r Record) string {
	return fmt.Sprintf("✅ Check-in saved\n\n⚡ Energy: %d/10\n🏆 Win: %s\n🙈 Avoided: %s\n🌤 Mood: %s\n🙏 Grateful for: %s",
		r.Energy, r.Win, r.Avoided, r.Mood, r.Grateful)
}
