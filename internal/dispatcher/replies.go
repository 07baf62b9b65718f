package dispatcher

import (
	"fmt"
	"strings"

	"ledger-bot/internal/classifier"
	"ledger-bot/internal/model"
)

const (
	replySaveFailed     = "❌ Couldn't save that entry. Nothing was recorded, please send it again."
	replyStateFailed    = "❌ Something went wrong with your check-in. Please send that answer again."
	replyInternalError  = "❌ Something went wrong. Please try again."
	replyEmptyEntry     = "⚠️ Nothing to log after the %s prefix. Add some text after the colon."
	replyTooLong        = "⚠️ That entry is too long. Keep it under %d characters."
	replyUnknownCommand = "🤷 Unknown command /%s. Send /help for the list."
	replyNoNarrator     = "📝 Not a log entry. Start with a prefix like \"win:\" or \"p:\", or send /checkin."
)

var emojis = map[model.Category]string{
	model.CategoryWin:             "🏆",
	model.CategoryProblem:         "🧱",
	model.CategoryMoney:           "💸",
	model.CategoryAvoidance:       "🙈",
	model.CategoryEnergy:          "⚡",
	model.CategoryMood:            "🌤",
	model.CategorySleep:           "😴",
	model.CategoryWorkout:         "🏋️",
	model.CategoryFood:            "🍲",
	model.CategorySubstance:       "☕",
	model.CategoryConnection:      "🤝",
	model.CategoryConflict:        "⚔️",
	model.CategoryFocus:           "🎯",
	model.CategoryDistraction:     "📱",
	model.CategoryProcrastination: "⏳",
	model.CategoryLearn:           "📚",
	model.CategoryInsight:         "💡",
}

func categoryEmoji(c model.Category) string {
	if e, ok := emojis[c]; ok {
		return e
	}
	return "📝"
}

// HelpText lists commands and entry prefixes.
func HelpText() string {
	var b strings.Builder
	b.WriteString("📒 Log anything with a prefix and a colon, e.g. \"w: shipped the release\".\n\n")
	for _, s := range classifier.Shortcuts() {
		fmt.Fprintf(&b, "%s %s: %s\n", categoryEmoji(s.Category), s.Category, strings.Join(s.Prefixes, ", "))
	}
	b.WriteString("\nCommands:\n")
	b.WriteString("/checkin - start the daily check-in\n")
	b.WriteString("/cancel - abandon a check-in in progress\n")
	b.WriteString("/help - show this message")
	return b.String()
}
