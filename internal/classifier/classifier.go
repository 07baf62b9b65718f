// Package classifier turns a short chat message into a typed entry.
//
// Classification is a lookup over an ordered prefix table: the first rule whose
// prefix (followed by a colon) starts the lower-cased message wins. Text after
// the first colon becomes the entry content with its original casing. Messages
// that match no rule are logged as problems with the full text as content.
package classifier

import (
	"regexp"
	"strconv"
	"strings"

	"ledger-bot/internal/model"
)

// Result is the outcome of classifying one message.
type Result struct {
	Category model.Category
	Content  string
	Metadata model.Metadata
}

type extractor func(content string) model.Metadata

type rule struct {
	prefixes []string
	category model.Category
	extract  extractor
}

var (
	energyScoreRe   = regexp.MustCompile(`(\d+)(?:/10)?`)
	sleepHoursRe    = regexp.MustCompile(`(?i)(\d+)\s*h(?:rs?|ours?)?`)
	workoutMinuteRe = regexp.MustCompile(`(?i)(\d+)\s*min`)
)

// rules is ordered; earlier rules take priority.
var rules = []rule{
	{prefixes: []string{"win", "w"}, category: model.CategoryWin},
	{prefixes: []string{"problem", "p"}, category: model.CategoryProblem},
	{prefixes: []string{"money", "m"}, category: model.CategoryMoney},
	{prefixes: []string{"avoid", "a"}, category: model.CategoryAvoidance},
	{prefixes: []string{"energy", "e"}, category: model.CategoryEnergy, extract: intExtractor(energyScoreRe, "score")},
	{prefixes: []string{"mood"}, category: model.CategoryMood},
	{prefixes: []string{"sleep"}, category: model.CategorySleep, extract: intExtractor(sleepHoursRe, "hours")},
	{prefixes: []string{"workout", "gym"}, category: model.CategoryWorkout, extract: intExtractor(workoutMinuteRe, "duration_min")},
	{prefixes: []string{"food", "ate"}, category: model.CategoryFood},
	{prefixes: []string{"drinks", "caffeine", "substance"}, category: model.CategorySubstance},
	{prefixes: []string{"connection", "connect"}, category: model.CategoryConnection},
	{prefixes: []string{"conflict"}, category: model.CategoryConflict},
	{prefixes: []string{"focus", "deep"}, category: model.CategoryFocus},
	{prefixes: []string{"distracted", "distraction"}, category: model.CategoryDistraction},
	{prefixes: []string{"procrastinate", "procrastination"}, category: model.CategoryProcrastination},
	{prefixes: []string{"learn", "learned"}, category: model.CategoryLearn},
	{prefixes: []string{"insight"}, category: model.CategoryInsight},
}

// Classify never fails: unknown input falls back to the problem category.
func Classify(text string) Result {
	lower := strings.ToLower(strings.TrimSpace(text))
	for _, r := range rules {
		if !r.matches(lower) {
			continue
		}
		content := contentAfterColon(text)
		md := model.Metadata{}
		if r.extract != nil {
			md = r.extract(content)
		}
		return Result{Category: r.category, Content: content, Metadata: md}
	}
	return Result{Category: model.CategoryProblem, Content: text, Metadata: model.Metadata{}}
}

func (r rule) matches(lower string) bool {
	for _, p := range r.prefixes {
		if strings.HasPrefix(lower, p+":") {
			return true
		}
	}
	return false
}

// contentAfterColon keeps everything after the first colon; later colons stay.
func contentAfterColon(text string) string {
	i := strings.Index(text, ":")
	if i < 0 {
		return strings.TrimSpace(text)
	}
	return strings.TrimSpace(text[i+1:])
}

func intExtractor(re *regexp.Regexp, key string) extractor {
	return func(content string) model.Metadata {
		m := re.FindStringSubmatch(content)
		if m == nil {
			return model.Metadata{}
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return model.Metadata{}
		}
		return model.Metadata{key: n}
	}
}

// Shortcut describes one category and the prefixes that select it.
type Shortcut struct {
	Category model.Category
	Prefixes []string
}

// Shortcuts returns the prefix table in priority order, for help texts.
func Shortcuts() []Shortcut {
	out := make([]Shortcut, 0, len(rules))
	for _, r := range rules {
		out = append(out, Shortcut{Category: r.category, Prefixes: append([]string(nil), r.prefixes...)})
	}
	return out
}
