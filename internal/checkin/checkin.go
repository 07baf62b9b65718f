// Package checkin implements the five-question daily check-in as a pure
// transition function over a stored dialogue cursor.
//
// Nothing here performs I/O: callers load a State, call Start, Advance or
// Cancel, persist Outcome.Next (and Outcome.Completed on the last step), and
// only then send Outcome.Reply.
package checkin

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"ledger-bot/internal/model"
)

// Step is the position of a correspondent in the check-in dialogue.
type Step string

const (
	StepIdle             Step = "idle"
	StepAwaitingEnergy   Step = "awaiting_energy"
	StepAwaitingWin      Step = "awaiting_win"
	StepAwaitingAvoided  Step = "awaiting_avoided"
	StepAwaitingMood     Step = "awaiting_mood"
	StepAwaitingGrateful Step = "awaiting_grateful"
)

var steps = []Step{StepIdle, StepAwaitingEnergy, StepAwaitingWin, StepAwaitingAvoided, StepAwaitingMood, StepAwaitingGrateful}

func (s Step) Valid() bool {
	for _, k := range steps {
		if k == s {
			return true
		}
	}
	return false
}

// ErrCorruptState is returned when a stored cursor cannot be decoded.
var ErrCorruptState = errors.New("corrupt conversation state")

// Answers holds the replies given so far. Only completed steps are set.
type Answers struct {
	Energy   *int    `json:"energy,omitempty"`
	Win      *string `json:"win,omitempty"`
	Avoided  *string `json:"avoided,omitempty"`
	Mood     *string `json:"mood,omitempty"`
	Grateful *string `json:"grateful,omitempty"`
}

func (a Answers) Empty() bool {
	return a.Energy == nil && a.Win == nil && a.Avoided == nil && a.Mood == nil && a.Grateful == nil
}

// State is the dialogue cursor of one correspondent.
// Version is the stored version the state was read at; the machine never changes it.
type State struct {
	CorrespondentID int64
	Step            Step
	Answers         Answers
	Version         int64
}

// Idle returns the initial cursor for a correspondent with no stored row.
func Idle(correspondentID int64) State {
	return State{CorrespondentID: correspondentID, Step: StepIdle}
}

func (s State) InProgress() bool { return s.Step != StepIdle }

// Record is a completed check-in with all five answers.
type Record struct {
	Energy   int
	Win      string
	Avoided  string
	Mood     string
	Grateful string
}

// Outcome is the result of one transition.
type Outcome struct {
	Next    State
	Reply   string
	Changed bool // Next must be persisted before Reply is sent
	// Completed is set only on the terminal transition; it must be written
	// together with Next.
	Completed *Record
}

// Start begins a check-in from idle. Outside idle it is a no-op that repeats
// the current prompt.
func Start(s State) Outcome {
	if s.InProgress() {
		return Outcome{Next: s, Reply: prompt(s.Step)}
	}
	next := State{CorrespondentID: s.CorrespondentID, Step: StepAwaitingEnergy, Version: s.Version}
	return Outcome{Next: next, Reply: prompt(StepAwaitingEnergy), Changed: true}
}

// Cancel abandons an in-progress check-in without recording anything.
func Cancel(s State) Outcome {
	if !s.InProgress() {
		return Outcome{Next: s, Reply: nothingToCancelReply}
	}
	next := State{CorrespondentID: s.CorrespondentID, Step: StepIdle, Version: s.Version}
	return Outcome{Next: next, Reply: cancelledReply, Changed: true}
}

// Advance consumes one reply. Only the energy step validates; an invalid
// energy value re-prompts and leaves the state untouched.
func Advance(s State, input string) Outcome {
	next := s
	switch s.Step {
	case StepAwaitingEnergy:
		n, ok := parseEnergy(input)
		if !ok {
			return Outcome{Next: s, Reply: invalidEnergyReply}
		}
		next.Answers.Energy = &n
		next.Step = StepAwaitingWin
	case StepAwaitingWin:
		next.Answers.Win = strPtr(input)
		next.Step = StepAwaitingAvoided
	case StepAwaitingAvoided:
		next.Answers.Avoided = strPtr(input)
		next.Step = StepAwaitingMood
	case StepAwaitingMood:
		next.Answers.Mood = strPtr(input)
		next.Step = StepAwaitingGrateful
	case StepAwaitingGrateful:
		rec, ok := complete(s.Answers, input)
		if !ok {
			// Answers lost an earlier step; restart rather than write a partial record.
			restart := State{CorrespondentID: s.CorrespondentID, Step: StepAwaitingEnergy, Version: s.Version}
			return Outcome{Next: restart, Reply: restartReply + "\n\n" + prompt(StepAwaitingEnergy), Changed: true}
		}
		done := State{CorrespondentID: s.CorrespondentID, Step: StepIdle, Version: s.Version}
		return Outcome{Next: done, Reply: Summary(rec), Changed: true, Completed: &rec}
	default:
		return Outcome{Next: s}
	}
	return Outcome{Next: next, Reply: prompt(next.Step), Changed: true}
}

func parseEnergy(input string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil || n < 1 || n > 10 {
		return 0, false
	}
	return n, true
}

func complete(a Answers, grateful string) (Record, bool) {
	if a.Energy == nil || a.Win == nil || a.Avoided == nil || a.Mood == nil {
		return Record{}, false
	}
	return Record{
		Energy:   *a.Energy,
		Win:      *a.Win,
		Avoided:  *a.Avoided,
		Mood:     *a.Mood,
		Grateful: grateful,
	}, true
}

func strPtr(s string) *string { return &s }

// FromModel decodes a stored row.
func FromModel(m model.ConversationState) (State, error) {
	s := State{CorrespondentID: m.CorrespondentID, Step: Step(m.Step), Version: m.Version}
	if !s.Step.Valid() {
		return s, fmt.Errorf("%w: unknown step %q", ErrCorruptState, m.Step)
	}
	if m.Answers != "" {
		if err := json.Unmarshal([]byte(m.Answers), &s.Answers); err != nil {
			return s, fmt.Errorf("%w: %v", ErrCorruptState, err)
		}
	}
	if s.Step == StepIdle && !s.Answers.Empty() {
		return s, fmt.Errorf("%w: idle cursor carries answers", ErrCorruptState)
	}
	return s, nil
}

// ToModel encodes the state for storage. Version is carried as the expected
// stored version for a conditional write.
func (s State) ToModel(now time.Time) (model.ConversationState, error) {
	raw, err := json.Marshal(s.Answers)
	if err != nil {
		return model.ConversationState{}, fmt.Errorf("encode answers: %w", err)
	}
	return model.ConversationState{
		CorrespondentID: s.CorrespondentID,
		Step:            string(s.Step),
		Answers:         string(raw),
		Version:         s.Version,
		UpdatedAt:       now.UTC(),
	}, nil
}

// ToCheckin converts a completed record into its stored form.
func (r Record) ToCheckin(correspondentID int64, now time.Time) *model.Checkin {
	return &model.Checkin{
		CorrespondentID: correspondentID,
		EnergyScore:     r.Energy,
		WinToday:        r.Win,
		AvoidedToday:    r.Avoided,
		Mood:            r.Mood,
		GratefulFor:     r.Grateful,
		CreatedAt:       now.UTC(),
	}
}
