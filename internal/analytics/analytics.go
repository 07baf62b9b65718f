package analytics

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"ledger-bot/internal/model"
)

// DayStats counts entries logged on one UTC day.
type DayStats struct {
	Date       string         `json:"date"`
	Total      int            `json:"total"`
	ByCategory map[string]int `json:"by_category"`
}

// WeekStats counts entries per ISO week, e.g. "2026-W18".
type WeekStats struct {
	Week       string         `json:"week"`
	Total      int            `json:"total"`
	ByCategory map[string]int `json:"by_category"`
}

// Point is one dated numeric observation.
type Point struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// Summary aggregates a window of entries and check-ins.
type Summary struct {
	From           string         `json:"from"`
	To             string         `json:"to"`
	TotalEntries   int            `json:"total_entries"`
	TotalCheckins  int            `json:"total_checkins"`
	ByCategory     map[string]int `json:"by_category"`
	ByWeekday      map[string]int `json:"by_weekday"`
	Days           []DayStats     `json:"days"`
	Weeks          []WeekStats    `json:"weeks"`
	Energy         []Point        `json:"energy,omitempty"`
	SleepHours     []Point        `json:"sleep_hours,omitempty"`
	WorkoutMinutes []Point        `json:"workout_minutes,omitempty"`
	ActiveDays     int            `json:"active_days"`
	CurrentStreak  int            `json:"current_streak"`
	LongestStreak  int            `json:"longest_streak"`
}

const dayLayout = "2006-01-02"

// Summarize aggregates entries and check-ins created in [from, to).
// Every day of the window appears in Days, including empty ones.
func Summarize(entries []model.Entry, checkins []model.Checkin, from, to time.Time) *Summary {
	from, to = from.UTC(), to.UTC()
	startDay := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)

	s := &Summary{
		From:       from.Format(dayLayout),
		To:         to.Format(dayLayout),
		ByCategory: make(map[string]int),
		ByWeekday:  make(map[string]int),
	}

	days := make(map[string]*DayStats)
	var dayOrder []string
	for d := startDay; d.Before(to); d = d.AddDate(0, 0, 1) {
		key := d.Format(dayLayout)
		days[key] = &DayStats{Date: key, ByCategory: make(map[string]int)}
		dayOrder = append(dayOrder, key)
	}
	weeks := make(map[string]*WeekStats)

	for _, e := range entries {
		at := e.CreatedAt.UTC()
		if at.Before(from) || !at.Before(to) {
			continue
		}
		cat := string(e.Category)
		s.TotalEntries++
		s.ByCategory[cat]++
		s.ByWeekday[at.Weekday().String()]++

		if ds, ok := days[at.Format(dayLayout)]; ok {
			ds.Total++
			ds.ByCategory[cat]++
		}

		wk := isoWeek(at)
		ws, ok := weeks[wk]
		if !ok {
			ws = &WeekStats{Week: wk, ByCategory: make(map[string]int)}
			weeks[wk] = ws
		}
		ws.Total++
		ws.ByCategory[cat]++

		switch e.Category {
		case model.CategorySleep:
			if v, ok := metaNumber(e.Metadata, "hours"); ok {
				s.SleepHours = append(s.SleepHours, Point{Date: at.Format(dayLayout), Value: v})
			}
		case model.CategoryWorkout:
			if v, ok := metaNumber(e.Metadata, "duration_min"); ok {
				s.WorkoutMinutes = append(s.WorkoutMinutes, Point{Date: at.Format(dayLayout), Value: v})
			}
		case model.CategoryEnergy:
			if v, ok := metaNumber(e.Metadata, "score"); ok {
				s.Energy = append(s.Energy, Point{Date: at.Format(dayLayout), Value: v})
			}
		}
	}

	for _, c := range checkins {
		at := c.CreatedAt.UTC()
		if at.Before(from) || !at.Before(to) {
			continue
		}
		s.TotalCheckins++
		s.Energy = append(s.Energy, Point{Date: at.Format(dayLayout), Value: float64(c.EnergyScore)})
	}
	sort.SliceStable(s.Energy, func(i, j int) bool { return s.Energy[i].Date < s.Energy[j].Date })

	run := 0
	for _, key := range dayOrder {
		ds := days[key]
		s.Days = append(s.Days, *ds)
		if ds.Total > 0 {
			s.ActiveDays++
			run++
			if run > s.LongestStreak {
				s.LongestStreak = run
			}
		} else {
			run = 0
		}
	}
	s.CurrentStreak = run

	for _, ws := range weeks {
		s.Weeks = append(s.Weeks, *ws)
	}
	sort.Slice(s.Weeks, func(i, j int) bool { return s.Weeks[i].Week < s.Weeks[j].Week })
	return s
}

func isoWeek(t time.Time) string {
	y, w := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", y, w)
}

// metaNumber reads a numeric metadata value; stored metadata decodes as float64.
func metaNumber(md model.Metadata, key string) (float64, bool) {
	switch v := md[key].(type) {
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}

// GenerateReportSummary renders the summary as plain text for an LLM prompt.
func (s *Summary) GenerateReportSummary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Ledger activity %s to %s:\n\n", s.From, s.To)
	fmt.Fprintf(&b, "- Entries: %d\n- Check-ins: %d\n- Active days: %d (current streak %d, longest %d)\n\n",
		s.TotalEntries, s.TotalCheckins, s.ActiveDays, s.CurrentStreak, s.LongestStreak)

	if len(s.ByCategory) > 0 {
		b.WriteString("Entries by category:\n")
		cats := make([]string, 0, len(s.ByCategory))
		for c := range s.ByCategory {
			cats = append(cats, c)
		}
		sort.Slice(cats, func(i, j int) bool {
			if s.ByCategory[cats[i]] != s.ByCategory[cats[j]] {
				return s.ByCategory[cats[i]] > s.ByCategory[cats[j]]
			}
			return cats[i] < cats[j]
		})
		for _, c := range cats {
			fmt.Fprintf(&b, "- %s: %d\n", c, s.ByCategory[c])
		}
	}
	if avg, ok := average(s.Energy); ok {
		fmt.Fprintf(&b, "\nAverage energy: %.1f/10\n", avg)
	}
	if avg, ok := average(s.SleepHours); ok {
		fmt.Fprintf(&b, "Average sleep: %.1f hours\n", avg)
	}
	return b.String()
}

func average(ps []Point) (float64, bool) {
	if len(ps) == 0 {
		return 0, false
	}
	var sum float64
	for _, p := range ps {
		sum += p.Value
	}
	return sum / float64(len(ps)), true
}

// ToJSON serializes the summary for prompts that want structured data.
func (s *Summary) ToJSON() (string, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
