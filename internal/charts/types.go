package charts

import "ledger-bot/internal/model"

type Type string

const (
	EntryVolume             Type = "entry_volume"
	EnergyTimeline          Type = "energy_timeline"
	CategoryDistribution    Type = "category_distribution"
	EntryTypePie            Type = "entry_type_pie"
	WeeklyCategoryHeatmap   Type = "weekly_category_heatmap"
	SleepQuality            Type = "sleep_quality"
	WorkoutFrequency        Type = "workout_frequency"
	AvoidanceFrequency      Type = "avoidance_frequency"
	ProductivityFocus       Type = "productivity_focus"
	FinancialTracking       Type = "financial_tracking"
	LoggingConsistency      Type = "logging_consistency"
	MoneyMistakesScatter    Type = "money_mistakes_scatter"
	ProcrastinationDuration Type = "procrastination_duration"
	EnergyCorrelation       Type = "energy_correlation"
	WinProblemRatio         Type = "win_problem_ratio"
	ConnectionQuality       Type = "connection_quality"
)

// Generated is the set refreshed by the scheduled job, in generation order.
var Generated = []Type{
	EntryVolume, EnergyTimeline, CategoryDistribution, EntryTypePie,
	WeeklyCategoryHeatmap, SleepQuality, WorkoutFrequency, AvoidanceFrequency,
	ProductivityFocus, FinancialTracking, LoggingConsistency,
}

// OnDemand charts are generated only when asked for explicitly.
var OnDemand = []Type{
	MoneyMistakesScatter, ProcrastinationDuration, EnergyCorrelation,
	WinProblemRatio, ConnectionQuality,
}

func (t Type) Known() bool {
	_, ok := specs[t]
	return ok
}

// spec says what a chart reads and how the model is asked to shape it.
type spec struct {
	categories  []model.Category
	allEntries  bool
	checkins    bool
	instruction string
	format      string
}

var specs = map[Type]spec{
	EntryVolume: {
		allEntries:  true,
		instruction: "Analyze this entry data and generate a line chart showing entry volume over time.",
		format: `{
  "data": [
    {"date": "2026-01-01", "total": 5, "win": 2, "problem": 1, "money": 1, "avoidance": 1}
  ],
  "insights": ["Volume increased 40% this week", "Most active on Wednesdays"]
}`,
	},
	EnergyTimeline: {
		categories:  []model.Category{model.CategoryEnergy},
		checkins:    true,
		instruction: "Analyze energy check-in data and create an energy timeline chart.",
		format: `{
  "data": [
    {"date": "2026-01-01", "energy": 7, "moving_average": 6.8, "zone": "normal"}
  ],
  "insights": ["Energy dipped below 5 for 3 days", "Average energy: 6.2/10"]
}`,
	},
	CategoryDistribution: {
		allEntries:  true,
		instruction: "Create a stacked area chart showing entry type distribution over time.",
		format: `{
  "data": [
    {"date": "2026-01-01", "win": 2, "problem": 3, "money": 1, "avoidance": 1, "energy": 1, "workout": 0}
  ],
  "insights": ["Problems increased 200% mid-week", "Wins-to-problems ratio: 0.4"]
}`,
	},
	EntryTypePie: {
		allEntries:  true,
		instruction: "Create a pie chart showing current entry type distribution.",
		format: `{
  "data": [
    {"name": "win", "value": 15, "percentage": 25},
    {"name": "problem", "value": 20, "percentage": 33}
  ],
  "insights": ["60% of entries are problems - concerning", "Only 10% wins logged"]
}`,
	},
	WeeklyCategoryHeatmap: {
		allEntries:  true,
		instruction: "Create a heatmap showing entry types by week.",
		format: `{
  "data": [
    {"week": "2026-W01", "win": 8, "problem": 12, "money": 3, "avoidance": 5, "energy": 7}
  ],
  "insights": ["No wins logged in week 3", "Consistent energy tracking"]
}`,
	},
	SleepQuality: {
		categories:  []model.Category{model.CategorySleep},
		instruction: "Create a bar chart showing sleep patterns.",
		format: `{
  "data": [
    {"date": "2026-01-01", "hours": 7.5, "quality": "good", "interruptions": 1}
  ],
  "insights": ["Average sleep: 6.8 hours", "Sleep quality poor 3 nights this week"]
}`,
	},
	WorkoutFrequency: {
		categories:  []model.Category{model.CategoryWorkout},
		instruction: "Create a workout frequency calendar heatmap.",
		format: `{
  "data": [
    {"date": "2026-01-01", "worked_out": true, "duration": 45}
  ],
  "insights": ["Worked out 4/7 days", "Current streak: 2 days", "Longest streak: 5 days"]
}`,
	},
	AvoidanceFrequency: {
		categories:  []model.Category{model.CategoryAvoidance},
		instruction: "Create a bar chart showing avoidance by day of week.",
		format: `{
  "data": [
    {"day": "Monday", "count": 3, "types": ["work", "calls", "exercise"]},
    {"day": "Tuesday", "count": 1, "types": ["meetings"]}
  ],
  "insights": ["Most avoidance on Mondays", "Work avoidance most common"]
}`,
	},
	ProductivityFocus: {
		categories:  []model.Category{model.CategoryFocus, model.CategoryDistraction},
		instruction: "Create a stacked bar chart of focus vs distraction time.",
		format: `{
  "data": [
    {"date": "2026-01-01", "focus_hours": 4.5, "distraction_hours": 2.3, "net_productivity": 2.2}
  ],
  "insights": ["Lost 12 hours to distractions this week", "Average focus time: 3.8 hours/day"]
}`,
	},
	FinancialTracking: {
		categories:  []model.Category{model.CategoryMoney},
		instruction: "Create an area chart of money wasted over time.",
		format: `{
  "data": [
    {"week": "2026-W01", "amount": 125.50, "cumulative": 125.50}
  ],
  "insights": ["Wasted $380 this month", "Could have bought: 2 weeks groceries"]
}`,
	},
	LoggingConsistency: {
		allEntries:  true,
		instruction: "Create a logging consistency calendar.",
		format: `{
  "data": [
    {"date": "2026-01-01", "entries_count": 4, "has_entries": true}
  ],
  "insights": ["Logged entries 5/7 days", "Current streak: 3 days", "Average: 3.2 entries/day"]
}`,
	},
	MoneyMistakesScatter: {
		categories:  []model.Category{model.CategoryMoney},
		instruction: "Create a scatter plot of money mistakes by time.",
		format: `{
  "data": [
    {"time": "14:30", "amount": 25.50, "category": "food", "day": "Monday"}
  ],
  "insights": ["80% of purchases after 8pm", "Average impulse buy: $35"]
}`,
	},
	ProcrastinationDuration: {
		categories:  []model.Category{model.CategoryProcrastination},
		instruction: "Create a horizontal bar chart of procrastination duration.",
		format: `{
  "data": [
    {"task": "Dentist appointment", "days_avoided": 37, "category": "health"},
    {"task": "Tax paperwork", "days_avoided": 21, "category": "finance"}
  ],
  "insights": ["Longest avoidance: 37 days", "Health tasks most avoided"]
}`,
	},
	EnergyCorrelation: {
		allEntries:  true,
		checkins:    true,
		instruction: "Create a scatter plot showing energy vs entry types.",
		format: `{
  "data": [
    {"energy": 3, "entry_type": "problem", "count": 5},
    {"energy": 8, "entry_type": "win", "count": 3}
  ],
  "insights": ["Low energy correlates with more problems", "High energy = more wins"]
}`,
	},
	WinProblemRatio: {
		categories:  []model.Category{model.CategoryWin, model.CategoryProblem},
		instruction: "Create a dual-axis line chart of win/problem ratio.",
		format: `{
  "data": [
    {"week": "2026-W01", "wins": 8, "problems": 12, "ratio": 0.67}
  ],
  "insights": ["Ratio declining for 3 weeks", "Current ratio: 0.4 (needs improvement)"]
}`,
	},
	ConnectionQuality: {
		categories:  []model.Category{model.CategoryConnection, model.CategoryConflict},
		instruction: "Create a line chart of connection quality over time.",
		format: `{
  "data": [
    {"date": "2026-01-01", "score": 2, "positive_connections": 1, "avoided_connections": 0}
  ],
  "insights": ["Connection score: -3 this week", "More avoided than positive connections"]
}`,
	},
}
