package model

import "time"

// ConversationState is the stored dialogue cursor of one correspondent.
// Version increases on every successful write and guards concurrent updates.
type ConversationState struct {
	CorrespondentID int64     `gorm:"primaryKey;autoIncrement:false" json:"correspondent_id"`
	Step            string    `gorm:"type:varchar(32);not null" json:"step"`
	Answers         string    `gorm:"type:text;not null" json:"answers"`
	Version         int64     `gorm:"not null" json:"version"`
	UpdatedAt       time.Time `gorm:"not null" json:"updated_at"`
}

func (ConversationState) TableName() string {
	return "conversation_states"
}

// Checkin is the composite record written when a check-in completes.
type Checkin struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	CorrespondentID int64     `gorm:"index;not null" json:"correspondent_id"`
	EnergyScore     int       `gorm:"not null" json:"energy_score"`
	WinToday        string    `gorm:"type:text;not null" json:"win_today"`
	AvoidedToday    string    `gorm:"type:text;not null" json:"avoided_today"`
	Mood            string    `gorm:"type:text;not null" json:"mood"`
	GratefulFor     string    `gorm:"type:text;not null" json:"grateful_for"`
	CreatedAt       time.Time `gorm:"index;not null" json:"created_at"`
}

func (Checkin) TableName() string {
	return "checkins"
}

// Report is the weekly synthesis over seven days of entries.
type Report struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	WeekStart string    `gorm:"type:varchar(10);uniqueIndex;not null" json:"week_start"`
	Summary   string    `gorm:"type:text" json:"summary"`
	Patterns  string    `gorm:"type:text" json:"patterns"`
	Strategy  string    `gorm:"type:text" json:"strategy"`
	DropList  string    `gorm:"type:text" json:"drop_list"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (Report) TableName() string {
	return "weekly_reports"
}

// PatternAlert records a threshold alert sent to the owner.
type PatternAlert struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	AlertType string    `gorm:"type:varchar(32);not null" json:"alert_type"`
	Category  string    `gorm:"type:varchar(32);not null" json:"category"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	Severity  string    `gorm:"type:varchar(16);not null" json:"severity"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (PatternAlert) TableName() string {
	return "pattern_alerts"
}

// ChartData is the database-backed chart cache row.
type ChartData struct {
	ID          uint      `gorm:"primaryKey"`
	ChartType   string    `gorm:"type:varchar(64);not null;uniqueIndex:ux_chart_period,priority:1"`
	Period      string    `gorm:"type:varchar(32);not null;uniqueIndex:ux_chart_period,priority:2"`
	Data        string    `gorm:"type:text;not null"`
	GeneratedAt time.Time `gorm:"not null"`
	ExpiresAt   time.Time `gorm:"index;not null"`
}

func (ChartData) TableName() string {
	return "chart_data"
}

// ProcessedUpdate marks an inbound transport delivery as already handled.
type ProcessedUpdate struct {
	UpdateID  int64     `gorm:"primaryKey;autoIncrement:false"`
	CreatedAt time.Time `gorm:"not null"`
}

func (ProcessedUpdate) TableName() string {
	return "processed_updates"
}
