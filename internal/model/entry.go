// Package model holds the persisted records of the ledger.
package model

import (
	"errors"
	"fmt"
	"time"
	"unicode/utf8"
)

// MaxContentLength is the longest entry text accepted, in characters.
const MaxContentLength = 5000

var (
	ErrEmptyContent    = errors.New("entry content is empty")
	ErrContentTooLong  = errors.New("entry content is too long")
	ErrInvalidCategory = errors.New("invalid entry category")
)

// Category is the closed set of things an entry can log.
type Category string

const (
	CategoryWin             Category = "win"
	CategoryProblem         Category = "problem"
	CategoryMoney           Category = "money"
	CategoryAvoidance       Category = "avoidance"
	CategoryEnergy          Category = "energy"
	CategoryMood            Category = "mood"
	CategorySleep           Category = "sleep"
	CategoryWorkout         Category = "workout"
	CategoryFood            Category = "food"
	CategorySubstance       Category = "substance"
	CategoryConnection      Category = "connection"
	CategoryConflict        Category = "conflict"
	CategoryFocus           Category = "focus"
	CategoryDistraction     Category = "distraction"
	CategoryProcrastination Category = "procrastination"
	CategoryLearn           Category = "learn"
	CategoryInsight         Category = "insight"
)

// Categories lists every valid category in display order.
var Categories = []Category{
	CategoryWin, CategoryProblem, CategoryMoney, CategoryAvoidance,
	CategoryEnergy, CategoryMood, CategorySleep,
	CategoryWorkout, CategoryFood, CategorySubstance,
	CategoryConnection, CategoryConflict,
	CategoryFocus, CategoryDistraction, CategoryProcrastination,
	CategoryLearn, CategoryInsight,
}

func (c Category) Valid() bool {
	for _, k := range Categories {
		if k == c {
			return true
		}
	}
	return false
}

// ParseCategory accepts the exact lower-case category name.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidCategory, s)
	}
	return c, nil
}

// Metadata holds scalar values extracted from entry text, e.g. {"hours": 7}.
type Metadata map[string]any

// Entry is one logged fact. Entries are written once and never updated.
type Entry struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"index;not null" json:"created_at"`
	Category  Category  `gorm:"column:type;type:varchar(32);index;not null" json:"type"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	Metadata  Metadata  `gorm:"serializer:json" json:"metadata,omitempty"`
}

func (Entry) TableName() string {
	return "entries"
}

// Validate checks the invariants every stored entry must hold.
func (e *Entry) Validate() error {
	if !e.Category.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidCategory, e.Category)
	}
	if e.Content == "" {
		return ErrEmptyContent
	}
	if utf8.RuneCountInString(e.Content) > MaxContentLength {
		return fmt.Errorf("%w: %d characters", ErrContentTooLong, utf8.RuneCountInString(e.Content))
	}
	return nil
}
