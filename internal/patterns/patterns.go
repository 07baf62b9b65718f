// Package patterns raises threshold alerts over the last week of entries and
// check-ins.
package patterns

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"ledger-bot/internal/logger"
	"ledger-bot/internal/model"
)

const (
	window         = 7 * 24 * time.Hour
	winDrought     = 5 * 24 * time.Hour
	avoidanceLimit = 4
	moneyLimit     = 3
	lowEnergyRun   = 4
	lowEnergy      = 5

	header = "📊 PATTERN ALERTS\n\n"
)

type Alert struct {
	Category model.Category
	Message  string
}

// Detect evaluates every rule over the seven days ending at now.
func Detect(entries []model.Entry, checkins []model.Checkin, now time.Time) []Alert {
	since := now.Add(-window)
	var avoidance, money, workouts int
	recentWin := false

	for _, e := range entries {
		if e.CreatedAt.Before(since) || e.CreatedAt.After(now) {
			continue
		}
		content := strings.ToLower(e.Content)
		if e.Category == model.CategoryAvoidance || strings.Contains(content, "skipped") || strings.Contains(content, "avoided") {
			avoidance++
		}
		switch e.Category {
		case model.CategoryMoney:
			money++
		case model.CategoryWorkout:
			workouts++
		case model.CategoryWin:
			if e.CreatedAt.After(now.Add(-winDrought)) {
				recentWin = true
			}
		}
	}

	var alerts []Alert
	if avoidance >= avoidanceLimit {
		alerts = append(alerts, Alert{model.CategoryAvoidance,
			fmt.Sprintf("⚠️ You've logged avoidance %d times this week. Pattern forming.", avoidance)})
	}
	if money >= moneyLimit {
		alerts = append(alerts, Alert{model.CategoryMoney,
			"💸 3rd money mistake this week. The feudal lord is displeased with your wastefulness."})
	}
	if !recentWin {
		alerts = append(alerts, Alert{model.CategoryWin,
			"🚨 You haven't logged a win in 5 days. What's happening, wretch?"})
	}
	if lowEnergyStreak(checkins, since, now) {
		alerts = append(alerts, Alert{model.CategoryEnergy,
			"⚡ Energy below 5 for 4 consecutive days. Check sleep and stress levels immediately."})
	}
	if workouts == 0 {
		alerts = append(alerts, Alert{model.CategoryWorkout,
			"🏋️ Zero workouts logged this week. Your body rots while you delay."})
	}
	return alerts
}

// lowEnergyStreak reports whether the latest four check-ins in the window all
// scored below five.
func lowEnergyStreak(checkins []model.Checkin, since, now time.Time) bool {
	var recent []model.Checkin
	for _, c := range checkins {
		if !c.CreatedAt.Before(since) && !c.CreatedAt.After(now) {
			recent = append(recent, c)
		}
	}
	if len(recent) < lowEnergyRun {
		return false
	}
	sort.Slice(recent, func(i, j int) bool { return recent[i].CreatedAt.After(recent[j].CreatedAt) })
	for _, c := range recent[:lowEnergyRun] {
		if c.EnergyScore >= lowEnergy {
			return false
		}
	}
	return true
}

// Render joins alerts into the single owner message.
func Render(alerts []Alert) string {
	msgs := make([]string, 0, len(alerts))
	for _, a := range alerts {
		msgs = append(msgs, a.Message)
	}
	return header + strings.Join(msgs, "\n\n")
}

type Store interface {
	EntriesSince(ctx context.Context, since time.Time, categories ...model.Category) ([]model.Entry, error)
	CheckinsSince(ctx context.Context, since time.Time) ([]model.Checkin, error)
	InsertAlert(ctx context.Context, a *model.PatternAlert) error
}

type Notifier interface {
	Notify(ctx context.Context, text string) error
}

type Service struct {
	store    Store
	notifier Notifier
	now      func() time.Time
}

func New(store Store, notifier Notifier) *Service {
	return &Service{store: store, notifier: notifier, now: time.Now}
}

// Run detects, notifies and records alerts. It returns the alerts raised.
func (s *Service) Run(ctx context.Context) ([]Alert, error) {
	now := s.now().UTC()
	since := now.Add(-window)

	var entries []model.Entry
	var checkins []model.Checkin
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		entries, err = s.store.EntriesSince(gctx, since)
		if err != nil {
			return fmt.Errorf("fetch entries: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		checkins, err = s.store.CheckinsSince(gctx, since)
		if err != nil {
			return fmt.Errorf("fetch checkins: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	alerts := Detect(entries, checkins, now)
	if len(alerts) == 0 {
		logger.Info("✅ Pattern detection: nothing to report")
		return nil, nil
	}

	if s.notifier != nil {
		if err := s.notifier.Notify(ctx, Render(alerts)); err != nil {
			logger.Warnf("⚠️ Pattern alerts not delivered: %v", err)
		}
	}
	for _, a := range alerts {
		rec := &model.PatternAlert{
			AlertType: "threshold",
			Category:  string(a.Category),
			Message:   a.Message,
			Severity:  "warning",
		}
		if err := s.store.InsertAlert(ctx, rec); err != nil {
			return alerts, fmt.Errorf("save alert: %w", err)
		}
	}
	logger.Infow("pattern alerts raised", "count", len(alerts))
	return alerts, nil
}
