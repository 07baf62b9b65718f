package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ledger-bot/internal/model"
)

// LatestReports returns up to limit weekly reports, newest week first.
func (s *Store) LatestReports(ctx context.Context, limit int) ([]model.Report, error) {
	q := s.db.WithContext(ctx).Order("week_start DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []model.Report
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("latest reports: %w", err)
	}
	return out, nil
}

// UpsertReport stores a report, replacing any earlier one for the same week.
func (s *Store) UpsertReport(ctx context.Context, r *model.Report) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now().UTC()
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "week_start"}},
		DoUpdates: clause.AssignmentColumns([]string{"summary", "patterns", "strategy", "drop_list", "created_at"}),
	}).Create(r).Error
	if err != nil {
		return fmt.Errorf("upsert report: %w", err)
	}
	return nil
}

func (s *Store) InsertAlert(ctx context.Context, a *model.PatternAlert) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(a).Error; err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

// PutChart upserts the cached payload for (chart type, period).
func (s *Store) PutChart(ctx context.Context, c *model.ChartData) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "chart_type"}, {Name: "period"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "generated_at", "expires_at"}),
	}).Create(c).Error
	if err != nil {
		return fmt.Errorf("put chart: %w", err)
	}
	return nil
}

// GetChart returns the cached payload if it has not expired at now.
func (s *Store) GetChart(ctx context.Context, chartType, period string, now time.Time) (*model.ChartData, error) {
	var c model.ChartData
	err := s.db.WithContext(ctx).
		Where("chart_type = ? AND period = ? AND expires_at > ?", chartType, period, now.UTC()).
		Take(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get chart: %w", err)
	}
	return &c, nil
}
