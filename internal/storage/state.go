package storage

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ledger-bot/internal/model"
)

// GetState loads the conversation cursor. A correspondent with no row yields
// ErrNotFound.
func (s *Store) GetState(ctx context.Context, correspondentID int64) (model.ConversationState, error) {
	var st model.ConversationState
	err := s.db.WithContext(ctx).Where("correspondent_id = ?", correspondentID).Take(&st).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.ConversationState{}, ErrNotFound
	}
	if err != nil {
		return model.ConversationState{}, fmt.Errorf("get state: %w", err)
	}
	return st, nil
}

// SaveState writes st only if the stored version still equals st.Version.
// Version 0 means no row is expected. It returns the new version, or
// ErrStateConflict when another writer got there first.
func (s *Store) SaveState(ctx context.Context, st model.ConversationState) (int64, error) {
	var v int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		v, err = s.saveState(tx, st)
		return err
	})
	return v, err
}

// CompleteCheckin stores the finished check-in and the reset cursor in one
// transaction. Nothing is written when the version check fails.
func (s *Store) CompleteCheckin(ctx context.Context, st model.ConversationState, c *model.Checkin) (int64, error) {
	var v int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if v, err = s.saveState(tx, st); err != nil {
			return err
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = s.now().UTC()
		}
		if err := tx.Create(c).Error; err != nil {
			return fmt.Errorf("insert checkin: %w", err)
		}
		return nil
	})
	return v, err
}

func (s *Store) saveState(tx *gorm.DB, st model.ConversationState) (int64, error) {
	if st.UpdatedAt.IsZero() {
		st.UpdatedAt = s.now().UTC()
	}
	next := st.Version + 1

	if st.Version == 0 {
		row := st
		row.Version = next
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
		if res.Error != nil {
			return 0, fmt.Errorf("insert state: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return 0, ErrStateConflict
		}
		return next, nil
	}

	res := tx.Model(&model.ConversationState{}).
		Where("correspondent_id = ? AND version = ?", st.CorrespondentID, st.Version).
		Updates(map[string]any{
			"step":       st.Step,
			"answers":    st.Answers,
			"version":    next,
			"updated_at": st.UpdatedAt,
		})
	if res.Error != nil {
		return 0, fmt.Errorf("update state: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, ErrStateConflict
	}
	return next, nil
}

// MarkProcessed records a transport delivery id. It reports false when the
// id was already recorded.
func (s *Store) MarkProcessed(ctx context.Context, updateID int64) (bool, error) {
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.ProcessedUpdate{UpdateID: updateID, CreatedAt: s.now().UTC()})
	if res.Error != nil {
		return false, fmt.Errorf("mark processed: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}
