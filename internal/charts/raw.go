package charts

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"ledger-bot/internal/analytics"
	"ledger-bot/internal/model"
)

const rawWindow = 30 * 24 * time.Hour

type rawEntry struct {
	CreatedAt time.Time      `json:"created_at"`
	Type      model.Category `json:"type"`
	Content   string         `json:"content,omitempty"`
	Metadata  model.Metadata `json:"metadata,omitempty"`
}

type rawCheckin struct {
	CreatedAt   time.Time `json:"created_at"`
	EnergyScore int       `json:"energy_score"`
}

// RawData is what the model sees for one chart: the rows it is about plus
// pre-computed aggregates so it does not have to count.
type RawData struct {
	From     time.Time          `json:"from"`
	To       time.Time          `json:"to"`
	Entries  []rawEntry         `json:"entries"`
	Checkins []rawCheckin       `json:"checkins,omitempty"`
	Stats    *analytics.Summary `json:"stats"`
}

func (s *Service) rawData(ctx context.Context, t Type, now time.Time) (*RawData, error) {
	sp, ok := specs[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, t)
	}
	since := now.Add(-rawWindow)

	var entries []model.Entry
	var checkins []model.Checkin
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if sp.allEntries {
			entries, err = s.store.EntriesSince(gctx, since)
		} else {
			entries, err = s.store.EntriesSince(gctx, since, sp.categories...)
		}
		if err != nil {
			return fmt.Errorf("fetch entries: %w", err)
		}
		return nil
	})
	if sp.checkins {
		g.Go(func() error {
			var err error
			checkins, err = s.store.CheckinsSince(gctx, since)
			if err != nil {
				return fmt.Errorf("fetch checkins: %w", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	raw := &RawData{
		From:    since,
		To:      now,
		Entries: make([]rawEntry, 0, len(entries)),
		Stats:   analytics.Summarize(entries, checkins, since, now),
	}
	for _, e := range entries {
		re := rawEntry{CreatedAt: e.CreatedAt, Type: e.Category}
		// Volume charts only need type and time.
		if !sp.allEntries {
			re.Content = e.Content
			re.Metadata = e.Metadata
		}
		raw.Entries = append(raw.Entries, re)
	}
	for _, c := range checkins {
		raw.Checkins = append(raw.Checkins, rawCheckin{CreatedAt: c.CreatedAt, EnergyScore: c.EnergyScore})
	}
	return raw, nil
}
