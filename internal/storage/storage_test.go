package storage

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"ledger-bot/internal/logger"
	"ledger-bot/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("sqlite", filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open("postgres", "x")
	assert.Error(t, err)
}

func TestInsertEntry_AssignsIDAndTimestamp(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e := &model.Entry{Category: model.CategorySleep, Content: "7hr", Metadata: model.Metadata{"hours": 7}}
	require.NoError(t, s.InsertEntry(ctx, e))
	assert.Len(t, e.ID, 36)
	assert.False(t, e.CreatedAt.IsZero())

	got, err := s.ListEntries(ctx, EntryFilter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.CategorySleep, got[0].Category)
	assert.EqualValues(t, 7, got[0].Metadata["hours"])
}

func TestInsertEntry_Validation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.InsertEntry(ctx, &model.Entry{Category: model.CategoryWin, Content: ""})
	assert.ErrorIs(t, err, model.ErrEmptyContent)

	err = s.InsertEntry(ctx, &model.Entry{Category: "nap", Content: "x"})
	assert.ErrorIs(t, err, model.ErrInvalidCategory)

	err = s.InsertEntry(ctx, &model.Entry{Category: model.CategoryWin, Content: strings.Repeat("ж", model.MaxContentLength+1)})
	assert.ErrorIs(t, err, model.ErrContentTooLong)

	require.NoError(t, s.InsertEntry(ctx, &model.Entry{Category: model.CategoryWin, Content: strings.Repeat("ж", model.MaxContentLength)}))
}

func TestListAndWindowQueries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	add := func(c model.Category, content string, at time.Time) {
		require.NoError(t, s.InsertEntry(ctx, &model.Entry{Category: c, Content: content, CreatedAt: at}))
	}
	add(model.CategoryWin, "old win", base.Add(-10*24*time.Hour))
	add(model.CategoryMoney, "coffee", base.Add(-2*24*time.Hour))
	add(model.CategoryWin, "new win", base.Add(-1*24*time.Hour))
	add(model.CategoryWorkout, "run", base)

	latest, err := s.ListEntries(ctx, EntryFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, "run", latest[0].Content)

	wins, err := s.ListEntries(ctx, EntryFilter{Category: model.CategoryWin})
	require.NoError(t, err)
	assert.Len(t, wins, 2)

	week, err := s.EntriesSince(ctx, base.Add(-7*24*time.Hour))
	require.NoError(t, err)
	require.Len(t, week, 3)
	assert.Equal(t, "coffee", week[0].Content)

	onlyWins, err := s.EntriesSince(ctx, base.Add(-7*24*time.Hour), model.CategoryWin, model.CategoryWorkout)
	require.NoError(t, err)
	assert.Len(t, onlyWins, 2)
}

func TestGetState_Missing(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetState(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveState_CompareAndSwap(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	v, err := s.SaveState(ctx, model.ConversationState{CorrespondentID: 5, Step: "awaiting_energy", Answers: "{}"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	// A second creator racing on the same id loses.
	_, err = s.SaveState(ctx, model.ConversationState{CorrespondentID: 5, Step: "awaiting_energy", Answers: "{}"})
	assert.ErrorIs(t, err, ErrStateConflict)

	// Two writers read version 1; only the first write lands.
	first := model.ConversationState{CorrespondentID: 5, Step: "awaiting_win", Answers: `{"energy":7}`, Version: 1}
	second := model.ConversationState{CorrespondentID: 5, Step: "awaiting_win", Answers: `{"energy":2}`, Version: 1}

	v, err = s.SaveState(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)

	_, err = s.SaveState(ctx, second)
	assert.ErrorIs(t, err, ErrStateConflict)

	got, err := s.GetState(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, "awaiting_win", got.Step)
	assert.JSONEq(t, `{"energy":7}`, got.Answers)
	assert.Equal(t, int64(2), got.Version)
}

func TestCompleteCheckin_Atomic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	v, err := s.SaveState(ctx, model.ConversationState{CorrespondentID: 3, Step: "awaiting_grateful", Answers: "{}"})
	require.NoError(t, err)

	c := &model.Checkin{CorrespondentID: 3, EnergyScore: 7, WinToday: "a", AvoidedToday: "b", Mood: "c", GratefulFor: "d"}

	// Stale version: neither the reset nor the check-in is written.
	_, err = s.CompleteCheckin(ctx, model.ConversationState{CorrespondentID: 3, Step: "idle", Answers: "{}", Version: v + 5}, c)
	assert.ErrorIs(t, err, ErrStateConflict)
	checkins, err := s.CheckinsSince(ctx, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, checkins)

	c = &model.Checkin{CorrespondentID: 3, EnergyScore: 7, WinToday: "a", AvoidedToday: "b", Mood: "c", GratefulFor: "d"}
	_, err = s.CompleteCheckin(ctx, model.ConversationState{CorrespondentID: 3, Step: "idle", Answers: "{}", Version: v}, c)
	require.NoError(t, err)

	checkins, err = s.CheckinsSince(ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, checkins, 1)
	assert.Equal(t, 7, checkins[0].EnergyScore)

	st, err := s.GetState(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "idle", st.Step)
}

func TestMarkProcessed(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.MarkProcessed(ctx, 1001)
	require.NoError(t, err)
	assert.True(t, first)

	again, err := s.MarkProcessed(ctx, 1001)
	require.NoError(t, err)
	assert.False(t, again)
}

func TestUpsertReport_ReplacesSameWeek(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertReport(ctx, &model.Report{WeekStart: "2026-04-27", Summary: "first"}))
	require.NoError(t, s.UpsertReport(ctx, &model.Report{WeekStart: "2026-05-04", Summary: "other week"}))
	require.NoError(t, s.UpsertReport(ctx, &model.Report{WeekStart: "2026-04-27", Summary: "second"}))

	reports, err := s.LatestReports(ctx, 10)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, "2026-05-04", reports[0].WeekStart)
	assert.Equal(t, "second", reports[1].Summary)
}

func TestChartCache_Expiry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.PutChart(ctx, &model.ChartData{ChartType: "entry_volume", Period: "weekly", Data: `{"data":[1]}`, GeneratedAt: now, ExpiresAt: now.Add(24 * time.Hour)}))
	require.NoError(t, s.PutChart(ctx, &model.ChartData{ChartType: "entry_volume", Period: "weekly", Data: `{"data":[2]}`, GeneratedAt: now, ExpiresAt: now.Add(24 * time.Hour)}))

	c, err := s.GetChart(ctx, "entry_volume", "weekly", now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, `{"data":[2]}`, c.Data)

	_, err = s.GetChart(ctx, "entry_volume", "weekly", now.Add(25*time.Hour))
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.GetChart(ctx, "sleep_quality", "weekly", now)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInsertAlert(t *testing.T) {
	s := newTestStore(t)
	a := &model.PatternAlert{AlertType: "threshold", Category: "money", Message: "3 money entries", Severity: "warning"}
	require.NoError(t, s.InsertAlert(context.Background(), a))
	assert.NotZero(t, a.ID)
	assert.False(t, a.CreatedAt.IsZero())
}

func TestGetState_MissingRowIsQuiet(t *testing.T) {
	s := newTestStore(t)
	core, logs := observer.New(zap.DebugLevel)
	logger.Set(zap.New(core))
	t.Cleanup(func() { logger.Set(zap.NewNop()) })

	_, err := s.GetState(context.Background(), 404)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, logs.Len())
}
