package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(context.Context) error { return nil }

func TestAdd(t *testing.T) {
	s := New()
	defer s.Stop()

	require.NoError(t, s.Add(Job{Name: "weekly-review", Spec: "0 18 * * 0", Run: noop}))
	require.NoError(t, s.Add(Job{Name: "patterns", Spec: "0 9 * * *", Run: noop}))
	require.NoError(t, s.Add(Job{Name: "charts", Spec: "", Run: noop}))

	assert.Error(t, s.Add(Job{Name: "patterns", Spec: "0 9 * * *", Run: noop}))
	assert.Error(t, s.Add(Job{Name: "bad", Spec: "every tuesday", Run: noop}))
	assert.Error(t, s.Add(Job{Name: "nil", Spec: "0 9 * * *"}))

	next := s.Next()
	require.Len(t, next, 2)

	weekly := next["weekly-review"]
	assert.Equal(t, time.Sunday, weekly.Weekday())
	assert.Equal(t, 18, weekly.Hour())
	assert.Equal(t, time.UTC, weekly.Location())
	assert.Equal(t, 9, next["patterns"].Hour())
}

func TestRunSurvivesErrorsAndPanics(t *testing.T) {
	s := New()
	defer s.Stop()

	calls := 0
	s.run(Job{Name: "err", Run: func(context.Context) error { calls++; return errors.New("boom") }})
	s.run(Job{Name: "panic", Run: func(context.Context) error { calls++; panic("bad") }})
	s.run(Job{Name: "ok", Run: func(ctx context.Context) error {
		calls++
		return ctx.Err()
	}})
	assert.Equal(t, 3, calls)
}

func TestStopCancelsJobContext(t *testing.T) {
	s := New()
	var got context.Context
	s.run(Job{Name: "capture", Run: func(ctx context.Context) error { got = ctx; return nil }})
	s.Stop()
	require.NotNil(t, got)
	assert.ErrorIs(t, got.Err(), context.Canceled)
}
