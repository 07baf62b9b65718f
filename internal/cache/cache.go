// Package cache stores generated chart payloads keyed by chart type and period.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"ledger-bot/internal/model"
	"ledger-bot/internal/storage"
)

// ErrMiss is returned when nothing unexpired is cached for the key.
var ErrMiss = errors.New("chart cache miss")

// Item is one cached chart payload.
type Item struct {
	Data        json.RawMessage `json:"data"`
	GeneratedAt time.Time       `json:"generated_at"`
	ExpiresAt   time.Time       `json:"expires_at"`
}

type Cache interface {
	Get(ctx context.Context, chartType, period string) (*Item, error)
	Put(ctx context.Context, chartType, period string, data json.RawMessage, ttl time.Duration) error
}

// Redis keeps items under "chart:<type>:<period>" with a native TTL.
type Redis struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client, now: time.Now}
}

func redisKey(chartType, period string) string {
	return fmt.Sprintf("chart:%s:%s", chartType, period)
}

func (r *Redis) Get(ctx context.Context, chartType, period string) (*Item, error) {
	raw, err := r.client.Get(ctx, redisKey(chartType, period)).Bytes()
	if err == redis.Nil {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chart: %w", err)
	}
	var it Item
	if err := json.Unmarshal(raw, &it); err != nil {
		return nil, fmt.Errorf("failed to unmarshal chart: %w", err)
	}
	return &it, nil
}

func (r *Redis) Put(ctx context.Context, chartType, period string, data json.RawMessage, ttl time.Duration) error {
	now := r.now().UTC()
	raw, err := json.Marshal(Item{Data: data, GeneratedAt: now, ExpiresAt: now.Add(ttl)})
	if err != nil {
		return fmt.Errorf("failed to marshal chart: %w", err)
	}
	if err := r.client.Set(ctx, redisKey(chartType, period), raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set chart: %w", err)
	}
	return nil
}

// DB uses the chart_data table.
type DB struct {
	store *storage.Store
	now   func() time.Time
}

func NewDB(store *storage.Store) *DB {
	return &DB{store: store, now: time.Now}
}

func (d *DB) Get(ctx context.Context, chartType, period string) (*Item, error) {
	row, err := d.store.GetChart(ctx, chartType, period, d.now())
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, err
	}
	return &Item{Data: json.RawMessage(row.Data), GeneratedAt: row.GeneratedAt, ExpiresAt: row.ExpiresAt}, nil
}

func (d *DB) Put(ctx context.Context, chartType, period string, data json.RawMessage, ttl time.Duration) error {
	now := d.now().UTC()
	return d.store.PutChart(ctx, &model.ChartData{
		ChartType:   chartType,
		Period:      period,
		Data:        string(data),
		GeneratedAt: now,
		ExpiresAt:   now.Add(ttl),
	})
}
