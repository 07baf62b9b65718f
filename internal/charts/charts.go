// Package charts asks the narrative generator to shape thirty days of entries
// into dashboard chart payloads and caches the results.
package charts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"ledger-bot/internal/cache"
	"ledger-bot/internal/llm"
	"ledger-bot/internal/logger"
	"ledger-bot/internal/model"
	"ledger-bot/internal/narrative"
)

var ErrUnknownType = errors.New("unknown chart type")

const (
	DefaultPeriod = "weekly"

	chartSystemPrompt = "You turn personal log data into chart-ready JSON. Answer with the JSON object only."
	failedMessage     = "Failed to generate"
	missMessage       = "No cached data available"
)

type Store interface {
	EntriesSince(ctx context.Context, since time.Time, categories ...model.Category) ([]model.Entry, error)
	CheckinsSince(ctx context.Context, since time.Time) ([]model.Checkin, error)
}

type Generator interface {
	GenerateWithin(ctx context.Context, timeout time.Duration, system, prompt string) (string, error)
}

type Options struct {
	TTL     time.Duration
	Delay   time.Duration
	Timeout time.Duration
}

type Service struct {
	store Store
	gen   Generator
	cache cache.Cache

	ttl        time.Duration
	delay      time.Duration
	timeout    time.Duration
	retries    uint64
	retryDelay time.Duration
	now        func() time.Time
}

func New(store Store, gen Generator, c cache.Cache, opts Options) *Service {
	s := &Service{
		store:      store,
		gen:        gen,
		cache:      c,
		ttl:        opts.TTL,
		delay:      opts.Delay,
		timeout:    opts.Timeout,
		retries:    2,
		retryDelay: 2 * time.Second,
		now:        time.Now,
	}
	if s.ttl <= 0 {
		s.ttl = 24 * time.Hour
	}
	if s.timeout <= 0 {
		s.timeout = time.Minute
	}
	return s
}

// Payload is a chart body: at least "data" and "insights".
type Payload map[string]any

func emptyPayload() Payload {
	return Payload{"data": []any{}, "insights": []any{}}
}

// Generate builds one chart and stores it in the cache.
func (s *Service) Generate(ctx context.Context, t Type, period string) (Payload, error) {
	raw, err := s.rawData(ctx, t, s.now().UTC())
	if err != nil {
		return nil, err
	}
	rawJSON, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("marshal raw data: %w", err)
	}
	sp := specs[t]
	prompt := sp.instruction + "\nRaw data: " + string(rawJSON) + "\n\nReturn JSON in this exact format:\n" + sp.format

	text, err := s.generateWithRetry(ctx, t, prompt)
	if err != nil {
		return nil, err
	}
	payload := parsePayload(t, text)

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	if err := s.cache.Put(ctx, string(t), period, body, s.ttl); err != nil {
		return nil, fmt.Errorf("cache %s: %w", t, err)
	}
	return payload, nil
}

// generateWithRetry retries only rate-limited calls, with exponential delay.
func (s *Service) generateWithRetry(ctx context.Context, t Type, prompt string) (string, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.retryDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, s.retries), ctx)

	var text string
	op := func() error {
		var err error
		text, err = s.gen.GenerateWithin(ctx, s.timeout, chartSystemPrompt, prompt)
		if err != nil && !llm.IsRateLimited(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		logger.Warnf("⏳ Rate limit hit for %s, retrying in %s: %v", t, wait, err)
	}
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return "", fmt.Errorf("generate %s: %w", t, err)
	}
	return text, nil
}

// parsePayload never fails: an unreadable answer becomes an empty chart.
func parsePayload(t Type, text string) Payload {
	raw, ok := narrative.ExtractJSON(text)
	if !ok {
		logger.Warnf("⚠️ No JSON in %s chart response", t)
		return emptyPayload()
	}
	var p Payload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		logger.Warnf("⚠️ Failed to parse %s chart data: %v", t, err)
		return emptyPayload()
	}
	if _, ok := p["data"].([]any); !ok {
		p["data"] = []any{}
	}
	if _, ok := p["insights"].([]any); !ok {
		p["insights"] = []any{}
	}
	return p
}

// Batch is the result of a GenerateAll run.
type Batch struct {
	Results   map[Type]Payload
	Succeeded int
}

func (b *Batch) Message() string {
	return fmt.Sprintf("Generated %d charts successfully", b.Succeeded)
}

// GenerateAll builds charts one at a time with a pause between them. A chart
// that fails is reported in its slot and does not stop the batch. With no
// types the scheduled set is generated.
func (s *Service) GenerateAll(ctx context.Context, period string, types ...Type) *Batch {
	if len(types) == 0 {
		types = Generated
	}
	batch := &Batch{Results: make(map[Type]Payload, len(types))}
	for i, t := range types {
		logger.Infof("📈 Generating chart: %s", t)
		p, err := s.Generate(ctx, t, period)
		if err != nil {
			logger.Errorf("❌ Failed to generate %s: %v", t, err)
			p = emptyPayload()
			p["message"] = failedMessage
		} else {
			batch.Succeeded++
		}
		batch.Results[t] = p

		if i < len(types)-1 && s.delay > 0 {
			select {
			case <-ctx.Done():
				logger.Warnf("⚠️ Chart generation interrupted: %v", ctx.Err())
				return batch
			case <-time.After(s.delay):
			}
		}
	}
	logger.Infof("📈 Chart generation completed: %d/%d successful", batch.Succeeded, len(types))
	return batch
}

// Get reads a chart from the cache only. A miss is not an error.
func (s *Service) Get(ctx context.Context, chartType, period string) (Payload, error) {
	it, err := s.cache.Get(ctx, chartType, period)
	if errors.Is(err, cache.ErrMiss) {
		p := emptyPayload()
		p["cached"] = false
		p["message"] = missMessage
		return p, nil
	}
	if err != nil {
		return nil, err
	}
	var p Payload
	if err := json.Unmarshal(it.Data, &p); err != nil {
		return nil, fmt.Errorf("decode cached %s: %w", chartType, err)
	}
	if p == nil {
		p = emptyPayload()
	}
	p["cached"] = true
	p["generated_at"] = it.GeneratedAt
	return p, nil
}

// ParseTypes validates a list of chart type names.
func ParseTypes(names []string) ([]Type, error) {
	out := make([]Type, 0, len(names))
	for _, n := range names {
		t := Type(strings.TrimSpace(n))
		if !t.Known() {
			return nil, fmt.Errorf("%w: %q", ErrUnknownType, n)
		}
		out = append(out, t)
	}
	return out, nil
}
