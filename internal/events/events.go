// Package events carries entry notifications from ingestion to background
// chart refresh, over Kafka when configured.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"ledger-bot/internal/logger"
)

const TypeEntryCreated = "entry.created"

// EntryCreated is published after an entry has been stored.
type EntryCreated struct {
	Type      string    `json:"type"`
	EntryID   string    `json:"entry_id"`
	Category  string    `json:"category"`
	CreatedAt time.Time `json:"created_at"`
}

type Publisher interface {
	PublishEntryCreated(ctx context.Context, ev EntryCreated) error
}

// PublisherFunc adapts a function, e.g. an in-process trigger.
type PublisherFunc func(ctx context.Context, ev EntryCreated) error

func (f PublisherFunc) PublishEntryCreated(ctx context.Context, ev EntryCreated) error {
	return f(ctx, ev)
}

// Nop drops every event.
type Nop struct{}

func (Nop) PublishEntryCreated(context.Context, EntryCreated) error { return nil }

type KafkaPublisher struct {
	w *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{w: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 50 * time.Millisecond,
	}}
}

func (p *KafkaPublisher) PublishEntryCreated(ctx context.Context, ev EntryCreated) error {
	if ev.Type == "" {
		ev.Type = TypeEntryCreated
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.w.WriteMessages(ctx, kafka.Message{Key: []byte(ev.Category), Value: b}); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error { return p.w.Close() }

// Handler processes one decoded event.
type Handler func(ctx context.Context, ev EntryCreated) error

// Consume reads entry events until ctx is cancelled. Malformed messages and
// handler failures are logged and committed so they never block the topic.
func Consume(ctx context.Context, brokers []string, topic, groupID string, handle Handler) error {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 1e6,
	})
	defer r.Close()

	logger.Infof("📨 Kafka consumer listening on topic '%s'", topic)
	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("fetch message: %w", err)
		}
		var ev EntryCreated
		if err := json.Unmarshal(m.Value, &ev); err != nil {
			logger.Errorf("❌ Bad event at offset %d: %v", m.Offset, err)
		} else if err := handle(ctx, ev); err != nil {
			logger.Errorf("❌ Event handler failed for %s: %v", ev.EntryID, err)
		}
		if err := r.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
			logger.Errorf("❌ Commit offset %d failed: %v", m.Offset, err)
		}
	}
}

// Coalescer runs fn in the background at most once per interval, dropping
// triggers that arrive while a run is in flight or too soon after the last.
type Coalescer struct {
	fn       func(ctx context.Context)
	interval time.Duration
	now      func() time.Time

	mu      sync.Mutex
	running bool
	last    time.Time
	wg      sync.WaitGroup
}

func NewCoalescer(interval time.Duration, fn func(ctx context.Context)) *Coalescer {
	return &Coalescer{fn: fn, interval: interval, now: time.Now}
}

// Trigger reports whether a run was started.
func (c *Coalescer) Trigger(ctx context.Context) bool {
	c.mu.Lock()
	if c.running || (!c.last.IsZero() && c.now().Sub(c.last) < c.interval) {
		c.mu.Unlock()
		return false
	}
	c.running = true
	c.last = c.now()
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer func() {
			c.mu.Lock()
			c.running = false
			c.mu.Unlock()
		}()
		c.fn(context.WithoutCancel(ctx))
	}()
	return true
}

// Wait blocks until in-flight runs finish.
func (c *Coalescer) Wait() { c.wg.Wait() }

// Handle adapts the coalescer to a Handler.
func (c *Coalescer) Handle(ctx context.Context, _ EntryCreated) error {
	c.Trigger(ctx)
	return nil
}
