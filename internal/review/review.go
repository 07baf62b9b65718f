// Package review produces the weekly report: seven days of entries are
// summarized by the narrative generator, stored, archived and sent to the owner.
package review

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"ledger-bot/internal/analytics"
	"ledger-bot/internal/archive"
	"ledger-bot/internal/logger"
	"ledger-bot/internal/model"
	"ledger-bot/internal/narrative"
)

var ErrNoJSON = errors.New("no JSON object in review response")

const (
	emptyNotice   = "📭 *Weekly Review*\n\nNo entries this week. Start logging."
	failureNotice = "❌ *Weekly Review Failed*\n\nCheck server logs for details."
	window        = 7 * 24 * time.Hour
)

type Store interface {
	EntriesSince(ctx context.Context, since time.Time, categories ...model.Category) ([]model.Entry, error)
	CheckinsSince(ctx context.Context, since time.Time) ([]model.Checkin, error)
	UpsertReport(ctx context.Context, r *model.Report) error
}

type Generator interface {
	GenerateWithin(ctx context.Context, timeout time.Duration, system, prompt string) (string, error)
}

// Notifier delivers a Markdown message to the owner chat.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

type Service struct {
	store    Store
	gen      Generator
	notifier Notifier
	archiver archive.Archiver
	timeout  time.Duration
	now      func() time.Time
}

func New(store Store, gen Generator, notifier Notifier, archiver archive.Archiver, timeout time.Duration) *Service {
	if archiver == nil {
		archiver = archive.Nop{}
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Service{store: store, gen: gen, notifier: notifier, archiver: archiver, timeout: timeout, now: time.Now}
}

// Outcome describes one run for the HTTP trigger.
type Outcome struct {
	Message      string `json:"message"`
	ReportID     uint   `json:"report_id,omitempty"`
	WeekStart    string `json:"week_start,omitempty"`
	EntriesCount int    `json:"entries_count"`
}

// Run generates and delivers the report for the week ending now. Any failure
// after the entries are known is also reported to the owner.
func (s *Service) Run(ctx context.Context) (*Outcome, error) {
	now := s.now().UTC()
	since := now.Add(-window)

	entries, err := s.store.EntriesSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("fetch entries: %w", err)
	}
	if len(entries) == 0 {
		s.notify(ctx, emptyNotice)
		logger.Info("📭 Weekly review skipped: no entries")
		return &Outcome{Message: "No entries to review"}, nil
	}

	out, err := s.generate(ctx, entries, since, now)
	if err != nil {
		logger.Error("weekly review failed", err)
		s.notify(ctx, failureNotice)
		return nil, err
	}
	return out, nil
}

func (s *Service) generate(ctx context.Context, entries []model.Entry, since, now time.Time) (*Outcome, error) {
	checkins, err := s.store.CheckinsSince(ctx, since)
	if err != nil {
		logger.Warnf("⚠️ Weekly review without check-ins: %v", err)
	}
	prompt, err := buildPrompt(entries, analytics.Summarize(entries, checkins, since, now))
	if err != nil {
		return nil, err
	}

	text, err := s.gen.GenerateWithin(ctx, s.timeout, narrative.ReviewSystemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate review: %w", err)
	}
	parsed, err := Parse(text)
	if err != nil {
		return nil, err
	}

	report := &model.Report{
		WeekStart: WeekStart(now),
		Summary:   string(parsed.Summary),
		Patterns:  string(parsed.Patterns),
		Strategy:  string(parsed.Strategy),
		DropList:  string(parsed.DropList),
	}
	if err := s.store.UpsertReport(ctx, report); err != nil {
		return nil, fmt.Errorf("save report: %w", err)
	}

	msg := Render(report, len(entries))
	if err := s.archiver.PutReport(ctx, report.WeekStart, msg); err != nil {
		logger.Warnf("⚠️ Weekly report not archived: %v", err)
	}
	s.notify(ctx, msg)
	logger.Infow("weekly review generated", "week_start", report.WeekStart, "entries", len(entries))

	return &Outcome{
		Message:      "Weekly review generated",
		ReportID:     report.ID,
		WeekStart:    report.WeekStart,
		EntriesCount: len(entries),
	}, nil
}

func (s *Service) notify(ctx context.Context, text string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, text); err != nil {
		logger.Warnf("⚠️ Owner notification failed: %v", err)
	}
}

// WeekStart returns the Monday of t's UTC week as YYYY-MM-DD.
func WeekStart(t time.Time) string {
	t = t.UTC()
	offset := (int(t.Weekday()) + 6) % 7
	return t.AddDate(0, 0, -offset).Format("2006-01-02")
}

// text accepts either a JSON string or an array of strings joined by newlines.
type text string

func (t *text) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*t = text(s)
		return nil
	}
	var lines []string
	if err := json.Unmarshal(b, &lines); err != nil {
		return err
	}
	*t = text(strings.Join(lines, "\n"))
	return nil
}

type Review struct {
	Summary  text `json:"summary"`
	Patterns text `json:"patterns"`
	Strategy text `json:"strategy"`
	DropList text `json:"drop_list"`
}

// Parse extracts the review object from a model response.
func Parse(response string) (*Review, error) {
	raw, ok := narrative.ExtractJSON(response)
	if !ok {
		return nil, ErrNoJSON
	}
	var r Review
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return nil, fmt.Errorf("decode review: %w", err)
	}
	if r.Summary == "" {
		return nil, fmt.Errorf("decode review: summary is empty")
	}
	return &r, nil
}

// Render formats a report as the Markdown message sent to the owner.
func Render(r *model.Report, entries int) string {
	return fmt.Sprintf("📊 *Weekly Review* — Week of %s\n\n*Summary*\n%s\n\n*Patterns*\n%s\n\n*Strategy for Next Week*\n%s\n\n*Drop List*\n%s\n\nLogged entries: %d",
		r.WeekStart, r.Summary, r.Patterns, r.Strategy, r.DropList, entries)
}

type promptEntry struct {
	Type    model.Category `json:"type"`
	Content string         `json:"content"`
	Date    time.Time      `json:"date"`
}

func buildPrompt(entries []model.Entry, stats *analytics.Summary) (string, error) {
	items := make([]promptEntry, 0, len(entries))
	for _, e := range entries {
		items = append(items, promptEntry{Type: e.Category, Content: e.Content, Date: e.CreatedAt})
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal entries: %w", err)
	}

	var b strings.Builder
	b.WriteString(`Provide:

1. Summary: What this fool actually accomplished (or failed to accomplish) this week. State facts with thinly veiled disgust. 2-3 sentences.

2. Patterns: The repeated stupidity you observe. Predictable failures, cowardice patterns, self-sabotage. Bullet points.

3. Strategy: 3 commands for next week. Not suggestions, orders. Specific and executable. Number them.

4. Drop List: Behaviors to cease immediately. Bullet points, ruthless.

`)
	b.WriteString(stats.GenerateReportSummary())
	b.WriteString("\nEntries from this week:\n")
	b.Write(data)
	b.WriteString(`

Respond in this exact JSON format:
{
  "summary": "Your contemptuous summary here",
  "patterns": "• Pattern 1\n• Pattern 2\n• Pattern 3",
  "strategy": "1. First command\n2. Second command\n3. Third command",
  "drop_list": "• Cease this immediately\n• Stop this foolishness"
}`)
	return b.String(), nil
}
