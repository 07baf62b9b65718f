// Package dispatcher decides what to do with each inbound chat message:
// run a command, continue a check-in, log an entry, or hand the text to the
// narrative generator. Every handled message produces exactly one reply.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"ledger-bot/internal/checkin"
	"ledger-bot/internal/classifier"
	"ledger-bot/internal/events"
	"ledger-bot/internal/lock"
	"ledger-bot/internal/logger"
	"ledger-bot/internal/model"
	"ledger-bot/internal/storage"
	"ledger-bot/internal/transcript"
)

// Store is the persistence the dispatcher needs.
type Store interface {
	GetState(ctx context.Context, correspondentID int64) (model.ConversationState, error)
	SaveState(ctx context.Context, st model.ConversationState) (int64, error)
	CompleteCheckin(ctx context.Context, st model.ConversationState, c *model.Checkin) (int64, error)
	InsertEntry(ctx context.Context, e *model.Entry) error
	MarkProcessed(ctx context.Context, updateID int64) (bool, error)
}

// Narrator produces free-form replies.
type Narrator interface {
	Respond(ctx context.Context, text string) string
	Comment(ctx context.Context, category model.Category, content string) (string, error)
}

// Sender delivers a reply to a correspondent.
type Sender interface {
	Send(ctx context.Context, correspondentID int64, text string) error
}

type Route string

const (
	RouteIgnored   Route = "ignored"
	RouteDuplicate Route = "duplicate"
	RouteCommand   Route = "command"
	RouteCheckin   Route = "checkin"
	RouteEntry     Route = "entry"
	RouteNarrative Route = "narrative"
	RouteFailure   Route = "failure"
)

// Inbound is one message from a correspondent. UpdateID is the transport's
// delivery id; zero disables duplicate detection.
type Inbound struct {
	CorrespondentID int64
	UpdateID        int64
	Text            string
}

type Result struct {
	Route Route
	Reply string
	Sent  bool
}

type Options struct {
	Locker      lock.Locker
	Publisher   events.Publisher
	Recorder    transcript.Recorder
	Commentary  bool
	MaxAttempts int
	LockTimeout time.Duration
}

type Dispatcher struct {
	store    Store
	narrator Narrator
	sender   Sender

	locker      lock.Locker
	publisher   events.Publisher
	recorder    transcript.Recorder
	commentary  bool
	maxAttempts int
	lockTimeout time.Duration
	now         func() time.Time
}

func New(store Store, narrator Narrator, sender Sender, opts Options) *Dispatcher {
	d := &Dispatcher{
		store:       store,
		narrator:    narrator,
		sender:      sender,
		locker:      opts.Locker,
		publisher:   opts.Publisher,
		recorder:    opts.Recorder,
		commentary:  opts.Commentary,
		maxAttempts: opts.MaxAttempts,
		lockTimeout: opts.LockTimeout,
		now:         time.Now,
	}
	if d.locker == nil {
		d.locker = lock.Nop{}
	}
	if d.publisher == nil {
		d.publisher = events.Nop{}
	}
	if d.recorder == nil {
		d.recorder = transcript.Nop{}
	}
	if d.maxAttempts <= 0 {
		d.maxAttempts = 3
	}
	if d.lockTimeout <= 0 {
		d.lockTimeout = 5 * time.Second
	}
	return d
}

// Handle processes one message. It never panics and never returns an error:
// failures are reported to the correspondent instead.
func (d *Dispatcher) Handle(ctx context.Context, in Inbound) (res Result) {
	if strings.TrimSpace(in.Text) == "" {
		return Result{Route: RouteIgnored}
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("❌ Panic while handling message from %d: %v", in.CorrespondentID, r)
			if !res.Sent {
				res = d.replyAfterPanic(ctx, in)
			}
		}
	}()

	if in.UpdateID != 0 {
		first, err := d.store.MarkProcessed(ctx, in.UpdateID)
		if err != nil {
			logger.Warnf("⚠️ Could not record update %d, processing anyway: %v", in.UpdateID, err)
		} else if !first {
			logger.Infof("🔁 Duplicate delivery of update %d dropped", in.UpdateID)
			return Result{Route: RouteDuplicate}
		}
	}

	route, reply := d.route(ctx, in)
	return d.reply(ctx, in, route, reply)
}

func (d *Dispatcher) reply(ctx context.Context, in Inbound, route Route, text string) Result {
	res := Result{Route: route, Reply: text}
	if err := d.sender.Send(ctx, in.CorrespondentID, text); err != nil {
		logger.Errorf("❌ Failed to send reply to %d: %v", in.CorrespondentID, err)
	} else {
		res.Sent = true
	}
	rec := transcript.Record{
		Timestamp:       d.now().UTC(),
		CorrespondentID: in.CorrespondentID,
		UpdateID:        in.UpdateID,
		Text:            in.Text,
		Route:           string(route),
		Reply:           text,
	}
	if err := d.recorder.Append(rec); err != nil {
		logger.Warnf("⚠️ Transcript append failed: %v", err)
	}
	return res
}

func (d *Dispatcher) replyAfterPanic(ctx context.Context, in Inbound) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("❌ Failure reply to %d also panicked: %v", in.CorrespondentID, r)
			res = Result{Route: RouteFailure, Reply: replyInternalError}
		}
	}()
	return d.reply(ctx, in, RouteFailure, replyInternalError)
}

func (d *Dispatcher) route(ctx context.Context, in Inbound) (Route, string) {
	lockCtx, cancel := context.WithTimeout(ctx, d.lockTimeout)
	release, err := d.locker.Acquire(lockCtx, strconv.FormatInt(in.CorrespondentID, 10))
	cancel()
	if err != nil {
		// The version check still serializes writers.
		logger.Warnw("⚠️ lock not acquired", "correspondent", in.CorrespondentID, "error", err)
	}
	// The lock guards the cursor only. Entries and model calls run without it.
	unlock := sync.OnceFunc(release)
	defer unlock()

	cmd := command(in.Text)
	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		st, err := d.loadState(ctx, in.CorrespondentID)
		if err != nil {
			logger.Error("failed to load conversation state", err)
			return RouteFailure, replyStateFailed
		}

		var out checkin.Outcome
		switch {
		case cmd == cmdCheckin && !st.InProgress():
			out = checkin.Start(st)
		case cmd == cmdCancel:
			out = checkin.Cancel(st)
		case st.InProgress():
			out = checkin.Advance(st, in.Text)
		default:
			unlock()
			return d.routeIdle(ctx, in, cmd)
		}

		err = d.apply(ctx, in.CorrespondentID, out)
		if errors.Is(err, storage.ErrStateConflict) {
			logger.Infof("🔁 State of %d changed concurrently, retrying (%d/%d)", in.CorrespondentID, attempt, d.maxAttempts)
			continue
		}
		if err != nil {
			logger.Error("failed to save conversation state", err)
			return RouteFailure, replyStateFailed
		}
		return RouteCheckin, out.Reply
	}
	return RouteFailure, replyStateFailed
}

func (d *Dispatcher) loadState(ctx context.Context, id int64) (checkin.State, error) {
	m, err := d.store.GetState(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return checkin.Idle(id), nil
	}
	if err != nil {
		return checkin.State{}, err
	}
	st, err := checkin.FromModel(m)
	if err != nil {
		logger.Warnf("⚠️ Resetting unreadable state of %d: %v", id, err)
		return checkin.State{CorrespondentID: id, Step: checkin.StepIdle, Version: m.Version}, nil
	}
	return st, nil
}

// apply persists a transition. The reply is sent only after this returns nil.
func (d *Dispatcher) apply(ctx context.Context, id int64, out checkin.Outcome) error {
	if !out.Changed {
		return nil
	}
	now := d.now()
	m, err := out.Next.ToModel(now)
	if err != nil {
		return err
	}
	if out.Completed != nil {
		_, err = d.store.CompleteCheckin(ctx, m, out.Completed.ToCheckin(id, now))
		if err == nil {
			logger.Infow("check-in completed", "correspondent", id, "energy", out.Completed.Energy)
		}
		return err
	}
	_, err = d.store.SaveState(ctx, m)
	return err
}

func (d *Dispatcher) routeIdle(ctx context.Context, in Inbound, cmd string) (Route, string) {
	switch cmd {
	case cmdHelp, cmdStart:
		return RouteCommand, HelpText()
	case "":
	default:
		return RouteCommand, fmt.Sprintf(replyUnknownCommand, cmd)
	}

	if LooksLikeEntry(in.Text) {
		return d.logEntry(ctx, in)
	}
	if d.narrator == nil {
		return RouteNarrative, replyNoNarrator
	}
	return RouteNarrative, d.narrator.Respond(ctx, in.Text)
}

func (d *Dispatcher) logEntry(ctx context.Context, in Inbound) (Route, string) {
	res := classifier.Classify(in.Text)
	e := &model.Entry{Category: res.Category, Content: res.Content, Metadata: res.Metadata}

	if err := d.store.InsertEntry(ctx, e); err != nil {
		switch {
		case errors.Is(err, model.ErrEmptyContent):
			return RouteFailure, fmt.Sprintf(replyEmptyEntry, res.Category)
		case errors.Is(err, model.ErrContentTooLong):
			return RouteFailure, fmt.Sprintf(replyTooLong, model.MaxContentLength)
		default:
			logger.Error("failed to save entry", err)
			return RouteFailure, replySaveFailed
		}
	}
	logger.Infow("entry logged", "correspondent", in.CorrespondentID, "category", e.Category, "id", e.ID)

	ev := events.EntryCreated{Type: events.TypeEntryCreated, EntryID: e.ID, Category: string(e.Category), CreatedAt: e.CreatedAt}
	if err := d.publisher.PublishEntryCreated(ctx, ev); err != nil {
		logger.Warnf("⚠️ Entry event not published: %v", err)
	}

	ack := fmt.Sprintf("✅ Logged %s %s: %s", categoryEmoji(e.Category), e.Category, truncate(e.Content, ackContentLimit))
	if d.commentary && d.narrator != nil {
		if c, err := d.narrator.Comment(ctx, e.Category, e.Content); err == nil {
			ack += "\n\n" + c
		} else {
			logger.Warnf("⚠️ Entry commentary skipped: %v", err)
		}
	}
	return RouteEntry, ack
}

// LooksLikeEntry reports whether text has a colon with a non-blank prefix
// before the first one.
func LooksLikeEntry(text string) bool {
	i := strings.Index(text, ":")
	return i >= 0 && strings.TrimSpace(text[:i]) != ""
}

const (
	cmdCheckin = "checkin"
	cmdCancel  = "cancel"
	cmdHelp    = "help"
	cmdStart   = "start"
)

// command returns the lower-cased command name when the whole message is a
// single bot command such as "/checkin" or "/CheckIn@ledger_bot". Text with a
// colon is never a command.
func command(text string) string {
	t := strings.TrimSpace(text)
	if !strings.HasPrefix(t, "/") || strings.ContainsAny(t, " \t\n:") || len(t) == 1 {
		return ""
	}
	name := t[1:]
	if i := strings.Index(name, "@"); i >= 0 {
		name = name[:i]
	}
	return strings.ToLower(name)
}

const ackContentLimit = 80

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
