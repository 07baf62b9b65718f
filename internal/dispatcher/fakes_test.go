package dispatcher

import (
	"context"
	"errors"
	"sync"

	"ledger-bot/internal/events"
	"ledger-bot/internal/model"
	"ledger-bot/internal/storage"
	"ledger-bot/internal/transcript"
)

// fakeStore is an in-memory Store with the same version semantics as the
// gorm store.
type fakeStore struct {
	mu        sync.Mutex
	states    map[int64]model.ConversationState
	entries   []model.Entry
	checkins  []model.Checkin
	processed map[int64]bool

	getErr, saveErr, insertErr, markErr error
	onGet                               func()
}

func newFakeStore() *fakeStore {
	return &fakeStore{states: map[int64]model.ConversationState{}, processed: map[int64]bool{}}
}

func (f *fakeStore) GetState(_ context.Context, id int64) (model.ConversationState, error) {
	if f.onGet != nil {
		f.onGet()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return model.ConversationState{}, f.getErr
	}
	st, ok := f.states[id]
	if !ok {
		return model.ConversationState{}, storage.ErrNotFound
	}
	return st, nil
}

func (f *fakeStore) casLocked(st model.ConversationState) (int64, error) {
	cur, ok := f.states[st.CorrespondentID]
	switch {
	case st.Version == 0 && ok:
		return 0, storage.ErrStateConflict
	case st.Version != 0 && (!ok || cur.Version != st.Version):
		return 0, storage.ErrStateConflict
	}
	st.Version++
	f.states[st.CorrespondentID] = st
	return st.Version, nil
}

func (f *fakeStore) SaveState(_ context.Context, st model.ConversationState) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return 0, f.saveErr
	}
	return f.casLocked(st)
}

func (f *fakeStore) CompleteCheckin(_ context.Context, st model.ConversationState, c *model.Checkin) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return 0, f.saveErr
	}
	v, err := f.casLocked(st)
	if err != nil {
		return 0, err
	}
	f.checkins = append(f.checkins, *c)
	return v, nil
}

func (f *fakeStore) InsertEntry(_ context.Context, e *model.Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	e.ID = "e-" + string(rune('a'+len(f.entries)))
	f.entries = append(f.entries, *e)
	return nil
}

func (f *fakeStore) MarkProcessed(_ context.Context, id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markErr != nil {
		return false, f.markErr
	}
	if f.processed[id] {
		return false, nil
	}
	f.processed[id] = true
	return true, nil
}

func (f *fakeStore) entryCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

type fakeSender struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (s *fakeSender) Send(_ context.Context, _ int64, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, text)
	return s.err
}

func (s *fakeSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func (s *fakeSender) last() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sent) == 0 {
		return ""
	}
	return s.sent[len(s.sent)-1]
}

type fakeNarrator struct {
	reply   string
	comment string
	err     error
	calls   int
	onCall  func()
}

func (n *fakeNarrator) Respond(context.Context, string) string {
	n.calls++
	if n.onCall != nil {
		n.onCall()
	}
	return n.reply
}

func (n *fakeNarrator) Comment(context.Context, model.Category, string) (string, error) {
	if n.onCall != nil {
		n.onCall()
	}
	return n.comment, n.err
}

type fakePublisher struct {
	mu  sync.Mutex
	evs []events.EntryCreated
	err error
}

func (p *fakePublisher) PublishEntryCreated(_ context.Context, ev events.EntryCreated) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.evs = append(p.evs, ev)
	return p.err
}

type fakeRecorder struct {
	mu   sync.Mutex
	recs []transcript.Record
}

func (r *fakeRecorder) Append(rec transcript.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recs = append(r.recs, rec)
	return nil
}

var errBoom = errors.New("boom")
