package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger-bot/internal/charts"
	"ledger-bot/internal/events"
	"ledger-bot/internal/model"
	"ledger-bot/internal/patterns"
	"ledger-bot/internal/review"
	"ledger-bot/internal/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeUpdates struct {
	mu  sync.Mutex
	got []tgbotapi.Update
}

func (f *fakeUpdates) HandleUpdate(_ context.Context, u tgbotapi.Update) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, u)
}

type fakeReview struct {
	out *review.Outcome
	err error
	n   int
}

func (f *fakeReview) Run(context.Context) (*review.Outcome, error) {
	f.n++
	return f.out, f.err
}

type fakePatterns struct {
	alerts []patterns.Alert
	err    error
}

func (f *fakePatterns) Run(context.Context) ([]patterns.Alert, error) { return f.alerts, f.err }

type fakeCharts struct {
	period string
	types  []charts.Type
	get    charts.Payload
	getErr error
}

func (f *fakeCharts) GenerateAll(_ context.Context, period string, types ...charts.Type) *charts.Batch {
	f.period, f.types = period, types
	return &charts.Batch{Results: map[charts.Type]charts.Payload{charts.EntryVolume: {"data": []any{}}}, Succeeded: 1}
}

func (f *fakeCharts) Get(_ context.Context, chartType, period string) (charts.Payload, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	p := charts.Payload{"type": chartType, "period": period}
	for k, v := range f.get {
		p[k] = v
	}
	return p, nil
}

type fakePublisher struct{ evs []events.EntryCreated }

func (p *fakePublisher) PublishEntryCreated(_ context.Context, ev events.EntryCreated) error {
	p.evs = append(p.evs, ev)
	return nil
}

type fixture struct {
	router  *gin.Engine
	store   *storage.Store
	updates *fakeUpdates
	review  *fakeReview
	pats    *fakePatterns
	charts  *fakeCharts
	pub     *fakePublisher
}

func newFixture(t *testing.T, webhookSecret, cronSecret string) *fixture {
	t.Helper()
	store, err := storage.Open("sqlite", filepath.Join(t.TempDir(), "server.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	f := &fixture{
		store:   store,
		updates: &fakeUpdates{},
		review:  &fakeReview{out: &review.Outcome{Message: "Weekly review generated", EntriesCount: 3}},
		pats:    &fakePatterns{},
		charts:  &fakeCharts{},
		pub:     &fakePublisher{},
	}
	f.router = NewRouter(Deps{
		Updates:       f.updates,
		Store:         store,
		Publisher:     f.pub,
		Review:        f.review,
		Patterns:      f.pats,
		Charts:        f.charts,
		WebhookSecret: webhookSecret,
		CronSecret:    cronSecret,
	})
	return f
}

func (f *fixture) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestWebhook(t *testing.T) {
	f := newFixture(t, "s3cret", "")
	update := `{"update_id": 77, "message": {"message_id": 1, "date": 0, "from": {"id": 5, "is_bot": false, "first_name": "A"}, "chat": {"id": 5, "type": "private"}, "text": "w: shipped"}}`

	w := f.do(http.MethodPost, "/telegram/webhook", update, map[string]string{secretHeader: "s3cret"})
	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, f.updates.got, 1)
	assert.Equal(t, 77, f.updates.got[0].UpdateID)
	assert.Equal(t, "w: shipped", f.updates.got[0].Message.Text)

	w = f.do(http.MethodPost, "/telegram/webhook", "{garbage", map[string]string{secretHeader: "s3cret"})
	assert.Equal(t, http.StatusOK, w.Code, "undecodable updates are still acknowledged")
	assert.Len(t, f.updates.got, 1)

	w = f.do(http.MethodPost, "/telegram/webhook", update, map[string]string{secretHeader: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Len(t, f.updates.got, 1)
}

func TestEntries(t *testing.T) {
	f := newFixture(t, "", "")

	w := f.do(http.MethodPost, "/api/entries", `{"type":"win","content":"closed the deal"}`, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[model.Entry](t, w)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, model.CategoryWin, created.Category)
	require.Len(t, f.pub.evs, 1)
	assert.Equal(t, created.ID, f.pub.evs[0].EntryID)

	w = f.do(http.MethodPost, "/api/entries", `{"type":"money","content":"coffee"}`, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	for _, bad := range []string{`{"type":"nope","content":"x"}`, `{"type":"win"}`, `{"type":"win","content":"` + strings.Repeat("x", model.MaxContentLength+1) + `"}`, `not json`} {
		w = f.do(http.MethodPost, "/api/entries", bad, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, bad[:min(len(bad), 40)])
	}

	w = f.do(http.MethodGet, "/api/entries", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]model.Entry](t, w), 2)

	w = f.do(http.MethodGet, "/api/entries?type=money", "", nil)
	list := decode[[]model.Entry](t, w)
	require.Len(t, list, 1)
	assert.Equal(t, "coffee", list[0].Content)

	w = f.do(http.MethodGet, "/api/entries?limit=1", "", nil)
	assert.Len(t, decode[[]model.Entry](t, w), 1)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/entries?limit=abc", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/entries?type=bogus", "", nil).Code)
}

func TestReports(t *testing.T) {
	f := newFixture(t, "", "")
	ctx := context.Background()
	for _, ws := range []string{"2026-04-27", "2026-05-04"} {
		require.NoError(t, f.store.UpsertReport(ctx, &model.Report{WeekStart: ws, Summary: "s " + ws}))
	}

	w := f.do(http.MethodGet, "/api/reports", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	reports := decode[[]model.Report](t, w)
	require.Len(t, reports, 2)
	assert.Equal(t, "2026-05-04", reports[0].WeekStart)

	w = f.do(http.MethodGet, "/api/reports?limit=1", "", nil)
	assert.Len(t, decode[[]model.Report](t, w), 1)
}

func TestCronRoutesRequireSecret(t *testing.T) {
	f := newFixture(t, "", "cron-key")
	auth := map[string]string{"Authorization": "Bearer cron-key"}

	routes := []struct{ method, path string }{
		{http.MethodPost, "/api/weekly-review"},
		{http.MethodGet, "/api/weekly-review"},
		{http.MethodPost, "/api/pattern-detection"},
		{http.MethodPost, "/api/chart-data/generate"},
		{http.MethodGet, "/api/chart-data/generate"},
	}
	for _, r := range routes {
		assert.Equal(t, http.StatusUnauthorized, f.do(r.method, r.path, "", nil).Code, r.path)
		assert.Equal(t, http.StatusUnauthorized, f.do(r.method, r.path, "", map[string]string{"Authorization": "Bearer nope"}).Code, r.path)
		assert.Equal(t, http.StatusOK, f.do(r.method, r.path, "", auth).Code, r.path)
	}
	assert.Equal(t, 2, f.review.n)
}

func TestWeeklyReview(t *testing.T) {
	f := newFixture(t, "", "")
	w := f.do(http.MethodPost, "/api/weekly-review", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	out := decode[review.Outcome](t, w)
	assert.Equal(t, 3, out.EntriesCount)

	f.review.err = errors.New("llm down")
	w = f.do(http.MethodPost, "/api/weekly-review", "", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestPatternDetection(t *testing.T) {
	f := newFixture(t, "", "")
	f.pats.alerts = []patterns.Alert{{Category: model.CategoryWin, Message: "x"}}
	w := f.do(http.MethodPost, "/api/pattern-detection", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]any](t, w)
	assert.Equal(t, true, body["success"])
	assert.EqualValues(t, 1, body["alerts"])

	f.pats.err = errors.New("db down")
	assert.Equal(t, http.StatusInternalServerError, f.do(http.MethodPost, "/api/pattern-detection", "", nil).Code)
}

func TestGenerateCharts(t *testing.T) {
	f := newFixture(t, "", "")

	w := f.do(http.MethodPost, "/api/chart-data/generate", "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode[map[string]any](t, w)
	assert.Equal(t, "Generated 1 charts successfully", body["message"])
	assert.Contains(t, body, "results")
	assert.Equal(t, charts.DefaultPeriod, f.charts.period)
	assert.Empty(t, f.charts.types)

	w = f.do(http.MethodPost, "/api/chart-data/generate", `{"period":"monthly","types":["win_problem_ratio"]}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "monthly", f.charts.period)
	assert.Equal(t, []charts.Type{charts.WinProblemRatio}, f.charts.types)

	w = f.do(http.MethodPost, "/api/chart-data/generate", `{"types":["nope"]}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodGet, "/api/chart-data/generate", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body = decode[map[string]any](t, w)
	assert.Contains(t, body, "timestamp")
	assert.NotContains(t, body, "results")
}

func TestChartData(t *testing.T) {
	f := newFixture(t, "", "")

	w := f.do(http.MethodGet, "/api/chart-data", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Chart type required", decode[map[string]any](t, w)["error"])

	f.charts.get = charts.Payload{"cached": false, "message": "No cached data available"}
	w = f.do(http.MethodGet, "/api/chart-data?type=entry_volume", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]any](t, w)
	assert.Equal(t, "entry_volume", body["type"])
	assert.Equal(t, "weekly", body["period"])
	assert.Equal(t, false, body["cached"])

	f.charts.getErr = errors.New("redis down")
	w = f.do(http.MethodGet, "/api/chart-data?type=entry_volume&period=monthly", "", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Failed to load chart data", decode[map[string]any](t, w)["message"])
}

func TestServerStartShutdown(t *testing.T) {
	s := New("127.0.0.1:0", http.NewServeMux())
	done := make(chan error, 1)
	go func() { done <- s.Start() }()
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
	assert.NoError(t, <-done)
}
