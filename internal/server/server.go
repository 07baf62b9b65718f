// Package server exposes the webhook, the read API and the job triggers over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"ledger-bot/internal/charts"
	"ledger-bot/internal/events"
	"ledger-bot/internal/logger"
	"ledger-bot/internal/model"
	"ledger-bot/internal/patterns"
	"ledger-bot/internal/review"
	"ledger-bot/internal/storage"
)

type UpdateHandler interface {
	HandleUpdate(ctx context.Context, update tgbotapi.Update)
}

type EntryStore interface {
	InsertEntry(ctx context.Context, e *model.Entry) error
	ListEntries(ctx context.Context, f storage.EntryFilter) ([]model.Entry, error)
	LatestReports(ctx context.Context, limit int) ([]model.Report, error)
}

type Reviewer interface {
	Run(ctx context.Context) (*review.Outcome, error)
}

type PatternDetector interface {
	Run(ctx context.Context) ([]patterns.Alert, error)
}

type Charts interface {
	GenerateAll(ctx context.Context, period string, types ...charts.Type) *charts.Batch
	Get(ctx context.Context, chartType, period string) (charts.Payload, error)
}

type Deps struct {
	Updates   UpdateHandler
	Store     EntryStore
	Publisher events.Publisher
	Review    Reviewer
	Patterns  PatternDetector
	Charts    Charts

	WebhookSecret string
	CronSecret    string
}

type handlers struct {
	Deps
	now func() time.Time
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(d Deps) *gin.Engine {
	if d.Publisher == nil {
		d.Publisher = events.Nop{}
	}
	h := &handlers{Deps: d, now: time.Now}

	r := gin.New()
	r.Use(RequestLogger(), gin.Recovery())

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.POST("/telegram/webhook", h.webhook)

	api := r.Group("/api")
	{
		api.POST("/entries", h.createEntry)
		api.GET("/entries", h.listEntries)
		api.GET("/reports", h.listReports)
		api.GET("/chart-data", h.chartData)

		jobs := api.Group("/", CronAuth(d.CronSecret))
		jobs.POST("/weekly-review", h.weeklyReview)
		jobs.GET("/weekly-review", h.weeklyReview)
		jobs.POST("/pattern-detection", h.patternDetection)
		jobs.POST("/chart-data/generate", h.generateCharts)
		jobs.GET("/chart-data/generate", h.generateCharts)
	}
	return r
}

type Server struct {
	srv *http.Server
}

func New(addr string, handler http.Handler) *Server {
	return &Server{srv: &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}}
}

// Start blocks until the server stops. A normal shutdown returns nil.
func (s *Server) Start() error {
	logger.Infof("🌐 HTTP server listening on %s", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
