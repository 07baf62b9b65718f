package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"ledger-bot/internal/charts"
	"ledger-bot/internal/events"
	"ledger-bot/internal/logger"
	"ledger-bot/internal/model"
	"ledger-bot/internal/storage"
)

const (
	secretHeader      = "X-Telegram-Bot-Api-Secret-Token"
	defaultEntryLimit = 50
	maxEntryLimit     = 500
	defaultReportLim  = 20
)

// webhook answers 200 for every delivery it can attribute to Telegram, even
// when the update is unreadable, so Telegram never redelivers it.
func (h *handlers) webhook(c *gin.Context) {
	if h.WebhookSecret != "" && c.GetHeader(secretHeader) != h.WebhookSecret {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		logger.Warnf("⚠️ Webhook body unreadable: %v", err)
		c.Status(http.StatusOK)
		return
	}
	var update tgbotapi.Update
	if err := json.Unmarshal(body, &update); err != nil {
		logger.Warnf("⚠️ Webhook update undecodable: %v", err)
		c.Status(http.StatusOK)
		return
	}
	if h.Updates != nil {
		// Telegram may hang up first; the reply still goes out.
		h.Updates.HandleUpdate(context.WithoutCancel(c.Request.Context()), update)
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type createEntryRequest struct {
	Type    string `json:"type" binding:"required"`
	Content string `json:"content" binding:"required"`
}

func (h *handlers) createEntry(c *gin.Context) {
	var req createEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "details": err.Error()})
		return
	}
	cat, err := model.ParseCategory(req.Type)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "details": err.Error()})
		return
	}

	e := &model.Entry{Category: cat, Content: req.Content}
	if err := h.Store.InsertEntry(c.Request.Context(), e); err != nil {
		if errors.Is(err, model.ErrEmptyContent) || errors.Is(err, model.ErrContentTooLong) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "details": err.Error()})
			return
		}
		logger.Error("failed to save entry", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save entry"})
		return
	}

	ev := events.EntryCreated{Type: events.TypeEntryCreated, EntryID: e.ID, Category: string(e.Category), CreatedAt: e.CreatedAt}
	if err := h.Publisher.PublishEntryCreated(c.Request.Context(), ev); err != nil {
		logger.Warnf("⚠️ Entry event not published: %v", err)
	}
	c.JSON(http.StatusCreated, e)
}

func (h *handlers) listEntries(c *gin.Context) {
	limit, ok := queryLimit(c, defaultEntryLimit)
	if !ok {
		return
	}
	f := storage.EntryFilter{Limit: limit}
	if t := c.Query("type"); t != "" {
		cat, err := model.ParseCategory(t)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		f.Category = cat
	}
	entries, err := h.Store.ListEntries(c.Request.Context(), f)
	if err != nil {
		logger.Error("failed to fetch entries", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch entries"})
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (h *handlers) listReports(c *gin.Context) {
	limit, ok := queryLimit(c, defaultReportLim)
	if !ok {
		return
	}
	reports, err := h.Store.LatestReports(c.Request.Context(), limit)
	if err != nil {
		logger.Error("failed to fetch reports", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch reports"})
		return
	}
	c.JSON(http.StatusOK, reports)
}

func queryLimit(c *gin.Context, def int) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return 0, false
	}
	if n > maxEntryLimit {
		n = maxEntryLimit
	}
	return n, true
}

func (h *handlers) weeklyReview(c *gin.Context) {
	out, err := h.Review.Run(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *handlers) patternDetection(c *gin.Context) {
	alerts, err := h.Patterns.Run(c.Request.Context())
	if err != nil {
		logger.Error("pattern detection failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "alerts": len(alerts)})
}

type generateRequest struct {
	Period string   `json:"period"`
	Types  []string `json:"types"`
}

func (h *handlers) generateCharts(c *gin.Context) {
	var req generateRequest
	if c.Request.Method == http.MethodPost && c.Request.ContentLength != 0 {
		// A missing or empty body means the defaults.
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request body", "error": err.Error()})
			return
		}
	}
	if req.Period == "" {
		req.Period = charts.DefaultPeriod
	}
	types, err := charts.ParseTypes(req.Types)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Failed to generate charts", "error": err.Error()})
		return
	}

	logger.Infof("📈 Starting chart generation for period: %s", req.Period)
	batch := h.Charts.GenerateAll(c.Request.Context(), req.Period, types...)

	resp := gin.H{"success": true, "message": batch.Message()}
	if c.Request.Method == http.MethodPost {
		resp["results"] = batch.Results
	} else {
		resp["timestamp"] = h.now().UTC().Format(time.RFC3339)
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handlers) chartData(c *gin.Context) {
	chartType := c.Query("type")
	if chartType == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Chart type required"})
		return
	}
	period := c.DefaultQuery("period", charts.DefaultPeriod)

	p, err := h.Charts.Get(c.Request.Context(), chartType, period)
	if err != nil {
		logger.Error("chart data fetch failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"data": []any{}, "insights": []any{}, "message": "Failed to load chart data"})
		return
	}
	c.JSON(http.StatusOK, p)
}
