package delivery

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"

	"waiting-backend/internal/waiting/domain"
	waitingdto "waiting-backend/internal/waiting/dto"
	"waiting-backend/internal/waiting/usecase"

	"github.com/gin-gonic/gin"
)

// Refresher refreshes the snapshot on demand
type Refresher interface {
	RefreshNow(ctx context.Context) (*domain.GroupedWaitingData, error)
}

type WaitingHandler struct {
	waitingUsecase usecase.WaitingUsecase
	refresher      Refresher
	trendDays      int
}

func NewWaitingHandler(waitingUsecase usecase.WaitingUsecase, refresher Refresher) *WaitingHandler {
	return &WaitingHandler{
		waitingUsecase: waitingUsecase,
		refresher:      refresher,
	}
}

// SetTrendDays sets the window used when /trend has no days parameter
func (h *WaitingHandler) SetTrendDays(days int) {
	h.trendDays = days
}

// RegisterRoutes mounts the handler under an already-authenticated group
func (h *WaitingHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.GetWaiting)
	rg.GET("/snapshot", h.GetSnapshot)
	rg.GET("/trend", h.GetTrend)
	rg.GET("/search", h.Search)
	rg.GET("/conversations/:id/urgency", h.ExplainUrgency)
	rg.POST("/conversations/:id/dismiss", h.Dismiss)
	rg.POST("/conversations/:id/snooze", h.Snooze)
	rg.POST("/conversations/:id/unsnooze", h.Unsnooze)
	rg.POST("/cache/invalidate", h.InvalidateCache)
	rg.POST("/refresh", h.Refresh)
}

// GetWaiting runs a live aggregation with the query's filter
// GET /api/waiting
func (h *WaitingHandler) GetWaiting(c *gin.Context) {
	var q waitingdto.WaitingQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	filter, err := q.ToFilter(h.waitingUsecase.DefaultFilter())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	data, err := h.waitingUsecase.GetWaitingData(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, data)
}

// GET /api/waiting/snapshot
func (h *WaitingHandler) GetSnapshot(c *gin.Context) {
	data, refreshedAt, ok := h.waitingUsecase.Snapshot()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no refresh has completed yet"})
		return
	}
	c.JSON(http.StatusOK, waitingdto.SnapshotResponse{Data: data, RefreshedAt: refreshedAt})
}

// GET /api/waiting/trend?days=N
func (h *WaitingHandler) GetTrend(c *gin.Context) {
	days := h.trendDays
	if daysStr := c.Query("days"); daysStr != "" {
		if parsed, err := strconv.Atoi(daysStr); err == nil && parsed > 0 {
			days = parsed
		}
	}
	c.JSON(http.StatusOK, h.waitingUsecase.Trend(c.Request.Context(), days))
}

// GET /api/waiting/search?q=&limit=
func (h *WaitingHandler) Search(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter 'q' is required"})
		return
	}
	limit := 20
	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = min(parsed, 100)
		}
	}

	results := h.waitingUsecase.Search(query, limit)
	c.JSON(http.StatusOK, waitingdto.SearchResponse{Query: query, Results: results, Total: len(results)})
}

// GET /api/waiting/conversations/:id/urgency
func (h *WaitingHandler) ExplainUrgency(c *gin.Context) {
	explanation, err := h.waitingUsecase.ExplainUrgency(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, explanation)
}

// POST /api/waiting/conversations/:id/dismiss
func (h *WaitingHandler) Dismiss(c *gin.Context) {
	item, err := h.waitingUsecase.Dismiss(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// POST /api/waiting/conversations/:id/snooze
func (h *WaitingHandler) Snooze(c *gin.Context) {
	var req waitingdto.SnoozeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	item, err := h.waitingUsecase.Snooze(c.Request.Context(), c.Param("id"), req.Until, req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// POST /api/waiting/conversations/:id/unsnooze
func (h *WaitingHandler) Unsnooze(c *gin.Context) {
	if err := h.waitingUsecase.Unsnooze(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "conversation unsnoozed"})
}

// POST /api/waiting/cache/invalidate
func (h *WaitingHandler) InvalidateCache(c *gin.Context) {
	h.waitingUsecase.InvalidateCaches()
	c.JSON(http.StatusOK, gin.H{"message": "caches invalidated"})
}

// POST /api/waiting/refresh
func (h *WaitingHandler) Refresh(c *gin.Context) {
	data, err := h.refresher.RefreshNow(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, data)
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, usecase.ErrConversationNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, usecase.ErrInvalidSnooze):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, usecase.ErrCurrentUserUnavailable):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		log.Printf("[WaitingHandler] %s %s failed: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
