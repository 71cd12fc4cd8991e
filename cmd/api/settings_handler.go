package api

import (
	"net/http"
	"time"

	waitingdto "waiting-backend/internal/waiting/dto"
	"waiting-backend/internal/waiting/usecase"

	"github.com/gin-gonic/gin"
)

// IntervalSetter exposes the auto-refresh period
type IntervalSetter interface {
	Interval() time.Duration
	SetInterval(d time.Duration)
}

// SettingsHandler serves runtime-configurable waiting settings
type SettingsHandler struct {
	waitingUsecase usecase.WaitingUsecase
	refresher      IntervalSetter
}

func NewSettingsHandler(waitingUsecase usecase.WaitingUsecase, refresher IntervalSetter) *SettingsHandler {
	return &SettingsHandler{waitingUsecase: waitingUsecase, refresher: refresher}
}

func (h *SettingsHandler) current() waitingdto.WaitingSettings {
	return waitingdto.WaitingSettings{
		SLATargets:            h.waitingUsecase.SLATargets(),
		AutoRefreshIntervalMs: h.refresher.Interval().Milliseconds(),
	}
}

// GetWaitingSettings returns SLA targets and the auto-refresh interval
// GET /api/settings/waiting
func (h *SettingsHandler) GetWaitingSettings(c *gin.Context) {
	c.JSON(http.StatusOK, h.current())
}

// UpdateWaitingSettings replaces the settings present in the body
// PUT /api/settings/waiting
func (h *SettingsHandler) UpdateWaitingSettings(c *gin.Context) {
	var req waitingdto.UpdateWaitingSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.SLATargets != nil {
		h.waitingUsecase.SetSLATargets(*req.SLATargets)
	}
	if req.AutoRefreshIntervalMs != nil {
		h.refresher.SetInterval(time.Duration(*req.AutoRefreshIntervalMs) * time.Millisecond)
	}

	c.JSON(http.StatusOK, h.current())
}
