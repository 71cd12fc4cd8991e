package delivery

import (
	"net/http"

	waitingdto "waiting-backend/internal/waiting/dto"
	"waiting-backend/internal/waiting/repository"

	"github.com/gin-gonic/gin"
)

// DeviceHandler registers push notification tokens for the caller
type DeviceHandler struct {
	tokens repository.DeviceTokenRepository
}

func NewDeviceHandler(tokens repository.DeviceTokenRepository) *DeviceHandler {
	return &DeviceHandler{tokens: tokens}
}

// POST /api/devices
func (h *DeviceHandler) Register(c *gin.Context) {
	var req waitingdto.RegisterDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString("userID")
	if err := h.tokens.SaveToken(c.Request.Context(), userID, req.Token, req.DeviceInfo); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "device registered"})
}

// DELETE /api/devices/:token
func (h *DeviceHandler) Unregister(c *gin.Context) {
	if err := h.tokens.DeleteToken(c.Request.Context(), c.Param("token")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "device unregistered"})
}
