package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "workingonit/backend/internal/errors"
	"workingonit/backend/internal/service"
)

type SyncHandler struct {
	trackerService *service.TrackerService
}

type connectivityRequest struct {
	Online *bool `json:"online"`
}

func NewSyncHandler(trackerService *service.TrackerService) *SyncHandler {
	return &SyncHandler{trackerService: trackerService}
}

// Connectivity records a platform online/offline signal reported by the client.
func (h *SyncHandler) Connectivity(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req connectivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalidJSON(c)
		return
	}
	if req.Online == nil {
		writeError(c, apperrors.Validation("online is required", nil))
		return
	}

	result, apiErr := h.trackerService.SetConnectivity(c.Request.Context(), userID, *req.Online)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *SyncHandler) Status(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	status, apiErr := h.trackerService.SyncStatus(c.Request.Context(), userID)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *SyncHandler) Pull(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	result, apiErr := h.trackerService.Pull(c.Request.Context(), userID)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, result)
}
