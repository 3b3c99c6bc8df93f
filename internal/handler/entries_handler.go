package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "workingonit/backend/internal/errors"
	"workingonit/backend/internal/service"
)

type EntriesHandler struct {
	trackerService *service.TrackerService
}

func NewEntriesHandler(trackerService *service.TrackerService) *EntriesHandler {
	return &EntriesHandler{trackerService: trackerService}
}

func (h *EntriesHandler) Today(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	loc, ok := requestLocation(c)
	if !ok {
		return
	}
	entries, apiErr := h.trackerService.TodayEntries(c.Request.Context(), userID, loc)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (h *EntriesHandler) List(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(c, apperrors.BadRequest("invalid_limit", "limit must be a non-negative integer"))
			return
		}
		limit = parsed
	}

	entries, apiErr := h.trackerService.ListEntries(c.Request.Context(), userID)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (h *EntriesHandler) Analytics(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	loc, ok := requestLocation(c)
	if !ok {
		return
	}
	report, apiErr := h.trackerService.Analytics(c.Request.Context(), userID, loc)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *EntriesHandler) Export(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	data, apiErr := h.trackerService.Export(c.Request.Context(), userID)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="workingonit-export.json"`)
	c.JSON(http.StatusOK, data)
}

func (h *EntriesHandler) Clear(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	if apiErr := h.trackerService.ClearData(c.Request.Context(), userID); apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.Status(http.StatusNoContent)
}
