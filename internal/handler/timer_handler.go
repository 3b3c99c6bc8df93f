package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "workingonit/backend/internal/errors"
	"workingonit/backend/internal/service"
)

type TimerHandler struct {
	trackerService *service.TrackerService
}

type startTimerRequest struct {
	ActivityID string `json:"activityId"`
}

type rateRequest struct {
	Feeling int    `json:"feeling"`
	Note    string `json:"note"`
}

func NewTimerHandler(trackerService *service.TrackerService) *TimerHandler {
	return &TimerHandler{trackerService: trackerService}
}

func (h *TimerHandler) Get(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	view, apiErr := h.trackerService.GetTimer(c.Request.Context(), userID)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *TimerHandler) Start(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req startTimerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalidJSON(c)
		return
	}

	view, apiErr := h.trackerService.StartTimer(c.Request.Context(), userID, req.ActivityID)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *TimerHandler) Pause(c *gin.Context) {
	h.command(c, h.trackerService.PauseTimer)
}

func (h *TimerHandler) Resume(c *gin.Context) {
	h.command(c, h.trackerService.ResumeTimer)
}

func (h *TimerHandler) Stop(c *gin.Context) {
	h.command(c, h.trackerService.StopTimer)
}

func (h *TimerHandler) KeepWorking(c *gin.Context) {
	h.command(c, h.trackerService.KeepWorking)
}

func (h *TimerHandler) Discard(c *gin.Context) {
	h.command(c, h.trackerService.DiscardTimer)
}

func (h *TimerHandler) Rate(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req rateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalidJSON(c)
		return
	}

	result, apiErr := h.trackerService.RateSession(c.Request.Context(), userID, req.Feeling, req.Note)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// Stream pushes a "tick" event with the current snapshot on every change and
// every second while the timer runs.
func (h *TimerHandler) Stream(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	view, apiErr := h.trackerService.GetTimer(ctx, userID)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	updates, cancel, apiErr := h.trackerService.SubscribeTimer(ctx, userID)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	defer cancel()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent("tick", view.Timer)
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case snap, open := <-updates:
			if !open {
				return false
			}
			c.SSEvent("tick", snap)
			return true
		}
	})
}

type timerCommand func(ctx context.Context, userID string) (*service.TimerView, *apperrors.APIError)

func (h *TimerHandler) command(c *gin.Context, run timerCommand) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	view, apiErr := run(c.Request.Context(), userID)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, view)
}
