package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"workingonit/backend/internal/model"
	"workingonit/backend/internal/service"
)

type ActivityHandler struct {
	trackerService *service.TrackerService
}

type createActivityRequest struct {
	Name      string `json:"name"`
	Sphere    string `json:"sphere"`
	Color     string `json:"color"`
	ProjectID string `json:"projectId"`
}

type suggestRequest struct {
	Name string `json:"name"`
}

func NewActivityHandler(trackerService *service.TrackerService) *ActivityHandler {
	return &ActivityHandler{trackerService: trackerService}
}

func (h *ActivityHandler) Spheres(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"spheres": model.Catalog()})
}

func (h *ActivityHandler) List(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	activities, apiErr := h.trackerService.ListActivities(c.Request.Context(), userID)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"activities": activities})
}

func (h *ActivityHandler) Create(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req createActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalidJSON(c)
		return
	}

	created, apiErr := h.trackerService.CreateActivity(c.Request.Context(), userID, service.CreateActivityInput{
		Name:      req.Name,
		Sphere:    req.Sphere,
		Color:     req.Color,
		ProjectID: req.ProjectID,
	})
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *ActivityHandler) Delete(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	if apiErr := h.trackerService.DeleteActivity(c.Request.Context(), userID, c.Param("id")); apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.Status(http.StatusNoContent)
}

// Suggest classifies a partially typed activity name without creating it.
func (h *ActivityHandler) Suggest(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		return
	}
	var req suggestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalidJSON(c)
		return
	}
	c.JSON(http.StatusOK, h.trackerService.SuggestSphere(c.Request.Context(), req.Name))
}
