package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"workingonit/backend/internal/service"
)

type ProjectHandler struct {
	trackerService *service.TrackerService
}

type createProjectRequest struct {
	Name    string   `json:"name"`
	Spheres []string `json:"spheres"`
	Color   string   `json:"color"`
}

func NewProjectHandler(trackerService *service.TrackerService) *ProjectHandler {
	return &ProjectHandler{trackerService: trackerService}
}

func (h *ProjectHandler) List(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	projects, apiErr := h.trackerService.ListProjects(c.Request.Context(), userID)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"projects": projects})
}

func (h *ProjectHandler) Create(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req createProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalidJSON(c)
		return
	}

	project, apiErr := h.trackerService.CreateProject(c.Request.Context(), userID, service.CreateProjectInput{
		Name:    req.Name,
		Spheres: req.Spheres,
		Color:   req.Color,
	})
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"project": project})
}

// Delete removes the project and every activity in it.
func (h *ProjectHandler) Delete(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	if apiErr := h.trackerService.DeleteProject(c.Request.Context(), userID, c.Param("id")); apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.Status(http.StatusNoContent)
}
