package handler

import (
	"net/http"
	"time"
	_ "time/tzdata"

	"github.com/gin-gonic/gin"

	apperrors "workingonit/backend/internal/errors"
	"workingonit/backend/internal/middleware"
)

func writeError(c *gin.Context, apiErr *apperrors.APIError) {
	if apiErr == nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":    "internal_error",
				"message": "internal server error",
			},
		})
		return
	}

	errorBody := gin.H{
		"code":    apiErr.Code,
		"message": apiErr.Message,
	}
	if apiErr.Details != nil {
		errorBody["details"] = apiErr.Details
	}

	c.JSON(apiErr.Status, gin.H{
		"error": errorBody,
	})
}

func writeInvalidJSON(c *gin.Context) {
	writeError(c, apperrors.BadRequest("invalid_json", "invalid request body"))
}

func currentUser(c *gin.Context) (string, bool) {
	userID := middleware.UserID(c)
	if userID == "" {
		writeError(c, apperrors.Unauthorized(""))
		return "", false
	}
	return userID, true
}

// requestLocation resolves the optional tz query parameter used for day and
// week boundaries. Missing means UTC.
func requestLocation(c *gin.Context) (*time.Location, bool) {
	name := c.Query("tz")
	if name == "" {
		return time.UTC, true
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		writeError(c, apperrors.BadRequest("invalid_timezone", "tz must be an IANA time zone name"))
		return nil, false
	}
	return loc, true
}
