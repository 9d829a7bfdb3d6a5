package types

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "github.com/killallgit/podcast-dl/pkg/errors"
)

// Handler utility functions to reduce duplication across handlers

// ParseUintParam extracts and parses a URL parameter as uint
// Returns the parsed value and sends error response if parsing fails
func ParseUintParam(c *gin.Context, paramName string) (uint, bool) {
	paramStr := c.Param(paramName)
	value, err := strconv.ParseUint(paramStr, 10, 32)
	if err != nil || value == 0 {
		SendError(c, apperrors.New(apperrors.ErrCodeInvalidInput, "Invalid "+paramName).
			WithDetail(paramName, paramStr))
		return 0, false
	}
	return uint(value), true
}

// ParseLimitQuery reads a positive "limit" query value, falling back to def
func ParseLimitQuery(c *gin.Context, def, maximum int) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return def, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		SendError(c, apperrors.New(apperrors.ErrCodeInvalidInput, "limit must be a positive integer").
			WithDetail("limit", raw))
		return 0, false
	}
	return min(limit, maximum), true
}

// SendError writes err using the HTTP status of its error code
func SendError(c *gin.Context, err error) {
	var details map[string]any
	message := err.Error()
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		details = appErr.Details
		message = appErr.Message
	}
	c.JSON(apperrors.GetHTTPCode(err), ErrorResponse{
		Status:  StatusError,
		Code:    string(apperrors.GetCode(err)),
		Error:   message,
		Details: details,
	})
}

// SendSuccess sends a standardized success response with data
func SendSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}
