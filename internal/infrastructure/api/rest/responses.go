// Package rest exposes the HTTP API: channel webhooks and flow authoring.
package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/abhishekagnith/xpulse-agentflow-service/pkg/models"
)

// APIError is the JSON error envelope returned by every endpoint.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
}

// NewAPIError creates an APIError.
func NewAPIError(code, message string, status int) *APIError {
	return &APIError{Code: code, Message: message, Status: status}
}

// Common API errors.
var (
	ErrMissingParameter = NewAPIError("MISSING_PARAMETER", "required parameter is missing", http.StatusBadRequest)
	ErrMissingUserID    = NewAPIError("MISSING_USER_ID", "x-user-id header is required", http.StatusUnauthorized)
	ErrInvalidPayload   = NewAPIError("INVALID_PAYLOAD", "request body is invalid", http.StatusBadRequest)
)

// TranslateError maps domain errors to APIErrors.
func TranslateError(err error) *APIError {
	switch {
	case errors.Is(err, models.ErrFlowNotFound),
		errors.Is(err, models.ErrNodeNotFound),
		errors.Is(err, models.ErrUserNotFound):
		return NewAPIError("NOT_FOUND", err.Error(), http.StatusNotFound)
	case errors.Is(err, models.ErrNotFlowOwner):
		return NewAPIError("FORBIDDEN", err.Error(), http.StatusForbidden)
	case errors.Is(err, models.ErrInvalidStatusTransition),
		errors.Is(err, models.ErrFlowNotEditable):
		return NewAPIError("INVALID_REQUEST", err.Error(), http.StatusBadRequest)
	}

	var validationErr *models.ValidationError
	if errors.As(err, &validationErr) {
		return NewAPIError("VALIDATION_ERROR", validationErr.Error(), http.StatusBadRequest)
	}

	return NewAPIError("INTERNAL_ERROR", "internal server error", http.StatusInternalServerError)
}

func respondJSON(c *gin.Context, status int, payload any) {
	c.JSON(status, payload)
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

func respondAPIError(c *gin.Context, apiErr *APIError) {
	c.JSON(apiErr.Status, apiErr)
}

// bindJSON binds the request body and responds with a 400 on failure. Returns
// a non-nil error when the caller should stop.
func bindJSON(c *gin.Context, target any) error {
	if err := c.ShouldBindJSON(target); err != nil {
		respondAPIError(c, NewAPIError("INVALID_PAYLOAD", err.Error(), http.StatusBadRequest))
		return err
	}
	return nil
}
