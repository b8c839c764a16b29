package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"gowa-blast/internal/rows"
	"gowa-blast/internal/service"
)

// Standard response structure
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
}

type ErrorInfo struct {
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// Machine-readable error codes carried in ErrorInfo.Code.
const (
	CodeInvalidRequest      = "INVALID_REQUEST"
	CodeInvalidMode         = "INVALID_MODE"
	CodeMissingCredentials  = "MISSING_CREDENTIALS"
	CodeNotConnected        = "NOT_CONNECTED"
	CodeBlastInProgress     = "BLAST_IN_PROGRESS"
	CodeNoValidRows         = "NO_VALID_ROWS"
	CodeTemplateRequired    = "TEMPLATE_REQUIRED"
	CodeTemplateUnsupported = "TEMPLATE_UNSUPPORTED"
	CodeFileRequired        = "FILE_REQUIRED"
	CodeUnsupportedFormat   = "UNSUPPORTED_FORMAT"
	CodeParseFailed         = "PARSE_FAILED"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeInternal            = "INTERNAL_ERROR"
)

// Success response helper
func SuccessResponse(c echo.Context, statusCode int, message string, data interface{}) error {
	return c.JSON(statusCode, APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// Error response helper
func ErrorResponse(c echo.Context, statusCode int, message string, errorCode string, details string) error {
	response := APIResponse{
		Success: false,
		Message: message,
	}

	if errorCode != "" || details != "" {
		response.Error = &ErrorInfo{
			Code:    errorCode,
			Details: details,
		}
	}

	return c.JSON(statusCode, response)
}

// serviceError maps the service sentinels onto HTTP responses so every
// handler rejects the same condition the same way.
func serviceError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrNotConnected):
		return ErrorResponse(c, http.StatusBadRequest, "WhatsApp session is not connected", CodeNotConnected, err.Error())
	case errors.Is(err, service.ErrBusy):
		return ErrorResponse(c, http.StatusConflict, "A blast is already in progress", CodeBlastInProgress, err.Error())
	case errors.Is(err, service.ErrNoRows):
		return ErrorResponse(c, http.StatusBadRequest, "No valid recipient rows found", CodeNoValidRows, err.Error())
	case errors.Is(err, service.ErrNoTemplate):
		return ErrorResponse(c, http.StatusBadRequest, "Template name is required", CodeTemplateRequired, err.Error())
	case errors.Is(err, service.ErrTemplateUnsupported):
		return ErrorResponse(c, http.StatusBadRequest, "Template blasts require a Cloud API session", CodeTemplateUnsupported, err.Error())
	case errors.Is(err, service.ErrMissingCredentials):
		return ErrorResponse(c, http.StatusBadRequest, "Missing credentials", CodeMissingCredentials, err.Error())
	case errors.Is(err, service.ErrUnknownMode):
		return ErrorResponse(c, http.StatusBadRequest, "Unknown connect mode", CodeInvalidMode, err.Error())
	case errors.Is(err, rows.ErrUnsupportedFormat):
		return ErrorResponse(c, http.StatusBadRequest, "Unsupported file format", CodeUnsupportedFormat, err.Error())
	default:
		return ErrorResponse(c, http.StatusInternalServerError, "Request failed", CodeInternal, err.Error())
	}
}
