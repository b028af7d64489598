package api

import (
	"errors"
	"fmt"
	"net/http"

	"AlphaPulse/internal/analysis"
	"AlphaPulse/internal/app"
	"AlphaPulse/internal/model"

	"github.com/labstack/echo/v4"
)

// APIResponse is the envelope of every JSON response.
type APIResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// AppError represents application-level error with HTTP status.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

func NewAppError(code, field, message string, status int) *AppError {
	return &AppError{Code: code, Field: field, Message: message, Status: status}
}

// WithError wraps an underlying error.
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

// toAppError classifies domain errors.
func toAppError(err error) *AppError {
	var appErr *AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, model.ErrInvalidSymbol):
		return NewAppError("ERR_INVALID_SYMBOL", "symbol", "symbol is empty", http.StatusBadRequest).WithError(err)
	case errors.Is(err, analysis.ErrSuperseded):
		return NewAppError("ERR_SUPERSEDED", "", "superseded by a newer request", http.StatusConflict).WithError(err)
	case errors.Is(err, app.ErrNoCurrentSymbol):
		return NewAppError("ERR_NO_CURRENT_SYMBOL", "", "no analysed symbol in this session", http.StatusConflict).WithError(err)
	case errors.Is(err, model.ErrStorage):
		return NewAppError("ERR_STORAGE", "", "watchlist storage failed", http.StatusInternalServerError).WithError(err)
	case errors.Is(err, model.ErrNoData):
		return NewAppError("ERR_NOT_FOUND", "symbol", model.ReasonNotFound, http.StatusNotFound).WithError(err)
	case errors.Is(err, model.ErrRenderFailure):
		return NewAppError("ERR_NO_CHART", "", "chart unavailable", http.StatusNotFound).WithError(err)
	case errors.Is(err, model.ErrProviderUnavailable):
		return NewAppError("ERR_UNAVAILABLE", "", model.ReasonUnavailable, http.StatusServiceUnavailable).WithError(err)
	}
	return NewAppError("ERR_INTERNAL", "", "Something went wrong", http.StatusInternalServerError).WithError(err)
}

// DataResponse writes an envelope with statusCode.
func DataResponse(c echo.Context, statusCode int, data any) error {
	return c.JSON(statusCode, APIResponse{
		Status:  statusCode,
		Message: http.StatusText(statusCode),
		Data:    data,
	})
}

func SuccessResponse(c echo.Context, data any) error {
	return DataResponse(c, http.StatusOK, data)
}

func BadRequestResponse(c echo.Context, data any) error {
	return DataResponse(c, http.StatusBadRequest, data)
}

// AppErrorResponse writes err as a classified application error.
func AppErrorResponse(c echo.Context, err error) error {
	appErr := toAppError(err)
	return DataResponse(c, appErr.Status, []*AppError{appErr})
}
