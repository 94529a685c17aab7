package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"fastpay-ledger/internal/domain/errs"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type Handler struct {
	now func() time.Time
}

func NewHandler() *Handler { return &Handler{now: time.Now} }

func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status": "ok",
		"time":   h.now().UTC().Format(time.RFC3339Nano),
	})
}

// statusFor maps an error kind to its HTTP status, a stable code and the
// message shown to the caller.
func statusFor(err error) (int, string, string) {
	switch {
	case errors.Is(err, errs.ErrValidation):
		return http.StatusBadRequest, "validation_failed", err.Error()
	case errors.Is(err, errs.ErrInsufficientFunds):
		return http.StatusConflict, "insufficient_funds", err.Error()
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound, "not_found", err.Error()
	case errors.Is(err, errs.ErrPolicyLimit):
		return http.StatusConflict, "policy_limit", err.Error()
	case errors.Is(err, errs.ErrConflict):
		return http.StatusConflict, "conflict", err.Error() + "; reload and try again"
	case errors.Is(err, errs.ErrPersistence):
		return http.StatusServiceUnavailable, "storage_unavailable", "storage is unavailable, nothing was changed; retry later"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, "timeout", "request did not complete, nothing was changed; retry later"
	}
	return http.StatusInternalServerError, "internal", "internal error"
}

func writeError(c echo.Context, log *zap.Logger, err error) error {
	status, code, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed",
			zap.String("method", c.Request().Method),
			zap.String("path", c.Path()),
			zap.Error(err))
	}
	return c.JSON(status, ErrorResponse{Error: msg, Code: code})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg, Code: "validation_failed"})
}

func invalidBody(c echo.Context, err error) error {
	return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
		Error:   "validation failed",
		Code:    "validation_failed",
		Details: ToFieldErrors(err),
	})
}
