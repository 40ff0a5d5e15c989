package transport

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/kursadbilgin/campaign-engine/internal/domain"
)

// Error kinds surfaced to API callers.
const (
	KindValidation          = "VALIDATION"
	KindNotFound            = "NOT_FOUND"
	KindConflict            = "CONFLICT"
	KindUnauthorized        = "UNAUTHORIZED"
	KindNotEntitled         = "NOT_ENTITLED"
	KindInsufficientCredits = "INSUFFICIENT_CREDITS"
	KindInternal            = "INTERNAL"
)

// Classify maps an error to its HTTP status and API error kind.
func Classify(err error) (status int, kind string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.StatusBadRequest, KindValidation
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound, KindNotFound
	case errors.Is(err, domain.ErrConflict):
		return fiber.StatusConflict, KindConflict
	case errors.Is(err, domain.ErrUnauthorized):
		return fiber.StatusForbidden, KindUnauthorized
	case errors.Is(err, domain.ErrNotEntitled):
		return fiber.StatusForbidden, KindNotEntitled
	case errors.Is(err, domain.ErrInsufficientCredits):
		return fiber.StatusPaymentRequired, KindInsufficientCredits
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		kind = KindInternal
		if fiberErr.Code >= 400 && fiberErr.Code < 500 {
			kind = KindValidation
		}
		return fiberErr.Code, kind
	}

	return fiber.StatusInternalServerError, KindInternal
}

// ErrorHandler renders every handler error as a structured
// {"error": {"kind", "message"}} body. Internal errors are logged with their
// cause but surfaced without it.
func ErrorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status, kind := Classify(err)

		message := err.Error()
		if status >= fiber.StatusInternalServerError {
			logger.Error("request error",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Int("status", status),
				zap.Error(err),
			)
			message = "internal error"
		}

		return c.Status(status).JSON(fiber.Map{
			"error": fiber.Map{
				"kind":    kind,
				"message": message,
			},
		})
	}
}
