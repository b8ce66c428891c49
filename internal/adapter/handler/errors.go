package handler

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Thelmatee/Egoblox-microloan-lending/internal/core/domain"
)

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindInvalidState:
		return http.StatusConflict
	case domain.KindInvalidAmount, domain.KindInvalidTransfer, domain.KindInvalidArgument:
		return http.StatusBadRequest
	case domain.KindInsufficientFunds:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// ErrorHandler renders every error returned by a handler as
// {"error", "code"}. Errors without a kind are logged and hidden.
func ErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message, "code": "http_error"})
		}

		kind := domain.KindOf(err)
		status := StatusFor(kind)
		if status == http.StatusInternalServerError {
			log.Error("request failed",
				zap.Error(err),
				zap.String("method", c.Method()),
				zap.String("path", c.Path()))
			return c.Status(status).JSON(fiber.Map{"error": "internal server error", "code": "internal"})
		}

		message := err.Error()
		var de *domain.Error
		if errors.As(err, &de) && de.Message != "" {
			message = de.Message
		}
		return c.Status(status).JSON(fiber.Map{"error": message, "code": string(kind)})
	}
}
