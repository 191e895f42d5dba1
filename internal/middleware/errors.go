package middleware

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"muscleai_backend/pkg/apperror"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success bool          `json:"success"`
	Error   string        `json:"error"`
	Code    apperror.Kind `json:"code"`
}

// ErrorHandler renders errors returned by handlers as an ErrorResponse.
// Messages of unknown errors never reach the client.
func ErrorHandler(log *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(ErrorResponse{Error: fe.Message, Code: kindForStatus(fe.Code)})
		}

		kind := apperror.KindOf(err)
		status := apperror.HTTPStatus(kind)
		if status >= fiber.StatusInternalServerError {
			log.Error("request failed",
				"method", c.Method(),
				"path", c.Path(),
				"request_id", c.Locals("requestid"),
				"error", err,
			)
		}
		return c.Status(status).JSON(ErrorResponse{Error: apperror.MessageOf(err), Code: kind})
	}
}

func kindForStatus(status int) apperror.Kind {
	switch status {
	case fiber.StatusBadRequest, fiber.StatusUnprocessableEntity, fiber.StatusRequestEntityTooLarge:
		return apperror.KindValidation
	case fiber.StatusNotFound, fiber.StatusMethodNotAllowed:
		return apperror.KindNotFound
	case fiber.StatusUnauthorized, fiber.StatusForbidden:
		return apperror.KindUnauthorized
	default:
		return apperror.KindUnknown
	}
}
