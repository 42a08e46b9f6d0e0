package serverutils

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string {
	return e.Message
}

func NewNotFoundError(message string) error {
	return &NotFoundError{Message: message}
}

// ErrorHandlerMiddleware turns errors returned by controllers into the
// response envelope.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}
		code, message := statusFor(err)
		return ctx.Status(code).JSON(ErrorResponse(code, message))
	}
}

func statusFor(err error) (int, string) {
	var fiberErr *fiber.Error
	var notFound *NotFoundError
	var invalid *ValidationError

	switch {
	case errors.As(err, &fiberErr):
		return fiberErr.Code, fiberErr.Message
	case errors.As(err, &notFound):
		return fiber.StatusNotFound, notFound.Message
	case errors.As(err, &invalid):
		return fiber.StatusBadRequest, invalid.Error()
	}
	return fiber.StatusInternalServerError, err.Error()
}
