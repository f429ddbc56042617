package serverutils

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/yesahmedyes/lecture-assistant/pkg/pipeline"
)

// ErrorHandlerMiddleware converts errors bubbled out of handlers into the
// standard failure envelope. Domain sentinels get their own status codes so
// callers can distinguish a bad request from a stale checkpoint.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		status := fiber.StatusInternalServerError
		switch {
		case errors.Is(err, pipeline.ErrInvalidParameters):
			status = fiber.StatusBadRequest
		case errors.Is(err, pipeline.ErrSessionNotFound):
			status = fiber.StatusNotFound
		case errors.Is(err, pipeline.ErrNoPendingCheckpoint):
			status = fiber.StatusConflict
		case errors.Is(err, pipeline.ErrCheckpointMismatch):
			status = fiber.StatusConflict
		case errors.Is(err, pipeline.ErrNotReady):
			status = fiber.StatusConflict
		default:
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			}
		}

		return ctx.Status(status).JSON(FailureResponse(err.Error()))
	}
}
