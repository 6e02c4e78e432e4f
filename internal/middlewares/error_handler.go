package middlewares

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/khanghh/blogapi/params"
)

type errorInfo struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	APIVersion string    `json:"apiVersion"`
	Error      errorInfo `json:"error"`
}

// ErrorHandler renders every error returned by a handler as a JSON error
// envelope. Details of server errors are logged, never returned.
func ErrorHandler(ctx *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := ""
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		message = e.Message
	}
	if code >= fiber.StatusInternalServerError {
		slog.Error("Unhandled error", "method", ctx.Method(), "path", ctx.Path(), "code", code, "error", err)
		message = utils.StatusMessage(code)
	}
	if message == "" {
		message = utils.StatusMessage(code)
	}
	return ctx.Status(code).JSON(errorResponse{
		APIVersion: params.APIVersion,
		Error: errorInfo{
			Code:    code,
			Message: message,
		},
	})
}
