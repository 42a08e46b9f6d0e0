package serverutils

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type createRequest struct {
	Title string `json:"title" validate:"required"`
}

func TestErrorHandlerMiddleware(t *testing.T) {
	app := fiber.New()
	app.Use(ErrorHandlerMiddleware())
	app.Get("/missing", func(*fiber.Ctx) error { return fmt.Errorf("load: %w", NewNotFoundError("Session not found")) })
	app.Get("/invalid", func(*fiber.Ctx) error { return ValidateRequest(createRequest{}) })
	app.Get("/bad", func(*fiber.Ctx) error { return fiber.NewError(fiber.StatusBadRequest, "bad body") })
	app.Get("/boom", func(*fiber.Ctx) error { return errors.New("boom") })
	app.Get("/ok", func(ctx *fiber.Ctx) error { return ctx.JSON(SuccessResponse("ok", 1)) })

	tests := []struct {
		path    string
		code    int
		message string
	}{
		{"/missing", 404, "Session not found"},
		{"/invalid", 400, "validation failed: Title failed on required"},
		{"/bad", 400, "bad body"},
		{"/boom", 500, "boom"},
		{"/ok", 200, "ok"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest("GET", tt.path, nil))
			require.NoError(t, err)
			assert.Equal(t, tt.code, resp.StatusCode)

			var body BaseResponse[any]
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tt.code, body.Code)
			assert.Equal(t, tt.message, body.Message)
			assert.Equal(t, tt.code == 200, body.Success)
		})
	}
}
