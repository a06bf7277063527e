package auth

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUUIDParam(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Get("/cases/:id", func(c *fiber.Ctx) error {
		id, err := ParseUUIDParam(c, "id")
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"id": id.String()})
	})

	// A garbage path id is the caller's fault, never a server error.
	resp, err := app.Test(httptest.NewRequest("GET", "/cases/not-a-uuid", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var body struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "BAD_REQUEST", body.Code)
	assert.Equal(t, "invalid id", body.Message)

	id := uuid.NewString()
	resp, err = app.Test(httptest.NewRequest("GET", "/cases/"+id, nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
