package tests

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/wahelp/mailing-engine/app/handlers"
	"github.com/wahelp/mailing-engine/app/router"
	"github.com/wahelp/mailing-engine/config"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestApp builds the full route table without any backing flows;
// routing-level responses never reach a handler.
func newTestApp() *fiber.App {
	cfg := &config.ProductionConfig{
		Server: config.ServerConfig{
			BodyLimit:    4 * 1024 * 1024,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
		},
		Security: config.SecurityConfig{
			AllowedOrigins:  []string{"*"},
			AllowedMethods:  []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:  []string{"Origin", "Content-Type", "Accept"},
			GlobalRateLimit: 1000,
			ImportRateLimit: 1000,
			RateLimitWindow: time.Minute,
		},
	}

	r := router.NewFiberRouter(cfg, handlers.NewMailingHandler(nil), handlers.NewImportHandler(nil))
	r.SetupRoutes()
	return r.GetApp()
}

type envelopeBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   struct {
		Code string `json:"code"`
	} `json:"error"`
}

func TestRouting(t *testing.T) {
	app := newTestApp()

	t.Run("UnknownPathReturns404Envelope", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/nonexistent", nil)
		resp, err := app.Test(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

		var body envelopeBody
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.False(t, body.Success)
		assert.Equal(t, "NOT_FOUND", body.Error.Code)
	})

	t.Run("WrongMethodOnKnownRouteReturns405", func(t *testing.T) {
		// /api/v1/users/import is registered for POST only
		req := httptest.NewRequest("GET", "/api/v1/users/import", nil)
		resp, err := app.Test(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, fiber.StatusMethodNotAllowed, resp.StatusCode)

		var body envelopeBody
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.False(t, body.Success)
		assert.Equal(t, "METHOD_NOT_ALLOWED", body.Error.Code)
	})

	t.Run("HealthRouteIsServed", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/health", nil)
		resp, err := app.Test(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})
}
