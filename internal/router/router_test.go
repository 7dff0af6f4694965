package router_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/vasiprashanti/techlearn-api/internal/config"
	"github.com/vasiprashanti/techlearn-api/internal/handler"
	"github.com/vasiprashanti/techlearn-api/internal/middleware"
	"github.com/vasiprashanti/techlearn-api/internal/models"
	"github.com/vasiprashanti/techlearn-api/internal/observability"
	"github.com/vasiprashanti/techlearn-api/internal/repository"
	"github.com/vasiprashanti/techlearn-api/internal/router"
	"github.com/vasiprashanti/techlearn-api/internal/service"
)

const staffSecret = "staff-secret"

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Round{}, &models.Submission{}))

	logger := zerolog.New(io.Discard)
	validate := validator.New()
	rounds := service.NewRoundService(repository.NewRoundRepository(db), repository.NewResultStore(db), validate, logger, service.RoundConfig{})

	app := fiber.New()
	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, config.Config{AppName: "techlearn-test"}, router.Dependencies{
		RoundHandler:   handler.NewRoundHandler(rounds, validate, logger),
		JWTMiddleware:  middleware.JWTProtected(staffSecret),
		MetricsHandler: observability.MetricsHandler(),
		DB:             db,
	})
	return app
}

func staffToken(t *testing.T, role string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "staff-1",
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(staffSecret))
	require.NoError(t, err)
	return token
}

func TestAdminRoutesRequireStaffRole(t *testing.T) {
	app := newTestApp(t)

	cases := []struct {
		name   string
		token  string
		status int
	}{
		{name: "anonymous", status: fiber.StatusUnauthorized},
		{name: "examinee role", token: staffToken(t, "student"), status: fiber.StatusForbidden},
		{name: "teacher role", token: staffToken(t, "teacher"), status: fiber.StatusOK},
		{name: "admin role", token: staffToken(t, "admin"), status: fiber.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/rounds", nil)
			if tc.token != "" {
				req.Header.Set("Authorization", "Bearer "+tc.token)
			}
			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)
		})
	}
}

func TestHealthAndMetricsRoutes(t *testing.T) {
	app := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/health", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "techlearn-test", resp.Header.Get("X-Application"))
	require.NotEmpty(t, resp.Header.Get("X-Correlation-ID"))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "techlearn_http_requests_total")
}
