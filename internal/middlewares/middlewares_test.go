package middlewares

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/khanghh/tokenauth/internal/auth"
	"github.com/khanghh/tokenauth/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubVerifier struct{}

func (stubVerifier) VerifyAccessToken(ctx context.Context, token string) (*model.User, error) {
	switch token {
	case "good":
		return &model.User{ID: 1, Email: "user@example.com"}, nil
	case "stale":
		return nil, auth.ErrTokenExpired
	case "broken":
		return nil, errors.New("database is down")
	default:
		return nil, auth.ErrTokenInvalid
	}
}

func newTestApp() *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Get("/me", RequireAccessToken(stubVerifier{}), func(ctx *fiber.Ctx) error {
		return ctx.SendString(GetUser(ctx).Email)
	})
	return app
}

func TestRequireAccessToken(t *testing.T) {
	app := newTestApp()

	tests := []struct {
		name   string
		header string
		cookie string
		status int
	}{
		{"bearer", "Bearer good", "", fiber.StatusOK},
		{"lowercase scheme", "bearer good", "", fiber.StatusOK},
		{"cookie", "", "good", fiber.StatusOK},
		{"missing", "", "", fiber.StatusUnauthorized},
		{"invalid", "Bearer nope", "", fiber.StatusUnauthorized},
		{"expired", "Bearer stale", "", fiber.StatusUnauthorized},
		{"basic scheme", "Basic good", "", fiber.StatusUnauthorized},
		{"storage fault", "Bearer broken", "", fiber.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(fiber.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set(fiber.HeaderAuthorization, tc.header)
			}
			if tc.cookie != "" {
				req.Header.Set(fiber.HeaderCookie, "access_token="+tc.cookie)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tc.status, resp.StatusCode)
			if tc.status == fiber.StatusUnauthorized {
				assert.Contains(t, resp.Header.Get(fiber.HeaderWWWAuthenticate), "Bearer")
			}
		})
	}
}

func TestErrorHandler_JSON(t *testing.T) {
	app := newTestApp()
	req := httptest.NewRequest(fiber.MethodGet, "/me", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer broken")
	resp, err := app.Test(req)
	require.NoError(t, err)

	var body errorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, fiber.StatusInternalServerError, body.Error.Code)
	assert.NotContains(t, body.Error.Message, "database")
}

func TestErrorHandler_HTML(t *testing.T) {
	app := newTestApp()
	req := httptest.NewRequest(fiber.MethodGet, "/missing", nil)
	req.Header.Set(fiber.HeaderAccept, "text/html,application/xhtml+xml,*/*;q=0.8")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentType), "text/html")
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "404")
}

func TestRequestTimeout(t *testing.T) {
	app := fiber.New()
	app.Use(RequestTimeout(50 * time.Millisecond))
	app.Get("/", func(ctx *fiber.Ctx) error {
		deadline, ok := ctx.UserContext().Deadline()
		if !ok {
			return ctx.SendStatus(fiber.StatusInternalServerError)
		}
		if time.Until(deadline) > 50*time.Millisecond {
			return ctx.SendStatus(fiber.StatusInternalServerError)
		}
		return ctx.SendStatus(fiber.StatusOK)
	})
	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
