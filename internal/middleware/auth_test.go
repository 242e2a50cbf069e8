package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localnerve/stepio/internal/models"
	"github.com/localnerve/stepio/internal/services"
	"github.com/localnerve/stepio/internal/utils"
)

const testSecret = "test-secret"

var carla = models.Session{UserID: "user-1", DisplayName: "Carla", Email: "carla@example.com"}

func fakeCookie(cookie string, roles []string) (models.Session, error) {
	if cookie != "good" {
		return models.Session{}, errors.New("expired")
	}
	if len(roles) != 1 || roles[0] != "user" {
		return models.Session{}, errors.New("wrong roles")
	}
	return carla, nil
}

func authApp(cfg AuthConfig) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: utils.ErrorHandler})
	app.Get("/me", Auth(cfg), func(c *fiber.Ctx) error {
		session, ok := SessionFrom(c)
		if !ok {
			return fiber.ErrInternalServerError
		}
		return c.JSON(session)
	})
	return app
}

func TestAuthBearerToken(t *testing.T) {
	app := authApp(AuthConfig{JWTSecret: testSecret, Roles: []string{"user"}, ErrorType: "auth"})

	token, err := services.IssueToken(testSecret, carla, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	for name, header := range map[string]string{
		"bad token":  "Bearer nope",
		"not bearer": "Basic dXNlcjpwYXNz",
	} {
		req := httptest.NewRequest("GET", "/me", nil)
		req.Header.Set("Authorization", header)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode, name)
	}

	// no cookie validator configured
	resp, err = app.Test(httptest.NewRequest("GET", "/me", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestAuthCookieSession(t *testing.T) {
	app := authApp(AuthConfig{Cookie: fakeCookie, Roles: []string{"user"}, ErrorType: "auth"})

	req := httptest.NewRequest("GET", "/me", nil)
	req.AddCookie(&http.Cookie{Name: "cookie_session", Value: "good"})
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	req = httptest.NewRequest("GET", "/me", nil)
	req.AddCookie(&http.Cookie{Name: "cookie_session", Value: "stale"})
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/me", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	// a bearer header is ignored when tokens are disabled
	req = httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer whatever")
	req.AddCookie(&http.Cookie{Name: "cookie_session", Value: "good"})
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
