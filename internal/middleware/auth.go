package middleware

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/localnerve/stepio/internal/config"
	"github.com/localnerve/stepio/internal/models"
	"github.com/localnerve/stepio/internal/services"
	"github.com/localnerve/stepio/internal/types"
)

const (
	sessionCookie = "cookie_session"
	sessionKey    = "session"
)

// CookieValidator checks an authorizer session cookie for roles.
type CookieValidator func(cookie string, roles []string) (models.Session, error)

// AuthConfig selects which credentials a request may present. A nil Cookie
// disables cookie sessions and an empty JWTSecret disables bearer tokens.
type AuthConfig struct {
	Cookie    CookieValidator
	JWTSecret string
	Roles     []string
	ErrorType string
}

// AuthUser validates that the request carries a user session, either an
// authorizer cookie or a bearer token.
func AuthUser(cookieEnabled bool, jwtSecret string) fiber.Handler {
	cfg := AuthConfig{
		JWTSecret: jwtSecret,
		Roles:     []string{"user"},
		ErrorType: "stepio.authorization.user",
	}
	if cookieEnabled {
		cfg.Cookie = services.ValidateSession
	}
	return Auth(cfg)
}

// Auth performs the authorization check and stores the session in context
func Auth(cfg AuthConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		session, err := authenticate(c, cfg)
		if err != nil {
			return err
		}
		c.Locals(sessionKey, session)
		return c.Next()
	}
}

func authenticate(c *fiber.Ctx, cfg AuthConfig) (models.Session, error) {
	if header := c.Get(fiber.HeaderAuthorization); header != "" && cfg.JWTSecret != "" {
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			return models.Session{}, types.NewError(fiber.StatusUnauthorized, cfg.ErrorType, "Authorization header must be a bearer token")
		}
		session, err := services.ParseToken(cfg.JWTSecret, strings.TrimSpace(token))
		if err != nil {
			return models.Session{}, types.NewError(fiber.StatusUnauthorized, cfg.ErrorType, "Invalid token: %v", err)
		}
		return session, nil
	}

	if cfg.Cookie == nil {
		return models.Session{}, &types.CustomError{
			Code:    fiber.StatusUnauthorized,
			Message: "Bearer token required",
			Type:    cfg.ErrorType,
		}
	}

	// Get session cookie
	cookie := c.Cookies(sessionCookie)
	if cookie == "" {
		return models.Session{}, &types.CustomError{
			Code:    fiber.StatusForbidden,
			Message: fmt.Sprintf("Authorizer cookie %q not found", sessionCookie),
			Type:    cfg.ErrorType,
		}
	}

	session, err := cfg.Cookie(cookie, cfg.Roles)
	if err != nil {
		return models.Session{}, &types.CustomError{
			Code:    fiber.StatusForbidden,
			Message: fmt.Sprintf("Invalid session: %v", err),
			Type:    cfg.ErrorType,
		}
	}
	return session, nil
}

// SessionFrom returns the session stored by Auth.
func SessionFrom(c *fiber.Ctx) (models.Session, bool) {
	session, ok := c.Locals(sessionKey).(models.Session)
	return session, ok
}

// InitAuthorizer creates the authorizer client on the first request, using
// the request's protocol and host for the redirect URL.
func InitAuthorizer(cfg *config.Config, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !services.IsAuthorizerInitialized() {
			if err := services.InitAuthorizer(cfg, logger, c.Protocol(), c.Hostname()); err != nil {
				logger.Error("authorizer initialization failed", zap.Error(err))
				return types.NewError(fiber.StatusServiceUnavailable, "stepio.authorization", "Authorizer unavailable")
			}
		}
		return c.Next()
	}
}
