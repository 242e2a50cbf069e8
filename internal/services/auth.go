package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	authorizer "github.com/localnerve/authorizer-go"
	"go.uber.org/zap"

	"github.com/localnerve/stepio/internal/config"
	"github.com/localnerve/stepio/internal/models"
	"github.com/localnerve/stepio/internal/utils"
)

var (
	authClient *authorizer.AuthorizerClient
	authOnce   sync.Once
	authErr    error
)

// ErrInvalidToken is returned for bearer tokens that fail verification.
var ErrInvalidToken = errors.New("invalid token")

// IsAuthorizerInitialized returns true if the Authorizer client is initialized
func IsAuthorizerInitialized() bool {
	return authClient != nil
}

// InitAuthorizer initializes the Authorizer client once. The redirect URL is
// taken from the first request that needs it.
func InitAuthorizer(cfg *config.Config, logger *zap.Logger, requestProtocol, requestHost string) error {
	authOnce.Do(func() {
		if err := utils.PingAuthorizer(cfg.AuthzURL); err != nil {
			authErr = fmt.Errorf("authorizer ping failed: %w", err)
			return
		}

		redirectURL := fmt.Sprintf("%s://%s", requestProtocol, requestHost)
		logger.Info("initializing authorizer",
			zap.String("authorizer_url", cfg.AuthzURL),
			zap.String("client_id", cfg.AuthzClientID),
			zap.String("redirect_url", redirectURL))

		client, err := authorizer.NewAuthorizerClient(cfg.AuthzClientID, cfg.AuthzURL, redirectURL, nil)
		if err != nil {
			authErr = fmt.Errorf("failed to create authorizer client: %w", err)
			return
		}
		authClient = client
	})
	return authErr
}

// authorizerUser is the subset of the authorizer user profile a session needs.
type authorizerUser struct {
	ID         string  `json:"id"`
	Email      string  `json:"email"`
	GivenName  *string `json:"given_name"`
	FamilyName *string `json:"family_name"`
	Nickname   *string `json:"nickname"`
}

func (u authorizerUser) displayName() string {
	var parts []string
	for _, p := range []*string{u.GivenName, u.FamilyName} {
		if p != nil && *p != "" {
			parts = append(parts, *p)
		}
	}
	if len(parts) > 0 {
		return strings.Join(parts, " ")
	}
	if u.Nickname != nil {
		return *u.Nickname
	}
	return ""
}

// ValidateSession validates an authorizer session cookie for the given roles
func ValidateSession(cookie string, roles []string) (models.Session, error) {
	if authClient == nil {
		return models.Session{}, fmt.Errorf("authorizer client not initialized")
	}

	rolesPtrs := make([]*string, len(roles))
	for i := range roles {
		rolesPtrs[i] = &roles[i]
	}

	res, err := authClient.ValidateSession(&authorizer.ValidateSessionInput{
		Cookie: cookie,
		Roles:  rolesPtrs,
	})
	if err != nil {
		return models.Session{}, fmt.Errorf("session validation failed: %w", err)
	}
	if res == nil || !res.IsValid {
		return models.Session{}, fmt.Errorf("session is not valid")
	}

	return sessionFromUser(res.User)
}

// sessionFromUser reads the profile through its JSON form so only the
// documented field names are relied on.
func sessionFromUser(user interface{}) (models.Session, error) {
	data, err := json.Marshal(user)
	if err != nil {
		return models.Session{}, fmt.Errorf("decode session user: %w", err)
	}
	var u authorizerUser
	if err := json.Unmarshal(data, &u); err != nil {
		return models.Session{}, fmt.Errorf("decode session user: %w", err)
	}
	if u.ID == "" {
		return models.Session{}, fmt.Errorf("session has no user id")
	}
	return models.Session{UserID: u.ID, DisplayName: u.displayName(), Email: u.Email}, nil
}

// TokenClaims are the claims of a bearer token.
type TokenClaims struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 bearer token for session.
func IssueToken(secret string, session models.Session, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := TokenClaims{
		Name:  session.DisplayName,
		Email: session.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   session.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseToken verifies an HS256 bearer token and returns its session.
func ParseToken(secret, token string) (models.Session, error) {
	var claims TokenClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return models.Session{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return models.Session{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return models.Session{UserID: claims.Subject, DisplayName: claims.Name, Email: claims.Email}, nil
}
