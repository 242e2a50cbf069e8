package services

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localnerve/stepio/internal/models"
)

func TestIssueAndParseToken(t *testing.T) {
	session := models.Session{UserID: "user-1", DisplayName: "Carla", Email: "carla@example.com"}

	token, err := IssueToken("secret", session, time.Hour)
	require.NoError(t, err)

	got, err := ParseToken("secret", token)
	require.NoError(t, err)
	assert.Equal(t, session, got)
}

func TestParseTokenRejects(t *testing.T) {
	session := models.Session{UserID: "user-1"}

	wrongKey, err := IssueToken("other", session, time.Hour)
	require.NoError(t, err)
	expired, err := IssueToken("secret", session, -time.Minute)
	require.NoError(t, err)
	noSubject, err := IssueToken("secret", models.Session{}, time.Hour)
	require.NoError(t, err)
	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "user-1"}).SignedString([]byte("secret"))
	require.NoError(t, err)
	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	for name, token := range map[string]string{
		"wrong key":  wrongKey,
		"expired":    expired,
		"no subject": noSubject,
		"no expiry":  noExpiry,
		"hs512":      hs512,
		"garbage":    "a.b.c",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseToken("secret", token)
			assert.True(t, errors.Is(err, ErrInvalidToken), "got %v", err)
		})
	}
}

func TestSessionFromUser(t *testing.T) {
	given, family := "Carla", "Souza"
	session, err := sessionFromUser(map[string]interface{}{
		"id":          "u1",
		"email":       "carla@example.com",
		"given_name":  given,
		"family_name": family,
	})
	require.NoError(t, err)
	assert.Equal(t, models.Session{UserID: "u1", DisplayName: "Carla Souza", Email: "carla@example.com"}, session)

	nick := "cacau"
	session, err = sessionFromUser(authorizerUser{ID: "u2", Nickname: &nick})
	require.NoError(t, err)
	assert.Equal(t, "cacau", session.DisplayName)

	_, err = sessionFromUser(map[string]interface{}{"email": "x@y.z"})
	assert.Error(t, err)
}

func TestValidateSessionWithoutClient(t *testing.T) {
	if IsAuthorizerInitialized() {
		t.Skip("authorizer initialized by another test")
	}
	_, err := ValidateSession("cookie", []string{"user"})
	assert.Error(t, err)
}
