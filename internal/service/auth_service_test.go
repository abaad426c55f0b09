package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhenzhu143321/hxci-campus-portal-system/internal/models"
)

func newTestAuthService() *AuthService {
	return NewAuthService(AuthConfig{
		Secret:   "test-secret",
		Issuer:   "campus-portal",
		Audience: []string{"portal-web"},
	}, nil)
}

func TestAuthTokenRoundTrip(t *testing.T) {
	svc := newTestAuthService()

	token, err := svc.IssueToken("1001", "张同学", "STUDENT", time.Hour)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "1001", claims.UserID)
	assert.Equal(t, "张同学", claims.Username)
	assert.Equal(t, "STUDENT", claims.Role)
}

func TestAuthRejectsWrongSecret(t *testing.T) {
	svc := newTestAuthService()
	other := NewAuthService(AuthConfig{Secret: "other-secret", Issuer: "campus-portal", Audience: []string{"portal-web"}}, nil)

	token, err := other.IssueToken("1001", "", "", time.Hour)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.Error(t, err)
}

func TestAuthRejectsExpiredToken(t *testing.T) {
	svc := newTestAuthService()

	now := time.Now().Add(-2 * time.Hour)
	claims := models.JWTClaims{
		UserID: "1001",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "campus-portal",
			Audience:  jwt.ClaimStrings{"portal-web"},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = svc.ValidateToken(signed)
	assert.Error(t, err)
}

func TestAuthRejectsMissingUserID(t *testing.T) {
	svc := newTestAuthService()

	token, err := svc.IssueToken("", "", "", time.Hour)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.Error(t, err)
}

func TestAuthRejectsWrongIssuer(t *testing.T) {
	svc := newTestAuthService()
	other := NewAuthService(AuthConfig{Secret: "test-secret", Issuer: "someone-else", Audience: []string{"portal-web"}}, nil)

	token, err := other.IssueToken("1001", "", "", time.Hour)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.Error(t, err)
}
