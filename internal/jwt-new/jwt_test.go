package security_test

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/linemk/toff-shop/internal/domain/models"
	security "github.com/linemk/toff-shop/internal/jwt-new"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewToken_CarriesClaims(t *testing.T) {
	t.Setenv("JWT_SECRET", "testsecret")

	user := &models.User{ID: 42, Email: "staff@example.com", IsStaff: true}
	tokenStr, err := security.NewToken(context.Background(), user, time.Hour)
	require.NoError(t, err)

	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		return []byte("testsecret"), nil
	})
	require.NoError(t, err)
	claims := token.Claims.(jwt.MapClaims)
	assert.Equal(t, "42", claims["sub"])
	assert.Equal(t, true, claims["admin"])
	assert.Equal(t, "staff@example.com", claims["email"])
}

func TestNewToken_NoSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := security.NewToken(context.Background(), &models.User{ID: 1}, time.Hour)
	assert.Error(t, err)
}

func TestPasswordResetToken_RoundTrip(t *testing.T) {
	t.Setenv("JWT_SECRET", "testsecret")
	user := &models.User{ID: 7, PassHash: []byte("$2a$10$old")}

	tokenStr, err := security.NewPasswordResetToken(user, time.Hour)
	require.NoError(t, err)

	userID, pwd, err := security.ParsePasswordResetToken(tokenStr)
	require.NoError(t, err)
	assert.Equal(t, int64(7), userID)
	assert.Equal(t, security.PasswordFingerprint(user.PassHash), pwd)
	assert.NotEqual(t, pwd, security.PasswordFingerprint([]byte("$2a$10$new")))
}

func TestPasswordResetToken_NotAcceptedAsLoginToken(t *testing.T) {
	t.Setenv("JWT_SECRET", "testsecret")

	tokenStr, err := security.NewPasswordResetToken(&models.User{ID: 7}, time.Hour)
	require.NoError(t, err)

	_, err = jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		return []byte("testsecret"), nil
	})
	assert.Error(t, err, "reset token must not verify with the login key")
}

func TestParsePasswordResetToken_Rejects(t *testing.T) {
	t.Setenv("JWT_SECRET", "testsecret")

	expired, err := security.NewPasswordResetToken(&models.User{ID: 7}, -time.Minute)
	require.NoError(t, err)
	_, _, err = security.ParsePasswordResetToken(expired)
	assert.ErrorIs(t, err, security.ErrInvalidResetToken)

	login, err := security.NewToken(context.Background(), &models.User{ID: 7}, time.Hour)
	require.NoError(t, err)
	_, _, err = security.ParsePasswordResetToken(login)
	assert.ErrorIs(t, err, security.ErrInvalidResetToken, "login token is not a reset token")

	_, _, err = security.ParsePasswordResetToken("garbage")
	assert.ErrorIs(t, err, security.ErrInvalidResetToken)
}
