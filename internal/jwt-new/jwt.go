package security

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/linemk/toff-shop/internal/domain/models"
)

// NewToken генерирует JWT-токен для указанного пользователя с заданным временем жизни.
// Клейм admin выставляется для сотрудников магазина (is_staff).
func NewToken(ctx context.Context, user *models.User, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub":   fmt.Sprintf("%d", user.ID),
		"email": user.Email,
		"admin": user.IsStaff,
		"exp":   time.Now().Add(ttl).Unix(),
		"iat":   time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	secretStr := os.Getenv("JWT_SECRET")
	if secretStr == "" {
		return "", errors.New("JWT_SECRET environment variable is not set")
	}
	secret := []byte(secretStr)
	return token.SignedString(secret)
}

const passwordResetPurpose = "password_reset"

var ErrInvalidResetToken = errors.New("invalid or expired password reset token")

// NewPasswordResetToken выдаёт токен смены пароля. Он подписан отдельным ключом,
// поэтому не принимается как токен входа, и перестаёт действовать после смены пароля.
func NewPasswordResetToken(user *models.User, ttl time.Duration) (string, error) {
	secret, err := resetSecret()
	if err != nil {
		return "", err
	}
	claims := jwt.MapClaims{
		"sub":     strconv.FormatInt(user.ID, 10),
		"purpose": passwordResetPurpose,
		"pwd":     PasswordFingerprint(user.PassHash),
		"exp":     time.Now().Add(ttl).Unix(),
		"iat":     time.Now().Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ParsePasswordResetToken проверяет подпись и срок токена и возвращает
// ID пользователя и отпечаток пароля, для которого токен был выдан
func ParsePasswordResetToken(tokenStr string) (int64, string, error) {
	secret, err := resetSecret()
	if err != nil {
		return 0, "", err
	}
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return 0, "", ErrInvalidResetToken
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || claims["purpose"] != passwordResetPurpose {
		return 0, "", ErrInvalidResetToken
	}
	sub, _ := claims["sub"].(string)
	userID, err := strconv.ParseInt(sub, 10, 64)
	if err != nil {
		return 0, "", ErrInvalidResetToken
	}
	pwd, _ := claims["pwd"].(string)
	return userID, pwd, nil
}

// PasswordFingerprint — короткий хеш от хеша пароля; меняется при каждой смене пароля
func PasswordFingerprint(passHash []byte) string {
	sum := sha256.Sum256(passHash)
	return hex.EncodeToString(sum[:8])
}

func resetSecret() ([]byte, error) {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return nil, errors.New("JWT_SECRET environment variable is not set")
	}
	return []byte(secret + ":" + passwordResetPurpose), nil
}
