package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/linemk/toff-shop/internal/service"
)

// AuthRequest представляет структуру запроса для аутентификации с тегами валидации
type AuthRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse представляет структуру ответа с JWT-токеном
type AuthResponse struct {
	Token string `json:"token"`
}

type RegisterRequest struct {
	Email     string `json:"email" validate:"required,email,max=254"`
	Password  string `json:"password" validate:"required,min=8,max=72"`
	FirstName string `json:"first_name" validate:"max=150"`
	LastName  string `json:"last_name" validate:"max=150"`
}

type RegisterResponse struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// AuthHandler – HTTP-обработчик для аутентификации, принимает логгер и экземпляр AuthService
func AuthHandler(log *slog.Logger, authService service.AuthServiceInterface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.AuthHandler"
		logger := log.With(slog.String("op", op))

		var req AuthRequest
		if !decodeAndValidate(logger, w, r, &req) {
			return
		}

		// Вызов бизнес-логики для аутентификации
		token, err := authService.Login(r.Context(), req.Email, req.Password)
		if err != nil {
			if errors.Is(err, service.ErrInvalidCredentials) {
				writeError(logger, w, http.StatusUnauthorized, "Invalid credentials", codeUnauthorized, nil)
				return
			}
			logger.Error("login failed", slog.Any("error", err))
			writeError(logger, w, http.StatusInternalServerError, "Login failed", codeInternal, nil)
			return
		}

		writeJSON(logger, w, http.StatusOK, AuthResponse{Token: token})
	}
}

func RegisterHandler(log *slog.Logger, authService service.AuthServiceInterface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.RegisterHandler"
		logger := log.With(slog.String("op", op))

		var req RegisterRequest
		if !decodeAndValidate(logger, w, r, &req) {
			return
		}

		user, err := authService.Register(r.Context(), req.Email, req.Password, req.FirstName, req.LastName)
		if err != nil {
			if errors.Is(err, service.ErrUserExists) {
				writeError(logger, w, http.StatusConflict, "User already exists", codeConflict, nil)
				return
			}
			logger.Error("registration failed", slog.Any("error", err))
			writeError(logger, w, http.StatusInternalServerError, "Registration failed", codeInternal, nil)
			return
		}

		writeJSON(logger, w, http.StatusCreated, RegisterResponse{
			ID:        user.ID,
			Email:     user.Email,
			FirstName: user.FirstName,
			LastName:  user.LastName,
		})
	}
}
