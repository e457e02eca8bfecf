package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/linemk/toff-shop/internal/service"
)

type AccountManager interface {
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	SubmitContact(ctx context.Context, req service.ContactRequest) error
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

type ResetPasswordRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type ContactFormRequest struct {
	Name    string `json:"name" validate:"required,max=100"`
	Email   string `json:"email" validate:"required,email,max=254"`
	Subject string `json:"subject" validate:"required,max=200"`
	Message string `json:"message" validate:"required,max=5000"`
}

// MessageResponse — ответ без данных, только подтверждение
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ForgotPasswordHandler всегда отвечает одинаково, чтобы по ответу нельзя было проверить, зарегистрирован ли адрес
func ForgotPasswordHandler(log *slog.Logger, accounts AccountManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(slog.String("op", "handlers.ForgotPasswordHandler"))

		var req ForgotPasswordRequest
		if !decodeAndValidate(logger, w, r, &req) {
			return
		}

		if err := accounts.RequestPasswordReset(r.Context(), req.Email); err != nil {
			logger.Error("password reset request failed", slog.Any("error", err))
			writeError(logger, w, http.StatusInternalServerError, "Internal server error", codeInternal, nil)
			return
		}
		writeJSON(logger, w, http.StatusAccepted, MessageResponse{
			Success: true,
			Message: "If the address is registered, a password reset link has been sent",
		})
	}
}

func ResetPasswordHandler(log *slog.Logger, accounts AccountManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(slog.String("op", "handlers.ResetPasswordHandler"))

		var req ResetPasswordRequest
		if !decodeAndValidate(logger, w, r, &req) {
			return
		}

		if err := accounts.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
			if errors.Is(err, service.ErrInvalidResetToken) {
				writeError(logger, w, http.StatusBadRequest, "Invalid or expired reset link", codeInvalidInput, nil)
				return
			}
			logger.Error("password reset failed", slog.Any("error", err))
			writeError(logger, w, http.StatusInternalServerError, "Internal server error", codeInternal, nil)
			return
		}
		writeJSON(logger, w, http.StatusOK, MessageResponse{Success: true, Message: "Password has been reset"})
	}
}

func ContactHandler(log *slog.Logger, accounts AccountManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(slog.String("op", "handlers.ContactHandler"))

		var req ContactFormRequest
		if !decodeAndValidate(logger, w, r, &req) {
			return
		}

		err := accounts.SubmitContact(r.Context(), service.ContactRequest{
			Name:    req.Name,
			Email:   req.Email,
			Subject: req.Subject,
			Message: req.Message,
		})
		if err != nil {
			logger.Error("contact submission failed", slog.Any("error", err))
			writeError(logger, w, http.StatusInternalServerError, "Internal server error", codeInternal, nil)
			return
		}
		writeJSON(logger, w, http.StatusAccepted, MessageResponse{Success: true, Message: "Message received"})
	}
}
