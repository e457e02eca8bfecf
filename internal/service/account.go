package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/linemk/toff-shop/internal/domain/models"
	security "github.com/linemk/toff-shop/internal/jwt-new"
	"github.com/linemk/toff-shop/internal/notification"
	"github.com/linemk/toff-shop/internal/storage"
	"golang.org/x/crypto/bcrypt"
)

type AccountConfig struct {
	PasswordResetURL string
	PasswordResetTTL time.Duration
	// ShopInbox — адрес магазина для обращений; пустой — письмо получает только автор
	ShopInbox string
}

// AccountService — восстановление пароля и форма обратной связи. Письма идут через outbox.
type AccountService struct {
	log    *slog.Logger
	users  storage.UserStorage
	outbox storage.OutboxStorage
	waker  Waker
	cfg    AccountConfig
}

func NewAccountService(log *slog.Logger, users storage.UserStorage, outbox storage.OutboxStorage, waker Waker, cfg AccountConfig) *AccountService {
	if cfg.PasswordResetTTL <= 0 {
		cfg.PasswordResetTTL = time.Hour
	}
	return &AccountService{log: log, users: users, outbox: outbox, waker: waker, cfg: cfg}
}

// RequestPasswordReset ставит письмо со ссылкой смены пароля. Для неизвестного
// или отключённого адреса ничего не отправляется, но ответ тот же.
func (s *AccountService) RequestPasswordReset(ctx context.Context, email string) error {
	const op = "service.AccountService.RequestPasswordReset"
	logger := s.log.With(slog.String("op", op))

	user, err := s.users.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			logger.Info("password reset requested for unknown email")
			return nil
		}
		logger.Error("failed to get user", slog.Any("error", err))
		return fmt.Errorf("%s: %w", op, err)
	}
	logger = logger.With(slog.Int64("userID", user.ID))
	if !user.IsActive {
		logger.Warn("password reset requested for disabled user")
		return nil
	}

	token, err := security.NewPasswordResetToken(user, s.cfg.PasswordResetTTL)
	if err != nil {
		logger.Error("failed to generate reset token", slog.Any("error", err))
		return fmt.Errorf("%s: %w", op, err)
	}
	link, err := resetLink(s.cfg.PasswordResetURL, token)
	if err != nil {
		logger.Error("invalid password reset url", slog.Any("error", err))
		return fmt.Errorf("%s: %w", op, err)
	}

	payload, err := json.Marshal(notification.PasswordResetData{
		FullName:  strings.TrimSpace(user.FirstName + " " + user.LastName),
		ResetLink: link,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	msg := &models.OutboxMessage{Kind: models.NotificationPasswordReset, ToAddress: user.Email, Payload: payload}
	if err := s.outbox.Enqueue(ctx, msg); err != nil {
		logger.Error("failed to enqueue password reset email", slog.Any("error", err))
		return fmt.Errorf("%s: %w", op, err)
	}
	s.wake()

	logger.Info("password reset email queued")
	return nil
}

// ResetPassword меняет пароль по токену из письма. Токен одноразовый:
// после смены пароля его отпечаток больше не совпадает.
func (s *AccountService) ResetPassword(ctx context.Context, token, newPassword string) error {
	const op = "service.AccountService.ResetPassword"
	logger := s.log.With(slog.String("op", op))

	userID, fingerprint, err := security.ParsePasswordResetToken(token)
	if err != nil {
		logger.Warn("invalid password reset token")
		return fmt.Errorf("%s: %w", op, ErrInvalidResetToken)
	}
	logger = logger.With(slog.Int64("userID", userID))

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			logger.Warn("password reset for deleted user")
			return fmt.Errorf("%s: %w", op, ErrInvalidResetToken)
		}
		logger.Error("failed to get user", slog.Any("error", err))
		return fmt.Errorf("%s: %w", op, err)
	}
	if !user.IsActive || security.PasswordFingerprint(user.PassHash) != fingerprint {
		logger.Warn("password reset token already used or user disabled")
		return fmt.Errorf("%s: %w", op, ErrInvalidResetToken)
	}

	passHash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		logger.Error("failed to hash password", slog.Any("error", err))
		return fmt.Errorf("%s: failed to hash password: %w", op, err)
	}
	if err := s.users.UpdatePassword(ctx, userID, passHash); err != nil {
		logger.Error("failed to update password", slog.Any("error", err))
		return fmt.Errorf("%s: %w", op, err)
	}

	logger.Info("password reset")
	return nil
}

// ContactRequest — обращение из формы обратной связи
type ContactRequest struct {
	Name    string
	Email   string
	Subject string
	Message string
}

// SubmitContact пересылает обращение в ящик магазина и отвечает автору подтверждением
func (s *AccountService) SubmitContact(ctx context.Context, req ContactRequest) error {
	const op = "service.AccountService.SubmitContact"
	logger := s.log.With(slog.String("op", op))

	data := notification.ContactData{
		Name:    strings.TrimSpace(req.Name),
		Email:   strings.TrimSpace(req.Email),
		Subject: singleLine(req.Subject),
		Message: strings.TrimSpace(req.Message),
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	msgs := []*models.OutboxMessage{
		{Kind: models.NotificationContactResponse, ToAddress: data.Email, Payload: payload},
	}
	if s.cfg.ShopInbox != "" {
		msgs = append(msgs, &models.OutboxMessage{Kind: models.NotificationContactForm, ToAddress: s.cfg.ShopInbox, Payload: payload})
	} else {
		logger.Warn("shop inbox is not configured, contact message is only acknowledged")
	}
	if err := s.outbox.Enqueue(ctx, msgs...); err != nil {
		logger.Error("failed to enqueue contact emails", slog.Any("error", err))
		return fmt.Errorf("%s: %w", op, err)
	}
	s.wake()

	logger.Info("contact message queued", slog.Int("emails", len(msgs)))
	return nil
}

func (s *AccountService) wake() {
	if s.waker != nil {
		s.waker.Wake()
	}
}

func resetLink(base, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// singleLine убирает переводы строк: тема письма попадает в заголовок
func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
