package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/linemk/toff-shop/internal/domain/models"
	"github.com/linemk/toff-shop/internal/storage"
)

type AddressService struct {
	log       *slog.Logger
	addresses storage.AddressStorage
}

func NewAddressService(log *slog.Logger, addresses storage.AddressStorage) *AddressService {
	return &AddressService{log: log, addresses: addresses}
}

func (s *AddressService) ListAddresses(ctx context.Context, userID int64) ([]*models.Address, error) {
	const op = "service.AddressService.ListAddresses"

	addresses, err := s.addresses.ListAddresses(ctx, userID)
	if err != nil {
		s.log.Error("failed to list addresses", slog.String("op", op), slog.Int64("userID", userID), slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return addresses, nil
}

// CreateAddress сохраняет адрес; первый адрес пользователя становится адресом по умолчанию
func (s *AddressService) CreateAddress(ctx context.Context, userID int64, addr *models.Address) (*models.Address, error) {
	const op = "service.AddressService.CreateAddress"
	logger := s.log.With(slog.String("op", op), slog.Int64("userID", userID))

	addr.ID = 0
	addr.UserID = userID
	if err := normalizeAddress(addr); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !addr.IsDefault {
		existing, err := s.addresses.ListAddresses(ctx, userID)
		if err != nil {
			logger.Error("failed to list addresses", slog.Any("error", err))
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		addr.IsDefault = len(existing) == 0
	}

	if err := s.addresses.CreateAddress(ctx, addr); err != nil {
		logger.Error("failed to create address", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	logger.Info("address created", slog.Int64("addressID", addr.ID), slog.Bool("default", addr.IsDefault))
	return addr, nil
}

func (s *AddressService) UpdateAddress(ctx context.Context, userID, id int64, addr *models.Address) (*models.Address, error) {
	const op = "service.AddressService.UpdateAddress"
	logger := s.log.With(slog.String("op", op), slog.Int64("userID", userID), slog.Int64("addressID", id))

	addr.ID = id
	addr.UserID = userID
	if err := normalizeAddress(addr); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.addresses.UpdateAddress(ctx, addr); err != nil {
		if !errors.Is(err, storage.ErrAddressNotFound) {
			logger.Error("failed to update address", slog.Any("error", err))
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return addr, nil
}

func (s *AddressService) DeleteAddress(ctx context.Context, userID, id int64) error {
	const op = "service.AddressService.DeleteAddress"

	if err := s.addresses.DeleteAddress(ctx, userID, id); err != nil {
		if !errors.Is(err, storage.ErrAddressNotFound) {
			s.log.Error("failed to delete address", slog.String("op", op), slog.Int64("userID", userID), slog.Any("error", err))
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func normalizeAddress(a *models.Address) error {
	for _, f := range []*string{&a.Title, &a.FullName, &a.Phone, &a.City, &a.District, &a.Address,
		&a.TCID, &a.CorporateName, &a.TaxOffice, &a.TaxNumber} {
		*f = strings.TrimSpace(*f)
	}
	var missing []string
	if a.Title == "" {
		missing = append(missing, "title")
	}
	if a.FullName == "" {
		missing = append(missing, "full_name")
	}
	if a.Phone == "" {
		missing = append(missing, "phone")
	}
	if a.City == "" {
		missing = append(missing, "city")
	}
	if a.Address == "" {
		missing = append(missing, "address")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidAddress, strings.Join(missing, ", "))
	}
	return nil
}
