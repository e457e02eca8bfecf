package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/linemk/toff-shop/internal/domain/models"
	"github.com/linemk/toff-shop/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/toff-shop/internal/service"
	"github.com/linemk/toff-shop/internal/storage"
)

type AddressManager interface {
	ListAddresses(ctx context.Context, userID int64) ([]*models.Address, error)
	CreateAddress(ctx context.Context, userID int64, addr *models.Address) (*models.Address, error)
	UpdateAddress(ctx context.Context, userID, id int64, addr *models.Address) (*models.Address, error)
	DeleteAddress(ctx context.Context, userID, id int64) error
}

// AddressRequest — реквизиты для счёта необязательны, TC kimlik из 11 цифр
type AddressRequest struct {
	Title         string `json:"title" validate:"required,max=50"`
	FullName      string `json:"full_name" validate:"required,max=200"`
	Phone         string `json:"phone" validate:"required,max=30"`
	City          string `json:"city" validate:"required,max=100"`
	District      string `json:"district" validate:"max=100"`
	Address       string `json:"address" validate:"required,max=500"`
	TCID          string `json:"tc_id" validate:"omitempty,len=11,numeric"`
	CorporateName string `json:"corporate_name" validate:"max=200"`
	TaxOffice     string `json:"tax_office" validate:"max=100"`
	TaxNumber     string `json:"tax_number" validate:"omitempty,min=10,max=11,numeric"`
	IsDefault     bool   `json:"is_default"`
}

func (req *AddressRequest) toModel() *models.Address {
	return &models.Address{
		Title:         req.Title,
		FullName:      req.FullName,
		Phone:         req.Phone,
		City:          req.City,
		District:      req.District,
		Address:       req.Address,
		TCID:          req.TCID,
		CorporateName: req.CorporateName,
		TaxOffice:     req.TaxOffice,
		TaxNumber:     req.TaxNumber,
		IsDefault:     req.IsDefault,
	}
}

func AddressesHandler(log *slog.Logger, addresses AddressManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(slog.String("op", "handlers.AddressesHandler"))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			writeError(logger, w, http.StatusUnauthorized, "Unauthorized", codeUnauthorized, nil)
			return
		}

		list, err := addresses.ListAddresses(r.Context(), userID)
		if err != nil {
			writeAddressError(logger, w, err)
			return
		}
		writeJSON(logger, w, http.StatusOK, list)
	}
}

func CreateAddressHandler(log *slog.Logger, addresses AddressManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(slog.String("op", "handlers.CreateAddressHandler"))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			writeError(logger, w, http.StatusUnauthorized, "Unauthorized", codeUnauthorized, nil)
			return
		}
		var req AddressRequest
		if !decodeAndValidate(logger, w, r, &req) {
			return
		}

		addr, err := addresses.CreateAddress(r.Context(), userID, req.toModel())
		if err != nil {
			writeAddressError(logger, w, err)
			return
		}
		writeJSON(logger, w, http.StatusCreated, addr)
	}
}

func UpdateAddressHandler(log *slog.Logger, addresses AddressManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(slog.String("op", "handlers.UpdateAddressHandler"))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			writeError(logger, w, http.StatusUnauthorized, "Unauthorized", codeUnauthorized, nil)
			return
		}
		id, ok := pathID(logger, w, r, "id")
		if !ok {
			return
		}
		var req AddressRequest
		if !decodeAndValidate(logger, w, r, &req) {
			return
		}

		addr, err := addresses.UpdateAddress(r.Context(), userID, id, req.toModel())
		if err != nil {
			writeAddressError(logger, w, err)
			return
		}
		writeJSON(logger, w, http.StatusOK, addr)
	}
}

func DeleteAddressHandler(log *slog.Logger, addresses AddressManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(slog.String("op", "handlers.DeleteAddressHandler"))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			writeError(logger, w, http.StatusUnauthorized, "Unauthorized", codeUnauthorized, nil)
			return
		}
		id, ok := pathID(logger, w, r, "id")
		if !ok {
			return
		}

		if err := addresses.DeleteAddress(r.Context(), userID, id); err != nil {
			writeAddressError(logger, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func writeAddressError(log *slog.Logger, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidAddress):
		writeError(log, w, http.StatusBadRequest, "Invalid address", codeInvalidInput, nil)
	case errors.Is(err, storage.ErrAddressNotFound):
		writeError(log, w, http.StatusNotFound, "Address not found", codeNotFound, nil)
	default:
		log.Error("address operation failed", slog.Any("error", err))
		writeError(log, w, http.StatusInternalServerError, "Internal server error", codeInternal, nil)
	}
}
