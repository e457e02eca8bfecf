package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/linemk/toff-shop/internal/domain/models"
)

// AddressStorage — сохранённые адреса доставки. У пользователя не больше одного адреса по умолчанию.
type AddressStorage interface {
	ListAddresses(ctx context.Context, userID int64) ([]*models.Address, error)
	GetAddress(ctx context.Context, userID, id int64) (*models.Address, error)
	// CreateAddress сохраняет адрес; с IsDefault снимает флаг с остальных адресов пользователя.
	CreateAddress(ctx context.Context, addr *models.Address) error
	// UpdateAddress перезаписывает адрес пользователя по ID.
	UpdateAddress(ctx context.Context, addr *models.Address) error
	DeleteAddress(ctx context.Context, userID, id int64) error
}

type addressRepository struct {
	db *sql.DB
}

func NewAddressRepository(db *sql.DB) AddressStorage {
	return &addressRepository{db: db}
}

const addressColumns = `id, user_id, title, full_name, phone, city, district, address,
	tc_id, corporate_name, tax_office, tax_number, is_default, created_at`

func scanAddress(row interface{ Scan(...any) error }) (*models.Address, error) {
	a := &models.Address{}
	err := row.Scan(&a.ID, &a.UserID, &a.Title, &a.FullName, &a.Phone, &a.City, &a.District, &a.Address,
		&a.TCID, &a.CorporateName, &a.TaxOffice, &a.TaxNumber, &a.IsDefault, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAddressNotFound
		}
		return nil, err
	}
	return a, nil
}

func (r *addressRepository) ListAddresses(ctx context.Context, userID int64) ([]*models.Address, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+addressColumns+" FROM addresses WHERE user_id = $1 ORDER BY is_default DESC, id", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list addresses: %w", err)
	}
	defer rows.Close()

	addresses := []*models.Address{}
	for rows.Next() {
		a, err := scanAddress(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan address: %w", err)
		}
		addresses = append(addresses, a)
	}
	return addresses, rows.Err()
}

func (r *addressRepository) GetAddress(ctx context.Context, userID, id int64) (*models.Address, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+addressColumns+" FROM addresses WHERE id = $1 AND user_id = $2", id, userID)
	return scanAddress(row)
}

func (r *addressRepository) CreateAddress(ctx context.Context, addr *models.Address) error {
	return r.withDefault(ctx, addr, func(tx *sql.Tx) error {
		query := `INSERT INTO addresses (user_id, title, full_name, phone, city, district, address,
		          tc_id, corporate_name, tax_office, tax_number, is_default, created_at)
		          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())
		          RETURNING id, created_at`
		return tx.QueryRowContext(ctx, query,
			addr.UserID, addr.Title, addr.FullName, addr.Phone, addr.City, addr.District, addr.Address,
			addr.TCID, addr.CorporateName, addr.TaxOffice, addr.TaxNumber, addr.IsDefault,
		).Scan(&addr.ID, &addr.CreatedAt)
	})
}

func (r *addressRepository) UpdateAddress(ctx context.Context, addr *models.Address) error {
	return r.withDefault(ctx, addr, func(tx *sql.Tx) error {
		query := `UPDATE addresses SET title = $3, full_name = $4, phone = $5, city = $6, district = $7, address = $8,
		          tc_id = $9, corporate_name = $10, tax_office = $11, tax_number = $12, is_default = $13
		          WHERE id = $1 AND user_id = $2
		          RETURNING created_at`
		err := tx.QueryRowContext(ctx, query,
			addr.ID, addr.UserID, addr.Title, addr.FullName, addr.Phone, addr.City, addr.District, addr.Address,
			addr.TCID, addr.CorporateName, addr.TaxOffice, addr.TaxNumber, addr.IsDefault,
		).Scan(&addr.CreatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrAddressNotFound
		}
		return err
	})
}

// withDefault выполняет запись в транзакции; для адреса по умолчанию сначала снимает флаг с остальных
func (r *addressRepository) withDefault(ctx context.Context, addr *models.Address, write func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if addr.IsDefault {
		_, err := tx.ExecContext(ctx,
			"UPDATE addresses SET is_default = FALSE WHERE user_id = $1 AND is_default AND id <> $2",
			addr.UserID, addr.ID)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to reset default address: %w", mapPQError(err))
		}
	}
	if err := write(tx); err != nil {
		_ = tx.Rollback()
		if errors.Is(err, ErrAddressNotFound) {
			return err
		}
		return fmt.Errorf("failed to save address: %w", mapPQError(err))
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit address: %w", err)
	}
	return nil
}

func (r *addressRepository) DeleteAddress(ctx context.Context, userID, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM addresses WHERE id = $1 AND user_id = $2", id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete address: %w", err)
	}
	return expectAffected(res, ErrAddressNotFound)
}
