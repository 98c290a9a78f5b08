package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/pr-poehali-dev/sidor-bank-casino/internal/domain/models"
)

var ErrUserNotFound = errors.New("user not found")

const userColumns = "id, full_name, pin_code, is_staff, balance_rub, balance_usd"

// Запросы на атомарное изменение баланса: колонка выбирается switch-ем по валюте,
// вычисление выполняется на стороне БД, чтобы не терять обновления при конкурентных запросах.
const (
	adjustRubQuery = "UPDATE users SET balance_rub = balance_rub + $1 WHERE id = $2 RETURNING balance_rub"
	adjustUsdQuery = "UPDATE users SET balance_usd = balance_usd + $1 WHERE id = $2 RETURNING balance_usd"

	exchangeRubToUsdQuery = "UPDATE users SET balance_rub = balance_rub - $1, balance_usd = balance_usd + $2 WHERE id = $3 RETURNING balance_rub, balance_usd"
	exchangeUsdToRubQuery = "UPDATE users SET balance_usd = balance_usd - $1, balance_rub = balance_rub + $2 WHERE id = $3 RETURNING balance_rub, balance_usd"
)

type UserStorage interface {
	CreateUser(ctx context.Context, user *models.User) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	// GetUserByName ищет по точному совпадению ФИО (регистрозависимо), используется при регистрации.
	GetUserByName(ctx context.Context, fullName string) (*models.User, error)
	// FindUserByNameFold ищет по ФИО без учета регистра, используется панелью персонала.
	FindUserByNameFold(ctx context.Context, fullName string) (*models.User, error)
	GetUserByCredentials(ctx context.Context, fullName, pinCode string) (*models.User, error)
	LockUserByIDTx(ctx context.Context, tx *sql.Tx, id int64) (*models.User, error)
	AdjustBalanceTx(ctx context.Context, tx *sql.Tx, id int64, currency models.Currency, delta decimal.Decimal) (decimal.Decimal, error)
	ExchangeTx(ctx context.Context, tx *sql.Tx, id int64, from models.Currency, debit, credit decimal.Decimal) (decimal.Decimal, decimal.Decimal, error)
}

type userRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *userRepository {
	return &userRepository{db: db}
}

func (r *userRepository) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	var id int64
	err := r.db.QueryRowContext(ctx,
		"INSERT INTO users (full_name, pin_code, balance_rub, balance_usd) VALUES ($1, $2, $3, $4) RETURNING id",
		user.FullName, user.PinCode, user.BalanceRub, user.BalanceUsd,
	).Scan(&id)
	if err != nil {
		return nil, err
	}
	user.ID = id
	return user, nil
}

func (r *userRepository) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id)
	return scanUser(row)
}

func (r *userRepository) GetUserByName(ctx context.Context, fullName string) (*models.User, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE full_name = $1", fullName)
	return scanUser(row)
}

func (r *userRepository) FindUserByNameFold(ctx context.Context, fullName string) (*models.User, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE LOWER(full_name) = LOWER($1)", fullName)
	return scanUser(row)
}

// GetUserByCredentials используется при входе: точное совпадение ФИО и PIN-кода.
func (r *userRepository) GetUserByCredentials(ctx context.Context, fullName, pinCode string) (*models.User, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE full_name = $1 AND pin_code = $2", fullName, pinCode)
	return scanUser(row)
}

// LockUserByIDTx берет блокировку строки пользователя на время транзакции,
// чтобы проверка средств и списание видели согласованное состояние.
func (r *userRepository) LockUserByIDTx(ctx context.Context, tx *sql.Tx, id int64) (*models.User, error) {
	row := tx.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1 FOR UPDATE NOWAIT", id)
	user, err := scanUser(row)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "55P03" { // lock
			return nil, fmt.Errorf("resource is locked, please try again: %w", err)
		}
		return nil, err
	}
	return user, nil
}

func (r *userRepository) AdjustBalanceTx(ctx context.Context, tx *sql.Tx, id int64, currency models.Currency, delta decimal.Decimal) (decimal.Decimal, error) {
	var query string
	switch currency {
	case models.CurrencyRUB:
		query = adjustRubQuery
	case models.CurrencyUSD:
		query = adjustUsdQuery
	default:
		return decimal.Zero, fmt.Errorf("unknown currency: %q", currency)
	}

	var balance decimal.Decimal
	if err := tx.QueryRowContext(ctx, query, delta, id).Scan(&balance); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, ErrUserNotFound
		}
		return decimal.Zero, err
	}
	return balance, nil
}

// ExchangeTx списывает debit в валюте from и зачисляет credit в противоположной
// валюте одним UPDATE. Достаточность средств проверяет вызывающий код под блокировкой.
func (r *userRepository) ExchangeTx(ctx context.Context, tx *sql.Tx, id int64, from models.Currency, debit, credit decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	var query string
	switch from {
	case models.CurrencyRUB:
		query = exchangeRubToUsdQuery
	case models.CurrencyUSD:
		query = exchangeUsdToRubQuery
	default:
		return decimal.Zero, decimal.Zero, fmt.Errorf("unknown currency: %q", from)
	}

	var rub, usd decimal.Decimal
	if err := tx.QueryRowContext(ctx, query, debit, credit, id).Scan(&rub, &usd); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, decimal.Zero, ErrUserNotFound
		}
		return decimal.Zero, decimal.Zero, err
	}
	return rub, usd, nil
}

func scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	if err := row.Scan(&user.ID, &user.FullName, &user.PinCode, &user.IsStaff, &user.BalanceRub, &user.BalanceUsd); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}
