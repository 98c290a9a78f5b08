package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/pr-poehali-dev/sidor-bank-casino/internal/domain/models"
)

var ErrRequestNotFound = errors.New("request not found")

// RequestStorage описывает методы для работы с заявками на пополнение/вывод.
type RequestStorage interface {
	// CreateRequest создает заявку в статусе pending, средства при этом не двигаются.
	CreateRequest(ctx context.Context, userID int64, reqType string, amount decimal.Decimal, currency models.Currency) (int64, error)
	// GetPendingByIDTx возвращает pending-заявку под блокировкой FOR UPDATE.
	// Терминальная или несуществующая заявка дает ErrRequestNotFound.
	GetPendingByIDTx(ctx context.Context, tx *sql.Tx, id int64) (*models.FundingRequest, error)
	// MarkProcessedTx переводит заявку в терминальный статус, фиксируя processed_by/processed_at.
	MarkProcessedTx(ctx context.Context, tx *sql.Tx, id int64, status string, processedBy *int64) error
	// ListPending возвращает все необработанные заявки, новые первыми.
	ListPending(ctx context.Context) ([]*models.FundingRequest, error)
}

type requestRepository struct {
	db *sql.DB
}

func NewRequestRepository(db *sql.DB) RequestStorage {
	return &requestRepository{db: db}
}

func (r *requestRepository) CreateRequest(ctx context.Context, userID int64, reqType string, amount decimal.Decimal, currency models.Currency) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx,
		"INSERT INTO requests (user_id, type, amount, currency) VALUES ($1, $2, $3, $4) RETURNING id",
		userID, reqType, amount, string(currency),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	return id, nil
}

func (r *requestRepository) GetPendingByIDTx(ctx context.Context, tx *sql.Tx, id int64) (*models.FundingRequest, error) {
	req := &models.FundingRequest{}
	row := tx.QueryRowContext(ctx,
		"SELECT id, user_id, type, amount, currency, status, created_at FROM requests WHERE id = $1 AND status = 'pending' FOR UPDATE",
		id)
	var currency string
	if err := row.Scan(&req.ID, &req.UserID, &req.Type, &req.Amount, &currency, &req.Status, &req.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}
	req.Currency = models.Currency(currency)
	return req, nil
}

func (r *requestRepository) MarkProcessedTx(ctx context.Context, tx *sql.Tx, id int64, status string, processedBy *int64) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE requests SET status = $1, processed_by = $2, processed_at = NOW() WHERE id = $3 AND status = 'pending'",
		status, processedBy, id)
	if err != nil {
		return fmt.Errorf("failed to mark request processed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrRequestNotFound
	}
	return nil
}

func (r *requestRepository) ListPending(ctx context.Context) ([]*models.FundingRequest, error) {
	query := `
		SELECT r.id, r.user_id, u.full_name, r.type, r.amount, r.currency, r.status, r.created_at
		FROM requests r
		JOIN users u ON r.user_id = u.id
		WHERE r.status = 'pending'
		ORDER BY r.created_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending requests: %w", err)
	}
	defer rows.Close()

	var requests []*models.FundingRequest
	for rows.Next() {
		req := &models.FundingRequest{}
		var currency string
		if err := rows.Scan(&req.ID, &req.UserID, &req.FullName, &req.Type, &req.Amount, &currency, &req.Status, &req.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		req.Currency = models.Currency(currency)
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return requests, nil
}
