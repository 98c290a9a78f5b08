package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/pr-poehali-dev/sidor-bank-casino/internal/domain/models"
)

// GameHistoryStorage описывает методы для работы с историей игр.
type GameHistoryStorage interface {
	// CreateRoundTx добавляет запись об одном раунде игры.
	// details: необязательный jsonb (например, позиции мин).
	CreateRoundTx(ctx context.Context, tx *sql.Tx, userID int64, gameType string, betAmount decimal.Decimal, result string, winAmount decimal.Decimal, details []byte) error
	// GetRoundsByUserID возвращает историю раундов пользователя, новые первыми.
	GetRoundsByUserID(ctx context.Context, userID int64) ([]*models.GameRound, error)
}

type gameHistoryRepository struct {
	db *sql.DB
}

func NewGameHistoryRepository(db *sql.DB) GameHistoryStorage {
	return &gameHistoryRepository{db: db}
}

func (r *gameHistoryRepository) CreateRoundTx(ctx context.Context, tx *sql.Tx, userID int64, gameType string, betAmount decimal.Decimal, result string, winAmount decimal.Decimal, details []byte) error {
	query := `INSERT INTO game_history (user_id, game_type, bet_amount, result, win_amount, details, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, NOW())`
	var detailsArg interface{}
	if details != nil {
		detailsArg = details
	}
	_, err := tx.ExecContext(ctx, query, userID, gameType, betAmount, result, winAmount, detailsArg)
	if err != nil {
		return fmt.Errorf("failed to create game round: %w", err)
	}
	return nil
}

func (r *gameHistoryRepository) GetRoundsByUserID(ctx context.Context, userID int64) ([]*models.GameRound, error) {
	query := `
		SELECT id, user_id, game_type, bet_amount, result, win_amount, details, created_at
		FROM game_history
		WHERE user_id = $1
		ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query game history: %w", err)
	}
	defer rows.Close()

	var rounds []*models.GameRound
	for rows.Next() {
		round := &models.GameRound{}
		if err := rows.Scan(&round.ID, &round.UserID, &round.GameType, &round.BetAmount, &round.Result, &round.WinAmount, &round.Details, &round.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan game round: %w", err)
		}
		rounds = append(rounds, round)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rounds, nil
}
