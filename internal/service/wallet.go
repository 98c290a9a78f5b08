package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/pr-poehali-dev/sidor-bank-casino/internal/domain/models"
	"github.com/pr-poehali-dev/sidor-bank-casino/internal/storage"
)

// Balances содержит текущие балансы пользователя в обеих валютах.
type Balances struct {
	Rub decimal.Decimal
	Usd decimal.Decimal
}

// WalletService определяет операции кошелька: балансы, обмен валют, заявки.
type WalletService interface {
	GetBalances(ctx context.Context, userID int64) (*Balances, error)
	Exchange(ctx context.Context, userID int64, from, to models.Currency, amount decimal.Decimal) (*Balances, error)
	CreateRequest(ctx context.Context, userID int64, reqType string, amount decimal.Decimal, currency models.Currency) (int64, error)
}

type walletService struct {
	log         *slog.Logger
	db          *sql.DB
	userRepo    storage.UserStorage
	requestRepo storage.RequestStorage
	rate        decimal.Decimal // курс: рублей за 1 доллар, задается конфигурацией
}

func NewWalletService(log *slog.Logger, db *sql.DB, userRepo storage.UserStorage, requestRepo storage.RequestStorage, rate decimal.Decimal) WalletService {
	return &walletService{
		log:         log,
		db:          db,
		userRepo:    userRepo,
		requestRepo: requestRepo,
		rate:        rate,
	}
}

func (s *walletService) GetBalances(ctx context.Context, userID int64) (*Balances, error) {
	const op = "service.WalletService.GetBalances"

	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}
		s.log.Error("failed to get user", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to get user: %w", op, err)
	}
	return &Balances{Rub: user.BalanceRub, Usd: user.BalanceUsd}, nil
}

// Exchange конвертирует amount из валюты from в валюту to по фиксированному курсу.
// Поддерживаются только направления RUB/USD и USD/RUB, любая другая пара дает ошибку,
// а не тихий no-op. Списание и зачисление выполняются одним UPDATE под блокировкой строки.
func (s *walletService) Exchange(ctx context.Context, userID int64, from, to models.Currency, amount decimal.Decimal) (*Balances, error) {
	const op = "service.WalletService.Exchange"
	logger := s.log.With(
		slog.String("op", op),
		slog.Int64("userID", userID),
		slog.String("from", string(from)),
		slog.String("to", string(to)),
	)
	logger.Info("starting exchange transaction")

	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%s: amount must be positive: %w", op, ErrInvalidArgument)
	}

	var credit decimal.Decimal
	switch {
	case from == models.CurrencyRUB && to == models.CurrencyUSD:
		credit = amount.Div(s.rate)
	case from == models.CurrencyUSD && to == models.CurrencyRUB:
		credit = amount.Mul(s.rate)
	default:
		logger.Warn("unsupported exchange direction")
		return nil, fmt.Errorf("%s: %w", op, ErrUnsupportedExchange)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("failed to begin transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}

	user, err := s.userRepo.LockUserByIDTx(ctx, tx, userID)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error("transaction rollback failed", slog.Any("error", rbErr))
		}
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}
		logger.Error("failed to lock user", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to lock user: %w", op, err)
	}

	source := user.BalanceRub
	if from == models.CurrencyUSD {
		source = user.BalanceUsd
	}
	if source.LessThan(amount) {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error("transaction rollback failed", slog.Any("error", rbErr))
		}
		logger.Warn("insufficient funds", slog.String("balance", source.String()))
		return nil, fmt.Errorf("%s: %w", op, ErrInsufficientFunds)
	}

	rub, usd, err := s.userRepo.ExchangeTx(ctx, tx, userID, from, amount, credit)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error("transaction rollback failed", slog.Any("error", rbErr))
		}
		logger.Error("failed to apply exchange", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to apply exchange: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		logger.Error("failed to commit transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	logger.Info("exchange completed successfully")
	return &Balances{Rub: rub, Usd: usd}, nil
}

// CreateRequest создает pending-заявку на пополнение или вывод; средства не двигаются.
func (s *walletService) CreateRequest(ctx context.Context, userID int64, reqType string, amount decimal.Decimal, currency models.Currency) (int64, error) {
	const op = "service.WalletService.CreateRequest"
	logger := s.log.With(
		slog.String("op", op),
		slog.Int64("userID", userID),
		slog.String("type", reqType),
	)

	if reqType != models.RequestDeposit && reqType != models.RequestWithdraw {
		return 0, fmt.Errorf("%s: unknown request type %q: %w", op, reqType, ErrInvalidArgument)
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return 0, fmt.Errorf("%s: amount must be positive: %w", op, ErrInvalidArgument)
	}

	id, err := s.requestRepo.CreateRequest(ctx, userID, reqType, amount, currency)
	if err != nil {
		logger.Error("failed to create request", slog.Any("error", err))
		return 0, fmt.Errorf("%s: failed to create request: %w", op, err)
	}

	logger.Info("funding request created", slog.Int64("requestID", id))
	return id, nil
}
