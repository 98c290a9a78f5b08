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

// Операции прямой корректировки баланса персоналом.
const (
	OperationAdd      = "add"
	OperationSubtract = "subtract"
)

// StaffService определяет операции панели персонала. Каждый метод начинается с проверки
// привилегий: системная идентичность проходит без обращения к БД, обычный
// пользователь должен иметь флаг is_staff.
type StaffService interface {
	ListPending(ctx context.Context, p models.Principal) ([]*models.FundingRequest, error)
	ProcessRequest(ctx context.Context, p models.Principal, requestID int64, decision string) error
	ManageBalance(ctx context.Context, p models.Principal, fullName string, amount decimal.Decimal, operation string, currency models.Currency) (decimal.Decimal, error)
}

type staffService struct {
	log         *slog.Logger
	db          *sql.DB
	userRepo    storage.UserStorage
	requestRepo storage.RequestStorage
}

func NewStaffService(log *slog.Logger, db *sql.DB, userRepo storage.UserStorage, requestRepo storage.RequestStorage) StaffService {
	return &staffService{
		log:         log,
		db:          db,
		userRepo:    userRepo,
		requestRepo: requestRepo,
	}
}

// ensureStaff является единственной точкой проверки привилегий персонала.
func (s *staffService) ensureStaff(ctx context.Context, p models.Principal) error {
	if p.System {
		return nil
	}
	user, err := s.userRepo.GetUserByID(ctx, p.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return ErrForbidden
		}
		return err
	}
	if !user.IsStaff {
		return ErrForbidden
	}
	return nil
}

func (s *staffService) ListPending(ctx context.Context, p models.Principal) ([]*models.FundingRequest, error) {
	const op = "service.StaffService.ListPending"

	if err := s.ensureStaff(ctx, p); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	requests, err := s.requestRepo.ListPending(ctx)
	if err != nil {
		s.log.Error("failed to list pending requests", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to list pending requests: %w", op, err)
	}
	return requests, nil
}

// ProcessRequest переводит pending-заявку в терминальный статус.
// При одобрении вывода баланс владельца перепроверяется под блокировкой:
// если средств не хватает, заявка принудительно отклоняется (и считается
// обработанной), а вызывающему возвращается ErrInsufficientFunds.
func (s *staffService) ProcessRequest(ctx context.Context, p models.Principal, requestID int64, decision string) error {
	const op = "service.StaffService.ProcessRequest"
	logger := s.log.With(
		slog.String("op", op),
		slog.Int64("requestID", requestID),
		slog.String("decision", decision),
	)
	logger.Info("processing funding request")

	if decision != models.StatusApproved && decision != models.StatusRejected {
		return fmt.Errorf("%s: unknown decision %q: %w", op, decision, ErrInvalidArgument)
	}

	if err := s.ensureStaff(ctx, p); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("failed to begin transaction", slog.Any("error", err))
		return fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}

	req, err := s.requestRepo.GetPendingByIDTx(ctx, tx, requestID)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error("transaction rollback failed", slog.Any("error", rbErr))
		}
		if errors.Is(err, storage.ErrRequestNotFound) {
			return fmt.Errorf("%s: %w", op, ErrRequestNotFound)
		}
		logger.Error("failed to get request", slog.Any("error", err))
		return fmt.Errorf("%s: failed to get request: %w", op, err)
	}

	if decision == models.StatusApproved {
		switch req.Type {
		case models.RequestDeposit:
			if _, err := s.userRepo.AdjustBalanceTx(ctx, tx, req.UserID, req.Currency, req.Amount); err != nil {
				if rbErr := tx.Rollback(); rbErr != nil {
					logger.Error("transaction rollback failed", slog.Any("error", rbErr))
				}
				logger.Error("failed to credit deposit", slog.Any("error", err))
				return fmt.Errorf("%s: failed to credit deposit: %w", op, err)
			}
		case models.RequestWithdraw:
			owner, err := s.userRepo.LockUserByIDTx(ctx, tx, req.UserID)
			if err != nil {
				if rbErr := tx.Rollback(); rbErr != nil {
					logger.Error("transaction rollback failed", slog.Any("error", rbErr))
				}
				logger.Error("failed to lock request owner", slog.Any("error", err))
				return fmt.Errorf("%s: failed to lock request owner: %w", op, err)
			}

			balance := owner.BalanceRub
			if req.Currency == models.CurrencyUSD {
				balance = owner.BalanceUsd
			}
			if balance.LessThan(req.Amount) {
				// Средств не хватает: заявка принудительно отклоняется и становится терминальной
				if err := s.requestRepo.MarkProcessedTx(ctx, tx, requestID, models.StatusRejected, p.StaffID()); err != nil {
					if rbErr := tx.Rollback(); rbErr != nil {
						logger.Error("transaction rollback failed", slog.Any("error", rbErr))
					}
					logger.Error("failed to force-reject request", slog.Any("error", err))
					return fmt.Errorf("%s: failed to force-reject request: %w", op, err)
				}
				if err := tx.Commit(); err != nil {
					logger.Error("failed to commit transaction", slog.Any("error", err))
					return fmt.Errorf("%s: failed to commit transaction: %w", op, err)
				}
				logger.Warn("withdraw force-rejected: insufficient funds", slog.String("balance", balance.String()))
				return fmt.Errorf("%s: %w", op, ErrInsufficientFunds)
			}

			if _, err := s.userRepo.AdjustBalanceTx(ctx, tx, req.UserID, req.Currency, req.Amount.Neg()); err != nil {
				if rbErr := tx.Rollback(); rbErr != nil {
					logger.Error("transaction rollback failed", slog.Any("error", rbErr))
				}
				logger.Error("failed to debit withdraw", slog.Any("error", err))
				return fmt.Errorf("%s: failed to debit withdraw: %w", op, err)
			}
		}
	}

	if err := s.requestRepo.MarkProcessedTx(ctx, tx, requestID, decision, p.StaffID()); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error("transaction rollback failed", slog.Any("error", rbErr))
		}
		logger.Error("failed to mark request processed", slog.Any("error", err))
		return fmt.Errorf("%s: failed to mark request processed: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		logger.Error("failed to commit transaction", slog.Any("error", err))
		return fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	logger.Info("funding request processed")
	return nil
}

// ManageBalance выполняет прямую корректировку баланса персоналом, минуя заявки.
// Пользователь ищется по ФИО без учета регистра. Списание безусловное:
// эта операция не входит в число проверяющих средства.
func (s *staffService) ManageBalance(ctx context.Context, p models.Principal, fullName string, amount decimal.Decimal, operation string, currency models.Currency) (decimal.Decimal, error) {
	const op = "service.StaffService.ManageBalance"
	logger := s.log.With(
		slog.String("op", op),
		slog.String("fullName", fullName),
		slog.String("operation", operation),
	)
	logger.Info("adjusting user balance")

	if amount.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, fmt.Errorf("%s: amount must be positive: %w", op, ErrInvalidArgument)
	}

	delta := amount
	switch operation {
	case OperationAdd:
	case OperationSubtract:
		delta = amount.Neg()
	default:
		return decimal.Zero, fmt.Errorf("%s: unknown operation %q: %w", op, operation, ErrInvalidArgument)
	}

	if err := s.ensureStaff(ctx, p); err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", op, err)
	}

	target, err := s.userRepo.FindUserByNameFold(ctx, fullName)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return decimal.Zero, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}
		logger.Error("failed to find user", slog.Any("error", err))
		return decimal.Zero, fmt.Errorf("%s: failed to find user: %w", op, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("failed to begin transaction", slog.Any("error", err))
		return decimal.Zero, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}

	balance, err := s.userRepo.AdjustBalanceTx(ctx, tx, target.ID, currency, delta)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error("transaction rollback failed", slog.Any("error", rbErr))
		}
		logger.Error("failed to adjust balance", slog.Any("error", err))
		return decimal.Zero, fmt.Errorf("%s: failed to adjust balance: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		logger.Error("failed to commit transaction", slog.Any("error", err))
		return decimal.Zero, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	logger.Info("balance adjusted", slog.Int64("targetUserID", target.ID))
	return balance, nil
}
