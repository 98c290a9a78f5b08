package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/pr-poehali-dev/sidor-bank-casino/internal/domain/models"
	"github.com/pr-poehali-dev/sidor-bank-casino/internal/storage"
)

// Поле для мин фиксированное, 5x5.
const minesGridSize = 25

// RouletteResult описывает исход раунда рулетки.
type RouletteResult struct {
	Result    string
	WinAmount decimal.Decimal
	Balance   decimal.Decimal
}

// MinesResult описывает исход раунда мин. PotentialWin информационный:
// в этом потоке выигрыш на баланс не начисляется, списывается только ставка.
type MinesResult struct {
	Mines        []int
	Multiplier   decimal.Decimal
	PotentialWin decimal.Decimal
	Balance      decimal.Decimal
}

// GameService определяет игровые операции. Игры всегда идут на рублевый баланс.
type GameService interface {
	PlayRoulette(ctx context.Context, userID int64, bet decimal.Decimal) (*RouletteResult, error)
	PlayMines(ctx context.Context, userID int64, bet decimal.Decimal, minesCount, openedCells int) (*MinesResult, error)
	History(ctx context.Context, userID int64) ([]*models.GameRound, error)
}

type gameService struct {
	log          *slog.Logger
	db           *sql.DB
	userRepo     storage.UserStorage
	historyRepo  storage.GameHistoryStorage
	rnd          *rand.Rand
	defaultMines int
}

func NewGameService(log *slog.Logger, db *sql.DB, userRepo storage.UserStorage, historyRepo storage.GameHistoryStorage, rnd *rand.Rand, defaultMines int) GameService {
	return &gameService{
		log:          log,
		db:           db,
		userRepo:     userRepo,
		historyRepo:  historyRepo,
		rnd:          rnd,
		defaultMines: defaultMines,
	}
}

// PlayRoulette списывает ставку и разыгрывает равновероятный исход:
// при выигрыше выплата 2x ставки, при проигрыше ничего. Проверка средств, изменение
// баланса и запись истории выполняются в одной транзакции.
func (s *gameService) PlayRoulette(ctx context.Context, userID int64, bet decimal.Decimal) (*RouletteResult, error) {
	const op = "service.GameService.PlayRoulette"
	logger := s.log.With(slog.String("op", op), slog.Int64("userID", userID), slog.String("bet", bet.String()))
	logger.Info("starting roulette round")

	if bet.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%s: bet must be positive: %w", op, ErrInvalidArgument)
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

	if user.BalanceRub.LessThan(bet) {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error("transaction rollback failed", slog.Any("error", rbErr))
		}
		logger.Warn("insufficient funds", slog.String("balance", user.BalanceRub.String()))
		return nil, fmt.Errorf("%s: %w", op, ErrInsufficientFunds)
	}

	win := s.rnd.Intn(2) == 1
	result := models.ResultLoss
	winAmount := decimal.Zero
	if win {
		result = models.ResultWin
		winAmount = bet.Mul(decimal.NewFromInt(2))
	}
	delta := winAmount.Sub(bet)

	balance, err := s.userRepo.AdjustBalanceTx(ctx, tx, userID, models.CurrencyRUB, delta)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error("transaction rollback failed", slog.Any("error", rbErr))
		}
		logger.Error("failed to adjust balance", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to adjust balance: %w", op, err)
	}

	if err := s.historyRepo.CreateRoundTx(ctx, tx, userID, models.GameRoulette, bet, result, winAmount, nil); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error("transaction rollback failed", slog.Any("error", rbErr))
		}
		logger.Error("failed to record game round", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to record game round: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		logger.Error("failed to commit transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	logger.Info("roulette round completed", slog.String("result", result))
	return &RouletteResult{Result: result, WinAmount: winAmount, Balance: balance}, nil
}

type minesDetails struct {
	MinesCount int   `json:"mines_count"`
	Mines      []int `json:"mines"`
}

// PlayMines разыгрывает раунд мин: расставляет мины, считает потенциальный
// выигрыш и безусловно списывает ставку. Выигрыш на баланс не начисляется:
// в истории раунд помечается result=win с win_amount=0.
func (s *gameService) PlayMines(ctx context.Context, userID int64, bet decimal.Decimal, minesCount, openedCells int) (*MinesResult, error) {
	const op = "service.GameService.PlayMines"
	logger := s.log.With(slog.String("op", op), slog.Int64("userID", userID), slog.String("bet", bet.String()))
	logger.Info("starting mines round")

	if bet.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%s: bet must be positive: %w", op, ErrInvalidArgument)
	}
	if minesCount == 0 {
		minesCount = s.defaultMines
	}
	if minesCount < 1 || minesCount >= minesGridSize {
		return nil, fmt.Errorf("%s: mines count out of range: %w", op, ErrInvalidArgument)
	}
	if openedCells < 0 || openedCells > minesGridSize-minesCount {
		return nil, fmt.Errorf("%s: opened cells out of range: %w", op, ErrInvalidArgument)
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

	if user.BalanceRub.LessThan(bet) {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error("transaction rollback failed", slog.Any("error", rbErr))
		}
		logger.Warn("insufficient funds", slog.String("balance", user.BalanceRub.String()))
		return nil, fmt.Errorf("%s: %w", op, ErrInsufficientFunds)
	}

	// minesCount различных позиций из 25 клеток, равновероятно без повторов
	mines := s.rnd.Perm(minesGridSize)[:minesCount]
	sort.Ints(mines)

	multiplier := decimal.NewFromFloat(1 + float64(openedCells)*0.3*(float64(minesCount)/10)).Round(2)
	potentialWin := bet.Mul(multiplier).Round(2)

	balance, err := s.userRepo.AdjustBalanceTx(ctx, tx, userID, models.CurrencyRUB, bet.Neg())
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error("transaction rollback failed", slog.Any("error", rbErr))
		}
		logger.Error("failed to adjust balance", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to adjust balance: %w", op, err)
	}

	details, err := json.Marshal(minesDetails{MinesCount: minesCount, Mines: mines})
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error("transaction rollback failed", slog.Any("error", rbErr))
		}
		return nil, fmt.Errorf("%s: failed to marshal details: %w", op, err)
	}

	if err := s.historyRepo.CreateRoundTx(ctx, tx, userID, models.GameMines, bet, models.ResultWin, decimal.Zero, details); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error("transaction rollback failed", slog.Any("error", rbErr))
		}
		logger.Error("failed to record game round", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to record game round: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		logger.Error("failed to commit transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	logger.Info("mines round completed", slog.Int("minesCount", minesCount))
	return &MinesResult{Mines: mines, Multiplier: multiplier, PotentialWin: potentialWin, Balance: balance}, nil
}

// History возвращает историю раундов пользователя.
func (s *gameService) History(ctx context.Context, userID int64) ([]*models.GameRound, error) {
	const op = "service.GameService.History"

	rounds, err := s.historyRepo.GetRoundsByUserID(ctx, userID)
	if err != nil {
		s.log.Error("failed to get game history", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to get game history: %w", op, err)
	}
	return rounds, nil
}
