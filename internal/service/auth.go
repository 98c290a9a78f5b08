package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/pr-poehali-dev/sidor-bank-casino/internal/domain/models"
	"github.com/pr-poehali-dev/sidor-bank-casino/internal/storage"
)

// AuthService отвечает за регистрацию и вход по ФИО и PIN-коду.
type AuthService struct {
	log             *slog.Logger
	userRepo        storage.UserStorage
	startingBalance decimal.Decimal
}

func NewAuthService(log *slog.Logger, userRepo storage.UserStorage, startingBalance decimal.Decimal) *AuthService {
	return &AuthService{
		log:             log,
		userRepo:        userRepo,
		startingBalance: startingBalance,
	}
}

type AuthServiceInterface interface {
	Register(ctx context.Context, fullName, pinCode string) (*models.User, error)
	Login(ctx context.Context, fullName, pinCode string) (*models.User, error)
}

// Register создает нового пользователя со стартовым рублевым балансом.
// Поиск существующего имени регистрозависимый, так же себя ведет и вход.
func (a *AuthService) Register(ctx context.Context, fullName, pinCode string) (*models.User, error) {
	const op = "auth.Register"
	logger := a.log.With(
		slog.String("op", op),
		slog.String("fullName", fullName),
	)
	logger.Info("registering user")

	_, err := a.userRepo.GetUserByName(ctx, fullName)
	if err == nil {
		logger.Warn("name already taken")
		return nil, fmt.Errorf("%s: %w", op, ErrNameTaken)
	}
	if !errors.Is(err, storage.ErrUserNotFound) {
		logger.Error("failed to check existing user", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to check existing user: %w", op, err)
	}

	newUser := &models.User{
		FullName:   fullName,
		PinCode:    pinCode, // PIN сохраняется как есть, см. DESIGN.md
		BalanceRub: a.startingBalance,
		BalanceUsd: decimal.Zero,
	}
	user, err := a.userRepo.CreateUser(ctx, newUser)
	if err != nil {
		logger.Error("failed to create user", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to create user: %w", op, err)
	}

	logger.Info("user registered", slog.Int64("userID", user.ID))
	return user, nil
}

// Login возвращает пользователя при точном совпадении ФИО и PIN-кода.
// Ошибка одна и та же для неверного имени и неверного PIN: не раскрываем,
// существует ли пользователь.
func (a *AuthService) Login(ctx context.Context, fullName, pinCode string) (*models.User, error) {
	const op = "auth.Login"
	logger := a.log.With(
		slog.String("op", op),
		slog.String("fullName", fullName),
	)
	logger.Info("checking credentials")

	user, err := a.userRepo.GetUserByCredentials(ctx, fullName, pinCode)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			logger.Warn("invalid credentials")
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}
		logger.Error("failed to get user", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to get user: %w", op, err)
	}

	logger.Info("user logged in successfully", slog.Int64("userID", user.ID))
	return user, nil
}
