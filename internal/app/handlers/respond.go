package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/pr-poehali-dev/sidor-bank-casino/internal/domain/models"
	"github.com/pr-poehali-dev/sidor-bank-casino/internal/service"
)

var validate = validator.New()

// userDTO описывает представление пользователя в ответах API.
// Балансы отдаются числами, как в исходном API.
type userDTO struct {
	ID         int64   `json:"id"`
	FullName   string  `json:"full_name"`
	IsStaff    bool    `json:"is_staff"`
	BalanceRub float64 `json:"balance_rub"`
	BalanceUsd float64 `json:"balance_usd"`
}

func newUserDTO(u *models.User) userDTO {
	return userDTO{
		ID:         u.ID,
		FullName:   u.FullName,
		IsStaff:    u.IsStaff,
		BalanceRub: u.BalanceRub.InexactFloat64(),
		BalanceUsd: u.BalanceUsd.InexactFloat64(),
	}
}

func respondJSON(log *slog.Logger, w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("failed to encode response", slog.Any("error", err))
	}
}

func respondError(log *slog.Logger, w http.ResponseWriter, status int, message string) {
	respondJSON(log, w, status, map[string]string{"error": message})
}

// errorStatus отображает ошибку сервиса в HTTP-статус и сообщение для клиента.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Неверное ФИО или PIN-код"
	case errors.Is(err, service.ErrNameTaken):
		return http.StatusBadRequest, "Пользователь с таким ФИО уже существует"
	case errors.Is(err, service.ErrUserNotFound):
		return http.StatusNotFound, "Пользователь не найден"
	case errors.Is(err, service.ErrInsufficientFunds):
		return http.StatusBadRequest, "Недостаточно средств"
	case errors.Is(err, service.ErrRequestNotFound):
		return http.StatusNotFound, "Заявка не найдена"
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, "Доступ запрещен"
	case errors.Is(err, service.ErrUnsupportedExchange), errors.Is(err, service.ErrInvalidArgument):
		return http.StatusBadRequest, "Некорректный запрос"
	default:
		return http.StatusInternalServerError, "Внутренняя ошибка сервера"
	}
}
