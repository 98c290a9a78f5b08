package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pr-poehali-dev/sidor-bank-casino/internal/service"
)

// AuthRequest описывает тело запроса регистрации и входа: ФИО и 4-значный PIN-код.
type AuthRequest struct {
	FullName string `json:"full_name" validate:"required"`
	PinCode  string `json:"pin_code" validate:"required,len=4"`
}

// AuthResponse описывает ответ при успешной регистрации или входе.
type AuthResponse struct {
	Success bool    `json:"success"`
	User    userDTO `json:"user"`
	Message string  `json:"message"`
}

// RegisterHandler обрабатывает POST /api/auth/register.
func RegisterHandler(log *slog.Logger, authService service.AuthServiceInterface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.RegisterHandler"
		logger := log.With(slog.String("op", op))

		req, ok := decodeAuthRequest(logger, w, r)
		if !ok {
			return
		}

		user, err := authService.Register(r.Context(), req.FullName, req.PinCode)
		if err != nil {
			logger.Error("registration failed", slog.Any("error", err))
			status, msg := errorStatus(err)
			respondError(logger, w, status, msg)
			return
		}

		respondJSON(logger, w, http.StatusOK, AuthResponse{
			Success: true,
			User:    newUserDTO(user),
			Message: "Регистрация успешна! Начальный баланс: 1000₽",
		})
	}
}

// LoginHandler обрабатывает POST /api/auth/login.
func LoginHandler(log *slog.Logger, authService service.AuthServiceInterface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.LoginHandler"
		logger := log.With(slog.String("op", op))

		req, ok := decodeAuthRequest(logger, w, r)
		if !ok {
			return
		}

		user, err := authService.Login(r.Context(), req.FullName, req.PinCode)
		if err != nil {
			logger.Warn("login failed", slog.Any("error", err))
			status, msg := errorStatus(err)
			respondError(logger, w, status, msg)
			return
		}

		respondJSON(logger, w, http.StatusOK, AuthResponse{
			Success: true,
			User:    newUserDTO(user),
			Message: "Вход выполнен успешно",
		})
	}
}

func decodeAuthRequest(logger *slog.Logger, w http.ResponseWriter, r *http.Request) (AuthRequest, bool) {
	var req AuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Error("invalid request: decoding error", slog.Any("error", err))
		respondError(logger, w, http.StatusBadRequest, "Введите ФИО и 4-значный PIN-код")
		return req, false
	}

	req.FullName = strings.TrimSpace(req.FullName)
	req.PinCode = strings.TrimSpace(req.PinCode)

	// Валидация структуры запроса с использованием validator
	if err := validate.Struct(req); err != nil {
		logger.Error("invalid request: validation error", slog.Any("error", err))
		respondError(logger, w, http.StatusBadRequest, "Введите ФИО и 4-значный PIN-код")
		return req, false
	}
	return req, true
}
