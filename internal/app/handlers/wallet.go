package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/pr-poehali-dev/sidor-bank-casino/internal/domain/models"
	"github.com/pr-poehali-dev/sidor-bank-casino/internal/identity"
	"github.com/pr-poehali-dev/sidor-bank-casino/internal/service"
)

// BalancesResponse содержит текущие балансы кошелька.
type BalancesResponse struct {
	BalanceRub float64 `json:"balance_rub"`
	BalanceUsd float64 `json:"balance_usd"`
}

// ExchangeRequest описывает тело запроса обмена валюты.
type ExchangeRequest struct {
	FromCurrency string  `json:"from_currency" validate:"required"`
	ToCurrency   string  `json:"to_currency" validate:"required"`
	Amount       float64 `json:"amount" validate:"required,gt=0"`
}

// ExchangeResponse описывает ответ при успешном обмене.
type ExchangeResponse struct {
	Success bool             `json:"success"`
	Balance BalancesResponse `json:"balance"`
	Message string           `json:"message"`
}

// CreateRequestRequest описывает тело заявки на пополнение или вывод средств.
type CreateRequestRequest struct {
	Type     string  `json:"type" validate:"required,oneof=deposit withdraw"`
	Amount   float64 `json:"amount" validate:"required,gt=0"`
	Currency string  `json:"currency" validate:"required"`
}

// CreateRequestResponse описывает ответ при создании заявки.
type CreateRequestResponse struct {
	Success   bool   `json:"success"`
	RequestID int64  `json:"request_id"`
	Message   string `json:"message"`
}

// BalanceHandler обрабатывает GET /api/wallet.
func BalanceHandler(log *slog.Logger, walletService service.WalletService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.BalanceHandler"
		logger := log.With(slog.String("op", op))

		p, ok := identity.FromContext(r.Context())
		if !ok {
			logger.Error("principal not found in context")
			respondError(logger, w, http.StatusUnauthorized, "Не авторизован")
			return
		}

		balances, err := walletService.GetBalances(r.Context(), p.UserID)
		if err != nil {
			logger.Error("failed to get balances", slog.Any("error", err))
			status, msg := errorStatus(err)
			respondError(logger, w, status, msg)
			return
		}

		respondJSON(logger, w, http.StatusOK, BalancesResponse{
			BalanceRub: balances.Rub.InexactFloat64(),
			BalanceUsd: balances.Usd.InexactFloat64(),
		})
	}
}

// ExchangeHandler обрабатывает POST /api/wallet/exchange.
func ExchangeHandler(log *slog.Logger, walletService service.WalletService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ExchangeHandler"
		logger := log.With(slog.String("op", op))

		p, ok := identity.FromContext(r.Context())
		if !ok {
			logger.Error("principal not found in context")
			respondError(logger, w, http.StatusUnauthorized, "Не авторизован")
			return
		}

		var req ExchangeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Error("invalid request: decoding error", slog.Any("error", err))
			respondError(logger, w, http.StatusBadRequest, "Некорректный запрос")
			return
		}
		if err := validate.Struct(req); err != nil {
			logger.Error("invalid request: validation error", slog.Any("error", err))
			respondError(logger, w, http.StatusBadRequest, "Некорректный запрос")
			return
		}

		from, err := models.ParseCurrency(req.FromCurrency)
		if err != nil {
			respondError(logger, w, http.StatusBadRequest, "Некорректный запрос")
			return
		}
		to, err := models.ParseCurrency(req.ToCurrency)
		if err != nil {
			respondError(logger, w, http.StatusBadRequest, "Некорректный запрос")
			return
		}

		balances, err := walletService.Exchange(r.Context(), p.UserID, from, to, decimal.NewFromFloat(req.Amount))
		if err != nil {
			logger.Warn("exchange failed", slog.Any("error", err))
			status, msg := errorStatus(err)
			respondError(logger, w, status, msg)
			return
		}

		respondJSON(logger, w, http.StatusOK, ExchangeResponse{
			Success: true,
			Balance: BalancesResponse{
				BalanceRub: balances.Rub.InexactFloat64(),
				BalanceUsd: balances.Usd.InexactFloat64(),
			},
			Message: "Обмен выполнен успешно",
		})
	}
}

// CreateRequestHandler обрабатывает POST /api/wallet/requests.
func CreateRequestHandler(log *slog.Logger, walletService service.WalletService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.CreateRequestHandler"
		logger := log.With(slog.String("op", op))

		p, ok := identity.FromContext(r.Context())
		if !ok {
			logger.Error("principal not found in context")
			respondError(logger, w, http.StatusUnauthorized, "Не авторизован")
			return
		}

		var req CreateRequestRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Error("invalid request: decoding error", slog.Any("error", err))
			respondError(logger, w, http.StatusBadRequest, "Некорректный запрос")
			return
		}
		if err := validate.Struct(req); err != nil {
			logger.Error("invalid request: validation error", slog.Any("error", err))
			respondError(logger, w, http.StatusBadRequest, "Некорректный запрос")
			return
		}

		currency, err := models.ParseCurrency(req.Currency)
		if err != nil {
			respondError(logger, w, http.StatusBadRequest, "Некорректный запрос")
			return
		}

		id, err := walletService.CreateRequest(r.Context(), p.UserID, req.Type, decimal.NewFromFloat(req.Amount), currency)
		if err != nil {
			logger.Error("failed to create request", slog.Any("error", err))
			status, msg := errorStatus(err)
			respondError(logger, w, status, msg)
			return
		}

		respondJSON(logger, w, http.StatusOK, CreateRequestResponse{
			Success:   true,
			RequestID: id,
			Message:   "Заявка создана",
		})
	}
}
