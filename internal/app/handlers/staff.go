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

// PendingRequestDTO описывает заявку в списке панели персонала.
type PendingRequestDTO struct {
	ID        int64   `json:"id"`
	UserID    int64   `json:"user_id"`
	FullName  string  `json:"full_name"`
	Type      string  `json:"type"`
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency"`
	Status    string  `json:"status"`
	CreatedAt string  `json:"created_at"`
}

// ProcessRequestRequest содержит решение персонала по заявке.
type ProcessRequestRequest struct {
	RequestID int64  `json:"request_id" validate:"required,gt=0"`
	Decision  string `json:"decision" validate:"required,oneof=approved rejected"`
}

// ManageBalanceRequest описывает прямую корректировку баланса по ФИО.
type ManageBalanceRequest struct {
	FullName  string  `json:"full_name" validate:"required"`
	Amount    float64 `json:"amount" validate:"required,gt=0"`
	Operation string  `json:"operation" validate:"required,oneof=add subtract"`
	Currency  string  `json:"currency" validate:"required"`
}

// PendingRequestsHandler обрабатывает GET /api/staff/requests.
func PendingRequestsHandler(log *slog.Logger, staffService service.StaffService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.PendingRequestsHandler"
		logger := log.With(slog.String("op", op))

		p, ok := identity.FromContext(r.Context())
		if !ok {
			logger.Error("principal not found in context")
			respondError(logger, w, http.StatusUnauthorized, "Не авторизован")
			return
		}

		requests, err := staffService.ListPending(r.Context(), p)
		if err != nil {
			logger.Warn("failed to list pending requests", slog.Any("error", err))
			status, msg := errorStatus(err)
			respondError(logger, w, status, msg)
			return
		}

		dtos := make([]PendingRequestDTO, 0, len(requests))
		for _, req := range requests {
			dtos = append(dtos, PendingRequestDTO{
				ID:        req.ID,
				UserID:    req.UserID,
				FullName:  req.FullName,
				Type:      req.Type,
				Amount:    req.Amount.InexactFloat64(),
				Currency:  string(req.Currency),
				Status:    req.Status,
				CreatedAt: req.CreatedAt.Format("2006-01-02 15:04:05"),
			})
		}
		respondJSON(logger, w, http.StatusOK, dtos)
	}
}

// ProcessRequestHandler обрабатывает POST /api/staff/requests/process.
func ProcessRequestHandler(log *slog.Logger, staffService service.StaffService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ProcessRequestHandler"
		logger := log.With(slog.String("op", op))

		p, ok := identity.FromContext(r.Context())
		if !ok {
			logger.Error("principal not found in context")
			respondError(logger, w, http.StatusUnauthorized, "Не авторизован")
			return
		}

		var req ProcessRequestRequest
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

		if err := staffService.ProcessRequest(r.Context(), p, req.RequestID, req.Decision); err != nil {
			logger.Warn("failed to process request", slog.Any("error", err))
			status, msg := errorStatus(err)
			respondError(logger, w, status, msg)
			return
		}

		message := "Заявка отклонена"
		if req.Decision == models.StatusApproved {
			message = "Заявка одобрена"
		}
		respondJSON(logger, w, http.StatusOK, map[string]interface{}{
			"success": true,
			"message": message,
		})
	}
}

// ManageBalanceHandler обрабатывает POST /api/staff/balance.
func ManageBalanceHandler(log *slog.Logger, staffService service.StaffService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ManageBalanceHandler"
		logger := log.With(slog.String("op", op))

		p, ok := identity.FromContext(r.Context())
		if !ok {
			logger.Error("principal not found in context")
			respondError(logger, w, http.StatusUnauthorized, "Не авторизован")
			return
		}

		var req ManageBalanceRequest
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

		balance, err := staffService.ManageBalance(r.Context(), p, req.FullName, decimal.NewFromFloat(req.Amount), req.Operation, currency)
		if err != nil {
			logger.Warn("failed to manage balance", slog.Any("error", err))
			status, msg := errorStatus(err)
			respondError(logger, w, status, msg)
			return
		}

		respondJSON(logger, w, http.StatusOK, map[string]interface{}{
			"success": true,
			"balance": balance.InexactFloat64(),
			"message": "Баланс изменен",
		})
	}
}
