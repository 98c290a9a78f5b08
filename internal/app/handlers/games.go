package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/pr-poehali-dev/sidor-bank-casino/internal/domain/models"
	"github.com/pr-poehali-dev/sidor-bank-casino/internal/identity"
	"github.com/pr-poehali-dev/sidor-bank-casino/internal/service"
)

// RouletteRequest описывает тело запроса игры в рулетку.
type RouletteRequest struct {
	BetAmount float64 `json:"bet_amount" validate:"required,gt=0"`
}

// RouletteResponse описывает исход раунда рулетки.
type RouletteResponse struct {
	Success   bool    `json:"success"`
	Result    string  `json:"result"`
	WinAmount float64 `json:"win_amount"`
	Balance   float64 `json:"balance"`
	Message   string  `json:"message"`
}

// MinesRequest описывает тело запроса игры в мины.
type MinesRequest struct {
	BetAmount   float64 `json:"bet_amount" validate:"required,gt=0"`
	MinesCount  int     `json:"mines_count" validate:"omitempty,min=1,max=24"`
	OpenedCells int     `json:"opened_cells" validate:"omitempty,min=0"`
}

// MinesResponse описывает исход раунда мин. PotentialWin информационный,
// на баланс он не зачисляется.
type MinesResponse struct {
	Success      bool    `json:"success"`
	Mines        []int   `json:"mines"`
	Multiplier   float64 `json:"multiplier"`
	PotentialWin float64 `json:"potential_win"`
	Balance      float64 `json:"balance"`
}

// gameErrorStatus: игры отвечают 400,
// а не 404, если пользователь не найден.
func gameErrorStatus(err error) (int, string) {
	if errors.Is(err, service.ErrUserNotFound) {
		return http.StatusBadRequest, "Пользователь не найден"
	}
	return errorStatus(err)
}

// RouletteHandler обрабатывает POST /api/games/roulette.
func RouletteHandler(log *slog.Logger, gameService service.GameService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.RouletteHandler"
		logger := log.With(slog.String("op", op))

		p, ok := identity.FromContext(r.Context())
		if !ok {
			logger.Error("principal not found in context")
			respondError(logger, w, http.StatusUnauthorized, "Не авторизован")
			return
		}

		var req RouletteRequest
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

		result, err := gameService.PlayRoulette(r.Context(), p.UserID, decimal.NewFromFloat(req.BetAmount))
		if err != nil {
			logger.Warn("roulette round failed", slog.Any("error", err))
			status, msg := gameErrorStatus(err)
			respondError(logger, w, status, msg)
			return
		}

		message := "Вы проиграли!"
		if result.Result == models.ResultWin {
			message = "Вы выиграли!"
		}
		respondJSON(logger, w, http.StatusOK, RouletteResponse{
			Success:   true,
			Result:    result.Result,
			WinAmount: result.WinAmount.InexactFloat64(),
			Balance:   result.Balance.InexactFloat64(),
			Message:   message,
		})
	}
}

// MinesHandler обрабатывает POST /api/games/mines.
func MinesHandler(log *slog.Logger, gameService service.GameService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.MinesHandler"
		logger := log.With(slog.String("op", op))

		p, ok := identity.FromContext(r.Context())
		if !ok {
			logger.Error("principal not found in context")
			respondError(logger, w, http.StatusUnauthorized, "Не авторизован")
			return
		}

		var req MinesRequest
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

		result, err := gameService.PlayMines(r.Context(), p.UserID, decimal.NewFromFloat(req.BetAmount), req.MinesCount, req.OpenedCells)
		if err != nil {
			logger.Warn("mines round failed", slog.Any("error", err))
			status, msg := gameErrorStatus(err)
			respondError(logger, w, status, msg)
			return
		}

		respondJSON(logger, w, http.StatusOK, MinesResponse{
			Success:      true,
			Mines:        result.Mines,
			Multiplier:   result.Multiplier.InexactFloat64(),
			PotentialWin: result.PotentialWin.InexactFloat64(),
			Balance:      result.Balance.InexactFloat64(),
		})
	}
}

// HistoryEntry описывает запись истории игр в ответе API.
type HistoryEntry struct {
	ID        int64           `json:"id"`
	GameType  string          `json:"game_type"`
	BetAmount float64         `json:"bet_amount"`
	Result    string          `json:"result"`
	WinAmount float64         `json:"win_amount"`
	Details   json.RawMessage `json:"details,omitempty"`
}

// HistoryHandler обрабатывает GET /api/games/history.
func HistoryHandler(log *slog.Logger, gameService service.GameService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.HistoryHandler"
		logger := log.With(slog.String("op", op))

		p, ok := identity.FromContext(r.Context())
		if !ok {
			logger.Error("principal not found in context")
			respondError(logger, w, http.StatusUnauthorized, "Не авторизован")
			return
		}

		rounds, err := gameService.History(r.Context(), p.UserID)
		if err != nil {
			logger.Error("failed to get history", slog.Any("error", err))
			status, msg := errorStatus(err)
			respondError(logger, w, status, msg)
			return
		}

		entries := make([]HistoryEntry, 0, len(rounds))
		for _, round := range rounds {
			entries = append(entries, HistoryEntry{
				ID:        round.ID,
				GameType:  round.GameType,
				BetAmount: round.BetAmount.InexactFloat64(),
				Result:    round.Result,
				WinAmount: round.WinAmount.InexactFloat64(),
				Details:   round.Details,
			})
		}
		respondJSON(logger, w, http.StatusOK, entries)
	}
}
