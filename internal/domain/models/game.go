package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Типы игр.
const (
	GameRoulette = "roulette"
	GameMines    = "mines"
)

// Результаты раунда.
const (
	ResultWin  = "win"
	ResultLoss = "loss"
)

// GameRound представляет запись в истории игр. Записи только добавляются,
// никогда не изменяются и не удаляются.
type GameRound struct {
	ID        int64           `json:"id"`
	UserID    int64           `json:"user_id"`
	GameType  string          `json:"game_type"`
	BetAmount decimal.Decimal `json:"bet_amount"`
	Result    string          `json:"result"`
	WinAmount decimal.Decimal `json:"win_amount"`
	Details   []byte          `json:"details,omitempty"` // jsonb, например позиции мин
	CreatedAt time.Time       `json:"created_at"`
}
