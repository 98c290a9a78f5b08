package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Типы заявок на движение средств.
const (
	RequestDeposit  = "deposit"
	RequestWithdraw = "withdraw"
)

// Статусы заявки. Терминальные статусы (approved/rejected) финальны,
// повторная обработка невозможна.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// FundingRequest представляет заявку пользователя на пополнение или вывод средств.
type FundingRequest struct {
	ID          int64           `json:"id"`
	UserID      int64           `json:"user_id"`
	FullName    string          `json:"full_name,omitempty"` // заполняется через JOIN с таблицей users
	Type        string          `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    Currency        `json:"currency"`
	Status      string          `json:"status"`
	ProcessedBy *int64          `json:"processed_by,omitempty"`
	ProcessedAt *time.Time      `json:"processed_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}
