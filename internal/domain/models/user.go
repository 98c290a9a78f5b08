package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User представляет пользователя казино
type User struct {
	ID         int64
	FullName   string
	PinCode    string // PIN хранится открытым текстом, см. DESIGN.md
	IsStaff    bool
	BalanceRub decimal.Decimal
	BalanceUsd decimal.Decimal
	CreatedAt  time.Time
}
