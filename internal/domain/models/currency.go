package models

import "fmt"

// Currency обозначает валюту кошелька. Колонка баланса в БД выбирается
// только через явный switch по этому типу, никакой сборки имен колонок из строк.
type Currency string

const (
	CurrencyRUB Currency = "RUB"
	CurrencyUSD Currency = "USD"
)

// ParseCurrency проверяет, что строка является одной из поддерживаемых валют.
func ParseCurrency(s string) (Currency, error) {
	switch Currency(s) {
	case CurrencyRUB:
		return CurrencyRUB, nil
	case CurrencyUSD:
		return CurrencyUSD, nil
	default:
		return "", fmt.Errorf("unknown currency: %q", s)
	}
}
