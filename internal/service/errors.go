package service

import "errors"

// Ошибки бизнес-логики. Транспортный слой отображает их в HTTP-статусы
// через errors.Is, поэтому каждая ошибка сервиса оборачивает одну из этих.
var (
	ErrUserNotFound        = errors.New("user not found")
	ErrNameTaken           = errors.New("user with this name already exists")
	ErrInvalidCredentials  = errors.New("invalid name or pin code")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrRequestNotFound     = errors.New("request not found")
	ErrForbidden           = errors.New("staff privilege required")
	ErrUnsupportedExchange = errors.New("unsupported exchange direction")
	ErrInvalidArgument     = errors.New("invalid argument")
)
