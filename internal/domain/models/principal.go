package models

// Principal представляет идентичность вызывающего. Зарезервированный идентификатор 0
// обозначает системную идентичность: она проходит проверку персонала без
// обращения к БД, и её действия не записываются в processed_by.
type Principal struct {
	UserID int64
	System bool
}

// NewPrincipal строит Principal из идентификатора, переданного клиентом.
func NewPrincipal(userID int64) Principal {
	return Principal{UserID: userID, System: userID == 0}
}

// StaffID возвращает идентификатор для записи в processed_by:
// nil для системной идентичности.
func (p Principal) StaffID() *int64 {
	if p.System {
		return nil
	}
	id := p.UserID
	return &id
}
