package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/pr-poehali-dev/sidor-bank-casino/internal/domain/models"
)

type contextKey string

const PrincipalKey contextKey = "principal"

// HeaderUserID это заголовок с идентификатором вызывающего.
// Токенов и криптографии нет: клиент передает голый числовой id.
const HeaderUserID = "X-User-Id"

// Middleware извлекает идентичность из заголовка X-User-Id.
// Отсутствующий или нечисловой заголовок дает 401. Значение 0 дает
// системную идентичность (см. models.Principal).
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get(HeaderUserID)
			if header == "" {
				writeUnauthorized(w)
				return
			}

			userID, err := strconv.ParseInt(header, 10, 64)
			if err != nil || userID < 0 {
				writeUnauthorized(w)
				return
			}

			ctx := context.WithValue(r.Context(), PrincipalKey, models.NewPrincipal(userID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// FromContext извлекает Principal из контекста запроса.
func FromContext(ctx context.Context) (models.Principal, bool) {
	p, ok := ctx.Value(PrincipalKey).(models.Principal)
	return p, ok
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "Не авторизован"})
}
