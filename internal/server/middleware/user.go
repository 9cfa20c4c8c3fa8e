package middleware

import (
	"net/http"

	"github.com/google/uuid"
)

func RequireUser() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			uid, ok := UserIDFromContext(r.Context())
			if !ok || uid == uuid.Nil {
				http.Error(w, `{"title":"Forbidden","status":403,"detail":"valid user identity required"}`, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
