package middleware

import (
	"fmt"
	"net/http"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ossfeed/coordinator/internal/handler/http/respond"
)

// AppKeyAuth authenticates worker and consumer calls via the shared app-key
// header: a JWT signed with the installation's HMAC secret, carrying no
// claims of its own beyond standard registered ones. There is no
// per-caller role distinction; any caller holding a validly-signed key may
// call any registered surface.
func AppKeyAuth(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get("X-App-Key")
			if raw == "" {
				respond.SafeError(w, http.StatusUnauthorized, fmt.Errorf("missing X-App-Key header"))
				return
			}

			token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
				}
				return secret, nil
			})
			if err != nil || !token.Valid {
				respond.SafeError(w, http.StatusUnauthorized, fmt.Errorf("invalid app key"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
