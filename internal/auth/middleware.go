package auth

import (
	"io"
	"net/http"
	"strings"

	"github.com/lumen-social/lumen/internal/middleware"
)

// OptionalViewer resolves the viewer identity from a Bearer token when
// one is present. Requests without an Authorization header pass
// through anonymously; a malformed or expired token is rejected with
// 401 rather than silently downgraded, so clients notice a dead
// session.
func OptionalViewer(jwtService *JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			tokenString, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || tokenString == "" {
				writeAuthError(w, r, "Authorization header must be a Bearer token")
				return
			}

			claims, err := jwtService.ValidateToken(tokenString)
			if err != nil {
				writeAuthError(w, r, "Invalid or expired token")
				return
			}
			if claims.Type != TokenTypeAccess {
				writeAuthError(w, r, "Token is not an access token")
				return
			}

			ctx := middleware.SetViewerID(r.Context(), claims.ViewerID())
			middleware.UpdateResponseContext(w, ctx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeAuthError(w http.ResponseWriter, r *http.Request, message string) {
	middleware.UpdateResponseContext(w, middleware.SetErrorCode(r.Context(), "auth_failed"))
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	io.WriteString(w, `{"error":{"code":"auth_failed","message":"`+message+`"}}`)
}
