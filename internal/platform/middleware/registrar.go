package middleware

import (
	"log/slog"
	"net/http"

	"landledger/internal/registrar/secrets"
	id "landledger/pkg/domain"
	"landledger/pkg/requestcontext"
)

// RegistrarKeyAuth authenticates cadastral survey offices that push parcel
// registrations with a pre-shared API key instead of a bearer token. The key
// is verified against the configured bcrypt hash and the request proceeds as
// the registrar service identity. Requests without the header fall through to
// the next authenticator.
func RegistrarKeyAuth(keyHash string, serviceID id.UserID, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-Registrar-Key")
			if key == "" || keyHash == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			if err := secrets.Verify(key, keyHash); err != nil {
				logger.WarnContext(ctx, "registrar key rejected",
					"request_id", requestcontext.RequestID(ctx),
				)
				writeAuthError(w, "Invalid registrar key")
				return
			}

			ctx = requestcontext.WithUserID(ctx, serviceID)
			ctx = requestcontext.WithRole(ctx, requestcontext.RoleRegistrar)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
