package testutil

import (
	"net/http"
	"time"

	id "landledger/pkg/domain"
	"landledger/pkg/requestcontext"
)

// WithCaller adds an authenticated caller and role to the request context.
// This simulates what the auth middleware would do for authenticated requests.
func WithCaller(req *http.Request, userID id.UserID, role requestcontext.Role) *http.Request {
	ctx := requestcontext.WithUserID(req.Context(), userID)
	ctx = requestcontext.WithRole(ctx, role)
	return req.WithContext(ctx)
}

// WithRequestTime pins the request time so deadline and claim-window checks
// are deterministic in tests.
func WithRequestTime(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}
