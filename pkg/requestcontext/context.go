// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values.
//
// Middleware sets values; services and stores read them without importing
// net/http. The request time accessor doubles as the engines' clock: deadlines
// and claim windows are evaluated lazily against Now(ctx), so tests can pin
// time with WithTime instead of sleeping.
package requestcontext

import (
	"context"
	"time"

	id "landledger/pkg/domain"
)

// Context key types (unexported for encapsulation).
type (
	userIDKey      struct{}
	roleKey        struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
	deviceKey      struct{}
)

// Exported context keys for tests that need raw context.WithValue.
var (
	ContextKeyUserID      = userIDKey{}
	ContextKeyRole        = roleKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
	ContextKeyDevice      = deviceKey{}
)

// Role is the coarse authorization role resolved by the identity subsystem.
type Role string

const (
	RoleCitizen    Role = "citizen"
	RoleGovernment Role = "government"
	RoleRegistrar  Role = "registrar"
	RoleSurveyor   Role = "surveyor"
	RoleAdmin      Role = "admin"
)

// IsValid reports whether the role is one of the supported values.
func (r Role) IsValid() bool {
	switch r {
	case RoleCitizen, RoleGovernment, RoleRegistrar, RoleSurveyor, RoleAdmin:
		return true
	}
	return false
}

func WithUserID(ctx context.Context, userID id.UserID) context.Context {
	return context.WithValue(ctx, ContextKeyUserID, userID)
}

// UserID returns the authenticated caller, or the nil UserID when absent.
func UserID(ctx context.Context) id.UserID {
	userID, ok := ctx.Value(ContextKeyUserID).(id.UserID)
	if !ok {
		return id.UserID{}
	}
	return userID
}

func WithRole(ctx context.Context, role Role) context.Context {
	return context.WithValue(ctx, ContextKeyRole, role)
}

// CallerRole returns the caller's role, defaulting to citizen.
func CallerRole(ctx context.Context) Role {
	role, ok := ctx.Value(ContextKeyRole).(Role)
	if !ok {
		return RoleCitizen
	}
	return role
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

func RequestID(ctx context.Context) string {
	requestID, ok := ctx.Value(ContextKeyRequestID).(string)
	if !ok {
		return ""
	}
	return requestID
}

// WithTime pins the request time. Middleware stamps it at ingress so one
// request observes a single instant; tests use it to cross deadlines without
// sleeping.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}

// Now returns the pinned request time, falling back to the wall clock.
func Now(ctx context.Context) time.Time {
	t, ok := ctx.Value(ContextKeyRequestTime).(time.Time)
	if !ok {
		return time.Now()
	}
	return t
}

// Device is a parsed user-agent summary attached to audit entries.
type Device struct {
	Name   string
	OS     string
	Mobile bool
	RawUA  string
}

func WithDevice(ctx context.Context, d Device) context.Context {
	return context.WithValue(ctx, ContextKeyDevice, d)
}

func DeviceInfo(ctx context.Context) (Device, bool) {
	d, ok := ctx.Value(ContextKeyDevice).(Device)
	return d, ok
}
