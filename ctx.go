package sentinel

import "context"

// AuthContext is the per-request resolved authentication state. It is
// request-scoped and never persisted. Exactly one of two shapes holds:
// unauthenticated with no user, or authenticated with a user and the
// session id the token named. The constructors are the only way to build
// one, so no partial state is representable.
type AuthContext struct {
	authenticated bool
	user          *AppUser
	sessionID     string
	admin         bool
}

// Unauthenticated is the resolved state for a request with no usable
// credential.
func Unauthenticated() *AuthContext {
	return &AuthContext{}
}

// Authenticated is the resolved state for a verified token bound to a live
// session.
func Authenticated(user *AppUser, sessionID string) *AuthContext {
	if user == nil {
		return Unauthenticated()
	}
	return &AuthContext{
		authenticated: true,
		user:          user,
		sessionID:     sessionID,
	}
}

// IsAuthenticated reports whether the request carried a valid credential.
func (a *AuthContext) IsAuthenticated() bool {
	return a != nil && a.authenticated
}

// User returns the partial AppUser reconstructed from token claims, nil
// when unauthenticated.
func (a *AuthContext) User() *AppUser {
	if a == nil {
		return nil
	}
	return a.user
}

// SessionID returns the session the token is bound to, empty when
// unauthenticated or when the token carried no session.
func (a *AuthContext) SessionID() string {
	if a == nil {
		return ""
	}
	return a.sessionID
}

// IsAdmin reports whether the admin gate granted elevated access.
func (a *AuthContext) IsAdmin() bool {
	return a != nil && a.admin
}

// AsAdmin returns a copy with the admin flag set. Only the admin gate
// middleware calls this.
func (a *AuthContext) AsAdmin() *AuthContext {
	if a == nil || !a.authenticated {
		return Unauthenticated()
	}
	cp := *a
	cp.admin = true
	return &cp
}

var authCtxKey = &contextKey{"auth"}

type contextKey struct {
	name string
}

// WithAuthContext sets the resolved AuthContext in the given context.
func WithAuthContext(ctx context.Context, auth *AuthContext) context.Context {
	return context.WithValue(ctx, authCtxKey, auth)
}

// AuthFromContext finds the resolved AuthContext. Callers that get false
// should treat the request as unauthenticated.
func AuthFromContext(ctx context.Context) (*AuthContext, bool) {
	raw, ok := ctx.Value(authCtxKey).(*AuthContext)
	return raw, ok
}
