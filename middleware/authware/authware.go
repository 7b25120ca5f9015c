// Package authware resolves JWT-backed authentication state for inbound
// requests and packages it into four composable route policies. The token
// is treated as a capability: the session registry is the revocation
// source of truth, so a cryptographically valid token whose session is
// gone resolves as unauthenticated.
package authware

import (
	"context"
	"net/http"
	"net/url"

	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"

	"github.com/goliatone/go-sentinel"
)

const (
	defaultTokenLookup = "header:" + router.HeaderAuthorization + ",cookie:" + DefaultCookieName
	defaultContextKey  = "auth"
	defaultLoginURL    = "/login"
)

// DefaultCookieName is the cookie the token falls back to when the
// Authorization header is absent.
const DefaultCookieName = "sentinel_token"

// TokenVerifier verifies a raw token string. sentinel.TokenService
// satisfies it.
type TokenVerifier interface {
	Verify(token string) (*sentinel.SessionClaims, error)
}

// SessionToucher reports session liveness and bumps activity. The
// sentinel.SessionRegistry satisfies it.
type SessionToucher interface {
	Touch(ctx context.Context, id string) (bool, error)
}

// Config wires the middleware to the token and session collaborators.
type Config struct {
	// Verifier validates raw tokens. Required.
	Verifier TokenVerifier

	// Sessions is consulted when a verified token names a session. A dead
	// session downgrades the request to unauthenticated. Optional; when
	// nil the token alone decides.
	Sessions SessionToucher

	// TokenLookup is a comma separated list of extraction sources, e.g.
	// "header:Authorization,cookie:sentinel_token".
	TokenLookup string

	// AuthScheme strips the scheme prefix from header tokens. Defaults to
	// "Bearer".
	AuthScheme string

	// ContextKey is the locals key the resolved AuthContext is stored
	// under.
	ContextKey string

	// LoginURL receives unauthenticated requests under the Mandatory
	// policy, with the original URL in a "redirect" parameter.
	LoginURL string

	// AdminUsers is the allow-list consulted by AdminGate.
	AdminUsers []string

	Logger sentinel.Logger
}

func (cfg Config) withDefaults() Config {
	if cfg.TokenLookup == "" {
		cfg.TokenLookup = defaultTokenLookup
	}
	if cfg.AuthScheme == "" {
		cfg.AuthScheme = "Bearer"
	}
	if cfg.ContextKey == "" {
		cfg.ContextKey = defaultContextKey
	}
	if cfg.LoginURL == "" {
		cfg.LoginURL = defaultLoginURL
	}
	if cfg.Logger == nil {
		cfg.Logger = sentinel.DefaultLogger()
	}
	return cfg
}

// Resolve extracts and verifies the request credential, returning the
// resolved AuthContext. It never returns an error: any failure along the
// way resolves to the unauthenticated shape.
func Resolve(ctx router.Context, cfg Config) *sentinel.AuthContext {
	cfg = cfg.withDefaults()

	raw, err := extractToken(ctx, GetExtractors(cfg.TokenLookup, cfg.AuthScheme))
	if raw == "" || err != nil {
		return sentinel.Unauthenticated()
	}

	claims, err := cfg.Verifier.Verify(raw)
	if err != nil {
		cfg.Logger.Debug("token verification failed: %s", err)
		return sentinel.Unauthenticated()
	}

	user := claims.User()
	if user == nil {
		return sentinel.Unauthenticated()
	}

	auth := sentinel.Authenticated(user, claims.SessionID)

	if claims.SessionID != "" && cfg.Sessions != nil {
		alive, err := cfg.Sessions.Touch(ctx.Context(), claims.SessionID)
		if err != nil {
			cfg.Logger.Error("session touch failed: %s", err)
			return sentinel.Unauthenticated()
		}
		if !alive {
			cfg.Logger.Debug("session %s revoked or expired, treating request as unauthenticated", claims.SessionID)
			return sentinel.Unauthenticated()
		}
	}

	return auth
}

// Attach stores the AuthContext in router locals and the request context
// so both router handlers and context-aware collaborators can see it.
func Attach(ctx router.Context, cfg Config, auth *sentinel.AuthContext) {
	ctx.Locals(cfg.ContextKey, auth)
	ctx.SetContext(sentinel.WithAuthContext(ctx.Context(), auth))
}

// FromRouterContext recovers the AuthContext a policy middleware attached.
func FromRouterContext(ctx router.Context, key string) *sentinel.AuthContext {
	if key == "" {
		key = defaultContextKey
	}
	if auth, ok := ctx.Locals(key).(*sentinel.AuthContext); ok {
		return auth
	}
	return sentinel.Unauthenticated()
}

// Mandatory requires authentication; unauthenticated requests get a 302 to
// the login URL with the original URL in a "redirect" parameter.
func Mandatory(cfg Config) router.MiddlewareFunc {
	cfg = cfg.withDefaults()
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			auth := Resolve(ctx, cfg)
			if !auth.IsAuthenticated() {
				target := cfg.LoginURL + "?redirect=" + url.QueryEscape(ctx.OriginalURL())
				return ctx.Redirect(target, http.StatusFound)
			}
			Attach(ctx, cfg, auth)
			return next(ctx)
		}
	}
}

// Optional attaches whatever the resolver produced and always continues;
// the route decides what unauthenticated means.
func Optional(cfg Config) router.MiddlewareFunc {
	cfg = cfg.withDefaults()
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			Attach(ctx, cfg, Resolve(ctx, cfg))
			return next(ctx)
		}
	}
}

// APIStrict requires authentication and answers JSON; there is no redirect
// surface for API clients.
func APIStrict(cfg Config) router.MiddlewareFunc {
	cfg = cfg.withDefaults()
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			auth := Resolve(ctx, cfg)
			if !auth.IsAuthenticated() {
				return ctx.JSON(router.StatusUnauthorized, map[string]any{
					"error":         "authentication required",
					"authenticated": false,
				})
			}
			Attach(ctx, cfg, auth)
			return next(ctx)
		}
	}
}

// AdminGate requires authentication plus membership in the configured
// admin allow-list. Members proceed with the admin flag set.
func AdminGate(cfg Config) router.MiddlewareFunc {
	cfg = cfg.withDefaults()

	allowed := make(map[string]struct{}, len(cfg.AdminUsers))
	for _, name := range cfg.AdminUsers {
		allowed[name] = struct{}{}
	}

	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			auth := Resolve(ctx, cfg)
			if !auth.IsAuthenticated() {
				target := cfg.LoginURL + "?redirect=" + url.QueryEscape(ctx.OriginalURL())
				return ctx.Redirect(target, http.StatusFound)
			}

			if _, ok := allowed[auth.User().Username]; !ok {
				cfg.Logger.Warn("admin access denied: %s", print.MaybePrettyJSON(map[string]any{
					"username": auth.User().Username,
					"path":     ctx.OriginalURL(),
				}))
				return ctx.JSON(router.StatusForbidden, map[string]any{
					"error":   "forbidden",
					"message": "admin access required",
				})
			}

			Attach(ctx, cfg, auth.AsAdmin())
			return next(ctx)
		}
	}
}
