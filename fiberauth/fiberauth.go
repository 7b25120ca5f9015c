// Package fiberauth adapts the session resolution middleware to
// applications built directly on Fiber rather than the router
// abstraction.
package fiberauth

import (
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	sentinel "github.com/goliatone/go-sentinel"
	"github.com/goliatone/go-sentinel/middleware/authware"
)

// ErrUnableToFindAuth is returned when the context key holds no resolved
// auth context.
var ErrUnableToFindAuth = errors.New(
	"unable to find auth context",
	errors.CategoryInternal,
).WithTextCode("AUTH_CONTEXT_MISSING")

// Config carries the dependencies the fiber gates need.
type Config struct {
	Verifier   authware.TokenVerifier
	Sessions   authware.SessionToucher
	CookieName string
	AuthScheme string
	ContextKey string
	LoginURL   string
	Logger     sentinel.Logger
}

func (c Config) withDefaults() Config {
	if c.CookieName == "" {
		c.CookieName = authware.DefaultCookieName
	}
	if c.AuthScheme == "" {
		c.AuthScheme = "Bearer"
	}
	if c.ContextKey == "" {
		c.ContextKey = "auth"
	}
	if c.LoginURL == "" {
		c.LoginURL = "/login"
	}
	if c.Logger == nil {
		c.Logger = sentinel.DefaultLogger()
	}
	return c
}

// Resolve inspects the request and returns the caller's auth context. It
// never returns an error: any failure resolves to unauthenticated.
func Resolve(c *fiber.Ctx, cfg Config) *sentinel.AuthContext {
	cfg = cfg.withDefaults()

	token := tokenFromRequest(c, cfg)
	if token == "" {
		return sentinel.Unauthenticated()
	}

	claims, err := cfg.Verifier.Verify(token)
	if err != nil {
		cfg.Logger.Debug("token rejected: %v", err)
		return sentinel.Unauthenticated()
	}

	auth := sentinel.Authenticated(claims.User(), claims.SessionID)

	if claims.SessionID != "" && cfg.Sessions != nil {
		alive, err := cfg.Sessions.Touch(c.UserContext(), claims.SessionID)
		if err != nil {
			cfg.Logger.Error("session touch failed: %v", err)
			return sentinel.Unauthenticated()
		}
		if !alive {
			return sentinel.Unauthenticated()
		}
	}

	return auth
}

// Mandatory requires an authenticated caller and redirects browsers to the
// login page, carrying the rejected URL in the redirect query parameter.
func Mandatory(cfg Config) fiber.Handler {
	cfg = cfg.withDefaults()
	return func(c *fiber.Ctx) error {
		auth := Resolve(c, cfg)
		if !auth.IsAuthenticated() {
			target := cfg.LoginURL + "?redirect=" + url.QueryEscape(c.OriginalURL())
			return c.Redirect(target, fiber.StatusFound)
		}
		c.Locals(cfg.ContextKey, auth)
		return c.Next()
	}
}

// Optional resolves the caller when possible and continues either way.
func Optional(cfg Config) fiber.Handler {
	cfg = cfg.withDefaults()
	return func(c *fiber.Ctx) error {
		c.Locals(cfg.ContextKey, Resolve(c, cfg))
		return c.Next()
	}
}

// APIStrict requires an authenticated caller and answers JSON on failure.
func APIStrict(cfg Config) fiber.Handler {
	cfg = cfg.withDefaults()
	return func(c *fiber.Ctx) error {
		auth := Resolve(c, cfg)
		if !auth.IsAuthenticated() {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":         "authentication required",
				"authenticated": false,
			})
		}
		c.Locals(cfg.ContextKey, auth)
		return c.Next()
	}
}

// FromContext returns the auth context a gate stored for this request.
func FromContext(c *fiber.Ctx, key string) (*sentinel.AuthContext, error) {
	val := c.Locals(key)
	if val == nil {
		return nil, ErrUnableToFindAuth
	}
	auth, ok := val.(*sentinel.AuthContext)
	if !ok {
		return nil, ErrUnableToFindAuth
	}
	return auth, nil
}

// SetTokenCookie stores the session token as an HTTP-only cookie.
func SetTokenCookie(c *fiber.Ctx, name, token string, expires time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    token,
		Expires:  expires,
		HTTPOnly: true,
	})
}

// ClearTokenCookie expires the session cookie.
func ClearTokenCookie(c *fiber.Ctx, name string) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
	})
}

func tokenFromRequest(c *fiber.Ctx, cfg Config) string {
	header := c.Get(fiber.HeaderAuthorization)
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], cfg.AuthScheme) {
			return strings.TrimSpace(parts[1])
		}
		if len(parts) == 1 {
			return strings.TrimSpace(parts[0])
		}
	}
	return c.Cookies(cfg.CookieName)
}
