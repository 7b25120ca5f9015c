// Package identity normalizes the four supported OAuth identity providers
// (GitHub, Google, Microsoft, Gitee) into one user shape. Each provider
// package implements the Provider contract; the Registry selects adapters
// and filters out misconfigured ones so a bad credential set degrades
// gracefully instead of failing at request time.
package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/goliatone/go-sentinel"
)

// Provider defines the adapter contract implemented once per identity
// provider.
type Provider interface {
	// Name returns the provider identifier (e.g., "github", "gitee").
	Name() sentinel.ProviderName

	// AuthCodeURL returns the URL to redirect users for authorization.
	// The state parameter should be included for CSRF protection.
	AuthCodeURL(state string, opts ...AuthCodeOption) string

	// Exchange trades an authorization code for an access token.
	Exchange(ctx context.Context, code string, opts ...ExchangeOption) (*Token, error)

	// UserInfo fetches the user's profile using the access token.
	UserInfo(ctx context.Context, token *Token) (*Profile, error)

	// Transform maps a provider profile into the normalized AppUser. Pure:
	// no I/O, and every adapter populates at minimum id, username, avatar,
	// profile URL, provider, and the join/login timestamps.
	Transform(profile *Profile) *sentinel.AppUser

	// ValidateConfig reports whether the adapter holds real credentials.
	// Providers with placeholder or missing credentials are excluded from
	// the configured set rather than crashing at request time.
	ValidateConfig() ConfigValidation
}

// ConfigValidation is the result of checking an adapter's credentials.
type ConfigValidation struct {
	Valid  bool
	Errors []string
}

// Token represents an OAuth2 token response.
type Token struct {
	AccessToken  string
	TokenType    string
	RefreshToken string
	ExpiresAt    time.Time
	Scopes       []string
	Raw          map[string]any
}

// Profile represents user information fetched from a provider, before
// Transform normalizes it. Raw keeps the provider-specific fields each
// adapter's Transform draws from.
type Profile struct {
	ProviderUserID string
	Provider       sentinel.ProviderName
	Email          string
	EmailVerified  bool
	Name           string
	Username       string
	AvatarURL      string
	ProfileURL     string
	CreatedAt      time.Time
	Raw            map[string]any
}

// AuthCodeOption configures the authorization URL.
type AuthCodeOption func(*authCodeConfig)

// WithScopes sets additional scopes for the auth request.
func WithScopes(scopes ...string) AuthCodeOption {
	return func(c *authCodeConfig) {
		c.scopes = append(c.scopes, scopes...)
	}
}

// WithPKCE enables PKCE with the given code challenge.
func WithPKCE(codeChallenge, method string) AuthCodeOption {
	return func(c *authCodeConfig) {
		c.codeChallenge = codeChallenge
		c.codeChallengeMethod = method
	}
}

// WithRedirectURI overrides the configured callback for this request.
func WithRedirectURI(uri string) AuthCodeOption {
	return func(c *authCodeConfig) {
		c.redirectURI = uri
	}
}

// WithPrompt sets the prompt parameter (e.g., "consent", "select_account").
func WithPrompt(prompt string) AuthCodeOption {
	return func(c *authCodeConfig) {
		c.prompt = prompt
	}
}

// ExchangeOption configures the token exchange.
type ExchangeOption func(*exchangeConfig)

// WithCodeVerifier sets the PKCE code verifier for token exchange.
func WithCodeVerifier(verifier string) ExchangeOption {
	return func(c *exchangeConfig) {
		c.codeVerifier = verifier
	}
}

type authCodeConfig struct {
	scopes              []string
	codeChallenge       string
	codeChallengeMethod string
	prompt              string
	redirectURI         string
}

type exchangeConfig struct {
	codeVerifier string
}

// AuthCodeConfig represents applied auth code options in a provider-friendly form.
type AuthCodeConfig struct {
	Scopes              []string
	CodeChallenge       string
	CodeChallengeMethod string
	Prompt              string
	RedirectURI         string
}

// ExchangeConfig represents applied exchange options in a provider-friendly form.
type ExchangeConfig struct {
	CodeVerifier string
}

// ApplyAuthCodeOptions applies AuthCodeOption values and returns a normalized config.
func ApplyAuthCodeOptions(scopes []string, opts ...AuthCodeOption) AuthCodeConfig {
	cfg := authCodeConfig{scopes: append([]string(nil), scopes...)}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	return AuthCodeConfig{
		Scopes:              cfg.scopes,
		CodeChallenge:       cfg.codeChallenge,
		CodeChallengeMethod: cfg.codeChallengeMethod,
		Prompt:              cfg.prompt,
		RedirectURI:         cfg.redirectURI,
	}
}

// ApplyExchangeOptions applies ExchangeOption values and returns a normalized config.
func ApplyExchangeOptions(opts ...ExchangeOption) ExchangeConfig {
	cfg := exchangeConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	return ExchangeConfig{
		CodeVerifier: cfg.codeVerifier,
	}
}

// placeholderCredentials are values people leave in sample configs. Any of
// them fails validation.
var placeholderCredentials = map[string]struct{}{
	"your-client-id": {}, "your_client_id": {}, "your-client-secret": {},
	"your_client_secret": {}, "client-id": {}, "client-secret": {},
	"changeme": {}, "change-me": {}, "placeholder": {}, "xxx": {},
	"dummy": {}, "todo": {}, "example": {},
}

func notPlaceholder(value any) error {
	s, _ := value.(string)
	if _, found := placeholderCredentials[strings.ToLower(s)]; found {
		return errors.New("must not be a placeholder value")
	}
	return nil
}

// ValidateCredentials checks that a client id/secret pair is present and is
// not a placeholder. Shared by every adapter's ValidateConfig.
func ValidateCredentials(clientID, clientSecret string) ConfigValidation {
	result := ConfigValidation{Valid: true}

	if err := validation.Validate(clientID, validation.Required, validation.By(notPlaceholder)); err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, "client id: "+err.Error())
	}
	if err := validation.Validate(clientSecret, validation.Required, validation.By(notPlaceholder)); err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, "client secret: "+err.Error())
	}

	return result
}
