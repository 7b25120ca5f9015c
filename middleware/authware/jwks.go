package authware

import (
	stderrors "errors"
	"log"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"

	"github.com/goliatone/go-sentinel"
)

// JWKSVerifier validates tokens signed by an external issuer whose keys
// are published as one or more JWK Sets. It satisfies TokenVerifier, so
// the policies accept it interchangeably with the local token service.
type JWKSVerifier struct {
	keyfunc jwt.Keyfunc
	parser  *jwt.Parser
}

// NewJWKSVerifier fetches and caches the JWK Sets at the given URLs.
// Unknown key ids trigger a rate-limited background refresh.
func NewJWKSVerifier(urls []string, opts ...JWKSOption) (*JWKSVerifier, error) {
	if len(urls) == 0 {
		return nil, errors.New("at least one JWK Set URL is required", errors.CategoryBadInput)
	}

	cfg := jwksConfig{refreshInterval: time.Hour}
	for _, opt := range opts {
		opt(&cfg)
	}

	kfOpts := keyfunc.Options{
		RefreshErrorHandler: func(err error) {
			log.Printf("failed to do a background refresh of JWK Set: %s", err)
		},
		RefreshInterval:   cfg.refreshInterval,
		RefreshRateLimit:  time.Minute * 5,
		RefreshTimeout:    time.Second * 10,
		RefreshUnknownKID: true,
	}

	m := make(map[string]keyfunc.Options, len(urls))
	for _, url := range urls {
		m[url] = kfOpts
	}

	multi, err := keyfunc.GetMultiple(m, keyfunc.MultipleOptions{
		KeySelector: keyfunc.KeySelectorFirst,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryOperation, "failed to fetch JWK Sets")
	}

	var parserOpts []jwt.ParserOption
	if len(cfg.validMethods) > 0 {
		parserOpts = append(parserOpts, jwt.WithValidMethods(cfg.validMethods))
	}
	if cfg.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(cfg.issuer))
	}
	if cfg.audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(cfg.audience))
	}

	return &JWKSVerifier{
		keyfunc: multi.Keyfunc,
		parser:  jwt.NewParser(parserOpts...),
	}, nil
}

type jwksConfig struct {
	issuer          string
	audience        string
	validMethods    []string
	refreshInterval time.Duration
}

type JWKSOption func(*jwksConfig)

func WithJWKSIssuer(issuer string) JWKSOption {
	return func(c *jwksConfig) { c.issuer = issuer }
}

func WithJWKSAudience(audience string) JWKSOption {
	return func(c *jwksConfig) { c.audience = audience }
}

func WithJWKSValidMethods(methods ...string) JWKSOption {
	return func(c *jwksConfig) { c.validMethods = methods }
}

func WithJWKSRefreshInterval(interval time.Duration) JWKSOption {
	return func(c *jwksConfig) {
		if interval > 0 {
			c.refreshInterval = interval
		}
	}
}

// Verify implements TokenVerifier.
func (v *JWKSVerifier) Verify(tokenString string) (*sentinel.SessionClaims, error) {
	claims := &sentinel.SessionClaims{}

	token, err := v.parser.ParseWithClaims(tokenString, claims, v.keyfunc)
	if err != nil {
		if stderrors.Is(err, jwt.ErrTokenExpired) {
			return nil, sentinel.ErrTokenExpired
		}
		return nil, sentinel.ErrTokenMalformed
	}
	if !token.Valid {
		return nil, sentinel.ErrTokenMalformed
	}

	return claims, nil
}
