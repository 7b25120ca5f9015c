package microsoft

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-sentinel"
	"github.com/goliatone/go-sentinel/identity"
)

const (
	defaultAuthURL  = "https://login.microsoftonline.com/common/oauth2/v2.0/authorize"
	defaultTokenURL = "https://login.microsoftonline.com/common/oauth2/v2.0/token"
	defaultUserURL  = "https://graph.microsoft.com/v1.0/me"
)

// Config holds Microsoft OAuth configuration.
type Config struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
	Scopes       []string

	// Tenant scopes the authority. Defaults to "common" which accepts both
	// work and personal accounts.
	Tenant string

	// PhoneRegion is the default region for normalizing mobilePhone values
	// that arrive without a country prefix.
	PhoneRegion string

	AuthURL  string
	TokenURL string
	UserURL  string

	HTTPClient *http.Client
}

// DefaultScopes returns the default Microsoft Graph scopes.
func DefaultScopes() []string {
	return []string{"openid", "email", "profile", "User.Read"}
}

// Provider implements identity.Provider for Microsoft.
type Provider struct {
	config     Config
	httpClient *http.Client
	now        func() time.Time
}

// New creates a new Microsoft provider.
func New(cfg Config) *Provider {
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = DefaultScopes()
	}
	if cfg.Tenant == "" {
		cfg.Tenant = "common"
	}
	if cfg.PhoneRegion == "" {
		cfg.PhoneRegion = "US"
	}
	if cfg.AuthURL == "" {
		cfg.AuthURL = strings.Replace(defaultAuthURL, "/common/", "/"+cfg.Tenant+"/", 1)
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = strings.Replace(defaultTokenURL, "/common/", "/"+cfg.Tenant+"/", 1)
	}
	if cfg.UserURL == "" {
		cfg.UserURL = defaultUserURL
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	return &Provider{
		config:     cfg,
		httpClient: client,
		now:        time.Now,
	}
}

// Name implements identity.Provider.
func (p *Provider) Name() sentinel.ProviderName {
	return sentinel.ProviderMicrosoft
}

// ValidateConfig implements identity.Provider.
func (p *Provider) ValidateConfig() identity.ConfigValidation {
	return identity.ValidateCredentials(p.config.ClientID, p.config.ClientSecret)
}

// AuthCodeURL implements identity.Provider.
func (p *Provider) AuthCodeURL(state string, opts ...identity.AuthCodeOption) string {
	cfg := identity.ApplyAuthCodeOptions(p.config.Scopes, opts...)
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes()
	}

	redirect := p.config.CallbackURL
	if cfg.RedirectURI != "" {
		redirect = cfg.RedirectURI
	}

	params := url.Values{
		"client_id":     {p.config.ClientID},
		"redirect_uri":  {redirect},
		"response_type": {"code"},
		"response_mode": {"query"},
		"scope":         {strings.Join(scopes, " ")},
		"state":         {state},
	}

	if cfg.CodeChallenge != "" {
		method := cfg.CodeChallengeMethod
		if method == "" {
			method = "S256"
		}
		params.Set("code_challenge", cfg.CodeChallenge)
		params.Set("code_challenge_method", method)
	}

	if cfg.Prompt != "" {
		params.Set("prompt", cfg.Prompt)
	}

	return p.config.AuthURL + "?" + params.Encode()
}

// Exchange implements identity.Provider.
func (p *Provider) Exchange(ctx context.Context, code string, opts ...identity.ExchangeOption) (*identity.Token, error) {
	cfg := identity.ApplyExchangeOptions(opts...)

	data := url.Values{
		"client_id":     {p.config.ClientID},
		"client_secret": {p.config.ClientSecret},
		"code":          {code},
		"redirect_uri":  {p.config.CallbackURL},
		"grant_type":    {"authorization_code"},
	}

	if cfg.CodeVerifier != "" {
		data.Set("code_verifier", cfg.CodeVerifier)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var tokenResp microsoftTokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, providerError("exchange", resp.StatusCode, "invalid_response", "failed to decode token response", err, nil)
	}

	if resp.StatusCode != http.StatusOK || tokenResp.Error != "" {
		return nil, providerError("exchange", resp.StatusCode, tokenResp.Error, tokenResp.ErrorDesc, nil, tokenResp.errorMetadata())
	}
	if tokenResp.AccessToken == "" {
		return nil, providerError("exchange", resp.StatusCode, "missing_access_token", "missing access token", nil, nil)
	}

	expiresAt := time.Time{}
	if tokenResp.ExpiresIn > 0 {
		expiresAt = p.now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second)
	}

	return &identity.Token{
		AccessToken:  tokenResp.AccessToken,
		TokenType:    tokenResp.TokenType,
		RefreshToken: tokenResp.RefreshToken,
		ExpiresAt:    expiresAt,
		Scopes:       strings.Fields(tokenResp.Scope),
	}, nil
}

// UserInfo implements identity.Provider.
func (p *Provider) UserInfo(ctx context.Context, token *identity.Token) (*identity.Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.UserURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		code, description := parseGraphError(body)
		return nil, providerError("user_info", resp.StatusCode, code, description, nil, nil)
	}

	var user graphUser
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, providerError("user_info", resp.StatusCode, "invalid_response", "failed to decode user response", err, nil)
	}

	return mapProfile(&user), nil
}

// Transform implements identity.Provider. Microsoft accounts have no
// handle, so the username is synthesized from the userPrincipalName local
// part. The mobile phone, when present, is normalized to E.164.
func (p *Provider) Transform(profile *identity.Profile) *sentinel.AppUser {
	if profile == nil {
		return nil
	}

	now := p.now().UTC()

	id, err := sentinel.DeterministicUserID(sentinel.ProviderMicrosoft, profile.ProviderUserID)
	if err != nil {
		return nil
	}

	username := profile.Username
	if username == "" {
		username = profile.ProviderUserID
	}

	user := &sentinel.AppUser{
		ID:          id.String(),
		Username:    username,
		Name:        profile.Name,
		Email:       profile.Email,
		Avatar:      profile.AvatarURL,
		ProfileURL:  profile.ProfileURL,
		Provider:    sentinel.ProviderMicrosoft,
		JoinedAt:    now,
		LastLoginAt: now,
	}

	if s, ok := profile.Raw["jobTitle"].(string); ok {
		user.Bio = s
	}
	if s, ok := profile.Raw["officeLocation"].(string); ok {
		user.Location = s
	}
	if s, ok := profile.Raw["mobilePhone"].(string); ok && s != "" {
		user.Phone = normalizePhone(s, p.config.PhoneRegion)
	}

	return user
}

type microsoftTokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
	Error        string `json:"error"`
	ErrorDesc    string `json:"error_description"`
}

func (r microsoftTokenResponse) errorMetadata() map[string]any {
	meta := map[string]any{}
	if r.Error != "" {
		meta["error"] = r.Error
	}
	if r.ErrorDesc != "" {
		meta["error_description"] = r.ErrorDesc
	}
	return meta
}

type graphErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func parseGraphError(body []byte) (string, string) {
	var gerr graphErrorResponse
	if err := json.Unmarshal(body, &gerr); err == nil && (gerr.Error.Code != "" || gerr.Error.Message != "") {
		return gerr.Error.Code, gerr.Error.Message
	}

	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = "microsoft graph request failed"
	}

	return "", msg
}

func providerError(operation string, status int, code, description string, err error, raw map[string]any) *identity.ProviderError {
	return &identity.ProviderError{
		Provider:    string(sentinel.ProviderMicrosoft),
		Operation:   operation,
		Status:      status,
		Code:        code,
		Description: description,
		Err:         err,
		Raw:         raw,
	}
}
