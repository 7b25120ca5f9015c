package gitee

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
	defaultAuthURL  = "https://gitee.com/oauth/authorize"
	defaultTokenURL = "https://gitee.com/oauth/token"
	defaultUserURL  = "https://gitee.com/api/v5/user"
)

// Config holds Gitee OAuth configuration.
type Config struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
	Scopes       []string

	AuthURL  string
	TokenURL string
	UserURL  string

	HTTPClient *http.Client
}

// DefaultScopes returns the default Gitee scopes.
func DefaultScopes() []string {
	return []string{"user_info", "emails"}
}

// Provider implements identity.Provider for Gitee.
type Provider struct {
	config     Config
	httpClient *http.Client
	now        func() time.Time
}

// New creates a new Gitee provider.
func New(cfg Config) *Provider {
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = DefaultScopes()
	}
	if cfg.AuthURL == "" {
		cfg.AuthURL = defaultAuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = defaultTokenURL
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
	return sentinel.ProviderGitee
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
		"scope":         {strings.Join(scopes, " ")},
		"state":         {state},
	}

	return p.config.AuthURL + "?" + params.Encode()
}

// Exchange implements identity.Provider.
func (p *Provider) Exchange(ctx context.Context, code string, opts ...identity.ExchangeOption) (*identity.Token, error) {
	data := url.Values{
		"client_id":     {p.config.ClientID},
		"client_secret": {p.config.ClientSecret},
		"code":          {code},
		"redirect_uri":  {p.config.CallbackURL},
		"grant_type":    {"authorization_code"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var tokenResp giteeTokenResponse
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
	endpoint := p.config.UserURL + "?access_token=" + url.QueryEscape(token.AccessToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

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
		return nil, providerError("user_info", resp.StatusCode, "", apiErrorMessage(body), nil, nil)
	}

	var user giteeUser
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, providerError("user_info", resp.StatusCode, "invalid_response", "failed to decode user response", err, nil)
	}

	return mapProfile(&user), nil
}

// Transform implements identity.Provider.
func (p *Provider) Transform(profile *identity.Profile) *sentinel.AppUser {
	if profile == nil {
		return nil
	}

	now := p.now().UTC()

	id, err := sentinel.DeterministicUserID(sentinel.ProviderGitee, profile.ProviderUserID)
	if err != nil {
		return nil
	}

	user := &sentinel.AppUser{
		ID:          id.String(),
		Username:    profile.Username,
		Name:        profile.Name,
		Email:       profile.Email,
		Avatar:      profile.AvatarURL,
		ProfileURL:  profile.ProfileURL,
		Provider:    sentinel.ProviderGitee,
		JoinedAt:    profile.CreatedAt,
		LastLoginAt: now,
	}

	if user.JoinedAt.IsZero() {
		user.JoinedAt = now
	}

	if s, ok := profile.Raw["bio"].(string); ok {
		user.Bio = s
	}
	if s, ok := profile.Raw["blog"].(string); ok {
		user.Blog = s
	}
	if n, ok := profile.Raw["followers"].(float64); ok {
		user.Followers = int(n)
	} else if n, ok := profile.Raw["followers"].(int); ok {
		user.Followers = n
	}
	if n, ok := profile.Raw["following"].(float64); ok {
		user.Following = int(n)
	} else if n, ok := profile.Raw["following"].(int); ok {
		user.Following = n
	}

	return user
}

type giteeTokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
	Error        string `json:"error"`
	ErrorDesc    string `json:"error_description"`
}

func (r giteeTokenResponse) errorMetadata() map[string]any {
	meta := map[string]any{}
	if r.Error != "" {
		meta["error"] = r.Error
	}
	if r.ErrorDesc != "" {
		meta["error_description"] = r.ErrorDesc
	}
	return meta
}

type giteeAPIError struct {
	Message string `json:"message"`
}

func apiErrorMessage(body []byte) string {
	var apiErr giteeAPIError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Message != "" {
		return apiErr.Message
	}

	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return "gitee request failed"
	}

	return msg
}

func providerError(operation string, status int, code, description string, err error, raw map[string]any) *identity.ProviderError {
	return &identity.ProviderError{
		Provider:    string(sentinel.ProviderGitee),
		Operation:   operation,
		Status:      status,
		Code:        code,
		Description: description,
		Err:         err,
		Raw:         raw,
	}
}
