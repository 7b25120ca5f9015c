package gitee

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/goliatone/go-sentinel"
	"github.com/goliatone/go-sentinel/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderAuthCodeURL(t *testing.T) {
	provider := New(Config{
		ClientID:    "gitee-client",
		CallbackURL: "https://example.com/callback",
	})

	authURL := provider.AuthCodeURL("state-token")

	parsed, err := url.Parse(authURL)
	require.NoError(t, err)

	query := parsed.Query()
	assert.Equal(t, "gitee-client", query.Get("client_id"))
	assert.Equal(t, "https://example.com/callback", query.Get("redirect_uri"))
	assert.Equal(t, "code", query.Get("response_type"))
	assert.Equal(t, "state-token", query.Get("state"))
	assert.Contains(t, query.Get("scope"), "user_info")
}

func TestProviderExchangeAndUserInfo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/token":
			assert.Equal(t, http.MethodPost, r.Method)
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"access_token": "token",
				"token_type":   "bearer",
				"expires_in":   86400,
				"scope":        "user_info emails",
			})
		case "/api/v5/user":
			assert.Equal(t, "token", r.URL.Query().Get("access_token"))
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":         987654,
				"login":      "mei",
				"name":       "Mei Chen",
				"email":      "mei@example.com",
				"avatar_url": "https://gitee.com/assets/mei.png",
				"html_url":   "https://gitee.com/mei",
				"bio":        "open source",
				"followers":  12,
				"following":  3,
				"created_at": "2019-08-15T09:30:00+08:00",
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	provider := New(Config{
		ClientID:     "gitee-client",
		ClientSecret: "gitee-secret",
		CallbackURL:  "https://example.com/callback",
		TokenURL:     server.URL + "/oauth/token",
		UserURL:      server.URL + "/api/v5/user",
	})

	token, err := provider.Exchange(context.Background(), "auth-code")
	require.NoError(t, err)
	assert.Equal(t, "token", token.AccessToken)

	profile, err := provider.UserInfo(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "987654", profile.ProviderUserID)
	assert.Equal(t, "mei", profile.Username)
	assert.Equal(t, "mei@example.com", profile.Email)
	assert.Equal(t, "https://gitee.com/mei", profile.ProfileURL)
	assert.False(t, profile.CreatedAt.IsZero())
}

func TestProviderTransform(t *testing.T) {
	provider := New(Config{ClientID: "gitee-client", ClientSecret: "gitee-secret"})
	provider.now = func() time.Time {
		return time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	}

	joined := time.Date(2019, 8, 15, 1, 30, 0, 0, time.UTC)
	user := provider.Transform(&identity.Profile{
		ProviderUserID: "987654",
		Provider:       sentinel.ProviderGitee,
		Email:          "mei@example.com",
		Name:           "Mei Chen",
		Username:       "mei",
		AvatarURL:      "https://gitee.com/assets/mei.png",
		ProfileURL:     "https://gitee.com/mei",
		CreatedAt:      joined,
		Raw: map[string]any{
			"bio":       "open source",
			"blog":      "https://mei.example.com",
			"followers": float64(12),
			"following": float64(3),
		},
	})

	require.NotNil(t, user)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "mei", user.Username)
	assert.Equal(t, "https://gitee.com/assets/mei.png", user.Avatar)
	assert.Equal(t, "https://gitee.com/mei", user.ProfileURL)
	assert.Equal(t, sentinel.ProviderGitee, user.Provider)
	assert.Equal(t, joined, user.JoinedAt)
	assert.Equal(t, "open source", user.Bio)
	assert.Equal(t, "https://mei.example.com", user.Blog)
	assert.Equal(t, 12, user.Followers)
	assert.Equal(t, 3, user.Following)
}

func TestProviderExchangeErrorNormalized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error":             "invalid_grant",
			"error_description": "authorization code expired",
		})
	}))
	defer server.Close()

	provider := New(Config{
		ClientID:     "gitee-client",
		ClientSecret: "gitee-secret",
		TokenURL:     server.URL,
	})

	_, err := provider.Exchange(context.Background(), "stale-code")
	require.Error(t, err)

	var perr *identity.ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "gitee", perr.Provider)
	assert.Equal(t, "exchange", perr.Operation)
	assert.Equal(t, "invalid_grant", perr.Code)
}
