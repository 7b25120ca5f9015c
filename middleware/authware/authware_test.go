package authware_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-sentinel"
	"github.com/goliatone/go-sentinel/middleware/authware"
)

var signingKey = []byte("test-signing-key")

func newTokenService() *sentinel.TokenServiceImpl {
	return sentinel.NewTokenService(signingKey, "sentinel-test", nil, nil)
}

func testUser() *sentinel.AppUser {
	return &sentinel.AppUser{
		ID:       "user-1",
		Username: "octo",
		Name:     "Octo Cat",
		Email:    "octo@example.com",
		Avatar:   "https://example.com/a.png",
		Provider: sentinel.ProviderGitHub,
	}
}

func signedToken(t *testing.T, sessionID string) string {
	t.Helper()
	token, err := newTokenService().Sign(sentinel.NewSessionClaims(testUser(), sessionID), time.Hour)
	require.NoError(t, err)
	return token
}

func newRegistry(t *testing.T) (*sentinel.SessionRegistry, *sentinel.Session) {
	t.Helper()
	registry := sentinel.NewSessionRegistry(sentinel.NewMemorySessionStore())
	session, err := registry.Create(context.Background(), "user-1", sentinel.RequestMeta{
		UserAgent: "Mozilla/5.0 (Macintosh) Chrome/120.0",
		IPAddress: "10.0.0.1",
	})
	require.NoError(t, err)
	return registry, session
}

func authedContext(token string) *router.MockContext {
	ctx := router.NewMockContext()
	ctx.HeadersM["Authorization"] = "Bearer " + token
	ctx.On("GetString", "Authorization", "").Return("Bearer " + token)
	ctx.On("Context").Return(context.Background())
	ctx.On("SetContext", mock.Anything).Return()
	ctx.On("Locals", mock.Anything, mock.Anything).Return(nil)
	return ctx
}

func TestResolveAuthenticatesValidToken(t *testing.T) {
	registry, session := newRegistry(t)
	ctx := authedContext(signedToken(t, session.ID))

	auth := authware.Resolve(ctx, authware.Config{
		Verifier: newTokenService(),
		Sessions: registry,
	})

	require.True(t, auth.IsAuthenticated())
	assert.Equal(t, "octo", auth.User().Username)
	assert.Equal(t, session.ID, auth.SessionID())
	assert.False(t, auth.IsAdmin())
}

func TestResolveMissingTokenIsUnauthenticated(t *testing.T) {
	ctx := router.NewMockContext()
	ctx.On("GetString", "Authorization", "").Return("")
	ctx.On("Cookies", authware.DefaultCookieName).Return("")

	auth := authware.Resolve(ctx, authware.Config{Verifier: newTokenService()})
	assert.False(t, auth.IsAuthenticated())
	assert.Nil(t, auth.User())
}

func TestResolveGarbageTokenIsUnauthenticated(t *testing.T) {
	ctx := router.NewMockContext()
	ctx.HeadersM["Authorization"] = "Bearer not.a.token"
	ctx.On("GetString", "Authorization", "").Return("Bearer not.a.token")

	auth := authware.Resolve(ctx, authware.Config{Verifier: newTokenService()})
	assert.False(t, auth.IsAuthenticated())
}

func TestResolveRevokedSessionIsUnauthenticated(t *testing.T) {
	registry, session := newRegistry(t)
	token := signedToken(t, session.ID)

	_, err := registry.Delete(context.Background(), session.ID)
	require.NoError(t, err)

	ctx := authedContext(token)
	auth := authware.Resolve(ctx, authware.Config{
		Verifier: newTokenService(),
		Sessions: registry,
	})

	assert.False(t, auth.IsAuthenticated(), "revoked session must log the user out even while the token is valid")
}

func TestResolveBumpsSessionActivity(t *testing.T) {
	clock := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	registry := sentinel.NewSessionRegistry(
		sentinel.NewMemorySessionStore(),
		sentinel.WithSessionClock(func() time.Time { return clock }),
	)
	session, err := registry.Create(context.Background(), "user-1", sentinel.RequestMeta{})
	require.NoError(t, err)

	clock = clock.Add(5 * time.Minute)

	ctx := authedContext(signedToken(t, session.ID))
	auth := authware.Resolve(ctx, authware.Config{
		Verifier: newTokenService(),
		Sessions: registry,
	})
	require.True(t, auth.IsAuthenticated())

	got, found, err := registry.Get(context.Background(), session.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, clock, got.LastActiveAt)
}

func TestMandatoryRedirectsUnauthenticated(t *testing.T) {
	ctx := router.NewMockContext()
	ctx.On("GetString", "Authorization", "").Return("")
	ctx.On("Cookies", authware.DefaultCookieName).Return("")
	ctx.On("OriginalURL").Return("/settings/sessions")

	var target string
	ctx.On("Redirect", mock.Anything, []int{http.StatusFound}).Run(func(args mock.Arguments) {
		target = args.String(0)
	}).Return(nil)

	handler := authware.Mandatory(authware.Config{Verifier: newTokenService()})(func(c router.Context) error {
		t.Fatal("handler must not run for unauthenticated request")
		return nil
	})

	require.NoError(t, handler(ctx))
	assert.Equal(t, "/login?redirect=%2Fsettings%2Fsessions", target)
}

func TestMandatoryPassesAuthenticated(t *testing.T) {
	registry, session := newRegistry(t)
	ctx := authedContext(signedToken(t, session.ID))

	called := false
	handler := authware.Mandatory(authware.Config{
		Verifier: newTokenService(),
		Sessions: registry,
	})(func(c router.Context) error {
		called = true
		return nil
	})

	require.NoError(t, handler(ctx))
	assert.True(t, called)
}

func TestOptionalAlwaysContinues(t *testing.T) {
	ctx := router.NewMockContext()
	ctx.On("GetString", "Authorization", "").Return("")
	ctx.On("Cookies", authware.DefaultCookieName).Return("")
	ctx.On("Context").Return(context.Background())
	ctx.On("SetContext", mock.Anything).Return()

	var attached *sentinel.AuthContext
	ctx.On("Locals", "auth", mock.Anything).Run(func(args mock.Arguments) {
		attached, _ = args.Get(1).(*sentinel.AuthContext)
	}).Return(nil)

	called := false
	handler := authware.Optional(authware.Config{Verifier: newTokenService()})(func(c router.Context) error {
		called = true
		return nil
	})

	require.NoError(t, handler(ctx))
	assert.True(t, called)
	require.NotNil(t, attached)
	assert.False(t, attached.IsAuthenticated())
}

func TestAPIStrictReturns401JSON(t *testing.T) {
	ctx := router.NewMockContext()
	ctx.On("GetString", "Authorization", "").Return("")
	ctx.On("Cookies", authware.DefaultCookieName).Return("")

	var body map[string]any
	ctx.On("JSON", router.StatusUnauthorized, mock.Anything).Run(func(args mock.Arguments) {
		body, _ = args.Get(1).(map[string]any)
	}).Return(nil)

	handler := authware.APIStrict(authware.Config{Verifier: newTokenService()})(func(c router.Context) error {
		t.Fatal("handler must not run")
		return nil
	})

	require.NoError(t, handler(ctx))
	require.NotNil(t, body)
	assert.Equal(t, false, body["authenticated"])
	assert.NotEmpty(t, body["error"])
}

func TestAdminGateForbidsNonMembers(t *testing.T) {
	registry, session := newRegistry(t)
	ctx := authedContext(signedToken(t, session.ID))
	ctx.On("OriginalURL").Return("/admin")

	var body map[string]any
	ctx.On("JSON", router.StatusForbidden, mock.Anything).Run(func(args mock.Arguments) {
		body, _ = args.Get(1).(map[string]any)
	}).Return(nil)

	handler := authware.AdminGate(authware.Config{
		Verifier:   newTokenService(),
		Sessions:   registry,
		AdminUsers: []string{"root"},
	})(func(c router.Context) error {
		t.Fatal("handler must not run for non-admin")
		return nil
	})

	require.NoError(t, handler(ctx))
	require.NotNil(t, body)
	assert.NotEmpty(t, body["error"])
	assert.NotEmpty(t, body["message"])
}

func TestAdminGateGrantsMembers(t *testing.T) {
	registry, session := newRegistry(t)
	token := signedToken(t, session.ID)

	ctx := router.NewMockContext()
	ctx.HeadersM["Authorization"] = "Bearer " + token
	ctx.On("GetString", "Authorization", "").Return("Bearer " + token)
	ctx.On("Context").Return(context.Background())
	ctx.On("SetContext", mock.Anything).Return()

	var attached *sentinel.AuthContext
	ctx.On("Locals", "auth", mock.Anything).Run(func(args mock.Arguments) {
		attached, _ = args.Get(1).(*sentinel.AuthContext)
	}).Return(nil)

	called := false
	handler := authware.AdminGate(authware.Config{
		Verifier:   newTokenService(),
		Sessions:   registry,
		AdminUsers: []string{"octo"},
	})(func(c router.Context) error {
		called = true
		return nil
	})

	require.NoError(t, handler(ctx))
	assert.True(t, called)
	require.NotNil(t, attached)
	assert.True(t, attached.IsAdmin())
}
