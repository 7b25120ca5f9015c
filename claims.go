package sentinel

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims is the JWT payload minted on login. It carries enough of the
// normalized identity to reconstruct a partial AppUser without a round trip
// to the provider, plus the session id the token is bound to.
type SessionClaims struct {
	jwt.RegisteredClaims
	UID       string `json:"uid,omitempty"`
	Username  string `json:"username,omitempty"`
	Name      string `json:"name,omitempty"`
	Email     string `json:"email,omitempty"`
	Avatar    string `json:"avatar,omitempty"`
	Provider  string `json:"provider,omitempty"`
	SessionID string `json:"sid,omitempty"`
	Admin     bool   `json:"adm,omitempty"`
}

// UserID returns the user id, falling back to the subject claim.
func (c *SessionClaims) UserID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.RegisteredClaims.Subject
}

// Expires returns the expiration time
func (c *SessionClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedTime returns the issued-at time
func (c *SessionClaims) IssuedTime() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}

// User reconstructs the partial AppUser the claims describe. Fields the
// token does not carry (bio, followers, timestamps) stay zero.
func (c *SessionClaims) User() *AppUser {
	return &AppUser{
		ID:       c.UserID(),
		Username: c.Username,
		Name:     c.Name,
		Email:    c.Email,
		Avatar:   c.Avatar,
		Provider: ProviderName(c.Provider),
	}
}

// NewSessionClaims builds claims for a normalized user bound to sessionID.
func NewSessionClaims(user *AppUser, sessionID string) *SessionClaims {
	if user == nil {
		return &SessionClaims{SessionID: sessionID}
	}
	return &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: user.ID,
		},
		UID:       user.ID,
		Username:  user.Username,
		Name:      user.Name,
		Email:     user.Email,
		Avatar:    user.Avatar,
		Provider:  string(user.Provider),
		SessionID: sessionID,
	}
}
