package sentinel

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

const sessionIDBytes = 32

// Session binds a user to a device/IP for a bounded lifetime. It is owned
// exclusively by the SessionRegistry: created on successful authentication,
// touched on every authenticated request, destroyed on revocation or lazy
// expiry.
type Session struct {
	ID           string     `json:"id"`
	UserID       string     `json:"user_id"`
	DeviceInfo   DeviceInfo `json:"device_info"`
	IPAddress    string     `json:"ip_address"`
	CreatedAt    time.Time  `json:"created_at"`
	LastActiveAt time.Time  `json:"last_active_at"`
	ExpiresAt    time.Time  `json:"expires_at"`
	IsActive     bool       `json:"is_active"`

	// IsCurrent is set transiently by List when the entry matches the
	// caller's own session id. Never persisted.
	IsCurrent bool `json:"is_current,omitempty"`
}

// ExpiredAt reports whether the session is past its lifetime at the given
// instant. Every read path uses this single predicate so List and Get can
// never disagree on expiry.
func (s *Session) ExpiredAt(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// RequestMeta carries the request attributes a session records at creation.
type RequestMeta struct {
	UserAgent string
	IPAddress string
}

// SessionStats summarizes a user's sessions.
type SessionStats struct {
	TotalSessions   int        `json:"total_sessions"`
	ActiveSessions  int        `json:"active_sessions"`
	UniqueDevices   int        `json:"unique_devices"`
	UniqueLocations int        `json:"unique_locations"`
	LastLoginAt     *time.Time `json:"last_login_at,omitempty"`
}

// newSessionID returns a 256-bit random token, hex-encoded.
func newSessionID() (string, error) {
	buf := make([]byte, sessionIDBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
