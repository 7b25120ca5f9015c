package sentinel

import (
	"time"

	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
)

// ProviderName identifies one of the supported OAuth identity providers.
type ProviderName string

const (
	ProviderGitHub    ProviderName = "github"
	ProviderGoogle    ProviderName = "google"
	ProviderMicrosoft ProviderName = "microsoft"
	ProviderGitee     ProviderName = "gitee"
)

// KnownProviders lists every provider the subsystem can normalize.
func KnownProviders() []ProviderName {
	return []ProviderName{ProviderGitHub, ProviderGoogle, ProviderMicrosoft, ProviderGitee}
}

// AppUser is the provider-normalized identity record used uniformly across
// the system. Produced once per login by an identity adapter; consumed by
// session creation and JWT claim construction.
type AppUser struct {
	ID          string       `json:"id"`
	Username    string       `json:"username"`
	Name        string       `json:"name,omitempty"`
	Email       string       `json:"email,omitempty"`
	Avatar      string       `json:"avatar"`
	ProfileURL  string       `json:"profile_url"`
	Provider    ProviderName `json:"provider"`
	JoinedAt    time.Time    `json:"joined_at"`
	LastLoginAt time.Time    `json:"last_login_at"`

	// Provider-specific optional fields. Google never populates bio or
	// company; Microsoft may carry a normalized phone.
	Bio       string `json:"bio,omitempty"`
	Company   string `json:"company,omitempty"`
	Location  string `json:"location,omitempty"`
	Blog      string `json:"blog,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Followers int    `json:"followers,omitempty"`
	Following int    `json:"following,omitempty"`
}

// DeterministicUserID derives a stable internal id for a provider identity,
// so the same upstream account always maps to the same AppUser regardless of
// which login produced it.
func DeterministicUserID(provider ProviderName, providerUserID string) (uuid.UUID, error) {
	return hashid.NewUUID(string(provider) + ":" + providerUserID)
}
