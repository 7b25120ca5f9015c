package google

import (
	"github.com/goliatone/go-sentinel"
	"github.com/goliatone/go-sentinel/identity"
)

// Google has no public profile page, so the normalized profile URL points
// at the account home.
const profileHomeURL = "https://myaccount.google.com/"

type googleUserInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	Picture       string `json:"picture"`
	Locale        string `json:"locale"`
}

func mapProfile(info *googleUserInfo) *identity.Profile {
	if info == nil {
		return nil
	}

	return &identity.Profile{
		ProviderUserID: info.Sub,
		Provider:       sentinel.ProviderGoogle,
		Email:          info.Email,
		EmailVerified:  info.EmailVerified,
		Name:           info.Name,
		AvatarURL:      info.Picture,
		ProfileURL:     profileHomeURL,
		Raw: map[string]any{
			"sub":            info.Sub,
			"email":          info.Email,
			"email_verified": info.EmailVerified,
			"name":           info.Name,
			"given_name":     info.GivenName,
			"family_name":    info.FamilyName,
			"picture":        info.Picture,
			"locale":         info.Locale,
		},
	}
}
