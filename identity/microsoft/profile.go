package microsoft

import (
	"net/url"
	"strings"

	"github.com/nyaruka/phonenumbers"

	"github.com/goliatone/go-sentinel"
	"github.com/goliatone/go-sentinel/identity"
)

// Graph exposes no public profile page or avatar URL, so the normalized
// profile points at the account portal and the avatar is generated from the
// display name.
const (
	profileHomeURL   = "https://account.microsoft.com/profile"
	avatarServiceURL = "https://ui-avatars.com/api/"
)

type graphUser struct {
	ID                string   `json:"id"`
	DisplayName       string   `json:"displayName"`
	GivenName         string   `json:"givenName"`
	Surname           string   `json:"surname"`
	UserPrincipalName string   `json:"userPrincipalName"`
	Mail              string   `json:"mail"`
	MobilePhone       string   `json:"mobilePhone"`
	BusinessPhones    []string `json:"businessPhones"`
	JobTitle          string   `json:"jobTitle"`
	OfficeLocation    string   `json:"officeLocation"`
}

func mapProfile(user *graphUser) *identity.Profile {
	if user == nil {
		return nil
	}

	email := user.Mail
	if email == "" && strings.Contains(user.UserPrincipalName, "@") {
		email = user.UserPrincipalName
	}

	return &identity.Profile{
		ProviderUserID: user.ID,
		Provider:       sentinel.ProviderMicrosoft,
		Email:          email,
		EmailVerified:  email != "",
		Name:           user.DisplayName,
		Username:       principalLocalPart(user.UserPrincipalName),
		AvatarURL:      avatarURL(user.DisplayName),
		ProfileURL:     profileHomeURL,
		Raw: map[string]any{
			"id":                user.ID,
			"displayName":       user.DisplayName,
			"givenName":         user.GivenName,
			"surname":           user.Surname,
			"userPrincipalName": user.UserPrincipalName,
			"mail":              user.Mail,
			"mobilePhone":       user.MobilePhone,
			"businessPhones":    user.BusinessPhones,
			"jobTitle":          user.JobTitle,
			"officeLocation":    user.OfficeLocation,
		},
	}
}

// principalLocalPart extracts the handle from a userPrincipalName, which
// looks like an email address for both work and personal accounts.
func principalLocalPart(upn string) string {
	if at := strings.IndexByte(upn, '@'); at > 0 {
		return upn[:at]
	}
	return upn
}

func avatarURL(displayName string) string {
	if displayName == "" {
		return avatarServiceURL
	}
	return avatarServiceURL + "?name=" + url.QueryEscape(displayName)
}

// normalizePhone formats a raw phone value as E.164. Values that fail to
// parse are returned unchanged rather than dropped.
func normalizePhone(raw, region string) string {
	num, err := phonenumbers.Parse(raw, region)
	if err != nil {
		return raw
	}
	if !phonenumbers.IsValidNumber(num) {
		return raw
	}
	return phonenumbers.Format(num, phonenumbers.E164)
}
