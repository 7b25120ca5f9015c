package gitee

import (
	"fmt"
	"time"

	"github.com/goliatone/go-sentinel"
	"github.com/goliatone/go-sentinel/identity"
)

type giteeUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
	HTMLURL   string `json:"html_url"`
	Bio       string `json:"bio"`
	Blog      string `json:"blog"`
	Followers int    `json:"followers"`
	Following int    `json:"following"`
	CreatedAt string `json:"created_at"`
}

func mapProfile(user *giteeUser) *identity.Profile {
	if user == nil {
		return nil
	}

	createdAt, _ := time.Parse(time.RFC3339, user.CreatedAt)

	name := user.Name
	if name == "" {
		name = user.Login
	}

	return &identity.Profile{
		ProviderUserID: fmt.Sprintf("%d", user.ID),
		Provider:       sentinel.ProviderGitee,
		Email:          user.Email,
		EmailVerified:  user.Email != "",
		Name:           name,
		Username:       user.Login,
		AvatarURL:      user.AvatarURL,
		ProfileURL:     user.HTMLURL,
		CreatedAt:      createdAt,
		Raw: map[string]any{
			"id":         user.ID,
			"login":      user.Login,
			"name":       user.Name,
			"email":      user.Email,
			"avatar_url": user.AvatarURL,
			"html_url":   user.HTMLURL,
			"bio":        user.Bio,
			"blog":       user.Blog,
			"followers":  user.Followers,
			"following":  user.Following,
			"created_at": user.CreatedAt,
		},
	}
}
