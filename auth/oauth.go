// ABOUTME: OAuth client configuration built from connector supplied settings
// ABOUTME: Converts stored user tokens to and from oauth2 tokens
package auth

import (
	"time"

	"github.com/harperreed/callbridge/connector"
	"github.com/harperreed/callbridge/models"
	"golang.org/x/oauth2"
)

// NewOAuthConfig creates the oauth2 config of a CRM.
func NewOAuthConfig(info *connector.OauthInfo) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     info.ClientID,
		ClientSecret: info.ClientSecret,
		RedirectURL:  info.RedirectURI,
		Scopes:       info.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  info.AuthorizationURI,
			TokenURL: info.AccessTokenURI,
		},
	}
}

// UserToken returns the stored token of user.
func UserToken(user *models.User) *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  user.AccessToken,
		RefreshToken: user.RefreshToken,
		TokenType:    "Bearer",
	}
	if user.TokenExpiry != nil {
		tok.Expiry = *user.TokenExpiry
	}
	return tok
}

func applyToken(user *models.User, tok *oauth2.Token) {
	user.AccessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		user.RefreshToken = tok.RefreshToken
	}
	if tok.Expiry.IsZero() {
		user.TokenExpiry = nil
		return
	}
	expiry := tok.Expiry.UTC().Truncate(time.Second)
	user.TokenExpiry = &expiry
}
