// ABOUTME: Resolves the Authorization header a connector needs for a user
// ABOUTME: Refreshes expired OAuth tokens and derives basic auth for api-key CRMs
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/harperreed/callbridge/connector"
	"github.com/harperreed/callbridge/models"
	"golang.org/x/oauth2"
)

var (
	ErrNoAccessToken       = errors.New("user has no access token")
	ErrUnsupportedAuthType = errors.New("unsupported auth type")
)

// Authenticator is the slice of the connector contract used for auth.
type Authenticator interface {
	Platform() string
	GetAuthType(ctx context.Context, req connector.AuthTypeRequest) (string, error)
	GetOauthInfo(ctx context.Context, req connector.OauthInfoRequest) (*connector.OauthInfo, error)
	GetBasicAuth(req connector.BasicAuthRequest) (string, error)
}

// TokenStore persists refreshed tokens. db.UserRepository satisfies it.
type TokenStore interface {
	UpdateTokens(ctx context.Context, id, accessToken, refreshToken string, expiry *time.Time) error
}

type Resolver struct {
	tokens     TokenStore
	httpClient *http.Client
	logger     *slog.Logger
}

type Option func(*Resolver)

// WithHTTPClient sets the client used against token endpoints.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Resolver) { r.httpClient = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

func NewResolver(tokens TokenStore, opts ...Option) *Resolver {
	r := &Resolver{tokens: tokens, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AuthHeader returns the Authorization header value for user on conn. Refreshed
// OAuth tokens are written back to user and to the token store.
func (r *Resolver) AuthHeader(ctx context.Context, conn Authenticator, user *models.User, proxy *models.ProxyConfig) (string, error) {
	if user == nil || user.AccessToken == "" {
		return "", ErrNoAccessToken
	}

	req := connector.AuthTypeRequest{ProxyConfig: proxy}
	if proxy != nil {
		req.ProxyID = proxy.ID
	}
	authType, err := conn.GetAuthType(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to get auth type: %w", err)
	}

	switch authType {
	case models.AuthTypeOAuth:
		return r.oauthHeader(ctx, conn, user, proxy)
	case models.AuthTypeAPIKey:
		basic, err := conn.GetBasicAuth(connector.BasicAuthRequest{APIKey: user.AccessToken})
		if err != nil {
			return "", fmt.Errorf("failed to derive basic auth: %w", err)
		}
		return "Basic " + basic, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedAuthType, authType)
	}
}

func (r *Resolver) oauthHeader(ctx context.Context, conn Authenticator, user *models.User, proxy *models.ProxyConfig) (string, error) {
	req := connector.OauthInfoRequest{
		Platform:    user.Platform,
		HostName:    user.HostName,
		ProxyConfig: proxy,
	}
	if proxy != nil {
		req.ProxyID = proxy.ID
	}
	info, err := conn.GetOauthInfo(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to get oauth info: %w", err)
	}
	if info == nil {
		return "", fmt.Errorf("connector %s returned no oauth info", conn.Platform())
	}

	if r.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, r.httpClient)
	}
	current := UserToken(user)
	fresh, err := NewOAuthConfig(info).TokenSource(ctx, current).Token()
	if err != nil {
		var retrieve *oauth2.RetrieveError
		if errors.As(err, &retrieve) && retrieve.Response != nil {
			return "", connector.NewRemoteError(conn.Platform(), retrieve.Response.StatusCode, err)
		}
		return "", fmt.Errorf("failed to refresh token: %w", err)
	}

	if fresh.AccessToken != current.AccessToken {
		applyToken(user, fresh)
		if r.tokens != nil {
			if err := r.tokens.UpdateTokens(ctx, user.ID, user.AccessToken, user.RefreshToken, user.TokenExpiry); err != nil {
				return "", fmt.Errorf("failed to persist refreshed token: %w", err)
			}
		}
		r.logger.Info("Refreshed oauth token", "platform", conn.Platform(), "user_id", user.ID)
	}
	return "Bearer " + fresh.AccessToken, nil
}
