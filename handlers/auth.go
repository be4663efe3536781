// ABOUTME: Auth handler that disconnects a user from a CRM
// ABOUTME: Lets the connector revoke tokens, then removes the local user record
package handlers

import (
	"context"
	"time"

	"github.com/harperreed/callbridge/connector"
	"github.com/harperreed/callbridge/models"
)

type AuthHandlers struct {
	base
}

func NewAuthHandlers(deps Deps) *AuthHandlers {
	return &AuthHandlers{base{deps: deps.withDefaults()}}
}

type UnauthorizeInput struct {
	Platform string `json:"platform"`
	UserID   string `json:"userId"`
}

// Unauthorize revokes the user's CRM authorization where the connector can
// and forgets the user locally.
func (h *AuthHandlers) Unauthorize(ctx context.Context, in UnauthorizeInput) (res *Result, err error) {
	start := time.Now()
	defer func() { h.observe(connector.CapUnAuthorize, in.Platform, start, res, err) }()

	logger := h.deps.Logger.With("platform", in.Platform, "user_id", in.UserID)
	user, err := h.deps.Users.Get(ctx, in.UserID)
	if err != nil {
		return persistenceFailure(logger, "look up user", err), nil
	}
	if user == nil {
		return userNotFound(), nil
	}

	conn, err := h.deps.Registry.GetConnector(in.Platform)
	if err != nil {
		return nil, err
	}

	res = &Result{Successful: true, ReturnMessage: &models.ReturnMessage{
		MessageType: models.MessageTypeSuccess,
		Message:     "Logged out of " + in.Platform,
		TTL:         messageTTL,
	}}
	if conn.Has(connector.CapUnAuthorize) {
		revoked, err := conn.UnAuthorize(ctx, connector.UnAuthorizeRequest{User: user})
		if err != nil {
			return h.remoteFailure(in.Platform, "log out", err), nil
		}
		if revoked != nil && revoked.ReturnMessage != nil {
			res.ReturnMessage = revoked.ReturnMessage
		}
	}

	if err := h.deps.Users.Delete(ctx, user.ID); err != nil {
		return persistenceFailure(logger, "remove user", err), nil
	}
	logger.Info("User unauthorized")
	return res, nil
}
