// ABOUTME: Dependencies, result shape and failure classification shared by the handlers
// ABOUTME: Resolves user, connector, proxy config and auth header for every operation
package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/harperreed/callbridge/auth"
	"github.com/harperreed/callbridge/connector"
	"github.com/harperreed/callbridge/metrics"
	"github.com/harperreed/callbridge/models"
	"github.com/harperreed/callbridge/processor"
)

// UserStore is satisfied by db.UserRepository.
type UserStore interface {
	Get(ctx context.Context, id string) (*models.User, error)
	Delete(ctx context.Context, id string) error
}

// CallLogStore is satisfied by db.CallLogRepository and db.PostgresCallLogs.
type CallLogStore interface {
	FindBySessionID(ctx context.Context, sessionID string) (*models.CallLogRecord, error)
	Create(ctx context.Context, rec *models.CallLogRecord) error
}

// MessageLogStore is satisfied by db.MessageLogRepository and db.PostgresMessageLogs.
type MessageLogStore interface {
	Find(ctx context.Context, id string) (*models.MessageLogRecord, error)
	FindLogged(ctx context.Context, ids []string) (map[string]bool, error)
	FindByConversationLogID(ctx context.Context, conversationLogID string) (*models.MessageLogRecord, error)
	Create(ctx context.Context, rec *models.MessageLogRecord) error
	Touch(ctx context.Context, id string) error
}

type ProxyConfigStore interface {
	Get(ctx context.Context, id string) (*models.ProxyConfig, error)
}

// NoteCache is satisfied by cache.NoteCache.
type NoteCache interface {
	Get(sessionID string) (string, bool, error)
}

// Processors is satisfied by processor.Pipeline.
type Processors interface {
	Run(ctx context.Context, inv processor.Invocation) []string
}

// AuthResolver is satisfied by auth.Resolver.
type AuthResolver interface {
	AuthHeader(ctx context.Context, conn auth.Authenticator, user *models.User, proxy *models.ProxyConfig) (string, error)
}

// Options toggles optional handler behavior.
type Options struct {
	// CacheFirstNote prefers the note cached for a session over the inbound one.
	CacheFirstNote bool
	// MediaReaderURL is the viewer MMS and fax attachment links are rewritten to.
	MediaReaderURL string
}

// DefaultMediaReaderURL is used when Options.MediaReaderURL is empty.
const DefaultMediaReaderURL = "https://ringcentral.github.io/ringcentral-media-reader/"

// Deps are the collaborators of the handlers. Notes, Processors and Metrics are optional.
type Deps struct {
	Registry    *connector.Registry
	Users       UserStore
	CallLogs    CallLogStore
	MessageLogs MessageLogStore
	Proxies     ProxyConfigStore
	Notes       NoteCache
	Processors  Processors
	Auth        AuthResolver
	Metrics     *metrics.Recorder
	Logger      *slog.Logger
	Options     Options
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Options.MediaReaderURL == "" {
		d.Options.MediaReaderURL = DefaultMediaReaderURL
	}
	return d
}

// Result is returned by every handler. Business failures set Successful to
// false and describe themselves in ReturnMessage; they are never Go errors.
type Result struct {
	Successful        bool                  `json:"successful"`
	LogID             string                `json:"logId,omitempty"`
	LogIDs            []string              `json:"logIds,omitempty"`
	UpdatedNote       string                `json:"updatedNote,omitempty"`
	ReturnMessage     *models.ReturnMessage `json:"returnMessage,omitempty"`
	ExtraDataTracking map[string]any        `json:"extraDataTracking,omitempty"`
	AsyncTaskIDs      []string              `json:"asyncTaskIds,omitempty"`
}

const messageTTL = 3000

func warningResult(format string, args ...any) *Result {
	return &Result{ReturnMessage: &models.ReturnMessage{
		MessageType: models.MessageTypeWarning,
		Message:     fmt.Sprintf(format, args...),
		TTL:         messageTTL,
	}}
}

func duplicateSession(sessionID string) *Result {
	return warningResult("Existing log for session %s", sessionID)
}

func userNotFound() *Result {
	return warningResult("User not found")
}

func contactNotFound() *Result {
	return warningResult("Contact not found")
}

func persistenceFailure(logger *slog.Logger, what string, err error) *Result {
	logger.Error("Local datastore failure", "operation", what, "error", err)
	return warningResult("Failed to %s. Please try again.", what)
}

// remoteFailure classifies an error returned while talking to the CRM.
func (b *base) remoteFailure(platform, operation string, err error) *Result {
	status := connector.StatusCode(err)
	b.deps.Metrics.RemoteError(platform, status)
	b.deps.Logger.Warn("CRM call failed", "platform", platform, "operation", operation, "status", status, "error", err)

	var res *Result
	switch {
	case status == 429:
		res = warningResult("%s rate limit reached. Please try again in 30 seconds.", platform)
	case status >= 400 && status <= 409:
		res = warningResult("Failed to %s. Please check your %s authorization and permissions.", operation, platform)
	default:
		res = warningResult("Failed to %s on %s. Please try again later.", operation, platform)
		res.ReturnMessage.MessageType = models.MessageTypeDanger
	}
	res.ExtraDataTracking = map[string]any{"statusCode": status}
	return res
}

// base owns the dependencies and the per-operation session resolution.
type base struct {
	deps Deps
}

// session is everything needed to talk to a CRM on behalf of one user.
type session struct {
	platform   string
	user       *models.User
	conn       *connector.Connector
	proxy      *models.ProxyConfig
	authHeader string
}

// open resolves a session and its auth header.
// A non-nil Result is a business failure to return as is.
func (b *base) open(ctx context.Context, platform, userID, operation string) (*session, *Result, error) {
	s, fail, err := b.resolve(ctx, platform, userID)
	if err != nil || fail != nil {
		return nil, fail, err
	}
	if fail := b.authorize(ctx, s, operation); fail != nil {
		return nil, fail, nil
	}
	return s, nil, nil
}

// resolve looks up the user then the connector and proxy config. The session
// has no auth header until authorize runs.
func (b *base) resolve(ctx context.Context, platform, userID string) (*session, *Result, error) {
	user, err := b.deps.Users.Get(ctx, userID)
	if err != nil {
		return nil, persistenceFailure(b.deps.Logger, "look up user", err), nil
	}
	if user == nil || user.AccessToken == "" {
		return nil, userNotFound(), nil
	}

	conn, err := b.deps.Registry.GetConnector(platform)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve connector for %s: %w", platform, err)
	}

	var proxy *models.ProxyConfig
	if user.ProxyID != "" && b.deps.Proxies != nil {
		proxy, err = b.deps.Proxies.Get(ctx, user.ProxyID)
		if err != nil {
			return nil, persistenceFailure(b.deps.Logger, "load proxy config", err), nil
		}
	}

	return &session{platform: platform, user: user, conn: conn, proxy: proxy}, nil, nil
}

// authorize fills in the auth header of s.
func (b *base) authorize(ctx context.Context, s *session, operation string) *Result {
	header, err := b.deps.Auth.AuthHeader(ctx, s.conn, s.user, s.proxy)
	if errors.Is(err, auth.ErrNoAccessToken) {
		return userNotFound()
	}
	if err != nil {
		return b.remoteFailure(s.platform, operation, err)
	}
	s.authHeader = header
	return nil
}

// runProcessors invokes the user's processors for stage when a pipeline is wired.
func (b *base) runProcessors(ctx context.Context, user *models.User, platform, stage, cacheKey string, data any) []string {
	if b.deps.Processors == nil {
		return nil
	}
	return b.deps.Processors.Run(ctx, processor.Invocation{
		User:     user,
		Platform: platform,
		Stage:    stage,
		CacheKey: cacheKey,
		Data:     data,
	})
}

// observe records the outcome of an operation started at start.
func (b *base) observe(operation, platform string, start time.Time, res *Result, err error) {
	outcome := metrics.OutcomeSuccess
	switch {
	case err != nil:
		outcome = metrics.OutcomeError
	case res == nil || !res.Successful:
		outcome = metrics.OutcomeWarning
	}
	b.deps.Metrics.ObserveOperation(operation, platform, outcome, time.Since(start))
}
