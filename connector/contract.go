// ABOUTME: Capability contract every CRM connector fulfils, directly or through interface overrides
// ABOUTME: Declares capability names, request/result types, method interfaces and override func types
package connector

import (
	"context"
	"time"

	"github.com/harperreed/callbridge/models"
)

// Capability names. They are the keys used when registering interface overrides
// and match the exported method names of a plugin with the first letter lowered.
const (
	CapGetAuthType         = "getAuthType"
	CapGetOauthInfo        = "getOauthInfo"
	CapGetBasicAuth        = "getBasicAuth"
	CapGetLogFormatType    = "getLogFormatType"
	CapCreateCallLog       = "createCallLog"
	CapUpdateCallLog       = "updateCallLog"
	CapGetCallLog          = "getCallLog"
	CapCreateMessageLog    = "createMessageLog"
	CapUpdateMessageLog    = "updateMessageLog"
	CapFindContact         = "findContact"
	CapFindContactWithName = "findContactWithName"
	CapCreateContact       = "createContact"
	CapUnAuthorize         = "unAuthorize"
)

// Capabilities lists every capability of the contract in declaration order.
var Capabilities = []string{
	CapGetAuthType,
	CapGetOauthInfo,
	CapGetBasicAuth,
	CapGetLogFormatType,
	CapCreateCallLog,
	CapUpdateCallLog,
	CapGetCallLog,
	CapCreateMessageLog,
	CapUpdateMessageLog,
	CapFindContact,
	CapFindContactWithName,
	CapCreateContact,
	CapUnAuthorize,
}

type AuthTypeRequest struct {
	ProxyID     string
	ProxyConfig *models.ProxyConfig
}

type OauthInfoRequest struct {
	Platform    string
	HostName    string
	TokenURL    string
	ProxyID     string
	ProxyConfig *models.ProxyConfig
}

// OauthInfo holds the OAuth client settings of a CRM.
type OauthInfo struct {
	ClientID         string
	ClientSecret     string
	AccessTokenURI   string
	AuthorizationURI string
	RedirectURI      string
	Scopes           []string
}

type BasicAuthRequest struct {
	APIKey string
}

// ContactInfo identifies the CRM contact a log is attached to.
type ContactInfo struct {
	ID          string
	Type        string
	Name        string
	PhoneNumber string
}

type CreateCallLogRequest struct {
	User                 *models.User
	Contact              ContactInfo
	AuthHeader           string
	CallLog              models.CallLogInfo
	Note                 string
	AINote               string
	Transcript           string
	RingSense            models.RingSenseData
	AdditionalSubmission map[string]any
	ComposedLogDetails   string
	HashedAccountID      string
	IsFromSSCL           bool
	ProxyConfig          *models.ProxyConfig
}

type CreateCallLogResult struct {
	LogID             string
	ReturnMessage     *models.ReturnMessage
	ExtraDataTracking map[string]any
}

type UpdateCallLogRequest struct {
	User                 *models.User
	ExistingCallLog      *models.CallLogRecord
	AuthHeader           string
	RecordingLink        string
	Subject              string
	Note                 string
	StartTime            *time.Time
	Duration             *int
	Result               string
	AINote               string
	Transcript           string
	AdditionalSubmission map[string]any
	ComposedLogDetails   string
	ExistingDetails      *CallLogDetails
	HashedAccountID      string
	ProxyConfig          *models.ProxyConfig
}

type UpdateCallLogResult struct {
	UpdatedNote       string
	ReturnMessage     *models.ReturnMessage
	ExtraDataTracking map[string]any
}

type GetCallLogRequest struct {
	User        *models.User
	CallLogID   string
	ContactID   string
	AuthHeader  string
	ProxyConfig *models.ProxyConfig
}

// CallLogDetails is the current state of a CRM call record.
type CallLogDetails struct {
	Subject      string
	Note         string
	FullBody     string
	Dispositions map[string]any
}

type GetCallLogResult struct {
	CallLogInfo       *CallLogDetails
	ReturnMessage     *models.ReturnMessage
	ExtraDataTracking map[string]any
}

// MessageLinks are the rewritten attachment links of a single message.
type MessageLinks struct {
	RecordingLink   string
	FaxDocLink      string
	FaxDownloadLink string
	ImageLink       string
	VideoLink       string
}

// SharedSMSLog is a composed shared conversation.
type SharedSMSLog struct {
	Subject string
	Body    string
}

type CreateMessageLogRequest struct {
	User                 *models.User
	Contact              ContactInfo
	AuthHeader           string
	Message              models.Message
	Links                MessageLinks
	SharedSMS            *SharedSMSLog
	AdditionalSubmission map[string]any
	ProxyConfig          *models.ProxyConfig
}

type CreateMessageLogResult struct {
	LogID             string
	ReturnMessage     *models.ReturnMessage
	ExtraDataTracking map[string]any
}

type UpdateMessageLogRequest struct {
	User                 *models.User
	Contact              ContactInfo
	ExistingMessageLog   *models.MessageLogRecord
	AuthHeader           string
	Message              models.Message
	Links                MessageLinks
	SharedSMS            *SharedSMSLog
	AdditionalSubmission map[string]any
	ProxyConfig          *models.ProxyConfig
}

type UpdateMessageLogResult struct {
	ReturnMessage     *models.ReturnMessage
	ExtraDataTracking map[string]any
}

// Contact is a CRM contact as reported by a connector.
type Contact struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Type           string         `json:"type,omitempty"`
	Phone          string         `json:"phone,omitempty"`
	Title          string         `json:"title,omitempty"`
	Company        string         `json:"company,omitempty"`
	IsNewContact   bool           `json:"isNewContact,omitempty"`
	AdditionalInfo map[string]any `json:"additionalInfo,omitempty"`
}

type FindContactRequest struct {
	User             *models.User
	AuthHeader       string
	PhoneNumber      string
	OverridingFormat string
	IsExtension      bool
	ProxyConfig      *models.ProxyConfig
}

type FindContactWithNameRequest struct {
	User        *models.User
	AuthHeader  string
	Name        string
	ProxyConfig *models.ProxyConfig
}

type FindContactResult struct {
	Contacts          []Contact
	ReturnMessage     *models.ReturnMessage
	ExtraDataTracking map[string]any
}

type CreateContactRequest struct {
	User                 *models.User
	AuthHeader           string
	PhoneNumber          string
	NewContactName       string
	NewContactType       string
	AdditionalSubmission map[string]any
	ProxyConfig          *models.ProxyConfig
}

type CreateContactResult struct {
	Contact           *Contact
	ReturnMessage     *models.ReturnMessage
	ExtraDataTracking map[string]any
}

type UnAuthorizeRequest struct {
	User *models.User
}

type UnAuthorizeResult struct {
	ReturnMessage *models.ReturnMessage
}

// Method forms of the capabilities, implemented by plugin types.

type AuthTyper interface {
	GetAuthType(ctx context.Context, req AuthTypeRequest) (string, error)
}

type OauthInfoProvider interface {
	GetOauthInfo(ctx context.Context, req OauthInfoRequest) (*OauthInfo, error)
}

type BasicAuthProvider interface {
	GetBasicAuth(req BasicAuthRequest) string
}

type LogFormatter interface {
	GetLogFormatType(platform string, proxyConfig *models.ProxyConfig) string
}

type CallLogCreator interface {
	CreateCallLog(ctx context.Context, req CreateCallLogRequest) (*CreateCallLogResult, error)
}

type CallLogUpdater interface {
	UpdateCallLog(ctx context.Context, req UpdateCallLogRequest) (*UpdateCallLogResult, error)
}

type CallLogGetter interface {
	GetCallLog(ctx context.Context, req GetCallLogRequest) (*GetCallLogResult, error)
}

type MessageLogCreator interface {
	CreateMessageLog(ctx context.Context, req CreateMessageLogRequest) (*CreateMessageLogResult, error)
}

type MessageLogUpdater interface {
	UpdateMessageLog(ctx context.Context, req UpdateMessageLogRequest) (*UpdateMessageLogResult, error)
}

type ContactFinder interface {
	FindContact(ctx context.Context, req FindContactRequest) (*FindContactResult, error)
}

type ContactNameFinder interface {
	FindContactWithName(ctx context.Context, req FindContactWithNameRequest) (*FindContactResult, error)
}

type ContactCreator interface {
	CreateContact(ctx context.Context, req CreateContactRequest) (*CreateContactResult, error)
}

type Unauthorizer interface {
	UnAuthorize(ctx context.Context, req UnAuthorizeRequest) (*UnAuthorizeResult, error)
}

// Override forms of the capabilities, registered with RegisterConnectorInterface.
// Plain func literals with the same signatures are accepted as well.
type (
	GetAuthTypeFunc         func(ctx context.Context, req AuthTypeRequest) (string, error)
	GetOauthInfoFunc        func(ctx context.Context, req OauthInfoRequest) (*OauthInfo, error)
	GetBasicAuthFunc        func(req BasicAuthRequest) string
	GetLogFormatTypeFunc    func(platform string, proxyConfig *models.ProxyConfig) string
	CreateCallLogFunc       func(ctx context.Context, req CreateCallLogRequest) (*CreateCallLogResult, error)
	UpdateCallLogFunc       func(ctx context.Context, req UpdateCallLogRequest) (*UpdateCallLogResult, error)
	GetCallLogFunc          func(ctx context.Context, req GetCallLogRequest) (*GetCallLogResult, error)
	CreateMessageLogFunc    func(ctx context.Context, req CreateMessageLogRequest) (*CreateMessageLogResult, error)
	UpdateMessageLogFunc    func(ctx context.Context, req UpdateMessageLogRequest) (*UpdateMessageLogResult, error)
	FindContactFunc         func(ctx context.Context, req FindContactRequest) (*FindContactResult, error)
	FindContactWithNameFunc func(ctx context.Context, req FindContactWithNameRequest) (*FindContactResult, error)
	CreateContactFunc       func(ctx context.Context, req CreateContactRequest) (*CreateContactResult, error)
	UnAuthorizeFunc         func(ctx context.Context, req UnAuthorizeRequest) (*UnAuthorizeResult, error)
)
