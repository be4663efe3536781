// ABOUTME: Data models for users, log mappings, processor tasks and local CRM entities
// ABOUTME: Defines the persistent records shared by handlers, stores and connectors
package models

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Log format constants reported by connectors.
const (
	FormatPlainText = "plainText"
	FormatHTML      = "html"
	FormatMarkdown  = "markdown"
)

// Auth type constants reported by connectors.
const (
	AuthTypeOAuth   = "oauth"
	AuthTypeAPIKey  = "apiKey"
	AuthTypeUnknown = "unknown"
)

// Return message types understood by the client.
const (
	MessageTypeSuccess = "success"
	MessageTypeWarning = "warning"
	MessageTypeDanger  = "danger"
)

// UserSetting is a single admin or user configured value.
type UserSetting struct {
	Value any `json:"value"`
}

type User struct {
	ID                     string                 `json:"id"`
	Platform               string                 `json:"platform"`
	HostName               string                 `json:"hostname,omitempty"`
	TimezoneName           string                 `json:"timezoneName,omitempty"`
	TimezoneOffset         string                 `json:"timezoneOffset,omitempty"`
	AccessToken            string                 `json:"-"`
	RefreshToken           string                 `json:"-"`
	TokenExpiry            *time.Time             `json:"tokenExpiry,omitempty"`
	ProxyID                string                 `json:"proxyId,omitempty"`
	PlatformAdditionalInfo map[string]any         `json:"platformAdditionalInfo,omitempty"`
	UserSettings           map[string]UserSetting `json:"userSettings,omitempty"`
	CreatedAt              time.Time              `json:"created_at"`
	UpdatedAt              time.Time              `json:"updated_at"`
}

// Setting returns the named user setting.
func (u *User) Setting(key string) (UserSetting, bool) {
	if u == nil || u.UserSettings == nil {
		return UserSetting{}, false
	}
	s, ok := u.UserSettings[key]
	return s, ok
}

// BoolSetting reads a boolean user setting, returning def when the setting is
// absent or holds something that is not a boolean.
func (u *User) BoolSetting(key string, def bool) bool {
	s, ok := u.Setting(key)
	if !ok || s.Value == nil {
		return def
	}
	switch v := s.Value.(type) {
	case bool:
		return v
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return def
		}
		return b
	default:
		return def
	}
}

// StringSetting reads a string user setting.
func (u *User) StringSetting(key string) string {
	s, ok := u.Setting(key)
	if !ok || s.Value == nil {
		return ""
	}
	if v, ok := s.Value.(string); ok {
		return v
	}
	return ""
}

// CallLogRecord maps a telephony session to the CRM record created for it.
type CallLogRecord struct {
	ID              string    `json:"id"`
	SessionID       string    `json:"sessionId"`
	Platform        string    `json:"platform"`
	ThirdPartyLogID string    `json:"thirdPartyLogId"`
	UserID          string    `json:"userId"`
	ContactID       string    `json:"contactId"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// MessageLogRecord maps a message id (or a shared conversation log id) to a CRM record.
type MessageLogRecord struct {
	ID                string    `json:"id"`
	Platform          string    `json:"platform"`
	ConversationID    string    `json:"conversationId"`
	ThirdPartyLogID   string    `json:"thirdPartyLogId"`
	UserID            string    `json:"userId"`
	ConversationLogID string    `json:"conversationLogId"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// ProxyConfig is the operator supplied configuration for the generic proxy connector.
type ProxyConfig struct {
	ID        string          `json:"id"`
	Config    json.RawMessage `json:"config"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Processor task status constants.
const (
	TaskStatusInitialized = "initialized"
	TaskStatusProcessing  = "processing"
	TaskStatusCompleted   = "completed"
	TaskStatusFailed      = "failed"
)

// ProcessorTask tracks one asynchronous pass-through processor invocation.
type ProcessorTask struct {
	AsyncTaskID string    `json:"asyncTaskId"`
	Status      string    `json:"status"`
	UserID      string    `json:"userId"`
	ProcessorID string    `json:"processorId"`
	Stage       string    `json:"stage"`
	CacheKey    string    `json:"cacheKey"`
	Error       string    `json:"error,omitempty"`
	ExpireAt    time.Time `json:"expireAt"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ReturnMessage is the user facing notification attached to handler results.
type ReturnMessage struct {
	MessageType string `json:"messageType"`
	Message     string `json:"message"`
	TTL         int    `json:"ttl,omitempty"`
}

// Contact is a person stored by the local CRM connector.
type Contact struct {
	ID              uuid.UUID  `json:"id"`
	Name            string     `json:"name"`
	Email           string     `json:"email,omitempty"`
	Phone           string     `json:"phone,omitempty"`
	Notes           string     `json:"notes,omitempty"`
	LastContactedAt *time.Time `json:"last_contacted_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// InteractionType constants.
const (
	InteractionCall    = "call"
	InteractionMessage = "message"
	InteractionFax     = "fax"
)

// InteractionLog is a call or message note stored by the local CRM connector.
type InteractionLog struct {
	ID              uuid.UUID `json:"id"`
	ContactID       uuid.UUID `json:"contact_id"`
	InteractionType string    `json:"interaction_type"`
	Subject         string    `json:"subject,omitempty"`
	Body            string    `json:"body,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
	UpdatedAt       time.Time `json:"updated_at"`
}
