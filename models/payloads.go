// ABOUTME: Inbound telephony payloads sent by the extension for call and message logging
// ABOUTME: Mirrors the call log, message store and shared conversation shapes of the platform
package models

import "time"

// Call direction constants.
const (
	DirectionInbound  = "Inbound"
	DirectionOutbound = "Outbound"
)

// CallParty is one side of a call or message.
type CallParty struct {
	Name            string `json:"name,omitempty"`
	PhoneNumber     string `json:"phoneNumber,omitempty"`
	ExtensionNumber string `json:"extensionNumber,omitempty"`
}

// Recording references a call recording. Link holds a URL once the recording is
// available, or a placeholder token while it is still being processed.
type Recording struct {
	ID   string `json:"id,omitempty"`
	Link string `json:"link,omitempty"`
}

// CallLeg is one hop of a multi-leg (transferred) call.
type CallLeg struct {
	Direction string    `json:"direction"`
	Duration  int       `json:"duration"`
	LegType   string    `json:"legType,omitempty"`
	StartTime time.Time `json:"startTime"`
	From      CallParty `json:"from"`
	To        CallParty `json:"to"`
}

// CallLogInfo is the telephony side description of a call.
type CallLogInfo struct {
	ID                 string     `json:"id,omitempty"`
	SessionID          string     `json:"sessionId"`
	TelephonySessionID string     `json:"telephonySessionId,omitempty"`
	StartTime          time.Time  `json:"startTime"`
	Duration           *int       `json:"duration,omitempty"`
	Result             string     `json:"result,omitempty"`
	Direction          string     `json:"direction,omitempty"`
	From               CallParty  `json:"from"`
	To                 CallParty  `json:"to"`
	Recording          *Recording `json:"recording,omitempty"`
	Legs               []CallLeg  `json:"legs,omitempty"`
	CustomSubject      string     `json:"customSubject,omitempty"`
}

// RingSenseData carries AI call analysis results.
type RingSenseData struct {
	Transcript      string `json:"ringSenseTranscript,omitempty"`
	Summary         string `json:"ringSenseSummary,omitempty"`
	AIScore         string `json:"ringSenseAIScore,omitempty"`
	BulletedSummary string `json:"ringSenseBulletedSummary,omitempty"`
	Link            string `json:"ringSenseLink,omitempty"`
}

// IncomingCallLog is the request body of a create call log operation.
type IncomingCallLog struct {
	LogInfo              CallLogInfo    `json:"logInfo"`
	ContactID            string         `json:"contactId"`
	ContactType          string         `json:"contactType,omitempty"`
	ContactName          string         `json:"contactName,omitempty"`
	Note                 string         `json:"note,omitempty"`
	AINote               string         `json:"aiNote,omitempty"`
	Transcript           string         `json:"transcript,omitempty"`
	RingSense            RingSenseData  `json:"ringSense,omitempty"`
	AdditionalSubmission map[string]any `json:"additionalSubmission,omitempty"`
}

// IncomingCallLogUpdate is the request body of an update call log operation.
// Empty fields leave the corresponding block of the CRM note untouched.
type IncomingCallLogUpdate struct {
	SessionID            string         `json:"sessionId"`
	RecordingLink        string         `json:"recordingLink,omitempty"`
	Subject              string         `json:"subject,omitempty"`
	Note                 string         `json:"note,omitempty"`
	StartTime            *time.Time     `json:"startTime,omitempty"`
	Duration             *int           `json:"duration,omitempty"`
	Result               string         `json:"result,omitempty"`
	AINote               string         `json:"aiNote,omitempty"`
	Transcript           string         `json:"transcript,omitempty"`
	RingSense            RingSenseData  `json:"ringSense,omitempty"`
	Legs                 []CallLeg      `json:"legs,omitempty"`
	RingCentralUserName  string         `json:"rcUserName,omitempty"`
	AdditionalSubmission map[string]any `json:"additionalSubmission,omitempty"`
}

// Message attachment types reported by the message store.
const (
	AttachmentAudioRecording   = "AudioRecording"
	AttachmentRenderedDocument = "RenderedDocument"
	AttachmentMms              = "MmsAttachment"
	AttachmentText             = "Text"
)

// Attachment is a message store attachment.
type Attachment struct {
	ID          string `json:"id,omitempty"`
	Type        string `json:"type"`
	ContentType string `json:"contentType,omitempty"`
	URI         string `json:"uri,omitempty"`
	Link        string `json:"link,omitempty"`
	VmDuration  int    `json:"vmDuration,omitempty"`
}

// Message types reported by the message store.
const (
	MessageTypeSMS       = "SMS"
	MessageTypeFax       = "Fax"
	MessageTypeVoicemail = "VoiceMail"
)

// Message is one SMS, MMS, fax or voicemail.
type Message struct {
	ID             string       `json:"id"`
	ConversationID string       `json:"conversationId,omitempty"`
	Type           string       `json:"type,omitempty"`
	Subject        string       `json:"subject,omitempty"`
	Direction      string       `json:"direction,omitempty"`
	CreationTime   time.Time    `json:"creationTime"`
	From           CallParty    `json:"from"`
	To             []CallParty  `json:"to,omitempty"`
	Attachments    []Attachment `json:"attachments,omitempty"`
	FaxPageCount   int          `json:"faxPageCount,omitempty"`
}

// Shared conversation entity record types.
const (
	EntityAliveMessage        = "AliveMessage"
	EntityAliveNote           = "AliveNote"
	EntityNoteHint            = "NoteHint"
	EntityThreadNoteAddedHint = "ThreadNoteAddedHint"
	EntityThreadAssignedHint  = "ThreadAssignedHint"
	EntityThreadResolvedHint  = "ThreadResolvedHint"
	EntityThreadReopenedHint  = "ThreadReopenedHint"
	EntityThreadCreatedHint   = "ThreadCreatedHint"
)

// EntityPerson names a participant referenced by a conversation entity.
type EntityPerson struct {
	Name        string `json:"name,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
}

// ConversationEntity is one timeline item of a shared conversation.
type ConversationEntity struct {
	ID           string        `json:"id"`
	RecordType   string        `json:"recordType"`
	CreationTime time.Time     `json:"creationTime"`
	Direction    string        `json:"direction,omitempty"`
	Text         string        `json:"text,omitempty"`
	Author       *EntityPerson `json:"author,omitempty"`
	From         *EntityPerson `json:"from,omitempty"`
	Initiator    *EntityPerson `json:"initiator,omitempty"`
	Assignee     *EntityPerson `json:"assignee,omitempty"`
}

// ConversationOwner is the user or call queue that owns a shared conversation.
type ConversationOwner struct {
	Name          string `json:"name,omitempty"`
	ExtensionID   string `json:"extensionId,omitempty"`
	ExtensionType string `json:"extensionType,omitempty"`
}

// SharedConversation is a multi-party shared SMS thread.
type SharedConversation struct {
	ID           string               `json:"id"`
	CreationTime time.Time            `json:"creationTime"`
	Owner        *ConversationOwner   `json:"owner,omitempty"`
	Entities     []ConversationEntity `json:"entities,omitempty"`
}

// MessageLogInfo describes the messages of one conversation to log.
type MessageLogInfo struct {
	ConversationID    string              `json:"conversationId"`
	ConversationLogID string              `json:"conversationLogId"`
	Messages          []Message           `json:"messages,omitempty"`
	Correspondent     CallParty           `json:"correspondentInfo"`
	Conversation      *SharedConversation `json:"conversation,omitempty"`
}

// IncomingMessageLog is the request body of a create message log operation.
type IncomingMessageLog struct {
	LogInfo              MessageLogInfo `json:"logInfo"`
	ContactID            string         `json:"contactId"`
	ContactType          string         `json:"contactType,omitempty"`
	ContactName          string         `json:"contactName,omitempty"`
	AdditionalSubmission map[string]any `json:"additionalSubmission,omitempty"`
}

// IsSharedSMS reports whether the payload is a shared conversation log.
func (m *IncomingMessageLog) IsSharedSMS() bool {
	return m.LogInfo.Conversation != nil
}
