// ABOUTME: Message log handler for SMS, MMS, fax, voicemail and shared SMS conversations
// ABOUTME: Skips logged messages, replays oldest first and rewrites attachment links
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/harperreed/callbridge/compose"
	"github.com/harperreed/callbridge/connector"
	"github.com/harperreed/callbridge/db"
	"github.com/harperreed/callbridge/models"
)

type CreateMessageLogInput struct {
	Platform string                    `json:"platform"`
	UserID   string                    `json:"userId"`
	Data     models.IncomingMessageLog `json:"data"`
}

// CreateMessageLog logs the messages of one conversation. Shared conversations
// are logged as a single record per conversation log id, updated in place.
func (h *LogHandlers) CreateMessageLog(ctx context.Context, in CreateMessageLogInput) (res *Result, err error) {
	start := time.Now()
	defer func() { h.observe(connector.CapCreateMessageLog, in.Platform, start, res, err) }()

	s, fail, err := h.open(ctx, in.Platform, in.UserID, "create message log")
	if err != nil || fail != nil {
		return fail, err
	}
	if in.Data.ContactID == "" {
		return contactNotFound(), nil
	}

	contact := connector.ContactInfo{
		ID:          in.Data.ContactID,
		Type:        in.Data.ContactType,
		Name:        in.Data.ContactName,
		PhoneNumber: in.Data.LogInfo.Correspondent.PhoneNumber,
	}
	if in.Data.IsSharedSMS() {
		return h.logSharedSMS(ctx, s, contact, in.Data)
	}
	return h.logMessages(ctx, s, contact, in.Data)
}

func (h *LogHandlers) logSharedSMS(ctx context.Context, s *session, contact connector.ContactInfo, data models.IncomingMessageLog) (*Result, error) {
	info := data.LogInfo
	key := info.ConversationLogID
	if key == "" {
		return warningResult("No conversation to log"), nil
	}
	logger := h.deps.Logger.With("platform", s.platform, "conversation_log_id", key, "user_id", s.user.ID)

	subject, body, err := compose.ComposeSharedSMSLog(compose.SharedSMSParams{
		Format:         s.conn.GetLogFormatType(s.proxy),
		Conversation:   info.Conversation,
		ContactName:    data.ContactName,
		TimezoneOffset: s.user.TimezoneOffset,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to compose shared sms log for %s: %w", s.platform, err)
	}
	shared := &connector.SharedSMSLog{Subject: subject, Body: body}

	existing, err := h.deps.MessageLogs.Find(ctx, key)
	if err != nil {
		return persistenceFailure(logger, "look up message log", err), nil
	}

	if existing != nil {
		if !s.conn.Has(connector.CapUpdateMessageLog) {
			return &Result{Successful: true, LogID: existing.ThirdPartyLogID}, nil
		}
		updated, err := s.conn.UpdateMessageLog(ctx, connector.UpdateMessageLogRequest{
			User:                 s.user,
			Contact:              contact,
			ExistingMessageLog:   existing,
			AuthHeader:           s.authHeader,
			SharedSMS:            shared,
			AdditionalSubmission: data.AdditionalSubmission,
			ProxyConfig:          s.proxy,
		})
		if err != nil {
			return h.remoteFailure(s.platform, "update message log", err), nil
		}
		if err := h.deps.MessageLogs.Touch(ctx, key); err != nil {
			return persistenceFailure(logger, "save message log", err), nil
		}
		res := &Result{Successful: true, LogID: existing.ThirdPartyLogID, LogIDs: []string{existing.ThirdPartyLogID}}
		if updated != nil {
			res.ReturnMessage = updated.ReturnMessage
			res.ExtraDataTracking = updated.ExtraDataTracking
		}
		logger.Info("Shared conversation log updated", "log_id", existing.ThirdPartyLogID)
		return res, nil
	}

	created, err := s.conn.CreateMessageLog(ctx, connector.CreateMessageLogRequest{
		User:                 s.user,
		Contact:              contact,
		AuthHeader:           s.authHeader,
		SharedSMS:            shared,
		AdditionalSubmission: data.AdditionalSubmission,
		ProxyConfig:          s.proxy,
	})
	if err != nil {
		return h.remoteFailure(s.platform, "create message log", err), nil
	}
	if created == nil || created.LogID == "" {
		return unsuccessfulCreate(created), nil
	}

	conversationID := info.ConversationID
	if conversationID == "" && info.Conversation != nil {
		conversationID = info.Conversation.ID
	}
	err = h.deps.MessageLogs.Create(ctx, &models.MessageLogRecord{
		ID:                key,
		Platform:          s.platform,
		ConversationID:    conversationID,
		ThirdPartyLogID:   created.LogID,
		UserID:            s.user.ID,
		ConversationLogID: key,
	})
	if err != nil && !errors.Is(err, db.ErrDuplicate) {
		return persistenceFailure(logger, "save message log", err), nil
	}
	logger.Info("Shared conversation logged", "log_id", created.LogID)
	return &Result{
		Successful:        true,
		LogID:             created.LogID,
		LogIDs:            []string{created.LogID},
		ReturnMessage:     created.ReturnMessage,
		ExtraDataTracking: created.ExtraDataTracking,
	}, nil
}

func (h *LogHandlers) logMessages(ctx context.Context, s *session, contact connector.ContactInfo, data models.IncomingMessageLog) (*Result, error) {
	info := data.LogInfo
	logger := h.deps.Logger.With("platform", s.platform, "conversation_id", info.ConversationID, "user_id", s.user.ID)
	if len(info.Messages) == 0 {
		return warningResult("No message to log"), nil
	}

	ids := make([]string, len(info.Messages))
	for i, m := range info.Messages {
		ids[i] = m.ID
	}
	logged, err := h.deps.MessageLogs.FindLogged(ctx, ids)
	if err != nil {
		return persistenceFailure(logger, "look up message logs", err), nil
	}

	var sameDay *models.MessageLogRecord
	if info.ConversationLogID != "" {
		sameDay, err = h.deps.MessageLogs.FindByConversationLogID(ctx, info.ConversationLogID)
		if err != nil {
			return persistenceFailure(logger, "look up message logs", err), nil
		}
	}
	canUpdate := s.conn.Has(connector.CapUpdateMessageLog)

	res := &Result{Successful: true}
	// Messages arrive newest first; the oldest unlogged one is submitted first.
	for i := len(info.Messages) - 1; i >= 0; i-- {
		msg := info.Messages[i]
		if logged[msg.ID] {
			continue
		}
		links := h.messageLinks(msg)

		var logID string
		if sameDay != nil && canUpdate && isTextMessage(msg) {
			updated, err := s.conn.UpdateMessageLog(ctx, connector.UpdateMessageLogRequest{
				User:                 s.user,
				Contact:              contact,
				ExistingMessageLog:   sameDay,
				AuthHeader:           s.authHeader,
				Message:              msg,
				Links:                links,
				AdditionalSubmission: data.AdditionalSubmission,
				ProxyConfig:          s.proxy,
			})
			if err != nil {
				return partialFailure(res, h.remoteFailure(s.platform, "update message log", err)), nil
			}
			logID = sameDay.ThirdPartyLogID
			if updated != nil && updated.ReturnMessage != nil {
				res.ReturnMessage = updated.ReturnMessage
			}
		} else {
			created, err := s.conn.CreateMessageLog(ctx, connector.CreateMessageLogRequest{
				User:                 s.user,
				Contact:              contact,
				AuthHeader:           s.authHeader,
				Message:              msg,
				Links:                links,
				AdditionalSubmission: data.AdditionalSubmission,
				ProxyConfig:          s.proxy,
			})
			if err != nil {
				return partialFailure(res, h.remoteFailure(s.platform, "create message log", err)), nil
			}
			if created == nil || created.LogID == "" {
				return partialFailure(res, unsuccessfulCreate(created)), nil
			}
			logID = created.LogID
			if created.ReturnMessage != nil {
				res.ReturnMessage = created.ReturnMessage
			}
			res.ExtraDataTracking = created.ExtraDataTracking
		}

		rec := &models.MessageLogRecord{
			ID:                msg.ID,
			Platform:          s.platform,
			ConversationID:    firstNonEmpty(msg.ConversationID, info.ConversationID),
			ThirdPartyLogID:   logID,
			UserID:            s.user.ID,
			ConversationLogID: info.ConversationLogID,
		}
		err = h.deps.MessageLogs.Create(ctx, rec)
		if errors.Is(err, db.ErrDuplicate) {
			logger.Warn("Message was logged concurrently", "message_id", msg.ID)
			continue
		}
		if err != nil {
			return partialFailure(res, persistenceFailure(logger, "save message log", err)), nil
		}
		if sameDay == nil && info.ConversationLogID != "" && isTextMessage(msg) {
			sameDay = rec
		}
		res.LogIDs = append(res.LogIDs, logID)
	}

	if len(res.LogIDs) > 0 {
		res.LogID = res.LogIDs[len(res.LogIDs)-1]
		logger.Info("Messages logged", "count", len(res.LogIDs))
	}
	return res, nil
}

// partialFailure keeps the ids logged before fail happened.
func partialFailure(done, fail *Result) *Result {
	fail.LogIDs = done.LogIDs
	return fail
}

func unsuccessfulCreate(created *connector.CreateMessageLogResult) *Result {
	res := &Result{}
	if created != nil {
		res.ReturnMessage = created.ReturnMessage
		res.ExtraDataTracking = created.ExtraDataTracking
	}
	return res
}

func isTextMessage(m models.Message) bool {
	return m.Type == "" || m.Type == models.MessageTypeSMS
}

// messageLinks classifies attachments into recording, fax document, image and
// video links. Platform media is rewritten to the media reader.
func (h *LogHandlers) messageLinks(m models.Message) connector.MessageLinks {
	var links connector.MessageLinks
	for _, a := range m.Attachments {
		switch a.Type {
		case models.AttachmentAudioRecording:
			if links.RecordingLink == "" {
				links.RecordingLink = firstNonEmpty(a.Link, a.URI)
			}
		case models.AttachmentRenderedDocument:
			if links.FaxDocLink == "" && a.URI != "" {
				links.FaxDocLink = h.mediaReaderLink(a.URI)
				links.FaxDownloadLink = a.URI
			}
		case models.AttachmentMms:
			switch {
			case strings.HasPrefix(a.ContentType, "image/") && links.ImageLink == "":
				links.ImageLink = h.mediaReaderLink(a.URI)
			case strings.HasPrefix(a.ContentType, "video/") && links.VideoLink == "":
				links.VideoLink = h.mediaReaderLink(a.URI)
			}
		}
	}
	return links
}

func (h *LogHandlers) mediaReaderLink(uri string) string {
	if uri == "" {
		return ""
	}
	return h.deps.Options.MediaReaderURL + "?media=" + url.QueryEscape(uri)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
