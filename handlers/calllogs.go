// ABOUTME: Call log handlers: create, update and lookup of CRM call records
// ABOUTME: Sequences dedup, user and auth resolution, processors, composition, dispatch and persistence
package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/harperreed/callbridge/compose"
	"github.com/harperreed/callbridge/connector"
	"github.com/harperreed/callbridge/db"
	"github.com/harperreed/callbridge/models"
	"github.com/harperreed/callbridge/processor"
)

// LogHandlers log calls and messages to the CRM of a platform.
type LogHandlers struct {
	base
}

func NewLogHandlers(deps Deps) *LogHandlers {
	return &LogHandlers{base{deps: deps.withDefaults()}}
}

type CreateCallLogInput struct {
	Platform        string                 `json:"platform"`
	UserID          string                 `json:"userId"`
	HashedAccountID string                 `json:"hashedAccountId,omitempty"`
	IsFromSSCL      bool                   `json:"isFromSSCL,omitempty"`
	Data            models.IncomingCallLog `json:"data"`
}

// afterCallLog is what after-stage processors receive.
type afterCallLog struct {
	models.IncomingCallLog
	LogID         string                `json:"logId"`
	ReturnMessage *models.ReturnMessage `json:"returnMessage,omitempty"`
}

// CreateCallLog logs a new call. A session can be logged once; later attempts
// are answered with a duplicate warning.
func (h *LogHandlers) CreateCallLog(ctx context.Context, in CreateCallLogInput) (res *Result, err error) {
	start := time.Now()
	defer func() { h.observe(connector.CapCreateCallLog, in.Platform, start, res, err) }()

	sessionID := in.Data.LogInfo.SessionID
	logger := h.deps.Logger.With("platform", in.Platform, "session_id", sessionID, "user_id", in.UserID)

	existing, err := h.deps.CallLogs.FindBySessionID(ctx, sessionID)
	if err != nil {
		return persistenceFailure(logger, "look up call log", err), nil
	}
	if existing != nil {
		return duplicateSession(sessionID), nil
	}

	s, fail, err := h.resolve(ctx, in.Platform, in.UserID)
	if err != nil || fail != nil {
		return fail, err
	}

	data := in.Data
	taskIDs := h.runProcessors(ctx, s.user, in.Platform, processor.StageBefore, sessionID, &data)
	if fail := h.authorize(ctx, s, "create call log"); fail != nil {
		return fail, nil
	}

	if data.ContactID == "" {
		return contactNotFound(), nil
	}

	note := h.cachedNote(sessionID, data.Note)
	format := s.conn.GetLogFormatType(s.proxy)
	body, err := compose.ComposeCallLog(compose.CallLogParams{
		Format:     format,
		User:       s.user,
		CallLog:    &data.LogInfo,
		Note:       note,
		AINote:     data.AINote,
		Transcript: data.Transcript,
		RingSense:  data.RingSense,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to compose call log for %s: %w", in.Platform, err)
	}

	contact := connector.ContactInfo{ID: data.ContactID, Type: data.ContactType, Name: data.ContactName}
	contact.PhoneNumber = data.LogInfo.To.PhoneNumber
	if data.LogInfo.Direction == models.DirectionInbound {
		contact.PhoneNumber = data.LogInfo.From.PhoneNumber
	}

	created, err := s.conn.CreateCallLog(ctx, connector.CreateCallLogRequest{
		User:                 s.user,
		Contact:              contact,
		AuthHeader:           s.authHeader,
		CallLog:              data.LogInfo,
		Note:                 note,
		AINote:               data.AINote,
		Transcript:           data.Transcript,
		RingSense:            data.RingSense,
		AdditionalSubmission: data.AdditionalSubmission,
		ComposedLogDetails:   body,
		HashedAccountID:      in.HashedAccountID,
		IsFromSSCL:           in.IsFromSSCL,
		ProxyConfig:          s.proxy,
	})
	if err != nil {
		return h.remoteFailure(in.Platform, "create call log", err), nil
	}
	if created == nil || created.LogID == "" {
		res = &Result{}
		if created != nil {
			res.ReturnMessage = created.ReturnMessage
			res.ExtraDataTracking = created.ExtraDataTracking
		}
		return res, nil
	}

	err = h.deps.CallLogs.Create(ctx, &models.CallLogRecord{
		SessionID:       sessionID,
		Platform:        in.Platform,
		ThirdPartyLogID: created.LogID,
		UserID:          s.user.ID,
		ContactID:       data.ContactID,
	})
	if errors.Is(err, db.ErrDuplicate) {
		logger.Warn("Session was logged concurrently", "log_id", created.LogID)
		return duplicateSession(sessionID), nil
	}
	if err != nil {
		return persistenceFailure(logger, "save call log", err), nil
	}
	logger.Info("Call logged", "log_id", created.LogID)

	after := afterCallLog{IncomingCallLog: data, LogID: created.LogID, ReturnMessage: created.ReturnMessage}
	taskIDs = append(taskIDs, h.runProcessors(ctx, s.user, in.Platform, processor.StageAfter, sessionID, &after)...)

	return &Result{
		Successful:        true,
		LogID:             created.LogID,
		ReturnMessage:     created.ReturnMessage,
		ExtraDataTracking: created.ExtraDataTracking,
		AsyncTaskIDs:      taskIDs,
	}, nil
}

type UpdateCallLogInput struct {
	Platform        string                       `json:"platform"`
	UserID          string                       `json:"userId"`
	HashedAccountID string                       `json:"hashedAccountId,omitempty"`
	Data            models.IncomingCallLogUpdate `json:"data"`
}

// afterCallLogUpdate is what after-stage processors receive on update.
type afterCallLogUpdate struct {
	models.IncomingCallLogUpdate
	LogID       string `json:"logId"`
	UpdatedNote string `json:"updatedNote,omitempty"`
}

// UpdateCallLog patches the CRM record of a logged session. Sessions that were
// never logged are answered unsuccessfully without a message.
func (h *LogHandlers) UpdateCallLog(ctx context.Context, in UpdateCallLogInput) (res *Result, err error) {
	start := time.Now()
	defer func() { h.observe(connector.CapUpdateCallLog, in.Platform, start, res, err) }()

	sessionID := in.Data.SessionID
	logger := h.deps.Logger.With("platform", in.Platform, "session_id", sessionID, "user_id", in.UserID)

	existing, err := h.deps.CallLogs.FindBySessionID(ctx, sessionID)
	if err != nil {
		return persistenceFailure(logger, "look up call log", err), nil
	}
	if existing == nil {
		return &Result{}, nil
	}

	s, fail, err := h.resolve(ctx, in.Platform, in.UserID)
	if err != nil || fail != nil {
		return fail, err
	}

	data := in.Data
	taskIDs := h.runProcessors(ctx, s.user, in.Platform, processor.StageBefore, sessionID, &data)
	if fail := h.authorize(ctx, s, "update call log"); fail != nil {
		return fail, nil
	}

	var details *connector.CallLogDetails
	if s.conn.Has(connector.CapGetCallLog) {
		current, err := s.conn.GetCallLog(ctx, connector.GetCallLogRequest{
			User:        s.user,
			CallLogID:   existing.ThirdPartyLogID,
			ContactID:   existing.ContactID,
			AuthHeader:  s.authHeader,
			ProxyConfig: s.proxy,
		})
		if err != nil {
			return h.remoteFailure(in.Platform, "update call log", err), nil
		}
		if current != nil {
			details = current.CallLogInfo
		}
	}

	params := compose.CallLogParams{
		Format:              s.conn.GetLogFormatType(s.proxy),
		User:                s.user,
		Note:                h.cachedNote(sessionID, data.Note),
		SessionID:           sessionID,
		RingCentralUserName: data.RingCentralUserName,
		Subject:             data.Subject,
		StartTime:           data.StartTime,
		Result:              data.Result,
		RecordingLink:       data.RecordingLink,
		AINote:              data.AINote,
		Transcript:          data.Transcript,
		RingSense:           data.RingSense,
		Legs:                data.Legs,
	}
	if data.Duration != nil {
		params.Duration = *data.Duration
	}
	if details != nil {
		params.ExistingBody = details.FullBody
	}
	body, err := compose.ComposeCallLog(params)
	if err != nil {
		return nil, fmt.Errorf("failed to compose call log for %s: %w", in.Platform, err)
	}

	updated, err := s.conn.UpdateCallLog(ctx, connector.UpdateCallLogRequest{
		User:                 s.user,
		ExistingCallLog:      existing,
		AuthHeader:           s.authHeader,
		RecordingLink:        data.RecordingLink,
		Subject:              data.Subject,
		Note:                 params.Note,
		StartTime:            data.StartTime,
		Duration:             data.Duration,
		Result:               data.Result,
		AINote:               data.AINote,
		Transcript:           data.Transcript,
		AdditionalSubmission: data.AdditionalSubmission,
		ComposedLogDetails:   body,
		ExistingDetails:      details,
		HashedAccountID:      in.HashedAccountID,
		ProxyConfig:          s.proxy,
	})
	if err != nil {
		return h.remoteFailure(in.Platform, "update call log", err), nil
	}
	if updated == nil {
		updated = &connector.UpdateCallLogResult{}
	}
	logger.Info("Call log updated", "log_id", existing.ThirdPartyLogID)

	after := afterCallLogUpdate{IncomingCallLogUpdate: data, LogID: existing.ThirdPartyLogID, UpdatedNote: updated.UpdatedNote}
	taskIDs = append(taskIDs, h.runProcessors(ctx, s.user, in.Platform, processor.StageAfter, sessionID, &after)...)

	return &Result{
		Successful:        true,
		LogID:             existing.ThirdPartyLogID,
		UpdatedNote:       updated.UpdatedNote,
		ReturnMessage:     updated.ReturnMessage,
		ExtraDataTracking: updated.ExtraDataTracking,
		AsyncTaskIDs:      taskIDs,
	}, nil
}

// cachedNote returns the note cached for sessionID when cache-first notes are
// enabled and one exists, inbound otherwise.
func (h *LogHandlers) cachedNote(sessionID, inbound string) string {
	if !h.deps.Options.CacheFirstNote || h.deps.Notes == nil || sessionID == "" {
		return inbound
	}
	cached, ok, err := h.deps.Notes.Get(sessionID)
	if err != nil {
		h.deps.Logger.Warn("Note cache read failed", "session_id", sessionID, "error", err)
		return inbound
	}
	if !ok || cached == "" {
		return inbound
	}
	return cached
}

type GetCallLogInput struct {
	Platform       string   `json:"platform"`
	UserID         string   `json:"userId"`
	SessionIDs     []string `json:"sessionIds"`
	RequireDetails bool     `json:"requireDetails,omitempty"`
}

// SessionLog reports whether a session was logged and, on request, its CRM state.
type SessionLog struct {
	SessionID string                    `json:"sessionId"`
	Matched   bool                      `json:"matched"`
	LogID     string                    `json:"logId,omitempty"`
	Details   *connector.CallLogDetails `json:"logData,omitempty"`
	// NotePreview is the logged note rendered as Markdown.
	NotePreview string `json:"notePreview,omitempty"`
}

type GetCallLogResult struct {
	Result
	Logs []SessionLog `json:"logs"`
}

// GetCallLog reports which sessions were logged. With RequireDetails the CRM
// record of each matched session is fetched as well.
func (h *LogHandlers) GetCallLog(ctx context.Context, in GetCallLogInput) (out *GetCallLogResult, err error) {
	start := time.Now()
	defer func() {
		var res *Result
		if out != nil {
			res = &out.Result
		}
		h.observe(connector.CapGetCallLog, in.Platform, start, res, err)
	}()

	if len(in.SessionIDs) == 0 {
		return &GetCallLogResult{Result: *warningResult("No session id provided")}, nil
	}

	logs := make([]SessionLog, 0, len(in.SessionIDs))
	records := make([]*models.CallLogRecord, 0, len(in.SessionIDs))
	for _, id := range in.SessionIDs {
		rec, err := h.deps.CallLogs.FindBySessionID(ctx, id)
		if err != nil {
			return &GetCallLogResult{Result: *persistenceFailure(h.deps.Logger, "look up call log", err)}, nil
		}
		entry := SessionLog{SessionID: id}
		if rec != nil {
			entry.Matched = true
			entry.LogID = rec.ThirdPartyLogID
		}
		logs = append(logs, entry)
		records = append(records, rec)
	}
	if !in.RequireDetails {
		return &GetCallLogResult{Result: Result{Successful: true}, Logs: logs}, nil
	}

	s, fail, err := h.open(ctx, in.Platform, in.UserID, "get call log")
	if err != nil {
		return nil, err
	}
	if fail != nil {
		return &GetCallLogResult{Result: *fail, Logs: logs}, nil
	}
	if !s.conn.Has(connector.CapGetCallLog) {
		return &GetCallLogResult{Result: Result{Successful: true}, Logs: logs}, nil
	}

	format := s.conn.GetLogFormatType(s.proxy)
	var extra map[string]any
	for i := range logs {
		rec := records[i]
		if rec == nil {
			continue
		}
		got, err := s.conn.GetCallLog(ctx, connector.GetCallLogRequest{
			User:        s.user,
			CallLogID:   rec.ThirdPartyLogID,
			ContactID:   rec.ContactID,
			AuthHeader:  s.authHeader,
			ProxyConfig: s.proxy,
		})
		if err != nil {
			return &GetCallLogResult{Result: *h.remoteFailure(in.Platform, "get call log", err), Logs: logs}, nil
		}
		if got == nil || got.CallLogInfo == nil {
			continue
		}
		extra = got.ExtraDataTracking
		logs[i].Details = got.CallLogInfo
		logs[i].NotePreview = h.notePreview(got.CallLogInfo, format)
	}
	return &GetCallLogResult{Result: Result{Successful: true, ExtraDataTracking: extra}, Logs: logs}, nil
}

// notePreview extracts the note of a fetched record and renders it as Markdown.
func (h *LogHandlers) notePreview(details *connector.CallLogDetails, format string) string {
	note := details.Note
	if note == "" && details.FullBody != "" {
		extracted, err := compose.ExtractNote(details.FullBody, format)
		if err != nil {
			return ""
		}
		note = extracted
	}
	if format != models.FormatHTML {
		return note
	}
	md, err := compose.HTMLToMarkdown(note)
	if err != nil {
		h.deps.Logger.Debug("Note preview conversion failed", "error", err)
		return note
	}
	return md
}
