// ABOUTME: Call log body composer that upserts each semantic field into a CRM note
// ABOUTME: Field inclusion follows user settings with documented defaults
package compose

import (
	"strings"
	"time"

	"github.com/harperreed/callbridge/models"
)

// User setting keys controlling which fields are written to a call log.
const (
	SettingNote                     = "addCallLogNote"
	SettingSessionID                = "addCallSessionId"
	SettingRingCentralUserName      = "addRingCentralUserName"
	SettingRingCentralNumber        = "addRingCentralNumber"
	SettingSubject                  = "addCallLogSubject"
	SettingContactNumber            = "addCallLogContactNumber"
	SettingDateTime                 = "addCallLogDateTime"
	SettingDuration                 = "addCallLogDuration"
	SettingResult                   = "addCallLogResult"
	SettingRecording                = "addCallLogRecording"
	SettingAINote                   = "addCallLogAINote"
	SettingTranscript               = "addCallLogTranscript"
	SettingRingSenseTranscript      = "addCallLogRingSenseRecordingTranscript"
	SettingRingSenseSummary         = "addCallLogRingSenseRecordingSummary"
	SettingRingSenseAIScore         = "addCallLogRingSenseRecordingAIScore"
	SettingRingSenseBulletedSummary = "addCallLogRingSenseRecordingBulletedSummary"
	SettingRingSenseLink            = "addCallLogRingSenseRecordingLink"
	SettingCallLegs                 = "addCallLogLegs"

	SettingDateFormat = "logDateFormat"
)

var settingDefaults = map[string]bool{
	SettingNote:                     true,
	SettingSessionID:                false,
	SettingRingCentralUserName:      false,
	SettingRingCentralNumber:        false,
	SettingSubject:                  true,
	SettingContactNumber:            true,
	SettingDateTime:                 true,
	SettingDuration:                 true,
	SettingResult:                   true,
	SettingRecording:                true,
	SettingAINote:                   true,
	SettingTranscript:               true,
	SettingRingSenseTranscript:      true,
	SettingRingSenseSummary:         true,
	SettingRingSenseAIScore:         true,
	SettingRingSenseBulletedSummary: true,
	SettingRingSenseLink:            true,
	SettingCallLegs:                 true,
}

// Included reports whether the field controlled by key is written for user.
// A missing setting falls back to the field's default.
func Included(user *models.User, key string) bool {
	def := settingDefaults[key]
	if user == nil {
		return def
	}
	return user.BoolSetting(key, def)
}

// PendingPlaceholder marks a value that is not resolved yet.
const PendingPlaceholder = "(pending...)"

// CallLogParams are the inputs of ComposeCallLog. Zero values skip their
// field. Values left empty are derived from CallLog where it carries them.
type CallLogParams struct {
	Format       string
	ExistingBody string
	User         *models.User
	CallLog      *models.CallLogInfo

	Note                 string
	SessionID            string
	RingCentralUserName  string
	RingCentralNumber    string
	RingCentralExtension string
	Subject              string
	ContactNumber        string
	StartTime            *time.Time
	Duration             any
	Result               string
	RecordingLink        string
	AINote               string
	Transcript           string
	RingSense            models.RingSenseData
	Legs                 []models.CallLeg
}

// ComposeCallLog builds or patches a call log body. Each field is upserted in
// a fixed order on top of ExistingBody.
func ComposeCallLog(p CallLogParams) (string, error) {
	if err := checkFormat(p.Format); err != nil {
		return "", err
	}
	p.fillFromCallLog()

	body := p.ExistingBody
	format := p.Format
	user := p.User

	steps := []struct {
		setting string
		apply   func(string) (string, error)
	}{
		{SettingNote, func(b string) (string, error) { return UpsertNote(b, p.Note, format) }},
		{SettingSessionID, func(b string) (string, error) { return UpsertSessionID(b, p.SessionID, format) }},
		{SettingRingCentralUserName, func(b string) (string, error) {
			return UpsertRingCentralUserName(b, p.RingCentralUserName, format)
		}},
		{SettingRingCentralNumber, func(b string) (string, error) {
			return UpsertRingCentralNumber(b, p.RingCentralNumber, p.RingCentralExtension, format)
		}},
		{SettingSubject, func(b string) (string, error) { return UpsertSubject(b, p.Subject, format) }},
		{SettingContactNumber, func(b string) (string, error) { return UpsertContactNumber(b, p.ContactNumber, format) }},
		{SettingDateTime, func(b string) (string, error) {
			if p.StartTime == nil {
				return b, nil
			}
			var offset any
			pattern := DefaultDateFormat
			if user != nil {
				offset = user.TimezoneOffset
				if f := user.StringSetting(SettingDateFormat); f != "" {
					pattern = f
				}
			}
			return UpsertDateTime(b, *p.StartTime, offset, pattern, format)
		}},
		{SettingDuration, func(b string) (string, error) { return UpsertDuration(b, p.Duration, format) }},
		{SettingResult, func(b string) (string, error) { return UpsertResult(b, p.Result, format) }},
		{SettingRecording, func(b string) (string, error) { return UpsertRecordingLink(b, p.RecordingLink, format) }},
		{SettingAINote, func(b string) (string, error) { return UpsertAINote(b, p.AINote, format) }},
		{SettingTranscript, func(b string) (string, error) { return UpsertTranscript(b, p.Transcript, format) }},
		{SettingRingSenseTranscript, func(b string) (string, error) {
			return UpsertRingSenseTranscript(b, p.RingSense.Transcript, format)
		}},
		{SettingRingSenseSummary, func(b string) (string, error) {
			return UpsertRingSenseSummary(b, p.RingSense.Summary, format)
		}},
		{SettingRingSenseAIScore, func(b string) (string, error) {
			return UpsertRingSenseAIScore(b, p.RingSense.AIScore, format)
		}},
		{SettingRingSenseBulletedSummary, func(b string) (string, error) {
			return UpsertRingSenseBulletedSummary(b, p.RingSense.BulletedSummary, format)
		}},
		{SettingRingSenseLink, func(b string) (string, error) { return UpsertRingSenseLink(b, p.RingSense.Link, format) }},
		{SettingCallLegs, func(b string) (string, error) { return UpsertCallLegs(b, p.Legs, format) }},
	}

	for _, step := range steps {
		if !Included(user, step.setting) {
			continue
		}
		var err error
		if body, err = step.apply(body); err != nil {
			return "", err
		}
	}
	return body, nil
}

func (p *CallLogParams) fillFromCallLog() {
	c := p.CallLog
	if c == nil {
		return
	}
	if p.SessionID == "" {
		p.SessionID = c.SessionID
	}
	if p.Subject == "" {
		p.Subject = c.CustomSubject
	}
	if p.StartTime == nil && !c.StartTime.IsZero() {
		start := c.StartTime
		p.StartTime = &start
	}
	if p.Duration == nil && c.Duration != nil {
		p.Duration = *c.Duration
	}
	if p.Result == "" {
		p.Result = c.Result
	}
	if p.RecordingLink == "" && c.Recording != nil {
		p.RecordingLink = c.Recording.Link
	}
	if len(p.Legs) == 0 {
		p.Legs = c.Legs
	}

	contact, own := c.To, c.From
	if c.Direction == models.DirectionInbound {
		contact, own = c.From, c.To
	}
	if p.ContactNumber == "" {
		p.ContactNumber = contact.PhoneNumber
	}
	if p.RingCentralNumber == "" {
		p.RingCentralNumber = own.PhoneNumber
		if p.RingCentralExtension == "" {
			p.RingCentralExtension = own.ExtensionNumber
		}
	}
}

// UpsertNote writes the user-entered note.
func UpsertNote(body, note, format string) (string, error) {
	return fieldNote.upsert(body, note, format, nil)
}

func UpsertSessionID(body, sessionID, format string) (string, error) {
	return fieldSessionID.upsert(body, sessionID, format, nil)
}

// UpsertRingCentralUserName only replaces an existing name when it is still
// the pending placeholder.
func UpsertRingCentralUserName(body, name, format string) (string, error) {
	return fieldRingCentralUserName.upsert(body, name, format, func(existing string) bool {
		return strings.TrimSpace(existing) != PendingPlaceholder
	})
}

func UpsertRingCentralNumber(body, number, extension, format string) (string, error) {
	if number == "" {
		return body, checkFormat(format)
	}
	if extension != "" {
		number += ", ext " + extension
	}
	return fieldRingCentralNumber.upsert(body, number, format, nil)
}

func UpsertSubject(body, subject, format string) (string, error) {
	return fieldSubject.upsert(body, subject, format, nil)
}

func UpsertContactNumber(body, number, format string) (string, error) {
	return fieldContactNumber.upsert(body, number, format, nil)
}

// UpsertDateTime writes the call start time shifted by the user's offset.
func UpsertDateTime(body string, start time.Time, offset any, pattern, format string) (string, error) {
	if start.IsZero() {
		return body, checkFormat(format)
	}
	return fieldDateTime.upsert(body, FormatDateTime(start, offset, pattern), format, nil)
}

// UpsertDuration writes a numeric duration in English; other values are written as given.
func UpsertDuration(body string, duration any, format string) (string, error) {
	return fieldDuration.upsert(body, FormatDuration(duration), format, nil)
}

func UpsertResult(body, result, format string) (string, error) {
	return fieldResult.upsert(body, result, format, nil)
}

// UpsertRecordingLink writes a visible link for http(s) URLs and the pending
// placeholder for any other token.
func UpsertRecordingLink(body, link, format string) (string, error) {
	if link == "" {
		return body, checkFormat(format)
	}
	return fieldRecording.upsert(body, renderLink(link, format), format, nil)
}

func renderLink(link, format string) string {
	if !strings.HasPrefix(link, "http://") && !strings.HasPrefix(link, "https://") {
		return PendingPlaceholder
	}
	switch format {
	case models.FormatHTML:
		return `<a target="_blank" href="` + link + `">` + link + `</a>`
	case models.FormatMarkdown:
		return "[" + link + "](" + link + ")"
	}
	return link
}

// UpsertAINote replaces the whole AI note block.
func UpsertAINote(body, aiNote, format string) (string, error) {
	return fieldAINote.upsert(body, aiNote, format, nil)
}

func UpsertTranscript(body, transcript, format string) (string, error) {
	return fieldTranscript.upsert(body, transcript, format, nil)
}

func UpsertRingSenseTranscript(body, transcript, format string) (string, error) {
	return fieldRingSenseTranscript.upsert(body, transcript, format, nil)
}

func UpsertRingSenseSummary(body, summary, format string) (string, error) {
	return fieldRingSenseSummary.upsert(body, summary, format, nil)
}

func UpsertRingSenseAIScore(body, score, format string) (string, error) {
	return fieldRingSenseAIScore.upsert(body, score, format, nil)
}

func UpsertRingSenseBulletedSummary(body, summary, format string) (string, error) {
	return fieldRingSenseBulletedSummary.upsert(body, summary, format, nil)
}

func UpsertRingSenseLink(body, link, format string) (string, error) {
	if link == "" {
		return body, checkFormat(format)
	}
	return fieldRingSenseLink.upsert(body, renderLink(link, format), format, nil)
}

// UpsertCallLegs writes the call journey of a multi-leg call.
func UpsertCallLegs(body string, legs []models.CallLeg, format string) (string, error) {
	return fieldCallLegs.upsert(body, CallJourney(legs), format, nil)
}
