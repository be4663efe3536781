// ABOUTME: Built-in CRM connector storing contacts and logged interactions in the local database
// ABOUTME: Implements every capability of the connector contract with api key auth and plain text notes
package local

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/callbridge/compose"
	"github.com/harperreed/callbridge/connector"
	"github.com/harperreed/callbridge/models"
)

// Platform is the registry key of the local connector.
const Platform = "local"

var errInteractionNotFound = errors.New("interaction not found")

// ContactStore is satisfied by db.ContactRepository.
type ContactStore interface {
	Create(ctx context.Context, contact *models.Contact) error
	Get(ctx context.Context, id uuid.UUID) (*models.Contact, error)
	FindByPhone(ctx context.Context, phone string, limit int) ([]models.Contact, error)
	FindByName(ctx context.Context, name string, limit int) ([]models.Contact, error)
	TouchLastContacted(ctx context.Context, id uuid.UUID, at time.Time) error
}

// InteractionStore is satisfied by db.InteractionRepository.
type InteractionStore interface {
	Create(ctx context.Context, in *models.InteractionLog) error
	Get(ctx context.Context, id uuid.UUID) (*models.InteractionLog, error)
	Update(ctx context.Context, id uuid.UUID, subject, body string) error
}

type Connector struct {
	contacts     ContactStore
	interactions InteractionStore
	searchLimit  int
}

func New(contacts ContactStore, interactions InteractionStore) *Connector {
	return &Connector{contacts: contacts, interactions: interactions, searchLimit: 20}
}

// Manifest describes the connector to the registry.
func Manifest() *connector.Manifest {
	return &connector.Manifest{
		Platform:    Platform,
		DisplayName: "Local CRM",
		AuthType:    models.AuthTypeAPIKey,
	}
}

// Register adds the connector and its manifest to reg.
func Register(reg *connector.Registry, contacts ContactStore, interactions InteractionStore) error {
	return reg.RegisterConnector(Platform, New(contacts, interactions), Manifest())
}

func (c *Connector) GetAuthType(context.Context, connector.AuthTypeRequest) (string, error) {
	return models.AuthTypeAPIKey, nil
}

func (c *Connector) GetBasicAuth(req connector.BasicAuthRequest) string {
	return base64.StdEncoding.EncodeToString([]byte(req.APIKey + ":"))
}

func (c *Connector) GetLogFormatType(string, *models.ProxyConfig) string {
	return models.FormatPlainText
}

func success(message string) *models.ReturnMessage {
	return &models.ReturnMessage{MessageType: models.MessageTypeSuccess, Message: message, TTL: 2000}
}

func warning(message string) *models.ReturnMessage {
	return &models.ReturnMessage{MessageType: models.MessageTypeWarning, Message: message, TTL: 3000}
}

// contact loads the contact a log is attached to. A malformed or unknown id is
// reported as nil.
func (c *Connector) contact(ctx context.Context, id string) (*models.Contact, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, nil
	}
	return c.contacts.Get(ctx, parsed)
}

func (c *Connector) interaction(ctx context.Context, id string) (*models.InteractionLog, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, connector.NewRemoteError(Platform, 404, fmt.Errorf("%w: %s", errInteractionNotFound, id))
	}
	in, err := c.interactions.Get(ctx, parsed)
	if err != nil {
		return nil, err
	}
	if in == nil {
		return nil, connector.NewRemoteError(Platform, 404, fmt.Errorf("%w: %s", errInteractionNotFound, id))
	}
	return in, nil
}

func (c *Connector) CreateCallLog(ctx context.Context, req connector.CreateCallLogRequest) (*connector.CreateCallLogResult, error) {
	contact, err := c.contact(ctx, req.Contact.ID)
	if err != nil {
		return nil, err
	}
	if contact == nil {
		return &connector.CreateCallLogResult{ReturnMessage: warning("Contact not found")}, nil
	}

	at := req.CallLog.StartTime
	if at.IsZero() {
		at = time.Now().UTC()
	}
	in := &models.InteractionLog{
		ContactID:       contact.ID,
		InteractionType: models.InteractionCall,
		Subject:         callSubject(req.CallLog, contact.Name),
		Body:            req.ComposedLogDetails,
		Timestamp:       at,
	}
	if err := c.interactions.Create(ctx, in); err != nil {
		return nil, fmt.Errorf("failed to log call: %w", err)
	}
	if err := c.contacts.TouchLastContacted(ctx, contact.ID, at); err != nil {
		return nil, err
	}
	return &connector.CreateCallLogResult{
		LogID:         in.ID.String(),
		ReturnMessage: success("Call logged"),
	}, nil
}

func callSubject(info models.CallLogInfo, contactName string) string {
	if info.CustomSubject != "" {
		return info.CustomSubject
	}
	direction := info.Direction
	if direction == "" {
		direction = models.DirectionOutbound
	}
	if contactName == "" {
		return direction + " call"
	}
	return fmt.Sprintf("%s call with %s", direction, contactName)
}

func (c *Connector) UpdateCallLog(ctx context.Context, req connector.UpdateCallLogRequest) (*connector.UpdateCallLogResult, error) {
	if req.ExistingCallLog == nil {
		return nil, fmt.Errorf("existing call log is required")
	}
	in, err := c.interaction(ctx, req.ExistingCallLog.ThirdPartyLogID)
	if err != nil {
		return nil, err
	}

	subject := in.Subject
	if req.Subject != "" {
		subject = req.Subject
	}
	body := in.Body
	if req.ComposedLogDetails != "" {
		body = req.ComposedLogDetails
	}
	if err := c.interactions.Update(ctx, in.ID, subject, body); err != nil {
		return nil, err
	}
	return &connector.UpdateCallLogResult{
		UpdatedNote:   req.Note,
		ReturnMessage: success("Call log updated"),
	}, nil
}

func (c *Connector) GetCallLog(ctx context.Context, req connector.GetCallLogRequest) (*connector.GetCallLogResult, error) {
	in, err := c.interaction(ctx, req.CallLogID)
	if err != nil {
		return nil, err
	}
	note, err := compose.ExtractNote(in.Body, models.FormatPlainText)
	if err != nil {
		return nil, err
	}
	return &connector.GetCallLogResult{CallLogInfo: &connector.CallLogDetails{
		Subject:  in.Subject,
		Note:     note,
		FullBody: in.Body,
	}}, nil
}

func (c *Connector) CreateMessageLog(ctx context.Context, req connector.CreateMessageLogRequest) (*connector.CreateMessageLogResult, error) {
	contact, err := c.contact(ctx, req.Contact.ID)
	if err != nil {
		return nil, err
	}
	if contact == nil {
		return &connector.CreateMessageLogResult{ReturnMessage: warning("Contact not found")}, nil
	}

	in := &models.InteractionLog{ContactID: contact.ID, InteractionType: models.InteractionMessage}
	if req.SharedSMS != nil {
		in.Subject = req.SharedSMS.Subject
		in.Body = req.SharedSMS.Body
		in.Timestamp = time.Now().UTC()
	} else {
		if req.Message.Type == models.MessageTypeFax {
			in.InteractionType = models.InteractionFax
		}
		in.Subject = messageSubject(req.Message, contact.Name)
		in.Body = messageLine(req.Message, req.Links, req.User)
		in.Timestamp = req.Message.CreationTime
	}
	if in.Timestamp.IsZero() {
		in.Timestamp = time.Now().UTC()
	}

	if err := c.interactions.Create(ctx, in); err != nil {
		return nil, fmt.Errorf("failed to log message: %w", err)
	}
	if err := c.contacts.TouchLastContacted(ctx, contact.ID, in.Timestamp); err != nil {
		return nil, err
	}
	return &connector.CreateMessageLogResult{LogID: in.ID.String(), ReturnMessage: success("Message logged")}, nil
}

// UpdateMessageLog appends a message to a day's conversation record, or
// replaces a shared conversation with its latest rendering.
func (c *Connector) UpdateMessageLog(ctx context.Context, req connector.UpdateMessageLogRequest) (*connector.UpdateMessageLogResult, error) {
	if req.ExistingMessageLog == nil {
		return nil, fmt.Errorf("existing message log is required")
	}
	in, err := c.interaction(ctx, req.ExistingMessageLog.ThirdPartyLogID)
	if err != nil {
		return nil, err
	}

	subject, body := in.Subject, in.Body
	if req.SharedSMS != nil {
		subject, body = req.SharedSMS.Subject, req.SharedSMS.Body
	} else {
		if body != "" && !strings.HasSuffix(body, "\n") {
			body += "\n"
		}
		body += messageLine(req.Message, req.Links, req.User)
	}
	if err := c.interactions.Update(ctx, in.ID, subject, body); err != nil {
		return nil, err
	}
	return &connector.UpdateMessageLogResult{ReturnMessage: success("Message log updated")}, nil
}

func messageSubject(m models.Message, contactName string) string {
	kind := m.Type
	if kind == "" {
		kind = models.MessageTypeSMS
	}
	if contactName == "" {
		return kind + " conversation"
	}
	return fmt.Sprintf("%s conversation with %s", kind, contactName)
}

// messageLine renders one message and its links as plain text lines.
func messageLine(m models.Message, links connector.MessageLinks, user *models.User) string {
	var offset any
	if user != nil {
		offset = user.TimezoneOffset
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s %s", compose.FormatDateTime(m.CreationTime, offset, "hh:mm A"), m.Direction))
	if name := firstNonEmpty(m.From.Name, m.From.PhoneNumber); name != "" {
		b.WriteString(" from " + name)
	}
	if m.Subject != "" {
		b.WriteString(": " + m.Subject)
	}
	b.WriteString("\n")

	for _, l := range []struct{ label, url string }{
		{"Recording", links.RecordingLink},
		{"Fax document", links.FaxDocLink},
		{"Fax download", links.FaxDownloadLink},
		{"Image", links.ImageLink},
		{"Video", links.VideoLink},
	} {
		if l.url != "" {
			b.WriteString(fmt.Sprintf("  %s: %s\n", l.label, l.url))
		}
	}
	return b.String()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func toContact(c models.Contact) connector.Contact {
	return connector.Contact{
		ID:    c.ID.String(),
		Name:  c.Name,
		Type:  "contact",
		Phone: c.Phone,
	}
}

func (c *Connector) FindContact(ctx context.Context, req connector.FindContactRequest) (*connector.FindContactResult, error) {
	if req.IsExtension {
		return &connector.FindContactResult{ReturnMessage: warning("Extension numbers are not stored in the local CRM")}, nil
	}
	candidates, err := c.contacts.FindByPhone(ctx, req.PhoneNumber, c.searchLimit)
	if err != nil {
		return nil, err
	}
	ranked := newPhoneMatcher(req.PhoneNumber).Rank(candidates)
	out := &connector.FindContactResult{Contacts: make([]connector.Contact, 0, len(ranked))}
	for _, contact := range ranked {
		out.Contacts = append(out.Contacts, toContact(contact))
	}
	return out, nil
}

func (c *Connector) FindContactWithName(ctx context.Context, req connector.FindContactWithNameRequest) (*connector.FindContactResult, error) {
	found, err := c.contacts.FindByName(ctx, req.Name, c.searchLimit)
	if err != nil {
		return nil, err
	}
	out := &connector.FindContactResult{Contacts: make([]connector.Contact, 0, len(found))}
	for _, contact := range found {
		out.Contacts = append(out.Contacts, toContact(contact))
	}
	return out, nil
}

func (c *Connector) CreateContact(ctx context.Context, req connector.CreateContactRequest) (*connector.CreateContactResult, error) {
	contact := &models.Contact{Name: strings.TrimSpace(req.NewContactName), Phone: req.PhoneNumber}
	if notes, ok := req.AdditionalSubmission["notes"].(string); ok {
		contact.Notes = notes
	}
	if err := c.contacts.Create(ctx, contact); err != nil {
		return nil, fmt.Errorf("failed to create contact: %w", err)
	}
	created := toContact(*contact)
	created.IsNewContact = true
	return &connector.CreateContactResult{
		Contact:       &created,
		ReturnMessage: success("Contact created"),
	}, nil
}

// UnAuthorize has nothing to revoke: the api key lives with the user record.
func (c *Connector) UnAuthorize(context.Context, connector.UnAuthorizeRequest) (*connector.UnAuthorizeResult, error) {
	return &connector.UnAuthorizeResult{ReturnMessage: success("Logged out of the local CRM")}, nil
}
