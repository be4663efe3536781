// ABOUTME: Contact handlers: lookup by phone number or name and contact creation
// ABOUTME: Dispatches to the connector of a platform with the shared failure classification
package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/harperreed/callbridge/connector"
)

type ContactHandlers struct {
	base
}

func NewContactHandlers(deps Deps) *ContactHandlers {
	return &ContactHandlers{base{deps: deps.withDefaults()}}
}

type FindContactInput struct {
	Platform         string `json:"platform"`
	UserID           string `json:"userId"`
	PhoneNumber      string `json:"phoneNumber"`
	OverridingFormat string `json:"overridingFormat,omitempty"`
	IsExtension      bool   `json:"isExtension,omitempty"`
}

type ContactResult struct {
	Result
	Contacts []connector.Contact `json:"contacts"`
}

func contactResult(res *Result) *ContactResult {
	return &ContactResult{Result: *res}
}

func (h *ContactHandlers) FindContact(ctx context.Context, in FindContactInput) (out *ContactResult, err error) {
	start := time.Now()
	defer func() { h.observeContacts(connector.CapFindContact, in.Platform, start, out, err) }()

	if strings.TrimSpace(in.PhoneNumber) == "" {
		return contactResult(warningResult("Phone number is required")), nil
	}
	s, fail, err := h.open(ctx, in.Platform, in.UserID, "find contact")
	if err != nil {
		return nil, err
	}
	if fail != nil {
		return contactResult(fail), nil
	}

	found, err := s.conn.FindContact(ctx, connector.FindContactRequest{
		User:             s.user,
		AuthHeader:       s.authHeader,
		PhoneNumber:      in.PhoneNumber,
		OverridingFormat: in.OverridingFormat,
		IsExtension:      in.IsExtension,
		ProxyConfig:      s.proxy,
	})
	if err != nil {
		return contactResult(h.remoteFailure(in.Platform, "find contact", err)), nil
	}
	return foundContacts(found), nil
}

type FindContactWithNameInput struct {
	Platform string `json:"platform"`
	UserID   string `json:"userId"`
	Name     string `json:"name"`
}

func (h *ContactHandlers) FindContactWithName(ctx context.Context, in FindContactWithNameInput) (out *ContactResult, err error) {
	start := time.Now()
	defer func() { h.observeContacts(connector.CapFindContactWithName, in.Platform, start, out, err) }()

	if strings.TrimSpace(in.Name) == "" {
		return contactResult(warningResult("Name is required")), nil
	}
	s, fail, err := h.open(ctx, in.Platform, in.UserID, "find contact")
	if err != nil {
		return nil, err
	}
	if fail != nil {
		return contactResult(fail), nil
	}

	found, err := s.conn.FindContactWithName(ctx, connector.FindContactWithNameRequest{
		User:        s.user,
		AuthHeader:  s.authHeader,
		Name:        in.Name,
		ProxyConfig: s.proxy,
	})
	if err != nil {
		return contactResult(h.remoteFailure(in.Platform, "find contact", err)), nil
	}
	return foundContacts(found), nil
}

func foundContacts(found *connector.FindContactResult) *ContactResult {
	out := &ContactResult{Result: Result{Successful: true}}
	if found == nil {
		return out
	}
	out.Contacts = found.Contacts
	out.ReturnMessage = found.ReturnMessage
	out.ExtraDataTracking = found.ExtraDataTracking
	if len(found.Contacts) == 0 {
		out.Successful = false
		if out.ReturnMessage == nil {
			out.ReturnMessage = contactNotFound().ReturnMessage
		}
	}
	return out
}

type CreateContactInput struct {
	Platform             string         `json:"platform"`
	UserID               string         `json:"userId"`
	PhoneNumber          string         `json:"phoneNumber"`
	NewContactName       string         `json:"newContactName"`
	NewContactType       string         `json:"newContactType,omitempty"`
	AdditionalSubmission map[string]any `json:"additionalSubmission,omitempty"`
}

func (h *ContactHandlers) CreateContact(ctx context.Context, in CreateContactInput) (out *ContactResult, err error) {
	start := time.Now()
	defer func() { h.observeContacts(connector.CapCreateContact, in.Platform, start, out, err) }()

	if strings.TrimSpace(in.NewContactName) == "" {
		return contactResult(warningResult("Contact name is required")), nil
	}
	s, fail, err := h.open(ctx, in.Platform, in.UserID, "create contact")
	if err != nil {
		return nil, err
	}
	if fail != nil {
		return contactResult(fail), nil
	}

	created, err := s.conn.CreateContact(ctx, connector.CreateContactRequest{
		User:                 s.user,
		AuthHeader:           s.authHeader,
		PhoneNumber:          in.PhoneNumber,
		NewContactName:       in.NewContactName,
		NewContactType:       in.NewContactType,
		AdditionalSubmission: in.AdditionalSubmission,
		ProxyConfig:          s.proxy,
	})
	if err != nil {
		return contactResult(h.remoteFailure(in.Platform, "create contact", err)), nil
	}
	out = &ContactResult{}
	if created == nil {
		return out, nil
	}
	out.ReturnMessage = created.ReturnMessage
	out.ExtraDataTracking = created.ExtraDataTracking
	if created.Contact != nil {
		out.Successful = true
		out.Contacts = []connector.Contact{*created.Contact}
	}
	return out, nil
}

func (h *ContactHandlers) observeContacts(operation, platform string, start time.Time, out *ContactResult, err error) {
	var res *Result
	if out != nil {
		res = &out.Result
	}
	h.observe(operation, platform, start, res, err)
}
