// ABOUTME: MCP tool handlers exposing call logging, contact lookup and introspection
// ABOUTME: Decodes tool input, calls the orchestration handlers and flattens their results
package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/harperreed/callbridge/connector"
	"github.com/harperreed/callbridge/models"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// TaskLookup is satisfied by processor.Pipeline.
type TaskLookup interface {
	Task(ctx context.Context, id string) (*models.ProcessorTask, error)
}

type ToolHandlers struct {
	logs     *LogHandlers
	contacts *ContactHandlers
	auth     *AuthHandlers
	registry *connector.Registry
	tasks    TaskLookup
}

func NewToolHandlers(deps Deps, tasks TaskLookup) *ToolHandlers {
	return &ToolHandlers{
		logs:     NewLogHandlers(deps),
		contacts: NewContactHandlers(deps),
		auth:     NewAuthHandlers(deps),
		registry: deps.Registry,
		tasks:    tasks,
	}
}

type LogPayloadInput struct {
	Platform string `json:"platform" jsonschema:"Platform key of the CRM connector (required)"`
	UserID   string `json:"user_id" jsonschema:"Id of the user logging the event (required)"`
	Payload  string `json:"payload" jsonschema:"JSON encoded log payload as sent by the extension (required)"`
}

type LogOutput struct {
	Successful  bool           `json:"successful"`
	LogID       string         `json:"log_id,omitempty"`
	LogIDs      []string       `json:"log_ids,omitempty"`
	MessageType string         `json:"message_type,omitempty"`
	Message     string         `json:"message,omitempty"`
	UpdatedNote string         `json:"updated_note,omitempty"`
	TaskIDs     []string       `json:"async_task_ids,omitempty"`
	Tracking    map[string]any `json:"extra_data_tracking,omitempty"`
}

func logOutput(res *Result) LogOutput {
	out := LogOutput{
		Successful:  res.Successful,
		LogID:       res.LogID,
		LogIDs:      res.LogIDs,
		UpdatedNote: res.UpdatedNote,
		TaskIDs:     res.AsyncTaskIDs,
		Tracking:    res.ExtraDataTracking,
	}
	if res.ReturnMessage != nil {
		out.MessageType = res.ReturnMessage.MessageType
		out.Message = res.ReturnMessage.Message
	}
	return out
}

func decodePayload(input LogPayloadInput, target any) error {
	if input.Platform == "" || input.UserID == "" {
		return fmt.Errorf("platform and user_id are required")
	}
	if input.Payload == "" {
		return fmt.Errorf("payload is required")
	}
	if err := json.Unmarshal([]byte(input.Payload), target); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	return nil
}

func (h *ToolHandlers) CreateCallLog(ctx context.Context, _ *mcp.CallToolRequest, input LogPayloadInput) (*mcp.CallToolResult, LogOutput, error) {
	var data models.IncomingCallLog
	if err := decodePayload(input, &data); err != nil {
		return nil, LogOutput{}, err
	}
	res, err := h.logs.CreateCallLog(ctx, CreateCallLogInput{Platform: input.Platform, UserID: input.UserID, Data: data})
	if err != nil {
		return nil, LogOutput{}, err
	}
	return nil, logOutput(res), nil
}

func (h *ToolHandlers) UpdateCallLog(ctx context.Context, _ *mcp.CallToolRequest, input LogPayloadInput) (*mcp.CallToolResult, LogOutput, error) {
	var data models.IncomingCallLogUpdate
	if err := decodePayload(input, &data); err != nil {
		return nil, LogOutput{}, err
	}
	res, err := h.logs.UpdateCallLog(ctx, UpdateCallLogInput{Platform: input.Platform, UserID: input.UserID, Data: data})
	if err != nil {
		return nil, LogOutput{}, err
	}
	return nil, logOutput(res), nil
}

func (h *ToolHandlers) CreateMessageLog(ctx context.Context, _ *mcp.CallToolRequest, input LogPayloadInput) (*mcp.CallToolResult, LogOutput, error) {
	var data models.IncomingMessageLog
	if err := decodePayload(input, &data); err != nil {
		return nil, LogOutput{}, err
	}
	res, err := h.logs.CreateMessageLog(ctx, CreateMessageLogInput{Platform: input.Platform, UserID: input.UserID, Data: data})
	if err != nil {
		return nil, LogOutput{}, err
	}
	return nil, logOutput(res), nil
}

type GetCallLogToolInput struct {
	Platform       string   `json:"platform" jsonschema:"Platform key of the CRM connector (required)"`
	UserID         string   `json:"user_id" jsonschema:"Id of the user (required)"`
	SessionIDs     []string `json:"session_ids" jsonschema:"Telephony session ids to look up (required)"`
	RequireDetails bool     `json:"require_details,omitempty" jsonschema:"Fetch the CRM record of each logged session"`
}

type SessionLogOutput struct {
	SessionID   string `json:"session_id"`
	Matched     bool   `json:"matched"`
	LogID       string `json:"log_id,omitempty"`
	Subject     string `json:"subject,omitempty"`
	NotePreview string `json:"note_preview,omitempty"`
}

type GetCallLogToolOutput struct {
	Successful bool               `json:"successful"`
	Message    string             `json:"message,omitempty"`
	Logs       []SessionLogOutput `json:"logs"`
}

func (h *ToolHandlers) GetCallLog(ctx context.Context, _ *mcp.CallToolRequest, input GetCallLogToolInput) (*mcp.CallToolResult, GetCallLogToolOutput, error) {
	res, err := h.logs.GetCallLog(ctx, GetCallLogInput{
		Platform:       input.Platform,
		UserID:         input.UserID,
		SessionIDs:     input.SessionIDs,
		RequireDetails: input.RequireDetails,
	})
	if err != nil {
		return nil, GetCallLogToolOutput{}, err
	}
	out := GetCallLogToolOutput{Successful: res.Successful, Logs: make([]SessionLogOutput, len(res.Logs))}
	if res.ReturnMessage != nil {
		out.Message = res.ReturnMessage.Message
	}
	for i, l := range res.Logs {
		out.Logs[i] = SessionLogOutput{SessionID: l.SessionID, Matched: l.Matched, LogID: l.LogID, NotePreview: l.NotePreview}
		if l.Details != nil {
			out.Logs[i].Subject = l.Details.Subject
		}
	}
	return nil, out, nil
}

type FindContactToolInput struct {
	Platform    string `json:"platform" jsonschema:"Platform key of the CRM connector (required)"`
	UserID      string `json:"user_id" jsonschema:"Id of the user (required)"`
	PhoneNumber string `json:"phone_number,omitempty" jsonschema:"Phone number to match"`
	Name        string `json:"name,omitempty" jsonschema:"Name to search for when no phone number is given"`
}

type ContactOutput struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Type  string `json:"type,omitempty"`
	Phone string `json:"phone,omitempty"`
}

type ContactsOutput struct {
	Successful bool            `json:"successful"`
	Message    string          `json:"message,omitempty"`
	Contacts   []ContactOutput `json:"contacts"`
}

func contactsOutput(res *ContactResult) ContactsOutput {
	out := ContactsOutput{Successful: res.Successful, Contacts: make([]ContactOutput, len(res.Contacts))}
	if res.ReturnMessage != nil {
		out.Message = res.ReturnMessage.Message
	}
	for i, c := range res.Contacts {
		out.Contacts[i] = ContactOutput{ID: c.ID, Name: c.Name, Type: c.Type, Phone: c.Phone}
	}
	return out
}

func (h *ToolHandlers) FindContact(ctx context.Context, _ *mcp.CallToolRequest, input FindContactToolInput) (*mcp.CallToolResult, ContactsOutput, error) {
	var (
		res *ContactResult
		err error
	)
	if input.PhoneNumber == "" && input.Name != "" {
		res, err = h.contacts.FindContactWithName(ctx, FindContactWithNameInput{Platform: input.Platform, UserID: input.UserID, Name: input.Name})
	} else {
		res, err = h.contacts.FindContact(ctx, FindContactInput{Platform: input.Platform, UserID: input.UserID, PhoneNumber: input.PhoneNumber})
	}
	if err != nil {
		return nil, ContactsOutput{}, err
	}
	return nil, contactsOutput(res), nil
}

type CreateContactToolInput struct {
	Platform    string `json:"platform" jsonschema:"Platform key of the CRM connector (required)"`
	UserID      string `json:"user_id" jsonschema:"Id of the user (required)"`
	PhoneNumber string `json:"phone_number" jsonschema:"Phone number of the new contact"`
	Name        string `json:"name" jsonschema:"Name of the new contact (required)"`
	Type        string `json:"type,omitempty" jsonschema:"CRM specific contact type"`
}

func (h *ToolHandlers) CreateContact(ctx context.Context, _ *mcp.CallToolRequest, input CreateContactToolInput) (*mcp.CallToolResult, ContactsOutput, error) {
	res, err := h.contacts.CreateContact(ctx, CreateContactInput{
		Platform:       input.Platform,
		UserID:         input.UserID,
		PhoneNumber:    input.PhoneNumber,
		NewContactName: input.Name,
		NewContactType: input.Type,
	})
	if err != nil {
		return nil, ContactsOutput{}, err
	}
	return nil, contactsOutput(res), nil
}

type UnauthorizeToolInput struct {
	Platform string `json:"platform" jsonschema:"Platform key of the CRM connector (required)"`
	UserID   string `json:"user_id" jsonschema:"Id of the user to log out (required)"`
}

func (h *ToolHandlers) Unauthorize(ctx context.Context, _ *mcp.CallToolRequest, input UnauthorizeToolInput) (*mcp.CallToolResult, LogOutput, error) {
	res, err := h.auth.Unauthorize(ctx, UnauthorizeInput{Platform: input.Platform, UserID: input.UserID})
	if err != nil {
		return nil, LogOutput{}, err
	}
	return nil, logOutput(res), nil
}

type CapabilitiesInput struct {
	Platform string `json:"platform" jsonschema:"Platform key to inspect (required)"`
}

type CapabilitiesOutput struct {
	Platform             string   `json:"platform"`
	OriginalMethods      []string `json:"original_methods"`
	ComposedMethods      []string `json:"composed_methods"`
	RegisteredInterfaces []string `json:"registered_interfaces"`
	AuthType             string   `json:"auth_type"`
}

func (h *ToolHandlers) ConnectorCapabilities(ctx context.Context, _ *mcp.CallToolRequest, input CapabilitiesInput) (*mcp.CallToolResult, CapabilitiesOutput, error) {
	report, err := h.registry.GetConnectorCapabilities(ctx, input.Platform)
	if err != nil {
		return nil, CapabilitiesOutput{}, fmt.Errorf("failed to inspect %s: %w", input.Platform, err)
	}
	return nil, CapabilitiesOutput{
		Platform:             input.Platform,
		OriginalMethods:      report.OriginalMethods,
		ComposedMethods:      report.ComposedMethods,
		RegisteredInterfaces: report.RegisteredInterfaces,
		AuthType:             report.AuthType,
	}, nil
}

type TaskInput struct {
	TaskID string `json:"task_id" jsonschema:"Async processor task id (required)"`
}

type TaskOutput struct {
	Found       bool   `json:"found"`
	Status      string `json:"status,omitempty"`
	ProcessorID string `json:"processor_id,omitempty"`
	Error       string `json:"error,omitempty"`
	ExpireAt    string `json:"expire_at,omitempty"`
}

func (h *ToolHandlers) ProcessorTask(ctx context.Context, _ *mcp.CallToolRequest, input TaskInput) (*mcp.CallToolResult, TaskOutput, error) {
	if h.tasks == nil {
		return nil, TaskOutput{}, fmt.Errorf("async processors are not configured")
	}
	task, err := h.tasks.Task(ctx, input.TaskID)
	if err != nil {
		return nil, TaskOutput{}, fmt.Errorf("failed to load task: %w", err)
	}
	if task == nil {
		return nil, TaskOutput{}, nil
	}
	return nil, TaskOutput{
		Found:       true,
		Status:      task.Status,
		ProcessorID: task.ProcessorID,
		Error:       task.Error,
		ExpireAt:    task.ExpireAt.Format("2006-01-02T15:04:05Z07:00"),
	}, nil
}
