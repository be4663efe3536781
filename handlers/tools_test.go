// ABOUTME: Tests for the MCP tool, resource and prompt handlers
// ABOUTME: Drives the tools with JSON payloads the way an MCP client would
package handlers

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/harperreed/callbridge/connector"
	"github.com/harperreed/callbridge/models"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticTasks map[string]*models.ProcessorTask

func (s staticTasks) Task(_ context.Context, id string) (*models.ProcessorTask, error) {
	return s[id], nil
}

func TestCreateCallLogTool(t *testing.T) {
	f := newFixture(t)
	h := NewToolHandlers(f.deps, nil)
	ctx := context.Background()

	payload, err := json.Marshal(inboundCall("s-tool"))
	require.NoError(t, err)

	_, out, err := h.CreateCallLog(ctx, nil, LogPayloadInput{Platform: testPlatform, UserID: testUserID, Payload: string(payload)})
	require.NoError(t, err)
	assert.True(t, out.Successful)
	assert.Equal(t, "crm-1", out.LogID)

	_, out, err = h.CreateCallLog(ctx, nil, LogPayloadInput{Platform: testPlatform, UserID: testUserID, Payload: string(payload)})
	require.NoError(t, err)
	assert.False(t, out.Successful)
	assert.Equal(t, models.MessageTypeWarning, out.MessageType)
	assert.Equal(t, "Existing log for session s-tool", out.Message)

	_, _, err = h.CreateCallLog(ctx, nil, LogPayloadInput{Platform: testPlatform, UserID: testUserID, Payload: "{"})
	assert.Error(t, err)
	_, _, err = h.CreateCallLog(ctx, nil, LogPayloadInput{Payload: string(payload)})
	assert.Error(t, err)
}

func TestGetCallLogTool(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.calls.Create(context.Background(), &models.CallLogRecord{SessionID: "s-1", Platform: testPlatform, ThirdPartyLogID: "crm-1", UserID: testUserID}))
	h := NewToolHandlers(f.deps, nil)

	_, out, err := h.GetCallLog(context.Background(), nil, GetCallLogToolInput{Platform: testPlatform, UserID: testUserID, SessionIDs: []string{"s-1", "s-2"}})
	require.NoError(t, err)
	assert.True(t, out.Successful)
	assert.Equal(t, []SessionLogOutput{
		{SessionID: "s-1", Matched: true, LogID: "crm-1"},
		{SessionID: "s-2"},
	}, out.Logs)
}

func TestFindContactToolFallsBackToName(t *testing.T) {
	f := newFixture(t)
	f.override(t, connector.CapFindContactWithName, func(_ context.Context, req connector.FindContactWithNameRequest) (*connector.FindContactResult, error) {
		return &connector.FindContactResult{Contacts: []connector.Contact{{ID: "c-1", Name: req.Name}}}, nil
	})
	h := NewToolHandlers(f.deps, nil)

	_, out, err := h.FindContact(context.Background(), nil, FindContactToolInput{Platform: testPlatform, UserID: testUserID, Name: "Ada"})
	require.NoError(t, err)
	assert.True(t, out.Successful)
	assert.Equal(t, []ContactOutput{{ID: "c-1", Name: "Ada"}}, out.Contacts)
}

func TestConnectorCapabilitiesTool(t *testing.T) {
	f := newFixture(t)
	f.override(t, connector.CapFindContact, func(context.Context, connector.FindContactRequest) (*connector.FindContactResult, error) {
		return nil, nil
	})
	h := NewToolHandlers(f.deps, nil)

	_, out, err := h.ConnectorCapabilities(context.Background(), nil, CapabilitiesInput{Platform: testPlatform})
	require.NoError(t, err)
	assert.Equal(t, models.AuthTypeAPIKey, out.AuthType)
	assert.Equal(t, []string{connector.CapFindContact}, out.RegisteredInterfaces)
	assert.Contains(t, out.ComposedMethods, connector.CapFindContact)
	assert.Contains(t, out.OriginalMethods, connector.CapCreateCallLog)
	assert.NotContains(t, out.OriginalMethods, connector.CapFindContact)

	_, _, err = h.ConnectorCapabilities(context.Background(), nil, CapabilitiesInput{Platform: "nowhere"})
	assert.Error(t, err)
}

func TestProcessorTaskTool(t *testing.T) {
	f := newFixture(t)
	expire := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	h := NewToolHandlers(f.deps, staticTasks{"t-1": {AsyncTaskID: "t-1", Status: models.TaskStatusCompleted, ProcessorID: "p-1", ExpireAt: expire}})

	_, out, err := h.ProcessorTask(context.Background(), nil, TaskInput{TaskID: "t-1"})
	require.NoError(t, err)
	assert.Equal(t, TaskOutput{Found: true, Status: models.TaskStatusCompleted, ProcessorID: "p-1", ExpireAt: "2024-03-01T10:00:00Z"}, out)

	_, out, err = h.ProcessorTask(context.Background(), nil, TaskInput{TaskID: "missing"})
	require.NoError(t, err)
	assert.False(t, out.Found)

	_, _, err = NewToolHandlers(f.deps, nil).ProcessorTask(context.Background(), nil, TaskInput{TaskID: "t-1"})
	assert.Error(t, err)
}

func TestReadResource(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.calls.Create(context.Background(), &models.CallLogRecord{SessionID: "s-1", Platform: testPlatform, ThirdPartyLogID: "crm-1", UserID: testUserID}))
	h := NewResourceHandlers(f.registry, f.calls)
	ctx := context.Background()

	read := func(uri string) (*mcp.ReadResourceResult, error) {
		return h.ReadResource(ctx, &mcp.ReadResourceRequest{Params: &mcp.ReadResourceParams{URI: uri}})
	}

	res, err := read("callbridge://connectors")
	require.NoError(t, err)
	var platforms []string
	require.NoError(t, json.Unmarshal([]byte(res.Contents[0].Text), &platforms))
	assert.Equal(t, []string{testPlatform}, platforms)

	res, err = read("callbridge://connectors/" + testPlatform)
	require.NoError(t, err)
	var report connector.CapabilityReport
	require.NoError(t, json.Unmarshal([]byte(res.Contents[0].Text), &report))
	assert.Equal(t, models.AuthTypeAPIKey, report.AuthType)

	res, err = read("callbridge://calllogs/" + testUserID)
	require.NoError(t, err)
	var logs []models.CallLogRecord
	require.NoError(t, json.Unmarshal([]byte(res.Contents[0].Text), &logs))
	require.Len(t, logs, 1)
	assert.Equal(t, "crm-1", logs[0].ThirdPartyLogID)

	_, err = read("crm://contacts")
	assert.Error(t, err)
	_, err = read("callbridge://calllogs/")
	assert.Error(t, err)
	_, err = read("callbridge://unknown")
	assert.Error(t, err)
}

func TestCallFollowUpPrompt(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.calls.Create(context.Background(), &models.CallLogRecord{SessionID: "s-1", Platform: testPlatform, ThirdPartyLogID: "crm-1", UserID: testUserID}))
	f.override(t, connector.CapGetCallLog, func(context.Context, connector.GetCallLogRequest) (*connector.GetCallLogResult, error) {
		return &connector.GetCallLogResult{CallLogInfo: &connector.CallLogDetails{Subject: "Renewal", Note: "Send the new quote"}}, nil
	})
	h := NewPromptHandlers(NewLogHandlers(f.deps))
	ctx := context.Background()

	res, err := h.GetPrompt(ctx, &mcp.GetPromptRequest{Params: &mcp.GetPromptParams{
		Name:      "call-follow-up",
		Arguments: map[string]string{"platform": testPlatform, "user_id": testUserID, "session_id": "s-1"},
	}})
	require.NoError(t, err)
	require.Len(t, res.Messages, 1)
	text := res.Messages[0].Content.(*mcp.TextContent).Text
	assert.Contains(t, text, "CRM record: crm-1")
	assert.Contains(t, text, "Subject: Renewal")
	assert.Contains(t, text, "Send the new quote")

	_, err = h.GetPrompt(ctx, &mcp.GetPromptRequest{Params: &mcp.GetPromptParams{
		Name:      "call-follow-up",
		Arguments: map[string]string{"platform": testPlatform, "user_id": testUserID, "session_id": "s-9"},
	}})
	assert.Error(t, err)

	_, err = h.GetPrompt(ctx, &mcp.GetPromptRequest{Params: &mcp.GetPromptParams{Name: "other"}})
	assert.Error(t, err)
}
