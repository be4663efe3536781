// ABOUTME: MCP prompt handlers built from logged call data
// ABOUTME: Turns a logged session's CRM note into a follow-up drafting prompt
package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type PromptHandlers struct {
	logs *LogHandlers
}

func NewPromptHandlers(logs *LogHandlers) *PromptHandlers {
	return &PromptHandlers{logs: logs}
}

// GetPrompt generates the prompt message based on the template
func (h *PromptHandlers) GetPrompt(ctx context.Context, request *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	switch request.Params.Name {
	case "call-follow-up":
		return h.getCallFollowUpPrompt(ctx, request.Params.Arguments)
	default:
		return nil, fmt.Errorf("unknown prompt: %s", request.Params.Name)
	}
}

func (h *PromptHandlers) getCallFollowUpPrompt(ctx context.Context, args map[string]string) (*mcp.GetPromptResult, error) {
	for _, key := range []string{"platform", "user_id", "session_id"} {
		if args[key] == "" {
			return nil, fmt.Errorf("%s is required", key)
		}
	}

	res, err := h.logs.GetCallLog(ctx, GetCallLogInput{
		Platform:       args["platform"],
		UserID:         args["user_id"],
		SessionIDs:     []string{args["session_id"]},
		RequireDetails: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch call log: %w", err)
	}
	if len(res.Logs) == 0 || !res.Logs[0].Matched {
		return nil, fmt.Errorf("session %s has not been logged", args["session_id"])
	}
	log := res.Logs[0]

	var promptText strings.Builder
	promptText.WriteString("Please draft a follow-up for this logged call:\n\n")
	promptText.WriteString(fmt.Sprintf("CRM record: %s\n", log.LogID))
	if log.Details != nil && log.Details.Subject != "" {
		promptText.WriteString(fmt.Sprintf("Subject: %s\n", log.Details.Subject))
	}
	if log.NotePreview != "" {
		promptText.WriteString(fmt.Sprintf("\nAgent notes:\n%s\n", log.NotePreview))
	}

	promptText.WriteString("\nPlease provide:")
	promptText.WriteString("\n1. A two sentence summary of the call")
	promptText.WriteString("\n2. Open action items and who owns them")
	promptText.WriteString("\n3. A short follow-up message to the contact")

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Follow-up for session: %s", log.SessionID),
		Messages: []*mcp.PromptMessage{
			{
				Role:    "user",
				Content: &mcp.TextContent{Text: promptText.String()},
			},
		},
	}, nil
}
