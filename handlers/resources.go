// ABOUTME: MCP resource handlers exposing connectors and logged calls
// ABOUTME: Serves callbridge:// URIs as read-only JSON documents
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/harperreed/callbridge/connector"
	"github.com/harperreed/callbridge/models"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// CallLogLister is satisfied by db.CallLogRepository.
type CallLogLister interface {
	ListByUser(ctx context.Context, userID string, limit int) ([]models.CallLogRecord, error)
}

type ResourceHandlers struct {
	registry *connector.Registry
	calls    CallLogLister
}

func NewResourceHandlers(registry *connector.Registry, calls CallLogLister) *ResourceHandlers {
	return &ResourceHandlers{registry: registry, calls: calls}
}

// ReadResource handles resource read requests
func (h *ResourceHandlers) ReadResource(ctx context.Context, request *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	uri := request.Params.URI
	if !strings.HasPrefix(uri, "callbridge://") {
		return nil, fmt.Errorf("invalid URI scheme: expected callbridge://")
	}

	path := strings.TrimPrefix(uri, "callbridge://")
	parts := strings.Split(path, "/")

	switch parts[0] {
	case "connectors":
		if len(parts) == 1 || parts[1] == "" {
			return jsonResource(uri, h.registry.Platforms())
		}
		report, err := h.registry.GetConnectorCapabilities(ctx, parts[1])
		if err != nil {
			return nil, fmt.Errorf("failed to inspect connector: %w", err)
		}
		return jsonResource(uri, report)

	case "calllogs":
		if len(parts) < 2 || parts[1] == "" {
			return nil, fmt.Errorf("user id is required: callbridge://calllogs/<user id>")
		}
		logs, err := h.calls.ListByUser(ctx, parts[1], 100)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch call logs: %w", err)
		}
		return jsonResource(uri, logs)

	default:
		return nil, fmt.Errorf("unknown resource: %s", parts[0])
	}
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal resource: %w", err)
	}
	return &mcp.ReadResourceResult{Contents: []*mcp.ResourceContents{
		{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}}, nil
}
