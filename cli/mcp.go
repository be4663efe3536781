// ABOUTME: MCP server subcommand
// ABOUTME: Serves the logging tools, resources and prompts on stdio plus an optional metrics endpoint
package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/harperreed/callbridge/handlers"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
)

// NewMCPCommand creates the mcp command.
func NewMCPCommand(rootOpts *RootOptions) *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd, func(ctx context.Context, app *App) error {
				if metricsAddr == "" {
					metricsAddr = app.cfg.Metrics.Addr
				}
				return runMCPServer(ctx, app, metricsAddr)
			})
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "listen address of the /metrics endpoint (overrides config)")
	return cmd
}

// NewMCPServer registers every callbridge tool, resource and prompt.
func NewMCPServer(deps handlers.Deps, tasks handlers.TaskLookup, calls handlers.CallLogLister) *mcp.Server {
	toolHandlers := handlers.NewToolHandlers(deps, tasks)
	resourceHandlers := handlers.NewResourceHandlers(deps.Registry, calls)
	promptHandlers := handlers.NewPromptHandlers(handlers.NewLogHandlers(deps))

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "callbridge",
		Version: Version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "create_call_log",
		Description: "Log a finished call into the user's CRM, once per telephony session",
	}, toolHandlers.CreateCallLog)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "update_call_log",
		Description: "Update a logged call with a recording link, new note, subject or result",
	}, toolHandlers.UpdateCallLog)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "create_message_log",
		Description: "Log the unlogged SMS, MMS and fax messages of a conversation, grouped per day",
	}, toolHandlers.CreateMessageLog)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_call_log",
		Description: "Look up which telephony sessions are already logged and optionally fetch their CRM records",
	}, toolHandlers.GetCallLog)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "find_contact",
		Description: "Find CRM contacts by phone number, or by name when a name is given",
	}, toolHandlers.FindContact)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "create_contact",
		Description: "Create a contact in the user's CRM",
	}, toolHandlers.CreateContact)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "unauthorize",
		Description: "Revoke the CRM authorization of a user and forget the user",
	}, toolHandlers.Unauthorize)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "connector_capabilities",
		Description: "Describe the methods a CRM connector implements and its auth type",
	}, toolHandlers.ConnectorCapabilities)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "processor_task",
		Description: "Get the status of an asynchronous processor task",
	}, toolHandlers.ProcessorTask)

	server.AddResource(&mcp.Resource{
		Name:        "connectors",
		Description: "Registered CRM platforms",
		MIMEType:    "application/json",
		URI:         "callbridge://connectors",
	}, resourceHandlers.ReadResource)

	server.AddResourceTemplate(&mcp.ResourceTemplate{
		Name:        "connector_capabilities",
		Description: "Capability report of one CRM connector",
		MIMEType:    "application/json",
		URITemplate: "callbridge://connectors/{platform}",
	}, resourceHandlers.ReadResource)

	server.AddResourceTemplate(&mcp.ResourceTemplate{
		Name:        "call_logs",
		Description: "Most recent call log mappings of a user",
		MIMEType:    "application/json",
		URITemplate: "callbridge://calllogs/{user_id}",
	}, resourceHandlers.ReadResource)

	server.AddPrompt(&mcp.Prompt{
		Name:        "call-follow-up",
		Description: "Draft follow-up actions for a logged call",
		Arguments: []*mcp.PromptArgument{
			{Name: "platform", Description: "CRM platform key", Required: true},
			{Name: "user_id", Description: "User that logged the call", Required: true},
			{Name: "session_id", Description: "Telephony session id of the call", Required: true},
		},
	}, promptHandlers.GetPrompt)

	return server
}

func runMCPServer(ctx context.Context, app *App, metricsAddr string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Pipeline.Start(ctx); err != nil {
		return err
	}

	if metricsAddr != "" {
		srv := newMetricsServer(metricsAddr, app.Metrics.Handler())
		go func() {
			app.logger.Info("serving metrics", "addr", metricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				app.logger.Error("metrics server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	app.logger.Info("starting MCP server", "platforms", app.Registry.Platforms())
	server := NewMCPServer(app.Deps(), app.Pipeline, app.CallLogs)
	return server.Run(ctx, &mcp.StdioTransport{})
}

func newMetricsServer(addr string, metrics http.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics)
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
