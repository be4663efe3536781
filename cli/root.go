// ABOUTME: Root cobra command and global flags of the callbridge CLI
// ABOUTME: Loads configuration, builds the logger and opens the App for subcommands
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/harperreed/callbridge/config"
	"github.com/spf13/cobra"
)

// Version is reported by the MCP server and the version command.
var Version = "0.1.0"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	DBPath     string
	Verbose    bool
}

// NewRootCommand creates the root command of the callbridge CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "callbridge",
		Short: "callbridge - telephony to CRM logging bridge",
		Long: `callbridge logs calls, SMS and fax events of a telephony platform into
CRM platforms through pluggable connectors, and serves the operations as MCP tools.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (default "+config.DefaultPath()+")")
	cmd.PersistentFlags().StringVar(&opts.DBPath, "db-path", "", "SQLite database path (overrides config)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(NewMCPCommand(opts))
	cmd.AddCommand(NewConnectorsCommand(opts))
	cmd.AddCommand(NewUsersCommand(opts))
	cmd.AddCommand(NewNotesCommand(opts))
	cmd.AddCommand(NewTasksCommand(opts))
	cmd.AddCommand(NewConfigCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "callbridge %s\n", Version)
		},
	})

	return cmd
}

func (o *RootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return nil, err
	}
	if o.DBPath != "" {
		cfg.Database.Path = o.DBPath
	}
	if o.Verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

// NewLogger builds the process logger described by cfg.
func NewLogger(w io.Writer, cfg config.LogConfig) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", cfg.Level)
	}
	handlerOpts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(cfg.Format) {
	case "json":
		return slog.New(slog.NewJSONHandler(w, handlerOpts)), nil
	case "", "text":
		return slog.New(slog.NewTextHandler(w, handlerOpts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q", cfg.Format)
	}
}

// withApp opens the App for the duration of fn. Logs go to stderr so stdout
// stays free for command output and the MCP stdio transport.
func (o *RootOptions) withApp(cmd *cobra.Command, fn func(ctx context.Context, app *App) error) error {
	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}
	logger, err := NewLogger(cmd.ErrOrStderr(), cfg.Log)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	app, err := NewApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := app.Close(); cerr != nil {
			logger.Warn("failed to close app", "error", cerr)
		}
	}()
	return fn(ctx, app)
}
