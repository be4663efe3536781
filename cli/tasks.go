// ABOUTME: Processor task, note cache and configuration subcommands
// ABOUTME: Reads async task state and seeds cached notes for cache-first logging
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"text/tabwriter"
	"time"

	"github.com/harperreed/callbridge/config"
	"github.com/harperreed/callbridge/models"
	"github.com/spf13/cobra"
)

// NewTasksCommand creates the tasks command.
func NewTasksCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Inspect asynchronous processor tasks",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List tasks that have not expired",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd, func(ctx context.Context, app *App) error {
				tasks, err := app.Tasks.List()
				if err != nil {
					return err
				}
				return printTasks(cmd.OutOrStdout(), tasks)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Show one task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd, func(ctx context.Context, app *App) error {
				task, err := app.Pipeline.Task(ctx, args[0])
				if err != nil {
					return err
				}
				if task == nil {
					return fmt.Errorf("task %s not found or expired", args[0])
				}
				return printTasks(cmd.OutOrStdout(), []models.ProcessorTask{*task})
			})
		},
	})

	return cmd
}

func printTasks(w io.Writer, tasks []models.ProcessorTask) error {
	if len(tasks) == 0 {
		fmt.Fprintln(w, "No tasks.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTAGE\tPROCESSOR\tSTATUS\tEXPIRES")
	fmt.Fprintln(tw, "--\t-----\t---------\t------\t-------")
	for _, t := range tasks {
		status := t.Status
		if t.Error != "" {
			status += " (" + t.Error + ")"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", t.AsyncTaskID, t.Stage, t.ProcessorID, status,
			t.ExpireAt.Local().Format(time.DateTime))
	}
	return tw.Flush()
}

// NewNotesCommand creates the notes command.
func NewNotesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notes",
		Short: "Manage notes cached per telephony session",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "put <session-id> <note>",
		Short: "Cache a note for a session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd, func(ctx context.Context, app *App) error {
				return app.Notes.Put(args[0], args[1])
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "get <session-id>",
		Short: "Print the cached note of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd, func(ctx context.Context, app *App) error {
				note, ok, err := app.Notes.Get(args[0])
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("no note cached for session %s", args[0])
				}
				fmt.Fprintln(cmd.OutOrStdout(), note)
				return nil
			})
		},
	})

	return cmd
}

// NewConfigCommand creates the config command.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := rootOpts.ConfigPath
			if path == "" {
				path = config.DefaultPath()
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("config file %s already exists (use --force to overwrite)", path)
			} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}
			if err := config.DefaultConfig().SaveToFile(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	cmd.AddCommand(initCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the configuration file location",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			path := rootOpts.ConfigPath
			if path == "" {
				path = config.DefaultPath()
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
		},
	})

	return cmd
}
